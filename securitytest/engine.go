package securitytest

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/security"
	"github.com/brickingsoft/security/transport"
	"golang.org/x/crypto/chacha20poly1305"
)

// frame layout: 4-byte big-endian body length, then the sealed body.
// sealed body plaintext: 1 type byte followed by the payload.
const (
	frameHello = 'H'
	frameData  = 'D'
	frameClose = 'C'
)

const (
	hsSendHello = iota
	hsRecvHello
	hsDone
)

type engine struct {
	eio        security.EngineIO
	aead       cipher.AEAD
	isClient   bool
	serverName string
	maxRecord  int
	misbehave  bool

	hs          int
	sendSeq     uint64
	recvSeq     uint64
	inRaw       []byte // undecrypted frame bytes accumulated from the shim
	inPlain     []byte // decrypted payload not yet served to Read
	eof         bool
	outSeal     []byte // sealed but not fully written frame bytes
	outCount    int    // plaintext bytes the pending data record stands for
	closeSealed bool
	closeSent   bool
}

func newEngine(eio security.EngineIO, isClient bool, serverName string, opts options) (*engine, error) {
	aead, err := chacha20poly1305.New(opts.key[:])
	if err != nil {
		return nil, err
	}
	maxRecord := opts.maxRecord
	if maxRecord == 0 {
		maxRecord = defaultMaxRecord
	}
	e := &engine{
		eio:        eio,
		aead:       aead,
		isClient:   isClient,
		serverName: serverName,
		maxRecord:  maxRecord,
		misbehave:  opts.misbehave,
	}
	if isClient {
		e.hs = hsSendHello
	} else {
		e.hs = hsRecvHello
	}
	return e, nil
}

// sendDir is the nonce domain byte for frames this side seals.
func (e *engine) sendDir() byte {
	if e.isClient {
		return 'C'
	}
	return 'S'
}

func (e *engine) recvDir() byte {
	if e.isClient {
		return 'S'
	}
	return 'C'
}

func nonce(dir byte, seq uint64) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	n[0] = dir
	binary.BigEndian.PutUint64(n[4:], seq)
	return n
}

// seal appends a complete frame for plain to outSeal and burns a sequence
// number, so it must run at most once per logical record.
func (e *engine) seal(frameType byte, payload []byte) {
	plain := make([]byte, 1+len(payload))
	plain[0] = frameType
	copy(plain[1:], payload)
	body := e.aead.Seal(nil, nonce(e.sendDir(), e.sendSeq), plain, nil)
	e.sendSeq++
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	e.outSeal = append(e.outSeal, header[:]...)
	e.outSeal = append(e.outSeal, body...)
}

// drain pushes outSeal to the transport, keeping whatever the transport
// did not take. A would-block here leaves the remainder buffered and the
// next attempt resumes from the same byte.
func (e *engine) drain() error {
	for len(e.outSeal) > 0 {
		n, err := e.eio.Write(e.outSeal)
		e.outSeal = e.outSeal[n:]
		if err != nil {
			return err
		}
	}
	return nil
}

// fill accumulates raw frame bytes until want are available.
func (e *engine) fill(want int) error {
	for len(e.inRaw) < want {
		p := make([]byte, 4096)
		n, err := e.eio.Read(p)
		if n > 0 {
			e.inRaw = append(e.inRaw, p[:n]...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readFrame blocks (in the would-block sense) until one whole frame is
// buffered, then opens it. A raw EOF mid-stream means the peer vanished
// without a close frame, which is a truncation, not a clean end.
func (e *engine) readFrame() (frameType byte, payload []byte, err error) {
	if err = e.fill(4); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return
	}
	bodyLen := int(binary.BigEndian.Uint32(e.inRaw[:4]))
	if bodyLen == 0 || bodyLen > maxFrameBody {
		err = errors.From(ErrBadRecord, errors.WithMeta("len", strconv.Itoa(bodyLen)))
		return
	}
	if err = e.fill(4 + bodyLen); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return
	}
	body := e.inRaw[4 : 4+bodyLen]
	plain, openErr := e.aead.Open(nil, nonce(e.recvDir(), e.recvSeq), body, nil)
	if openErr != nil {
		err = errors.From(ErrBadRecord, errors.WithWrap(openErr))
		return
	}
	e.recvSeq++
	e.inRaw = e.inRaw[4+bodyLen:]
	if len(plain) == 0 {
		err = ErrBadRecord
		return
	}
	frameType = plain[0]
	payload = plain[1:]
	return
}

func (e *engine) Handshake() error {
	if e.misbehave {
		return transport.ErrWouldBlock
	}
	for {
		switch e.hs {
		case hsDone:
			return nil
		case hsSendHello:
			if len(e.outSeal) == 0 && e.sendSeq == 0 {
				e.seal(frameHello, []byte(e.serverName))
			}
			if err := e.drain(); err != nil {
				return err
			}
			if e.isClient {
				e.hs = hsRecvHello
			} else {
				e.hs = hsDone
			}
		case hsRecvHello:
			frameType, payload, err := e.readFrame()
			if err != nil {
				return err
			}
			if frameType != frameHello {
				return errors.From(ErrBadHello, errors.WithMeta("frame", string(frameType)))
			}
			if !e.isClient {
				e.serverName = string(payload)
				e.hs = hsSendHello
			} else {
				if e.serverName != "" && !bytes.Equal(payload, []byte(e.serverName)) {
					return errors.From(ErrBadHello, errors.WithMeta("serverName", string(payload)))
				}
				e.hs = hsDone
			}
		}
	}
}

func (e *engine) Read(p []byte) (n int, err error) {
	if e.misbehave {
		err = transport.ErrWouldBlock
		return
	}
	if len(e.inPlain) > 0 {
		n = copy(p, e.inPlain)
		e.inPlain = e.inPlain[n:]
		return
	}
	if e.eof {
		err = io.EOF
		return
	}
	if len(p) == 0 {
		return
	}
	frameType, payload, err := e.readFrame()
	if err != nil {
		return
	}
	switch frameType {
	case frameData:
		n = copy(p, payload)
		if n < len(payload) {
			e.inPlain = append(e.inPlain, payload[n:]...)
		}
	case frameClose:
		e.eof = true
		err = io.EOF
	default:
		err = errors.From(ErrBadRecord, errors.WithMeta("frame", string(frameType)))
	}
	return
}

func (e *engine) Write(p []byte) (n int, err error) {
	if e.misbehave {
		err = transport.ErrWouldBlock
		return
	}
	// A pending record from an earlier attempt completes first; the bytes
	// it stands for were already accepted and are reported exactly once.
	if len(e.outSeal) > 0 {
		if err = e.drain(); err != nil {
			return
		}
		n = e.outCount
		e.outCount = 0
		return
	}
	if len(p) == 0 {
		return
	}
	accepted := len(p)
	if accepted > e.maxRecord {
		accepted = e.maxRecord
	}
	e.seal(frameData, p[:accepted])
	e.outCount = accepted
	if err = e.drain(); err != nil {
		n = 0
		return
	}
	n = e.outCount
	e.outCount = 0
	return
}

func (e *engine) Flush() error {
	if e.misbehave {
		return transport.ErrWouldBlock
	}
	if err := e.drain(); err != nil {
		return err
	}
	return e.eio.Flush()
}

func (e *engine) CloseNotify() error {
	if e.misbehave {
		return transport.ErrWouldBlock
	}
	if e.closeSent {
		return nil
	}
	if !e.closeSealed {
		e.seal(frameClose, nil)
		e.closeSealed = true
	}
	if err := e.drain(); err != nil {
		return err
	}
	if err := e.eio.Flush(); err != nil {
		return err
	}
	e.closeSent = true
	return nil
}
