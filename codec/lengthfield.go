package codec

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

const lengthFieldSize = 8

type LengthFieldMessage struct {
	Length int
	Bytes  []byte
}

// LengthFieldDecode streams messages framed by an 8-byte big-endian length
// prefix.
func LengthFieldDecode(ctx context.Context, reader FutureReader, options ...async.Option) (future async.Future[LengthFieldMessage]) {
	decoder := LengthFieldDecoder{}
	future = Decode[LengthFieldMessage](ctx, reader, &decoder, options...)
	return
}

// LengthFieldEncode writes one length-prefixed message, completing partial
// connection writes internally.
func LengthFieldEncode(ctx context.Context, writer FutureWriter, p []byte) (future async.Future[int]) {
	encoder := LengthFieldEncoder{}
	future = Encode[[]byte](ctx, &encoder, writer, p)
	return
}

type LengthFieldDecoder struct {
}

func (decoder *LengthFieldDecoder) Decode(inbound transport.Inbound) (ok bool, message LengthFieldMessage, err error) {
	buf := inbound.Reader()
	if buf == nil {
		err = io.ErrUnexpectedEOF
		return
	}
	bufLen := buf.Length()
	if bufLen < lengthFieldSize {
		// length prefix not complete
		return
	}
	size := int(binary.BigEndian.Uint64(buf.Peek(lengthFieldSize)))
	if size == 0 {
		buf.Discard(lengthFieldSize)
		ok = true
		return
	}
	if bufLen-lengthFieldSize < size {
		// body not complete
		return
	}
	buf.Discard(lengthFieldSize)
	p := make([]byte, size)
	rn, readErr := buf.Read(p)
	if readErr != nil {
		err = readErr
		return
	}
	if rn != size {
		err = io.ErrShortBuffer
		return
	}
	ok = true
	message = LengthFieldMessage{Length: size, Bytes: p}
	return
}

type LengthFieldEncoder struct {
}

func (encoder *LengthFieldEncoder) Encode(param []byte) (p []byte, err error) {
	p = make([]byte, lengthFieldSize+len(param))
	binary.BigEndian.PutUint64(p, uint64(len(param)))
	copy(p[lengthFieldSize:], param)
	return
}
