package transport

import (
	"io"
	"os"

	"github.com/brickingsoft/errors"
	"github.com/valyala/bytebufferpool"
)

type InboundReader interface {
	Peek(n int) (p []byte)
	Next(n int) (p []byte, err error)
	Read(p []byte) (n int, err error)
	Discard(n int)
	Length() (n int)
}

// InboundBuffer stages decrypted bytes between the engine and read futures.
// Allocate hands out a spare slice to fill, AllocatedWrote commits it.
type InboundBuffer interface {
	InboundReader
	Allocate(size int) (p []byte, err error)
	AllocatedWrote(n int)
	Write(p []byte) (n int, err error)
	Close()
}

func NewInboundBuffer() InboundBuffer {
	return &inboundBuffer{allocated: -1}
}

var pagesize = os.Getpagesize()

type inboundBuffer struct {
	b         *bytebufferpool.ByteBuffer
	off       int
	allocated int
}

func (buf *inboundBuffer) Allocate(size int) (p []byte, err error) {
	if buf.allocated >= 0 {
		err = errors.New("transport: buffer already allocated a piece of bytes")
		return
	}
	if buf.b == nil {
		buf.b = bytebufferpool.Get()
	}
	n := len(buf.b.B)
	if cap(buf.b.B)-n < size {
		grown := append(buf.b.B, make([]byte, size)...)
		buf.b.B = grown[:n]
	}
	buf.allocated = n
	p = buf.b.B[n : n+size]
	return
}

func (buf *inboundBuffer) AllocatedWrote(n int) {
	if buf.allocated < 0 {
		return
	}
	buf.b.B = buf.b.B[:buf.allocated+n]
	buf.allocated = -1
	return
}

func (buf *inboundBuffer) Write(p []byte) (n int, err error) {
	if buf.b == nil {
		buf.b = bytebufferpool.Get()
	}
	n, err = buf.b.Write(p)
	return
}

func (buf *inboundBuffer) Peek(n int) (p []byte) {
	if buf.b == nil {
		return
	}
	if remains := len(buf.b.B) - buf.off; n > remains {
		n = remains
	}
	p = buf.b.B[buf.off : buf.off+n]
	return
}

func (buf *inboundBuffer) Next(n int) (p []byte, err error) {
	if buf.b == nil {
		err = io.EOF
		return
	}
	if remains := len(buf.b.B) - buf.off; n > remains {
		n = remains
	}
	p = buf.b.B[buf.off : buf.off+n]
	buf.off += n
	buf.tryRelease()
	return
}

func (buf *inboundBuffer) Read(p []byte) (n int, err error) {
	if buf.b == nil || buf.off == len(buf.b.B) {
		err = io.EOF
		return
	}
	n = copy(p, buf.b.B[buf.off:])
	buf.off += n
	buf.tryRelease()
	return
}

func (buf *inboundBuffer) Discard(n int) {
	if buf.b == nil {
		return
	}
	if remains := len(buf.b.B) - buf.off; n > remains {
		n = remains
	}
	buf.off += n
	buf.tryRelease()
	return
}

func (buf *inboundBuffer) Length() (n int) {
	if buf.b == nil {
		return
	}
	n = len(buf.b.B) - buf.off
	return
}

func (buf *inboundBuffer) Close() {
	if buf.b != nil {
		buf.release()
	}
	buf.allocated = -1
	return
}

func (buf *inboundBuffer) tryRelease() {
	if buf.off == len(buf.b.B) && buf.allocated < 0 {
		buf.release()
	}
	return
}

func (buf *inboundBuffer) release() {
	buf.off = 0
	if cap(buf.b.B) <= pagesize {
		buf.b.Reset()
		bytebufferpool.Put(buf.b)
	}
	buf.b = nil
	return
}
