package codec

import (
	"context"
	"io"

	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

// FixedDecode streams messages of exactly fixed bytes each.
func FixedDecode(ctx context.Context, reader FutureReader, fixed int, options ...async.Option) (future async.Future[[]byte]) {
	decoder := NewFixedCodec(fixed)
	future = Decode[[]byte](ctx, reader, decoder, options...)
	return
}

// FixedEncode pads or truncates b to fixed bytes and writes it whole.
func FixedEncode(ctx context.Context, writer FutureWriter, b []byte, fixed int) (future async.Future[int]) {
	encoder := NewFixedCodec(fixed)
	future = Encode[[]byte](ctx, encoder, writer, b)
	return
}

func NewFixedCodec(fixed int) *FixedCodec {
	if fixed < 1 {
		panic("codec: fixed must be > 0")
	}
	return &FixedCodec{n: fixed}
}

type FixedCodec struct {
	n int
}

func (codec *FixedCodec) Encode(param []byte) (b []byte, err error) {
	b = make([]byte, codec.n)
	copy(b, param)
	return
}

func (codec *FixedCodec) Decode(inbound transport.Inbound) (ok bool, message []byte, err error) {
	buf := inbound.Reader()
	if buf == nil {
		err = io.ErrUnexpectedEOF
		return
	}
	if buf.Length() < codec.n {
		// frame not complete
		return
	}
	message = make([]byte, codec.n)
	rn, rErr := buf.Read(message)
	if rErr != nil {
		err = rErr
		return
	}
	if rn != codec.n {
		err = io.ErrShortBuffer
		return
	}
	ok = true
	return
}
