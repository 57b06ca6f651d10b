// Package codec decodes framed messages out of the inbound stream of a
// secured connection and encodes them back into writes. Decoders see the
// connection's accumulated inbound buffer: a partial frame stays buffered
// and the next completed read appends to it.
package codec

import (
	"context"

	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

// FutureReader is the read side a decoder drains; a security.Connection
// satisfies it.
type FutureReader interface {
	Read() (future async.Future[transport.Inbound])
}

// FutureWriter is the write side an encoder fills; a security.Connection
// satisfies it.
type FutureWriter interface {
	Write(p []byte) (future async.Future[int])
}

// Decoder turns buffered inbound bytes into messages of type T.
// ok reports whether a full message was consumed; returning an error stops
// decoding for good.
type Decoder[T any] interface {
	Decode(inbound transport.Inbound) (ok bool, message T, err error)
}

type Encoder[T any] interface {
	Encode(param T) (p []byte, err error)
}

// Decode reads frames as a stream: the future completes once per decoded
// message until the reader fails or the decoder stops it.
func Decode[T any](ctx context.Context, reader FutureReader, decoder Decoder[T], options ...async.Option) (future async.Future[T]) {
	options = append(options, async.WithStream(), async.WithWait())
	promise, promiseErr := async.Make[T](ctx, options...)
	if promiseErr != nil {
		future = async.FailedImmediately[T](ctx, promiseErr)
		return
	}
	future = promise.Future()
	// the chain starts only after the future is handed out: a reader that
	// completes immediately would otherwise block inside the waiting promise
	// on the caller's goroutine, before OnComplete could be attached
	go decode[T](reader, decoder, true, promise)
	return
}

// DecodeOnce decodes a single message.
func DecodeOnce[T any](ctx context.Context, reader FutureReader, decoder Decoder[T], options ...async.Option) (future async.Future[T]) {
	promise, promiseErr := async.Make[T](ctx, options...)
	if promiseErr != nil {
		future = async.FailedImmediately[T](ctx, promiseErr)
		return
	}
	future = promise.Future()
	go decode[T](reader, decoder, false, promise)
	return
}

func decode[T any](reader FutureReader, decoder Decoder[T], stream bool, promise async.Promise[T]) {
	reader.Read().OnComplete(func(ctx context.Context, inbound transport.Inbound, err error) {
		if err != nil {
			promise.Fail(err)
			if stream {
				promise.Cancel()
			}
			return
		}
		ok, message, decodeErr := decoder.Decode(inbound)
		if decodeErr != nil {
			promise.Fail(decodeErr)
			return
		}
		if !ok {
			// frame not complete yet: keep reading into the same buffer
			decode[T](reader, decoder, stream, promise)
			return
		}
		promise.Succeed(message)
		if stream {
			decode[T](reader, decoder, stream, promise)
		}
	})
	return
}

// Encode seals one message into the writer. Partial writes are completed
// here so a message is never written half.
func Encode[T any](ctx context.Context, encoder Encoder[T], writer FutureWriter, data T) (future async.Future[int]) {
	p, encodeErr := encoder.Encode(data)
	if encodeErr != nil {
		future = async.FailedImmediately[int](ctx, encodeErr)
		return
	}
	future = writeAll(ctx, writer, p)
	return
}

// writeAll re-invokes the writer until every byte of p was accepted,
// honoring the partial-write contract of the connection.
func writeAll(ctx context.Context, writer FutureWriter, p []byte) (future async.Future[int]) {
	promise, promiseErr := async.Make[int](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[int](ctx, promiseErr)
		return
	}
	future = promise.Future()
	writeChunk(writer, p, 0, promise)
	return
}

func writeChunk(writer FutureWriter, p []byte, written int, promise async.Promise[int]) {
	writer.Write(p[written:]).OnComplete(func(ctx context.Context, n int, err error) {
		if err != nil {
			promise.Fail(err)
			return
		}
		written += n
		if written < len(p) {
			writeChunk(writer, p, written, promise)
			return
		}
		promise.Succeed(written)
	})
	return
}
