// Package transport defines the asynchronous duplex byte stream consumed by
// the security layer, plus the buffering it hands back to readers.
//
// A Stream never blocks. When an operation cannot make progress it registers
// the waker bound to the attempt and reports ErrWouldBlock; the waker fires
// once readiness may have changed and the caller re-attempts. A waker belongs
// to a single attempt and must not be retained by the stream after it fires.
package transport

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrWouldBlock reports that the stream cannot make progress right now.
	// The waker bound to the failed call has been registered and will fire.
	ErrWouldBlock = errors.Define("transport: would block")
	// ErrClosed reports an operation on a closed stream.
	ErrClosed = errors.Define("transport: closed")
)

func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Waker resumes the suspended operation it was bound to. Wake may be called
// from any goroutine, including the one currently attempting the operation.
type Waker interface {
	Wake()
}

type WakerFunc func()

func (fn WakerFunc) Wake() {
	fn()
}

// Stream is an asynchronous duplex byte stream.
//
// Read returns the bytes moved into p, io.EOF at end of stream, a fatal
// stream error, or ErrWouldBlock after registering w. Write and Flush behave
// symmetrically. A Stream is not safe for concurrent use of the same
// direction; the security layer guarantees one operation in flight.
type Stream interface {
	Read(w Waker, p []byte) (n int, err error)
	Write(w Waker, p []byte) (n int, err error)
	Flush(w Waker) (err error)
	Close() (err error)
}
