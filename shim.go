package security

import (
	"github.com/brickingsoft/security/transport"
)

func newIOShim(stream transport.Stream) *ioShim {
	return &ioShim{stream: stream}
}

// ioShim presents the asynchronous stream to the engine as a synchronous one.
// A waker is bound for the duration of a single attempt; every call resets
// the suspended flag and sets it again only when the transport actually
// reported not-ready. The flag is what lets callers tell a genuine
// suspension apart from an engine-invented would-block.
type ioShim struct {
	stream    transport.Stream
	waker     transport.Waker
	suspended bool
}

func (shim *ioShim) bind(w transport.Waker) {
	shim.waker = w
	shim.suspended = false
}

func (shim *ioShim) Read(p []byte) (n int, err error) {
	shim.suspended = false
	n, err = shim.stream.Read(shim.waker, p)
	if err != nil && transport.IsWouldBlock(err) {
		shim.suspended = true
	}
	return
}

func (shim *ioShim) Write(p []byte) (n int, err error) {
	shim.suspended = false
	n, err = shim.stream.Write(shim.waker, p)
	if err != nil && transport.IsWouldBlock(err) {
		shim.suspended = true
	}
	return
}

func (shim *ioShim) Flush() (err error) {
	shim.suspended = false
	err = shim.stream.Flush(shim.waker)
	if err != nil && transport.IsWouldBlock(err) {
		shim.suspended = true
	}
	return
}
