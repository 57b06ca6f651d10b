package security

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

const defaultReadBufferSize = 4096

// Connection is an established TLS session over an asynchronous stream.
//
// Exactly one operation may be in flight at a time; the surrounding runtime
// must not invoke two operations on the same connection concurrently. A
// terminal error from any operation poisons the connection: later operations
// fail with ErrClosed wrapping the original cause.
type Connection interface {
	Context() (ctx context.Context)
	// Handshake reports the result of the handshake this connection was
	// established with. It never drives I/O: connections are only handed out
	// once the connector or acceptor finished handshaking.
	Handshake() (future async.Future[async.Void])
	// Read decrypts the next available bytes into the connection's inbound
	// buffer. A clean TLS close by the peer fails the future with EOF,
	// distinct from any transport error.
	Read() (future async.Future[transport.Inbound])
	// Write seals p and hands it to the transport. The future carries the
	// number of plaintext bytes accepted, which may be less than len(p);
	// callers re-invoke for the remainder. A zero-length write succeeds
	// immediately without touching the engine.
	Write(p []byte) (future async.Future[int])
	Flush() (future async.Future[async.Void])
	// CloseWrite sends the engine's close signal (close-notify) and keeps
	// the read side open.
	CloseWrite() (future async.Future[async.Void])
	Close() (future async.Future[async.Void])
	SetInboundBuffer(n int)
}

func newConnection(ctx context.Context, stream transport.Stream, engine Engine, shim *ioShim) *connection {
	return &connection{
		ctx:            ctx,
		stream:         stream,
		engine:         engine,
		shim:           shim,
		inbound:        transport.NewInboundBuffer(),
		readBufferSize: defaultReadBufferSize,
	}
}

type connection struct {
	ctx               context.Context
	stream            transport.Stream
	engine            Engine
	shim              *ioShim
	inbound           transport.InboundBuffer
	readBufferSize    int
	handshakeComplete atomic.Bool
	handshakeErr      error
	deadErr           error
	closed            atomic.Bool
	closeNotifySent   bool
	closeNotifyErr    error
}

func (conn *connection) Context() (ctx context.Context) {
	ctx = conn.ctx
	return
}

func (conn *connection) SetInboundBuffer(n int) {
	if n < 1 {
		n = defaultReadBufferSize
	}
	conn.readBufferSize = n
}

func (conn *connection) Handshake() (future async.Future[async.Void]) {
	ctx := conn.ctx
	if !conn.handshakeComplete.Load() {
		future = async.FailedImmediately[async.Void](ctx, errors.New(
			"handshake not performed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpHandshake),
		))
		return
	}
	if conn.handshakeErr != nil {
		future = async.FailedImmediately[async.Void](ctx, conn.handshakeErr)
		return
	}
	future = async.SucceedImmediately[async.Void](ctx, async.Void{})
	return
}

func (conn *connection) Read() (future async.Future[transport.Inbound]) {
	ctx := conn.ctx
	if err := conn.usable(errMetaOpRead); err != nil {
		future = async.FailedImmediately[transport.Inbound](ctx, err)
		return
	}
	promise, promiseErr := async.Make[transport.Inbound](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[transport.Inbound](ctx, promiseErr)
		return
	}
	future = promise.Future()
	var op *resumer
	op = newResumer(func() (done bool) {
		done = conn.readAttempt(op, promise)
		return
	})
	op.Wake()
	return
}

func (conn *connection) readAttempt(w transport.Waker, promise async.Promise[transport.Inbound]) (done bool) {
	p, allocErr := conn.inbound.Allocate(conn.readBufferSize)
	if allocErr != nil {
		conn.poison(allocErr)
		promise.Fail(allocErr)
		done = true
		return
	}
	conn.shim.bind(w)
	n, err := conn.engine.Read(p)
	if n < 0 {
		n = 0
	}
	conn.inbound.AllocatedWrote(n)
	if err == nil {
		promise.Succeed(transport.NewInbound(conn.inbound, n))
		done = true
		return
	}
	if errors.Is(err, io.EOF) {
		// peer sent its close signal: end of stream, not a failure
		promise.Fail(EOF)
		done = true
		return
	}
	if transport.IsWouldBlock(err) {
		if conn.shim.suspended {
			return
		}
		err = conn.misbehaved(errMetaOpRead)
		promise.Fail(err)
		done = true
		return
	}
	conn.poison(err)
	promise.Fail(err)
	done = true
	return
}

func (conn *connection) Write(p []byte) (future async.Future[int]) {
	ctx := conn.ctx
	if err := conn.usable(errMetaOpWrite); err != nil {
		future = async.FailedImmediately[int](ctx, err)
		return
	}
	if len(p) == 0 {
		future = async.SucceedImmediately[int](ctx, 0)
		return
	}
	promise, promiseErr := async.Make[int](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[int](ctx, promiseErr)
		return
	}
	future = promise.Future()
	var op *resumer
	op = newResumer(func() (done bool) {
		done = conn.writeAttempt(op, p, promise)
		return
	})
	op.Wake()
	return
}

func (conn *connection) writeAttempt(w transport.Waker, p []byte, promise async.Promise[int]) (done bool) {
	conn.shim.bind(w)
	n, err := conn.engine.Write(p)
	if err == nil {
		promise.Succeed(n)
		done = true
		return
	}
	if transport.IsWouldBlock(err) {
		if conn.shim.suspended {
			return
		}
		err = conn.misbehaved(errMetaOpWrite)
		promise.Fail(err)
		done = true
		return
	}
	conn.poison(err)
	promise.Fail(err)
	done = true
	return
}

func (conn *connection) Flush() (future async.Future[async.Void]) {
	ctx := conn.ctx
	if err := conn.usable(errMetaOpFlush); err != nil {
		future = async.FailedImmediately[async.Void](ctx, err)
		return
	}
	promise, promiseErr := async.Make[async.Void](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[async.Void](ctx, promiseErr)
		return
	}
	future = promise.Future()
	var op *resumer
	op = newResumer(func() (done bool) {
		done = conn.flushAttempt(op, promise)
		return
	})
	op.Wake()
	return
}

func (conn *connection) flushAttempt(w transport.Waker, promise async.Promise[async.Void]) (done bool) {
	conn.shim.bind(w)
	err := conn.engine.Flush()
	if err == nil {
		promise.Succeed(async.Void{})
		done = true
		return
	}
	if transport.IsWouldBlock(err) {
		if conn.shim.suspended {
			return
		}
		err = conn.misbehaved(errMetaOpFlush)
		promise.Fail(err)
		done = true
		return
	}
	conn.poison(err)
	promise.Fail(err)
	done = true
	return
}

func (conn *connection) usable(op string) (err error) {
	if conn.closed.Load() {
		err = errors.From(ErrClosed, errors.WithMeta(errMetaOpKey, op))
		return
	}
	if conn.deadErr != nil {
		err = errors.From(ErrClosed, errors.WithMeta(errMetaOpKey, op), errors.WithWrap(conn.deadErr))
		return
	}
	return
}

func (conn *connection) poison(cause error) {
	if conn.deadErr == nil {
		conn.deadErr = cause
	}
}

func (conn *connection) misbehaved(op string) (err error) {
	err = errors.From(
		ErrEngineMisbehaved,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
	)
	conn.poison(err)
	return
}
