package security

import (
	"context"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

var errEarlyCloseWrite = errors.Define("security: CloseWrite called before handshake complete")

func (conn *connection) CloseWrite() (future async.Future[async.Void]) {
	ctx := conn.ctx
	if !conn.handshakeComplete.Load() {
		future = async.FailedImmediately[async.Void](ctx, errEarlyCloseWrite)
		return
	}
	if err := conn.usable(errMetaOpClose); err != nil {
		future = async.FailedImmediately[async.Void](ctx, err)
		return
	}
	future = conn.closeNotify()
	return
}

// closeNotify drives the engine's close signal through the shim, suspending
// and resuming like any other operation. The result is remembered: the
// signal is sent at most once per connection.
func (conn *connection) closeNotify() (future async.Future[async.Void]) {
	ctx := conn.ctx
	if conn.closeNotifySent {
		if conn.closeNotifyErr != nil {
			future = async.FailedImmediately[async.Void](ctx, conn.closeNotifyErr)
		} else {
			future = async.SucceedImmediately[async.Void](ctx, async.Void{})
		}
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
		done = conn.closeNotifyAttempt(op, promise)
		return
	})
	op.Wake()
	return
}

func (conn *connection) closeNotifyAttempt(w transport.Waker, promise async.Promise[async.Void]) (done bool) {
	conn.shim.bind(w)
	err := conn.engine.CloseNotify()
	if err == nil {
		conn.closeNotifySent = true
		promise.Succeed(async.Void{})
		done = true
		return
	}
	if transport.IsWouldBlock(err) {
		if conn.shim.suspended {
			return
		}
		err = conn.misbehaved(errMetaOpClose)
		conn.closeNotifySent = true
		conn.closeNotifyErr = err
		promise.Fail(err)
		done = true
		return
	}
	conn.closeNotifySent = true
	conn.closeNotifyErr = err
	conn.poison(err)
	promise.Fail(err)
	done = true
	return
}

// Close sends the close signal when the session allows it, then closes the
// transport. Dropping a connection without Close sends nothing; that is the
// accepted teardown semantic.
func (conn *connection) Close() (future async.Future[async.Void]) {
	ctx := conn.ctx
	if conn.closed.Swap(true) {
		future = async.FailedImmediately[async.Void](ctx, errors.From(ErrClosed, errors.WithMeta(errMetaOpKey, errMetaOpClose)))
		return
	}
	if !conn.handshakeComplete.Load() || conn.deadErr != nil {
		// the engine is in no state to speak: release the transport only
		future = conn.closeStream(ctx, nil)
		return
	}
	promise, promiseErr := async.Make[async.Void](ctx, async.WithWait())
	if promiseErr != nil {
		future = conn.closeStream(ctx, nil)
		return
	}
	future = promise.Future()
	conn.closeNotify().OnComplete(func(ctx context.Context, entry async.Void, cause error) {
		conn.closeStream(ctx, cause).OnComplete(func(ctx context.Context, entry async.Void, cause error) {
			if cause != nil {
				promise.Fail(cause)
				return
			}
			promise.Succeed(async.Void{})
			return
		})
	})
	return
}

func (conn *connection) closeStream(ctx context.Context, alertErr error) (future async.Future[async.Void]) {
	conn.inbound.Close()
	closeErr := conn.stream.Close()
	if closeErr != nil && transport.IsClosed(closeErr) {
		closeErr = nil
	}
	if alertErr == nil && closeErr == nil {
		future = async.SucceedImmediately[async.Void](ctx, async.Void{})
		return
	}
	err := alertErr
	if err == nil {
		err = closeErr
	} else if closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	future = async.FailedImmediately[async.Void](ctx, err)
	return
}
