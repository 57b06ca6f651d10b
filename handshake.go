package security

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

type handshakeState int

const (
	handshakeInProgress handshakeState = iota
	handshakeDone
	handshakeFailed
)

func newHandshakeDriver(conn *connection) *handshakeDriver {
	return &handshakeDriver{conn: conn}
}

// handshakeDriver steps the engine's handshake until it completes, fails, or
// must suspend. The engine keeps its own progress between steps, so a
// suspended handshake resumes by simply stepping again.
type handshakeDriver struct {
	conn  *connection
	state handshakeState
}

func (driver *handshakeDriver) drive(promise async.Promise[Connection]) {
	var op *resumer
	op = newResumer(func() (done bool) {
		done = driver.step(op, promise)
		return
	})
	op.Wake()
}

func (driver *handshakeDriver) step(w transport.Waker, promise async.Promise[Connection]) (done bool) {
	conn := driver.conn
	conn.shim.bind(w)
	err := conn.engine.Handshake()
	if err == nil {
		driver.state = handshakeDone
		conn.handshakeComplete.Store(true)
		promise.Succeed(conn)
		done = true
		return
	}
	if transport.IsWouldBlock(err) {
		if conn.shim.suspended {
			// genuine suspension: the waker re-invokes this step
			return
		}
		err = errors.From(
			ErrEngineMisbehaved,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpHandshake),
		)
	}
	driver.state = handshakeFailed
	conn.handshakeComplete.Store(true)
	conn.handshakeErr = err
	conn.poison(err)
	promise.Fail(err)
	done = true
	return
}
