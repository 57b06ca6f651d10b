package security

import (
	"context"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

// NewConnector wraps client engine configuration into an asynchronous
// connect entry point.
func NewConnector(builder ClientEngineBuilder) *Connector {
	return &Connector{builder: builder}
}

type Connector struct {
	builder ClientEngineBuilder
}

// Connect builds a client engine over stream and performs the handshake,
// suspending as often as the transport requires. serverName is the name the
// engine verifies certificates against. The future yields the established
// connection or the engine's native failure; ctx must carry rxp executors.
func (c *Connector) Connect(ctx context.Context, serverName string, stream transport.Stream) (future async.Future[Connection]) {
	future = handshake(ctx, stream, func(shim *ioShim) (Engine, error) {
		return c.builder.Client(shim, serverName)
	})
	return
}

// NewAcceptor wraps server engine configuration into an asynchronous accept
// entry point.
func NewAcceptor(builder ServerEngineBuilder) *Acceptor {
	return &Acceptor{builder: builder}
}

type Acceptor struct {
	builder ServerEngineBuilder
}

// Accept is the server-side counterpart of Connector.Connect.
func (a *Acceptor) Accept(ctx context.Context, stream transport.Stream) (future async.Future[Connection]) {
	future = handshake(ctx, stream, func(shim *ioShim) (Engine, error) {
		return a.builder.Server(shim)
	})
	return
}

func handshake(ctx context.Context, stream transport.Stream, build func(shim *ioShim) (Engine, error)) (future async.Future[Connection]) {
	shim := newIOShim(stream)
	engine, buildErr := build(shim)
	if buildErr != nil {
		future = async.FailedImmediately[Connection](ctx, errors.New(
			"engine construction failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpHandshake),
			errors.WithWrap(buildErr),
		))
		return
	}
	promise, promiseErr := async.Make[Connection](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[Connection](ctx, promiseErr)
		return
	}
	future = promise.Future()
	conn := newConnection(ctx, stream, engine, shim)
	newHandshakeDriver(conn).drive(promise)
	return
}
