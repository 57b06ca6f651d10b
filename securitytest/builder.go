package securitytest

import (
	"github.com/brickingsoft/security"
)

// NewClientBuilder constructs a client-side frame engine builder.
func NewClientBuilder(opts ...Option) security.ClientEngineBuilder {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return clientBuilder{opts: o}
}

// NewServerBuilder constructs a server-side frame engine builder.
func NewServerBuilder(opts ...Option) security.ServerEngineBuilder {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return serverBuilder{opts: o}
}

type clientBuilder struct {
	opts options
}

func (b clientBuilder) Client(eio security.EngineIO, serverName string) (security.Engine, error) {
	return newEngine(eio, true, serverName, b.opts)
}

type serverBuilder struct {
	opts options
}

func (b serverBuilder) Server(eio security.EngineIO) (security.Engine, error) {
	return newEngine(eio, false, "", b.opts)
}
