package security

import (
	"context"

	"github.com/brickingsoft/errors"
)

var (
	// EOF reports the peer's clean close signal on a read future. It is a
	// successful end of stream, distinct from any transport error.
	EOF = errors.Define("security: end of stream")
	// ErrClosed reports an operation on a connection that was closed or
	// poisoned by an earlier terminal error.
	ErrClosed = errors.Define("security: connection closed")
	// ErrEngineMisbehaved reports a would-block from the engine while the
	// shim recorded no transport suspension. Retrying such a call could spin
	// forever, so the connection is failed instead.
	ErrEngineMisbehaved = errors.Define("security: engine reported would block without transport suspension")
)

func IsEOF(err error) bool {
	return errors.Is(err, EOF)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, EOF) ||
		errors.Is(err, context.Canceled)
}

func IsEngineMisbehaved(err error) bool {
	return errors.Is(err, ErrEngineMisbehaved)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "security"
)

const (
	errMetaOpKey       = "op"
	errMetaOpHandshake = "handshake"
	errMetaOpRead      = "read"
	errMetaOpWrite     = "write"
	errMetaOpFlush     = "flush"
	errMetaOpClose     = "close"
)
