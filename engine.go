package security

import (
	"io"
)

// EngineIO is the synchronous byte stream an Engine performs its record I/O
// against. The security layer supplies the implementation (a shim over the
// asynchronous transport); engines must treat its errors as opaque and
// propagate them unchanged, in particular the would-block error
// (transport.ErrWouldBlock) and io.EOF.
type EngineIO interface {
	io.Reader
	io.Writer
	Flush() (err error)
}

// Engine is a synchronous TLS session: handshake-in-progress or established,
// mutated in place by every call. All methods run on the calling goroutine
// and never block; when the EngineIO cannot make progress the engine returns
// the would-block error it received from it.
//
// Read yields decrypted bytes, io.EOF on the peer's clean close. Write seals
// plaintext and may accept fewer bytes than offered; bytes it has accepted
// are buffered internally and are completed by retrying, never dropped.
// CloseNotify drives the engine's close signal to the peer. An Engine is not
// safe for concurrent use; the connection guarantees one call in flight.
type Engine interface {
	Handshake() (err error)
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Flush() (err error)
	CloseNotify() (err error)
}

// ClientEngineBuilder constructs client engines from connector configuration.
// serverName is the name certificates are verified against. The builder is a
// configuration passthrough: identity loading and protocol pinning belong to
// the engine's own config type.
type ClientEngineBuilder interface {
	Client(eio EngineIO, serverName string) (engine Engine, err error)
}

// ServerEngineBuilder constructs server engines from acceptor configuration.
type ServerEngineBuilder interface {
	Server(eio EngineIO) (engine Engine, err error)
}
