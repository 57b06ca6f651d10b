package security

import (
	"io"

	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security/transport"
)

// AdaptToReadWriteCloser exposes a connection to blocking callers. Each call
// awaits the underlying asynchronous operation, so the usual caller contract
// holds: one operation per direction at a time.
func AdaptToReadWriteCloser(conn Connection) io.ReadWriteCloser {
	return &blockingConn{inner: conn}
}

type blockingConn struct {
	inner  Connection
	staged transport.InboundReader
}

func (conn *blockingConn) Read(b []byte) (n int, err error) {
	if len(b) == 0 {
		return
	}
	// bytes a previous completion left staged are served before more I/O
	if conn.staged != nil && conn.staged.Length() > 0 {
		n, err = conn.staged.Read(b)
		return
	}
	inbound, rErr := async.AwaitableFuture(conn.inner.Read()).Await()
	if rErr != nil {
		if IsEOF(rErr) {
			err = io.EOF
			return
		}
		err = rErr
		return
	}
	if inbound.Received() == 0 {
		return
	}
	conn.staged = inbound.Reader()
	n, err = conn.staged.Read(b)
	return
}

func (conn *blockingConn) Write(b []byte) (n int, err error) {
	for n < len(b) {
		wn, wErr := async.AwaitableFuture(conn.inner.Write(b[n:])).Await()
		if wErr != nil {
			err = wErr
			return
		}
		n += wn
	}
	return
}

func (conn *blockingConn) Close() error {
	_, err := async.AwaitableFuture(conn.inner.Close()).Await()
	return err
}
