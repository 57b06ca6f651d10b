package codec_test

import (
	"context"
	"testing"

	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security"
	"github.com/brickingsoft/security/transport"
)

func testContext(t *testing.T) (context.Context, func()) {
	t.Helper()
	exec, execErr := rxp.New()
	if execErr != nil {
		t.Fatal(execErr)
	}
	ctx := rxp.With(context.Background(), exec)
	return ctx, func() {
		_ = exec.Close()
	}
}

// fakeReader completes one read per buffered chunk, then ends the stream.
func newFakeReader(ctx context.Context, chunks ...[]byte) *fakeReader {
	return &fakeReader{
		ctx:    ctx,
		buf:    transport.NewInboundBuffer(),
		chunks: chunks,
	}
}

type fakeReader struct {
	ctx    context.Context
	buf    transport.InboundBuffer
	chunks [][]byte
}

func (r *fakeReader) Read() (future async.Future[transport.Inbound]) {
	if len(r.chunks) == 0 {
		future = async.FailedImmediately[transport.Inbound](r.ctx, security.EOF)
		return
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	_, _ = r.buf.Write(chunk)
	future = async.SucceedImmediately[transport.Inbound](r.ctx, transport.NewInbound(r.buf, len(chunk)))
	return
}

// fakeWriter accepts at most quota bytes per call, exercising the
// partial-write completion in Encode.
func newFakeWriter(ctx context.Context, quota int) *fakeWriter {
	return &fakeWriter{ctx: ctx, quota: quota}
}

type fakeWriter struct {
	ctx   context.Context
	quota int
	wrote []byte
}

func (w *fakeWriter) Write(p []byte) (future async.Future[int]) {
	n := len(p)
	if w.quota > 0 && n > w.quota {
		n = w.quota
	}
	w.wrote = append(w.wrote, p[:n]...)
	future = async.SucceedImmediately[int](w.ctx, n)
	return
}
