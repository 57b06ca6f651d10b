package security_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/security"
	"github.com/brickingsoft/security/securitytest"
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

// establish handshakes a client/server pair over an in-memory pipe.
func establish(t *testing.T, ctx context.Context, cliOpts, srvOpts []securitytest.Option) (cli, srv security.Connection, cliStream, srvStream *transport.PipeStream) {
	t.Helper()
	cliStream, srvStream = transport.Pipe()

	cliFuture := security.NewConnector(securitytest.NewClientBuilder(cliOpts...)).Connect(ctx, "example", cliStream)
	srvFuture := security.NewAcceptor(securitytest.NewServerBuilder(srvOpts...)).Accept(ctx, srvStream)

	var err error
	srv, err = async.AwaitableFuture(srvFuture).Await()
	if err != nil {
		t.Fatal("accept:", err)
	}
	cli, err = async.AwaitableFuture(cliFuture).Await()
	if err != nil {
		t.Fatal("connect:", err)
	}
	return
}

func TestConnectAndAccept(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)
	if _, err := async.AwaitableFuture(cli.Handshake()).Await(); err != nil {
		t.Fatal(err)
	}
	if _, err := async.AwaitableFuture(srv.Handshake()).Await(); err != nil {
		t.Fatal(err)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)

	msg := []byte("hello over frames")
	n, err := async.AwaitableFuture(cli.Write(msg)).Await()
	if err != nil || n != len(msg) {
		t.Fatal(n, err)
	}
	if _, err = async.AwaitableFuture(cli.Flush()).Await(); err != nil {
		t.Fatal(err)
	}

	inbound, rErr := async.AwaitableFuture(srv.Read()).Await()
	if rErr != nil {
		t.Fatal(rErr)
	}
	got, nErr := inbound.Reader().Next(inbound.Received())
	if nErr != nil {
		t.Fatal(nErr)
	}
	if !bytes.Equal(got, msg) {
		t.Fatal("read:", string(got))
	}
}

func TestReadSuspendsUntilData(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, srvStream := establish(t, ctx, nil, nil)

	// the server suspends on an empty stream; the client's write resumes it
	srvStream.StallReads(2)
	future := srv.Read()

	msg := []byte("late arrival")
	if _, err := async.AwaitableFuture(cli.Write(msg)).Await(); err != nil {
		t.Fatal(err)
	}
	inbound, err := async.AwaitableFuture(future).Await()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := inbound.Reader().Next(inbound.Received())
	if !bytes.Equal(got, msg) {
		t.Fatal("read:", string(got))
	}
}

func TestZeroByteWrite(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, _, _, _ := establish(t, ctx, nil, nil)
	n, err := async.AwaitableFuture(cli.Write(nil)).Await()
	if err != nil || n != 0 {
		t.Fatal(n, err)
	}
}

func TestWriteResumesOnCapacity(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, cliStream, _ := establish(t, ctx, nil, nil)

	msg := []byte("bounded")
	// room for part of the sealed record only: the writer must park, keep
	// the record buffered, and deliver every byte exactly once on resume
	cliStream.SetWriteQuota(10)
	future := cli.Write(msg)
	cliStream.GrowWriteQuota(1 << 16)

	n, err := async.AwaitableFuture(future).Await()
	if err != nil || n != len(msg) {
		t.Fatal(n, err)
	}
	inbound, rErr := async.AwaitableFuture(srv.Read()).Await()
	if rErr != nil {
		t.Fatal(rErr)
	}
	got, _ := inbound.Reader().Next(inbound.Received())
	if !bytes.Equal(got, msg) {
		t.Fatal("read:", string(got))
	}
}

func TestPartialWriteReported(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, []securitytest.Option{securitytest.WithMaxRecord(4)}, nil)

	msg := []byte("abcdefghij")
	total := 0
	for total < len(msg) {
		n, err := async.AwaitableFuture(cli.Write(msg[total:])).Await()
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 || n > 4 {
			t.Fatal("accepted:", n)
		}
		total += n
	}

	got := make([]byte, 0, len(msg))
	for len(got) < len(msg) {
		inbound, err := async.AwaitableFuture(srv.Read()).Await()
		if err != nil {
			t.Fatal(err)
		}
		p, _ := inbound.Reader().Next(inbound.Received())
		got = append(got, p...)
	}
	if !bytes.Equal(got, msg) {
		t.Fatal("reassembled:", string(got))
	}
}

func TestCloseWriteSignalsEndOfStream(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)

	if _, err := async.AwaitableFuture(cli.CloseWrite()).Await(); err != nil {
		t.Fatal(err)
	}
	_, err := async.AwaitableFuture(srv.Read()).Await()
	if !security.IsEOF(err) {
		t.Fatal("read after peer close signal:", err)
	}
	// the read side of the closer stays open
	msg := []byte("still here")
	if _, err = async.AwaitableFuture(srv.Write(msg)).Await(); err != nil {
		t.Fatal(err)
	}
	inbound, rErr := async.AwaitableFuture(cli.Read()).Await()
	if rErr != nil {
		t.Fatal(rErr)
	}
	got, _ := inbound.Reader().Next(inbound.Received())
	if !bytes.Equal(got, msg) {
		t.Fatal("read:", string(got))
	}
}

func TestMisbehavingEngineFailsHandshake(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cliStream, _ := transport.Pipe()

	future := security.NewConnector(securitytest.NewClientBuilder(securitytest.Misbehaving())).Connect(ctx, "example", cliStream)
	_, err := async.AwaitableFuture(future).Await()
	if !security.IsEngineMisbehaved(err) {
		t.Fatal("handshake:", err)
	}
}

func TestPoisonedConnectionStaysClosed(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, srvStream := establish(t, ctx, nil, nil)
	_ = cli

	// tear the transport out from under the server's engine
	_ = srvStream.Close()
	if _, err := async.AwaitableFuture(srv.Read()).Await(); err == nil {
		t.Fatal("read on torn transport must fail")
	}
	if _, err := async.AwaitableFuture(srv.Write([]byte("x"))).Await(); !security.IsClosed(err) {
		t.Fatal("poisoned write:", err)
	}
}

func TestCloseThenUse(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)

	if _, err := async.AwaitableFuture(cli.Close()).Await(); err != nil {
		t.Fatal(err)
	}
	if _, err := async.AwaitableFuture(cli.Write([]byte("x"))).Await(); !security.IsClosed(err) {
		t.Fatal("write after close:", err)
	}
	if _, err := async.AwaitableFuture(cli.Close()).Await(); !security.IsClosed(err) {
		t.Fatal("double close:", err)
	}
	// close carried the peer's close signal, so the server sees end of stream
	_, err := async.AwaitableFuture(srv.Read()).Await()
	if !security.IsEOF(err) {
		t.Fatal("peer read after close:", err)
	}
}

func TestAdaptToReadWriteCloser(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)
	bc := security.AdaptToReadWriteCloser(cli)

	msg := []byte("blocking out")
	if n, err := bc.Write(msg); err != nil || n != len(msg) {
		t.Fatal(n, err)
	}
	inbound, err := async.AwaitableFuture(srv.Read()).Await()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := inbound.Reader().Next(inbound.Received())
	if !bytes.Equal(got, msg) {
		t.Fatal("read:", string(got))
	}

	reply := []byte("blocking back")
	if _, err = async.AwaitableFuture(srv.Write(reply)).Await(); err != nil {
		t.Fatal(err)
	}
	// a small buffer forces staged bytes to be served across calls
	p := make([]byte, 5)
	var back []byte
	for len(back) < len(reply) {
		n, rErr := bc.Read(p)
		if rErr != nil {
			t.Fatal(rErr)
		}
		back = append(back, p[:n]...)
	}
	if !bytes.Equal(back, reply) {
		t.Fatal("back:", string(back))
	}
	if err = bc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSetInboundBuffer(t *testing.T) {
	ctx, closer := testContext(t)
	defer closer()
	cli, srv, _, _ := establish(t, ctx, nil, nil)
	srv.SetInboundBuffer(16)

	msg := bytes.Repeat([]byte("a"), 64)
	total := 0
	for total < len(msg) {
		n, err := async.AwaitableFuture(cli.Write(msg[total:])).Await()
		if err != nil {
			t.Fatal(err)
		}
		total += n
	}
	got := 0
	for got < len(msg) {
		inbound, err := async.AwaitableFuture(srv.Read()).Await()
		if err != nil {
			t.Fatal(err)
		}
		inbound.Reader().Discard(inbound.Received())
		got += inbound.Received()
	}
	if got != len(msg) {
		t.Fatal("received:", got)
	}
}
