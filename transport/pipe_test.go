package transport_test

import (
	"io"
	"testing"

	"github.com/brickingsoft/security/transport"
)

type countWaker struct {
	fired int
}

func (w *countWaker) Wake() {
	w.fired++
}

func TestPipeRoundTrip(t *testing.T) {
	a, b := transport.Pipe()
	w := &countWaker{}
	n, err := a.Write(w, []byte("ping"))
	if err != nil || n != 4 {
		t.Fatal(n, err)
	}
	p := make([]byte, 8)
	n, err = b.Read(w, p)
	if err != nil || n != 4 {
		t.Fatal(n, err)
	}
	if string(p[:4]) != "ping" {
		t.Fatal("read:", string(p[:n]))
	}
}

func TestPipeReadSuspends(t *testing.T) {
	a, b := transport.Pipe()
	w := &countWaker{}
	p := make([]byte, 8)
	_, err := b.Read(w, p)
	if !transport.IsWouldBlock(err) {
		t.Fatal("empty read:", err)
	}
	if w.fired != 0 {
		t.Fatal("woke before readiness")
	}
	if _, err = a.Write(&countWaker{}, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if w.fired != 1 {
		t.Fatal("wakes after write:", w.fired)
	}
	n, err := b.Read(w, p)
	if err != nil || n != 1 {
		t.Fatal(n, err)
	}
}

func TestPipeStalledReadWakesImmediately(t *testing.T) {
	a, b := transport.Pipe()
	_ = a
	b.StallReads(1)
	w := &countWaker{}
	p := make([]byte, 8)
	_, err := b.Read(w, p)
	if !transport.IsWouldBlock(err) {
		t.Fatal("stalled read:", err)
	}
	if w.fired != 1 {
		t.Fatal("stall must wake right away, fired:", w.fired)
	}
}

func TestPipeWriteQuota(t *testing.T) {
	a, b := transport.Pipe()
	a.SetWriteQuota(3)
	w := &countWaker{}
	n, err := a.Write(w, []byte("abcdef"))
	if err != nil || n != 3 {
		t.Fatal(n, err)
	}
	// quota exhausted: the writer parks until capacity returns
	n, err = a.Write(w, []byte("def"))
	if n != 0 || !transport.IsWouldBlock(err) {
		t.Fatal(n, err)
	}
	if w.fired != 0 {
		t.Fatal("woke without capacity")
	}
	a.GrowWriteQuota(16)
	if w.fired != 1 {
		t.Fatal("grow must wake the parked writer, fired:", w.fired)
	}
	n, err = a.Write(w, []byte("def"))
	if err != nil || n != 3 {
		t.Fatal(n, err)
	}
	p := make([]byte, 8)
	n, err = b.Read(w, p)
	if err != nil || string(p[:n]) != "abcdef" {
		t.Fatal(n, err, string(p[:n]))
	}
}

func TestPipeCloseEndsPeerRead(t *testing.T) {
	a, b := transport.Pipe()
	w := &countWaker{}
	p := make([]byte, 8)
	if _, err := b.Read(w, p); !transport.IsWouldBlock(err) {
		t.Fatal("empty read:", err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if w.fired != 1 {
		t.Fatal("close must wake the suspended reader, fired:", w.fired)
	}
	if _, err := b.Read(w, p); err != io.EOF {
		t.Fatal("read after peer close:", err)
	}
	if _, err := a.Write(w, []byte("x")); !transport.IsClosed(err) {
		t.Fatal("write after close:", err)
	}
}
