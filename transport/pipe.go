package transport

import (
	"io"
	"sync"
)

// Pipe returns a connected pair of in-memory streams. Bytes written to one
// end become readable on the other and wake a suspended reader. Both ends can
// script readiness (stalled operations, bounded write quotas) to exercise
// suspend/resume paths without a kernel socket.
func Pipe() (*PipeStream, *PipeStream) {
	core := new(pipeCore)
	a := &PipeStream{core: core, writeQuota: -1}
	b := &PipeStream{core: core, writeQuota: -1}
	a.peer = b
	b.peer = a
	return a, b
}

type pipeCore struct {
	mu sync.Mutex
}

type PipeStream struct {
	core        *pipeCore
	peer        *PipeStream
	buf         []byte
	readWaker   Waker
	writeWaker  Waker
	readStalls  int
	writeStalls int
	flushStalls int
	writeQuota  int
	closed      bool
}

func (s *PipeStream) Read(w Waker, p []byte) (n int, err error) {
	s.core.mu.Lock()
	if s.closed {
		s.core.mu.Unlock()
		err = ErrClosed
		return
	}
	if s.readStalls > 0 {
		s.readStalls--
		s.core.mu.Unlock()
		err = ErrWouldBlock
		// the stall is momentary: readiness returns immediately
		w.Wake()
		return
	}
	if len(s.buf) > 0 {
		n = copy(p, s.buf)
		s.buf = s.buf[n:]
		s.core.mu.Unlock()
		return
	}
	if s.peer.closed {
		s.core.mu.Unlock()
		err = io.EOF
		return
	}
	s.readWaker = w
	s.core.mu.Unlock()
	err = ErrWouldBlock
	return
}

func (s *PipeStream) Write(w Waker, p []byte) (n int, err error) {
	s.core.mu.Lock()
	if s.closed || s.peer.closed {
		s.core.mu.Unlock()
		err = ErrClosed
		return
	}
	if s.writeStalls > 0 {
		s.writeStalls--
		s.core.mu.Unlock()
		err = ErrWouldBlock
		w.Wake()
		return
	}
	n = len(p)
	if s.writeQuota == 0 {
		s.writeWaker = w
		s.core.mu.Unlock()
		n = 0
		err = ErrWouldBlock
		return
	}
	if s.writeQuota > 0 && n > s.writeQuota {
		n = s.writeQuota
	}
	if s.writeQuota > 0 {
		s.writeQuota -= n
	}
	s.peer.buf = append(s.peer.buf, p[:n]...)
	wake := s.peer.takeReadWaker()
	s.core.mu.Unlock()
	if wake != nil {
		wake.Wake()
	}
	return
}

func (s *PipeStream) Flush(w Waker) (err error) {
	s.core.mu.Lock()
	if s.closed {
		s.core.mu.Unlock()
		err = ErrClosed
		return
	}
	if s.flushStalls > 0 {
		s.flushStalls--
		s.core.mu.Unlock()
		err = ErrWouldBlock
		w.Wake()
		return
	}
	s.core.mu.Unlock()
	return
}

func (s *PipeStream) Close() (err error) {
	s.core.mu.Lock()
	if s.closed {
		s.core.mu.Unlock()
		err = ErrClosed
		return
	}
	s.closed = true
	wakes := make([]Waker, 0, 2)
	if wake := s.peer.takeReadWaker(); wake != nil {
		wakes = append(wakes, wake)
	}
	if wake := s.peer.takeWriteWaker(); wake != nil {
		wakes = append(wakes, wake)
	}
	s.core.mu.Unlock()
	for _, wake := range wakes {
		wake.Wake()
	}
	return
}

// StallReads makes the next n reads report not-ready once each, waking the
// suspended operation right away. Used to script readiness transitions.
func (s *PipeStream) StallReads(n int) {
	s.core.mu.Lock()
	s.readStalls += n
	s.core.mu.Unlock()
}

func (s *PipeStream) StallWrites(n int) {
	s.core.mu.Lock()
	s.writeStalls += n
	s.core.mu.Unlock()
}

func (s *PipeStream) StallFlushes(n int) {
	s.core.mu.Lock()
	s.flushStalls += n
	s.core.mu.Unlock()
}

// SetWriteQuota caps the bytes this end accepts before writes report
// not-ready. A negative quota lifts the cap.
func (s *PipeStream) SetWriteQuota(n int) {
	s.core.mu.Lock()
	s.writeQuota = n
	s.core.mu.Unlock()
}

// GrowWriteQuota adds capacity and wakes a writer suspended on the quota.
func (s *PipeStream) GrowWriteQuota(n int) {
	s.core.mu.Lock()
	if s.writeQuota < 0 {
		s.writeQuota = 0
	}
	s.writeQuota += n
	wake := s.takeWriteWaker()
	s.core.mu.Unlock()
	if wake != nil {
		wake.Wake()
	}
}

func (s *PipeStream) takeReadWaker() (w Waker) {
	w = s.readWaker
	s.readWaker = nil
	return
}

func (s *PipeStream) takeWriteWaker() (w Waker) {
	w = s.writeWaker
	s.writeWaker = nil
	return
}
