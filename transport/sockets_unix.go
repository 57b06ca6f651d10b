//go:build unix

package transport

import (
	"io"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// NewSocketStream wraps a file descriptor already placed in non-blocking mode
// (see unix.SetNonblock). EAGAIN surfaces as ErrWouldBlock with a poll-based
// wakeup registered for the bound waker. The descriptor is owned by the
// stream once wrapped and closed with it.
func NewSocketStream(fd int) Stream {
	return &socketStream{fd: fd}
}

type socketStream struct {
	fd     int
	closed bool
}

func (s *socketStream) Read(w Waker, p []byte) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}
	for {
		n, err = unix.Read(s.fd, p)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			n = 0
			go s.wait(w, unix.POLLIN)
			err = errors.From(ErrWouldBlock, errors.WithWrap(err))
			return
		}
		n = 0
		return
	}
	if n == 0 && len(p) > 0 {
		err = io.EOF
	}
	return
}

func (s *socketStream) Write(w Waker, p []byte) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}
	for {
		n, err = unix.Write(s.fd, p)
		if err == nil {
			return
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			n = 0
			go s.wait(w, unix.POLLOUT)
			err = errors.From(ErrWouldBlock, errors.WithWrap(err))
			return
		}
		n = 0
		return
	}
}

func (s *socketStream) Flush(_ Waker) (err error) {
	// kernel sockets have no userspace write buffer to drain
	return
}

func (s *socketStream) Close() (err error) {
	if s.closed {
		err = ErrClosed
		return
	}
	s.closed = true
	err = unix.Close(s.fd)
	return
}

func (s *socketStream) wait(w Waker, events int16) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil || !errors.Is(err, unix.EINTR) {
			break
		}
	}
	w.Wake()
}
