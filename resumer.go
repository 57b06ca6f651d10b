package security

import (
	"sync/atomic"
)

const (
	resumerIdle int32 = iota
	resumerRunning
	resumerQueued
	resumerDone
)

func newResumer(attempt func() (done bool)) *resumer {
	return &resumer{attempt: attempt}
}

// resumer serializes the attempts of one asynchronous operation. It is the
// waker bound into the shim: a Wake during a running attempt collapses into a
// single queued re-attempt, a Wake on an idle operation runs it on the waking
// goroutine, and Wakes after completion are ignored. An attempt either
// finishes the operation (done) or returns suspended with this waker
// registered at the transport.
type resumer struct {
	attempt func() (done bool)
	state   atomic.Int32
}

func (r *resumer) Wake() {
	for {
		switch r.state.Load() {
		case resumerIdle:
			if r.state.CompareAndSwap(resumerIdle, resumerRunning) {
				r.run()
				return
			}
		case resumerRunning:
			if r.state.CompareAndSwap(resumerRunning, resumerQueued) {
				return
			}
		default:
			return
		}
	}
}

func (r *resumer) run() {
	for {
		if r.attempt() {
			r.state.Store(resumerDone)
			return
		}
		// suspended: hand control back unless a wake raced in
		if r.state.CompareAndSwap(resumerRunning, resumerIdle) {
			return
		}
		r.state.Store(resumerRunning)
	}
}
