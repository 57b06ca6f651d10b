// Package securitytest provides a deliberately small Engine implementation
// for exercising the security layer without a TLS library.
//
// The frame engine is not TLS. It speaks a fixed pre-shared-key protocol:
// a one-frame hello in each direction, then length-prefixed records sealed
// with chacha20poly1305 and per-direction counter nonces. A distinct close
// frame carries the close signal, so a peer's clean shutdown surfaces as
// io.EOF while a torn transport surfaces as io.ErrUnexpectedEOF. What it
// does honor, precisely, is the Engine contract: shim errors propagate
// unchanged, partially flushed records stay buffered until a retry
// completes them, and no byte is ever sealed twice.
package securitytest

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrBadRecord reports an undecryptable or malformed frame.
	ErrBadRecord = errors.Define("securitytest: bad record")
	// ErrBadHello reports a handshake frame the peer did not expect.
	ErrBadHello = errors.Define("securitytest: bad hello")
)

const (
	defaultMaxRecord = 1024
	maxFrameBody     = 1 << 16
)

type options struct {
	key       [32]byte
	maxRecord int
	misbehave bool
}

type Option func(*options)

// WithKey replaces the default all-zero pre-shared key.
func WithKey(key [32]byte) Option {
	return func(opts *options) {
		opts.key = key
	}
}

// WithMaxRecord caps the plaintext bytes a single record carries. Writes
// larger than the cap are partially accepted, which is how tests exercise
// the caller-side retry contract.
func WithMaxRecord(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxRecord = n
		}
	}
}

// Misbehaving makes every engine call report would-block without touching
// the shim, which a correct adapter must refuse to retry.
func Misbehaving() Option {
	return func(opts *options) {
		opts.misbehave = true
	}
}
