// Package security bridges a synchronous TLS engine onto asynchronous
// streams.
//
// The engine (an Engine implementation, typically a binding to a native TLS
// library) only knows how to perform blocking-style handshake, read and write
// calls against a synchronous byte stream. This package hands it a shim over
// a non-blocking transport.Stream: when the transport is not ready the shim
// reports would-block, the in-flight operation suspends, and a waker
// re-drives the engine once the transport wakes up. Callers only ever see
// rxp/async futures.
//
// The TLS protocol itself stays inside the engine. This package moves bytes,
// translates readiness, and owns nothing cryptographic.
package security
