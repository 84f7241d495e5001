// Package link implements the Link abstraction from the device-interaction
// core: the byte-level transport a CommHandler opens, sends frames over, and
// polls for incoming frames. Everything above this package is oblivious to
// the actual wire transport - it only ever sees Send/Receive/IsOpen.
package link

import "errors"

// ErrNotOpen is returned by Send when called on a Link that has not been
// (successfully) opened.
var ErrNotOpen = errors.New("link: not open")

// Link is the byte-level transport consumed by a CommHandler. Open takes an
// implementation-specific configuration value; Receive is non-blocking and
// reports false when no frame is pending, consistent with the core's
// single-threaded, non-suspending process() model.
type Link interface {
	// Open prepares the link for use. cfg is implementation-specific -
	// UDPConfig for UDPLink, nil for NoneLink and DummyLink.
	Open(cfg any) error
	// Close releases any resources. Close on an already-closed Link is a
	// no-op.
	Close() error
	// Send transmits a single frame. Returns ErrNotOpen if the link has not
	// been opened.
	Send(frame []byte) error
	// Receive returns the next pending frame, if any. It never blocks.
	Receive() (frame []byte, ok bool)
	// IsOpen reports whether the link is currently open.
	IsOpen() bool
}

// NoneLink is the null transport: Open is a no-op, it never reports itself
// open, and it rejects every send. Used as the zero-value link_type, so a
// bare Config{} can be handed to NewHandler/InitComm without a real
// transport wired up.
type NoneLink struct{}

// Open is a no-op: there is nothing to open.
func (NoneLink) Open(any) error { return nil }

// Close is a no-op.
func (NoneLink) Close() error { return nil }

// Send always fails.
func (NoneLink) Send([]byte) error { return ErrNotOpen }

// Receive never has anything pending.
func (NoneLink) Receive() ([]byte, bool) { return nil, false }

// IsOpen always reports false.
func (NoneLink) IsOpen() bool { return false }
