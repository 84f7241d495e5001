// Package comm implements the CommHandler abstraction from the
// device-interaction core: a thin state machine sitting above a Link that
// tracks exactly one outstanding request at a time and detects response
// timeouts against an injected clock.
package comm

import (
	"errors"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
)

// DefaultResponseTimeout is used when Config.ResponseTimeout is zero.
const DefaultResponseTimeout = 1 * time.Second

// ErrNoLink is returned by Open when called with a nil Link.
var ErrNoLink = errors.New("comm: no link provided")

// ErrAlreadyWaiting is returned by SendRequest when a response is already
// outstanding. The caller (Device Handler) must wait for ResponseAvailable,
// HasTimedOut, or call Reset before sending another request.
var ErrAlreadyWaiting = errors.New("comm: a request is already outstanding")

// state is the internal machine: idle -> waitingResponse -> {responseAvailable | timedOut}.
type state int

const (
	stateIdle state = iota
	stateWaitingResponse
	stateResponseAvailable
	stateTimedOut
)

// Config configures a CommHandler.
type Config struct {
	// ResponseTimeout bounds how long SendRequest waits for a reply before
	// HasTimedOut starts reporting true. Defaults to DefaultResponseTimeout.
	ResponseTimeout time.Duration
	// Now supplies the current time. Defaults to time.Now. Tests inject a
	// fake clock here to deterministically exercise timeout behavior.
	Now func() time.Time
}

// CommHandler manages exactly one outstanding request/response exchange
// over a Link at a time.
type CommHandler struct {
	cfg  Config
	l    link.Link
	st   state
	sent time.Time
	resp []byte
}

// New creates a CommHandler with the given configuration. Zero-value fields
// fall back to their defaults.
func New(cfg Config) *CommHandler {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CommHandler{cfg: cfg, st: stateIdle}
}

// Open binds l as the transport and resets the handler to idle.
func (h *CommHandler) Open(l link.Link, linkCfg any) error {
	if l == nil {
		return ErrNoLink
	}
	if err := l.Open(linkCfg); err != nil {
		return err
	}
	h.l = l
	h.st = stateIdle
	h.resp = nil
	return nil
}

// Close closes the underlying link and resets all state.
func (h *CommHandler) Close() error {
	var err error
	if h.l != nil {
		err = h.l.Close()
	}
	h.l = nil
	h.st = stateIdle
	h.resp = nil
	return err
}

// IsOpen reports whether a link is bound and open.
func (h *CommHandler) IsOpen() bool {
	return h.l != nil && h.l.IsOpen()
}

// SendRequest transmits frame and transitions to waitingResponse. It fails
// if a response is already outstanding.
func (h *CommHandler) SendRequest(frame []byte) error {
	if h.l == nil {
		return ErrNoLink
	}
	if h.st == stateWaitingResponse {
		return ErrAlreadyWaiting
	}
	if err := h.l.Send(frame); err != nil {
		return err
	}
	h.st = stateWaitingResponse
	h.sent = h.cfg.Now()
	h.resp = nil
	return nil
}

// Process polls the link for a pending frame and checks the response
// timeout. It performs no I/O beyond a single non-blocking Receive, keeping
// with the core's non-suspending tick model.
func (h *CommHandler) Process(now time.Time) {
	if h.l == nil || h.st != stateWaitingResponse {
		return
	}
	if frame, ok := h.l.Receive(); ok {
		h.resp = frame
		h.st = stateResponseAvailable
		return
	}
	if now.Sub(h.sent) >= h.cfg.ResponseTimeout {
		h.st = stateTimedOut
	}
}

// WaitingResponse reports whether a request has been sent and no response
// or timeout has been observed yet.
func (h *CommHandler) WaitingResponse() bool {
	return h.st == stateWaitingResponse
}

// ResponseAvailable reports whether a response frame is ready to be
// collected with GetResponse.
func (h *CommHandler) ResponseAvailable() bool {
	return h.st == stateResponseAvailable
}

// HasTimedOut reports whether the outstanding request exceeded
// ResponseTimeout without a reply.
func (h *CommHandler) HasTimedOut() bool {
	return h.st == stateTimedOut
}

// ClearTimeout acknowledges an observed timeout and returns the handler to
// idle, ready to accept a new SendRequest.
func (h *CommHandler) ClearTimeout() {
	if h.st == stateTimedOut {
		h.st = stateIdle
	}
}

// GetResponse returns the pending response frame and returns the handler to
// idle. ok is false if no response is available.
func (h *CommHandler) GetResponse() (frame []byte, ok bool) {
	if h.st != stateResponseAvailable {
		return nil, false
	}
	frame = h.resp
	h.resp = nil
	h.st = stateIdle
	return frame, true
}

// Reset discards any outstanding request/response/timeout and returns the
// handler to idle without touching the link.
func (h *CommHandler) Reset() {
	h.st = stateIdle
	h.resp = nil
}
