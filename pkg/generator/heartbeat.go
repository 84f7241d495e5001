package generator

import (
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// DefaultHeartbeatInterval is used until SetInterval is called, typically
// once GetCommParams reports heartbeat_timeout_us.
const DefaultHeartbeatInterval = 3 * time.Second

// HeartbeatGenerator periodically sends a heartbeat for an established
// session and tracks the timestamp of the last valid reply. It does not
// itself decide the link is broken; the Device Handler compares
// LastValidHeartbeatTimestamp against heartbeat_timeout each tick.
type HeartbeatGenerator struct {
	disp  *dispatcher.Dispatcher
	proto *protocol.Protocol
	now   func() time.Time

	interval  time.Duration
	sessionID uint32
	active    bool
	pending   *dispatcher.Record
	lastSent  time.Time
	lastValid time.Time
}

// NewHeartbeatGenerator creates a HeartbeatGenerator. now defaults to
// time.Now when nil.
func NewHeartbeatGenerator(disp *dispatcher.Dispatcher, proto *protocol.Protocol, now func() time.Time) *HeartbeatGenerator {
	if now == nil {
		now = time.Now
	}
	return &HeartbeatGenerator{disp: disp, proto: proto, now: now, interval: DefaultHeartbeatInterval}
}

// SetSessionID binds the session the heartbeats are scoped to. Called once
// by the Device Handler right after SessionInitializer succeeds.
func (h *HeartbeatGenerator) SetSessionID(id uint32) {
	h.sessionID = id
}

// SetInterval overrides the heartbeat cadence, typically from
// max(0.5, heartbeat_timeout_us*1e-6*0.75) after GetCommParams.
func (h *HeartbeatGenerator) SetInterval(d time.Duration) {
	if d > 0 {
		h.interval = d
	}
}

// Start arms the generator. lastValid is reset to now so a fresh session
// does not immediately look stale.
func (h *HeartbeatGenerator) Start() {
	h.active = true
	h.pending = nil
	h.lastSent = time.Time{}
	h.lastValid = h.now()
}

// Stop disarms the generator.
func (h *HeartbeatGenerator) Stop() {
	h.active = false
	h.pending = nil
}

// Process advances the generator by one tick.
func (h *HeartbeatGenerator) Process() {
	if !h.active {
		return
	}
	if h.pending != nil {
		if !h.pending.IsCompleted() {
			return
		}
		h.pending = nil
	}
	if !h.lastSent.IsZero() && h.now().Sub(h.lastSent) < h.interval {
		return
	}
	h.lastSent = h.now()
	h.pending = h.disp.RegisterRequest(h.proto.Heartbeat(h.sessionID), h.onSuccess, h.onFailure, dispatcher.PriorityHeartbeat)
}

func (h *HeartbeatGenerator) onSuccess(code protocol.ResponseCode, data protocol.ResponseData) {
	if code != protocol.ResponseCodeOK {
		return
	}
	if d, ok := data.(protocol.HeartbeatData); ok && d.Valid {
		h.lastValid = h.now()
	}
}

func (h *HeartbeatGenerator) onFailure() {
	// Staleness is judged against LastValidHeartbeatTimestamp by the
	// Device Handler, not here.
}

// LastValidHeartbeatTimestamp returns the time of the last accepted
// heartbeat reply, or the Start time if none has arrived yet.
func (h *HeartbeatGenerator) LastValidHeartbeatTimestamp() time.Time {
	return h.lastValid
}

// IsInError always reports false: heartbeat failures are judged by
// staleness, not by a persistent error flag.
func (h *HeartbeatGenerator) IsInError() bool {
	return false
}
