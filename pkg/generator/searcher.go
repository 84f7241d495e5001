package generator

import (
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// DefaultDiscoverRetryInterval is how often DeviceSearcher re-broadcasts a
// discovery request while none has been answered yet.
const DefaultDiscoverRetryInterval = 500 * time.Millisecond

// DeviceSearcher broadcasts discovery requests at PriorityDiscover and
// exposes the first positively-identifying firmware ID seen. It never
// terminates itself; the Device Handler stops it on transition out of
// DISCOVERING.
type DeviceSearcher struct {
	disp  *dispatcher.Dispatcher
	proto *protocol.Protocol
	now   func() time.Time

	retryInterval time.Duration
	active        bool
	pending       *dispatcher.Record
	lastSent      time.Time
	found         bool
	firmwareID    string
}

// New creates a DeviceSearcher. now defaults to time.Now when nil.
func New(disp *dispatcher.Dispatcher, proto *protocol.Protocol, now func() time.Time) *DeviceSearcher {
	if now == nil {
		now = time.Now
	}
	return &DeviceSearcher{disp: disp, proto: proto, now: now, retryInterval: DefaultDiscoverRetryInterval}
}

// SetRetryInterval overrides the re-broadcast cadence.
func (s *DeviceSearcher) SetRetryInterval(d time.Duration) {
	if d > 0 {
		s.retryInterval = d
	}
}

// Start arms the searcher, clearing any previously found device.
func (s *DeviceSearcher) Start() {
	s.active = true
	s.found = false
	s.firmwareID = ""
	s.pending = nil
	s.lastSent = time.Time{}
}

// Stop disarms the searcher.
func (s *DeviceSearcher) Stop() {
	s.active = false
	s.pending = nil
}

// Process advances the searcher by one tick.
func (s *DeviceSearcher) Process() {
	if !s.active || s.found {
		return
	}
	if s.pending != nil {
		if !s.pending.IsCompleted() {
			return
		}
		s.pending = nil
	}
	if !s.lastSent.IsZero() && s.now().Sub(s.lastSent) < s.retryInterval {
		return
	}
	s.lastSent = s.now()
	s.pending = s.disp.RegisterRequest(s.proto.Discover(), s.onSuccess, s.onFailure, dispatcher.PriorityDiscover)
}

func (s *DeviceSearcher) onSuccess(code protocol.ResponseCode, data protocol.ResponseData) {
	if code != protocol.ResponseCodeOK {
		return
	}
	d, ok := data.(protocol.DiscoverData)
	if !ok {
		return
	}
	if d.FirmwareID == "" {
		return
	}
	s.found = true
	s.firmwareID = d.FirmwareID
}

func (s *DeviceSearcher) onFailure() {
	// No device answered this round; Process will re-broadcast after
	// retryInterval elapses.
}

// Found reports whether a device has identified itself.
func (s *DeviceSearcher) Found() bool {
	return s.found
}

// FirmwareID returns the identified device's firmware ID. Empty until
// Found reports true.
func (s *DeviceSearcher) FirmwareID() string {
	return s.firmwareID
}

// IsInError always reports false: the searcher has no error state, only
// found/not-found.
func (s *DeviceSearcher) IsInError() bool {
	return false
}

// IsActive reports whether Start has been called without a matching Stop.
func (s *DeviceSearcher) IsActive() bool {
	return s.active
}
