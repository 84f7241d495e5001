// Package devicehandler implements the Device Handler abstraction: the
// top-level connection lifecycle FSM that drives discovery, session
// establishment, capability polling, and steady-state operation of a single
// device connection, hosting the four request generators and owning the
// Protocol's negotiated parameters.
package devicehandler

import (
	"fmt"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/comm"
	"github.com/scrutinydebugger/scrutiny-go/pkg/datastore"
	"github.com/scrutinydebugger/scrutiny-go/pkg/deviceinfo"
	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/generator"
	"github.com/scrutinydebugger/scrutiny-go/pkg/infopoller"
	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// Handler owns the connection lifecycle: discovery, session
// establishment, capability polling, and steady-state, with retry and
// disconnect.
type Handler struct {
	cfg Config

	proto *protocol.Protocol
	disp  *dispatcher.Dispatcher
	comm  *comm.CommHandler
	ds    *datastore.Datastore

	l link.Link

	searcher    *generator.DeviceSearcher
	sessionInit *generator.SessionInitializer
	heartbeat   *generator.HeartbeatGenerator
	poller      *infopoller.InfoPoller

	state     FsmState
	lastState FsmState

	connected       bool
	hasSessionID    bool
	sessionID       uint32
	deviceID        string
	deviceInfo      *deviceinfo.DeviceInfo
	commBrokenCount int

	pendingRecord *dispatcher.Record

	disconnectionRequested bool
	disconnectComplete     bool
	disconnectCallbacks    []func(success bool)

	commBroken bool
}

// NewHandler constructs a Handler bound to ds. ds is not written by the
// Handler itself - it is threaded through so callers can hand the same
// instance to the Active SFD Handler without wiring it twice.
func NewHandler(cfg Config, ds *datastore.Datastore) *Handler {
	cfg.setDefaults()

	proto := protocol.New(cfg.DefaultProtocolMajor, cfg.DefaultProtocolMinor)
	proto.SetAddressSize(cfg.DefaultAddressSizeBits)
	disp := dispatcher.New()
	commH := comm.New(comm.Config{ResponseTimeout: cfg.ResponseTimeout, Now: cfg.Now})

	h := &Handler{
		cfg:       cfg,
		proto:     proto,
		disp:      disp,
		comm:      commH,
		ds:        ds,
		state:     StateInit,
		lastState: StateInit,
	}

	h.searcher = generator.New(disp, proto, cfg.Now)
	h.sessionInit = generator.NewSessionInitializer(disp, proto)
	h.heartbeat = generator.NewHeartbeatGenerator(disp, proto, cfg.Now)
	h.poller = infopoller.New(disp, proto, infopoller.Callbacks{
		ProtocolVersion: h.protocolVersionCallback,
		CommParam:       h.commParamCallback,
	})

	return h
}

// Datastore returns the datastore instance this Handler was constructed
// with, for callers wiring up the Active SFD Handler.
func (h *Handler) Datastore() *datastore.Datastore {
	return h.ds
}

// InitComm opens the configured link.
func (h *Handler) InitComm() error {
	l, err := newLink(h.cfg.LinkType, h.cfg.LinkConfig)
	if err != nil {
		return err
	}
	if err := h.comm.Open(l, h.cfg.LinkConfig); err != nil {
		return fmt.Errorf("devicehandler: open link: %w", err)
	}
	h.l = l
	return nil
}

// StopComm closes the link and resets the FSM to INIT.
func (h *Handler) StopComm() error {
	err := h.comm.Close()
	h.l = nil
	h.resetComm()
	h.state = StateInit
	h.lastState = StateInit
	return err
}

// Process advances the Handler by one tick: every generator first, then
// comm I/O, then one FSM transition evaluation.
func (h *Handler) Process(now time.Time) {
	h.searcher.Process()
	h.sessionInit.Process()
	h.heartbeat.Process()
	h.poller.Process()

	h.handleComm(now)
	h.doStateMachine(now)
}

// GetConnectionStatus derives the publicly observable status, branching on
// the connected flag first and only falling back to the FSM state to tell
// CONNECTING apart from DISCONNECTED - mirroring the Python source's
// get_connection_status, which checks self.connected before fsm_state.
func (h *Handler) GetConnectionStatus() ConnectionStatus {
	if h.connected {
		if h.state == StateReady {
			return StatusConnectedReady
		}
		return StatusConnectedNotReady
	}
	if h.state == StateConnecting {
		return StatusConnecting
	}
	return StatusDisconnected
}

// GetDeviceID returns the discovered firmware ID, or "" if none is known.
func (h *Handler) GetDeviceID() string {
	return h.deviceID
}

// GetDeviceInfo returns a copy of the last known DeviceInfo.
func (h *Handler) GetDeviceInfo() *deviceinfo.DeviceInfo {
	return h.deviceInfo.Clone()
}

// CommBrokenCount returns how many times the link has been judged broken
// since construction, for observability.
func (h *Handler) CommBrokenCount() int {
	return h.commBrokenCount
}

// State returns the current FSM state, for observability and tests.
func (h *Handler) State() FsmState {
	return h.state
}

// SendDisconnect requests a graceful shutdown. cb, if non-nil, is invoked
// exactly once with the outcome once DISCONNECTING completes.
func (h *Handler) SendDisconnect(cb func(success bool)) {
	h.disconnectionRequested = true
	if cb != nil {
		h.disconnectCallbacks = append(h.disconnectCallbacks, cb)
	}
}

func (h *Handler) resetComm() {
	h.searcher.Stop()
	h.sessionInit.Stop()
	h.heartbeat.Stop()
	h.poller.Stop()

	h.connected = false
	h.hasSessionID = false
	h.sessionID = 0
	h.deviceID = ""
	h.disconnectionRequested = false
	h.commBroken = false
	h.pendingRecord = nil
	h.disconnectComplete = false

	_ = h.proto.SetVersion(h.cfg.DefaultProtocolMajor, h.cfg.DefaultProtocolMinor)
	h.proto.SetAddressSize(h.cfg.DefaultAddressSizeBits)
}

func (h *Handler) protocolVersionCallback(major, minor int) error {
	return h.proto.SetVersion(major, minor)
}

func (h *Handler) commParamCallback(info *deviceinfo.DeviceInfo) error {
	if info.AddressSizeBits == nil || !deviceinfo.IsValidAddressSize(*info.AddressSizeBits) {
		return fmt.Errorf("devicehandler: device reported unsupported address_size_bits")
	}
	if info.HeartbeatTimeoutUs == nil {
		return fmt.Errorf("devicehandler: device did not report heartbeat_timeout_us")
	}
	h.proto.SetAddressSize(*info.AddressSizeBits)

	secs := float64(*info.HeartbeatTimeoutUs) * 1e-6 * 0.75
	if secs < 0.5 {
		secs = 0.5
	}
	h.heartbeat.SetInterval(time.Duration(secs * float64(time.Second)))
	return nil
}
