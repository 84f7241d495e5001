package devicehandler

import (
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/scrutinylog"
)

// PlaceholderFirmwareID is the default firmware ID a build toolchain
// leaves in place when it never tagged the image with a real one. A
// device reporting it still gets a connection, but the operator should
// know their build is untagged.
const PlaceholderFirmwareID = "00000000000000000000000000000000"

// doStateMachine evaluates exactly one transition per tick. comm_broken is
// a global override, checked ahead of the per-state logic so it preempts
// any state's own transition this tick - the "any state -> INIT" row of
// the transition table.
//
// enteringState is captured before the switch runs so that a transition
// taken mid-tick (e.g. DISCONNECTING completing immediately because the
// device was never connected) does not rob the state being entered of its
// own entry action on the following tick: lastState always reflects the
// state this tick started in, not whatever it ends in.
func (h *Handler) doStateMachine(now time.Time) {
	if h.commBroken {
		h.commBrokenCount++
		h.commBroken = false
		h.state = StateInit
		h.cfg.Logger.Log(scrutinylog.Event{
			Timestamp: now,
			DeviceID:  h.deviceID,
			Category:  scrutinylog.CategoryError,
			Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassTransport, Message: "comm link broken"},
		})
		// The INIT action runs here, and INIT's own transition waits for
		// the next tick.
		h.resetComm()
		h.lastState = StateInit
		return
	}

	// Mirrors the Python source's do_state_machine, which runs this check
	// unconditionally ahead of the per-state logic whenever connected, not
	// only in READY: a device that goes silent on heartbeats while still
	// in POLLING_INFO must be caught too.
	if h.connected && now.Sub(h.heartbeat.LastValidHeartbeatTimestamp()) > h.cfg.HeartbeatTimeout {
		h.commBroken = true
	}

	enteringState := h.state
	stateEntry := h.state != h.lastState

	switch h.state {
	case StateInit:
		if stateEntry {
			h.resetComm()
		}
		if h.l != nil && h.l.IsOpen() {
			h.state = StateDiscovering
		}

	case StateDiscovering:
		if stateEntry {
			h.searcher.Start()
		}
		if h.searcher.Found() {
			h.searcher.Stop()
			h.deviceID = h.searcher.FirmwareID()
			if h.deviceID == PlaceholderFirmwareID {
				h.cfg.Logger.Log(scrutinylog.Event{
					Timestamp: now,
					DeviceID:  h.deviceID,
					Category:  scrutinylog.CategoryError,
					Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: "firmware ID of this device is a default placeholder. Firmware might not have been tagged with a valid ID in the build toolchain"},
				})
			}
			h.state = StateConnecting
		}

	case StateConnecting:
		if stateEntry {
			h.sessionInit.Start()
		}
		if h.disconnectionRequested {
			h.sessionInit.Stop()
			h.state = StateDisconnecting
			break
		}
		if h.sessionInit.ConnectionSuccessful() {
			h.sessionInit.Stop()
			h.sessionID = h.sessionInit.SessionID()
			h.hasSessionID = true
			h.connected = true
			h.heartbeat.SetSessionID(h.sessionID)
			h.heartbeat.Start()
			h.state = StatePollingInfo
		} else if h.sessionInit.IsInError() {
			h.sessionInit.Stop()
			h.commBroken = true
		}

	case StatePollingInfo:
		if stateEntry {
			h.poller.Start()
		}
		if h.disconnectionRequested {
			h.poller.Stop()
			h.state = StateDisconnecting
			break
		}
		if h.poller.Done() {
			h.poller.Stop()
			h.deviceInfo = h.poller.GetDeviceInfo()
			if h.deviceInfo.AllReady() {
				h.state = StateReady
			} else {
				h.state = StateInit
			}
		} else if h.poller.IsInError() {
			h.poller.Stop()
			h.state = StateInit
		}

	case StateReady:
		if h.disconnectionRequested {
			h.state = StateDisconnecting
			break
		}

	case StateDisconnecting:
		if stateEntry {
			h.disconnectionRequested = false
			h.disconnectComplete = false
			if h.connected && h.hasSessionID {
				h.disp.RegisterRequest(h.proto.CommDisconnect(h.sessionID), h.onDisconnectSuccess, h.onDisconnectFailure, dispatcher.PriorityDisconnect)
			} else {
				h.completeDisconnect(true)
			}
		}
		if h.disconnectComplete {
			h.state = StateInit
		}
	}

	if h.state != enteringState {
		h.cfg.Logger.Log(scrutinylog.Event{
			Timestamp: now,
			DeviceID:  h.deviceID,
			Category:  scrutinylog.CategoryStateChange,
			StateChange: &scrutinylog.StateChangeEvent{
				Entity:   scrutinylog.EntityDeviceHandler,
				OldState: enteringState.String(),
				NewState: h.state.String(),
			},
		})
	}

	h.lastState = enteringState
}
