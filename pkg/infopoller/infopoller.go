// Package infopoller implements the InfoPoller abstraction: the
// seven-step interrogation sequence that populates a deviceinfo.DeviceInfo
// and hands intermediate results back to the Device Handler through two
// capability callbacks.
package infopoller

import (
	"github.com/scrutinydebugger/scrutiny-go/pkg/deviceinfo"
	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// State is the InfoPoller's FSM state.
type State int

const (
	StateInit State = iota
	StateGetProtocolVersion
	StateGetCommParams
	StateGetSupportedFeatures
	StateGetSpecialMemoryRegionCount
	StateGetForbiddenMemoryRegions
	StateGetReadOnlyMemoryRegions
	StateDone
	StateError
)

// String names the state, used in log events.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateGetProtocolVersion:
		return "GetProtocolVersion"
	case StateGetCommParams:
		return "GetCommParams"
	case StateGetSupportedFeatures:
		return "GetSupportedFeatures"
	case StateGetSpecialMemoryRegionCount:
		return "GetSpecialMemoryRegionCount"
	case StateGetForbiddenMemoryRegions:
		return "GetForbiddenMemoryRegions"
	case StateGetReadOnlyMemoryRegions:
		return "GetReadOnlyMemoryRegions"
	case StateDone:
		return "Done"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Callbacks are the capability hooks the Device Handler supplies so it can
// react to newly discovered protocol parameters before later steps proceed.
// A returned error sends the poller to StateError.
type Callbacks struct {
	// ProtocolVersion is invoked once GetProtocolVersion succeeds.
	ProtocolVersion func(major, minor int) error
	// CommParam is invoked once GetCommParams succeeds, with a copy of the
	// DeviceInfo accumulated so far (including the newly-set comm fields).
	CommParam func(info *deviceinfo.DeviceInfo) error
}

// InfoPoller walks the fixed seven-step interrogation sequence.
type InfoPoller struct {
	disp      *dispatcher.Dispatcher
	proto     *protocol.Protocol
	callbacks Callbacks

	state     State
	lastState State

	stopRequested bool
	requestFailed bool
	errorMessage  string

	info *deviceinfo.DeviceInfo

	pending *dispatcher.Record

	forbiddenWanted int
	forbiddenIssued int
	readonlyWanted  int
	readonlyIssued  int
	batchPending    []*dispatcher.Record
}

// New creates an InfoPoller bound to disp/proto, with the given capability
// callbacks.
func New(disp *dispatcher.Dispatcher, proto *protocol.Protocol, callbacks Callbacks) *InfoPoller {
	return &InfoPoller{disp: disp, proto: proto, callbacks: callbacks, state: StateInit, lastState: StateInit}
}

// Start arms the poller, resetting all accumulated state and beginning the
// sequence at GetProtocolVersion on the next Process call.
func (p *InfoPoller) Start() {
	p.stopRequested = false
	p.requestFailed = false
	p.errorMessage = ""
	p.info = &deviceinfo.DeviceInfo{}
	p.pending = nil
	p.batchPending = nil
	p.forbiddenWanted, p.forbiddenIssued = 0, 0
	p.readonlyWanted, p.readonlyIssued = 0, 0
	p.state = StateGetProtocolVersion
	p.lastState = StateInit
}

// Stop arms a teardown flag; the next Process call that observes no
// outstanding request resets the machine to Init. A response arriving
// after Stop discards its payload but still clears the pending request.
func (p *InfoPoller) Stop() {
	p.stopRequested = true
}

// Done reports whether the poller finished the sequence successfully.
func (p *InfoPoller) Done() bool {
	return p.state == StateDone
}

// IsInError reports whether the poller aborted with a protocol-semantic
// error.
func (p *InfoPoller) IsInError() bool {
	return p.state == StateError
}

// GetDeviceInfo returns a copy of the accumulated DeviceInfo.
func (p *InfoPoller) GetDeviceInfo() *deviceinfo.DeviceInfo {
	return p.info.Clone()
}

// GetErrorMessage describes the most recent failure, if any.
func (p *InfoPoller) GetErrorMessage() string {
	return p.errorMessage
}

// Process advances the poller by one tick.
func (p *InfoPoller) Process() {
	if p.stopRequested {
		if !p.hasOutstandingRequests() {
			p.resetToInit()
		}
		return
	}

	if p.requestFailed {
		p.state = StateError
	}

	enteringState := p.state
	stateEntry := p.state != p.lastState

	switch p.state {
	case StateInit, StateDone, StateError:
		p.lastState = enteringState
		return
	case StateGetProtocolVersion:
		if stateEntry {
			p.issueSingle(p.proto.GetProtocolVersion(), p.onProtocolVersion, "Failed to get protocol version")
		}
	case StateGetCommParams:
		if stateEntry {
			p.issueSingle(p.proto.CommGetParams(), p.onCommParams, "Failed to get communication params")
		}
	case StateGetSupportedFeatures:
		if stateEntry {
			p.issueSingle(p.proto.GetSupportedFeatures(), p.onSupportedFeatures, "Failed to get supported features")
		}
	case StateGetSpecialMemoryRegionCount:
		if stateEntry {
			p.issueSingle(p.proto.GetSpecialMemoryRegionCount(), p.onRegionCount, "Failed to get special region count")
		}
	case StateGetForbiddenMemoryRegions:
		if stateEntry {
			p.issueForbiddenBatch()
		}
		if p.forbiddenIssued >= p.forbiddenWanted && len(p.batchPending) == 0 {
			p.state = StateGetReadOnlyMemoryRegions
		}
	case StateGetReadOnlyMemoryRegions:
		if stateEntry {
			p.issueReadonlyBatch()
		}
		if p.readonlyIssued >= p.readonlyWanted && len(p.batchPending) == 0 {
			p.state = StateDone
		}
	}

	p.lastState = enteringState
}

func (p *InfoPoller) hasOutstandingRequests() bool {
	if p.pending != nil && !p.pending.IsCompleted() {
		return true
	}
	for _, rec := range p.batchPending {
		if !rec.IsCompleted() {
			return true
		}
	}
	return false
}

func (p *InfoPoller) resetToInit() {
	p.state = StateInit
	p.lastState = StateInit
	p.stopRequested = false
	p.requestFailed = false
	p.pending = nil
	p.batchPending = nil
}

func (p *InfoPoller) issueSingle(req protocol.Request, onSuccess dispatcher.SuccessFunc, failMsg string) {
	p.pending = p.disp.RegisterRequest(req, onSuccess, p.onFailure(failMsg), dispatcher.PriorityPollInfo)
}

func (p *InfoPoller) onFailure(msg string) dispatcher.FailureFunc {
	return func() {
		if p.stopRequested {
			return
		}
		p.requestFailed = true
		p.errorMessage = msg
	}
}

func (p *InfoPoller) onProtocolVersion(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get protocol version") {
		return
	}
	d := data.(protocol.ProtocolVersionData)
	major, minor := d.Major, d.Minor

	if p.callbacks.ProtocolVersion != nil {
		if err := p.callbacks.ProtocolVersion(major, minor); err != nil {
			p.errorMessage = err.Error()
			p.requestFailed = true
			p.state = StateError
			return
		}
	}
	p.info.ProtocolMajor = &major
	p.info.ProtocolMinor = &minor
	p.state = StateGetCommParams
}

func (p *InfoPoller) onCommParams(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get communication params") {
		return
	}
	d := data.(protocol.CommParamsData)

	addrBits := int(d.AddressSizeByte)
	maxTx, maxRx, bitrate, rxTimeout, hbTimeout := d.MaxTxDataSize, d.MaxRxDataSize, d.MaxBitrateBps, d.RxTimeoutUs, d.HeartbeatTimeoutUs

	candidate := p.info.Clone()
	candidate.MaxTxDataSize = &maxTx
	candidate.MaxRxDataSize = &maxRx
	candidate.MaxBitrateBps = &bitrate
	candidate.RxTimeoutUs = &rxTimeout
	candidate.HeartbeatTimeoutUs = &hbTimeout
	candidate.AddressSizeBits = &addrBits

	if p.callbacks.CommParam != nil {
		if err := p.callbacks.CommParam(candidate); err != nil {
			p.errorMessage = err.Error()
			p.requestFailed = true
			p.state = StateError
			return
		}
	}

	p.info.MaxTxDataSize = &maxTx
	p.info.MaxRxDataSize = &maxRx
	p.info.MaxBitrateBps = &bitrate
	p.info.RxTimeoutUs = &rxTimeout
	p.info.HeartbeatTimeoutUs = &hbTimeout
	p.info.AddressSizeBits = &addrBits
	p.state = StateGetSupportedFeatures
}

func (p *InfoPoller) onSupportedFeatures(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get supported features") {
		return
	}
	d := data.(protocol.SupportedFeaturesData)
	p.info.SupportedFeatureMap = &deviceinfo.FeatureMap{
		MemoryRead:     d.MemoryRead,
		MemoryWrite:    d.MemoryWrite,
		DatalogAcquire: d.DatalogAcquire,
		UserCommand:    d.UserCommand,
	}
	p.state = StateGetSpecialMemoryRegionCount
}

func (p *InfoPoller) onRegionCount(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get special region count") {
		return
	}
	d := data.(protocol.MemoryRegionCountData)
	p.forbiddenWanted = int(d.NbrForbidden)
	p.readonlyWanted = int(d.NbrReadonly)
	p.info.ForbiddenMemoryRegions = make([]deviceinfo.MemoryRegion, 0, p.forbiddenWanted)
	p.info.ReadOnlyMemoryRegions = make([]deviceinfo.MemoryRegion, 0, p.readonlyWanted)
	p.state = StateGetForbiddenMemoryRegions
}

func (p *InfoPoller) issueForbiddenBatch() {
	p.batchPending = p.batchPending[:0]
	for i := p.forbiddenIssued; i < p.forbiddenWanted; i++ {
		index := i
		req := p.proto.GetSpecialMemoryRegionLocation(protocol.MemoryRangeForbidden, index)
		rec := p.disp.RegisterRequest(req, func(code protocol.ResponseCode, data protocol.ResponseData) {
			p.onForbiddenRegion(code, data)
		}, p.onFailure("Failed to get forbidden region list"), dispatcher.PriorityPollInfo)
		p.batchPending = append(p.batchPending, rec)
		p.forbiddenIssued++
	}
}

func (p *InfoPoller) issueReadonlyBatch() {
	p.batchPending = p.batchPending[:0]
	for i := p.readonlyIssued; i < p.readonlyWanted; i++ {
		req := p.proto.GetSpecialMemoryRegionLocation(protocol.MemoryRangeReadOnly, i)
		rec := p.disp.RegisterRequest(req, func(code protocol.ResponseCode, data protocol.ResponseData) {
			p.onReadonlyRegion(code, data)
		}, p.onFailure("Failed to get readonly region list"), dispatcher.PriorityPollInfo)
		p.batchPending = append(p.batchPending, rec)
		p.readonlyIssued++
	}
}

func (p *InfoPoller) onForbiddenRegion(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get forbidden region list") {
		return
	}
	d := data.(protocol.MemoryRegionData)
	p.info.ForbiddenMemoryRegions = append(p.info.ForbiddenMemoryRegions, deviceinfo.MemoryRegion{Start: d.Start, End: d.End})
	if len(p.info.ForbiddenMemoryRegions) >= p.forbiddenWanted {
		p.state = StateGetReadOnlyMemoryRegions
	}
}

func (p *InfoPoller) onReadonlyRegion(code protocol.ResponseCode, data protocol.ResponseData) {
	if !p.acceptResponse(code, data, "Failed to get readonly region list") {
		return
	}
	d := data.(protocol.MemoryRegionData)
	p.info.ReadOnlyMemoryRegions = append(p.info.ReadOnlyMemoryRegions, deviceinfo.MemoryRegion{Start: d.Start, End: d.End})
	if len(p.info.ReadOnlyMemoryRegions) >= p.readonlyWanted {
		p.state = StateDone
	}
}

// acceptResponse implements the shared success-callback contract: a
// response is processable only if the code is OK and response_data.valid.
// Any deviation sets request_failed with the state-specific message and
// returns false so the caller skips the rest of its handling.
func (p *InfoPoller) acceptResponse(code protocol.ResponseCode, data protocol.ResponseData, failMsg string) bool {
	if p.stopRequested {
		return false
	}
	if code != protocol.ResponseCodeOK {
		p.requestFailed = true
		p.errorMessage = failMsg + ": device refused the request"
		return false
	}
	if !protocol.IsValidResponse(data) {
		p.requestFailed = true
		p.errorMessage = failMsg + ": device gave invalid data"
		return false
	}
	return true
}
