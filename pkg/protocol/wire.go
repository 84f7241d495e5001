package protocol

// Command identifies a request/response pair on the wire. CBOR-encoded
// frames carry these as integer keys for compactness, mirroring the
// teacher's own wire-format convention.
type Command uint8

const (
	CmdGetProtocolVersion Command = iota + 1
	CmdCommGetParams
	CmdGetSupportedFeatures
	CmdGetSpecialMemoryRegionCount
	CmdGetSpecialMemoryRegionLocation
	CmdCommDisconnect
	CmdDiscover
	CmdConnect
	CmdHeartbeat
)

// String returns a human-readable command name, used in log events.
func (c Command) String() string {
	switch c {
	case CmdGetProtocolVersion:
		return "GetProtocolVersion"
	case CmdCommGetParams:
		return "CommGetParams"
	case CmdGetSupportedFeatures:
		return "GetSupportedFeatures"
	case CmdGetSpecialMemoryRegionCount:
		return "GetSpecialMemoryRegionCount"
	case CmdGetSpecialMemoryRegionLocation:
		return "GetSpecialMemoryRegionLocation"
	case CmdCommDisconnect:
		return "CommDisconnect"
	case CmdDiscover:
		return "Discover"
	case CmdConnect:
		return "Connect"
	case CmdHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// MemoryRangeType selects which kind of special memory region is being
// requested in a GetSpecialMemoryRegionLocation request.
type MemoryRangeType uint8

const (
	// MemoryRangeForbidden selects the forbidden-region list.
	MemoryRangeForbidden MemoryRangeType = iota
	// MemoryRangeReadOnly selects the read-only-region list.
	MemoryRangeReadOnly
)

// ResponseCode mirrors the device's accept/refuse verdict for a request.
type ResponseCode uint8

const (
	// ResponseCodeOK indicates the request was processed successfully.
	ResponseCodeOK ResponseCode = iota
	// ResponseCodeRefused indicates the device declined to process the
	// request (e.g. unsupported command, bad session ID).
	ResponseCodeRefused
	// ResponseCodeBusy indicates the device could not process the
	// request right now.
	ResponseCodeBusy
	// ResponseCodeFailure indicates an internal device failure.
	ResponseCodeFailure
)

// Request is a single outgoing command, ready to hand to a CommHandler.
type Request struct {
	Command Command
	payload []byte
}

// wireRequest is the CBOR envelope used for the frame bytes sent over a
// Link. Integer keys keep frames compact.
type wireRequest struct {
	Cmd     uint8  `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint,omitempty"`
}

// wireResponse is the CBOR envelope decoded from a Link's received bytes.
type wireResponse struct {
	Cmd     uint8  `cbor:"1,keyasint"`
	Code    uint8  `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint,omitempty"`
}

// Encode serializes the request to wire bytes.
func (r Request) Encode() ([]byte, error) {
	return marshal(wireRequest{Cmd: uint8(r.Command), Payload: r.payload})
}

// DecodeRequest parses wire bytes back into a Request. Used by the
// simulated device and by tests that drive a Link directly.
func DecodeRequest(frame []byte) (Request, error) {
	var wr wireRequest
	if err := unmarshal(frame, &wr); err != nil {
		return Request{}, err
	}
	return Request{Command: Command(wr.Cmd), payload: wr.Payload}, nil
}

// Payload exposes the request's encoded parameters, for collaborators
// (such as the simulated device) that need to decode them.
func (r Request) Payload() []byte { return r.payload }

type memoryRegionLocationParams struct {
	Kind  uint8  `cbor:"1,keyasint"`
	Index uint16 `cbor:"2,keyasint"`
}

type disconnectParams struct {
	SessionID uint32 `cbor:"1,keyasint"`
}

type heartbeatParams struct {
	SessionID uint32 `cbor:"1,keyasint"`
}

// DecodeMemoryRegionLocationParams decodes the parameters of a
// GetSpecialMemoryRegionLocation request. Used by the simulated device to
// answer requests built with Protocol.GetSpecialMemoryRegionLocation.
func DecodeMemoryRegionLocationParams(payload []byte) (kind MemoryRangeType, index int, err error) {
	var p memoryRegionLocationParams
	if err := unmarshal(payload, &p); err != nil {
		return 0, 0, err
	}
	return MemoryRangeType(p.Kind), int(p.Index), nil
}

// DecodeDisconnectParams decodes the parameters of a CommDisconnect
// request.
func DecodeDisconnectParams(payload []byte) (sessionID uint32, err error) {
	var p disconnectParams
	if err := unmarshal(payload, &p); err != nil {
		return 0, err
	}
	return p.SessionID, nil
}

// DecodeHeartbeatParams decodes the parameters of a Heartbeat request.
func DecodeHeartbeatParams(payload []byte) (sessionID uint32, err error) {
	var p heartbeatParams
	if err := unmarshal(payload, &p); err != nil {
		return 0, err
	}
	return p.SessionID, nil
}
