package protocol

import "fmt"

// ResponseData is the decoded, typed payload of a response. Every variant
// carries Valid, matching the "response_data.valid" check the InfoPoller's
// success callback performs before trusting the rest of the payload.
type ResponseData interface {
	isResponseData()
	valid() bool
}

type baseResponseData struct {
	Valid bool `cbor:"1,keyasint"`
}

func (baseResponseData) isResponseData() {}
func (b baseResponseData) valid() bool   { return b.Valid }

// IsValidResponse reports whether data is non-nil and its "valid" flag is
// set, matching the "response_data.valid == true" check the InfoPoller
// performs before trusting a response's payload.
func IsValidResponse(data ResponseData) bool {
	return data != nil && data.valid()
}

// ProtocolVersionData is the response to GetProtocolVersion.
type ProtocolVersionData struct {
	baseResponseData
	Major int `cbor:"2,keyasint"`
	Minor int `cbor:"3,keyasint"`
}

// CommParamsData is the response to CommGetParams.
type CommParamsData struct {
	baseResponseData
	MaxTxDataSize      uint32 `cbor:"2,keyasint"`
	MaxRxDataSize      uint32 `cbor:"3,keyasint"`
	MaxBitrateBps      uint64 `cbor:"4,keyasint"`
	RxTimeoutUs        uint32 `cbor:"5,keyasint"`
	HeartbeatTimeoutUs uint32 `cbor:"6,keyasint"`
	AddressSizeByte    uint8  `cbor:"7,keyasint"`
}

// SupportedFeaturesData is the response to GetSupportedFeatures.
type SupportedFeaturesData struct {
	baseResponseData
	MemoryRead     bool `cbor:"2,keyasint"`
	MemoryWrite    bool `cbor:"3,keyasint"`
	DatalogAcquire bool `cbor:"4,keyasint"`
	UserCommand    bool `cbor:"5,keyasint"`
}

// MemoryRegionCountData is the response to GetSpecialMemoryRegionCount.
type MemoryRegionCountData struct {
	baseResponseData
	NbrForbidden uint16 `cbor:"2,keyasint"`
	NbrReadonly  uint16 `cbor:"3,keyasint"`
}

// MemoryRegionData is the response to GetSpecialMemoryRegionLocation.
type MemoryRegionData struct {
	baseResponseData
	Start uint64 `cbor:"2,keyasint"`
	End   uint64 `cbor:"3,keyasint"`
}

// DisconnectData is the response to CommDisconnect.
type DisconnectData struct {
	baseResponseData
}

// DiscoverData is the response to Discover: a device's self-identification.
type DiscoverData struct {
	baseResponseData
	FirmwareID string `cbor:"2,keyasint"`
}

// ConnectData is the response to Connect: the negotiated session identity.
type ConnectData struct {
	baseResponseData
	SessionID uint32 `cbor:"2,keyasint"`
}

// HeartbeatData is the response to Heartbeat.
type HeartbeatData struct {
	baseResponseData
}

// NewProtocolVersionData builds a valid ProtocolVersionData response.
func NewProtocolVersionData(major, minor int) ProtocolVersionData {
	return ProtocolVersionData{baseResponseData: baseResponseData{Valid: true}, Major: major, Minor: minor}
}

// CommParams bundles the fields of a CommGetParams response, for
// NewCommParamsData.
type CommParams struct {
	MaxTxDataSize      uint32
	MaxRxDataSize      uint32
	MaxBitrateBps      uint64
	RxTimeoutUs        uint32
	HeartbeatTimeoutUs uint32
	AddressSizeByte    uint8
}

// NewCommParamsData builds a valid CommParamsData response.
func NewCommParamsData(p CommParams) CommParamsData {
	return CommParamsData{
		baseResponseData:   baseResponseData{Valid: true},
		MaxTxDataSize:      p.MaxTxDataSize,
		MaxRxDataSize:      p.MaxRxDataSize,
		MaxBitrateBps:      p.MaxBitrateBps,
		RxTimeoutUs:        p.RxTimeoutUs,
		HeartbeatTimeoutUs: p.HeartbeatTimeoutUs,
		AddressSizeByte:    p.AddressSizeByte,
	}
}

// NewSupportedFeaturesData builds a valid SupportedFeaturesData response.
func NewSupportedFeaturesData(memoryRead, memoryWrite, datalogAcquire, userCommand bool) SupportedFeaturesData {
	return SupportedFeaturesData{
		baseResponseData: baseResponseData{Valid: true},
		MemoryRead:       memoryRead,
		MemoryWrite:      memoryWrite,
		DatalogAcquire:   datalogAcquire,
		UserCommand:      userCommand,
	}
}

// NewMemoryRegionCountData builds a valid MemoryRegionCountData response.
func NewMemoryRegionCountData(nbrForbidden, nbrReadonly uint16) MemoryRegionCountData {
	return MemoryRegionCountData{baseResponseData: baseResponseData{Valid: true}, NbrForbidden: nbrForbidden, NbrReadonly: nbrReadonly}
}

// NewMemoryRegionData builds a valid MemoryRegionData response.
func NewMemoryRegionData(start, end uint64) MemoryRegionData {
	return MemoryRegionData{baseResponseData: baseResponseData{Valid: true}, Start: start, End: end}
}

// NewDisconnectData builds a valid DisconnectData response.
func NewDisconnectData() DisconnectData {
	return DisconnectData{baseResponseData: baseResponseData{Valid: true}}
}

// NewDiscoverData builds a valid DiscoverData response, for the simulated
// device and for tests to hand to a Record.Complete.
func NewDiscoverData(firmwareID string) DiscoverData {
	return DiscoverData{baseResponseData: baseResponseData{Valid: true}, FirmwareID: firmwareID}
}

// NewConnectData builds a valid ConnectData response.
func NewConnectData(sessionID uint32) ConnectData {
	return ConnectData{baseResponseData: baseResponseData{Valid: true}, SessionID: sessionID}
}

// NewHeartbeatData builds a valid HeartbeatData response.
func NewHeartbeatData() HeartbeatData {
	return HeartbeatData{baseResponseData: baseResponseData{Valid: true}}
}

// ErrUnknownCommand is returned by ParseResponse when the frame names a
// command this protocol version does not recognize.
type ErrUnknownCommand struct {
	Command Command
}

func (e ErrUnknownCommand) Error() string {
	return fmt.Sprintf("protocol: unknown command %d in response frame", e.Command)
}

// ParseResponse decodes a raw frame received from a Link into a
// ResponseCode and a typed ResponseData. The concrete ResponseData type is
// determined by the command carried in the frame's envelope, not by the
// caller - this mirrors the teacher's length-prefixed, self-describing
// wire frames (pkg/wire.Message) rather than forcing callers to remember
// which request is outstanding.
func (p *Protocol) ParseResponse(frame []byte) (Command, ResponseCode, ResponseData, error) {
	var wr wireResponse
	if err := unmarshal(frame, &wr); err != nil {
		return 0, 0, nil, fmt.Errorf("protocol: malformed frame: %w", err)
	}

	cmd := Command(wr.Cmd)
	code := ResponseCode(wr.Code)

	var data ResponseData
	switch cmd {
	case CmdGetProtocolVersion:
		var d ProtocolVersionData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed protocol version payload: %w", err)
		}
		data = d
	case CmdCommGetParams:
		var d CommParamsData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed comm params payload: %w", err)
		}
		data = d
	case CmdGetSupportedFeatures:
		var d SupportedFeaturesData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed supported features payload: %w", err)
		}
		data = d
	case CmdGetSpecialMemoryRegionCount:
		var d MemoryRegionCountData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed region count payload: %w", err)
		}
		data = d
	case CmdGetSpecialMemoryRegionLocation:
		var d MemoryRegionData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed region location payload: %w", err)
		}
		if d.Valid {
			mask := p.addressMask()
			d.Start &= mask
			d.End &= mask
		}
		data = d
	case CmdCommDisconnect:
		var d DisconnectData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed disconnect payload: %w", err)
		}
		data = d
	case CmdDiscover:
		var d DiscoverData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed discover payload: %w", err)
		}
		data = d
	case CmdConnect:
		var d ConnectData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed connect payload: %w", err)
		}
		data = d
	case CmdHeartbeat:
		var d HeartbeatData
		if err := unmarshal(wr.Payload, &d); err != nil {
			return cmd, code, nil, fmt.Errorf("protocol: malformed heartbeat payload: %w", err)
		}
		data = d
	default:
		return cmd, code, nil, ErrUnknownCommand{Command: cmd}
	}

	return cmd, code, data, nil
}
