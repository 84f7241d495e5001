// Package protocol implements the Protocol abstraction from the
// device-interaction core: request builders, response parsing, and the
// CBOR wire codec used to talk to a device over a Link. Frame format is
// opaque to the rest of the core; this package is the one place it is
// pinned down, so the module compiles, runs, and is testable end-to-end.
package protocol

import (
	"fmt"
)

// SupportedMajorVersions lists the protocol major versions this server
// understands. SetVersion rejects anything else.
var SupportedMajorVersions = map[int]bool{1: true}

// Protocol tracks the negotiated wire parameters for a single device
// connection: protocol version and address size. Both are mutated by the
// Device Handler's capability callbacks as the InfoPoller discovers them.
type Protocol struct {
	major, minor int
	addressBits  int
}

// New creates a Protocol configured with the given default version. Address
// size defaults to 32 bits until SetAddressSize is called.
func New(major, minor int) *Protocol {
	return &Protocol{major: major, minor: minor, addressBits: 32}
}

// Version returns the currently configured protocol version.
func (p *Protocol) Version() (major, minor int) {
	return p.major, p.minor
}

// SetVersion changes the negotiated protocol version. It returns an error
// for an unsupported major version - this propagates into the InfoPoller's
// protocol_version_callback and becomes a protocol-semantic error.
func (p *Protocol) SetVersion(major, minor int) error {
	if !SupportedMajorVersions[major] {
		return fmt.Errorf("protocol: unsupported protocol version %d.%d", major, minor)
	}
	p.major, p.minor = major, minor
	return nil
}

// AddressSizeBits returns the currently configured address width.
func (p *Protocol) AddressSizeBits() int {
	return p.addressBits
}

// SetAddressSize changes the address width used to mask decoded memory
// region addresses. Validation of the value against the supported set
// {8,16,32,64} is the Device Handler's responsibility (comm_param_callback),
// not this method's - mirroring the source's division of labor.
func (p *Protocol) SetAddressSize(bits int) {
	p.addressBits = bits
}

func (p *Protocol) addressMask() uint64 {
	if p.addressBits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(p.addressBits)) - 1
}

// GetProtocolVersion builds a request for the device's protocol version.
func (p *Protocol) GetProtocolVersion() Request {
	return Request{Command: CmdGetProtocolVersion}
}

// CommGetParams builds a request for the device's communication
// parameters (buffer sizes, timeouts, address size).
func (p *Protocol) CommGetParams() Request {
	return Request{Command: CmdCommGetParams}
}

// GetSupportedFeatures builds a request for the device's optional-feature
// support map.
func (p *Protocol) GetSupportedFeatures() Request {
	return Request{Command: CmdGetSupportedFeatures}
}

// GetSpecialMemoryRegionCount builds a request for the number of forbidden
// and read-only memory regions the device reports.
func (p *Protocol) GetSpecialMemoryRegionCount() Request {
	return Request{Command: CmdGetSpecialMemoryRegionCount}
}

// GetSpecialMemoryRegionLocation builds a request for the address range of
// the index'th region of the given kind.
func (p *Protocol) GetSpecialMemoryRegionLocation(kind MemoryRangeType, index int) Request {
	payload, err := marshal(memoryRegionLocationParams{Kind: uint8(kind), Index: uint16(index)})
	if err != nil {
		// Only fails on unsupported Go types; the params struct here is
		// always encodable.
		panic(fmt.Sprintf("protocol: failed to encode region location params: %v", err))
	}
	return Request{Command: CmdGetSpecialMemoryRegionLocation, payload: payload}
}

// CommDisconnect builds a request for a graceful session teardown.
func (p *Protocol) CommDisconnect(sessionID uint32) Request {
	payload, err := marshal(disconnectParams{SessionID: sessionID})
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to encode disconnect params: %v", err))
	}
	return Request{Command: CmdCommDisconnect, payload: payload}
}

// Discover builds a broadcast discovery request: "is anyone out there".
func (p *Protocol) Discover() Request {
	return Request{Command: CmdDiscover}
}

// Connect builds the session-establishment handshake request.
func (p *Protocol) Connect() Request {
	return Request{Command: CmdConnect}
}

// Heartbeat builds a liveness-check request for an established session.
func (p *Protocol) Heartbeat(sessionID uint32) Request {
	payload, err := marshal(heartbeatParams{SessionID: sessionID})
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to encode heartbeat params: %v", err))
	}
	return Request{Command: CmdHeartbeat, payload: payload}
}

// EncodeResponse serializes a response frame. Used by the simulated device
// and by tests that need to hand crafted frames to a CommHandler.
func EncodeResponse(cmd Command, code ResponseCode, data any) ([]byte, error) {
	payload, err := marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode response payload: %w", err)
	}
	return marshal(wireResponse{Cmd: uint8(cmd), Code: uint8(code), Payload: payload})
}
