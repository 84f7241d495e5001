package scrutinylog

import "time"

// Category classifies the kind of event.
type Category uint8

const (
	// CategoryStateChange captures an FSM transition.
	CategoryStateChange Category = iota
	// CategoryComm captures a request/response/timeout on the wire.
	CategoryComm
	// CategorySFD captures an SFD load or unload.
	CategorySFD
	// CategoryError captures a transport, protocol-semantic, or
	// configuration error.
	CategoryError
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case CategoryStateChange:
		return "state_change"
	case CategoryComm:
		return "comm"
	case CategorySFD:
		return "sfd"
	case CategoryError:
		return "error"
	default:
		return "unknown"
	}
}

// Entity identifies which state machine a StateChangeEvent belongs to.
type Entity uint8

const (
	// EntityDeviceHandler is the top-level connection FSM.
	EntityDeviceHandler Entity = iota
	// EntityInfoPoller is the interrogation FSM.
	EntityInfoPoller
)

// String returns a human-readable entity name.
func (e Entity) String() string {
	switch e {
	case EntityDeviceHandler:
		return "device_handler"
	case EntityInfoPoller:
		return "info_poller"
	default:
		return "unknown"
	}
}

// ErrorClass mirrors the three error categories from the error-handling
// design: transport, protocol-semantic, and configuration.
type ErrorClass uint8

const (
	// ErrorClassTransport is a recovered timeout/malformed-response error.
	ErrorClassTransport ErrorClass = iota
	// ErrorClassProtocol is a recovered protocol-semantic error.
	ErrorClassProtocol
	// ErrorClassConfig is a fatal-at-call-site configuration error.
	ErrorClassConfig
)

// String returns a human-readable error class name.
func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransport:
		return "transport"
	case ErrorClassProtocol:
		return "protocol"
	case ErrorClassConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Event represents a single diagnostic event. CBOR encoding uses integer
// keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID correlates events from the same device connection attempt.
	// Empty before a session is established.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// DeviceID is the firmware-reported device identity, when known.
	DeviceID string `cbor:"4,keyasint,omitempty"`

	StateChange *StateChangeEvent `cbor:"5,keyasint,omitempty"`
	Comm        *CommEvent        `cbor:"6,keyasint,omitempty"`
	SFD         *SFDEvent         `cbor:"7,keyasint,omitempty"`
	Error       *ErrorEvent       `cbor:"8,keyasint,omitempty"`
}

// StateChangeEvent captures an FSM transition.
type StateChangeEvent struct {
	Entity   Entity `cbor:"1,keyasint"`
	OldState string `cbor:"2,keyasint"`
	NewState string `cbor:"3,keyasint"`
	Reason   string `cbor:"4,keyasint,omitempty"`
}

// CommEvent captures a request dispatch, response arrival, or timeout.
type CommEvent struct {
	// Request names the outgoing command, if this event concerns a send.
	Request string `cbor:"1,keyasint,omitempty"`
	// Success indicates whether a pending request completed successfully.
	Success bool `cbor:"2,keyasint"`
	// TimedOut indicates the pending request's deadline elapsed.
	TimedOut bool `cbor:"3,keyasint,omitempty"`
}

// SFDEvent captures an SFD bind/unbind against the datastore.
type SFDEvent struct {
	FirmwareID string `cbor:"1,keyasint,omitempty"`
	Loaded     bool   `cbor:"2,keyasint"`
	EntryCount int    `cbor:"3,keyasint,omitempty"`
}

// ErrorEvent captures a recovered or fatal error.
type ErrorEvent struct {
	Class   ErrorClass `cbor:"1,keyasint"`
	Message string     `cbor:"2,keyasint"`
	Context string     `cbor:"3,keyasint,omitempty"`
}
