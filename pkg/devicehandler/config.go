package devicehandler

import (
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/scrutinylog"
)

// LinkType selects which Link implementation InitComm constructs.
type LinkType string

const (
	LinkNone            LinkType = "none"
	LinkUDP             LinkType = "udp"
	LinkDummy           LinkType = "dummy"
	LinkThreadSafeDummy LinkType = "thread_safe_dummy"
)

// Defaults, per the spec's configuration table.
const (
	DefaultResponseTimeout  = 1 * time.Second
	DefaultHeartbeatTimeout = 4 * time.Second
	DefaultAddressSizeBits  = 32
	DefaultProtocolMajor    = 1
	DefaultProtocolMinor    = 0
)

// Config configures a Handler.
type Config struct {
	// ResponseTimeout bounds each outstanding request.
	ResponseTimeout time.Duration
	// HeartbeatTimeout is the liveness ceiling: no valid heartbeat reply
	// within this long while connected marks the link broken.
	HeartbeatTimeout time.Duration
	// DefaultAddressSizeBits is restored by reset_comm on every INIT entry.
	DefaultAddressSizeBits int
	// DefaultProtocolMajor/Minor are restored by reset_comm on every INIT
	// entry. The spec writes this as a single "major.minor" string; this
	// implementation takes the two components directly rather than parsing
	// a string at construction time.
	DefaultProtocolMajor int
	DefaultProtocolMinor int
	// LinkType selects the Link implementation. LinkDummy and
	// LinkThreadSafeDummy require LinkConfig to already be one end of a
	// pair built with link.NewDummyLinkPair / link.NewThreadSafeDummyLinkPair.
	LinkType LinkType
	// LinkConfig is passed through to the Link's Open method.
	LinkConfig any
	// Now supplies the current time; defaults to time.Now. Tests inject a
	// fake clock to exercise timeout and heartbeat-staleness behavior
	// deterministically.
	Now func() time.Time
	// Logger receives state-change, comm, and error diagnostic events.
	// Defaults to scrutinylog.NoopLogger.
	Logger scrutinylog.Logger
}

func (c *Config) setDefaults() {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.DefaultAddressSizeBits == 0 {
		c.DefaultAddressSizeBits = DefaultAddressSizeBits
	}
	if c.DefaultProtocolMajor == 0 && c.DefaultProtocolMinor == 0 {
		c.DefaultProtocolMajor = DefaultProtocolMajor
		c.DefaultProtocolMinor = DefaultProtocolMinor
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = scrutinylog.NoopLogger{}
	}
}
