// Package simdevice implements a minimal in-process simulated firmware
// device, answering the Scrutiny wire protocol over a Link so the Device
// Handler pipeline can be exercised end-to-end without real hardware.
// Grounded in the teacher's pkg/examples simulated devices (EVSE, CEM,
// heat pump): a canned-data device driven by its own tick, standing in
// for a piece of hardware during development and testing.
package simdevice

import (
	"context"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// MemoryRegion is an inclusive address range the simulated device reports
// as forbidden or read-only.
type MemoryRegion struct {
	Start uint64
	End   uint64
}

// Config describes the canned capability data the simulated device
// answers with.
type Config struct {
	FirmwareID string

	ProtocolMajor int
	ProtocolMinor int

	SessionID  uint32
	CommParams protocol.CommParams
	Features   protocol.SupportedFeaturesData

	ForbiddenRegions []MemoryRegion
	ReadOnlyRegions  []MemoryRegion

	// RefuseConnect, if set, makes Connect answer Refused instead of OK -
	// for exercising the SessionInitializer's error path.
	RefuseConnect bool
	// SilentDiscover, if set, drops Discover requests instead of
	// answering them - for exercising the DeviceSearcher's retry path.
	SilentDiscover bool
	// DropCommand, if non-zero, drops requests for that command instead
	// of answering them - for exercising the InfoPoller's timeout path.
	DropCommand protocol.Command
}

func (c *Config) setDefaults() {
	if c.ProtocolMajor == 0 && c.ProtocolMinor == 0 {
		c.ProtocolMajor = 1
	}
}

// Device is a simulated firmware device: it owns one end of a DummyLink
// (or ThreadSafeDummyLink) pair and answers requests with Config's canned
// data.
type Device struct {
	cfg Config
	l   *link.DummyLink
}

// New creates a Device bound to l, the device-side end of a pair created
// with link.NewDummyLinkPair or link.NewThreadSafeDummyLinkPair. The
// caller is responsible for calling l.Open before driving the device.
func New(cfg Config, l *link.DummyLink) *Device {
	cfg.setDefaults()
	return &Device{cfg: cfg, l: l}
}

// Process answers at most one pending request. It is a no-op if the link
// has nothing pending.
func (d *Device) Process() {
	frame, ok := d.l.Receive()
	if !ok {
		return
	}
	resp := d.handle(frame)
	if resp == nil {
		return
	}
	_ = d.l.Send(resp)
}

// Run drives Process on a ticker until ctx is cancelled, for use with a
// ThreadSafeDummyLink from a dedicated goroutine - e.g. the CLI's
// "-link simulated" mode.
func (d *Device) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Process()
		}
	}
}

func (d *Device) handle(frame []byte) []byte {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		return nil
	}

	if d.cfg.DropCommand != 0 && req.Command == d.cfg.DropCommand {
		return nil
	}

	switch req.Command {
	case protocol.CmdDiscover:
		if d.cfg.SilentDiscover {
			return nil
		}
		return d.encode(protocol.CmdDiscover, protocol.ResponseCodeOK, protocol.NewDiscoverData(d.cfg.FirmwareID))

	case protocol.CmdConnect:
		if d.cfg.RefuseConnect {
			return d.encode(protocol.CmdConnect, protocol.ResponseCodeRefused, protocol.NewConnectData(0))
		}
		return d.encode(protocol.CmdConnect, protocol.ResponseCodeOK, protocol.NewConnectData(d.cfg.SessionID))

	case protocol.CmdGetProtocolVersion:
		return d.encode(protocol.CmdGetProtocolVersion, protocol.ResponseCodeOK, protocol.NewProtocolVersionData(d.cfg.ProtocolMajor, d.cfg.ProtocolMinor))

	case protocol.CmdCommGetParams:
		return d.encode(protocol.CmdCommGetParams, protocol.ResponseCodeOK, protocol.NewCommParamsData(d.cfg.CommParams))

	case protocol.CmdGetSupportedFeatures:
		f := d.cfg.Features
		return d.encode(protocol.CmdGetSupportedFeatures, protocol.ResponseCodeOK, protocol.NewSupportedFeaturesData(f.MemoryRead, f.MemoryWrite, f.DatalogAcquire, f.UserCommand))

	case protocol.CmdGetSpecialMemoryRegionCount:
		return d.encode(protocol.CmdGetSpecialMemoryRegionCount, protocol.ResponseCodeOK,
			protocol.NewMemoryRegionCountData(uint16(len(d.cfg.ForbiddenRegions)), uint16(len(d.cfg.ReadOnlyRegions))))

	case protocol.CmdGetSpecialMemoryRegionLocation:
		kind, index, err := protocol.DecodeMemoryRegionLocationParams(req.Payload())
		if err != nil {
			return nil
		}
		region, ok := d.regionAt(kind, index)
		if !ok {
			return d.encode(protocol.CmdGetSpecialMemoryRegionLocation, protocol.ResponseCodeRefused, protocol.NewMemoryRegionData(0, 0))
		}
		return d.encode(protocol.CmdGetSpecialMemoryRegionLocation, protocol.ResponseCodeOK, protocol.NewMemoryRegionData(region.Start, region.End))

	case protocol.CmdHeartbeat:
		return d.encode(protocol.CmdHeartbeat, protocol.ResponseCodeOK, protocol.NewHeartbeatData())

	case protocol.CmdCommDisconnect:
		return d.encode(protocol.CmdCommDisconnect, protocol.ResponseCodeOK, protocol.NewDisconnectData())

	default:
		return nil
	}
}

func (d *Device) regionAt(kind protocol.MemoryRangeType, index int) (MemoryRegion, bool) {
	list := d.cfg.ForbiddenRegions
	if kind == protocol.MemoryRangeReadOnly {
		list = d.cfg.ReadOnlyRegions
	}
	if index < 0 || index >= len(list) {
		return MemoryRegion{}, false
	}
	return list[index], true
}

func (d *Device) encode(cmd protocol.Command, code protocol.ResponseCode, data any) []byte {
	frame, err := protocol.EncodeResponse(cmd, code, data)
	if err != nil {
		return nil
	}
	return frame
}
