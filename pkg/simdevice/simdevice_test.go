package simdevice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrutinydebugger/scrutiny-go/pkg/datastore"
	"github.com/scrutinydebugger/scrutiny-go/pkg/deviceinfo"
	"github.com/scrutinydebugger/scrutiny-go/pkg/devicehandler"
	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
	"github.com/scrutinydebugger/scrutiny-go/pkg/simdevice"
)

func defaultConfig(firmwareID string) simdevice.Config {
	return simdevice.Config{
		FirmwareID:    firmwareID,
		ProtocolMajor: 1,
		ProtocolMinor: 0,
		SessionID:     0xCAFEBABE,
		CommParams: protocol.CommParams{
			MaxTxDataSize:      128,
			MaxRxDataSize:      128,
			MaxBitrateBps:      115200,
			RxTimeoutUs:        50000,
			HeartbeatTimeoutUs: 4000000,
			AddressSizeByte:    32,
		},
		Features: protocol.SupportedFeaturesData{
			MemoryRead:     true,
			MemoryWrite:    true,
			DatalogAcquire: true,
			UserCommand:    true,
		},
		ForbiddenRegions: []simdevice.MemoryRegion{{Start: 0x1000, End: 0x1FFF}},
		ReadOnlyRegions:  []simdevice.MemoryRegion{{Start: 0x2000, End: 0x2FFF}},
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newHandlerAndLink(t *testing.T, clock *fakeClock) (*devicehandler.Handler, *link.DummyLink) {
	t.Helper()
	a, b := link.NewDummyLinkPair()
	h := devicehandler.NewHandler(devicehandler.Config{
		LinkType:   devicehandler.LinkDummy,
		LinkConfig: a,
		Now:        clock.Now,
	}, datastore.New())
	require.NoError(t, h.InitComm())
	require.NoError(t, b.Open(nil))
	return h, b
}

func TestDevice_DrivesHandlerToReady(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h, b := newHandlerAndLink(t, clock)
	dev := simdevice.New(defaultConfig("ABCD1234"), b)

	for i := 0; i < 200; i++ {
		h.Process(clock.Now())
		dev.Process()
		clock.Advance(10 * time.Millisecond)
		if h.GetConnectionStatus() == devicehandler.StatusConnectedReady {
			break
		}
	}

	require.Equal(t, devicehandler.StateReady, h.State())
	require.Equal(t, "ABCD1234", h.GetDeviceID())

	info := h.GetDeviceInfo()
	require.True(t, info.AllReady())
	require.Equal(t, []deviceinfo.MemoryRegion{{Start: 0x1000, End: 0x1FFF}}, info.ForbiddenMemoryRegions)
	require.Equal(t, []deviceinfo.MemoryRegion{{Start: 0x2000, End: 0x2FFF}}, info.ReadOnlyMemoryRegions)
}

func TestDevice_RefuseConnectKeepsHandlerOutOfReady(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h, b := newHandlerAndLink(t, clock)

	cfg := defaultConfig("ABCD1234")
	cfg.RefuseConnect = true
	dev := simdevice.New(cfg, b)

	for i := 0; i < 50; i++ {
		h.Process(clock.Now())
		dev.Process()
		clock.Advance(10 * time.Millisecond)
	}

	require.NotEqual(t, devicehandler.StateReady, h.State())
}

func TestDevice_SilentDiscoverNeverReachesConnecting(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h, b := newHandlerAndLink(t, clock)

	cfg := defaultConfig("ABCD1234")
	cfg.SilentDiscover = true
	dev := simdevice.New(cfg, b)

	for i := 0; i < 50; i++ {
		h.Process(clock.Now())
		dev.Process()
		clock.Advance(10 * time.Millisecond)
	}

	require.Equal(t, devicehandler.StateDiscovering, h.State())
}
