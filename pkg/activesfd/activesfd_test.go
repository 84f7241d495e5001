package activesfd_test

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrutinydebugger/scrutiny-go/pkg/activesfd"
	"github.com/scrutinydebugger/scrutiny-go/pkg/datastore"
	"github.com/scrutinydebugger/scrutiny-go/pkg/deviceinfo"
	"github.com/scrutinydebugger/scrutiny-go/pkg/devicehandler"
	"github.com/scrutinydebugger/scrutiny-go/pkg/sfd"
)

type fakeHandler struct {
	status   devicehandler.ConnectionStatus
	deviceID string
	info     *deviceinfo.DeviceInfo
}

func (f *fakeHandler) GetConnectionStatus() devicehandler.ConnectionStatus { return f.status }
func (f *fakeHandler) GetDeviceID() string                                { return f.deviceID }
func (f *fakeHandler) GetDeviceInfo() *deviceinfo.DeviceInfo               { return f.info }

type fakeDescription struct {
	id   string
	vars map[string]sfd.VariableDef
}

func (d *fakeDescription) ID() string { return d.id }
func (d *fakeDescription) VarsForDatastore() iter.Seq2[string, sfd.VariableDef] {
	return func(yield func(string, sfd.VariableDef) bool) {
		for path, def := range d.vars {
			if !yield(path, def) {
				return
			}
		}
	}
}

type fakeStorage struct {
	descriptions map[string]*fakeDescription
}

func newFakeStorage() *fakeStorage { return &fakeStorage{descriptions: map[string]*fakeDescription{}} }

func (s *fakeStorage) add(desc *fakeDescription) { s.descriptions[desc.id] = desc }

func (s *fakeStorage) IsInstalled(firmwareID string) bool {
	_, ok := s.descriptions[firmwareID]
	return ok
}

func (s *fakeStorage) Get(firmwareID string) (sfd.FirmwareDescription, error) {
	desc, ok := s.descriptions[firmwareID]
	if !ok {
		return nil, errors.New("fake storage: not found")
	}
	return desc, nil
}

func addressBits(bits int) *deviceinfo.DeviceInfo {
	return &deviceinfo.DeviceInfo{AddressSizeBits: &bits}
}

func TestActiveSFDHandler_AutoLoadsOnConnectedReady(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "ABCD1234", vars: map[string]sfd.VariableDef{
		"/a": {DataType: "uint8", Address: 100},
		"/b": {DataType: "uint8", Address: 200},
	}})

	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "ABCD1234", info: addressBits(32)}
	ds := datastore.New()

	loadedCount := 0
	a := activesfd.New(h, ds, storage)
	a.OnLoaded(func(sfd.FirmwareDescription) { loadedCount++ })

	a.Process()

	require.Equal(t, 1, loadedCount)
	require.Equal(t, 2, ds.Len())
	require.NotNil(t, a.CurrentSFD())
}

func TestActiveSFDHandler_ResetsWhenNotReady(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "ABCD1234", vars: map[string]sfd.VariableDef{"/a": {Address: 1}}})

	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "ABCD1234", info: addressBits(32)}
	ds := datastore.New()
	a := activesfd.New(h, ds, storage)

	unloadCount := 0
	a.OnUnloaded(func() { unloadCount++ })

	a.Process()
	require.Equal(t, 1, ds.Len())

	h.status = devicehandler.StatusDisconnected
	a.Process()

	require.Equal(t, 0, ds.Len())
	require.Nil(t, a.CurrentSFD())
	require.Equal(t, 1, unloadCount)

	// A second tick while still disconnected must not re-fire the unload
	// callback - nothing was loaded to unload.
	a.Process()
	require.Equal(t, 1, unloadCount)
}

func TestActiveSFDHandler_NoSFDInstalledLeavesDatastoreEmpty(t *testing.T) {
	storage := newFakeStorage()
	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "UNKNOWN", info: addressBits(32)}
	ds := datastore.New()
	a := activesfd.New(h, ds, storage)

	a.Process()

	require.Equal(t, 0, ds.Len())
	require.Nil(t, a.CurrentSFD())
}

func TestActiveSFDHandler_RequestLoadSFD_UninstalledFails(t *testing.T) {
	storage := newFakeStorage()
	h := &fakeHandler{status: devicehandler.StatusDisconnected}
	a := activesfd.New(h, datastore.New(), storage)

	err := a.RequestLoadSFD("NOPE")
	require.Error(t, err)
}

func TestActiveSFDHandler_RequestLoadSFD_OverridesAutoload(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "FIRST", vars: map[string]sfd.VariableDef{"/a": {Address: 1}}})
	storage.add(&fakeDescription{id: "SECOND", vars: map[string]sfd.VariableDef{"/b": {Address: 2}, "/c": {Address: 3}}})

	h := &fakeHandler{status: devicehandler.StatusDisconnected}
	ds := datastore.New()
	a := activesfd.New(h, ds, storage)

	require.NoError(t, a.RequestLoadSFD("SECOND"))
	a.Process()

	require.Equal(t, "SECOND", a.CurrentSFD().ID())
	require.Equal(t, 2, ds.Len())
}

func TestActiveSFDHandler_DuplicateEntryIsSkippedNotFatal(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "DUPTEST", vars: map[string]sfd.VariableDef{"/same": {Address: 1}}})

	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "DUPTEST", info: addressBits(32)}
	ds := datastore.New()
	require.NoError(t, ds.AddEntry(datastore.Entry{DisplayPath: "/same", VariableDef: sfd.VariableDef{}}))

	a := activesfd.New(h, ds, storage)
	loaded := 0
	a.OnLoaded(func(sfd.FirmwareDescription) { loaded++ })

	a.Process()

	require.Equal(t, 1, loaded)
	require.Equal(t, 1, ds.Len())
}

func TestActiveSFDHandler_PanickingCallbackDoesNotStopOthers(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "ABCD1234", vars: map[string]sfd.VariableDef{"/a": {Address: 1}}})

	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "ABCD1234", info: addressBits(32)}
	a := activesfd.New(h, datastore.New(), storage)

	secondRan := false
	a.OnLoaded(func(sfd.FirmwareDescription) { panic("boom") })
	a.OnLoaded(func(sfd.FirmwareDescription) { secondRan = true })

	require.NotPanics(t, func() { a.Process() })
	require.True(t, secondRan)
}

func TestActiveSFDHandler_AddressOutOfRangeIsSkipped(t *testing.T) {
	storage := newFakeStorage()
	storage.add(&fakeDescription{id: "ABCD1234", vars: map[string]sfd.VariableDef{
		"/ok":      {Address: 0xFF},
		"/too_big": {Address: 1 << 40},
	}})

	h := &fakeHandler{status: devicehandler.StatusConnectedReady, deviceID: "ABCD1234", info: addressBits(32)}
	ds := datastore.New()
	a := activesfd.New(h, ds, storage)

	a.Process()

	require.Equal(t, 1, ds.Len())
	_, ok := ds.Get("/ok")
	require.True(t, ok)
	_, ok = ds.Get("/too_big")
	require.False(t, ok)
}
