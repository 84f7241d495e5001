// Package activesfd implements the Active SFD Handler: the component that
// keeps the datastore synchronized with the currently connected device's
// firmware identity by binding and unbinding Scrutiny Firmware
// Description manifests as the connection comes and goes.
package activesfd

import (
	"fmt"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/datastore"
	"github.com/scrutinydebugger/scrutiny-go/pkg/deviceinfo"
	"github.com/scrutinydebugger/scrutiny-go/pkg/devicehandler"
	"github.com/scrutinydebugger/scrutiny-go/pkg/scrutinylog"
	"github.com/scrutinydebugger/scrutiny-go/pkg/sfd"
)

// DeviceHandler is the narrow slice of *devicehandler.Handler the Active
// SFD Handler depends on - a capability abstraction rather than the
// concrete type, so tests can supply a fake connection status.
type DeviceHandler interface {
	GetConnectionStatus() devicehandler.ConnectionStatus
	GetDeviceID() string
	GetDeviceInfo() *deviceinfo.DeviceInfo
}

// Config configures an ActiveSFDHandler.
type Config struct {
	// AutoLoad enables automatically loading the SFD matching the
	// connected device's firmware ID. New enables it; the zero value leaves
	// it disabled for NewWithConfig.
	AutoLoad bool
	// Now supplies the current time for log timestamps. Defaults to
	// time.Now.
	Now func() time.Time
	// Logger receives SFD bind/unbind and error diagnostic events.
	// Defaults to scrutinylog.NoopLogger.
	Logger scrutinylog.Logger
}

func (c *Config) setDefaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = scrutinylog.NoopLogger{}
	}
}

// ActiveSFDHandler binds SFD manifests into a Datastore based on the
// connected device's reported firmware identity.
type ActiveSFDHandler struct {
	cfg     Config
	dh      DeviceHandler
	ds      *datastore.Datastore
	storage sfd.Storage

	currentSFD sfd.FirmwareDescription
	lastStatus devicehandler.ConnectionStatus

	pendingFirmwareID string
	hasPendingLoad    bool

	loadedCallbacks   []func(sfd.FirmwareDescription)
	unloadedCallbacks []func()
}

// New creates an ActiveSFDHandler bound to dh's connection lifecycle, ds,
// and storage, with autoload enabled. Use NewWithConfig to disable
// autoload or to supply a clock/logger.
func New(dh DeviceHandler, ds *datastore.Datastore, storage sfd.Storage) *ActiveSFDHandler {
	return NewWithConfig(dh, ds, storage, Config{AutoLoad: true})
}

// NewWithConfig creates an ActiveSFDHandler with explicit configuration.
func NewWithConfig(dh DeviceHandler, ds *datastore.Datastore, storage sfd.Storage, cfg Config) *ActiveSFDHandler {
	cfg.setDefaults()
	return &ActiveSFDHandler{
		cfg:        cfg,
		dh:         dh,
		ds:         ds,
		storage:    storage,
		lastStatus: devicehandler.StatusUnknown,
	}
}

// OnLoaded registers a callback invoked synchronously, from Process, each
// time a new SFD is bound. Registration is append-only.
func (a *ActiveSFDHandler) OnLoaded(cb func(sfd.FirmwareDescription)) {
	a.loadedCallbacks = append(a.loadedCallbacks, cb)
}

// OnUnloaded registers a callback invoked synchronously, from Process,
// each time the bound SFD is dropped. Registration is append-only.
func (a *ActiveSFDHandler) OnUnloaded(cb func()) {
	a.unloadedCallbacks = append(a.unloadedCallbacks, cb)
}

// CurrentSFD returns the currently bound firmware description, or nil if
// none is loaded.
func (a *ActiveSFDHandler) CurrentSFD() sfd.FirmwareDescription {
	return a.currentSFD
}

// RequestLoadSFD asks Process to bind firmwareID on its next tick,
// overriding whatever autoload would otherwise choose. It fails
// immediately if firmwareID is not installed; the datastore and currently
// loaded SFD are left untouched on failure.
func (a *ActiveSFDHandler) RequestLoadSFD(firmwareID string) error {
	if !a.storage.IsInstalled(firmwareID) {
		return fmt.Errorf("activesfd: firmware %q is not installed", firmwareID)
	}
	a.pendingFirmwareID = firmwareID
	a.hasPendingLoad = true
	return nil
}

// Process advances the handler by one tick.
func (a *ActiveSFDHandler) Process() {
	status := a.dh.GetConnectionStatus()

	if a.cfg.AutoLoad {
		if status != devicehandler.StatusConnectedReady {
			a.resetActiveSFD()
		} else if a.currentSFD == nil {
			deviceID := a.dh.GetDeviceID()
			if deviceID != "" {
				a.loadSFD(deviceID, status != a.lastStatus)
			} else {
				a.cfg.Logger.Log(scrutinylog.Event{
					Timestamp: a.cfg.Now(),
					Category:  scrutinylog.CategoryError,
					Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: "connected and ready but no device id is known"},
				})
			}
		}
	}

	if a.hasPendingLoad {
		firmwareID := a.pendingFirmwareID
		a.hasPendingLoad = false
		a.loadSFD(firmwareID, true)
	}

	a.lastStatus = status
}

// resetActiveSFD clears the datastore and drops the current SFD
// reference, firing unload callbacks only if an SFD had actually been
// loaded.
func (a *ActiveSFDHandler) resetActiveSFD() {
	a.ds.Clear()
	if a.currentSFD == nil {
		return
	}
	a.currentSFD = nil
	a.cfg.Logger.Log(scrutinylog.Event{
		Timestamp: a.cfg.Now(),
		Category:  scrutinylog.CategorySFD,
		SFD:       &scrutinylog.SFDEvent{Loaded: false},
	})
	a.invokeUnloadedCallbacks()
}

// loadSFD unconditionally clears the datastore and the current SFD
// reference, then binds firmwareID if installed. Duplicate or invalid
// entries are logged and skipped; a missing manifest leaves no SFD bound
// and is logged only when verbose is set.
func (a *ActiveSFDHandler) loadSFD(firmwareID string, verbose bool) {
	a.ds.Clear()
	a.currentSFD = nil

	if !a.storage.IsInstalled(firmwareID) {
		if verbose {
			a.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: a.cfg.Now(),
				DeviceID:  firmwareID,
				Category:  scrutinylog.CategoryError,
				Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: "no SFD installed for this firmware"},
			})
		}
		return
	}

	desc, err := a.storage.Get(firmwareID)
	if err != nil {
		a.cfg.Logger.Log(scrutinylog.Event{
			Timestamp: a.cfg.Now(),
			DeviceID:  firmwareID,
			Category:  scrutinylog.CategoryError,
			Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: err.Error()},
		})
		return
	}

	addressBits := 0
	if info := a.dh.GetDeviceInfo(); info != nil && info.AddressSizeBits != nil {
		addressBits = *info.AddressSizeBits
	}

	entryCount := 0
	for path, def := range desc.VarsForDatastore() {
		if addressBits > 0 && !fitsAddressSize(def.Address, addressBits) {
			a.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: a.cfg.Now(),
				DeviceID:  firmwareID,
				Category:  scrutinylog.CategoryError,
				Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: "variable address out of range for negotiated address size", Context: path},
			})
			continue
		}
		err := a.ds.AddEntry(datastore.Entry{EntryType: datastore.EntryTypeVar, DisplayPath: path, VariableDef: def})
		if err != nil {
			a.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: a.cfg.Now(),
				DeviceID:  firmwareID,
				Category:  scrutinylog.CategoryError,
				Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassProtocol, Message: err.Error(), Context: path},
			})
			continue
		}
		entryCount++
	}

	a.currentSFD = desc
	a.cfg.Logger.Log(scrutinylog.Event{
		Timestamp: a.cfg.Now(),
		DeviceID:  firmwareID,
		Category:  scrutinylog.CategorySFD,
		SFD:       &scrutinylog.SFDEvent{FirmwareID: firmwareID, Loaded: true, EntryCount: entryCount},
	})
	a.invokeLoadedCallbacks(desc)
}

func fitsAddressSize(addr uint64, bits int) bool {
	if bits >= 64 {
		return true
	}
	mask := (uint64(1) << uint(bits)) - 1
	return addr&^mask == 0
}

// invokeLoadedCallbacks fires every registered load callback behind an
// error boundary: a panicking callback is logged and the rest still run.
func (a *ActiveSFDHandler) invokeLoadedCallbacks(desc sfd.FirmwareDescription) {
	for _, cb := range a.loadedCallbacks {
		a.safeInvoke(func() { cb(desc) })
	}
}

func (a *ActiveSFDHandler) invokeUnloadedCallbacks() {
	for _, cb := range a.unloadedCallbacks {
		a.safeInvoke(cb)
	}
}

func (a *ActiveSFDHandler) safeInvoke(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			a.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: a.cfg.Now(),
				Category:  scrutinylog.CategoryError,
				Error:     &scrutinylog.ErrorEvent{Class: scrutinylog.ErrorClassConfig, Message: fmt.Sprintf("SFD callback panicked: %v", r)},
			})
		}
	}()
	cb()
}
