// Command scrutiny-server runs the device-interaction core against a
// single device connection: discovery, session establishment, capability
// polling, SFD binding, and steady-state operation, all driven from one
// ticker loop.
//
// Usage:
//
//	scrutiny-server [flags]
//
// Flags:
//
//	-link string        Link type: udp, simulated (default "simulated")
//	-remote-addr string  Device address for -link=udp, e.g. 192.168.1.50:51000
//	-sfd-dir string      Directory of .sfd.yaml manifests (default "./sfd")
//	-firmware-id string  Firmware ID the simulated device reports (default "SIMULATED01")
//	-tick duration       Tick interval (default 20ms)
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-log-file string     Optional CBOR event log path, in addition to console
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/activesfd"
	"github.com/scrutinydebugger/scrutiny-go/pkg/backoff"
	"github.com/scrutinydebugger/scrutiny-go/pkg/datastore"
	"github.com/scrutinydebugger/scrutiny-go/pkg/devicehandler"
	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
	"github.com/scrutinydebugger/scrutiny-go/pkg/scrutinylog"
	"github.com/scrutinydebugger/scrutiny-go/pkg/sfd"
	"github.com/scrutinydebugger/scrutiny-go/pkg/simdevice"
)

type config struct {
	linkType   string
	remoteAddr string
	sfdDir     string
	firmwareID string
	tick       time.Duration
	logLevel   string
	logFile    string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.linkType, "link", "simulated", "Link type: udp, simulated")
	flag.StringVar(&cfg.remoteAddr, "remote-addr", "", "Device address for -link=udp")
	flag.StringVar(&cfg.sfdDir, "sfd-dir", "./sfd", "Directory of .sfd.yaml manifests")
	flag.StringVar(&cfg.firmwareID, "firmware-id", "SIMULATED01", "Firmware ID the simulated device reports")
	flag.DurationVar(&cfg.tick, "tick", 20*time.Millisecond, "Tick interval")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.logFile, "log-file", "", "Optional CBOR event log path, in addition to console")
	flag.Parse()

	logger, closeLogger, err := buildLogger(cfg.logLevel, cfg.logFile)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linkType, linkConfig, stopSim, err := buildLink(cfg)
	if err != nil {
		log.Fatalf("failed to set up link: %v", err)
	}
	if stopSim != nil {
		go stopSim(ctx)
	}

	ds := datastore.New()
	handler := devicehandler.NewHandler(devicehandler.Config{
		LinkType: linkType,
		LinkConfig: linkConfig,
		Logger: logger,
	}, ds)

	if err := openWithBackoff(ctx, handler); err != nil {
		log.Fatalf("failed to open link: %v", err)
	}

	sfdHandler := activesfd.NewWithConfig(handler, ds, sfd.NewDirStorage(cfg.sfdDir), activesfd.Config{
		AutoLoad: true,
		Logger:   logger,
	})
	sfdHandler.OnLoaded(func(desc sfd.FirmwareDescription) {
		log.Printf("SFD bound: %s", desc.ID())
	})
	sfdHandler.OnUnloaded(func() {
		log.Println("SFD unbound")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.tick)
	defer ticker.Stop()

	log.Printf("scrutiny-server running (link=%s, sfd-dir=%s)", cfg.linkType, cfg.sfdDir)

runLoop:
	for {
		select {
		case sig := <-sigCh:
			log.Printf("received signal: %v", sig)
			break runLoop
		case <-ctx.Done():
			break runLoop
		case <-ticker.C:
			now := time.Now()
			handler.Process(now)
			sfdHandler.Process()
		}
	}

	log.Println("disconnecting...")
	done := make(chan bool, 1)
	handler.SendDisconnect(func(success bool) { done <- success })
	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case <-done:
			break drain
		case <-deadline:
			log.Println("disconnect did not complete before deadline")
			break drain
		case <-ticker.C:
			handler.Process(time.Now())
		}
	}

	cancel()
	log.Println("goodbye")
}

// buildLink constructs the Link configuration named by cfg.linkType. For
// "simulated" it wires a simdevice.Device to the far end of a thread-safe
// loopback pair and returns a starter that drives it on its own goroutine.
func buildLink(cfg config) (devicehandler.LinkType, any, func(ctx context.Context), error) {
	switch cfg.linkType {
	case "udp":
		if cfg.remoteAddr == "" {
			return "", nil, nil, fmt.Errorf("-remote-addr is required for -link=udp")
		}
		return devicehandler.LinkUDP, link.UDPConfig{RemoteAddr: cfg.remoteAddr}, nil, nil

	case "simulated":
		a, b := link.NewThreadSafeDummyLinkPair()
		if err := b.Open(nil); err != nil {
			return "", nil, nil, err
		}
		dev := simdevice.New(simdevice.Config{
			FirmwareID:    cfg.firmwareID,
			ProtocolMajor: 1,
			ProtocolMinor: 0,
			SessionID:     1,
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
		}, b)
		starter := func(ctx context.Context) { dev.Run(ctx, 5*time.Millisecond) }
		return devicehandler.LinkThreadSafeDummy, a, starter, nil

	default:
		return "", nil, nil, fmt.Errorf("unknown -link %q (use udp or simulated)", cfg.linkType)
	}
}

// openWithBackoff retries Handler.InitComm with exponential backoff until it
// succeeds or the context is cancelled.
func openWithBackoff(ctx context.Context, handler *devicehandler.Handler) error {
	pacer := backoff.New()
	for {
		err := handler.InitComm()
		if err == nil {
			return nil
		}
		delay := pacer.NextDelay()
		log.Printf("link open failed (attempt %d): %v, retrying in %s", pacer.Attempts(), err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func buildLogger(level, logFile string) (scrutinylog.Logger, func(), error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	console := scrutinylog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))

	if logFile == "" {
		return console, func() {}, nil
	}

	fileLogger, err := scrutinylog.NewFileLogger(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return scrutinylog.NewMultiLogger(console, fileLogger), func() { _ = fileLogger.Close() }, nil
}
