// Package scrutinylog provides structured diagnostic logging for the
// Scrutiny device-interaction core.
//
// This package defines the Logger interface and Event types for capturing
// connection lifecycle, protocol, and SFD-binding events. It is separate
// from application logging (slog) - it provides a complete machine-readable
// event trace for debugging a device session after the fact.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := scrutinylog.NewSlogAdapter(slog.Default())
//
//	// For production: write to a CBOR-encoded file
//	logger, _ := scrutinylog.NewFileLogger("/var/log/scrutiny/session.slog")
//
//	// Both: use MultiLogger
//	logger := scrutinylog.NewMultiLogger(
//	    scrutinylog.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Kinds
//
//   - StateChange: Device Handler / Info Poller FSM transitions.
//   - Comm: request sent, response received, timeout, comm-broken.
//   - SFD: SFD load/unload against the datastore.
//   - Error: transport, protocol-semantic, and configuration errors.
//
// # File Format
//
// Log files use CBOR encoding with the .slog extension.
package scrutinylog
