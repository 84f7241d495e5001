package scrutinylog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes diagnostic events to an slog.Logger. Useful during
// development to see connection lifecycle events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at an appropriate level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	level := slog.LevelDebug
	msg := "scrutiny"

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState),
		)
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
		msg = "state change"
	case event.Comm != nil:
		c := event.Comm
		attrs = append(attrs,
			slog.String("request", c.Request),
			slog.Bool("success", c.Success),
			slog.Bool("timed_out", c.TimedOut),
		)
		msg = "comm"
	case event.SFD != nil:
		s := event.SFD
		attrs = append(attrs,
			slog.String("firmware_id", s.FirmwareID),
			slog.Bool("loaded", s.Loaded),
			slog.Int("entry_count", s.EntryCount),
		)
		msg = "sfd"
	case event.Error != nil:
		e := event.Error
		attrs = append(attrs,
			slog.String("error_class", e.Class.String()),
			slog.String("error_msg", e.Message),
		)
		if e.Context != "" {
			attrs = append(attrs, slog.String("error_context", e.Context))
		}
		msg = "error"
		if e.Class == ErrorClassConfig {
			level = slog.LevelError
		} else {
			level = slog.LevelWarn
		}
	}

	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
