package devicehandler

import (
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/scrutinylog"
)

// handleComm pumps exactly one request/response exchange per tick: if a
// response or timeout arrived for the pending record, settle it; otherwise,
// if idle and nothing is outstanding, pull the next record from the
// dispatcher and send it. A response that fails to parse, or a comm
// handler that falls idle without ever producing a response, is treated
// as comm_broken.
func (h *Handler) handleComm(now time.Time) {
	h.comm.Process(now)

	switch {
	case h.comm.WaitingResponse():
		return

	case h.comm.ResponseAvailable():
		frame, ok := h.comm.GetResponse()
		if !ok {
			return
		}
		_, code, data, err := h.proto.ParseResponse(frame)
		if err != nil {
			h.failPending()
			h.commBroken = true
			return
		}
		if h.pendingRecord != nil {
			rec := h.pendingRecord
			h.pendingRecord = nil
			h.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: now,
				DeviceID:  h.deviceID,
				Category:  scrutinylog.CategoryComm,
				Comm:      &scrutinylog.CommEvent{Request: rec.Request.Command.String(), Success: true},
			})
			rec.Complete(true, code, data)
		}

	case h.comm.HasTimedOut():
		h.comm.ClearTimeout()
		if h.pendingRecord != nil {
			h.cfg.Logger.Log(scrutinylog.Event{
				Timestamp: now,
				DeviceID:  h.deviceID,
				Category:  scrutinylog.CategoryComm,
				Comm:      &scrutinylog.CommEvent{Request: h.pendingRecord.Request.Command.String(), TimedOut: true},
			})
		}
		h.failPending()

	default:
		if h.pendingRecord != nil {
			// CommHandler fell idle without ever producing a response or a
			// timeout for the record we sent: a spurious transition.
			h.failPending()
			h.commBroken = true
			return
		}
		rec, ok := h.disp.Next()
		if !ok {
			return
		}
		frame, err := rec.Request.Encode()
		if err != nil {
			rec.Complete(false, 0, nil)
			return
		}
		if err := h.comm.SendRequest(frame); err != nil {
			rec.Complete(false, 0, nil)
			return
		}
		h.pendingRecord = rec
	}
}

func (h *Handler) failPending() {
	if h.pendingRecord == nil {
		return
	}
	rec := h.pendingRecord
	h.pendingRecord = nil
	rec.Complete(false, 0, nil)
}
