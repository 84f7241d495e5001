package devicehandler

import "github.com/scrutinydebugger/scrutiny-go/pkg/protocol"

func (h *Handler) onDisconnectSuccess(code protocol.ResponseCode, data protocol.ResponseData) {
	h.completeDisconnect(code == protocol.ResponseCodeOK && protocol.IsValidResponse(data))
}

func (h *Handler) onDisconnectFailure() {
	h.completeDisconnect(false)
}

// completeDisconnect fires every registered disconnect callback exactly
// once, regardless of success, and arms the FSM to return to INIT on the
// next tick.
func (h *Handler) completeDisconnect(success bool) {
	h.disconnectComplete = true
	h.connected = false

	callbacks := h.disconnectCallbacks
	h.disconnectCallbacks = nil
	for _, cb := range callbacks {
		cb(success)
	}
}
