package generator

import (
	"github.com/scrutinydebugger/scrutiny-go/pkg/dispatcher"
	"github.com/scrutinydebugger/scrutiny-go/pkg/protocol"
)

// SessionInitializer performs the connect handshake. On success it captures
// a 32-bit session ID; on protocol or response error it transitions to a
// persistent error state until Stop resets it.
type SessionInitializer struct {
	disp  *dispatcher.Dispatcher
	proto *protocol.Protocol

	active               bool
	pending              *dispatcher.Record
	connectionSuccessful bool
	inError              bool
	errorMessage         string
	sessionID            uint32
}

// NewSessionInitializer creates a SessionInitializer bound to disp/proto.
func NewSessionInitializer(disp *dispatcher.Dispatcher, proto *protocol.Protocol) *SessionInitializer {
	return &SessionInitializer{disp: disp, proto: proto}
}

// Start arms the initializer and clears prior results, including any
// previous error state.
func (s *SessionInitializer) Start() {
	s.active = true
	s.pending = nil
	s.connectionSuccessful = false
	s.inError = false
	s.errorMessage = ""
	s.sessionID = 0
}

// Stop disarms the initializer and clears a persistent error state. The
// session ID and success flag are kept until the next Start.
func (s *SessionInitializer) Stop() {
	s.active = false
	s.pending = nil
	s.inError = false
}

// Process advances the initializer by one tick.
func (s *SessionInitializer) Process() {
	if !s.active || s.connectionSuccessful || s.inError {
		return
	}
	if s.pending != nil {
		return
	}
	s.pending = s.disp.RegisterRequest(s.proto.Connect(), s.onSuccess, s.onFailure, dispatcher.PriorityConnect)
}

func (s *SessionInitializer) onSuccess(code protocol.ResponseCode, data protocol.ResponseData) {
	s.pending = nil
	if code != protocol.ResponseCodeOK {
		s.fail("device refused connect request")
		return
	}
	d, ok := data.(protocol.ConnectData)
	if !ok || !d.Valid {
		s.fail("device gave invalid connect response")
		return
	}
	s.sessionID = d.SessionID
	s.connectionSuccessful = true
}

func (s *SessionInitializer) onFailure() {
	s.pending = nil
	s.fail("failed to connect to device")
}

func (s *SessionInitializer) fail(msg string) {
	s.inError = true
	s.errorMessage = msg
}

// ConnectionSuccessful reports whether the handshake completed.
func (s *SessionInitializer) ConnectionSuccessful() bool {
	return s.connectionSuccessful
}

// IsInError reports whether the initializer is in its persistent error
// state.
func (s *SessionInitializer) IsInError() bool {
	return s.inError
}

// ErrorMessage describes the most recent error, if any.
func (s *SessionInitializer) ErrorMessage() string {
	return s.errorMessage
}

// SessionID returns the negotiated session identity. Valid only after
// ConnectionSuccessful reports true.
func (s *SessionInitializer) SessionID() uint32 {
	return s.sessionID
}
