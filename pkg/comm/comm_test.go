package comm

import (
	"testing"
	"time"

	"github.com/scrutinydebugger/scrutiny-go/pkg/link"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_ThenResponseAvailable(t *testing.T) {
	a, b := link.NewDummyLinkPair()
	require.NoError(t, b.Open(nil))

	now := time.Unix(0, 0)
	h := New(Config{Now: func() time.Time { return now }})
	require.NoError(t, h.Open(a, nil))

	require.NoError(t, h.SendRequest([]byte("req")))
	require.True(t, h.WaitingResponse())

	h.Process(now)
	require.False(t, h.ResponseAvailable(), "no reply sent yet")

	require.NoError(t, b.Send([]byte("resp")))
	h.Process(now)
	require.True(t, h.ResponseAvailable())

	frame, ok := h.GetResponse()
	require.True(t, ok)
	require.Equal(t, []byte("resp"), frame)
	require.False(t, h.WaitingResponse())
}

func TestProcess_TimesOutAfterResponseTimeout(t *testing.T) {
	a, _ := link.NewDummyLinkPair()
	now := time.Unix(0, 0)
	h := New(Config{
		ResponseTimeout: 5 * time.Second,
		Now:             func() time.Time { return now },
	})
	require.NoError(t, h.Open(a, nil))
	require.NoError(t, h.SendRequest([]byte("req")))

	h.Process(now.Add(4 * time.Second))
	require.False(t, h.HasTimedOut())

	h.Process(now.Add(5 * time.Second))
	require.True(t, h.HasTimedOut())

	h.ClearTimeout()
	require.False(t, h.HasTimedOut())
	require.False(t, h.WaitingResponse())
}

func TestSendRequest_FailsWhileWaiting(t *testing.T) {
	a, _ := link.NewDummyLinkPair()
	h := New(Config{})
	require.NoError(t, h.Open(a, nil))
	require.NoError(t, h.SendRequest([]byte("req")))

	err := h.SendRequest([]byte("req2"))
	require.ErrorIs(t, err, ErrAlreadyWaiting)
}

func TestOpen_NilLinkFails(t *testing.T) {
	h := New(Config{})
	require.ErrorIs(t, h.Open(nil, nil), ErrNoLink)
}

func TestReset_ReturnsToIdle(t *testing.T) {
	a, b := link.NewDummyLinkPair()
	require.NoError(t, b.Open(nil))
	h := New(Config{})
	require.NoError(t, h.Open(a, nil))
	require.NoError(t, h.SendRequest([]byte("req")))
	require.NoError(t, b.Send([]byte("resp")))
	h.Process(time.Now())
	require.True(t, h.ResponseAvailable())

	h.Reset()
	require.False(t, h.ResponseAvailable())
	require.False(t, h.WaitingResponse())
}
