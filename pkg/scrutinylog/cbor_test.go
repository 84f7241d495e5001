package scrutinylog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEvent_RoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		SessionID: "0x12345678",
		Category:  CategoryStateChange,
		DeviceID:  "ABCD1234",
		StateChange: &StateChangeEvent{
			Entity:   EntityDeviceHandler,
			OldState: "CONNECTING",
			NewState: "POLLING_INFO",
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, event.SessionID, decoded.SessionID)
	require.Equal(t, event.Category, decoded.Category)
	require.NotNil(t, decoded.StateChange)
	require.Equal(t, event.StateChange.OldState, decoded.StateChange.OldState)
	require.Equal(t, event.StateChange.NewState, decoded.StateChange.NewState)
}

func TestEncodeEvent_OmitsAbsentVariants(t *testing.T) {
	event := Event{Category: CategoryComm, Comm: &CommEvent{Request: "GetProtocolVersion", Success: true}}
	data, err := EncodeEvent(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Nil(t, decoded.StateChange)
	require.Nil(t, decoded.SFD)
	require.Nil(t, decoded.Error)
	require.NotNil(t, decoded.Comm)
	require.True(t, decoded.Comm.Success)
}
