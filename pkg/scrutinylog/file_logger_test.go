package scrutinylog

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.slog")

	fl, err := NewFileLogger(path)
	require.NoError(t, err)

	fl.Log(Event{Category: CategorySFD, SFD: &SFDEvent{FirmwareID: "ABCD1234", Loaded: true, EntryCount: 3}})
	fl.Log(Event{Category: CategorySFD, SFD: &SFDEvent{Loaded: false}})
	require.NoError(t, fl.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	events, err := r.All()
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].SFD.Loaded)
	require.False(t, events[1].SFD.Loaded)
}

func TestFileLogger_LogAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.slog")
	fl, err := NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, fl.Close())

	fl.Log(Event{Category: CategoryError})
	require.NoError(t, fl.Close())
}

func TestReader_NextReturnsEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.slog")
	fl, err := NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, fl.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
