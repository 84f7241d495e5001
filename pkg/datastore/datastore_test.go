package datastore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddEntry_RejectsDuplicate(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "a.b"}))
	err := d.AddEntry(Entry{DisplayPath: "a.b"})
	require.ErrorIs(t, err, ErrDuplicateEntry)
	require.Equal(t, 1, d.Len())
}

func TestAddEntry_RejectsEmptyPath(t *testing.T) {
	d := New()
	err := d.AddEntry(Entry{DisplayPath: ""})
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func TestClear_RemovesEverything(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "a"}))
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "b"}))
	d.Clear()
	require.Equal(t, 0, d.Len())
	_, ok := d.Get("a")
	require.False(t, ok)
}

func TestEntries_IteratesAll(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "a"}))
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "b"}))

	seen := map[string]bool{}
	for e := range d.Entries() {
		seen[e.DisplayPath] = true
	}
	require.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestEntries_StopsEarly(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "a"}))
	require.NoError(t, d.AddEntry(Entry{DisplayPath: "b"}))

	count := 0
	for range d.Entries() {
		count++
		break
	}
	require.Equal(t, 1, count)
}
