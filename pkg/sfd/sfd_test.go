package sfd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrutinydebugger/scrutiny-go/pkg/sfd"
)

func writeManifest(t *testing.T, dir, firmwareID, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, firmwareID+".sfd.yaml"), []byte(body), 0o644))
}

func TestDirStorage_IsInstalled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "ABCD1234", "variables: []\n")

	s := sfd.NewDirStorage(dir)
	require.True(t, s.IsInstalled("ABCD1234"))
	require.False(t, s.IsInstalled("DEADBEEF"))
}

func TestDirStorage_GetParsesVariables(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "ABCD1234", `
variables:
  - display_path: /sensors/temperature
    variable_def:
      data_type: float32
      address: 4096
      bit_offset: 0
      bit_size: 32
  - display_path: /control/enabled
    variable_def:
      data_type: bool
      address: 4100
      bit_offset: 3
      bit_size: 1
`)

	s := sfd.NewDirStorage(dir)
	desc, err := s.Get("ABCD1234")
	require.NoError(t, err)
	require.Equal(t, "ABCD1234", desc.ID())

	seen := map[string]sfd.VariableDef{}
	for path, def := range desc.VarsForDatastore() {
		seen[path] = def
	}
	require.Len(t, seen, 2)
	require.Equal(t, sfd.VariableDef{DataType: "float32", Address: 4096, BitSize: 32}, seen["/sensors/temperature"])
	require.Equal(t, sfd.VariableDef{DataType: "bool", Address: 4100, BitOffset: 3, BitSize: 1}, seen["/control/enabled"])
}

func TestDirStorage_GetMissingFirmwareFails(t *testing.T) {
	s := sfd.NewDirStorage(t.TempDir())
	_, err := s.Get("NOPE")
	require.Error(t, err)
}

func TestDirStorage_GetMalformedManifestFails(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "BADYAML", "not: [valid yaml structure\n")

	s := sfd.NewDirStorage(dir)
	_, err := s.Get("BADYAML")
	require.Error(t, err)
}

func TestVarsForDatastore_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "MULTI", `
variables:
  - display_path: /a
    variable_def: {data_type: uint8, address: 1, bit_offset: 0, bit_size: 8}
  - display_path: /b
    variable_def: {data_type: uint8, address: 2, bit_offset: 0, bit_size: 8}
  - display_path: /c
    variable_def: {data_type: uint8, address: 3, bit_offset: 0, bit_size: 8}
`)

	s := sfd.NewDirStorage(dir)
	desc, err := s.Get("MULTI")
	require.NoError(t, err)

	count := 0
	for range desc.VarsForDatastore() {
		count++
		if count == 1 {
			break
		}
	}
	require.Equal(t, 1, count)
}
