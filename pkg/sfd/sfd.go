// Package sfd implements Scrutiny Firmware Description storage and
// lookup: the manifest that tells the Active SFD Handler which variables
// to expose in the datastore for a given firmware build.
package sfd

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// VariableDef describes where a single variable lives in the device's
// memory, for binding into a datastore.Entry.
type VariableDef struct {
	DataType  string `yaml:"data_type"`
	Address   uint64 `yaml:"address"`
	BitOffset uint8  `yaml:"bit_offset"`
	BitSize   uint8  `yaml:"bit_size"`
}

// FirmwareDescription is a loaded SFD manifest for one firmware build.
type FirmwareDescription interface {
	// ID returns the firmware identity this description was loaded for.
	ID() string
	// VarsForDatastore iterates every variable the manifest lists, keyed
	// by its datastore display path.
	VarsForDatastore() iter.Seq2[string, VariableDef]
}

// Storage looks up a FirmwareDescription by firmware ID.
type Storage interface {
	// IsInstalled reports whether a manifest exists for firmwareID.
	IsInstalled(firmwareID string) bool
	// Get loads and returns the manifest for firmwareID.
	Get(firmwareID string) (FirmwareDescription, error)
}

// manifestFile is the on-disk YAML shape of a single SFD manifest.
type manifestFile struct {
	Variables []manifestVariable `yaml:"variables"`
}

type manifestVariable struct {
	DisplayPath string      `yaml:"display_path"`
	VariableDef VariableDef `yaml:"variable_def"`
}

// description is the concrete, in-memory FirmwareDescription DirStorage
// hands back from Get.
type description struct {
	id   string
	vars map[string]VariableDef
}

func (d *description) ID() string { return d.id }

func (d *description) VarsForDatastore() iter.Seq2[string, VariableDef] {
	return func(yield func(string, VariableDef) bool) {
		for path, def := range d.vars {
			if !yield(path, def) {
				return
			}
		}
	}
}

// DirStorage is a Storage backed by a directory of YAML manifests, each
// named "<firmware-id>.sfd.yaml".
type DirStorage struct {
	dir string
}

// NewDirStorage creates a DirStorage rooted at dir. The directory is not
// scanned until IsInstalled or Get is called.
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{dir: dir}
}

func (s *DirStorage) path(firmwareID string) string {
	return filepath.Join(s.dir, firmwareID+".sfd.yaml")
}

// IsInstalled reports whether a manifest file exists for firmwareID.
func (s *DirStorage) IsInstalled(firmwareID string) bool {
	info, err := os.Stat(s.path(firmwareID))
	return err == nil && !info.IsDir()
}

// Get loads and parses the manifest for firmwareID.
func (s *DirStorage) Get(firmwareID string) (FirmwareDescription, error) {
	data, err := os.ReadFile(s.path(firmwareID))
	if err != nil {
		return nil, fmt.Errorf("sfd: firmware %q not installed: %w", firmwareID, err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("sfd: malformed manifest for firmware %q: %w", firmwareID, err)
	}

	d := &description{id: firmwareID, vars: make(map[string]VariableDef, len(mf.Variables))}
	for _, v := range mf.Variables {
		d.vars[v.DisplayPath] = v.VariableDef
	}
	return d, nil
}
