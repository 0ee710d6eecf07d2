package docindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest records which source revision the on-disk index was built from.
type Manifest struct {
	Version     int       `json:"version"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Generation  string    `json:"generation"`
	EntryCount  int       `json:"entry_count"`
	IndexedAt   time.Time `json:"indexed_at"`
	Error       string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Version: ManifestVersion}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
// A manifest written by a different schema version is discarded.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Version != ManifestVersion {
		return NewManifest(), nil
	}
	return &manifest, nil
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// Matches reports whether the manifest describes an index built from the
// given source revision.
func (m *Manifest) Matches(source, fingerprint string) bool {
	return m.Error == "" && m.Fingerprint != "" && m.Fingerprint == fingerprint && m.Source == source
}

// Record stores a successful build.
func (m *Manifest) Record(source, fingerprint, generation string, entryCount int) {
	m.Source = source
	m.Fingerprint = fingerprint
	m.Generation = generation
	m.EntryCount = entryCount
	m.IndexedAt = time.Now()
	m.Error = ""
}

// SetError records a failed load or build, keeping the last good generation.
func (m *Manifest) SetError(err error) {
	if err == nil {
		m.Error = ""
		return
	}
	m.Error = err.Error()
}
