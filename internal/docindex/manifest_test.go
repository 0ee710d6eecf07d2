package docindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest_NewFile(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFilename))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Version != ManifestVersion {
		t.Errorf("Version = %d, want %d", m.Version, ManifestVersion)
	}
	if m.Fingerprint != "" || m.Generation != "" {
		t.Errorf("Expected empty manifest, got %+v", m)
	}
}

func TestManifest_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ManifestFilename)

	m := NewManifest()
	m.Record("/docs/search_index.js", "abcdef0123456789ff", "abcdef0123456789", 43)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if loaded.Source != m.Source || loaded.Fingerprint != m.Fingerprint || loaded.Generation != m.Generation {
		t.Errorf("Loaded manifest = %+v, want %+v", loaded, m)
	}
	if loaded.EntryCount != 43 {
		t.Errorf("EntryCount = %d, want 43", loaded.EntryCount)
	}
	if !loaded.IndexedAt.Equal(m.IndexedAt) {
		t.Errorf("IndexedAt = %v, want %v", loaded.IndexedAt, m.IndexedAt)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(corrupt); err == nil {
		t.Error("Expected error for corrupt manifest")
	}

	future := filepath.Join(dir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version": 99, "fingerprint": "abc"}`), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(future)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Version != ManifestVersion || m.Fingerprint != "" {
		t.Errorf("Expected fresh manifest for unknown version, got %+v", m)
	}
}

func TestManifest_Matches(t *testing.T) {
	m := NewManifest()
	if m.Matches("src", "") {
		t.Error("Empty manifest should not match an empty fingerprint")
	}

	m.Record("src", "fp", "gen", 1)
	if !m.Matches("src", "fp") {
		t.Error("Expected manifest to match recorded source")
	}
	if m.Matches("other", "fp") {
		t.Error("Different source should not match")
	}
	if m.Matches("src", "fp2") {
		t.Error("Different fingerprint should not match")
	}

	m.SetError(errors.New("boom"))
	if m.Error != "boom" {
		t.Errorf("Error = %q", m.Error)
	}
	if m.Matches("src", "fp") {
		t.Error("Manifest with an error should not match")
	}

	m.SetError(nil)
	if !m.Matches("src", "fp") {
		t.Error("Clearing the error should restore the match")
	}
}
