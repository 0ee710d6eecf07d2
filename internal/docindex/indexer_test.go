package docindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

func TestGenerationID(t *testing.T) {
	if got := GenerationID("0123456789abcdef0123"); got != "0123456789abcdef" {
		t.Errorf("GenerationID = %q", got)
	}
	if got := GenerationID("abc"); got != "abc" {
		t.Errorf("GenerationID short = %q", got)
	}
}

func TestCreateIndexMapping(t *testing.T) {
	m := CreateIndexMapping()
	if m == nil {
		t.Fatal("Expected non-nil mapping")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Mapping is invalid: %v", err)
	}
}

func TestIndexer_BuildAndOpen(t *testing.T) {
	dir := t.TempDir()
	indexer := NewIndexer(dir)
	entries := loadFixture(t).Entries()

	if indexer.Exists("gen1") {
		t.Fatal("Index should not exist before build")
	}
	if err := indexer.Build("gen1", entries); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !indexer.Exists("gen1") {
		t.Fatal("Index should exist after build")
	}

	index, err := indexer.Open("gen1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closeIndex(t, index)

	count, err := index.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != uint64(len(entries)) {
		t.Errorf("DocCount = %d, want %d", count, len(entries))
	}

	// No temp directories may be left behind
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(dirEntries) != 1 || dirEntries[0].Name() != "gen1"+IndexSuffix {
		t.Errorf("Unexpected index directory contents: %v", dirEntries)
	}
}

func TestIndexer_BuildReplacesExisting(t *testing.T) {
	indexer := NewIndexer(t.TempDir())
	entries := loadFixture(t).Entries()

	if err := indexer.Build("gen", entries); err != nil {
		t.Fatalf("First build failed: %v", err)
	}
	if err := indexer.Build("gen", entries[:3]); err != nil {
		t.Fatalf("Second build failed: %v", err)
	}

	index, err := indexer.Open("gen")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closeIndex(t, index)

	count, _ := index.DocCount()
	if count != 3 {
		t.Errorf("DocCount = %d, want 3", count)
	}
}

func TestIndexer_BuildManyBatches(t *testing.T) {
	indexer := NewIndexer(t.TempDir())
	entries := make([]domain.Entry, MaxBatchSize*2+7)
	for i := range entries {
		entries[i] = domain.Entry{Location: "p/", Page: "p", Text: "chunk", Category: domain.CategoryPage, Ordinal: i}
	}

	if err := indexer.Build("big", entries); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	index, err := indexer.Open("big")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closeIndex(t, index)

	count, _ := index.DocCount()
	if count != uint64(len(entries)) {
		t.Errorf("DocCount = %d, want %d", count, len(entries))
	}
}

func TestIndexer_OpenMissing(t *testing.T) {
	indexer := NewIndexer(t.TempDir())
	_, err := indexer.Open("missing")
	if !errors.Is(err, ErrIndexMissing) {
		t.Errorf("Open error = %v, want ErrIndexMissing", err)
	}
}

func TestIndexer_Prune(t *testing.T) {
	dir := t.TempDir()
	indexer := NewIndexer(dir)
	entries := loadFixture(t).Entries()[:2]

	for _, id := range []string{"old", "keep"} {
		if err := indexer.Build(id, entries); err != nil {
			t.Fatalf("Build %s failed: %v", id, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "keep"+IndexSuffix+".tmp-1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "unrelated"), 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := indexer.Prune("keep")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Removed = %d, want 2", removed)
	}
	if !indexer.Exists("keep") {
		t.Error("Kept index was removed")
	}
	if indexer.Exists("old") {
		t.Error("Old index was not removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "unrelated")); err != nil {
		t.Error("Unrelated directory was removed")
	}
}

func TestIndexer_PruneMissingDir(t *testing.T) {
	indexer := NewIndexer(filepath.Join(t.TempDir(), "nope"))
	removed, err := indexer.Prune("x")
	if err != nil || removed != 0 {
		t.Errorf("Prune on missing dir = %d, %v", removed, err)
	}
}

func TestNewMemIndex(t *testing.T) {
	entries := loadFixture(t).Entries()
	index, err := NewMemIndex(entries)
	if err != nil {
		t.Fatalf("NewMemIndex failed: %v", err)
	}
	defer closeIndex(t, index)

	doc, err := index.Document(domain.EntryID(3))
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if doc == nil {
		t.Fatal("Expected document entry-000003")
	}
}
