package docindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 200

	// generationIDLength is the number of fingerprint characters naming a generation
	generationIDLength = 16
)

// ErrIndexMissing indicates no index exists for a generation
var ErrIndexMissing = errors.New("search index does not exist")

// GenerationID derives the on-disk index name from a source fingerprint.
func GenerationID(fingerprint string) string {
	if len(fingerprint) > generationIDLength {
		return fingerprint[:generationIDLength]
	}
	return fingerprint
}

// Indexer manages the on-disk Bleve indexes, one directory per generation.
type Indexer struct {
	dir string
}

// NewIndexer creates an indexer storing indexes under dir.
func NewIndexer(dir string) *Indexer {
	return &Indexer{dir: dir}
}

// indexPath returns the path of the index for a generation.
func (i *Indexer) indexPath(id string) string {
	return filepath.Join(i.dir, id+IndexSuffix)
}

// CreateIndexMapping creates the Bleve index mapping for documentation entries.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Text and title - analyzed for full-text search, term vectors for highlighting
	for _, name := range []string{domain.FieldText, domain.FieldTitle} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		f.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	// Exact-match fields used for filters and lookups
	for _, name := range []string{domain.FieldPage, domain.FieldCategory, domain.FieldLocation, domain.FieldPath, domain.FieldAnchor} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	ordinal := bleve.NewNumericFieldMapping()
	ordinal.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldOrdinal, ordinal)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Exists checks if an index exists for the given generation.
func (i *Indexer) Exists(id string) bool {
	info, err := os.Stat(i.indexPath(id))
	return err == nil && info.IsDir()
}

// Build writes a fresh index for a generation. The index is built in a
// temporary directory and renamed into place, so a half-built index is
// never visible under the generation name.
func (i *Indexer) Build(id string, entries []domain.Entry) (err error) {
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	finalPath := i.indexPath(id)
	tempPath := fmt.Sprintf("%s.tmp-%d", finalPath, time.Now().UnixNano())

	index, err := bleve.New(tempPath, CreateIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tempPath)
		}
	}()

	if err := indexEntries(index, entries); err != nil {
		_ = index.Close()
		return err
	}
	if err := index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}

	if err := os.RemoveAll(finalPath); err != nil {
		return fmt.Errorf("failed to remove previous index: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

// Open opens an existing index for a generation read-only, so several
// server processes can share it.
func (i *Indexer) Open(id string) (bleve.Index, error) {
	if !i.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, id)
	}

	index, err := bleve.OpenUsing(i.indexPath(id), map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return index, nil
}

// Prune removes every index directory except the one for keep, including
// leftovers of interrupted builds. Returns the number of removed directories.
func (i *Indexer) Prune(keep string) (int, error) {
	dirEntries, err := os.ReadDir(i.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list indexes: %w", err)
	}

	keepName := keep + IndexSuffix
	removed := 0
	for _, de := range dirEntries {
		name := de.Name()
		if !de.IsDir() || name == keepName || !strings.Contains(name, IndexSuffix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.dir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove index %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// NewMemIndex builds an in-memory index over entries.
func NewMemIndex(entries []domain.Entry) (bleve.Index, error) {
	index, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	if err := indexEntries(index, entries); err != nil {
		_ = index.Close()
		return nil, err
	}
	return index, nil
}

// indexEntries adds entries to index in batches.
func indexEntries(index bleve.Index, entries []domain.Entry) error {
	batch := index.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ID(), e.Document()); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.ID(), err)
		}
		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("final batch index failed: %w", err)
		}
	}
	return nil
}
