package docindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/searchindex"
)

// ErrNotReady indicates no generation has been loaded yet
var ErrNotReady = errors.New("search index is not ready")

// maxLoggedIssues caps the per-record validation findings written to the log
const maxLoggedIssues = 10

// Stats describes the live generation.
type Stats struct {
	Ready       bool
	Source      string
	Fingerprint string
	Generation  string
	Entries     int
	Documents   uint64
	Pages       int
	Categories  map[domain.Category]int
	LoadedAt    time.Time
	LastError   string
}

// Service loads the search index source, keeps the Bleve index in sync
// with it and answers queries against the live generation.
type Service struct {
	settings     *config.DocsSettings
	indexer      *Indexer
	lock         *FileLock
	manifestPath string

	// buildMu serializes loads within the process; the file lock covers other processes
	buildMu sync.Mutex

	mu      sync.RWMutex
	current *Generation
	lastErr error
}

// NewService creates a new documentation search service.
func NewService(settings *config.DocsSettings) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	indexesDir := filepath.Join(settings.BaseDir, "indexes")
	if err := os.MkdirAll(indexesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create indexes directory: %w", err)
	}

	return &Service{
		settings:     settings,
		indexer:      NewIndexer(indexesDir),
		lock:         NewFileLock(filepath.Join(settings.BaseDir, LockFilename)),
		manifestPath: filepath.Join(settings.BaseDir, ManifestFilename),
	}, nil
}

// Initialize loads the source and opens its index. The instance holding
// the build lock rebuilds the index when the source changed; an instance
// that waits past the lock timeout only opens an index that already exists.
func (s *Service) Initialize(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	acquired, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		slog.Info("Another instance is indexing, waiting for completion")
		if err := s.lock.LockContext(ctx, s.settings.LockTimeout); err != nil {
			slog.Warn("Timeout waiting for index lock, using existing index", "error", err)
			return s.load(false)
		}
	}
	defer s.unlock()

	return s.load(true)
}

// Reload re-reads the source and swaps in a new generation if it changed.
// On failure the previous generation stays live.
func (s *Service) Reload(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := s.lock.LockContext(ctx, s.settings.LockTimeout); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	defer s.unlock()

	return s.load(true)
}

func (s *Service) unlock() {
	if err := s.lock.Unlock(); err != nil {
		slog.Error("Failed to unlock", "error", err)
	}
}

// load parses the source and makes its generation live. build allows
// writing a missing or stale index; it must only be set while holding the lock.
func (s *Service) load(build bool) error {
	src, err := searchindex.Load(s.settings.Source)
	if err != nil {
		return s.fail(err, build)
	}
	logReport(src)

	id := GenerationID(src.Fingerprint)
	if cur := s.generation(); cur != nil && cur.ID == id {
		slog.Info("Search index already up to date", "generation", id)
		s.setError(nil)
		if manifest := s.loadManifest(); build && manifest.Error != "" {
			manifest.SetError(nil)
			if err := manifest.Save(s.manifestPath); err != nil {
				slog.Error("Failed to save manifest", "error", err)
			}
		}
		return nil
	}

	manifest := s.loadManifest()
	if !manifest.Matches(src.Source, src.Fingerprint) || !s.indexer.Exists(id) {
		if !build {
			return s.fail(fmt.Errorf("%w: %s", ErrIndexMissing, id), false)
		}

		start := time.Now()
		slog.Info("Building search index", "generation", id, "entries", len(src.Entries()))
		if err := s.indexer.Build(id, src.Entries()); err != nil {
			return s.fail(err, true)
		}
		manifest.Record(src.Source, src.Fingerprint, id, len(src.Entries()))
		if err := manifest.Save(s.manifestPath); err != nil {
			slog.Error("Failed to save manifest", "error", err)
		}
		slog.Info("Search index built", "generation", id, "duration", time.Since(start))
	}

	index, err := s.indexer.Open(id)
	if err != nil {
		return s.fail(err, build)
	}

	s.swap(newGeneration(index, src))
	slog.Info("Search index ready", "generation", id, "entries", len(src.Entries()))

	if build {
		if removed, err := s.indexer.Prune(id); err != nil {
			slog.Warn("Failed to prune old indexes", "error", err)
		} else if removed > 0 {
			slog.Info("Pruned old indexes", "count", removed)
		}
	}
	return nil
}

func logReport(src *searchindex.Index) {
	report := src.Report()
	slog.Info("Loaded search index source",
		"source", src.Source,
		"records", report.Total,
		"valid", report.Valid,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings))

	for i, issue := range report.Errors {
		if i == maxLoggedIssues {
			slog.Warn("More invalid records omitted", "count", len(report.Errors)-maxLoggedIssues)
			break
		}
		slog.Warn("Invalid search index record", "index", issue.Index, "path", issue.Path, "message", issue.Message)
	}
	for i, issue := range report.Warnings {
		if i == maxLoggedIssues {
			break
		}
		slog.Debug("Search index warning", "index", issue.Index, "message", issue.Message)
	}
}

// fail records err and, when holding the lock, persists it in the manifest.
func (s *Service) fail(err error, persist bool) error {
	s.setError(err)
	if persist {
		manifest := s.loadManifest()
		manifest.SetError(err)
		if saveErr := manifest.Save(s.manifestPath); saveErr != nil {
			slog.Error("Failed to save manifest", "error", saveErr)
		}
	}
	return err
}

// loadManifest returns the manifest on disk, or an empty one if it is unreadable.
func (s *Service) loadManifest() *Manifest {
	manifest, err := LoadManifest(s.manifestPath)
	if err != nil {
		slog.Warn("Discarding unreadable manifest", "error", err)
		return NewManifest()
	}
	return manifest
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// swap makes gen live and closes the previous generation. Readers hold the
// read lock for the whole query, so the old index is idle when closed.
func (s *Service) swap(gen *Generation) {
	s.mu.Lock()
	old := s.current
	s.current = gen
	s.lastErr = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Error("Failed to close previous index", "generation", old.ID, "error", err)
		}
	}
}

func (s *Service) generation() *Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// withGeneration runs fn against the live generation under the read lock.
func (s *Service) withGeneration(fn func(*Generation) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ErrNotReady
	}
	return fn(s.current)
}

// IsReady returns true if a generation is loaded.
func (s *Service) IsReady() bool {
	return s.generation() != nil
}

// Search runs a query against the live generation.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	var result *Result
	err := s.withGeneration(func(g *Generation) error {
		var err error
		result, err = g.Search(ctx, q, s.settings.MaxResults)
		return err
	})
	return result, err
}

// Page returns the entries of a page by name, path or location.
func (s *Service) Page(key string) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := s.withGeneration(func(g *Generation) error {
		var err error
		entries, err = g.Page(key)
		return err
	})
	return entries, err
}

// Pages returns a summary of every page.
func (s *Service) Pages() ([]PageSummary, error) {
	var pages []PageSummary
	err := s.withGeneration(func(g *Generation) error {
		pages = g.Pages()
		return nil
	})
	return pages, err
}

// Report returns the validation report of the live source.
func (s *Service) Report() (*searchindex.Report, error) {
	var report *searchindex.Report
	err := s.withGeneration(func(g *Generation) error {
		report = g.Report()
		return nil
	})
	return report, err
}

// Stats describes the live generation and the last load error.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Source: s.settings.Source}
	if s.lastErr != nil {
		stats.LastError = s.lastErr.Error()
	}

	g := s.current
	if g == nil {
		return stats
	}

	stats.Ready = true
	stats.Fingerprint = g.Fingerprint
	stats.Generation = g.ID
	stats.Entries = len(g.entries)
	stats.Pages = len(g.pages)
	stats.Categories = g.report.Categories
	stats.LoadedAt = g.LoadedAt
	if count, err := g.DocCount(); err == nil {
		stats.Documents = count
	}
	return stats
}

// Settings returns the service settings.
func (s *Service) Settings() *config.DocsSettings {
	return s.settings
}

// Close releases the live generation.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	if err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}
