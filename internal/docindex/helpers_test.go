package docindex

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/searchindex"
)

const fixturePath = "testdata/search_index.js"

// closeIndex is a helper to close an index in tests and fail on error
func closeIndex(t *testing.T, idx io.Closer) {
	t.Helper()
	if err := idx.Close(); err != nil {
		t.Errorf("Failed to close index: %v", err)
	}
}

// readFixture returns the raw fixture source
func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return data
}

// loadFixture parses the fixture source
func loadFixture(t *testing.T) *searchindex.Index {
	t.Helper()
	idx, err := searchindex.Load(fixturePath)
	if err != nil {
		t.Fatalf("Failed to load fixture: %v", err)
	}
	return idx
}

// writeSource writes a search index source into dir and returns its path
func writeSource(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "search_index.js")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return path
}

// testSettings returns docs settings rooted in a temp directory
func testSettings(t *testing.T, source string) *config.DocsSettings {
	t.Helper()
	return &config.DocsSettings{
		Source:        source,
		BaseDir:       filepath.Join(t.TempDir(), "state"),
		BaseURL:       "https://docs.example.org/dev",
		MaxResults:    10,
		WatchDebounce: 50 * time.Millisecond,
		LockTimeout:   2 * time.Second,
	}
}

// setupService creates and initializes a service over the fixture
func setupService(t *testing.T) *Service {
	t.Helper()
	source := writeSource(t, t.TempDir(), readFixture(t))
	svc, err := NewService(testSettings(t, source))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return svc
}

// newMemGeneration builds an in-memory generation over the fixture
func newMemGeneration(t *testing.T) *Generation {
	t.Helper()
	g, err := NewMemGeneration(loadFixture(t))
	if err != nil {
		t.Fatalf("NewMemGeneration failed: %v", err)
	}
	t.Cleanup(func() { closeIndex(t, g) })
	return g
}

// resultText concatenates the text content of a tool result
func resultText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
