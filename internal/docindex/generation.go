package docindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/searchindex"
)

// ErrPageNotFound indicates no entry belongs to the requested page
var ErrPageNotFound = errors.New("page not found")

// PageSummary describes one documentation page.
type PageSummary struct {
	Name       string
	Path       string
	Entries    int
	Categories map[domain.Category]int
}

// Generation is one loaded revision of the source together with its index.
// It is immutable once built; a reload replaces the whole generation.
type Generation struct {
	ID          string
	Source      string
	Fingerprint string
	LoadedAt    time.Time

	index     bleve.Index
	entries   []domain.Entry
	byOrdinal map[int]int
	pages     []PageSummary
	pageNames map[string]string
	report    *searchindex.Report
}

// newGeneration wraps an opened index and the parsed source it was built from.
func newGeneration(index bleve.Index, src *searchindex.Index) *Generation {
	entries := src.Entries()
	g := &Generation{
		ID:          GenerationID(src.Fingerprint),
		Source:      src.Source,
		Fingerprint: src.Fingerprint,
		LoadedAt:    time.Now(),
		index:       index,
		entries:     entries,
		byOrdinal:   make(map[int]int, len(entries)),
		pageNames:   make(map[string]string),
		report:      src.Report(),
	}

	pagePos := make(map[string]int)
	for i, e := range entries {
		g.byOrdinal[e.Ordinal] = i

		pos, ok := pagePos[e.Page]
		if !ok {
			pos = len(g.pages)
			pagePos[e.Page] = pos
			g.pages = append(g.pages, PageSummary{
				Name:       e.Page,
				Path:       e.Path(),
				Categories: make(map[domain.Category]int),
			})
			g.pageNames[strings.ToLower(e.Page)] = e.Page
		}
		g.pages[pos].Entries++
		g.pages[pos].Categories[e.Category]++
	}
	return g
}

// NewMemGeneration builds a generation backed by an in-memory index.
func NewMemGeneration(src *searchindex.Index) (*Generation, error) {
	index, err := NewMemIndex(src.Entries())
	if err != nil {
		return nil, err
	}
	return newGeneration(index, src), nil
}

// Entries returns all valid entries in source order.
func (g *Generation) Entries() []domain.Entry {
	return g.entries
}

// Report returns the validation report of the source.
func (g *Generation) Report() *searchindex.Report {
	return g.report
}

// Pages returns the pages in order of first appearance.
func (g *Generation) Pages() []PageSummary {
	return g.pages
}

// Page returns the entries of a page, matched by name (case-insensitive),
// path or full location, in source order.
func (g *Generation) Page(key string) ([]domain.Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty page name", ErrPageNotFound)
	}

	name, ok := g.pageNames[strings.ToLower(key)]
	if !ok {
		for _, e := range g.entries {
			if e.Location == key || e.Path() == key {
				name, ok = e.Page, true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, key)
	}

	var result []domain.Entry
	for _, e := range g.entries {
		if e.Page == name {
			result = append(result, e)
		}
	}
	return result, nil
}

// Search runs a query against the generation.
func (g *Generation) Search(ctx context.Context, q Query, defaultLimit int) (*Result, error) {
	q = q.normalized(defaultLimit)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if q.Category != "" && !q.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, q.Category)
	}

	if q.Page != "" {
		name, ok := g.pageNames[strings.ToLower(q.Page)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, q.Page)
		}
		q.Page = name
	}

	if q.Mode == ModeSubstring {
		return g.substringSearch(q), nil
	}
	return g.fullTextSearch(ctx, q)
}

func (g *Generation) substringSearch(q Query) *Result {
	matches := searchindex.Filter(g.entries, q.Text, searchindex.FilterOptions{
		Category: q.Category,
		Page:     q.Page,
	})

	result := &Result{Query: q, Total: uint64(len(matches))}
	if q.Offset >= len(matches) {
		return result
	}
	matches = matches[q.Offset:min(q.Offset+q.Limit, len(matches))]

	result.Hits = make([]Hit, 0, len(matches))
	for _, e := range matches {
		result.Hits = append(result.Hits, Hit{Entry: e, Score: 1})
	}
	return result
}

func (g *Generation) fullTextSearch(ctx context.Context, q Query) (*Result, error) {
	res, err := g.index.SearchInContext(ctx, newSearchRequest(q))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := &Result{Query: q, Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		result.Hits = append(result.Hits, Hit{
			Entry:     g.resolve(hit),
			Score:     hit.Score,
			Fragments: fragments(hit),
		})
	}
	return result, nil
}

// resolve maps a hit back to its entry, falling back to stored fields.
func (g *Generation) resolve(hit *search.DocumentMatch) domain.Entry {
	if ordinal, ok := hit.Fields[domain.FieldOrdinal].(float64); ok {
		if i, found := g.byOrdinal[int(ordinal)]; found {
			return g.entries[i]
		}
	}

	e := domain.Entry{}
	e.Location, _ = hit.Fields[domain.FieldLocation].(string)
	e.Page, _ = hit.Fields[domain.FieldPage].(string)
	e.Title, _ = hit.Fields[domain.FieldTitle].(string)
	e.Text, _ = hit.Fields[domain.FieldText].(string)
	if c, ok := hit.Fields[domain.FieldCategory].(string); ok {
		e.Category = domain.Category(c)
	}
	return e
}

// fragments returns highlighted title fragments followed by text fragments.
func fragments(hit *search.DocumentMatch) []string {
	var out []string
	for _, field := range []string{domain.FieldTitle, domain.FieldText} {
		out = append(out, hit.Fragments[field]...)
	}
	return out
}

// DocCount returns the number of documents in the index.
func (g *Generation) DocCount() (uint64, error) {
	return g.index.DocCount()
}

// Close releases the index.
func (g *Generation) Close() error {
	if g.index == nil {
		return nil
	}
	return g.index.Close()
}
