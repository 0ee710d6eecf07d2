package docindex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

const (
	// DefaultLimit is the number of hits returned when a query sets none
	DefaultLimit = 10

	// MaxLimit caps the number of hits per query
	MaxLimit = 100
)

// ErrEmptyQuery indicates a query without search text
var ErrEmptyQuery = errors.New("query cannot be empty")

// Mode selects how query text is matched.
type Mode string

const (
	// ModeFullText ranks entries with the Bleve index
	ModeFullText Mode = "fulltext"

	// ModeSubstring matches title and text case-insensitively, like the docs site widget
	ModeSubstring Mode = "substring"
)

// ParseMode converts a mode name; empty means full-text.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFullText, nil
	case ModeFullText, ModeSubstring:
		return m, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (want fulltext or substring)", s)
	}
}

// Query describes a search over the documentation entries.
type Query struct {
	Text     string
	Category domain.Category
	Page     string
	Mode     Mode
	Limit    int
	Offset   int
}

// normalized returns a copy with limits clamped and text trimmed.
func (q Query) normalized(defaultLimit int) Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Mode == "" {
		q.Mode = ModeFullText
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	q.Limit = min(q.Limit, MaxLimit)
	q.Offset = max(q.Offset, 0)
	return q
}

// Hit is a single search result.
type Hit struct {
	Entry     domain.Entry
	Score     float64
	Fragments []string
}

// Result is the outcome of a search.
type Result struct {
	Query Query
	Total uint64
	Hits  []Hit
}

// buildQuery constructs a Bleve query from search arguments.
func buildQuery(q Query) query.Query {
	titleQuery := bleve.NewMatchQuery(q.Text)
	titleQuery.SetField(domain.FieldTitle)
	titleQuery.SetBoost(3.0)

	textQuery := bleve.NewMatchQuery(q.Text)
	textQuery.SetField(domain.FieldText)

	phraseQuery := bleve.NewMatchPhraseQuery(q.Text)
	phraseQuery.SetField(domain.FieldText)
	phraseQuery.SetBoost(2.0)

	// page is a keyword field, so this only hits on the exact page name
	pageQuery := bleve.NewMatchQuery(q.Text)
	pageQuery.SetField(domain.FieldPage)
	pageQuery.SetBoost(1.5)

	searchQuery := bleve.NewDisjunctionQuery(titleQuery, textQuery, phraseQuery, pageQuery)

	if q.Category == "" && q.Page == "" {
		return searchQuery
	}

	must := []query.Query{searchQuery}

	if q.Category != "" {
		categoryQuery := bleve.NewTermQuery(string(q.Category))
		categoryQuery.SetField(domain.FieldCategory)
		must = append(must, categoryQuery)
	}

	if q.Page != "" {
		pageFilter := bleve.NewTermQuery(q.Page)
		pageFilter.SetField(domain.FieldPage)
		must = append(must, pageFilter)
	}

	return bleve.NewConjunctionQuery(must...)
}

// newSearchRequest builds the Bleve request for a normalized query.
func newSearchRequest(q Query) *bleve.SearchRequest {
	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	req.Fields = domain.StoredFields
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.FieldTitle)
	req.Highlight.AddField(domain.FieldText)
	return req
}
