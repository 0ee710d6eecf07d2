package searchindex

import (
	"strings"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

// FilterOptions narrows a substring search.
type FilterOptions struct {
	Category domain.Category
	Page     string
	Limit    int
}

// Filter performs a case-insensitive substring match of query against the
// title and text of entries. Title matches come first, each group in source
// order. An empty query matches nothing.
func Filter(entries []domain.Entry, query string, opts FilterOptions) []domain.Entry {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var byTitle, byText []domain.Entry
	for _, e := range entries {
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}
		if opts.Page != "" && !strings.EqualFold(e.Page, opts.Page) {
			continue
		}

		switch {
		case strings.Contains(strings.ToLower(e.Title), needle):
			byTitle = append(byTitle, e)
		case strings.Contains(strings.ToLower(e.Text), needle):
			byText = append(byText, e)
		}
	}

	result := append(byTitle, byText...)
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}
