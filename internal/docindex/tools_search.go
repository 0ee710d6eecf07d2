package docindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query      string `json:"query" jsonschema:"Search query matched against entry titles and text"`
	Category   string `json:"category,omitempty" jsonschema:"Filter by category: page, section, method or type"`
	Page       string `json:"page,omitempty" jsonschema:"Filter by page name (case-insensitive)"`
	Mode       string `json:"mode,omitempty" jsonschema:"fulltext (ranked, default) or substring (case-insensitive match)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default from server settings, max 100)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"Number of results to skip, for paging"`
}

// SearchHandler handles the search_docs MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is not available. The documentation index is still loading. Please try again later."), nil, nil
	}

	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	q, err := args.toQuery()
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	result, err := h.service.Search(ctx, q)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return errorResult(fmt.Sprintf("Unknown page: %s", args.Page)), nil, nil
		}
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return textResult(FormatResults(result, h.service.Settings().BaseURL)), nil, nil
}

// toQuery validates the arguments and converts them into a Query.
func (a SearchArgument) toQuery() (Query, error) {
	mode, err := ParseMode(a.Mode)
	if err != nil {
		return Query{}, err
	}

	q := Query{
		Text:   a.Query,
		Page:   strings.TrimSpace(a.Page),
		Mode:   mode,
		Limit:  a.MaxResults,
		Offset: a.Offset,
	}

	if strings.TrimSpace(a.Category) != "" {
		category, err := domain.ParseCategory(a.Category)
		if err != nil {
			return Query{}, err
		}
		q.Category = category
	}
	return q, nil
}

// FormatResults renders a search result as markdown.
func FormatResults(result *Result, baseURL string) string {
	if result.Total == 0 || len(result.Hits) == 0 {
		if result.Total > 0 {
			return fmt.Sprintf("No more results for query: %s (total %d)", result.Query.Text, result.Total)
		}
		return fmt.Sprintf("No results found for query: %s", result.Query.Text)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s' (%s):\n\n", result.Total, result.Query.Text, result.Query.Mode)

	for i, hit := range result.Hits {
		e := hit.Entry
		fmt.Fprintf(&sb, "### %d. %s\n", result.Query.Offset+i+1, displayTitle(e))
		fmt.Fprintf(&sb, "**Page**: %s | **Category**: %s | **Score**: %.4f\n", e.Page, e.Category, hit.Score)
		fmt.Fprintf(&sb, "**Link**: %s\n\n", e.URL(baseURL))

		if len(hit.Fragments) > 0 {
			sb.WriteString("```\n")
			for _, fragment := range hit.Fragments {
				sb.WriteString(fragment)
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		} else if snippet := Snippet(e.Text, 300); snippet != "" {
			sb.WriteString("```\n")
			sb.WriteString(snippet)
			sb.WriteString("\n```\n")
		}
		sb.WriteString("\n")
	}

	shown := uint64(result.Query.Offset + len(result.Hits))
	if result.Total > shown {
		fmt.Fprintf(&sb, "... and %d more results (use offset=%d)\n", result.Total-shown, shown)
	}

	return sb.String()
}

// displayTitle falls back to the page name for untitled entries.
func displayTitle(e domain.Entry) string {
	if e.Title != "" {
		return e.Title
	}
	return e.Page
}

// Snippet trims text to at most n runes.
func Snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_docs",
		Description: "Search the documentation index by title and text, optionally filtered by page or category",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
