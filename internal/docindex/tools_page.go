package docindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

// PageArgument defines get_page parameters.
type PageArgument struct {
	Page     string `json:"page,omitempty" jsonschema:"Page name (case-insensitive)"`
	Location string `json:"location,omitempty" jsonschema:"Page path or entry location, e.g. generated/slack_load/#Slack-Bus"`
}

// PageHandler handles the get_page MCP tool.
type PageHandler struct {
	service *Service
}

// NewPageHandler creates a new page handler.
func NewPageHandler(service *Service) *PageHandler {
	return &PageHandler{service: service}
}

// Handle returns every entry of a page in source order.
func (h *PageHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args PageArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Page lookup is not available. The documentation index is still loading. Please try again later."), nil, nil
	}

	key := strings.TrimSpace(args.Page)
	if key == "" {
		key = strings.TrimSpace(args.Location)
	}
	if key == "" {
		return errorResult("Either page or location is required"), nil, nil
	}

	entries, err := h.service.Page(key)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return errorResult(fmt.Sprintf("Page not found: %s", key)), nil, nil
		}
		return errorResult(fmt.Sprintf("Page lookup failed: %s", err)), nil, nil
	}

	return textResult(FormatPage(entries, h.service.Settings().BaseURL)), nil, nil
}

// FormatPage renders the entries of one page as markdown. Section and
// docstring entries become headings; page-level chunks become body text.
func FormatPage(entries []domain.Entry, baseURL string) string {
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	first := entries[0]
	fmt.Fprintf(&sb, "# %s\n", first.Page)
	fmt.Fprintf(&sb, "**Link**: %s\n\n", domain.Entry{Location: first.Path()}.URL(baseURL))

	for _, e := range entries {
		switch e.Category {
		case domain.CategorySection:
			fmt.Fprintf(&sb, "## %s\n", displayTitle(e))
			fmt.Fprintf(&sb, "_%s_\n\n", e.URL(baseURL))
		case domain.CategoryMethod, domain.CategoryType:
			fmt.Fprintf(&sb, "## %s (%s)\n", displayTitle(e), e.Category)
			fmt.Fprintf(&sb, "_%s_\n\n", e.URL(baseURL))
		}

		if text := strings.TrimSpace(e.Text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *PageHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_page",
		Description: "Return every indexed entry of a documentation page in document order",
	}
}

// ListPagesArgument takes no parameters.
type ListPagesArgument struct{}

// ListPagesHandler handles the list_pages MCP tool.
type ListPagesHandler struct {
	service *Service
}

// NewListPagesHandler creates a new list_pages handler.
func NewListPagesHandler(service *Service) *ListPagesHandler {
	return &ListPagesHandler{service: service}
}

// Handle lists the pages of the index with per-category entry counts.
func (h *ListPagesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ListPagesArgument) (*mcp.CallToolResult, any, error) {
	pages, err := h.service.Pages()
	if err != nil {
		return errorResult("Page listing is not available. The documentation index is still loading. Please try again later."), nil, nil
	}

	if len(pages) == 0 {
		return textResult("The documentation index has no pages"), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d pages:\n\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(&sb, "- **%s** (%s): %d entries", p.Name, domain.Entry{Location: p.Path}.URL(h.service.Settings().BaseURL), p.Entries)
		var counts []string
		for _, c := range domain.Categories {
			if n := p.Categories[c]; n > 0 {
				counts = append(counts, fmt.Sprintf("%s=%d", c, n))
			}
		}
		if len(counts) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(counts, ", "))
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ListPagesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_pages",
		Description: "List the documentation pages in the index with entry counts per category",
	}
}

// RegisterPageTools registers get_page and list_pages with an MCP server.
func RegisterPageTools(server *mcp.Server, service *Service) {
	page := NewPageHandler(service)
	mcp.AddTool(server, page.GetToolDefinition(), page.Handle)

	list := NewListPagesHandler(service)
	mcp.AddTool(server, list.GetToolDefinition(), list.Handle)
}
