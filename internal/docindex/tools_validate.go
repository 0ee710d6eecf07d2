package docindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/searchindex"
)

// maxReportedIssues caps the findings listed per section of a report
const maxReportedIssues = 50

// ValidateArgument takes no parameters.
type ValidateArgument struct{}

// ValidateHandler handles the validate_index MCP tool.
type ValidateHandler struct {
	service *Service
}

// NewValidateHandler creates a new validate handler.
func NewValidateHandler(service *Service) *ValidateHandler {
	return &ValidateHandler{service: service}
}

// Handle returns the validation report and index statistics of the live source.
func (h *ValidateHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ValidateArgument) (*mcp.CallToolResult, any, error) {
	report, err := h.service.Report()
	if err != nil {
		stats := h.service.Stats()
		msg := "Validation is not available. The documentation index is still loading."
		if stats.LastError != "" {
			msg += " Last error: " + stats.LastError
		}
		return errorResult(msg), nil, nil
	}

	stats := h.service.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", stats.Source)
	fmt.Fprintf(&sb, "Generation: %s (loaded %s)\n", stats.Generation, stats.LoadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Pages: %d, indexed documents: %d\n", stats.Pages, stats.Documents)
	if stats.LastError != "" {
		fmt.Fprintf(&sb, "Last reload error: %s\n", stats.LastError)
	}
	sb.WriteString("\n")
	sb.WriteString(FormatReport(report))

	return textResult(sb.String()), nil, nil
}

// FormatReport renders a validation report as plain text.
func FormatReport(report *searchindex.Report) string {
	var sb strings.Builder
	status := "OK"
	if !report.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "Validation %s: %s\n", status, report.Summary())

	var counts []string
	for _, c := range domain.Categories {
		counts = append(counts, fmt.Sprintf("%s=%d", c, report.Categories[c]))
	}
	fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(counts, ", "))

	writeIssues(&sb, "Errors", report.Errors)
	writeIssues(&sb, "Warnings", report.Warnings)
	return sb.String()
}

func writeIssues(sb *strings.Builder, heading string, issues []searchindex.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", heading)
	for i, issue := range issues {
		if i == maxReportedIssues {
			fmt.Fprintf(sb, "... and %d more\n", len(issues)-maxReportedIssues)
			return
		}
		fmt.Fprintf(sb, "- %s\n", issue)
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *ValidateHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "validate_index",
		Description: "Report structural problems in the documentation search index and show index statistics",
	}
}

// RegisterValidateTool registers the validate tool with an MCP server.
func RegisterValidateTool(server *mcp.Server, service *Service) {
	handler := NewValidateHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
