package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/docindex"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	DocsSvc *docindex.Service // nil registers no tools
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.DocsSvc != nil {
		docindex.RegisterSearchTool(s, cfg.DocsSvc)
		docindex.RegisterPageTools(s, cfg.DocsSvc)
		docindex.RegisterValidateTool(s, cfg.DocsSvc)
	}

	return s
}
