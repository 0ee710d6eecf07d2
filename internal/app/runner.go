package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/docindex"
	mcputil "github.com/sha1n/mcp-docsearch-server/internal/mcp"
	"github.com/spf13/pflag"
)

// ServerName is the implementation name reported to MCP clients
const ServerName = "docsearch-mcp"

// Instance is a configured MCP server together with its lifecycle hooks
type Instance struct {
	Server  *mcp.Server
	Ready   func() bool // reports whether the search index is loaded; nil means always ready
	Cleanup func()
}

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*Instance, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*Instance, error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Always log to stderr; stdout carries the stdio transport
	slog.SetDefault(config.NewLogger(os.Stderr, settings))

	slog.Info("Starting docsearch MCP server", "version", version)
	config.Log(settings)

	instance, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if instance.Cleanup != nil {
		defer instance.Cleanup()
	}

	if settings.Transport == config.TransportStdio {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return instance.Server.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(instance, settings)
}

// CreateMCPServer loads the search index and creates the MCP server with
// the documentation tools registered. When watching is enabled a failed
// initial load is not fatal: the watcher may bring the index up later.
func CreateMCPServer(settings *config.Settings, version string) (*Instance, error) {
	svc, err := docindex.NewService(&settings.Docs)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	closeService := func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close docs service", "error", err)
		}
	}

	// Initialize in background context (not tied to request context)
	ctx := context.Background()
	if err := svc.Initialize(ctx); err != nil {
		if !settings.Docs.Watch {
			closeService()
			return nil, fmt.Errorf("failed to load search index: %w", err)
		}
		slog.Error("Search index initialization failed, waiting for source changes", "error", err)
	}

	cleanup := closeService
	if settings.Docs.Watch {
		watcher, err := docindex.NewWatcher(settings.Docs.Source, settings.Docs.WatchDebounce, svc)
		if err != nil {
			closeService()
			return nil, fmt.Errorf("failed to create source watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			closeService()
			return nil, fmt.Errorf("failed to start source watcher: %w", err)
		}
		cleanup = func() {
			watcher.Stop()
			closeService()
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		DocsSvc: svc,
	})

	return &Instance{Server: server, Ready: svc.IsReady, Cleanup: cleanup}, nil
}
