package main

import (
	"context"
	"os"

	"github.com/sha1n/mcp-docsearch-server/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "docsearch-mcp"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := newRootCommand(version, programName)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCommand(version, programName string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Documentation search MCP server",
		Long:    "MCP server that searches a static documentation search index (search_index.js)",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Context(), cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newValidateCommand(), newSearchCommand())
	return rootCmd
}

func runWithFlags(ctx context.Context, flags *pflag.FlagSet, version string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return app.RunWithDeps(ctx, app.DefaultRunParams(), flags, version)
}
