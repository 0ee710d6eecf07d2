package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sha1n/mcp-docsearch-server/internal/docindex"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/searchindex"
	"github.com/spf13/cobra"
)

// ErrInvalidIndex is returned by validate when any record fails validation
var ErrInvalidIndex = errors.New("search index has invalid records")

func newValidateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:          "validate <file>",
		Short:        "Check the structure of a search index file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := searchindex.Load(args[0])
			if err != nil {
				return err
			}

			report := src.Report()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
			} else {
				fmt.Fprint(out, docindex.FormatReport(report))
			}

			if !report.OK() {
				return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, len(report.Errors), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

type searchOptions struct {
	category string
	page     string
	mode     string
	limit    int
	offset   int
	baseURL  string
}

func newSearchCommand() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:          "search <file> <query>",
		Short:        "Search a search index file without starting the server",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			output, err := runSearch(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.category, "category", "c", "", "Filter by category: page, section, method or type")
	flags.StringVar(&opts.page, "page", "", "Filter by page name")
	flags.StringVarP(&opts.mode, "mode", "m", "", "fulltext (default) or substring")
	flags.IntVarP(&opts.limit, "limit", "n", docindex.DefaultLimit, "Maximum number of results")
	flags.IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	flags.StringVar(&opts.baseURL, "base-url", "", "Base URL of the published documentation")
	return cmd
}

// runSearch indexes the file in memory and renders the results of one query.
func runSearch(ctx context.Context, path, text string, opts searchOptions) (string, error) {
	mode, err := docindex.ParseMode(opts.mode)
	if err != nil {
		return "", err
	}

	q := docindex.Query{Text: text, Page: opts.page, Mode: mode, Limit: opts.limit, Offset: opts.offset}
	if opts.category != "" {
		if q.Category, err = domain.ParseCategory(opts.category); err != nil {
			return "", err
		}
	}

	src, err := searchindex.Load(path)
	if err != nil {
		return "", err
	}

	gen, err := docindex.NewMemGeneration(src)
	if err != nil {
		return "", fmt.Errorf("failed to index %s: %w", path, err)
	}
	defer func() { _ = gen.Close() }()

	result, err := gen.Search(ctx, q, opts.limit)
	if err != nil {
		return "", err
	}
	return docindex.FormatResults(result, opts.baseURL), nil
}
