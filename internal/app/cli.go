package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn, or error")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	flags.StringP("source", "s", "", "Path to the documentation search index (search_index.js)")
	flags.String("base-dir", "", "Directory for the search index and manifest")
	flags.String("base-url", "", "Base URL of the published documentation, used for result links")
	flags.Int("max-results", 0, "Default number of search results (max 100)")
	flags.BoolP("watch", "w", false, "Reload the index when the source file changes")
	flags.Duration("watch-debounce", 0, "Quiet period before reloading a changed source")
	flags.Duration("lock-timeout", 0, "How long to wait for another instance to finish indexing")
}
