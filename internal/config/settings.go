package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the server reads
const EnvPrefix = "DOCSEARCH_MCP"

// Transport constants
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// MaxResultsLimit caps docs.max_results
const MaxResultsLimit = 100

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DocsSettings configuration for the documentation search index
type DocsSettings struct {
	Source        string        `mapstructure:"source"`
	BaseDir       string        `mapstructure:"base_dir"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxResults    int           `mapstructure:"max_results"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout"`
}

// Settings application settings
type Settings struct {
	Transport string       `mapstructure:"transport"`
	Host      string       `mapstructure:"host"`
	Port      int          `mapstructure:"port"`
	LogLevel  string       `mapstructure:"log_level"`
	Auth      AuthSettings `mapstructure:"auth"`
	Docs      DocsSettings `mapstructure:"docs"`
}

// flagBindings maps viper keys to CLI flag names
var flagBindings = map[string]string{
	"transport":           "transport",
	"host":                "host",
	"port":                "port",
	"log_level":           "log-level",
	"auth.type":           "auth-type",
	"auth.basic.username": "auth-basic-username",
	"auth.basic.password": "auth-basic-password",
	"auth.api_keys":       "auth-api-keys",
	"docs.source":         "source",
	"docs.base_dir":       "base-dir",
	"docs.base_url":       "base-url",
	"docs.max_results":    "max-results",
	"docs.watch":          "watch",
	"docs.watch_debounce": "watch-debounce",
	"docs.lock_timeout":   "lock-timeout",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", TransportStdio)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("docs.base_dir", defaultBaseDir())
	v.SetDefault("docs.max_results", 10)
	v.SetDefault("docs.watch", false)
	v.SetDefault("docs.watch_debounce", 500*time.Millisecond)
	v.SetDefault("docs.lock_timeout", 30*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys are not picked up by AutomaticEnv on Unmarshal
	for key := range flagBindings {
		_ = v.BindEnv(key, EnvVar(key))
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// A comma-separated env var arrives as a single element
	if apiKeysEnv := os.Getenv(EnvVar("auth.api_keys")); apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	settings.Auth.APIKeys = trimAndFilter(settings.Auth.APIKeys)

	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	settings.Docs.Source = expandHomeDir(strings.TrimSpace(settings.Docs.Source))
	settings.Docs.BaseDir = expandHomeDir(settings.Docs.BaseDir)

	return &settings, nil
}

// EnvVar returns the environment variable name for a settings key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// defaultBaseDir returns the default directory for indexes and the manifest
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docsearch-mcp"
	}
	return filepath.Join(home, ".docsearch-mcp")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// trimAndFilter trims every element and drops empty ones
func trimAndFilter(s []string) []string {
	var result []string
	for _, str := range s {
		if str = strings.TrimSpace(str); str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting or incomplete configurations.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case TransportStdio, TransportSSE:
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if s.Transport == TransportSSE && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", s.Port)
	}

	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}

	return validateDocsSettings(&s.Docs)
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

func validateDocsSettings(d *DocsSettings) error {
	if d.Source == "" {
		return errors.New("source is required (path to the search index file)")
	}

	if d.BaseDir == "" {
		return errors.New("base-dir cannot be empty")
	}

	if d.MaxResults <= 0 || d.MaxResults > MaxResultsLimit {
		return fmt.Errorf("max-results must be between 1 and %d, got: %d", MaxResultsLimit, d.MaxResults)
	}

	if d.LockTimeout <= 0 {
		return errors.New("lock-timeout must be positive")
	}

	if d.Watch && d.WatchDebounce <= 0 {
		return errors.New("watch-debounce must be positive when watch is enabled")
	}

	return nil
}
