// Package config provides client configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheDir    = "dir"
)

// Credential backends.
const (
	CredentialFile   = "file"
	CredentialMemory = "memory"
)

// Config holds the client configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	API     APIConfig
	Storage StorageConfig
	Search  SearchConfig
	Summary SummaryConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// APIConfig describes the RecoRead backend.
type APIConfig struct {
	BaseURL string        // default: http://localhost:8080/api
	Timeout time.Duration // per-request timeout (default: 30s)
}

// StorageConfig holds local persistence configuration.
type StorageConfig struct {
	DataDir           string // default: ~/.recoread
	CacheBackend      string // memory, badger or dir (default: dir)
	CredentialBackend string // file or memory (default: file)
}

// CachePath is where the reading-state cache lives for the dir and badger backends.
func (s StorageConfig) CachePath() string {
	return filepath.Join(s.DataDir, "reading-state")
}

// CredentialPath is the bearer token file for the file credential backend.
func (s StorageConfig) CredentialPath() string {
	return filepath.Join(s.DataDir, "credential")
}

// IndexPath is the local library search index.
func (s StorageConfig) IndexPath() string {
	return filepath.Join(s.DataDir, "index")
}

// SearchConfig tunes the catalog search controller.
type SearchConfig struct {
	Debounce      time.Duration // quiet period before a query executes (default: 500ms)
	CacheTTL      time.Duration // result cache lifetime (default: 5m)
	RetryAttempts int           // total attempts on 429 (default: 3)
	RetryBase     time.Duration // first retry delay, doubled per attempt (default: 600ms)
	MaxResults    int           // default: 20
}

// SummaryConfig holds summary generation settings.
type SummaryConfig struct {
	Cooldown time.Duration // per-book cooldown (default: 10s)
}

// ServerConfig holds companion server configuration.
type ServerConfig struct {
	Port           string        // default: 7070
	AllowedOrigins []string      // CORS origins (default: *)
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // 0 disables; SSE streams are long-lived
	IdleTimeout    time.Duration // default: 60s
}

// Load reads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Flags are parsed from args up to the first non-flag argument; the
// remaining arguments (the subcommand and its flags) are returned.
func Load(args []string, output io.Writer) (*Config, []string, error) {
	fs := flag.NewFlagSet("recoread", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	apiBaseURL := fs.String("api", "", "Backend base URL (default: http://localhost:8080/api)")
	apiTimeout := fs.String("timeout", "", "Backend request timeout (default: 30s)")

	dataDir := fs.String("data-dir", "", "Directory for local state (default: ~/.recoread)")
	cacheBackend := fs.String("cache", "", "Reading-state cache backend: memory, badger, dir (default: dir)")
	credentialBackend := fs.String("credentials", "", "Credential backend: file, memory (default: file)")

	searchDebounce := fs.String("search-debounce", "", "Catalog search quiet period (default: 500ms)")
	searchMaxResults := fs.String("search-max-results", "", "Catalog search result limit (default: 20)")

	serverPort := fs.String("port", "", "Companion server port (default: 7070)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "RECOREAD_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "warn"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(getConfigValue(*apiBaseURL, "API_BASE_URL", "http://localhost:8080/api"), "/"),
		},
		Storage: StorageConfig{
			DataDir:           getConfigValue(*dataDir, "DATA_DIR", ""),
			CacheBackend:      strings.ToLower(getConfigValue(*cacheBackend, "CACHE_BACKEND", CacheDir)),
			CredentialBackend: strings.ToLower(getConfigValue(*credentialBackend, "CREDENTIAL_BACKEND", CredentialFile)),
		},
		Search: SearchConfig{
			RetryAttempts: getIntConfigValue("", "SEARCH_RETRY_ATTEMPTS", 3),
			MaxResults:    getIntConfigValue(*searchMaxResults, "SEARCH_MAX_RESULTS", 20),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVE_PORT", "7070"),
			AllowedOrigins: splitList(getConfigValue("", "SERVE_ALLOWED_ORIGINS", "*")),
		},
	}

	durations := []struct {
		target *time.Duration
		flag   string
		envKey string
		def    string
	}{
		{&cfg.API.Timeout, *apiTimeout, "API_TIMEOUT", "30s"},
		{&cfg.Search.Debounce, *searchDebounce, "SEARCH_DEBOUNCE", "500ms"},
		{&cfg.Search.CacheTTL, "", "SEARCH_CACHE_TTL", "5m"},
		{&cfg.Search.RetryBase, "", "SEARCH_RETRY_BASE", "600ms"},
		{&cfg.Summary.Cooldown, "", "SUMMARY_COOLDOWN", "10s"},
		{&cfg.Server.ReadTimeout, "", "SERVE_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVE_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, "", "SERVE_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		value := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid %s %q: %w", d.envKey, value, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandDataDir(); err != nil {
		return nil, nil, fmt.Errorf("invalid data dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("RECOREAD_ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("API timeout must be positive")
	}

	if c.Storage.DataDir == "" {
		return errors.New("data dir cannot be empty after expansion")
	}
	switch c.Storage.CacheBackend {
	case CacheMemory, CacheBadger, CacheDir:
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory, badger, or dir)", c.Storage.CacheBackend)
	}
	switch c.Storage.CredentialBackend {
	case CredentialFile, CredentialMemory:
	default:
		return fmt.Errorf("invalid credential backend: %s (must be file or memory)", c.Storage.CredentialBackend)
	}

	if c.Search.Debounce < 0 {
		return errors.New("search debounce cannot be negative")
	}
	if c.Search.RetryAttempts < 1 {
		return errors.New("search retry attempts must be at least 1")
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 40 {
		return fmt.Errorf("search max results must be between 1 and 40, got %d", c.Search.MaxResults)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", c.Server.Port)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataDir expands ~ and makes the path absolute, defaulting to ~/.recoread.
func (c *Config) expandDataDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.DataDir, filepath.Join(homeDir, ".recoread"))
	if err != nil {
		return err
	}
	c.Storage.DataDir = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Variables already set to a non-empty value win over the file.
func loadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	for key, value := range values {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}
	return nil
}
