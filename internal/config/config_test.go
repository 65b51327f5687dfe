package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RECOREAD_ENV", "LOG_LEVEL", "API_BASE_URL", "API_TIMEOUT", "DATA_DIR",
		"CACHE_BACKEND", "CREDENTIAL_BACKEND", "SEARCH_DEBOUNCE", "SEARCH_CACHE_TTL",
		"SEARCH_RETRY_ATTEMPTS", "SEARCH_RETRY_BASE", "SEARCH_MAX_RESULTS",
		"SUMMARY_COOLDOWN", "SERVE_PORT", "SERVE_ALLOWED_ORIGINS",
		"SERVE_READ_TIMEOUT", "SERVE_WRITE_TIMEOUT", "SERVE_IDLE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		API:    APIConfig{BaseURL: "http://localhost:8080/api", Timeout: 30 * time.Second},
		Storage: StorageConfig{
			DataDir:           "/some/path",
			CacheBackend:      CacheDir,
			CredentialBackend: CredentialFile,
		},
		Search: SearchConfig{
			Debounce:      500 * time.Millisecond,
			RetryAttempts: 3,
			MaxResults:    20,
		},
		Server: ServerConfig{Port: "7070"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()

	cfg, rest, err := Load([]string{"-env-file", filepath.Join(dataDir, "missing.env"), "-data-dir", dataDir, "books", "-tag", "fantasy"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"books", "-tag", "fantasy"}, rest)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, dataDir, cfg.Storage.DataDir)
	assert.Equal(t, CacheDir, cfg.Storage.CacheBackend)
	assert.Equal(t, CredentialFile, cfg.Storage.CredentialBackend)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 5*time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, 3, cfg.Search.RetryAttempts)
	assert.Equal(t, 600*time.Millisecond, cfg.Search.RetryBase)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.Summary.Cooldown)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://env.example.com/api")
	t.Setenv("CACHE_BACKEND", "badger")
	t.Setenv("SEARCH_DEBOUNCE", "450ms")
	t.Setenv("SERVE_ALLOWED_ORIGINS", "http://localhost:5173, https://app.example.com")

	cfg, _, err := Load([]string{
		"-env-file", filepath.Join(t.TempDir(), "missing.env"),
		"-data-dir", t.TempDir(),
		"-api", "https://flag.example.com/api/",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, CacheBadger, cfg.Storage.CacheBackend)
	assert.Equal(t, 450*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUMMARY_COOLDOWN", "ten seconds")

	_, _, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUMMARY_COOLDOWN")
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)

	_, _, err := Load([]string{"-no-such-flag"}, io.Discard)
	assert.Error(t, err)
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.Logger.Level = "trace" }, "invalid log level"},
		{"uppercase log level ok", func(c *Config) { c.Logger.Level = "DEBUG" }, ""},
		{"base url scheme", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "invalid API base URL"},
		{"base url host", func(c *Config) { c.API.BaseURL = "http://" }, "invalid API base URL"},
		{"timeout", func(c *Config) { c.API.Timeout = 0 }, "API timeout"},
		{"data dir", func(c *Config) { c.Storage.DataDir = "" }, "data dir cannot be empty"},
		{"cache backend", func(c *Config) { c.Storage.CacheBackend = "redis" }, "invalid cache backend"},
		{"credential backend", func(c *Config) { c.Storage.CredentialBackend = "keyring" }, "invalid credential backend"},
		{"retry attempts", func(c *Config) { c.Search.RetryAttempts = 0 }, "retry attempts"},
		{"max results", func(c *Config) { c.Search.MaxResults = 41 }, "max results"},
		{"port", func(c *Config) { c.Server.Port = "http" }, "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStorageConfig_Paths(t *testing.T) {
	s := StorageConfig{DataDir: "/data"}

	assert.Equal(t, filepath.Join("/data", "reading-state"), s.CachePath())
	assert.Equal(t, filepath.Join("/data", "credential"), s.CredentialPath())
	assert.Equal(t, filepath.Join("/data", "index"), s.IndexPath())
}

func TestExpandDataDir_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, cfg.expandDataDir())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, ".recoread"), cfg.Storage.DataDir)
}

func TestExpandDataDir_TildeExpansion(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataDir: "~/reading"}}

	require.NoError(t, cfg.expandDataDir())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "reading"), cfg.Storage.DataDir)
}

func TestExpandDataDir_RelativePath(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataDir: "relative/path"}}

	require.NoError(t, cfg.expandDataDir())

	assert.True(t, filepath.IsAbs(cfg.Storage.DataDir))
	assert.Contains(t, cfg.Storage.DataDir, "relative/path")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestGetIntConfigValue(t *testing.T) {
	t.Setenv("TEST_INT", " 7 ")
	assert.Equal(t, 7, getIntConfigValue("", "TEST_INT", 3))

	t.Setenv("TEST_INT", "seven")
	assert.Equal(t, 3, getIntConfigValue("", "TEST_INT", 3))

	assert.Equal(t, 9, getIntConfigValue("9", "TEST_INT", 3))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `# Test env file
RECOREAD_ENV=staging
LOG_LEVEL=debug
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, key := range []string{"RECOREAD_ENV", "LOG_LEVEL", "QUOTED_VALUE", "SINGLE_QUOTED"} {
		t.Setenv(key, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("RECOREAD_ENV"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `VALID_KEY=valid_value
BAD-KEY=value
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))
	t.Setenv("VALID_KEY", "")

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected character")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("TEST_VAR", "original-value")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoad_EnvFileFeedsConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "SEARCH_MAX_RESULTS=10\nCACHE_BACKEND=memory\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, _, err := Load([]string{"-env-file", envFile, "-data-dir", dir}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, CacheMemory, cfg.Storage.CacheBackend)
}
