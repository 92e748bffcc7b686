package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Metadata: MetadataConfig{BasePath: "/some/path"},
		Library:  LibraryConfig{Path: "/calibre"},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  time.Minute,
		},
		Browse: BrowseConfig{PageSize: 100, SessionTTL: 720 * time.Hour, IdleTimeout: 30 * time.Minute},
		Watch:  WatchConfig{Enabled: true, SettleDelay: 2 * time.Second},
	}
}

// clearEnv blanks every variable LoadConfig reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "METADATA_PATH", "LIBRARY_PATH", "SERVER_PORT", "ALLOWED_ORIGINS",
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
		"BROWSE_PAGE_SIZE", "BROWSE_SESSION_TTL", "BROWSE_SESSION_IDLE_TIMEOUT",
		"WATCH_ENABLED", "WATCH_SETTLE_DELAY", "BIBLIO_CONFIG",
	} {
		t.Setenv(key, "")
	}
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

			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true}, // case insensitive
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_BrowseBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Browse.PageSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Browse.SessionTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Browse.IdleTimeout = time.Nanosecond
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = "http"
	assert.Error(t, cfg.Validate())
}

func TestExpandPaths_EmptyUsesDefaults(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, cfg.expandPaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "Biblio", "data"), cfg.Metadata.BasePath)
	assert.Equal(t, filepath.Join(homeDir, "Biblio", "data", "state"), cfg.StatePath())
	assert.Equal(t, filepath.Join(homeDir, "Calibre Library"), cfg.Library.Path)
}

func TestExpandPaths_TildeExpansion(t *testing.T) {
	cfg := &Config{Library: LibraryConfig{Path: "~/books"}}

	require.NoError(t, cfg.expandPaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "books"), cfg.Library.Path)
}

func TestExpandPath_RelativeBecomesAbsolute(t *testing.T) {
	got, err := expandPath("relative/path", "")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(got))
	assert.Contains(t, got, filepath.Join("relative", "path"))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Browse.PageSize)
	assert.Equal(t, 720*time.Hour, cfg.Browse.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.SettleDelay)
}

func TestLoadConfig_TOMLFileBelowEnvAndFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "biblio.toml")

	content := `
[app]
environment = "staging"

[library]
path = "/srv/calibre"

[server]
port = "9000"
allowed_origins = ["http://a.example", "http://b.example"]

[browse]
page_size = 50
session_ttl = "24h"

[watch]
enabled = false
`
	require.NoError(t, os.WriteFile(tomlPath, []byte(content), 0o644))
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := LoadConfig([]string{
		"-env-file", filepath.Join(dir, "missing.env"),
		"-config", tomlPath,
		"-page-size", "25",
	})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "/srv/calibre", cfg.Library.Path)
	assert.Equal(t, "9100", cfg.Server.Port, "env beats file")
	assert.Equal(t, 25, cfg.Browse.PageSize, "flag beats file")
	assert.Equal(t, 24*time.Hour, cfg.Browse.SessionTTL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Watch.Enabled)
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig([]string{"-config", filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoConfigFile)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env"), "-session-ttl", "forever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROWSE_SESSION_TTL")
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `# Test env file
ENV=staging
LIBRARY_PATH=/test/path
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, key := range []string{"ENV", "LIBRARY_PATH", "QUOTED_VALUE", "SINGLE_QUOTED"} {
		t.Setenv(key, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("ENV"))
	assert.Equal(t, "/test/path", os.Getenv("LIBRARY_PATH"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VALID_KEY=valid_value\nINVALID LINE\n"), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("TEST_VAR", "original-value")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoadEnvFile_Whitespace(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`  KEY_WITH_SPACES  =  value with spaces  `), 0o644))
	t.Setenv("KEY_WITH_SPACES", "")

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "value with spaces", os.Getenv("KEY_WITH_SPACES"))
}
