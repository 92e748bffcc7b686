// Package config loads server configuration from flags, environment variables, a .env file and an optional TOML file.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/biblioapp/biblio/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Logger   LoggerConfig   `toml:"logger"`
	Metadata MetadataConfig `toml:"metadata"`
	Library  LibraryConfig  `toml:"library"`
	Server   ServerConfig   `toml:"server"`
	Browse   BrowseConfig   `toml:"browse"`
	Watch    WatchConfig    `toml:"watch"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `toml:"environment" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `toml:"level" validate:"required"`
}

// MetadataConfig holds the location of the server's own data (browse state database).
type MetadataConfig struct {
	BasePath string `toml:"base_path" validate:"required"`
}

// LibraryConfig points at the directory holding Calibre libraries.
type LibraryConfig struct {
	Path string `toml:"path" validate:"required"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `toml:"port" validate:"required,numeric"`
	ReadTimeout    time.Duration `toml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `toml:"write_timeout" validate:"gt=0"`
	IdleTimeout    time.Duration `toml:"idle_timeout" validate:"gt=0"`
	AllowedOrigins []string      `toml:"allowed_origins"`
}

// BrowseConfig tunes the browse engine and its persisted state.
type BrowseConfig struct {
	PageSize    int           `toml:"page_size" validate:"gte=1,lte=1000"`
	SessionTTL  time.Duration `toml:"session_ttl" validate:"gt=0"`
	IdleTimeout time.Duration `toml:"idle_timeout" validate:"gte=1s"` // evict in-memory sessions after this long
}

// WatchConfig controls rescanning libraries when their metadata.db changes.
type WatchConfig struct {
	Enabled     bool          `toml:"enabled"`
	SettleDelay time.Duration `toml:"settle_delay" validate:"gte=0"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. TOML config file.
// 5. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("biblio", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	metadataPath := fs.String("metadata-path", "", "Base path for server data")
	libraryPath := fs.String("library-path", "", "Directory containing Calibre libraries")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")

	pageSize := fs.String("page-size", "", "Records materialized per page (default: 100)")
	sessionTTL := fs.String("session-ttl", "", "Lifetime of persisted browse state (default: 720h)")
	sessionIdle := fs.String("session-idle-timeout", "", "Evict idle browse sessions from memory (default: 30m)")

	watchEnabled := fs.String("watch", "", "Rescan libraries when metadata.db changes (default: true)")
	watchSettle := fs.String("watch-settle", "", "Quiet period before a change triggers a rescan (default: 2s)")

	envFile := fs.String("env-file", ".env", "Path to .env file")
	configFile := fs.String("config", "", "Path to TOML config file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	file := fileValues{}
	if path := getConfigValue(*configFile, "BIBLIO_CONFIG", ""); path != "" {
		loaded, err := loadTOMLFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		file = loaded
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", file.get("app.environment", "development")),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", file.get("logger.level", "info")),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", file.get("metadata.base_path", "")),
		},
		Library: LibraryConfig{
			Path: getConfigValue(*libraryPath, "LIBRARY_PATH", file.get("library.path", "")),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", file.get("server.port", "8080")),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", file.get("server.allowed_origins", "*"))),
		},
		Browse: BrowseConfig{
			PageSize: getIntConfigValue(*pageSize, "BROWSE_PAGE_SIZE", file.getInt("browse.page_size", 100)),
		},
		Watch: WatchConfig{
			Enabled: getBoolConfigValue(*watchEnabled, "WATCH_ENABLED", file.getBool("watch.enabled", true)),
		},
	}

	durations := []struct {
		target   *time.Duration
		flag     string
		envKey   string
		fileKey  string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "server.read_timeout", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "server.write_timeout", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "server.idle_timeout", "60s"},
		{&cfg.Browse.SessionTTL, *sessionTTL, "BROWSE_SESSION_TTL", "browse.session_ttl", "720h"},
		{&cfg.Browse.IdleTimeout, *sessionIdle, "BROWSE_SESSION_IDLE_TIMEOUT", "browse.idle_timeout", "30m"},
		{&cfg.Watch.SettleDelay, *watchSettle, "WATCH_SETTLE_DELAY", "watch.settle_delay", "2s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, file.get(d.fileKey, d.fallback))
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
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

// expandPaths resolves ~ and relative paths. Empty paths default under the home directory:
// ~/Biblio/data for server data and ~/Calibre Library, the directory Calibre itself creates.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	paths := []struct {
		name     string
		target   *string
		fallback string
	}{
		{"metadata", &c.Metadata.BasePath, filepath.Join(homeDir, "Biblio", "data")},
		{"library", &c.Library.Path, filepath.Join(homeDir, "Calibre Library")},
	}
	for _, p := range paths {
		expanded, err := expandPath(*p.target, p.fallback)
		if err != nil {
			return fmt.Errorf("invalid %s path: %w", p.name, err)
		}
		*p.target = expanded
	}
	return nil
}

// StatePath is the badger directory holding persisted browse state.
func (c *Config) StatePath() string {
	return filepath.Join(c.Metadata.BasePath, "state")
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

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	return parseBool(strValue)
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

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
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
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
