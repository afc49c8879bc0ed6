// Package config loads server configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Auth    AuthConfig
	Restore RestoreConfig
	S3      S3Config
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	Version     string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig locates everything the server keeps on disk. Empty paths
// default to directories under DataDir.
type StorageConfig struct {
	DataDir        string
	DatabasePath   string
	CustomInfoDir  string
	SearchIndexDir string
	BackupDir      string
	RestoreLogDir  string

	// BackupKeep is how many created backups to keep. 0 keeps all.
	BackupKeep int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // 0 keeps event streams open indefinitely
	IdleTimeout  time.Duration
	CORSOrigins  []string

	// ShutdownTimeout bounds how long each component may take to drain.
	ShutdownTimeout time.Duration
}

// AuthConfig holds admin token configuration.
type AuthConfig struct {
	// TokenKey is the PASETO v4 local key (32 bytes). When unset, a key is
	// loaded from or generated into the data dir at startup.
	TokenKey      []byte
	TokenDuration time.Duration
}

// RestoreConfig tunes the restore pipeline and the sync inbox.
type RestoreConfig struct {
	InboxDir      string
	WatchInbox    bool
	LeadingDays   int
	FollowingDays int
	// SourceRemap rewrites retired source ids before lookup.
	SourceRemap map[int64]int64
}

// S3Config holds remote backup storage settings. An empty bucket disables
// remote restores.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shelfsy", flag.ContinueOnError)
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataDir := fs.String("data-dir", "", "Base directory for server data")
	dbPath := fs.String("db", "", "SQLite library database path")
	backupDir := fs.String("backup-dir", "", "Directory for created backups")
	inboxDir := fs.String("inbox-dir", "", "Sync inbox watched for new backups")
	port := fs.String("port", "", "Server port (default: 8080)")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine. Existing environment variables win.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			Version:     getConfigValue("", "SHELFSY_VERSION", "dev"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataDir:        getConfigValue(*dataDir, "DATA_DIR", ""),
			DatabasePath:   getConfigValue(*dbPath, "DATABASE_PATH", ""),
			CustomInfoDir:  getConfigValue("", "CUSTOM_INFO_DIR", ""),
			SearchIndexDir: getConfigValue("", "SEARCH_INDEX_DIR", ""),
			BackupDir:      getConfigValue(*backupDir, "BACKUP_DIR", ""),
			RestoreLogDir:  getConfigValue("", "RESTORE_LOG_DIR", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "")),
		},
		Restore: RestoreConfig{
			InboxDir:   getConfigValue(*inboxDir, "RESTORE_INBOX_DIR", ""),
			WatchInbox: getBoolConfigValue("", "RESTORE_WATCH_INBOX", true),
		},
		S3: S3Config{
			Endpoint:  getConfigValue("", "S3_ENDPOINT", ""),
			Region:    getConfigValue("", "S3_REGION", "us-east-1"),
			Bucket:    getConfigValue("", "S3_BUCKET", ""),
			AccessKey: getConfigValue("", "S3_ACCESS_KEY", ""),
			SecretKey: getConfigValue("", "S3_SECRET_KEY", ""),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue("SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue("SERVER_WRITE_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue("SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getDurationConfigValue("SERVER_SHUTDOWN_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenDuration, err = getDurationConfigValue("TOKEN_DURATION", "24h"); err != nil {
		return nil, err
	}
	if key := getConfigValue("", "TOKEN_KEY", ""); key != "" {
		if cfg.Auth.TokenKey, err = hex.DecodeString(key); err != nil {
			return nil, fmt.Errorf("invalid TOKEN_KEY: %w", err)
		}
	}
	if cfg.Storage.BackupKeep, err = getIntConfigValue("BACKUP_KEEP", 10); err != nil {
		return nil, err
	}
	if cfg.Restore.LeadingDays, err = getIntConfigValue("RESTORE_LEADING_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.Restore.FollowingDays, err = getIntConfigValue("RESTORE_FOLLOWING_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.Restore.SourceRemap, err = ParseSourceRemap(getConfigValue("", "RESTORE_SOURCE_REMAP", "")); err != nil {
		return nil, err
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
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	s := c.Storage
	for name, path := range map[string]string{
		"data dir":         s.DataDir,
		"database path":    s.DatabasePath,
		"custom info dir":  s.CustomInfoDir,
		"search index dir": s.SearchIndexDir,
		"backup dir":       s.BackupDir,
		"restore log dir":  s.RestoreLogDir,
	} {
		if path == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}
	if s.BackupKeep < 0 {
		return errors.New("backup keep cannot be negative")
	}
	if c.Restore.WatchInbox && c.Restore.InboxDir == "" {
		return errors.New("restore inbox dir cannot be empty when watching is enabled")
	}

	if n := len(c.Auth.TokenKey); n != 0 && n != 32 {
		return fmt.Errorf("token key must be 32 bytes, got %d", n)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}
	if c.Restore.LeadingDays < 0 || c.Restore.FollowingDays < 0 {
		return errors.New("restore leading and following days cannot be negative")
	}
	return nil
}

// ParseSourceRemap parses "from:to" pairs separated by commas.
func ParseSourceRemap(s string) (map[int64]int64, error) {
	remap := make(map[int64]int64)
	for _, pair := range splitList(s) {
		from, to, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid source remap %q: want from:to", pair)
		}
		f, err := strconv.ParseInt(strings.TrimSpace(from), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid source remap %q: %w", pair, err)
		}
		t, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid source remap %q: %w", pair, err)
		}
		remap[f] = t
	}
	return remap, nil
}

// expandPaths resolves DataDir and derives the defaults under it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	s := &c.Storage
	if s.DataDir, err = expandPath(s.DataDir, filepath.Join(homeDir, "Shelfsy")); err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}

	targets := []struct {
		path *string
		def  string
	}{
		{&s.DatabasePath, filepath.Join(s.DataDir, "library.db")},
		{&s.CustomInfoDir, filepath.Join(s.DataDir, "custominfo")},
		{&s.SearchIndexDir, filepath.Join(s.DataDir, "search")},
		{&s.BackupDir, filepath.Join(s.DataDir, "backups")},
		{&s.RestoreLogDir, filepath.Join(s.DataDir, "logs")},
		{&c.Restore.InboxDir, filepath.Join(s.DataDir, "inbox")},
	}
	for _, t := range targets {
		if *t.path, err = expandPath(*t.path, t.def); err != nil {
			return fmt.Errorf("invalid path %q: %w", *t.path, err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
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

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue
	}
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

func getIntConfigValue(envKey string, defaultValue int) (int, error) {
	v := getConfigValue("", envKey, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return n, nil
}

func getDurationConfigValue(envKey, defaultValue string) (time.Duration, error) {
	v := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return d, nil
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
