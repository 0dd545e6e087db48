package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogLevel    slog.Level
	Server      ServerConfig
	Database    DatabaseConfig
	ClickHouse  ClickHouseConfig
	Umami       UmamiConfig
	Import      ImportConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	URL string
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

type UmamiConfig struct {
	DatabaseURL string
	PageSize    int
}

type ImportConfig struct {
	Workers         int
	BatchSize       int
	PollIntervalMS  int
	FetchRetries    int
	WriteRetries    int
	RetryInitialMS  int
	DedupeWindow    int
	DefaultPlatform string
}

func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for CLI commands, which may run without a
// metadata database configured (e.g. --help).
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireDatabase bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("site_import_env", "")
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("clickhouse_addr", "localhost:9000")
	v.SetDefault("clickhouse_database", "default")
	v.SetDefault("clickhouse_user", "default")
	v.SetDefault("clickhouse_password", "")
	v.SetDefault("umami_database_url", "")
	v.SetDefault("umami_page_size", 1000)
	v.SetDefault("import_workers", 4)
	v.SetDefault("import_batch_size", 5000)
	v.SetDefault("import_poll_interval_ms", 500)
	v.SetDefault("import_fetch_retries", 5)
	v.SetDefault("import_write_retries", 5)
	v.SetDefault("import_retry_initial_ms", 500)
	v.SetDefault("import_dedupe_window", 10000)
	v.SetDefault("import_default_platform", "umami")
	v.SetDefault("log_level", "info")

	port := v.GetInt("port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT: %d", port)
	}

	level, err := parseLevel(v.GetString("log_level"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("site_import_env"))),
		LogLevel:    level,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			URL: strings.TrimSpace(v.GetString("database_url")),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     strings.TrimSpace(v.GetString("clickhouse_addr")),
			Database: strings.TrimSpace(v.GetString("clickhouse_database")),
			Username: strings.TrimSpace(v.GetString("clickhouse_user")),
			Password: v.GetString("clickhouse_password"),
		},
		Umami: UmamiConfig{
			DatabaseURL: strings.TrimSpace(v.GetString("umami_database_url")),
			PageSize:    clamp(v.GetInt("umami_page_size"), 1, 10000, 1000),
		},
		Import: ImportConfig{
			Workers:         clamp(v.GetInt("import_workers"), 1, 10, 4),
			BatchSize:       clamp(v.GetInt("import_batch_size"), 1, 50000, 5000),
			PollIntervalMS:  clamp(v.GetInt("import_poll_interval_ms"), 10, 60000, 500),
			FetchRetries:    clamp(v.GetInt("import_fetch_retries"), 0, 20, 5),
			WriteRetries:    clamp(v.GetInt("import_write_retries"), 0, 20, 5),
			RetryInitialMS:  clamp(v.GetInt("import_retry_initial_ms"), 1, 60000, 500),
			DedupeWindow:    clamp(v.GetInt("import_dedupe_window"), 1, 1000000, 10000),
			DefaultPlatform: strings.ToLower(strings.TrimSpace(v.GetString("import_default_platform"))),
		},
	}

	if cfg.Import.DefaultPlatform == "" {
		cfg.Import.DefaultPlatform = "umami"
	}
	if requireDatabase && cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// clamp bounds value into [lo, hi]. Non-positive values fall back to
// fallback when lo is positive.
func clamp(value, lo, hi, fallback int) int {
	if value < lo {
		if value <= 0 && lo > 0 {
			return fallback
		}
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func (c Config) IsLocalDevelopment() bool {
	switch c.Environment {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Import.PollIntervalMS) * time.Millisecond
}

func (c Config) RetryInitialInterval() time.Duration {
	return time.Duration(c.Import.RetryInitialMS) * time.Millisecond
}
