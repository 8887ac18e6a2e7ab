package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Driver は永続化に使用するデータベースドライバーを表す。
type Driver string

const (
	// DriverPostgres はlib/pqを使用したPostgreSQL接続。
	DriverPostgres Driver = "postgres"
	// DriverPgx はpgx/v5のdatabase/sqlアダプタを使用したPostgreSQL接続。
	DriverPgx Driver = "pgx"
	// DriverSQLite はmodernc.org/sqliteを使用したSQLite接続。
	DriverSQLite Driver = "sqlite"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// DatabaseURLが空の場合はデモモード（モックデータ）で動作する。
	DatabaseURL    string
	DatabaseDriver Driver

	// Generation
	TextGenerationDelay  time.Duration
	ImageGenerationDelay time.Duration
	ImageBaseURL         string
	ImageCount           int

	// Rate Limit（req/min/client）
	RateLimitGeneral    int
	RateLimitGeneration int

	// Import
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// DemoMode は永続化ストアが未設定（モックデータで動作）かを返す。
func (c *Config) DemoMode() bool {
	return c.DatabaseURL == ""
}

// Load は環境変数からConfigを読み込む。
// 必須の環境変数はない。値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	driver := Driver(strings.ToLower(getEnvString("DATABASE_DRIVER", string(DriverPostgres))))
	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
		cfg.DatabaseDriver = driver
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER: %q (allowed: postgres, pgx, sqlite)", driver)
	}

	level, err := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// Optional fields with defaults
	cfg.TextGenerationDelay = getEnvDuration("TEXT_GENERATION_DELAY", 1500*time.Millisecond)
	cfg.ImageGenerationDelay = getEnvDuration("IMAGE_GENERATION_DELAY", 2*time.Second)
	cfg.ImageBaseURL = strings.TrimRight(getEnvString("IMAGE_BASE_URL", "https://picsum.photos"), "/")
	cfg.ImageCount = getEnvInt("IMAGE_COUNT", 4)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGeneration = getEnvInt("RATE_LIMIT_GENERATION", 20)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.ImageCount < 1 {
		return nil, fmt.Errorf("IMAGE_COUNT must be positive, got %d", cfg.ImageCount)
	}
	if cfg.RateLimitGeneral < 1 || cfg.RateLimitGeneration < 1 {
		return nil, fmt.Errorf("rate limits must be positive (general=%d, generation=%d)",
			cfg.RateLimitGeneral, cfg.RateLimitGeneration)
	}

	return cfg, nil
}

// parseLogLevel はLOG_LEVELの文字列をslog.Levelに変換する。
func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
