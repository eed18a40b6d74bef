package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Quota ledger backends.
const (
	QuotaBackendPostgres = "postgres"
	QuotaBackendRedis    = "redis"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Quota    QuotaConfig
	Chat     ChatConfig
	Gemini   GeminiConfig
	Search   SearchConfig
	Log      LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// QuotaConfig holds daily quota and burst limiting settings.
type QuotaConfig struct {
	DailyLimit int
	Backend    string
	Timezone   string
	BurstRPS   float64
	Burst      int
}

// ChatConfig holds orchestration loop settings.
type ChatConfig struct {
	MaxSteps       int
	RequestTimeout time.Duration
	Model          string
}

// GeminiConfig holds model backend settings.
type GeminiConfig struct {
	APIKey    string //nolint:gosec // G117: API credential config
	MaxTokens int
}

// SearchConfig holds web search settings.
type SearchConfig struct {
	APIKey  string //nolint:gosec // G117: API credential config
	BaseURL string
	Results int
	Timeout time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("DEEPSEARCH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("DEEPSEARCH_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("DEEPSEARCH_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("DEEPSEARCH_JWT_ACCESS_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("DEEPSEARCH_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("DEEPSEARCH_SERVER_WRITE_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dailyLimit, err := getEnvInt("DEEPSEARCH_QUOTA_DAILY_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burstRPS, err := getEnvFloat("DEEPSEARCH_QUOTA_BURST_RPS", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("DEEPSEARCH_QUOTA_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxSteps, err := getEnvInt("DEEPSEARCH_CHAT_MAX_STEPS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	requestTimeout, err := getEnvDuration("DEEPSEARCH_CHAT_REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxTokens, err := getEnvInt("DEEPSEARCH_GEMINI_MAX_TOKENS", 8192)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	searchResults, err := getEnvInt("DEEPSEARCH_SEARCH_RESULTS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	searchTimeout, err := getEnvDuration("DEEPSEARCH_SEARCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("DEEPSEARCH_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DEEPSEARCH_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DEEPSEARCH_DB_USER", "deepsearch"),
			Password: getEnv("DEEPSEARCH_DB_PASSWORD", ""),
			DBName:   getEnv("DEEPSEARCH_DB_NAME", "deepsearch_dev"),
			SSLMode:  getEnv("DEEPSEARCH_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("DEEPSEARCH_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("DEEPSEARCH_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:    getEnv("DEEPSEARCH_JWT_SECRET", ""),
			AccessTTL: accessTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("DEEPSEARCH_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Quota: QuotaConfig{
			DailyLimit: dailyLimit,
			Backend:    getEnv("DEEPSEARCH_QUOTA_BACKEND", QuotaBackendPostgres),
			Timezone:   getEnv("DEEPSEARCH_QUOTA_TIMEZONE", "Local"),
			BurstRPS:   burstRPS,
			Burst:      burst,
		},
		Chat: ChatConfig{
			MaxSteps:       maxSteps,
			RequestTimeout: requestTimeout,
			Model:          getEnv("DEEPSEARCH_CHAT_MODEL", "gemini-2.0-flash"),
		},
		Gemini: GeminiConfig{
			APIKey:    getEnv("DEEPSEARCH_GEMINI_API_KEY", ""),
			MaxTokens: maxTokens,
		},
		Search: SearchConfig{
			APIKey:  getEnv("DEEPSEARCH_SERPER_API_KEY", ""),
			BaseURL: getEnv("DEEPSEARCH_SERPER_BASE_URL", "https://google.serper.dev"),
			Results: searchResults,
			Timeout: searchTimeout,
		},
		Log: LogConfig{
			Level:  getEnv("DEEPSEARCH_LOG_LEVEL", "info"),
			Format: getEnv("DEEPSEARCH_LOG_FORMAT", "json"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("DEEPSEARCH_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("DEEPSEARCH_JWT_SECRET must be at least 32 characters")
	}
	if c.Gemini.APIKey == "" {
		return errors.New("DEEPSEARCH_GEMINI_API_KEY is required")
	}
	if c.Search.APIKey == "" {
		return errors.New("DEEPSEARCH_SERPER_API_KEY is required")
	}

	if c.Database.SSLMode == "disable" {
		log.Warn().Msg("DEEPSEARCH_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DEEPSEARCH_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DEEPSEARCH_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("DEEPSEARCH_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("DEEPSEARCH_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("DEEPSEARCH_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Quota.DailyLimit < 1 {
		return fmt.Errorf("DEEPSEARCH_QUOTA_DAILY_LIMIT must be >= 1, got %d", c.Quota.DailyLimit)
	}
	switch c.Quota.Backend {
	case QuotaBackendPostgres, QuotaBackendRedis:
	default:
		return fmt.Errorf("DEEPSEARCH_QUOTA_BACKEND must be %q or %q, got %q",
			QuotaBackendPostgres, QuotaBackendRedis, c.Quota.Backend)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("DEEPSEARCH_QUOTA_TIMEZONE: %w", err)
	}
	if c.Quota.BurstRPS <= 0 {
		return fmt.Errorf("DEEPSEARCH_QUOTA_BURST_RPS must be positive, got %g", c.Quota.BurstRPS)
	}
	if c.Quota.Burst < 1 {
		return fmt.Errorf("DEEPSEARCH_QUOTA_BURST must be >= 1, got %d", c.Quota.Burst)
	}

	if c.Chat.MaxSteps < 1 {
		return fmt.Errorf("DEEPSEARCH_CHAT_MAX_STEPS must be >= 1, got %d", c.Chat.MaxSteps)
	}
	if c.Chat.RequestTimeout <= 0 {
		return fmt.Errorf("DEEPSEARCH_CHAT_REQUEST_TIMEOUT must be positive, got %s", c.Chat.RequestTimeout)
	}
	// The server must never cut off a stream that is still within its budget.
	if c.Server.WriteTimeout <= c.Chat.RequestTimeout {
		return fmt.Errorf("DEEPSEARCH_SERVER_WRITE_TIMEOUT (%s) must exceed DEEPSEARCH_CHAT_REQUEST_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Chat.RequestTimeout)
	}

	if c.Gemini.MaxTokens < 1 {
		return fmt.Errorf("DEEPSEARCH_GEMINI_MAX_TOKENS must be >= 1, got %d", c.Gemini.MaxTokens)
	}
	if c.Search.Results < 1 {
		return fmt.Errorf("DEEPSEARCH_SEARCH_RESULTS must be >= 1, got %d", c.Search.Results)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("DEEPSEARCH_SEARCH_TIMEOUT must be positive, got %s", c.Search.Timeout)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("DEEPSEARCH_LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("DEEPSEARCH_LOG_FORMAT must be \"json\" or \"text\", got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Location resolves the quota day's timezone. Load has already validated it.
func (c *QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
