package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/logger"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Authentication modes
const (
	AuthLocal    = "local"    // email match only
	AuthPassword = "password" // email match plus bcrypt password check
)

type Config struct {
	TelegramToken string
	AuthMode      string
	DemoLesion    bool
	Storage       StorageConfig
	DB            DBConfig
	Redis         RedisConfig
	Delays        DelayConfig
	Logger        LoggerConfig
}

type StorageConfig struct {
	Backend   string
	Namespace string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration // 0 keeps records forever
}

// DelayConfig holds the simulated latencies of the UI layer
type DelayConfig struct {
	Login      time.Duration
	BLEScan    time.Duration
	BLEConnect time.Duration
	StreamTick time.Duration
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthMode:      strings.ToLower(getEnvOrDefault("AUTH_MODE", AuthLocal)),
		DemoLesion:    getEnvOrDefault("DEMO_LESION", "true") == "true",
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", BackendMemory)),
			Namespace: getEnvOrDefault("STORAGE_NAMESPACE", "tacticmap-auth"),
		},
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "tacticmap"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Logger: LoggerConfig{
			Level:      logger.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.Redis.TTL, err = getDurationOrDefault("REDIS_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.Delays.Login, err = getDurationOrDefault("LOGIN_DELAY", 600*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Delays.BLEScan, err = getDurationOrDefault("BLE_SCAN_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Delays.BLEConnect, err = getDurationOrDefault("BLE_CONNECT_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Delays.StreamTick, err = getDurationOrDefault("STREAM_TICK", time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later at startup
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.AuthMode {
	case AuthLocal, AuthPassword:
	default:
		problems = append(problems, fmt.Sprintf("unknown AUTH_MODE %q", c.AuthMode))
	}
	if c.Storage.Namespace == "" {
		problems = append(problems, "STORAGE_NAMESPACE must not be empty")
	}
	if c.Delays.Login < 0 || c.Delays.BLEScan < 0 || c.Delays.BLEConnect < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if c.Delays.StreamTick <= 0 {
		problems = append(problems, "STREAM_TICK must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireBotToken is checked only by the bot binary
func (c *Config) RequireBotToken() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}
