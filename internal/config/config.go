package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Addr             string
	Env              string
	LogLevel         string
	DefaultBoardSize int
	MinBoardSize     int
	MaxBoardSize     int
	RedisURL         string
	RedisPassword    string
	RedisDB          int
	StorePrefix      string
	SSEHeartbeat     time.Duration
	SubscriberBuffer int
	ShutdownTimeout  time.Duration
}

// Load reads the environment. Call godotenv.Load beforehand to honour a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:             GetEnv("ADDR", ":8080"),
		Env:              GetEnv("APP_ENV", "development"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		DefaultBoardSize: GetEnvAsInt("DEFAULT_BOARD_SIZE", 3),
		MinBoardSize:     GetEnvAsInt("MIN_BOARD_SIZE", 1),
		MaxBoardSize:     GetEnvAsInt("MAX_BOARD_SIZE", 9),
		RedisURL:         GetEnv("REDIS_URL", ""),
		RedisPassword:    GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          GetEnvAsInt("REDIS_DB", 0),
		StorePrefix:      GetEnv("STORE_PREFIX", "ttt"),
		SSEHeartbeat:     GetEnvAsDuration("SSE_HEARTBEAT", 15*time.Second),
		SubscriberBuffer: GetEnvAsInt("SUBSCRIBER_BUFFER", 1),
		ShutdownTimeout:  GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every bad field at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Addr == "" {
		errs = multierror.Append(errs, fmt.Errorf("ADDR must not be empty"))
	}
	if c.Env != "development" && c.Env != "production" {
		errs = multierror.Append(errs, fmt.Errorf("APP_ENV must be development or production, got %q", c.Env))
	}
	if c.MinBoardSize < 1 {
		errs = multierror.Append(errs, fmt.Errorf("MIN_BOARD_SIZE must be at least 1, got %d", c.MinBoardSize))
	}
	if c.MaxBoardSize < c.MinBoardSize {
		errs = multierror.Append(errs, fmt.Errorf("MAX_BOARD_SIZE %d is below MIN_BOARD_SIZE %d", c.MaxBoardSize, c.MinBoardSize))
	}
	if c.DefaultBoardSize < c.MinBoardSize || c.DefaultBoardSize > c.MaxBoardSize {
		errs = multierror.Append(errs, fmt.Errorf("DEFAULT_BOARD_SIZE %d outside [%d,%d]", c.DefaultBoardSize, c.MinBoardSize, c.MaxBoardSize))
	}
	if c.RedisDB < 0 {
		errs = multierror.Append(errs, fmt.Errorf("REDIS_DB must not be negative"))
	}
	if c.SSEHeartbeat <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("SSE_HEARTBEAT must be positive"))
	}
	if c.SubscriberBuffer < 1 {
		errs = multierror.Append(errs, fmt.Errorf("SUBSCRIBER_BUFFER must be at least 1"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errs.ErrorOrNil()
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsDuration accepts Go durations ("15s") or bare seconds ("15").
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
	return defaultValue
}
