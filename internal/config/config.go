package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ukane-philemon/gradebook/internal/db"
)

// Store backends.
const (
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

const defaultPort = "3000"

// Config holds the server configuration.
type Config struct {
	Port string

	StoreBackend string
	DataFile     string
	SQLitePath   string
	MongoURL     string
	MongoDB      string
	SeedFile     string

	PassThreshold float64
	// ScoreArity is 0 for any number of scores, or the exact number required.
	ScoreArity  int
	RankingSize int

	RateLimitPerMinute int

	NATSURL     string
	NATSSubject string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file at envFile and then the environment.
// Variables already set in the environment win over the .env file. devMode
// switches defaults to a local, text-logged setup.
func Load(envFile string, devMode bool) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Load error: %w", err)
		}
	}

	mongoDB := "gradebook"
	logFormat := "json"
	if devMode {
		mongoDB = "dev_gradebook"
		logFormat = "text"
	}

	cfg := &Config{
		Port:               getEnv("PORT", defaultPort),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		DataFile:           getEnv("DATA_FILE", "./data/students.json"),
		SQLitePath:         getEnv("SQLITE_PATH", "./data/students.db"),
		MongoURL:           getEnv("MONGO_URL", ""),
		MongoDB:            getEnv("MONGO_DB", mongoDB),
		SeedFile:           getEnv("SEED_FILE", ""),
		PassThreshold:      getFloat64Env("PASS_THRESHOLD", db.DefaultPassThreshold),
		ScoreArity:         getIntEnv("SCORE_ARITY", 0),
		RankingSize:        getIntEnv("RANKING_SIZE", 3),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 600),
		NATSURL:            getEnv("NATS_URL", ""),
		NATSSubject:        getEnv("NATS_SUBJECT", "students.events"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", logFormat)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a number, got %q", c.Port)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			return errors.New("DATA_FILE is required for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendMongoDB:
		if c.MongoURL == "" {
			return errors.New("MONGO_URL is required for the mongodb backend")
		}
		if c.MongoDB == "" {
			return errors.New("MONGO_DB is required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.PassThreshold <= 0 {
		return fmt.Errorf("PASS_THRESHOLD must be positive, got %v", c.PassThreshold)
	}

	if c.ScoreArity < 0 {
		return fmt.Errorf("SCORE_ARITY must not be negative, got %d", c.ScoreArity)
	}

	if c.RankingSize < 1 {
		return fmt.Errorf("RANKING_SIZE must be at least 1, got %d", c.RankingSize)
	}

	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat64Env(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
