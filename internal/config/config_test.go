package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "STORE_BACKEND", "DATA_FILE", "SQLITE_PATH", "MONGO_URL", "MONGO_DB",
	"SEED_FILE", "PASS_THRESHOLD", "SCORE_ARITY", "RANKING_SIZE",
	"RATE_LIMIT_PER_MINUTE", "NATS_URL", "NATS_SUBJECT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every config key for the duration of the test. Keys must be
// absent rather than empty for godotenv to set them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendFile, cfg.StoreBackend)
	assert.Equal(t, "./data/students.json", cfg.DataFile)
	assert.Equal(t, "gradebook", cfg.MongoDB)
	assert.Equal(t, 7.0, cfg.PassThreshold)
	assert.Equal(t, 0, cfg.ScoreArity)
	assert.Equal(t, 3, cfg.RankingSize)
	assert.Equal(t, 600, cfg.RateLimitPerMinute)
	assert.Equal(t, "students.events", cfg.NATSSubject)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadDevMode(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", true)
	require.NoError(t, err)
	assert.Equal(t, "dev_gradebook", cfg.MongoDB)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/students.db")
	t.Setenv("PASS_THRESHOLD", "6.5")
	t.Setenv("SCORE_ARITY", "3")
	t.Setenv("RANKING_SIZE", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/tmp/students.db", cfg.SQLitePath)
	assert.Equal(t, 6.5, cfg.PassThreshold)
	assert.Equal(t, 3, cfg.ScoreArity)
	assert.Equal(t, 5, cfg.RankingSize)
	assert.Equal(t, 0, cfg.RateLimitPerMinute)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=9090\nSTORE_BACKEND=memory\n"), 0o600))

	cfg, err := Load(envFile, false)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"), false)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          "3000",
			StoreBackend:  BackendFile,
			DataFile:      "students.json",
			PassThreshold: 7,
			RankingSize:   3,
			LogFormat:     "json",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty port", mutate: func(c *Config) { c.Port = "" }},
		{name: "non numeric port", mutate: func(c *Config) { c.Port = "http" }},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "redis" }},
		{name: "file without path", mutate: func(c *Config) { c.DataFile = "" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.StoreBackend = BackendSQLite }},
		{name: "mongodb without url", mutate: func(c *Config) { c.StoreBackend = BackendMongoDB; c.MongoDB = "gradebook" }},
		{name: "mongodb without db", mutate: func(c *Config) { c.StoreBackend = BackendMongoDB; c.MongoURL = "mongodb://localhost" }},
		{name: "zero threshold", mutate: func(c *Config) { c.PassThreshold = 0 }},
		{name: "negative arity", mutate: func(c *Config) { c.ScoreArity = -1 }},
		{name: "zero ranking size", mutate: func(c *Config) { c.RankingSize = 0 }},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimitPerMinute = -1 }},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
