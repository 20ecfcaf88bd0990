package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "PORT", "INVENTRAK_ADDR", "INVENTRAK_AUTH_PEPPER"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("INVENTRAK_AUTH_PEPPER", "pepper")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, "pepper", cfg.Auth.Pepper)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "pos.sales", cfg.Kafka.Topic)
	assert.Equal(t, 24*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdle)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("INVENTRAK_AUTH_PEPPER", "pepper")
	t.Setenv("DATABASE_URL", "postgres://pos:pos@db:5432/pos")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://pos:pos@db:5432/pos", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_ExplicitAddrWinsOverPort(t *testing.T) {
	isolate(t)
	t.Setenv("INVENTRAK_AUTH_PEPPER", "pepper")
	t.Setenv("INVENTRAK_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INVENTRAK_AUTH_PEPPER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("INVENTRAK_AUTH_PEPPER") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.Pepper)
}

func TestLoadConfig_MissingPepper(t *testing.T) {
	isolate(t)

	_, err := LoadConfig()
	require.ErrorContains(t, err, "auth pepper is required")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Auth:      AuthConfig{Pepper: "p"},
			RateLimit: RateLimitConfig{Max: 10, Window: time.Minute},
			Kafka:     KafkaConfig{Topic: "pos.sales"},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no pepper", mutate: func(c *Config) { c.Auth.Pepper = "" }, wantErr: "pepper"},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.Max = 0 }, wantErr: "rate limit"},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "rate limit"},
		{
			name: "brokers without topic",
			mutate: func(c *Config) {
				c.Kafka.Brokers = []string{"kafka:9092"}
				c.Kafka.Topic = ""
			},
			wantErr: "kafka topic",
		},
		{name: "negative idle", mutate: func(c *Config) { c.SessionIdle = -time.Second }, wantErr: "idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCompact(t *testing.T) {
	assert.Empty(t, compact([]string{""}))
	assert.Equal(t, []string{"a", "b"}, compact([]string{"a", "", "b"}))
}
