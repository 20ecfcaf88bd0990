package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (INVENTRAK_ prefix), flags, a .env file or YAML
// config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"API server listen address"`

	// DatabaseURL selects PostgreSQL for the catalog and sales. Empty runs
	// on the built-in demo catalog and an in-memory sales log.
	DatabaseURL string `usage:"PostgreSQL connection URL (INVENTRAK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	DBMaxConns  int32  `default:"10" usage:"Maximum PostgreSQL connections" flag:"db-max-conns"`

	// LocalDB is the SQLite file for accounts and signed-in sessions.
	// Empty keeps them in memory.
	LocalDB string `default:"" usage:"SQLite path for accounts and signed-in sessions" flag:"local-db"`

	// RedisURL enables cart snapshots so sessions survive restarts.
	RedisURL    string        `default:"" usage:"Redis URL for cart snapshots" flag:"redis-url"`
	SnapshotTTL time.Duration `default:"24h" usage:"Lifetime of a cart snapshot" flag:"snapshot-ttl"`
	SessionIdle time.Duration `default:"2h" usage:"Evict carts idle for this long" flag:"session-idle"`

	Kafka     KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// KafkaConfig enables publishing completed sales.
type KafkaConfig struct {
	Brokers []string `default:"" usage:"Kafka brokers; empty disables sale events"`
	Topic   string   `default:"pos.sales" usage:"Topic for sale events"`
}

// AuthConfig controls sign-in.
type AuthConfig struct {
	Pepper  string        `usage:"HMAC pepper for password and token hashes (INVENTRAK_AUTH_PEPPER)" flag:"auth-pepper"`
	Latency time.Duration `default:"0s" usage:"Artificial delay applied to login and signup" flag:"auth-latency"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads a .env file when present, then environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:  "INVENTRAK",
		SkipFlags:  true,
		AllowEmpty: true,
		Files:      []string{"config.yaml", "/etc/inventrak/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Auth.Pepper == "":
		return errors.New("auth pepper is required: set INVENTRAK_AUTH_PEPPER")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.New("kafka topic is required when brokers are set")
	case c.SessionIdle < 0:
		return errors.New("session idle timeout must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL,
// REDIS_URL and PORT to the application's configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	c.Kafka.Brokers = compact(c.Kafka.Brokers)
	c.CORS.Origins = compact(c.CORS.Origins)
}

func compact(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
