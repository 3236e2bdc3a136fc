package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

// Supported record store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

const devJWTSecret = "finledger-dev-secret-change-me"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Record store
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"memory"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"finledger"`
	SQLitePath    string `env:"SQLITE_DB_PATH" envDefault:"data/finledger.db"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"100ms"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"8"`

	// Dashboard summary cache
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheSize int           `env:"CACHE_SIZE" envDefault:"1024"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// JWT / Auth
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"finledger-dev-secret-change-me"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"168h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`

	// Suggestions (OpenAI-compatible chat completions)
	LLMAPIURL      string  `env:"LLM_API_URL" envDefault:"https://api.groq.com/openai/v1"`
	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"llama3-8b-8192"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.6"`

	// Ledger events
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"finledger.events"`
	// Empty gives every replica its own exclusive queue. A named queue is
	// durable and shared, so replicas using the same name compete for events.
	AMQPQueue string `env:"AMQP_QUEUE"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_DB_PATH is required for the sqlite backend")
		}
	case BackendMongo:
		if strings.TrimSpace(c.MongoURI) == "" || strings.TrimSpace(c.MongoDatabase) == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongo backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q must be one of memory, sqlite, mongo", c.StoreBackend)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range 4..31", c.BcryptCost)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1")
	}
	return nil
}

// UsesDevSecret reports whether the JWT secret is still the built-in default.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}

// EventsEnabled reports whether ledger events go over AMQP.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}
