package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/stockeasy/stockeasy/internal/shared"
)

// Data drivers accepted in DATA_DRIVER.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	SupabaseURL     string        `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey string        `envconfig:"SUPABASE_ANON_KEY" required:"true"`
	BackendTimeout  time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	DataDriver      string        `envconfig:"DATA_DRIVER" default:"rest"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	ActivityLogLimit int `envconfig:"ACTIVITY_LOG_LIMIT" default:"50"`

	DevUserEmail    string `envconfig:"DEV_USER_EMAIL" default:"admin@stockeasy.local"`
	DevUserPassword string `envconfig:"DEV_USER_PASSWORD"`
}

// LoadConfig reads configuration from environment variables. Every failure wraps
// shared.ErrConfig.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/")
	c.DataDriver = strings.ToLower(strings.TrimSpace(c.DataDriver))
	switch {
	case c.SupabaseURL == "":
		return fmt.Errorf("%w: SUPABASE_URL must be provided", shared.ErrConfig)
	case strings.TrimSpace(c.SupabaseAnonKey) == "":
		return fmt.Errorf("%w: SUPABASE_ANON_KEY must be provided", shared.ErrConfig)
	case c.SessionSecret == "":
		return fmt.Errorf("%w: session secret must be provided", shared.ErrConfig)
	case c.CSRFSecret == "":
		return fmt.Errorf("%w: csrf secret must be provided", shared.ErrConfig)
	}
	switch c.DataDriver {
	case DriverREST:
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("%w: the memory driver is for development only", shared.ErrConfig)
		}
	case DriverPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("%w: PG_DSN is required for the postgres driver", shared.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DATA_DRIVER %q", shared.ErrConfig, c.DataDriver)
	}
	if c.ActivityLogLimit <= 0 {
		return fmt.Errorf("%w: ACTIVITY_LOG_LIMIT must be positive", shared.ErrConfig)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
