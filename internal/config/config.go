// Package config loads service configuration from PLANSYNC_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvPrefix is the prefix for all configuration environment variables.
const EnvPrefix = "PLANSYNC"

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const (
	defaultPlannerTimeout   = 90 * time.Second
	defaultProviderTimeout  = 30 * time.Second
	defaultSweepIntervalMin = 10
)

// Config holds the configuration for the plan sync service.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8099"`
	DataDir  string `envconfig:"DATA_DIR" default:"/data"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite3"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`

	// Microsoft Graph
	GraphBaseURL      string   `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com/v1.0"`
	GraphTenant       string   `envconfig:"GRAPH_TENANT" default:"common"`
	GraphClientID     string   `envconfig:"GRAPH_CLIENT_ID" default:""`
	GraphClientSecret string   `envconfig:"GRAPH_CLIENT_SECRET" default:""`
	GraphRedirectURL  string   `envconfig:"GRAPH_REDIRECT_URL" default:"http://localhost:8099/api/calendar/callback"`
	GraphScopes       []string `envconfig:"GRAPH_SCOPES" default:"offline_access,User.Read,Calendars.ReadWrite"`

	// Planning model (OpenAI-compatible chat completions)
	PlannerBaseURL string        `envconfig:"PLANNER_BASE_URL" default:"https://api.openai.com/v1"`
	PlannerModel   string        `envconfig:"PLANNER_MODEL" default:"gpt-4o-mini"`
	PlannerAPIKey  string        `envconfig:"PLANNER_API_KEY" default:""`
	PlannerTimeout time.Duration `envconfig:"PLANNER_TIMEOUT" default:"90s"`

	ProviderTimeout         time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	RefreshSweepIntervalMin int           `envconfig:"REFRESH_SWEEP_INTERVAL_MIN" default:"10"`
}

// ResolveDefaults validates the driver selection and repairs non-positive durations.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "", "sqlite", DriverSQLite:
		c.DBDriver = DriverSQLite
	case "postgres", DriverPostgres:
		c.DBDriver = DriverPostgres
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER %s requires POSTGRES_DSN", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	if c.PlannerTimeout <= 0 {
		c.PlannerTimeout = defaultPlannerTimeout
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = defaultProviderTimeout
	}
	if c.RefreshSweepIntervalMin <= 0 {
		c.RefreshSweepIntervalMin = defaultSweepIntervalMin
	}

	return nil
}

// SweepInterval returns the refresh sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.RefreshSweepIntervalMin) * time.Minute
}

// New creates a new Config by parsing environment variables.
// Example: PLANSYNC_HTTP_ADDR, PLANSYNC_GRAPH_CLIENT_ID
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("http_addr", cfg.HTTPAddr).
		Str("db_driver", cfg.DBDriver).
		Str("data_dir", cfg.DataDir).
		Str("graph_base_url", cfg.GraphBaseURL).
		Bool("graph_client_configured", cfg.GraphClientID != "").
		Str("planner_base_url", cfg.PlannerBaseURL).
		Str("planner_model", cfg.PlannerModel).
		Bool("planner_key_present", cfg.PlannerAPIKey != "").
		Int("refresh_sweep_interval_min", cfg.RefreshSweepIntervalMin).
		Msg("configuration loaded")

	return &cfg, nil
}
