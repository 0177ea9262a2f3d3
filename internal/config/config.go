package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvDBDriver = "TASKPOOL_DB_DRIVER"
	EnvDBDSN    = "TASKPOOL_DB_DSN"
	EnvTenantID = "TASKPOOL_TENANT_ID"
	EnvHTTPAddr = "TASKPOOL_HTTP_ADDR"
	EnvLogLevel = "LOG_LEVEL"
)

// Config is the root configuration for a taskpool workspace.
type Config struct {
	Version       int           `yaml:"version"`
	TenantID      string        `yaml:"tenant_id"`
	LogLevel      string        `yaml:"log_level,omitempty"`
	Database      Database      `yaml:"database"`
	HTTP          HTTP          `yaml:"http"`
	Dispatch      Dispatch      `yaml:"dispatch"`
	StatsCacheTTL time.Duration `yaml:"stats_cache_ttl,omitempty"` // 0 disables the cache
	ActionTypes   []ActionType  `yaml:"action_types"`
	Policy        Policy        `yaml:"policy"`
}

// Database selects the store driver.
type Database struct {
	Driver string `yaml:"driver"` // "sqlite" or "pgx"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection URL for pgx
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Dispatch tunes the background side-effect queue.
type Dispatch struct {
	Workers        int           `yaml:"workers"`
	Buffer         int           `yaml:"buffer"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// ActionType is a routing category that completed tasks can be routed into.
type ActionType struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Policy holds role defaults and per-user overrides for permission checks.
type Policy struct {
	DefaultRole string              `yaml:"default_role,omitempty"`
	Roles       map[string][]string `yaml:"roles"`
	Users       map[string]string   `yaml:"users,omitempty"`
	Overrides   []Override          `yaml:"overrides,omitempty"`
}

// Override grants or denies one action to one user regardless of role.
type Override struct {
	User   string `yaml:"user"`
	Action string `yaml:"action"`
	Allow  bool   `yaml:"allow"`
}

// DefaultDir is the workspace directory created by `taskpool init`.
const DefaultDir = ".taskpool"

// DefaultPath returns the config path inside the workspace directory.
func DefaultPath() string {
	return filepath.Join(DefaultDir, "config.yaml")
}

// Load reads and parses the config file at the given path, then applies
// environment overrides (including a .env file next to the working directory).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	LoadEnv()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Variables that are
// already set win. A missing file is not an error.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config backed by a local SQLite file.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		TenantID: "default",
		LogLevel: "info",
		Database: Database{
			Driver: "sqlite",
			DSN:    filepath.Join(DefaultDir, "taskpool.db"),
		},
		HTTP: HTTP{Addr: ":8080"},
		Dispatch: Dispatch{
			Workers:        2,
			Buffer:         100,
			MaxRetries:     3,
			RetryDelay:     time.Second,
			AttemptTimeout: 10 * time.Second,
		},
		ActionTypes: []ActionType{
			{ID: "callback", Label: "Call back"},
			{ID: "follow_up", Label: "Follow up"},
			{ID: "review", Label: "Review"},
			{ID: "filing", Label: "Filing"},
		},
		Policy: Policy{
			DefaultRole: "staff",
			Roles: map[string][]string{
				"admin":   {"*"},
				"manager": {"assign", "complete", "cancel", "review_suggestions", "create_task", "manage_steps"},
				"staff":   {"complete", "create_task", "manage_steps"},
			},
			Users: map[string]string{},
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvTenantID); v != "" {
		c.TenantID = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("tenant_id is required")
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("database.driver must be 'sqlite' or 'pgx', got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Dispatch.Workers < 0 || c.Dispatch.Buffer < 0 || c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch: workers, buffer and max_retries must not be negative")
	}
	if c.StatsCacheTTL < 0 {
		return fmt.Errorf("stats_cache_ttl must not be negative")
	}

	seen := make(map[string]bool, len(c.ActionTypes))
	for i, at := range c.ActionTypes {
		if at.ID == "" {
			return fmt.Errorf("action_types[%d]: id is required", i)
		}
		if seen[at.ID] {
			return fmt.Errorf("action_types: duplicate id %q", at.ID)
		}
		seen[at.ID] = true
	}

	for i, o := range c.Policy.Overrides {
		if o.User == "" || o.Action == "" {
			return fmt.Errorf("policy.overrides[%d]: user and action are required", i)
		}
	}
	for user, role := range c.Policy.Users {
		if _, ok := c.Policy.Roles[role]; !ok {
			return fmt.Errorf("policy.users[%q]: unknown role %q", user, role)
		}
	}
	return nil
}
