package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/config"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/policy"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// EnvUser names the acting user when --as is not given.
const EnvUser = "TASKPOOL_USER"

// loadConfig reads the workspace config, returning a hint if it is missing.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("taskpool not initialized (no %s). Run: taskpool init", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" {
		logging.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// openStore opens the configured database, applying migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	return store.Open(ctx, store.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
}

// newEngine builds an engine for cfg over s. A nil dispatcher runs side
// effects inline, which suits one-shot commands.
func newEngine(cfg *config.Config, s *store.Store, d dispatch.Dispatcher) (*pool.Engine, error) {
	return pool.New(pool.Options{
		Store:         s,
		TenantID:      cfg.TenantID,
		Policy:        policy.New(cfg.Policy),
		Dispatcher:    d,
		StatsCacheTTL: cfg.StatsCacheTTL,
	})
}

// mustEngine loads config, opens the store and returns an engine. The caller
// closes the store.
func mustEngine(ctx context.Context) (*pool.Engine, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	e, err := newEngine(cfg, s, nil)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return e, s, nil
}

// actionTypes converts configured routing categories to store rows.
func actionTypes(cfg *config.Config) []store.ActionType {
	out := make([]store.ActionType, len(cfg.ActionTypes))
	for i, at := range cfg.ActionTypes {
		out[i] = store.ActionType{ID: at.ID, Label: at.Label, IsActive: true}
	}
	return out
}

// currentUser returns the acting identity from --as or $TASKPOOL_USER.
func currentUser() (string, error) {
	user := strings.TrimSpace(flagAs)
	if user == "" {
		user = strings.TrimSpace(os.Getenv(EnvUser))
	}
	if user == "" {
		return "", fmt.Errorf("no acting user. Pass --as <user> or set %s", EnvUser)
	}
	return user, nil
}

// shortIDLen is the width of printed ids. Ids are UUIDv7, whose leading
// characters encode the creation millisecond; the tail is random.
const shortIDLen = 8

// shortID trims UUIDs for tabular output, keeping the random tail.
func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[len(id)-shortIDLen:]
	}
	return id
}

// matchID reports whether arg names id, either in full or as the tail
// printed by shortID.
func matchID(id, arg string) bool {
	return id == arg || strings.HasSuffix(id, arg)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
