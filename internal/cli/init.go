package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize taskpool in the current directory",
	Long:  "Creates a .taskpool/ directory with default config and a SQLite database.",
	RunE:  runInit,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and sync action types from config",
	RunE:  runMigrate,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(config.DefaultDir); err == nil {
		return fmt.Errorf("taskpool already initialized in this directory (%s/ exists)", config.DefaultDir)
	}

	cfgPath := config.DefaultPath()
	cfg := config.DefaultConfig()
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := migrate(cmd, cfg); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	fmt.Printf("Initialized taskpool in %s/\n", config.DefaultDir)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to add users, roles and action types\n", cfgPath)
	fmt.Println("  2. Run: taskpool task create \"Return call from client\" --as alice")
	fmt.Println("  3. Run: taskpool board --as alice")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := migrate(cmd, cfg); err != nil {
		return err
	}
	fmt.Printf("Database up to date (%s), %d action types synced\n", cfg.Database.Driver, len(cfg.ActionTypes))
	return nil
}

// migrate opens the store, which applies pending migrations, and upserts the
// configured action types.
func migrate(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := newEngine(cfg, s, nil)
	if err != nil {
		return err
	}
	return e.SyncActionTypes(ctx, actionTypes(cfg))
}
