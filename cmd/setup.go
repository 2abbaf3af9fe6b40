package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/store"
)

// Setup writes a starter config file and prepares the configured store
// backend.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.writePlain("✓ Created %s\n", configPath)

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.config = config

	// The sqlite backend creates its schema on open; doing it here surfaces
	// path problems at setup time instead of on first use.
	if config.Store.Backend == "sqlite" {
		s, err := store.NewSQLiteStore(config.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to prepare sqlite store: %w", err)
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to close sqlite store: %w", err)
		}
		r.writePlain("✓ Prepared sqlite store at %s\n", config.Store.Path)
	}

	r.writePlain("\nNext steps:\n")
	r.writePlain("  1. Fill in your Spotify client_id and client_secret in %s\n", configPath)
	r.writePlain("  2. Run: spori auth --user you@example.com\n")
	r.writePlain("  3. Run: spori run --user you@example.com\n")

	return nil
}
