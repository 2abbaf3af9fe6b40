package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/tasks"
)

// Playlists lists the user's playlists, optionally grouped by owner.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}

	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	catalog, err := r.userCatalog(ctx, userID)
	if err != nil {
		return err
	}

	locator := tasks.NewLocator(catalog)

	if cmd.Bool("by-owner") {
		groups, err := locator.PlaylistsByOwner(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if cmd.Bool("json") {
			return r.writeJSON(groups, cmd.Bool("pretty"))
		}

		for _, group := range groups {
			r.writePlain("%s\n", group.Owner)
			for _, playlist := range group.Playlists {
				r.writePlain("  %s (%d tracks)\n    ID: %s\n", playlist.Name, playlist.TrackCount, playlist.ID)
			}
			r.writePlain("\n")
		}
		return nil
	}

	playlists, err := locator.UserPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, playlist := range playlists {
		r.writePlain("%d. %s\n", i+1, playlist.Name)
		r.writePlain("   Owner: %s\n", playlist.Owner)
		r.writePlain("   ID: %s\n", playlist.ID)
		r.writePlain("   Tracks: %d\n\n", playlist.TrackCount)
	}

	return nil
}
