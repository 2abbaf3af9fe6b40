package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/tasks"
)

// Run executes one reconciliation for the given user: drain the albums
// playlist and refill it from the source playlist's albums.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}

	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	sourceID, err := resolveSourceFlag(cmd.String("playlist"))
	if err != nil {
		return err
	}

	catalog, err := r.userCatalog(ctx, userID)
	if err != nil {
		return err
	}

	r.logger.Infof("starting reconciliation for %v", userID)

	engine := tasks.NewEngine(catalog, r.logger)
	result, err := engine.Run(ctx, tasks.Options{SourceID: sourceID})

	var ambiguous *tasks.AmbiguousSourceError
	if errors.As(err, &ambiguous) {
		r.writePlainln("⚠ Several playlists are named %q:", ambiguous.Name)
		for i, candidate := range ambiguous.Candidates {
			r.writePlain("%d. %s (owner: %s, %d tracks)\n   ID: %s\n",
				i+1, candidate.Name, candidate.Owner, candidate.TrackCount, candidate.ID)
		}
		r.writePlain("\nRerun with --playlist <id or link> to pick one.\n")
		return fmt.Errorf("%w", tasks.ErrSourceAmbiguous)
	}
	if errors.Is(err, tasks.ErrSourceNotFound) {
		return fmt.Errorf("%w: pass --playlist <id or link> to pick a source by hand", err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Reconciliation finished")
	r.writePlain("  Playlist: %s\n", result.PlaylistName)
	r.writePlain("  Albums:   %d\n", result.Albums)
	r.writePlain("  Tracks:   %d\n", result.TracksAdded)

	return nil
}

// resolveSourceFlag turns the --playlist flag into a playlist id. Accepts a
// bare id, a web URL or a spotify: URI; empty means "find by name".
func resolveSourceFlag(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if strings.Contains(value, "/") || strings.Contains(value, ":") {
		return tasks.ParsePlaylistAddress(value)
	}
	return value, nil
}
