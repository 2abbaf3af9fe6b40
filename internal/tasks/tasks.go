// Package tasks implements the playlist reconciliation run: drain the
// destination playlist, expand the source playlist's tracks into whole
// albums, and repopulate the destination with every album track.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/esolitos/spori.fi/internal/services"
	"github.com/esolitos/spori.fi/internal/shared"
)

const (
	// SourceName is the playlist the run reads from when no override is given.
	SourceName = "Discover Weekly"
	// DestinationName is the playlist the run rebuilds.
	DestinationName = "Discover Weekly Albums"
	// DestinationDescription is set once when the destination is created.
	DestinationDescription = `Contains the "Discovery Weekly", but with albums`
)

var (
	// ErrSourceNotFound means no playlist in the user's library carries the
	// source name and no override was supplied.
	ErrSourceNotFound = fmt.Errorf("source playlist not found")
	// ErrSourceAmbiguous means several playlists carry the source name and
	// the caller must pick one explicitly.
	ErrSourceAmbiguous = fmt.Errorf("source playlist name is ambiguous")
	// ErrDrainStalled means the destination's track count stopped shrinking
	// while removals were still being issued.
	ErrDrainStalled = fmt.Errorf("destination playlist drain stalled")
)

// AmbiguousSourceError carries the candidate playlists so callers can offer
// a manual selection. It unwraps to [ErrSourceAmbiguous].
type AmbiguousSourceError struct {
	Name       string
	Candidates []services.Playlist
}

func (e *AmbiguousSourceError) Error() string {
	return fmt.Sprintf("%v: %d playlists named %q", ErrSourceAmbiguous, len(e.Candidates), e.Name)
}

func (e *AmbiguousSourceError) Unwrap() error {
	return ErrSourceAmbiguous
}

// Progress reports one completed stage of a run.
type Progress struct {
	Stage  string
	Detail string
}

// RunResult summarizes a finished run.
type RunResult struct {
	PlaylistID   string
	PlaylistName string
	Albums       int
	TracksAdded  int
}

// Options tune a single run.
type Options struct {
	// SourceID skips the name scan and reads from this playlist directly.
	SourceID string
	// Progress, when non-nil, receives stage updates. Sends never block; a
	// slow receiver only misses updates.
	Progress chan<- Progress
}

// Engine performs reconciliation runs against one user's library.
type Engine struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewEngine creates an Engine reading and writing through catalog.
func NewEngine(catalog services.Catalog, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{catalog: catalog, logger: logger}
}

// Run executes one full reconciliation: resolve the destination (creating it
// if absent), drain it, resolve the source, expand its tracks into whole
// albums, and repopulate the destination. The destination is drained before
// the source is read, so a failed source resolution leaves it empty rather
// than stale.
func (e *Engine) Run(ctx context.Context, opts Options) (*RunResult, error) {
	e.logger.Info("starting run", "id", shared.GenerateID())
	locator := NewLocator(e.catalog)

	destination, err := e.resolveDestination(ctx, locator)
	if err != nil {
		return nil, err
	}
	e.report(opts, "destination", destination.Name)

	if err := e.drain(ctx, destination.ID); err != nil {
		return nil, err
	}
	e.report(opts, "drained", destination.Name)

	source, err := e.resolveSource(ctx, locator, opts.SourceID)
	if err != nil {
		return nil, err
	}
	e.report(opts, "source", source.Name)

	albumIDs, err := e.expandAlbums(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	e.report(opts, "albums", fmt.Sprintf("%d", len(albumIDs)))

	trackIDs, err := e.collectAlbumTracks(ctx, albumIDs)
	if err != nil {
		return nil, err
	}

	if err := e.populate(ctx, destination.ID, trackIDs); err != nil {
		return nil, err
	}
	e.report(opts, "populated", fmt.Sprintf("%d", len(trackIDs)))

	return &RunResult{
		PlaylistID:   destination.ID,
		PlaylistName: destination.Name,
		Albums:       len(albumIDs),
		TracksAdded:  len(trackIDs),
	}, nil
}

// resolveDestination finds the destination playlist, creating it as a
// private playlist when it does not exist yet. When several playlists share
// the name the first in listing order wins; the others are the user's to
// clean up.
func (e *Engine) resolveDestination(ctx context.Context, locator *Locator) (*services.Playlist, error) {
	match, err := locator.FindByName(ctx, DestinationName)
	if err != nil {
		return nil, err
	}

	switch match.Kind {
	case MatchSingle:
		playlist := match.Single()
		return &playlist, nil
	case MatchMultiple:
		e.logger.Warn("multiple destination playlists, using first",
			"name", DestinationName, "count", len(match.Playlists))
		playlist := match.Playlists[0]
		return &playlist, nil
	}

	user, err := e.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Info("creating destination playlist", "name", DestinationName)
	return e.catalog.CreatePlaylist(ctx, user.ID, DestinationName, DestinationDescription, false)
}

// drain removes every track from the playlist, one page at a time. The
// upstream total must shrink between iterations; a non-shrinking total means
// removals are not landing and the loop aborts instead of spinning.
func (e *Engine) drain(ctx context.Context, playlistID string) error {
	lastTotal := -1
	for {
		page, total, err := e.catalog.PlaylistTracksPage(ctx, playlistID, services.RemoveTracksLimit)
		if err != nil {
			return err
		}
		if total == 0 || len(page) == 0 {
			return nil
		}
		if lastTotal >= 0 && total >= lastTotal {
			return fmt.Errorf("%w: %d tracks remain after removal", ErrDrainStalled, total)
		}
		lastTotal = total

		trackIDs := make([]string, 0, len(page))
		for _, track := range page {
			trackIDs = append(trackIDs, track.TrackID)
		}
		if err := e.catalog.RemoveTracks(ctx, playlistID, trackIDs); err != nil {
			return err
		}
	}
}

// resolveSource picks the playlist to read from: the override when given,
// otherwise the single playlist named [SourceName]. Ambiguity is surfaced,
// never resolved by guessing.
func (e *Engine) resolveSource(ctx context.Context, locator *Locator, sourceID string) (*services.Playlist, error) {
	if sourceID != "" {
		return locator.Resolve(ctx, sourceID)
	}

	match, err := locator.FindByName(ctx, SourceName)
	if err != nil {
		return nil, err
	}

	switch match.Kind {
	case MatchSingle:
		playlist := match.Single()
		return &playlist, nil
	case MatchMultiple:
		return nil, &AmbiguousSourceError{Name: SourceName, Candidates: match.Playlists}
	default:
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, SourceName)
	}
}

// expandAlbums maps the source playlist's tracks to their album ids,
// preserving playlist order. Duplicates are kept; tracks without an album
// (local files) are skipped.
func (e *Engine) expandAlbums(ctx context.Context, playlistID string) ([]string, error) {
	tracks, err := e.catalog.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	albumIDs := make([]string, 0, len(tracks))
	for _, track := range tracks {
		if track.AlbumID == "" {
			continue
		}
		albumIDs = append(albumIDs, track.AlbumID)
	}
	return albumIDs, nil
}

// collectAlbumTracks fans out over the albums in order and concatenates each
// album's full track listing.
func (e *Engine) collectAlbumTracks(ctx context.Context, albumIDs []string) ([]string, error) {
	var trackIDs []string
	for _, albumID := range albumIDs {
		tracks, err := e.catalog.AlbumTracks(ctx, albumID)
		if err != nil {
			return nil, err
		}
		trackIDs = append(trackIDs, tracks...)
	}
	return trackIDs, nil
}

// populate appends the tracks to the playlist in chunks the write endpoint
// accepts.
func (e *Engine) populate(ctx context.Context, playlistID string, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += services.AddTracksLimit {
		end := min(start+services.AddTracksLimit, len(trackIDs))
		if err := e.catalog.AddTracks(ctx, playlistID, trackIDs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) report(opts Options, stage, detail string) {
	e.logger.Debug("run stage", "stage", stage, "detail", detail)
	if opts.Progress == nil {
		return
	}
	select {
	case opts.Progress <- Progress{Stage: stage, Detail: detail}:
	default:
	}
}
