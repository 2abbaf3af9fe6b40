package tasks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/esolitos/spori.fi/internal/services"
	"github.com/esolitos/spori.fi/internal/shared"
)

var (
	playlistURLPattern = regexp.MustCompile(`^https?://open\.spotify\.com/playlist/(\w+)\??`)
	playlistURIPattern = regexp.MustCompile(`^spotify:playlist:(\w+)$`)
)

// ParsePlaylistAddress extracts a playlist id from a user-supplied address:
// either a web URL (https://open.spotify.com/playlist/<id>[?...]) or a URI
// (spotify:playlist:<id>). Any other shape is a user-correctable input error,
// reported as [shared.ErrBadPlaylistAddress] without any network call.
func ParsePlaylistAddress(addr string) (string, error) {
	if m := playlistURLPattern.FindStringSubmatch(addr); m != nil {
		return m[1], nil
	}
	if m := playlistURIPattern.FindStringSubmatch(addr); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrBadPlaylistAddress, addr)
}

// MatchKind tags the outcome of a find-by-name scan.
type MatchKind int

const (
	// MatchNone means no playlist carries the name.
	MatchNone MatchKind = iota
	// MatchSingle means exactly one playlist carries the name.
	MatchSingle
	// MatchMultiple means two or more playlists carry the name.
	MatchMultiple
)

// Match is the tagged result of [Locator.FindByName]. Playlists holds the
// matches in upstream listing order; for MatchSingle it has exactly one
// element.
type Match struct {
	Kind      MatchKind
	Playlists []services.Playlist
}

// Single returns the sole match. Only valid for MatchSingle.
func (m Match) Single() services.Playlist {
	return m.Playlists[0]
}

// OwnerGroup is one owner's playlists, in listing order.
type OwnerGroup struct {
	Owner     string
	Playlists []services.Playlist
}

// Locator finds playlists among a user's library. The playlist listing is
// memoized for the lifetime of one Locator, which must not outlive a single
// reconciliation run nor be shared across users.
type Locator struct {
	catalog services.Catalog

	listed []services.Playlist
	cached bool
}

// NewLocator creates a Locator reading through catalog.
func NewLocator(catalog services.Catalog) *Locator {
	return &Locator{catalog: catalog}
}

// UserPlaylists returns all playlists visible to the user, in upstream
// listing order, fetching at most once per Locator.
func (l *Locator) UserPlaylists(ctx context.Context) ([]services.Playlist, error) {
	if l.cached {
		return l.listed, nil
	}

	playlists, err := l.catalog.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	l.listed = playlists
	l.cached = true
	return playlists, nil
}

// PlaylistsByOwner groups the user's playlists by owner display name,
// preserving each group's relative insertion order and the order in which
// owners first appear.
func (l *Locator) PlaylistsByOwner(ctx context.Context) ([]OwnerGroup, error) {
	playlists, err := l.UserPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	var groups []OwnerGroup
	index := map[string]int{}
	for _, playlist := range playlists {
		i, ok := index[playlist.Owner]
		if !ok {
			i = len(groups)
			index[playlist.Owner] = i
			groups = append(groups, OwnerGroup{Owner: playlist.Owner})
		}
		groups[i].Playlists = append(groups[i].Playlists, playlist)
	}
	return groups, nil
}

// FindByName scans the user's playlists for exact, case-sensitive name
// matches and reports the multiplicity outcome. Callers branch on Match.Kind;
// the locator never guesses among multiple matches.
func (l *Locator) FindByName(ctx context.Context, name string) (Match, error) {
	playlists, err := l.UserPlaylists(ctx)
	if err != nil {
		return Match{}, err
	}

	var matches []services.Playlist
	for _, playlist := range playlists {
		if playlist.Name == name {
			matches = append(matches, playlist)
		}
	}

	switch len(matches) {
	case 0:
		return Match{Kind: MatchNone}, nil
	case 1:
		return Match{Kind: MatchSingle, Playlists: matches}, nil
	default:
		return Match{Kind: MatchMultiple, Playlists: matches}, nil
	}
}

// Resolve fetches a playlist directly by id, bypassing the name scan. Used
// when the user pre-selected a source playlist, including ones they do not
// own.
func (l *Locator) Resolve(ctx context.Context, playlistID string) (*services.Playlist, error) {
	return l.catalog.GetPlaylist(ctx, playlistID)
}
