// package services defines the music-catalog capability the reconciliation
// logic runs against, and its Spotify Web API implementation.
package services

import "context"

// Per-call item limits imposed by the upstream service; the reconciliation
// engine partitions its calls around these.
const (
	// AddTracksLimit bounds one add-tracks call.
	AddTracksLimit = 100
	// RemoveTracksLimit bounds one remove-tracks call.
	RemoveTracksLimit = 100
	// PageLimit is the page size requested on listing calls.
	PageLimit = 50
)

// User is the authenticated account the catalog acts for.
type User struct {
	ID          string
	DisplayName string
}

// Playlist is a playlist reference: enough to locate and size a playlist,
// no track metadata.
type Playlist struct {
	ID         string
	Name       string
	Owner      string
	TrackCount int
}

// PlaylistTrack pairs a playlist track with its parent album.
type PlaylistTrack struct {
	TrackID string
	AlbumID string
}

// Catalog is the opaque RPC surface of the upstream music service. Every
// listing call follows server-side pagination to exhaustion before returning;
// bounded calls (RemoveTracks, AddTracks) take at most one page of ids.
type Catalog interface {
	// CurrentUser returns the account the access token belongs to.
	CurrentUser(ctx context.Context) (*User, error)

	// ListPlaylists returns all playlists visible to the user, in upstream
	// listing order.
	ListPlaylists(ctx context.Context) ([]Playlist, error)

	// GetPlaylist fetches one playlist by id, including ones the user does
	// not own.
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// PlaylistTracks returns all of the playlist's current tracks with
	// their parent album ids, following pagination to exhaustion.
	PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error)

	// PlaylistTracksPage returns one page of up to limit tracks from the
	// playlist head, plus the upstream-reported total remaining.
	PlaylistTracksPage(ctx context.Context, playlistID string, limit int) ([]PlaylistTrack, int, error)

	// AlbumTracks returns every track id of the album in album order.
	AlbumTracks(ctx context.Context, albumID string) ([]string, error)

	// RemoveTracks removes all occurrences of the given track ids from the
	// playlist in a single bounded call.
	RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// AddTracks appends the given track ids to the playlist in a single
	// bounded call, preserving order.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*Playlist, error)
}
