// Spotify Web API implementation of [Catalog]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/esolitos/spori.fi/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// spotifyOwner represents a playlist owner object.
type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// spotifyPlaylist represents a (possibly simplified) playlist object.
type spotifyPlaylist struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Owner  spotifyOwner `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// spotifyPlaylistPage represents a paginated response of playlists.
type spotifyPlaylistPage struct {
	Items []spotifyPlaylist `json:"items"`
	Total int               `json:"total"`
	Next  *string           `json:"next"`
}

// spotifyPlaylistTrackPage represents a paginated response of playlist tracks,
// narrowed by a fields selector to track and album ids.
type spotifyPlaylistTrackPage struct {
	Items []struct {
		Track struct {
			ID    string `json:"id"`
			Album struct {
				ID string `json:"id"`
			} `json:"album"`
		} `json:"track"`
	} `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// spotifyAlbumTrackPage represents a paginated response of album tracks.
type spotifyAlbumTrackPage struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyService implements [Catalog] against the Spotify Web API on behalf
// of one authenticated user. A token-bucket limiter paces outbound calls.
type SpotifyService struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at a different API host (tests).
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = baseURL }
}

// WithHTTPClient swaps the HTTP client.
func WithHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = client }
}

// NewSpotifyService creates a Spotify catalog client sending the given bearer
// token on every request.
func NewSpotifyService(accessToken string, opts ...SpotifyOption) (*SpotifyService, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrMissingCredentials)
	}

	s := &SpotifyService{
		baseURL:     spotifyBaseURL,
		accessToken: accessToken,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// doRequest performs one authenticated API call, JSON-encoding body when
// present and decoding the response into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*User, error) {
	var user struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// ListPlaylists retrieves all playlists visible to the user, following
// pagination until the upstream reports no next page.
func (s *SpotifyService) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", PageLimit, offset)

		var page spotifyPlaylistPage
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			all = append(all, playlistFromAPI(item))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += PageLimit
	}

	return all, nil
}

// GetPlaylist retrieves a playlist by id.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,owner(id,display_name),tracks(total)", playlistID)

	var item spotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &item); err != nil {
		return nil, err
	}

	playlist := playlistFromAPI(item)
	return &playlist, nil
}

// PlaylistTracks retrieves all tracks of a playlist with their parent album
// ids, following pagination to exhaustion.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	var all []PlaylistTrack
	offset := 0

	for {
		page, err := s.playlistTracksAt(ctx, playlistID, PageLimit, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, pageTracks(page)...)

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += PageLimit
	}

	return all, nil
}

// PlaylistTracksPage retrieves one page of up to limit tracks from the
// playlist head plus the upstream-reported total.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, playlistID string, limit int) ([]PlaylistTrack, int, error) {
	if limit <= 0 || limit > RemoveTracksLimit {
		limit = RemoveTracksLimit
	}

	page, err := s.playlistTracksAt(ctx, playlistID, limit, 0)
	if err != nil {
		return nil, 0, err
	}
	return pageTracks(page), page.Total, nil
}

func (s *SpotifyService) playlistTracksAt(ctx context.Context, playlistID string, limit, offset int) (*spotifyPlaylistTrackPage, error) {
	fields := url.QueryEscape("items(track(id,album(id))),total,next")
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&fields=%s", playlistID, limit, offset, fields)

	var page spotifyPlaylistTrackPage
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AlbumTracks retrieves every track id of an album in album order, following
// pagination to exhaustion.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]string, error) {
	var all []string
	offset := 0

	for {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d", albumID, PageLimit, offset)

		var page spotifyAlbumTrackPage
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			all = append(all, item.ID)
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += PageLimit
	}

	return all, nil
}

// RemoveTracks removes all occurrences of the given track ids from the
// playlist. The upstream bounds one call to [RemoveTracksLimit] ids.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > RemoveTracksLimit {
		return fmt.Errorf("%w: at most %d tracks per remove call", shared.ErrInvalidArgument, RemoveTracksLimit)
	}

	type trackRef struct {
		URI string `json:"uri"`
	}
	body := struct {
		Tracks []trackRef `json:"tracks"`
	}{}
	for _, id := range trackIDs {
		body.Tracks = append(body.Tracks, trackRef{URI: "spotify:track:" + id})
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return s.doRequest(ctx, http.MethodDelete, endpoint, body, nil)
}

// AddTracks appends the given track ids to the playlist, preserving order.
// The upstream bounds one call to [AddTracksLimit] ids.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > AddTracksLimit {
		return fmt.Errorf("%w: at most %d tracks per add call", shared.ErrInvalidArgument, AddTracksLimit)
	}

	uris := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		uris = append(uris, "spotify:track:"+id)
	}
	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// CreatePlaylist creates a playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*Playlist, error) {
	body := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}{Name: name, Description: description, Public: public}

	endpoint := fmt.Sprintf("/users/%s/playlists", userID)

	var item spotifyPlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &item); err != nil {
		return nil, err
	}

	playlist := playlistFromAPI(item)
	return &playlist, nil
}

func playlistFromAPI(item spotifyPlaylist) Playlist {
	return Playlist{
		ID:         item.ID,
		Name:       item.Name,
		Owner:      item.Owner.DisplayName,
		TrackCount: item.Tracks.Total,
	}
}

func pageTracks(page *spotifyPlaylistTrackPage) []PlaylistTrack {
	tracks := make([]PlaylistTrack, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, PlaylistTrack{
			TrackID: item.Track.ID,
			AlbumID: item.Track.Album.ID,
		})
	}
	return tracks
}
