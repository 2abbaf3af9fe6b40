package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/esolitos/spori.fi/internal/auth"
	"github.com/esolitos/spori.fi/internal/services"
	"github.com/esolitos/spori.fi/internal/session"
	"github.com/esolitos/spori.fi/internal/store"
	"github.com/esolitos/spori.fi/internal/tasks"
)

// fakeCatalog is a minimal in-memory catalog for driving runs through the
// web app.
type fakeCatalog struct {
	playlists []services.Playlist
	tracks    map[string][]services.PlaylistTrack
	albums    map[string][]string
	tokens    []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks: map[string][]services.PlaylistTrack{},
		albums: map[string][]string{},
	}
}

func (f *fakeCatalog) CurrentUser(ctx context.Context) (*services.User, error) {
	return &services.User{ID: "user-1", DisplayName: "Alice"}, nil
}

func (f *fakeCatalog) ListPlaylists(ctx context.Context) ([]services.Playlist, error) {
	out := make([]services.Playlist, len(f.playlists))
	copy(out, f.playlists)
	return out, nil
}

func (f *fakeCatalog) GetPlaylist(ctx context.Context, playlistID string) (*services.Playlist, error) {
	for _, playlist := range f.playlists {
		if playlist.ID == playlistID {
			p := playlist
			return &p, nil
		}
	}
	return nil, fmt.Errorf("no such playlist %q", playlistID)
}

func (f *fakeCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]services.PlaylistTrack, error) {
	return f.tracks[playlistID], nil
}

func (f *fakeCatalog) PlaylistTracksPage(ctx context.Context, playlistID string, limit int) ([]services.PlaylistTrack, int, error) {
	current := f.tracks[playlistID]
	end := min(limit, len(current))
	return current[:end], len(current), nil
}

func (f *fakeCatalog) AlbumTracks(ctx context.Context, albumID string) ([]string, error) {
	return f.albums[albumID], nil
}

func (f *fakeCatalog) RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	drop := map[string]bool{}
	for _, id := range trackIDs {
		drop[id] = true
	}
	var kept []services.PlaylistTrack
	for _, track := range f.tracks[playlistID] {
		if !drop[track.TrackID] {
			kept = append(kept, track)
		}
	}
	f.tracks[playlistID] = kept
	return nil
}

func (f *fakeCatalog) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, id := range trackIDs {
		f.tracks[playlistID] = append(f.tracks[playlistID], services.PlaylistTrack{TrackID: id})
	}
	return nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.Playlist, error) {
	playlist := services.Playlist{ID: "created-1", Name: name, Owner: "Alice"}
	f.playlists = append(f.playlists, playlist)
	return &playlist, nil
}

// testApp bundles the app with its backing stores and fake upstreams.
type testApp struct {
	app     *App
	handler http.Handler
	catalog *fakeCatalog
	cache   *auth.Cache
	cookie  *http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         auth.RequiredScope,
		})
	}))
	t.Cleanup(tokenServer.Close)

	oauthConfig := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:8080/oauth/callback",
		Scopes:       []string{auth.RequiredScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/authorize",
			TokenURL: tokenServer.URL,
		},
	}

	backing := store.NewMemoryStore()
	sessions := session.NewManager(backing, "test-secret", time.Hour)
	cache := auth.NewCache(backing, oauthConfig, nil)
	catalog := newFakeCatalog()

	app := NewApp(sessions, cache, oauthConfig, nil, WithCatalogFactory(
		func(accessToken string) (services.Catalog, error) {
			catalog.tokens = append(catalog.tokens, accessToken)
			return catalog, nil
		},
	))

	return &testApp{
		app:     app,
		handler: app.Router(),
		catalog: catalog,
		cache:   cache,
	}
}

// do performs one request, carrying the session cookie across calls.
func (ta *testApp) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if ta.cookie != nil {
		req.AddCookie(ta.cookie)
	}

	recorder := httptest.NewRecorder()
	ta.handler.ServeHTTP(recorder, req)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == session.CookieName {
			ta.cookie = cookie
		}
	}
	return recorder
}

// login walks the email form and OAuth callback, leaving a cached token for
// the given email.
func (ta *testApp) login(t *testing.T, email string) {
	t.Helper()

	resp := ta.do(t, http.MethodPost, "/login", url.Values{"email": {email}})
	if resp.Code != http.StatusFound {
		t.Fatalf("login status = %d, want 302", resp.Code)
	}
	authorizeURL, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing authorize redirect: %v", err)
	}
	state := authorizeURL.Query().Get("state")
	if state == "" {
		t.Fatal("authorize redirect carries no state")
	}

	resp = ta.do(t, http.MethodGet, "/oauth/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil)
	if resp.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "/login/success" {
		t.Fatalf("callback redirected to %q, want /login/success", got)
	}
}

func seedFakeSource(catalog *fakeCatalog, id, name string, n int) {
	catalog.playlists = append(catalog.playlists, services.Playlist{
		ID: id, Name: name, Owner: "Spotify", TrackCount: n,
	})
	for i := 0; i < n; i++ {
		albumID := fmt.Sprintf("%s-album-%d", id, i)
		catalog.tracks[id] = append(catalog.tracks[id], services.PlaylistTrack{
			TrackID: fmt.Sprintf("%s-track-%d", id, i),
			AlbumID: albumID,
		})
		catalog.albums[albumID] = []string{albumID + "-t1"}
	}
}

func TestApp(t *testing.T) {
	t.Run("home shows login form and starts a session", func(t *testing.T) {
		ta := newTestApp(t)

		resp := ta.do(t, http.MethodGet, "/", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.Code)
		}
		if ta.cookie == nil {
			t.Fatal("no session cookie set")
		}
		if !strings.Contains(resp.Body.String(), `action="/login"`) {
			t.Error("home page does not show the login form")
		}
	})

	t.Run("login requires an email", func(t *testing.T) {
		ta := newTestApp(t)

		resp := ta.do(t, http.MethodPost, "/login", url.Values{})
		if resp.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", resp.Code)
		}
		if !strings.HasPrefix(resp.Header().Get("Location"), "/login/error") {
			t.Errorf("redirected to %q, want the error page", resp.Header().Get("Location"))
		}
	})

	t.Run("oauth dance caches the token", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login(t, "alice@example.com")

		record, err := ta.cache.Get(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("cache.Get: %v", err)
		}
		if record == nil {
			t.Fatal("no token cached after callback")
		}
		if record.AccessToken != "fresh-access" {
			t.Errorf("cached access token = %q", record.AccessToken)
		}
	})

	t.Run("callback rejects a mismatched state", func(t *testing.T) {
		ta := newTestApp(t)

		resp := ta.do(t, http.MethodPost, "/login", url.Values{"email": {"alice@example.com"}})
		if resp.Code != http.StatusFound {
			t.Fatalf("login status = %d", resp.Code)
		}

		resp = ta.do(t, http.MethodGet, "/oauth/callback?state=forged&code=auth-code", nil)
		if !strings.HasPrefix(resp.Header().Get("Location"), "/login/error") {
			t.Errorf("forged state redirected to %q, want the error page", resp.Header().Get("Location"))
		}
		record, err := ta.cache.Get(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("cache.Get: %v", err)
		}
		if record != nil {
			t.Error("forged callback cached a token")
		}
	})

	t.Run("run without a session redirects home", func(t *testing.T) {
		ta := newTestApp(t)

		resp := ta.do(t, http.MethodGet, "/run", nil)
		if resp.Code != http.StatusFound || resp.Header().Get("Location") != "/" {
			t.Fatalf("status = %d location = %q, want redirect home", resp.Code, resp.Header().Get("Location"))
		}
	})

	t.Run("run rebuilds the playlist", func(t *testing.T) {
		ta := newTestApp(t)
		seedFakeSource(ta.catalog, "src", tasks.SourceName, 3)
		ta.login(t, "alice@example.com")

		resp := ta.do(t, http.MethodGet, "/run", nil)
		if resp.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", resp.Code)
		}
		finished, err := url.Parse(resp.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parsing finished redirect: %v", err)
		}
		if finished.Path != "/run/finished" {
			t.Fatalf("redirected to %q, want /run/finished", finished.Path)
		}
		if got := finished.Query().Get("tracks"); got != "3" {
			t.Errorf("tracks = %q, want 3", got)
		}
		if len(ta.catalog.tokens) == 0 {
			t.Fatal("catalog was never built from the cached token")
		}
		if ta.catalog.tokens[0] != "fresh-access" {
			t.Errorf("catalog token = %q, want the cached access token", ta.catalog.tokens[0])
		}

		resp = ta.do(t, http.MethodGet, resp.Header().Get("Location"), nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("finished page status = %d", resp.Code)
		}
		if !strings.Contains(resp.Body.String(), tasks.DestinationName) {
			t.Error("finished page does not name the rebuilt playlist")
		}
	})

	t.Run("ambiguous source goes to manual selection", func(t *testing.T) {
		ta := newTestApp(t)
		seedFakeSource(ta.catalog, "src-a", tasks.SourceName, 1)
		seedFakeSource(ta.catalog, "src-b", tasks.SourceName, 2)
		ta.login(t, "alice@example.com")

		resp := ta.do(t, http.MethodGet, "/run", nil)
		if got := resp.Header().Get("Location"); got != "/run/manual-selection" {
			t.Fatalf("redirected to %q, want /run/manual-selection", got)
		}

		resp = ta.do(t, http.MethodGet, "/run/manual-selection", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("selection page status = %d", resp.Code)
		}
		body := resp.Body.String()
		if !strings.Contains(body, "src-a") || !strings.Contains(body, "src-b") {
			t.Error("selection page does not list both candidates")
		}

		resp = ta.do(t, http.MethodPost, "/run/manual-selection", url.Values{"playlist": {"src-b"}})
		if got := resp.Header().Get("Location"); got != "/run" {
			t.Fatalf("selection redirected to %q, want /run", got)
		}

		resp = ta.do(t, http.MethodGet, "/run", nil)
		finished, err := url.Parse(resp.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parsing finished redirect: %v", err)
		}
		if got := finished.Query().Get("tracks"); got != "2" {
			t.Errorf("tracks = %q, want 2 from the chosen source", got)
		}
	})

	t.Run("manual selection accepts a pasted link", func(t *testing.T) {
		ta := newTestApp(t)
		seedFakeSource(ta.catalog, "pasted123", "Someone Else's Mix", 1)
		ta.login(t, "alice@example.com")

		resp := ta.do(t, http.MethodPost, "/run/manual-selection", url.Values{
			"address": {"https://open.spotify.com/playlist/pasted123?si=x"},
		})
		if got := resp.Header().Get("Location"); got != "/run" {
			t.Fatalf("selection redirected to %q, want /run", got)
		}

		resp = ta.do(t, http.MethodGet, "/run", nil)
		finished, err := url.Parse(resp.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parsing finished redirect: %v", err)
		}
		if finished.Path != "/run/finished" {
			t.Fatalf("redirected to %q, want /run/finished", finished.Path)
		}
	})
}
