package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// fakeSpotify serves a minimal slice of the Web API for pagination tests.
type fakeSpotify struct {
	t *testing.T

	playlists    []map[string]any
	tracks       map[string][]PlaylistTrack // playlist id -> tracks
	albums       map[string][]string        // album id -> track ids
	listCalls    int
	removeBodies [][]string
	addBodies    [][]string
}

func (f *fakeSpotify) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls++
		f.checkAuth(r)
		offset, limit := pageParams(r)
		end := min(offset+limit, len(f.playlists))
		page := map[string]any{
			"items": f.playlists[min(offset, len(f.playlists)):end],
			"total": len(f.playlists),
		}
		if end < len(f.playlists) {
			page["next"] = "next-page"
		}
		json.NewEncoder(w).Encode(page)
	})

	mux.HandleFunc("GET /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.checkAuth(r)
		tracks := f.tracks[r.PathValue("id")]
		offset, limit := pageParams(r)
		end := min(offset+limit, len(tracks))

		items := []map[string]any{}
		for _, track := range tracks[min(offset, len(tracks)):end] {
			items = append(items, map[string]any{
				"track": map[string]any{
					"id":    track.TrackID,
					"album": map[string]any{"id": track.AlbumID},
				},
			})
		}
		page := map[string]any{"items": items, "total": len(tracks)}
		if end < len(tracks) {
			page["next"] = "next-page"
		}
		json.NewEncoder(w).Encode(page)
	})

	mux.HandleFunc("GET /albums/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.checkAuth(r)
		ids := f.albums[r.PathValue("id")]
		offset, limit := pageParams(r)
		end := min(offset+limit, len(ids))

		items := []map[string]any{}
		for _, id := range ids[min(offset, len(ids)):end] {
			items = append(items, map[string]any{"id": id})
		}
		page := map[string]any{"items": items, "total": len(ids)}
		if end < len(ids) {
			page["next"] = "next-page"
		}
		json.NewEncoder(w).Encode(page)
	})

	mux.HandleFunc("DELETE /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tracks []struct {
				URI string `json:"uri"`
			} `json:"tracks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("bad remove body: %v", err)
		}
		uris := make([]string, 0, len(body.Tracks))
		for _, track := range body.Tracks {
			uris = append(uris, track.URI)
		}
		f.removeBodies = append(f.removeBodies, uris)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("bad add body: %v", err)
		}
		f.addBodies = append(f.addBodies, body.URIs)
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /users/{id}/playlists", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Public      bool   `json:"public"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "created-id",
			"name":  body.Name,
			"owner": map[string]any{"id": r.PathValue("id"), "display_name": "Owner"},
		})
	})

	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		f.checkAuth(r)
		json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "display_name": "User One"})
	})

	return httptest.NewServer(mux)
}

func (f *fakeSpotify) checkAuth(r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		f.t.Errorf("unexpected authorization header %q", got)
	}
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	return offset, limit
}

func newTestService(t *testing.T, f *fakeSpotify) *SpotifyService {
	t.Helper()
	f.t = t
	srv := f.server()
	t.Cleanup(srv.Close)

	service, err := NewSpotifyService("test-token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestNewSpotifyService(t *testing.T) {
	if _, err := NewSpotifyService(""); err == nil {
		t.Error("expected error for empty access token")
	}
}

func TestSpotifyPagination(t *testing.T) {
	ctx := context.Background()

	t.Run("ListPlaylists Follows Pages", func(t *testing.T) {
		f := &fakeSpotify{}
		for i := range 120 {
			f.playlists = append(f.playlists, map[string]any{
				"id":     fmt.Sprintf("pl-%d", i),
				"name":   fmt.Sprintf("Playlist %d", i),
				"owner":  map[string]any{"id": "u", "display_name": "U"},
				"tracks": map[string]any{"total": i},
			})
		}
		service := newTestService(t, f)

		playlists, err := service.ListPlaylists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 120 {
			t.Errorf("expected 120 playlists, got %d", len(playlists))
		}
		// 120 items at page size 50: three pages, last page has no next
		if f.listCalls != 3 {
			t.Errorf("expected 3 listing calls, got %d", f.listCalls)
		}
		if playlists[119].ID != "pl-119" {
			t.Errorf("ordering lost, last id %q", playlists[119].ID)
		}
	})

	t.Run("PlaylistTracks Follows Pages", func(t *testing.T) {
		tracks := make([]PlaylistTrack, 130)
		for i := range tracks {
			tracks[i] = PlaylistTrack{
				TrackID: fmt.Sprintf("t-%d", i),
				AlbumID: fmt.Sprintf("a-%d", i/10),
			}
		}
		f := &fakeSpotify{tracks: map[string][]PlaylistTrack{"pl-1": tracks}}
		service := newTestService(t, f)

		got, err := service.PlaylistTracks(ctx, "pl-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 130 {
			t.Errorf("expected 130 tracks, got %d", len(got))
		}
		if got[0].AlbumID != "a-0" || got[129].TrackID != "t-129" {
			t.Errorf("unexpected edges %+v %+v", got[0], got[129])
		}
	})

	t.Run("PlaylistTracksPage Reports Total", func(t *testing.T) {
		tracks := make([]PlaylistTrack, 250)
		for i := range tracks {
			tracks[i] = PlaylistTrack{TrackID: fmt.Sprintf("t-%d", i), AlbumID: "a"}
		}
		f := &fakeSpotify{tracks: map[string][]PlaylistTrack{"pl-1": tracks}}
		service := newTestService(t, f)

		page, total, err := service.PlaylistTracksPage(ctx, "pl-1", 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page) != 100 {
			t.Errorf("expected 100 tracks in page, got %d", len(page))
		}
		if total != 250 {
			t.Errorf("expected total 250, got %d", total)
		}
	})

	t.Run("AlbumTracks Follows Pages", func(t *testing.T) {
		ids := make([]string, 75)
		for i := range ids {
			ids[i] = fmt.Sprintf("at-%d", i)
		}
		f := &fakeSpotify{albums: map[string][]string{"alb-1": ids}}
		service := newTestService(t, f)

		got, err := service.AlbumTracks(ctx, "alb-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 75 {
			t.Errorf("expected 75 tracks, got %d", len(got))
		}
		if got[74] != "at-74" {
			t.Errorf("ordering lost, last id %q", got[74])
		}
	})
}

func TestSpotifyMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("AddTracks Sends URIs", func(t *testing.T) {
		f := &fakeSpotify{}
		service := newTestService(t, f)

		if err := service.AddTracks(ctx, "pl-1", []string{"t1", "t2"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.addBodies) != 1 {
			t.Fatalf("expected one add call, got %d", len(f.addBodies))
		}
		if f.addBodies[0][0] != "spotify:track:t1" || f.addBodies[0][1] != "spotify:track:t2" {
			t.Errorf("unexpected uris %v", f.addBodies[0])
		}
	})

	t.Run("AddTracks Rejects Oversized Chunk", func(t *testing.T) {
		service := newTestService(t, &fakeSpotify{})
		ids := make([]string, AddTracksLimit+1)
		if err := service.AddTracks(ctx, "pl-1", ids); err == nil {
			t.Error("expected error for oversized chunk")
		}
	})

	t.Run("AddTracks Empty Is NoOp", func(t *testing.T) {
		f := &fakeSpotify{}
		service := newTestService(t, f)
		if err := service.AddTracks(ctx, "pl-1", nil); err != nil {
			t.Fatal(err)
		}
		if len(f.addBodies) != 0 {
			t.Error("expected no call for empty chunk")
		}
	})

	t.Run("RemoveTracks Sends Track Refs", func(t *testing.T) {
		f := &fakeSpotify{}
		service := newTestService(t, f)

		if err := service.RemoveTracks(ctx, "pl-1", []string{"t9"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.removeBodies) != 1 || f.removeBodies[0][0] != "spotify:track:t9" {
			t.Errorf("unexpected remove bodies %v", f.removeBodies)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		service := newTestService(t, &fakeSpotify{})

		playlist, err := service.CreatePlaylist(ctx, "user-1", "Name", "Desc", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.ID != "created-id" || playlist.Name != "Name" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
	})
}

func TestSpotifyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	service, err := NewSpotifyService("test-token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := service.ListPlaylists(context.Background()); err == nil {
		t.Error("expected error for upstream failure")
	}
}
