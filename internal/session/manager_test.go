package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/store"
)

func newTestManager() *Manager {
	return NewManager(store.NewMemoryStore(), "test-secret", time.Hour)
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Start Sets Cookie", func(t *testing.T) {
		m := newTestManager()
		w := httptest.NewRecorder()

		sid, err := m.Start(ctx, w)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if len(sid) != shared.SessionIDLength {
			t.Errorf("unexpected session id length %d", len(sid))
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != CookieName {
			t.Fatalf("expected one %s cookie, got %v", CookieName, cookies)
		}
		if !strings.HasPrefix(cookies[0].Value, sid+".") {
			t.Errorf("cookie value %q does not carry session id", cookies[0].Value)
		}
	})

	t.Run("CurrentID Round Trip", func(t *testing.T) {
		m := newTestManager()
		w := httptest.NewRecorder()

		sid, err := m.Start(ctx, w)
		if err != nil {
			t.Fatal(err)
		}

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(w.Result().Cookies()[0])

		got, err := m.CurrentID(ctx, httptest.NewRecorder(), r, false)
		if err != nil {
			t.Fatalf("current id failed: %v", err)
		}
		if got != sid {
			t.Errorf("expected %q, got %q", sid, got)
		}
	})

	t.Run("Missing Cookie", func(t *testing.T) {
		m := newTestManager()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		t.Run("No AutoStart", func(t *testing.T) {
			sid, err := m.CurrentID(ctx, httptest.NewRecorder(), r, false)
			if err != nil {
				t.Fatal(err)
			}
			if sid != "" {
				t.Errorf("expected absent session, got %q", sid)
			}
		})

		t.Run("AutoStart", func(t *testing.T) {
			w := httptest.NewRecorder()
			sid, err := m.CurrentID(ctx, w, r, true)
			if err != nil {
				t.Fatal(err)
			}
			if sid == "" {
				t.Error("expected new session to be started")
			}
			if len(w.Result().Cookies()) != 1 {
				t.Error("expected session cookie to be set")
			}
		})
	})

	t.Run("Tampered Cookie", func(t *testing.T) {
		m := newTestManager()
		w := httptest.NewRecorder()
		if _, err := m.Start(ctx, w); err != nil {
			t.Fatal(err)
		}

		cookie := w.Result().Cookies()[0]
		cookie.Value = "forgedSessionId00." + strings.SplitN(cookie.Value, ".", 2)[1]

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookie)

		sid, err := m.CurrentID(ctx, httptest.NewRecorder(), r, false)
		if err != nil {
			t.Fatal(err)
		}
		if sid != "" {
			t.Errorf("expected tampered cookie to be rejected, got %q", sid)
		}
	})

	t.Run("Load Unseen ID", func(t *testing.T) {
		m := newTestManager()
		data, err := m.Load(ctx, "AAAAAAAAAAAAAAAA")
		if err != nil {
			t.Fatalf("expected empty blob for unseen id, got %v", err)
		}
		if data.Email() != "" {
			t.Errorf("expected empty blob, got email %q", data.Email())
		}
	})

	t.Run("Save Requires ID", func(t *testing.T) {
		m := newTestManager()
		if err := m.Save(ctx, NewData(), ""); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Save Then Load", func(t *testing.T) {
		m := newTestManager()
		data := NewData().Add(KeyEmail, "user@example.com")

		if err := m.Save(ctx, data, "AAAAAAAAAAAAAAAA"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := m.Load(ctx, "AAAAAAAAAAAAAAAA")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if loaded.Email() != "user@example.com" {
			t.Errorf("unexpected email %q", loaded.Email())
		}
	})
}
