package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/store"
)

// CookieName is the browser cookie carrying the signed session id.
const CookieName = "SID"

// Manager issues session ids, round-trips them through a tamper-evident
// cookie, and persists session blobs in a [store.Store]. Only the opaque id
// travels to the client; all real data stays server-side.
type Manager struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
}

// NewManager creates a Manager writing blobs to s. secret signs the cookie
// value; ttl bounds stored blob lifetime in backends with expiry support.
func NewManager(s store.Store, secret string, ttl time.Duration) *Manager {
	return &Manager{store: s, secret: []byte(secret), ttl: ttl}
}

// Start generates a fresh session id, initializes an empty stored blob for it
// and sets the session cookie on w.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter) (string, error) {
	sid, err := shared.GenerateSessionID()
	if err != nil {
		return "", err
	}

	if err := m.Save(ctx, NewData(), sid); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(sid),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

// CurrentID resolves the session id from the request cookie. A missing or
// tampered cookie yields a new session when autoStart is set, otherwise "".
func (m *Manager) CurrentID(ctx context.Context, w http.ResponseWriter, r *http.Request, autoStart bool) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err == nil {
		if sid, ok := m.verify(cookie.Value); ok {
			return sid, nil
		}
	}

	if autoStart {
		return m.Start(ctx, w)
	}
	return "", nil
}

// Load returns the stored blob for sid, or an empty blob when none exists.
func (m *Manager) Load(ctx context.Context, sid string) (Data, error) {
	if sid == "" {
		return Data{}, shared.ErrNoSession
	}

	raw, err := m.store.Get(ctx, store.SessionKey(sid))
	if errors.Is(err, store.ErrNotFound) {
		return NewData(), nil
	}
	if err != nil {
		return Data{}, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("corrupt session blob: %w", err)
	}
	return data, nil
}

// Save replaces the stored blob for sid wholesale. An empty sid is a
// programming-contract violation and fails with [shared.ErrNoSession].
func (m *Manager) Save(ctx context.Context, data Data, sid string) error {
	if sid == "" {
		return shared.ErrNoSession
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session blob: %w", err)
	}
	return m.store.Set(ctx, store.SessionKey(sid), raw, m.ttl)
}

// sign encodes sid as "<sid>.<mac>" so the client cannot forge another
// session's id.
func (m *Manager) sign(sid string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sid))
	return sid + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify checks the cookie value and returns the embedded sid.
func (m *Manager) verify(value string) (string, bool) {
	sid, _, found := strings.Cut(value, ".")
	if !found || sid == "" {
		return "", false
	}
	if !hmac.Equal([]byte(m.sign(sid)), []byte(value)) {
		return "", false
	}
	return sid, true
}
