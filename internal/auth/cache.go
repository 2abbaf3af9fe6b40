package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/store"
)

// expirySkew treats tokens this close to expiry as already expired, so a
// token does not die mid-run.
const expirySkew = 30 * time.Second

// TokenRecord is the cached OAuth credential bundle for one user. A refresh
// replaces the whole record; there are no partial updates.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the record's access token has passed (or nearly
// passed) its expiry.
func (r *TokenRecord) Expired(now time.Time) bool {
	return now.Add(expirySkew).Unix() >= r.ExpiresAt
}

// Token converts the record to an [oauth2.Token].
func (r *TokenRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Expiry:       time.Unix(r.ExpiresAt, 0),
	}
}

// RecordFromToken converts an [oauth2.Token] to a TokenRecord. The scope is
// taken from the token's extra fields when the authorization server reported
// one, else from fallbackScope.
func RecordFromToken(token *oauth2.Token, fallbackScope string) *TokenRecord {
	scope := fallbackScope
	if s, ok := token.Extra("scope").(string); ok && s != "" {
		scope = s
	}
	return &TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
		ExpiresAt:    token.Expiry.Unix(),
	}
}

// Cache is the per-user persistent token store. Records live in a
// [store.Store] keyed by user identity; Get transparently refreshes expired
// records and rejects records whose scope no longer covers [RequiredScope].
type Cache struct {
	store  store.Store
	config *oauth2.Config
	logger *log.Logger

	// now is swapped in tests
	now func() time.Time
}

// NewCache creates a token cache backed by s, refreshing through config.
func NewCache(s store.Store, config *oauth2.Config, logger *log.Logger) *Cache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Cache{store: s, config: config, logger: logger, now: time.Now}
}

// Get reads the stored record for userID.
//
// Returns (nil, nil) when the user has never authorized, when the stored
// scope is narrower than [RequiredScope], or when a needed refresh fails;
// callers must treat all three identically and send the user back through
// authorization. Storage failures are returned as errors.
func (c *Cache) Get(ctx context.Context, userID string) (*TokenRecord, error) {
	raw, err := c.store.Get(ctx, store.TokenKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		c.logger.Warn("discarding corrupt token record", "user", userID, "error", err)
		return nil, nil
	}

	if !HasScope(record.Scope, RequiredScope) {
		c.logger.Info("cached token scope too narrow, reauthorization required", "user", userID)
		return nil, nil
	}

	if !record.Expired(c.now()) {
		return &record, nil
	}

	if record.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := c.refresh(ctx, &record)
	if err != nil {
		c.logger.Warn("token refresh failed", "user", userID, "error", err)
		return nil, nil
	}

	if err := c.Put(ctx, userID, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// Put unconditionally overwrites the stored record for userID.
func (c *Cache) Put(ctx context.Context, userID string, record *TokenRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}
	return c.store.Set(ctx, store.TokenKey(userID), raw, 0)
}

// refresh exchanges the record's refresh token for a new access token. The
// exchange is attempted once; a failure surfaces as "absent" upstream.
func (c *Cache) refresh(ctx context.Context, record *TokenRecord) (*TokenRecord, error) {
	stale := record.Token()
	fresh, err := c.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	next := RecordFromToken(fresh, record.Scope)
	// Spotify omits the refresh token from refresh responses; carry the old
	// one forward.
	if next.RefreshToken == "" {
		next.RefreshToken = record.RefreshToken
	}
	return next, nil
}
