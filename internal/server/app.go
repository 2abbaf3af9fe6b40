package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/esolitos/spori.fi/internal/auth"
	"github.com/esolitos/spori.fi/internal/services"
	"github.com/esolitos/spori.fi/internal/session"
	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/tasks"
)

// sessionKeyState holds the pending OAuth state token between the login
// redirect and the callback.
const sessionKeyState = "oauth_state"

// CatalogFactory builds a catalog client bound to one access token.
type CatalogFactory func(accessToken string) (services.Catalog, error)

// App is the browser-facing application: email login, OAuth dance, and
// reconciliation runs driven from a web page.
type App struct {
	logger     *log.Logger
	sessions   *session.Manager
	cache      *auth.Cache
	oauth      *oauth2.Config
	catalogFor CatalogFactory
}

// AppOption customizes an App.
type AppOption func(*App)

// WithCatalogFactory replaces how the App builds catalog clients. Used in
// tests to point runs at a fake upstream.
func WithCatalogFactory(factory CatalogFactory) AppOption {
	return func(a *App) {
		a.catalogFor = factory
	}
}

// NewApp wires the web application against its session manager, token cache
// and OAuth configuration.
func NewApp(sessions *session.Manager, cache *auth.Cache, oauthConfig *oauth2.Config, logger *log.Logger, opts ...AppOption) *App {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	app := &App{
		logger:   logger,
		sessions: sessions,
		cache:    cache,
		oauth:    oauthConfig,
		catalogFor: func(accessToken string) (services.Catalog, error) {
			return services.NewSpotifyService(accessToken)
		},
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Router builds the full route table with request logging applied.
func (a *App) Router() http.Handler {
	router := NewBasicRouter()
	router.Use(RequestLogging(a.logger))

	router.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.handleHome))
	router.Handle(http.MethodGet, "/login", http.HandlerFunc(a.handleHome))
	router.Handle(http.MethodPost, "/login", http.HandlerFunc(a.handleLogin))
	router.Handle(http.MethodGet, "/login/success", http.HandlerFunc(a.handleLoginSuccess))
	router.Handle(http.MethodGet, "/login/error", http.HandlerFunc(a.handleLoginError))
	router.Handle(http.MethodGet, "/oauth/callback", http.HandlerFunc(a.handleCallback))
	router.Handle(http.MethodGet, "/run", http.HandlerFunc(a.handleRun))
	router.Handle(http.MethodGet, "/run/manual-selection", http.HandlerFunc(a.handleSelectForm))
	router.Handle(http.MethodPost, "/run/manual-selection", http.HandlerFunc(a.handleSelectSubmit))
	router.Handle(http.MethodGet, "/run/finished", http.HandlerFunc(a.handleFinished))

	return router
}

// handleHome shows the login form, or a run link when the visitor already
// holds a usable token.
func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sid, err := a.sessions.CurrentID(ctx, w, r, true)
	if err != nil {
		a.serverError(w, err)
		return
	}
	data, err := a.sessions.Load(ctx, sid)
	if err != nil {
		a.serverError(w, err)
		return
	}

	email := data.Email()
	authorized := false
	if email != "" {
		record, err := a.cache.Get(ctx, email)
		if err != nil {
			a.serverError(w, err)
			return
		}
		authorized = record != nil
	}

	a.render(w, homeTmpl, map[string]any{
		"Email":      email,
		"Authorized": authorized,
	})
}

// handleLogin records the visitor's email and bounces them to the
// authorization page.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		a.redirectError(w, r, "an email address is required")
		return
	}

	sid, err := a.sessions.CurrentID(ctx, w, r, true)
	if err != nil {
		a.serverError(w, err)
		return
	}
	data, err := a.sessions.Load(ctx, sid)
	if err != nil {
		a.serverError(w, err)
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		a.serverError(w, err)
		return
	}

	data = data.Add(session.KeyEmail, email).Add(sessionKeyState, state)
	if err := a.sessions.Save(ctx, data, sid); err != nil {
		a.serverError(w, err)
		return
	}

	http.Redirect(w, r, a.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback finishes the OAuth dance: the state must match the one
// stashed in the session, then the code is exchanged and the token cached
// under the session's email.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sid, err := a.sessions.CurrentID(ctx, w, r, false)
	if err != nil || sid == "" {
		a.redirectError(w, r, "no active session, start over")
		return
	}
	data, err := a.sessions.Load(ctx, sid)
	if err != nil {
		a.serverError(w, err)
		return
	}

	email := data.Email()
	if email == "" {
		a.redirectError(w, r, "no login in progress, start over")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		a.redirectError(w, r, "authorization was denied: "+errParam)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" || state != data.String(sessionKeyState) {
		a.redirectError(w, r, "state mismatch, start over")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		a.redirectError(w, r, "no authorization code received")
		return
	}

	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		a.redirectError(w, r, "token exchange failed")
		return
	}

	if err := a.cache.Put(ctx, email, auth.RecordFromToken(token, auth.RequiredScope)); err != nil {
		a.serverError(w, err)
		return
	}

	a.logger.Info("user authorized", "email", email)
	http.Redirect(w, r, "/login/success", http.StatusFound)
}

func (a *App) handleLoginSuccess(w http.ResponseWriter, r *http.Request) {
	a.render(w, loginSuccessTmpl, nil)
}

func (a *App) handleLoginError(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "something went wrong"
	}
	a.render(w, loginErrorTmpl, map[string]any{"Reason": reason})
}

// handleRun executes one reconciliation for the session's user. An ambiguous
// source sends the visitor to the manual selection page instead of guessing.
func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	catalog, data, ok := a.sessionCatalog(w, r)
	if !ok {
		return
	}

	engine := tasks.NewEngine(catalog, a.logger)
	result, err := engine.Run(ctx, tasks.Options{SourceID: data.PlaylistID()})
	switch {
	case err == nil:
	case errors.Is(err, tasks.ErrSourceAmbiguous):
		http.Redirect(w, r, "/run/manual-selection", http.StatusFound)
		return
	case errors.Is(err, tasks.ErrSourceNotFound):
		a.redirectError(w, r, `no "Discover Weekly" playlist found; pick one manually at /run/manual-selection`)
		return
	default:
		a.logger.Error("run failed", "error", err)
		a.serverError(w, err)
		return
	}

	query := url.Values{}
	query.Set("playlist", result.PlaylistName)
	query.Set("albums", strconv.Itoa(result.Albums))
	query.Set("tracks", strconv.Itoa(result.TracksAdded))
	http.Redirect(w, r, "/run/finished?"+query.Encode(), http.StatusFound)
}

// handleSelectForm lists the user's playlists grouped by owner so they can
// pick the source by hand.
func (a *App) handleSelectForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	catalog, _, ok := a.sessionCatalog(w, r)
	if !ok {
		return
	}

	groups, err := tasks.NewLocator(catalog).PlaylistsByOwner(ctx)
	if err != nil {
		a.serverError(w, err)
		return
	}

	a.render(w, selectTmpl, map[string]any{"Groups": groups})
}

// handleSelectSubmit stores the chosen source playlist in the session and
// reruns. The choice may be a playlist picked from the list or a pasted
// playlist address.
func (a *App) handleSelectSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sid, err := a.sessions.CurrentID(ctx, w, r, false)
	if err != nil || sid == "" {
		a.redirectError(w, r, "no active session, start over")
		return
	}
	data, err := a.sessions.Load(ctx, sid)
	if err != nil {
		a.serverError(w, err)
		return
	}

	choice := strings.TrimSpace(r.FormValue("playlist"))
	if address := strings.TrimSpace(r.FormValue("address")); address != "" {
		id, err := tasks.ParsePlaylistAddress(address)
		if err != nil {
			a.redirectError(w, r, "that does not look like a playlist link")
			return
		}
		choice = id
	}
	if choice == "" {
		a.redirectError(w, r, "pick a playlist or paste a link")
		return
	}

	data = data.Add(session.KeyPlaylistID, choice)
	if err := a.sessions.Save(ctx, data, sid); err != nil {
		a.serverError(w, err)
		return
	}

	http.Redirect(w, r, "/run", http.StatusFound)
}

func (a *App) handleFinished(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	a.render(w, finishedTmpl, map[string]any{
		"Playlist": query.Get("playlist"),
		"Albums":   query.Get("albums"),
		"Tracks":   query.Get("tracks"),
	})
}

// sessionCatalog resolves the session's email to a cached token and builds a
// catalog client for it. A missing session or absent token redirects to the
// login flow and reports false.
func (a *App) sessionCatalog(w http.ResponseWriter, r *http.Request) (services.Catalog, session.Data, bool) {
	ctx := r.Context()

	sid, err := a.sessions.CurrentID(ctx, w, r, false)
	if err != nil || sid == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, session.Data{}, false
	}
	data, err := a.sessions.Load(ctx, sid)
	if err != nil {
		a.serverError(w, err)
		return nil, session.Data{}, false
	}

	email := data.Email()
	if email == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, session.Data{}, false
	}

	record, err := a.cache.Get(ctx, email)
	if err != nil {
		a.serverError(w, err)
		return nil, session.Data{}, false
	}
	if record == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, session.Data{}, false
	}

	catalog, err := a.catalogFor(record.AccessToken)
	if err != nil {
		a.serverError(w, err)
		return nil, session.Data{}, false
	}
	return catalog, data, true
}

func (a *App) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("template render failed", "template", tmpl.Name(), "error", err)
	}
}

func (a *App) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/login/error?reason="+url.QueryEscape(reason), http.StatusFound)
}

func (a *App) serverError(w http.ResponseWriter, err error) {
	a.logger.Error("internal error", "error", err)
	http.Error(w, fmt.Sprintf("internal error: %v", err), http.StatusInternalServerError)
}
