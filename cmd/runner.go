package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/esolitos/spori.fi/internal/auth"
	"github.com/esolitos/spori.fi/internal/services"
	"github.com/esolitos/spori.fi/internal/shared"
	"github.com/esolitos/spori.fi/internal/store"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	// blobStore is opened lazily so commands that never touch storage do
	// not require a reachable backend.
	blobStore store.Store

	// newCatalog is swapped in tests
	newCatalog func(accessToken string) (services.Catalog, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	Store  store.Store
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:    opts.Config,
		logger:    opts.Logger,
		output:    opts.Output,
		blobStore: opts.Store,
		newCatalog: func(accessToken string) (services.Catalog, error) {
			return services.NewSpotifyService(accessToken)
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, runCommand, playlistsCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig swaps in the config file named by the command's --config flag
// when it exists. Missing files keep the current (default) config so that
// env-only deployments work without one.
func (r *Runner) reloadConfig(cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.config = config
	return nil
}

// openStore opens the configured blob store backend, memoized for the
// process lifetime.
func (r *Runner) openStore(ctx context.Context) (store.Store, error) {
	if r.blobStore != nil {
		return r.blobStore, nil
	}

	var (
		s   store.Store
		err error
	)
	switch r.config.Store.Backend {
	case "redis":
		s, err = store.NewRedisStore(ctx, r.config.Store.RedisURL)
	case "sqlite":
		s, err = store.NewSQLiteStore(r.config.Store.Path)
	case "file":
		s, err = store.NewFileStore(r.config.Store.Path)
	default:
		err = fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, r.config.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	r.blobStore = s
	return s, nil
}

// tokenCache builds the token cache on top of the configured store.
func (r *Runner) tokenCache(ctx context.Context) (*auth.Cache, error) {
	s, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewCache(s, r.oauthConfig(), r.logger), nil
}

func (r *Runner) oauthConfig() *oauth2.Config {
	creds := r.config.Credentials.Spotify
	return auth.NewOAuthConfig(creds.ClientID, creds.ClientSecret, r.config.RedirectURI())
}

// userCatalog resolves the user's cached token into a catalog client.
func (r *Runner) userCatalog(ctx context.Context, userID string) (services.Catalog, error) {
	cache, err := r.tokenCache(ctx)
	if err != nil {
		return nil, err
	}

	record, err := cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: no usable token for %q, run `spori auth --user %s` first",
			shared.ErrNotAuthorized, userID, userID)
	}

	return r.newCatalog(record.AccessToken)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
