package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/esolitos/spori.fi/internal/auth"
	"github.com/esolitos/spori.fi/internal/server"
	"github.com/esolitos/spori.fi/internal/session"
)

// Serve runs the browser-facing web application until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	blobStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	sessionTTL := time.Duration(r.config.Session.TTLHours) * time.Hour
	sessions := session.NewManager(blobStore, r.config.Session.Secret, sessionTTL)
	cache := auth.NewCache(blobStore, r.oauthConfig(), r.logger)
	app := server.NewApp(sessions, cache, r.oauthConfig(), r.logger)

	httpServer := &http.Server{
		Addr:    r.config.Addr(),
		Handler: app.Router(),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("listening at http://%v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
