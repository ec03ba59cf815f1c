package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web flow until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	sess, err := r.ensureSession(cmd)
	if err != nil {
		return err
	}
	if r.exchanger == nil {
		return fmt.Errorf("%w: no OAuth client configured", shared.ErrMissingCredentials)
	}
	engine, err := r.ensureEngine(cmd, true)
	if err != nil {
		return err
	}

	opts, err := r.buildOptions(cmd)
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "component", "web")
	app := web.NewApp(sess, r.exchanger, engine, opts, logger)
	app.SecureCookies(cmd.Bool("secure-cookies"))

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           web.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	r.writePlain("→ Serving on http://%s (visit /login, then /start)\n", addr)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
