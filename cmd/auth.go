package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/server"
	"github.com/desertthunder/radar/internal/session"
	"github.com/desertthunder/radar/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 2 * time.Minute

// AuthLogin runs the authorization code flow with a temporary local callback server.
//
// The issued credential is saved to the config file through the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
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

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.exchanger.AuthCodeURL(state)
	oauthHandler := server.NewOAuthHandler(sess, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(oauthHandler)

	serverAddr := config.Server.Addr()
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serverAddr, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify login...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	r.logger.Info("spotify authentication successful")
	r.writePlain("✓ Authenticated with Spotify\n")
	r.writePlain("  Credentials saved to %s\n", r.configPath)
	return nil
}

type authStatus struct {
	Authenticated   bool         `json:"authenticated" yaml:"authenticated"`
	HasRefreshToken bool         `json:"has_refresh_token" yaml:"has_refresh_token"`
	Expiry          string       `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Scopes          []string     `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	MissingScopes   []string     `json:"missing_scopes,omitempty" yaml:"missing_scopes,omitempty"`
	User            *models.User `json:"user,omitempty" yaml:"user,omitempty"`
	Error           string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// AuthStatus reports the stored credential and whether it still works against the profile endpoint.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.ensureSession(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.ensureCatalog(cmd)
	if err != nil {
		return err
	}

	user, userErr := catalog.CurrentUser(ctx)

	cred := sess.Credential()
	status := authStatus{
		Authenticated:   userErr == nil,
		HasRefreshToken: cred.RefreshToken != "",
		Scopes:          cred.Scopes,
		User:            user,
	}
	if !cred.Expiry.IsZero() {
		status.Expiry = cred.Expiry.Format(time.RFC3339)
	}
	status.MissingScopes = missingScopes(cred)
	if userErr != nil {
		status.Error = userErr.Error()
	}

	if ok, err := r.writeStructured(cmd, status); ok {
		if err != nil {
			return err
		}
		return userErr
	}

	if userErr != nil {
		r.writePlain("Authentication: ✗ Not authenticated\n")
		r.writePlain("Refresh token: %v\n", status.HasRefreshToken)
		return userErr
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	r.writePlain("User: %s (%s)\n", user.DisplayName, user.ID)
	r.writePlain("Market: %s\n", user.Market)
	if status.Expiry != "" {
		r.writePlain("Expires: %s\n", status.Expiry)
	}
	for _, scope := range status.Scopes {
		r.writePlain("  • %s\n", scope)
	}
	if len(status.MissingScopes) > 0 {
		r.logger.Warn("credential is missing scopes, run 'radar auth login' again", "missing", status.MissingScopes)
		r.writePlain("Missing scopes: %s\n", strings.Join(status.MissingScopes, " "))
	}
	return nil
}

// missingScopes lists the login scopes cred was not granted.
// A credential that records no scopes reports none missing.
func missingScopes(cred models.Credential) []string {
	if len(cred.Scopes) == 0 {
		return nil
	}
	var missing []string
	for _, scope := range session.Scopes {
		if !cred.HasScope(scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

// AuthRefresh exchanges the stored refresh token for a new credential.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.ensureSession(cmd)
	if err != nil {
		return err
	}

	ok, err := sess.EnsureValid(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &shared.AuthError{Op: "refresh", Err: shared.ErrNoRefreshToken}
	}

	cred := sess.Credential()
	r.logger.Info("credential refreshed", "expiry", cred.Expiry)
	r.writePlain("✓ Credential refreshed\n")
	if !cred.Expiry.IsZero() {
		r.writePlain("Expires: %s\n", cred.Expiry.Format(time.RFC3339))
	}
	return nil
}
