package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/ui"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:     "radar",
		Usage:    "Build a Spotify playlist of new releases from artists you already like",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, ui.RenderError(err, code == exitReauthenticate))
		logger.Error("application error", "error", err)
		runner.Close()
		stop()
		os.Exit(code)
	}
}

const (
	exitFailure        = 1
	exitReauthenticate = 2
	exitUsage          = 64
)

// exitCode maps an error to the process exit status.
//
// Authentication failures and upstream 401s ask the user to log in again.
func exitCode(err error) int {
	switch {
	case shared.IsAuthError(err), shared.StatusCode(err) == 401:
		return exitReauthenticate
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidConfig), errors.Is(err, shared.ErrMissingCredentials):
		return exitUsage
	default:
		return exitFailure
	}
}
