package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/radar/internal/tasks"
	"github.com/desertthunder/radar/internal/ui"
	"github.com/urfave/cli/v3"
)

// buildOptions merges command flags over the [build] config section.
func (r *Runner) buildOptions(cmd *cli.Command) (tasks.BuildOptions, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return tasks.BuildOptions{}, err
	}

	opts := tasks.OptionsFromConfig(config.Build)
	if cmd.IsSet("name") {
		opts.PlaylistName = cmd.String("name")
	}
	if cmd.IsSet("description") {
		opts.Description = cmd.String("description")
	}
	if cmd.IsSet("public") {
		opts.Public = cmd.Bool("public")
	}
	if cmd.IsSet("market") {
		opts.Market = cmd.String("market")
	}
	if cmd.IsSet("page-size") {
		opts.PageSize = int(cmd.Int("page-size"))
	}
	opts.DryRun = cmd.Bool("dry-run")
	return opts, nil
}

// Build runs the release engine once and prints the summary.
//
// Progress lines are printed while the build runs unless --quiet or a structured output format is set.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.buildOptions(cmd)
	if err != nil {
		return err
	}

	engine, err := r.ensureEngine(cmd, !cmd.Bool("no-record"))
	if err != nil {
		return err
	}

	quiet := cmd.Bool("quiet") || cmd.Bool("json") || cmd.Bool("yaml")

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !quiet {
				r.writePlain("%s\n", ui.RenderProgress(update))
			}
		}
	}()

	result, err := engine.Run(ctx, opts, progress)
	close(progress)
	<-done

	if err != nil {
		if result != nil && result.PlaylistID != "" {
			r.logger.Warn("playlist created but not completed", "playlist", result.PlaylistID)
		}
		return fmt.Errorf("build failed: %w", err)
	}

	if ok, err := r.writeStructured(cmd, result); ok {
		return err
	}

	return r.writePlain("\n%s\n", ui.RenderResult(result))
}
