package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/radar/internal/formatter"
	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/ui"
	"github.com/urfave/cli/v3"
)

type runSummary struct {
	ID           string `json:"id" yaml:"id"`
	Sequence     int    `json:"sequence" yaml:"sequence"`
	UserID       string `json:"user_id" yaml:"user_id"`
	Market       string `json:"market" yaml:"market"`
	Status       string `json:"status" yaml:"status"`
	PlaylistID   string `json:"playlist_id,omitempty" yaml:"playlist_id,omitempty"`
	MatchedCount int    `json:"matched_count" yaml:"matched_count"`
	TotalSeen    int    `json:"total_seen" yaml:"total_seen"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
}

func summarize(run *models.BuildRun) runSummary {
	return runSummary{
		ID:           run.ID(),
		Sequence:     run.Sequence(),
		UserID:       run.UserID(),
		Market:       run.Market(),
		Status:       string(run.Status()),
		PlaylistID:   run.PlaylistID(),
		MatchedCount: run.MatchedCount(),
		TotalSeen:    run.TotalSeen(),
		CreatedAt:    run.CreatedAt().Format(time.RFC3339),
	}
}

// HistoryList lists recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.ensureRuns(cmd)
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	list, err := runs.List(criteria)
	if err != nil {
		return err
	}

	summaries := make([]runSummary, len(list))
	for i, run := range list {
		summaries[i] = summarize(run)
	}

	if ok, err := r.writeStructured(cmd, summaries); ok {
		return err
	}

	if len(summaries) == 0 {
		return r.writePlain("No runs recorded yet. Run 'radar build' first.\n")
	}

	r.writePlain("%s\n", ui.Header(fmt.Sprintf("Runs (%d)", len(summaries))))
	for _, s := range summaries {
		r.writePlain("#%-4d %-9s %3d/%-4d %s  %s\n", s.Sequence, s.Status, s.MatchedCount, s.TotalSeen, s.CreatedAt, s.ID)
	}
	return nil
}

// findRun resolves a run by ID, by sequence number, or the latest run when ref is empty.
func (r *Runner) findRun(cmd *cli.Command, ref string) (*models.BuildRun, []models.RunMatch, error) {
	runs, err := r.ensureRuns(cmd)
	if err != nil {
		return nil, nil, err
	}

	var run *models.BuildRun
	switch seq, convErr := strconv.Atoi(ref); {
	case ref == "":
		run, err = runs.Latest()
	case convErr == nil:
		run, err = runs.GetBySequence(seq)
	default:
		run, err = runs.Get(ref)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find run %q: %w", ref, err)
	}

	matches, err := runs.Matches(run.ID())
	if err != nil {
		return nil, nil, err
	}
	return run, matches, nil
}

// HistoryShow prints one run with its matched releases.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	run, matches, err := r.findRun(cmd, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	report := formatter.FromRun(run, matches)

	if ok, err := r.writeStructured(cmd, struct {
		formatter.Report `yaml:",inline"`
		Matches          []models.RunMatch `json:"matches" yaml:"matches"`
	}{*report, matches}); ok {
		return err
	}

	data, err := formatter.ExportToText(report)
	if err != nil {
		return err
	}
	return formatter.WriteTo(r.output, "run", data)
}

// HistoryExport writes a run to disk in the chosen format.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	run, matches, err := r.findRun(cmd, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	report := formatter.FromRun(run, matches)
	output := cmd.String("output")

	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(report, output)
		if err != nil {
			return err
		}
		r.logger.Info("run exported", "run", run.ID(), "file", result.MatchesFile)
		r.writePlain("✓ Run exported to %s\n", result.MatchesFile)
		r.writePlain("  Metadata: %s\n", result.MetadataFile)
	case "markdown", "md":
		result, err := formatter.WriteMarkdownExport(report, output, formatter.MarkdownOptions{
			DownloadCovers: cmd.Bool("covers"),
			Client:         r.httpClient,
		})
		if err != nil {
			return err
		}
		for _, id := range result.Failed {
			r.logger.Warn("failed to download cover", "release", id)
		}
		r.logger.Info("run exported", "run", run.ID(), "dir", result.Directory)
		r.writePlain("✓ Run exported to %s\n", result.Directory)
		r.writePlain("  Files: %d\n", len(result.Files))
	case "text", "txt":
		path, err := formatter.WriteTextExport(report, output)
		if err != nil {
			return err
		}
		r.logger.Info("run exported", "run", run.ID(), "file", path)
		r.writePlain("✓ Run exported to %s\n", path)
	default:
		return fmt.Errorf("%w: unknown format %q (use csv, markdown or text)", shared.ErrInvalidArgument, format)
	}
	return nil
}
