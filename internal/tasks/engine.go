package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/paging"
	"github.com/desertthunder/radar/internal/shared"
)

// Catalog is the remote music catalog a build run reads from and writes to.
type Catalog interface {
	ReleaseResolver
	PlaylistWriter

	CurrentUser(ctx context.Context) (*models.User, error)
	SavedTracks(ctx context.Context, pageSize, pageIndex int) (models.Page[models.SavedTrack], error)
	NewReleases(ctx context.Context, market string, pageSize, pageIndex int) (models.Page[models.Release], error)
}

// RunRecorder persists build runs. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Create(run *models.BuildRun) error
	Finish(run *models.BuildRun, matches []models.RunMatch) error
}

// BuildOptions controls a single build run.
type BuildOptions struct {
	PlaylistName string
	Description  string
	Public       bool
	PageSize     int
	Market       string // overrides the user's profile market when set
	DryRun       bool   // skip playlist creation and track append
}

// OptionsFromConfig returns the build options configured in [shared.BuildConfig].
func OptionsFromConfig(c shared.BuildConfig) BuildOptions {
	return BuildOptions{
		PlaylistName: c.PlaylistName,
		Description:  c.Description,
		Public:       c.Public,
		PageSize:     c.PageSize,
		Market:       c.Market,
	}
}

// BuildResult summarizes a finished build run.
type BuildResult struct {
	RunID         string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	User          *models.User     `json:"user" yaml:"user"`
	Market        string           `json:"market" yaml:"market"`
	ArtistCount   int              `json:"artist_count" yaml:"artist_count"`
	TotalSeen     int              `json:"total_seen" yaml:"total_seen"`
	MatchedCount  int              `json:"matched_count" yaml:"matched_count"`
	PlaylistID    string           `json:"playlist_id,omitempty" yaml:"playlist_id,omitempty"`
	DryRun        bool             `json:"dry_run" yaml:"dry_run"`
	Matches       []models.Release `json:"matches" yaml:"matches"`
	TrackURIs     []string         `json:"track_uris" yaml:"track_uris"`
	Skipped       []SlotRef        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	MissingTracks []string         `json:"missing_tracks,omitempty" yaml:"missing_tracks,omitempty"`

	trackByRelease map[string]string
}

// Covers returns the first image of each matched release, skipping releases without one.
func (r *BuildResult) Covers() []string {
	var covers []string
	for _, m := range r.Matches {
		if c := m.Cover(); c != "" {
			covers = append(covers, c)
		}
	}
	return covers
}

// Observer receives per-page diagnostics from the affinity and match passes.
type Observer interface {
	PageDone(phase Phase, page, count, total int)
	BadSlot(phase Phase, ref SlotRef)
}

type nopObserver struct{}

func (nopObserver) PageDone(Phase, int, int, int) {}
func (nopObserver) BadSlot(Phase, SlotRef)        {}

// reporter mirrors observer events to the logger and the progress channel.
type reporter struct {
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

func (r reporter) PageDone(phase Phase, page, count, total int) {
	switch phase {
	case PhaseAffinity:
		r.logger.Debug("saved tracks page processed", "page", page, "added", count, "artists", total)
		sendProgress(r.progress, affinityPageUpdate(page, count, total))
	case PhaseMatch:
		r.logger.Debug("new releases page processed", "page", page, "matched", count, "seen", total)
		sendProgress(r.progress, matchPageUpdate(page, count, total))
	}
}

func (r reporter) BadSlot(phase Phase, ref SlotRef) {
	r.logger.Warn("bad data in listing", "phase", phase, "page", ref.Page, "index", ref.Slot)
	sendProgress(r.progress, badSlotUpdate(phase, ref))
}

// ReleaseEngine builds playlists of new releases by artists in the user's library.
type ReleaseEngine struct {
	catalog  Catalog
	recorder RunRecorder
	logger   *log.Logger
}

// NewReleaseEngine creates a ReleaseEngine reading from catalog.
func NewReleaseEngine(catalog Catalog, logger *log.Logger) *ReleaseEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ReleaseEngine{catalog: catalog, logger: logger}
}

// SetRecorder enables run persistence.
func (e *ReleaseEngine) SetRecorder(r RunRecorder) {
	e.recorder = r
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one build: profile, affinity pass, match pass, batch resolve,
// then playlist creation and append.
//
// The affinity set is complete before the first release page is requested.
func (e *ReleaseEngine) Run(ctx context.Context, opts BuildOptions, progress chan<- ProgressUpdate) (*BuildResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.PageSize < 1 || opts.PageSize > 50 {
		return nil, fmt.Errorf("%w: page size must be between 1 and 50, got %d", shared.ErrInvalidArgument, opts.PageSize)
	}

	sendProgress(progress, fetchProfileUpdate())
	user, err := e.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	market := opts.Market
	if market == "" {
		market = user.Market
	}
	logger := shared.WithLogger(e.logger, "user", user.ID, "market", market)
	logger.Info("build started", "dry_run", opts.DryRun)

	result := &BuildResult{User: user, Market: market, DryRun: opts.DryRun}
	run := e.startRun(logger, user.ID, market)
	if run != nil {
		result.RunID = run.ID()
	}

	if err := e.build(ctx, logger, opts, result, progress); err != nil {
		e.failRun(logger, run, err)
		return result, err
	}

	e.finishRun(logger, run, result)
	sendProgress(progress, recordRunUpdate(result))
	logger.Info("build finished",
		"artists", result.ArtistCount,
		"seen", result.TotalSeen,
		"matched", result.MatchedCount,
		"playlist", result.PlaylistID,
	)
	return result, nil
}

func (e *ReleaseEngine) build(ctx context.Context, logger *log.Logger, opts BuildOptions, result *BuildResult, progress chan<- ProgressUpdate) error {
	obs := reporter{logger: logger, progress: progress}

	affinity, err := BuildAffinity(paging.Pages[models.SavedTrack](ctx, e.catalog.SavedTracks, opts.PageSize), obs)
	if err != nil {
		return err
	}
	result.ArtistCount = affinity.Len()
	logger.Info("affinity set built", "artists", affinity.Len())

	newReleases := func(ctx context.Context, pageSize, pageIndex int) (models.Page[models.Release], error) {
		return e.catalog.NewReleases(ctx, result.Market, pageSize, pageIndex)
	}
	matched, err := MatchReleases(paging.Pages[models.Release](ctx, newReleases, opts.PageSize), affinity, obs)
	if err != nil {
		return err
	}
	result.TotalSeen = matched.TotalSeen
	result.MatchedCount = matched.Matches.Len()
	result.Matches = matched.Matches.Releases()
	result.Skipped = append(affinity.Skipped(), matched.Skipped...)
	logger.Info("new releases matched", "seen", matched.TotalSeen, "matched", matched.Matches.Len(), "skipped", len(result.Skipped))

	ids := matched.Matches.IDs()
	sendProgress(progress, resolveUpdate(len(Partition(ids, MaxBatchSize)), len(ids)))
	resolved, err := ResolveReleases(ctx, e.catalog, result.Market, ids)
	if err != nil {
		return err
	}

	result.trackByRelease = make(map[string]string, len(resolved))
	for _, r := range resolved {
		if len(r.Tracks) > 0 {
			result.trackByRelease[r.ID] = r.Tracks[0].URI
		}
	}

	uris, missing := FirstTrackURIs(resolved)
	for _, id := range missing {
		logger.Warn("release has no tracks", "release", id)
	}
	result.TrackURIs = uris
	result.MissingTracks = missing

	if opts.DryRun {
		logger.Info("dry run, skipping playlist", "tracks", len(uris))
		return nil
	}

	spec := PlaylistSpec{Name: opts.PlaylistName, Description: opts.Description, Public: opts.Public}
	playlistID, err := AssemblePlaylist(ctx, e.catalog, result.User.ID, spec, uris, progress)
	result.PlaylistID = playlistID
	return err
}

func (e *ReleaseEngine) startRun(logger *log.Logger, userID, market string) *models.BuildRun {
	if e.recorder == nil {
		return nil
	}
	run := models.NewBuildRun(0, userID, market)
	if err := e.recorder.Create(run); err != nil {
		logger.Warn("failed to record run", "error", err)
		return nil
	}
	return run
}

func (e *ReleaseEngine) finishRun(logger *log.Logger, run *models.BuildRun, result *BuildResult) {
	if run == nil {
		return
	}
	run.SetCounts(result.ArtistCount, result.TotalSeen, result.MatchedCount)
	run.Succeed(result.PlaylistID)
	if err := e.recorder.Finish(run, RunMatches(run.ID(), result)); err != nil {
		logger.Warn("failed to record run result", "run", run.ID(), "error", err)
	}
}

func (e *ReleaseEngine) failRun(logger *log.Logger, run *models.BuildRun, cause error) {
	if run == nil {
		return
	}
	run.Fail(cause)
	if err := e.recorder.Finish(run, nil); err != nil {
		logger.Warn("failed to record run failure", "run", run.ID(), "error", err)
	}
}

// RunMatches converts the matched releases of result into persisted rows.
func RunMatches(runID string, result *BuildResult) []models.RunMatch {
	rows := make([]models.RunMatch, len(result.Matches))
	for i, m := range result.Matches {
		rows[i] = models.RunMatch{
			RunID:     runID,
			Position:  i,
			ReleaseID: m.ID,
			Name:      m.Name,
			TrackURI:  result.trackByRelease[m.ID],
			CoverURL:  m.Cover(),
		}
	}
	return rows
}
