package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [BuildRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// BuildRun records one affinity playlist build.
type BuildRun struct {
	id           string
	sequence     int
	userID       string
	market       string
	playlistID   string
	artistCount  int
	totalSeen    int
	matchedCount int
	status       RunStatus
	errMsg       string
	createdAt    time.Time
	updatedAt    time.Time
	finishedAt   *time.Time
}

// NewBuildRun creates a running [BuildRun] for the given user and market.
func NewBuildRun(sequence int, userID, market string) *BuildRun {
	now := time.Now()
	return &BuildRun{
		sequence:  sequence,
		userID:    userID,
		market:    market,
		status:    RunRunning,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *BuildRun) ID() string             { return r.id }
func (r *BuildRun) Sequence() int          { return r.sequence }
func (r *BuildRun) UserID() string         { return r.userID }
func (r *BuildRun) Market() string         { return r.market }
func (r *BuildRun) PlaylistID() string     { return r.playlistID }
func (r *BuildRun) ArtistCount() int       { return r.artistCount }
func (r *BuildRun) TotalSeen() int         { return r.totalSeen }
func (r *BuildRun) MatchedCount() int      { return r.matchedCount }
func (r *BuildRun) Status() RunStatus      { return r.status }
func (r *BuildRun) ErrorMessage() string   { return r.errMsg }
func (r *BuildRun) CreatedAt() time.Time   { return r.createdAt }
func (r *BuildRun) UpdatedAt() time.Time   { return r.updatedAt }
func (r *BuildRun) FinishedAt() *time.Time { return r.finishedAt }

func (r *BuildRun) SetID(id string)                 { r.id = id }
func (r *BuildRun) SetSequence(sequence int)        { r.sequence = sequence }
func (r *BuildRun) SetCreatedAt(t time.Time)        { r.createdAt = t }
func (r *BuildRun) SetUpdatedAt(t time.Time)        { r.updatedAt = t }
func (r *BuildRun) SetFinishedAt(t *time.Time)      { r.finishedAt = t }
func (r *BuildRun) SetStatus(status RunStatus)      { r.status = status }
func (r *BuildRun) SetError(msg string)             { r.errMsg = msg }
func (r *BuildRun) SetPlaylistID(playlistID string) { r.playlistID = playlistID }

// SetCounts records the artist, release and match totals of the run.
func (r *BuildRun) SetCounts(artists, seen, matched int) {
	r.artistCount = artists
	r.totalSeen = seen
	r.matchedCount = matched
}

// Succeed marks the run finished with the produced playlist.
func (r *BuildRun) Succeed(playlistID string) {
	now := time.Now()
	r.playlistID = playlistID
	r.status = RunSucceeded
	r.errMsg = ""
	r.finishedAt = &now
	r.updatedAt = now
}

// Fail marks the run finished with err.
func (r *BuildRun) Fail(err error) {
	now := time.Now()
	r.status = RunFailed
	if err != nil {
		r.errMsg = err.Error()
	}
	r.finishedAt = &now
	r.updatedAt = now
}

// Validate checks required fields and status consistency.
func (r *BuildRun) Validate() error {
	if r.userID == "" {
		return fmt.Errorf("user id is required")
	}
	switch r.status {
	case RunRunning, RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	if r.artistCount < 0 || r.totalSeen < 0 || r.matchedCount < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	if r.matchedCount > r.totalSeen {
		return fmt.Errorf("matched count %d exceeds releases seen %d", r.matchedCount, r.totalSeen)
	}
	return nil
}

// RunMatch is a release matched during a build run, with the track chosen for the playlist.
type RunMatch struct {
	RunID     string
	Position  int
	ReleaseID string
	Name      string
	TrackURI  string
	CoverURL  string
}
