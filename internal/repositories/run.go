package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/shared"
)

const runColumns = `id, sequence, user_id, market, playlist_id, artist_count, total_seen, matched_count, status, error, created_at, updated_at, finished_at`

// RunRepository implements models.Repository[*models.BuildRun] for build history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.BuildRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.UserID(),
		run.Market(),
		run.PlaylistID(),
		run.ArtistCount(),
		run.TotalSeen(),
		run.MatchedCount(),
		string(run.Status()),
		run.ErrorMessage(),
		run.CreatedAt(),
		run.UpdatedAt(),
		nullTime(run.FinishedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	return scanRun(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ?`
	return scanRun(r.db.QueryRow(query, sequence))
}

// Latest retrieves the most recent run
func (r *RunRepository) Latest() (*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC LIMIT 1`
	return scanRun(r.db.QueryRow(query))
}

// Update writes the run's playlist, counts and status
func (r *RunRepository) Update(run *models.BuildRun) error {
	return update(r.db, run)
}

// Finish updates run and replaces its matches in one transaction.
func (r *RunRepository) Finish(run *models.BuildRun, matches []models.RunMatch) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := update(tx, run); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM run_matches WHERE run_id = ?`, run.ID()); err != nil {
		return fmt.Errorf("failed to clear run matches: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_matches (run_id, position, release_id, name, track_uri, cover_url)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.Exec(run.ID(), m.Position, m.ReleaseID, m.Name, m.TrackURI, m.CoverURL); err != nil {
			return fmt.Errorf("failed to insert match %s: %w", m.ReleaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Delete removes a run and its matches
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported criteria: "user_id" (string), "status" (string or [models.RunStatus]), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BuildRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Matches retrieves the releases matched by a run in playlist order
func (r *RunRepository) Matches(runID string) ([]models.RunMatch, error) {
	rows, err := r.db.Query(`
		SELECT run_id, position, release_id, name, track_uri, cover_url
		FROM run_matches
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run matches: %w", err)
	}
	defer rows.Close()

	var matches []models.RunMatch
	for rows.Next() {
		var m models.RunMatch
		if err := rows.Scan(&m.RunID, &m.Position, &m.ReleaseID, &m.Name, &m.TrackURI, &m.CoverURL); err != nil {
			return nil, fmt.Errorf("failed to scan run match: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func update(db execer, run *models.BuildRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET playlist_id = ?, artist_count = ?, total_seen = ?, matched_count = ?, status = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := db.Exec(query,
		run.PlaylistID(),
		run.ArtistCount(),
		run.TotalSeen(),
		run.MatchedCount(),
		string(run.Status()),
		run.ErrorMessage(),
		now,
		nullTime(run.FinishedAt()),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.BuildRun]
func scanRun(row scanner) (*models.BuildRun, error) {
	var (
		id           string
		sequence     int
		userID       string
		market       string
		playlistID   string
		artistCount  int
		totalSeen    int
		matchedCount int
		status       string
		errMsg       string
		createdAt    time.Time
		updatedAt    time.Time
		finishedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &market, &playlistID, &artistCount, &totalSeen, &matchedCount, &status, &errMsg, &createdAt, &updatedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewBuildRun(sequence, userID, market)
	run.SetID(id)
	run.SetPlaylistID(playlistID)
	run.SetCounts(artistCount, totalSeen, matchedCount)
	run.SetStatus(models.RunStatus(status))
	run.SetError(errMsg)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}

	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ models.Repository[*models.BuildRun] = (*RunRepository)(nil)
