// Package repositories implements SQLite persistence for build runs.
//
// [RunRepository] implements models.Repository[*models.BuildRun] and also satisfies tasks.RunRecorder,
// so the build engine records each run as it starts and again when it finishes.
// Matched releases are stored in run_matches in the same transaction that closes the run.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
