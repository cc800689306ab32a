// Package repositories implements SQLite persistence for the download history.
//
// Records are append-only per run. `ytdrop history --prune` soft-deletes failures whose destination has since been
// written, via deleted_at; queries exclude soft-deleted rows.
//
// Key Implementations:
//   - [DownloadRepository] : Per-track outcomes, queryable by run and state
//   - [RunRepository] : Pipeline runs and their final counts
//   - [HistoryAdapter] : Records a pipeline run through both repositories
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
