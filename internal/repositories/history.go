package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
)

// HistoryAdapter implements tasks.HistoryRecorder using [RunRepository] and [DownloadRepository].
type HistoryAdapter struct {
	runs      *RunRepository
	downloads *DownloadRepository
}

// NewHistoryAdapter creates a new HistoryAdapter backed by db
func NewHistoryAdapter(db *sql.DB) *HistoryAdapter {
	return &HistoryAdapter{runs: NewRunRepository(db), downloads: NewDownloadRepository(db)}
}

// StartRun records the beginning of a run.
func (a *HistoryAdapter) StartRun(runID string, startedAt time.Time) error {
	return a.runs.Start(runID, startedAt)
}

// RecordResult stores the outcome of one track.
func (a *HistoryAdapter) RecordResult(runID string, res models.TrackResult) error {
	if err := a.downloads.Create(models.NewDownloadRecord(runID, res)); err != nil {
		return fmt.Errorf("failed to record %q: %w", res.Track.Query(), err)
	}
	return nil
}

// FinishRun stores the final counts.
func (a *HistoryAdapter) FinishRun(report *models.Report) error {
	return a.runs.Finish(report)
}

// Runs exposes the run repository for read access.
func (a *HistoryAdapter) Runs() *RunRepository { return a.runs }

// Downloads exposes the download repository for read access.
func (a *HistoryAdapter) Downloads() *DownloadRepository { return a.downloads }

// PruneResolved soft-deletes failed records whose destination now exists, i.e. tracks a later run downloaded.
// It returns how many records were pruned.
func (a *HistoryAdapter) PruneResolved(exists func(path string) bool) (int, error) {
	failed, err := a.downloads.List(map[string]any{"state": models.StateFailed})
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, rec := range failed {
		if !exists(rec.Path()) {
			continue
		}
		if err := a.downloads.Delete(rec.ID()); err != nil {
			return pruned, fmt.Errorf("failed to prune %q: %w", rec.Query(), err)
		}
		pruned++
	}
	return pruned, nil
}
