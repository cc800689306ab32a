package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
)

// RunRepository persists pipeline runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start records a run that began at startedAt.
func (r *RunRepository) Start(id string, startedAt time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: run ID is required", shared.ErrInvalidInput)
	}
	if _, err := r.db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, startedAt); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final counts of the run described by report.
func (r *RunRepository) Finish(report *models.Report) error {
	finishedAt := report.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	result, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, downloaded = ?, skipped = ?, failed = ? WHERE id = ?`,
		finishedAt, report.Downloaded, report.Skipped, report.Failed, report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return expectRow(result, "run", report.RunID)
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT id, started_at, finished_at, downloaded, skipped, failed FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// Latest returns up to limit runs, most recent first.
func (r *RunRepository) Latest(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 1
	}

	rows, err := r.db.Query(`SELECT id, started_at, finished_at, downloaded, skipped, failed FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		finishedAt sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Downloaded, &run.Skipped, &run.Failed); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
