package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
)

const downloadColumns = `id, sequence, run_id, playlist, artist, title, path, state, reason, video_id, attempts, created_at, updated_at`

// DownloadRepository persists [models.DownloadRecord] values.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new [DownloadRepository] with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a new record into the database with generated ID and sequence
func (r *DownloadRepository) Create(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	record.SetID(id)
	record.SetSequence(sequence)

	query := `
		INSERT INTO downloads (id, sequence, run_id, playlist, artist, title, path, state, reason, video_id, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, sequence, record.RunID(), record.Playlist(), record.Artist(), record.Title(), record.Path(),
		string(record.State()), record.Reason(), record.VideoID(), record.Attempts(), record.CreatedAt(), record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// Delete soft-deletes a record by ID
func (r *DownloadRepository) Delete(id string) error {
	query := `
		UPDATE downloads
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	return expectRow(result, "download", id)
}

// List retrieves all records matching the given criteria, excluding soft-deleted records.
//
// Supported criteria: "run_id", "playlist" and "state" (string or [models.TrackState]).
// Failed records sort first, then by sequence.
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"run_id", "playlist"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	switch state := criteria["state"].(type) {
	case string:
		if state != "" {
			query += " AND state = ?"
			args = append(args, state)
		}
	case models.TrackState:
		query += " AND state = ?"
		args = append(args, string(state))
	}

	query += " ORDER BY CASE state WHEN 'failed' THEN 0 ELSE 1 END, sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		record, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// ListByRun returns every record of runID, failures first.
func (r *DownloadRepository) ListByRun(runID string) ([]*models.DownloadRecord, error) {
	return r.List(map[string]any{"run_id": runID})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*models.DownloadRecord, error) {
	var (
		id, runID, playlist, artist, title, path string
		state, reason, videoID                   string
		sequence, attempts                       int
		createdAt, updatedAt                     time.Time
	)

	err := row.Scan(&id, &sequence, &runID, &playlist, &artist, &title, &path, &state, &reason, &videoID, &attempts, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return models.RestoreDownloadRecord(id, sequence, runID, playlist, artist, title, path, models.TrackState(state), reason, videoID, attempts, createdAt, updatedAt), nil
}

func expectRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s or already deleted", shared.ErrNotFound, kind, id)
	}
	return nil
}
