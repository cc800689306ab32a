package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/repositories"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

type historyRun struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Downloaded int             `json:"downloaded"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Tracks     []historyRecord `json:"tracks"`
}

type historyRecord struct {
	Playlist string `json:"playlist"`
	Query    string `json:"query"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Path     string `json:"path"`
	VideoID  string `json:"video_id,omitempty"`
	Attempts int    `json:"attempts"`
}

// History prints the most recent runs, or the one named by --run, with their failures first.
//
// --prune first drops failures whose destination file exists, so only outstanding failures remain.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db := r.config.Database
	if db.Path == "" {
		return fmt.Errorf("%w: database.path is empty, history is disabled", shared.ErrInvalidConfig)
	}

	conn, err := shared.OpenHistory(db.Path, db.MaxOpenConns, db.MaxIdleConns)
	if err != nil {
		return err
	}
	defer conn.Close()

	history := repositories.NewHistoryAdapter(conn)
	asJSON := cmd.Bool("json")

	if cmd.Bool("prune") {
		pruned, err := history.PruneResolved(shared.FileExists)
		if err != nil {
			return err
		}
		r.logger.Info("pruned resolved failures", "count", pruned)
		if !asJSON {
			r.writePlain("Pruned %d failures that have since been downloaded\n\n", pruned)
		}
	}

	var runs []*models.Run
	if id := cmd.String("run"); id != "" {
		run, err := history.Runs().Get(id)
		if err != nil {
			return err
		}
		runs = []*models.Run{run}
	} else if runs, err = history.Runs().Latest(max(cmd.Int("limit"), 1)); err != nil {
		return err
	}

	all := cmd.Bool("all")
	out := make([]historyRun, 0, len(runs))
	for _, run := range runs {
		records, err := history.Downloads().ListByRun(run.ID)
		if err != nil {
			return err
		}
		out = append(out, toHistoryRun(run, records, all))
	}

	if asJSON {
		return r.writeJSON(out, true)
	}

	if len(out) == 0 {
		return r.writePlain("No runs recorded in %s yet\n", db.Path)
	}
	for _, run := range out {
		r.writeRun(run)
	}
	return nil
}

func toHistoryRun(run *models.Run, records []*models.DownloadRecord, all bool) historyRun {
	h := historyRun{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Downloaded: run.Downloaded,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Tracks:     []historyRecord{},
	}
	for _, rec := range records {
		if !all && rec.State() != models.StateFailed {
			continue
		}
		h.Tracks = append(h.Tracks, historyRecord{
			Playlist: rec.Playlist(),
			Query:    rec.Query(),
			State:    string(rec.State()),
			Reason:   rec.Reason(),
			Path:     rec.Path(),
			VideoID:  rec.VideoID(),
			Attempts: rec.Attempts(),
		})
	}
	return h
}

func (r *Runner) writeRun(run historyRun) {
	status := "unfinished"
	if run.FinishedAt != nil {
		status = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
	}

	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("Run %s\n", run.ID)
	r.writePlain("Started %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), status)
	r.writePlain("%d downloaded, %d skipped, %d failed\n", run.Downloaded, run.Skipped, run.Failed)
	r.writePlain("═══════════════════════════════════════\n")

	for _, rec := range run.Tracks {
		mark := "✓"
		switch models.TrackState(rec.State) {
		case models.StateFailed:
			mark = "✗"
		case models.StateSkipped:
			mark = "-"
		}
		if rec.Reason != "" {
			r.writePlain("  %s [%s] %s: %s\n", mark, rec.Playlist, rec.Query, rec.Reason)
			continue
		}
		r.writePlain("  %s [%s] %s\n", mark, rec.Playlist, rec.Query)
	}
	r.writePlain("\n")
}
