package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytdrop/internal/formatter"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/repositories"
	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/desertthunder/ytdrop/internal/tasks"
	"github.com/desertthunder/ytdrop/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/ytdrop-tui.log"

// Download runs the pipeline over every manifest.
//
// Per-track failures only show up in the report; the command fails when the manifest directory is missing
// or the run is interrupted.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	useTUI := cmd.Bool("tui")

	if useTUI {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	opts := tasks.DownloadOpts{
		ManifestDir: cfg.Paths.ManifestDir,
		OutputDir:   cfg.Paths.OutputDir,
		NumWorkers:  cfg.Download.Workers,
		SearchRate:  cfg.Download.SearchRate,
		Retries:     cfg.Download.Retries,
		RetryDelay:  cfg.Download.RetryBackoff(),
		AudioExt:    cfg.Download.AudioFormat,
		CacheSize:   cfg.Download.CacheSize,
	}
	if dir := cmd.String("manifests"); dir != "" {
		opts.ManifestDir = dir
	}
	if dir := cmd.String("out"); dir != "" {
		opts.OutputDir = dir
	}
	if n := cmd.Int("workers"); n > 0 {
		opts.NumWorkers = n
	}

	engineOpts := []tasks.EngineOption{tasks.WithLogger(r.logger), tasks.WithMetrics(r.metrics)}
	if history, closeHistory := r.openHistory(); history != nil {
		defer closeHistory()
		engineOpts = append(engineOpts, tasks.WithHistory(history))
	}
	engine := tasks.NewPlaylistEngine(nil, r.videoService(), engineOpts...)

	var report *models.Report
	var err error
	if useTUI {
		report, err = r.runTUI(ctx, engine, opts)
	} else {
		progress, wait := r.printProgress()
		report, err = engine.Download(ctx, opts, progress)
		wait()
	}
	if report == nil {
		return err
	}
	r.writeMetrics()

	if path := cmd.String("report"); path != "" {
		if werr := formatter.WriteReport(report, path); werr != nil {
			r.logger.Error("failed to write report", "path", path, "error", werr)
		} else {
			r.logger.Info("report written", "path", path)
		}
	}

	r.writePlain("\n%s\n", ui.RenderReport(report))
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("download interrupted: %w", err)
	}
	return err
}

func (r *Runner) runTUI(ctx context.Context, engine *tasks.PlaylistEngine, opts tasks.DownloadOpts) (*models.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.Report, error) {
		return engine.Download(ctx, opts, progress)
	})
	if _, err := tea.NewProgram(model).Run(); err != nil {
		cancel()
		model.Wait()
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	// Quitting early cancels the remaining tracks; the report still accounts for them.
	cancel()
	return model.Wait()
}

// videoService returns the injected service or a yt-dlp backed one built from the config.
func (r *Runner) videoService() services.VideoService {
	if r.video != nil {
		return r.video
	}

	d := r.config.Download
	opts := []services.YouTubeOption{
		services.WithAudio(d.AudioFormat, d.AudioQuality),
		services.WithYouTubeLogger(r.logger),
	}
	if d.YtdlpPath != "" {
		opts = append(opts, services.WithExecutable(shared.ExpandHome(d.YtdlpPath)))
	}
	return services.NewYouTubeService(opts...)
}

// openHistory opens the run history. An empty database path disables it; open failures are logged and the run
// continues without history.
func (r *Runner) openHistory() (*repositories.HistoryAdapter, func()) {
	db := r.config.Database
	if db.Path == "" {
		return nil, func() {}
	}

	conn, err := shared.OpenHistory(db.Path, db.MaxOpenConns, db.MaxIdleConns)
	if err != nil {
		r.logger.Warn("run history disabled", "path", db.Path, "error", err)
		return nil, func() {}
	}
	return repositories.NewHistoryAdapter(conn), func() { conn.Close() }
}
