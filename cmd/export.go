package main

import (
	"context"
	"sync"

	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/tasks"
	"github.com/desertthunder/ytdrop/internal/ui"
	"github.com/urfave/cli/v3"
)

// Export writes one manifest per playlist of the configured user.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config

	outDir := cfg.Paths.ManifestDir
	if out := cmd.String("out"); out != "" {
		outDir = out
	}
	target := cfg.Credentials.Spotify.UserURL
	if user := cmd.String("user"); user != "" {
		target = user
	}

	userID, err := services.ParseUserID(target)
	if err != nil {
		return err
	}

	spotify, err := r.spotifyClient(ctx, cmd.Bool("client-credentials"))
	if err != nil {
		return err
	}

	engine := tasks.NewPlaylistEngine(spotify, nil, tasks.WithLogger(r.logger), tasks.WithMetrics(r.metrics))
	opts := tasks.ExportOpts{
		OutputDir:       outDir,
		NumWorkers:      cfg.Export.Workers,
		RateLimit:       cfg.Export.RateLimit,
		IncludeFollowed: cfg.Export.IncludeFollowed || cmd.Bool("include-followed"),
	}

	r.logger.Info("starting export", "user", userID, "out", outDir)
	progress, wait := r.printProgress()
	result, err := engine.Export(ctx, userID, opts, progress)
	wait()
	r.writeMetrics()
	if err != nil {
		return err
	}

	r.writePlain("\n%s\n", ui.RenderExport(result))
	return nil
}

// printProgress writes every update message to the output until the returned wait func is called.
func (r *Runner) printProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()
	return progress, func() {
		close(progress)
		wg.Wait()
	}
}
