package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ytdrop/internal/formatter"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	defaultDownloadWorkers = 3
	maxDownloadWorkers     = 16
	defaultRetryDelay      = 2 * time.Second
	defaultAudioExt        = "mp3"
)

// DownloadOpts configures [PlaylistEngine.Download].
type DownloadOpts struct {
	ManifestDir string        // Directory scanned for *.txt manifests
	OutputDir   string        // Root of <playlist>/<title>.<ext>
	NumWorkers  int           // Concurrent downloads (default 3)
	SearchRate  float64       // Searches per second across all workers, 0 for unlimited
	Retries     int           // Extra download attempts for transient failures; negative disables retrying
	RetryDelay  time.Duration // Pause between download attempts (default 2s)
	AudioExt    string        // Output extension (default mp3)
	CacheSize   int           // Search cache entries
	CacheTTL    time.Duration // Search cache entry lifetime
}

// downloadJob is one scheduled manifest line. slot is its position in the run plan.
type downloadJob struct {
	slot   int
	result models.TrackResult
}

// Download resolves every manifest line under opts.ManifestDir to an audio file under opts.OutputDir.
//
// Lines whose destination already exists are skipped without touching the network. Per-track failures are
// recorded in the report and never stop the run. A missing manifest directory is fatal and yields no report.
// A canceled ctx fails the remaining tracks and is returned alongside the report.
func (e *PlaylistEngine) Download(ctx context.Context, opts DownloadOpts, progress chan<- ProgressUpdate) (*models.Report, error) {
	if e.video == nil {
		return nil, fmt.Errorf("%w: video service not configured", shared.ErrInvalidArgument)
	}

	paths, err := formatter.DiscoverManifests(opts.ManifestDir)
	if err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(opts.AudioExt, ".")
	if ext == "" {
		ext = defaultAudioExt
	}

	plan, jobs := e.planDownloads(paths, opts.OutputDir, ext)
	e.sendProgress(progress, readManifestsUpdate(len(paths), len(plan), len(jobs)))

	report := &models.Report{RunID: shared.GenerateID(), StartedAt: e.now()}
	logger := shared.WithLogger(e.logger, "run", report.RunID)
	logger.Info("download run started", "manifests", len(paths), "tracks", len(plan), "queued", len(jobs))
	e.recordHistory(func(h HistoryRecorder) error { return h.StartRun(report.RunID, report.StartedAt) })

	step := 0
	finish := func(res models.TrackResult) {
		step++
		e.metrics.TrackFinished(string(res.State))
		e.recordHistory(func(h HistoryRecorder) error { return h.RecordResult(report.RunID, res) })
		e.sendProgress(progress, trackFinishedUpdate(step, len(plan), res))
	}

	for _, res := range plan {
		if res.State == models.StateSkipped {
			logger.Debug("skipping track", "playlist", res.Playlist, "track", res.Track.Query(), "reason", res.ReasonText())
			finish(res)
		}
	}

	for res := range e.runPool(ctx, opts, jobs, progress, len(plan)) {
		plan[res.slot] = res.result
		finish(res.result)
	}

	for _, res := range plan {
		report.Add(res)
	}
	report.FinishedAt = e.now()

	e.recordHistory(func(h HistoryRecorder) error { return h.FinishRun(report) })
	e.metrics.RunFinished(report.FinishedAt)
	logger.Info("download run finished",
		"downloaded", report.Downloaded, "skipped", report.Skipped, "failed", report.Failed,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	return report, ctx.Err()
}

// planDownloads reads every manifest and decides the fate of each line. Unreadable manifests are logged and left
// out of the plan.
//
// The returned plan holds one result per line in manifest order; jobs references the pending entries by slot.
func (e *PlaylistEngine) planDownloads(paths []string, outputDir, ext string) ([]models.TrackResult, []downloadJob) {
	var plan []models.TrackResult
	var jobs []downloadJob
	seen := make(map[string]string) // destination -> query that claimed it

	for _, path := range paths {
		manifest, err := formatter.ReadManifest(path)
		if err != nil {
			e.logger.Error("skipping unreadable manifest", "path", path, "error", err)
			continue
		}

		dir := filepath.Join(outputDir, shared.SanitizeFilename(manifest.Playlist))
		for i, track := range manifest.Tracks {
			res := models.TrackResult{
				Playlist: manifest.Playlist,
				Index:    i,
				Track:    track,
				Path:     filepath.Join(dir, track.FileName(ext)),
				State:    models.StatePending,
			}

			claimedBy, claimed := seen[res.Path]
			switch {
			case claimed:
				res.State = models.StateSkipped
				res.Reason = fmt.Errorf("%w: %s", shared.ErrDuplicate, res.Path)
				e.logger.Warn("not downloading, destination already claimed",
					"playlist", manifest.Playlist, "track", track.Query(), "claimed_by", claimedBy, "path", res.Path)
			case shared.FileExists(res.Path):
				res.State = models.StateSkipped
			default:
				jobs = append(jobs, downloadJob{slot: len(plan), result: res})
			}
			if !claimed {
				seen[res.Path] = track.Query()
			}
			plan = append(plan, res)
		}
	}
	return plan, jobs
}

// runPool fans jobs out to the worker pool and returns the channel their results arrive on.
// The channel is closed once every job has produced a result.
func (e *PlaylistEngine) runPool(ctx context.Context, opts DownloadOpts, jobs []downloadJob, progress chan<- ProgressUpdate, total int) <-chan downloadJob {
	results := make(chan downloadJob, len(jobs))
	if len(jobs) == 0 {
		close(results)
		return results
	}

	numWorkers := clampWorkers(opts.NumWorkers, defaultDownloadWorkers, maxDownloadWorkers)
	search := newSearcher(e.video, newLimiter(opts.SearchRate), opts.CacheSize, opts.CacheTTL, e.metrics, e.logger)
	policy := e.retryPolicy(opts)

	queue := make(chan downloadJob, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	var wg sync.WaitGroup
	for range min(numWorkers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				e.sendProgress(progress, trackStartedUpdate(job.slot+1, total, job.result))
				job.result = e.processTrack(ctx, search, policy, job.result)
				results <- job
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// processTrack searches for and downloads one track. The result is always terminal.
func (e *PlaylistEngine) processTrack(ctx context.Context, search *searcher, policy retrypolicy.RetryPolicy[any], res models.TrackResult) models.TrackResult {
	logger := shared.WithLogger(e.logger, "playlist", res.Playlist, "track", res.Track.Query())
	fail := func(err error) models.TrackResult {
		res.State = models.StateFailed
		res.Reason = err
		logger.Error("track failed", "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res.State = models.StateDownloading
	match, err := search.Search(ctx, res.Track.Query())
	if err == nil && match == nil {
		err = fmt.Errorf("%w: %s", shared.ErrSearchMiss, res.Track.Query())
	}
	if err != nil {
		return fail(err)
	}
	res.VideoID = match.VideoID
	logger.Debug("matched", "video", match.VideoID, "title", match.Title)

	started := time.Now()
	var lastErr error
	err = failsafe.With[any](policy).WithContext(ctx).Run(func() error {
		res.Attempts++
		if res.Attempts > 1 {
			e.metrics.Retried()
			logger.Warn("retrying download", "attempt", res.Attempts, "error", lastErr)
		}
		lastErr = e.video.DownloadAudio(ctx, match, res.Path)
		return lastErr
	})
	if err != nil {
		// A cancelled run reports the cancellation, not the attempt it interrupted.
		if ctxErr := ctx.Err(); lastErr != nil && (ctxErr == nil || !errors.Is(err, ctxErr)) {
			err = lastErr
		}
		return fail(err)
	}
	e.metrics.ObserveDownload(time.Since(started))

	res.State = models.StateDone
	logger.Info("downloaded", "path", res.Path, "attempts", res.Attempts)
	return res
}

// retryPolicy retries transient download and transcode failures only.
func (e *PlaylistEngine) retryPolicy(opts DownloadOpts) retrypolicy.RetryPolicy[any] {
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return errors.Is(err, shared.ErrDownload) || errors.Is(err, shared.ErrTranscode)
		}).
		WithMaxRetries(retries).
		WithDelay(delay).
		ReturnLastFailure().
		Build()
}

func (e *PlaylistEngine) recordHistory(fn func(HistoryRecorder) error) {
	if e.history == nil {
		return
	}
	if err := fn(e.history); err != nil {
		e.logger.Debug("history write failed", "error", err)
	}
}
