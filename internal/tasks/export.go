package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ytdrop/internal/formatter"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultExportWorkers = 2
	maxExportWorkers     = 8
)

// ExportOpts configures [PlaylistEngine.Export].
type ExportOpts struct {
	OutputDir       string  // Manifest directory, created when absent
	NumWorkers      int     // Concurrent playlist fetches (default 2)
	RateLimit       float64 // Playlist fetches per second, 0 for unlimited
	IncludeFollowed bool    // Also export playlists the user follows but does not own
}

// ManifestResult is one written manifest.
type ManifestResult struct {
	PlaylistID   string
	PlaylistName string
	Path         string
	Tracks       int
}

// PlaylistFailure is a playlist that could not be exported.
type PlaylistFailure struct {
	PlaylistID   string
	PlaylistName string
	Err          error
}

// ExportResult summarizes an export.
type ExportResult struct {
	User       *models.Profile
	OutputDir  string
	ExportedAt time.Time
	Manifests  []ManifestResult
	Failed     []PlaylistFailure
}

type exportJob struct {
	index    int
	playlist models.Playlist
	name     string
}

type exportOutcome struct {
	index    int
	manifest ManifestResult
	failure  *PlaylistFailure
}

// Export writes one manifest per playlist owned by userID, plus followed playlists when
// [ExportOpts.IncludeFollowed] is set.
//
// Profile and listing errors are fatal. A playlist whose tracks cannot be fetched or written is recorded in
// [ExportResult.Failed] and the export continues, unless the failure is [shared.ErrAuth], which aborts the run.
func (e *PlaylistEngine) Export(ctx context.Context, userID string, opts ExportOpts, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: spotify service not configured", shared.ErrMissingCredentials)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, fetchProfileUpdate(userID))
	profile, err := e.spotify.UserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile %s: %w", userID, err)
	}

	e.sendProgress(progress, fetchPlaylistsUpdate(profile))
	playlists, err := e.spotify.UserPlaylists(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists of %s: %w", profile.ID, err)
	}
	if !opts.IncludeFollowed {
		playlists = ownedBy(playlists, profile.ID)
	}

	result := &ExportResult{
		User:       profile,
		OutputDir:  opts.OutputDir,
		ExportedAt: e.now(),
		Manifests:  []ManifestResult{},
	}
	e.logger.Info("exporting playlists", "user", profile.ID, "playlists", len(playlists), "out", opts.OutputDir)
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if len(playlists) == 0 {
		return result, nil
	}

	names := uniqueNames(playlists)
	numWorkers := clampWorkers(opts.NumWorkers, defaultExportWorkers, maxExportWorkers)
	limiter := newLimiter(opts.RateLimit)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan exportJob, len(playlists))
	outcomes := make(chan exportOutcome, len(playlists))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcome := e.exportPlaylist(ctx, limiter, job, opts.OutputDir, result.ExportedAt)
				if outcome.failure != nil && errors.Is(outcome.failure.Err, shared.ErrAuth) {
					cancel(outcome.failure.Err)
				}
				outcomes <- outcome
			}
		}()
	}

	for i, p := range playlists {
		jobs <- exportJob{index: i, playlist: p, name: names[i]}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var ordered []exportOutcome
	step := 0
	for outcome := range outcomes {
		step++
		ordered = append(ordered, outcome)
		if outcome.failure != nil {
			e.metrics.PlaylistExported("failed")
			e.sendProgress(progress, exportFailedUpdate(step, len(playlists), *outcome.failure))
			continue
		}
		e.metrics.PlaylistExported("ok")
		e.sendProgress(progress, exportCompletedUpdate(step, len(playlists), outcome.manifest))
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	for _, outcome := range ordered {
		if outcome.failure != nil {
			result.Failed = append(result.Failed, *outcome.failure)
			continue
		}
		result.Manifests = append(result.Manifests, outcome.manifest)
	}

	if cause := context.Cause(ctx); cause != nil {
		return result, cause
	}
	return result, nil
}

func (e *PlaylistEngine) exportPlaylist(ctx context.Context, limiter *rate.Limiter, job exportJob, dir string, ts time.Time) exportOutcome {
	logger := shared.WithLogger(e.logger, "playlist", job.playlist.Name, "id", job.playlist.ID)
	fail := func(err error) exportOutcome {
		if !errors.Is(err, shared.ErrAuth) {
			err = fmt.Errorf("%w: %s (%s): %w", shared.ErrPlaylistFetch, job.playlist.Name, job.playlist.ID, err)
		}
		logger.Error("playlist export failed", "error", err)
		return exportOutcome{
			index:   job.index,
			failure: &PlaylistFailure{PlaylistID: job.playlist.ID, PlaylistName: job.playlist.Name, Err: err},
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	tracks, err := e.spotify.PlaylistTracks(ctx, job.playlist.ID)
	if err != nil {
		return fail(err)
	}

	path, err := formatter.WriteManifest(dir, job.name, ts, tracks)
	if err != nil {
		return fail(err)
	}

	logger.Debug("manifest written", "path", path, "tracks", len(tracks))
	return exportOutcome{
		index: job.index,
		manifest: ManifestResult{
			PlaylistID:   job.playlist.ID,
			PlaylistName: job.name,
			Path:         path,
			Tracks:       len(tracks),
		},
	}
}

func ownedBy(playlists []models.Playlist, userID string) []models.Playlist {
	owned := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		if p.Owner == userID {
			owned = append(owned, p)
		}
	}
	return owned
}

// uniqueNames returns one sanitized manifest name per playlist. Names that collide case-insensitively
// get a " (n)" suffix in listing order.
func uniqueNames(playlists []models.Playlist) []string {
	names := make([]string, len(playlists))
	seen := make(map[string]bool, len(playlists))
	for i, p := range playlists {
		base := shared.SanitizeFilename(p.Name)
		name := base
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s (%d)", base, n)
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func clampWorkers(n, def, limit int) int {
	if n <= 0 {
		return def
	}
	return min(n, limit)
}

// newLimiter returns nil for a non-positive rate.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
