package tasks

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytdrop/internal/metrics"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/services"
)

// HistoryRecorder persists pipeline runs. Errors are logged and otherwise ignored.
//
// Implemented by repositories.HistoryAdapter.
type HistoryRecorder interface {
	StartRun(runID string, startedAt time.Time) error
	RecordResult(runID string, res models.TrackResult) error
	FinishRun(report *models.Report) error
}

// PlaylistEngine runs the exporter and the download pipeline.
type PlaylistEngine struct {
	spotify services.Service
	video   services.VideoService
	logger  *log.Logger
	metrics *metrics.Recorder
	history HistoryRecorder
	now     func() time.Time
}

// EngineOption configures a [PlaylistEngine].
type EngineOption func(*PlaylistEngine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *PlaylistEngine) { e.logger = l }
}

// WithMetrics counts outcomes on r.
func WithMetrics(r *metrics.Recorder) EngineOption {
	return func(e *PlaylistEngine) { e.metrics = r }
}

// WithHistory records every download run on h.
func WithHistory(h HistoryRecorder) EngineOption {
	return func(e *PlaylistEngine) { e.history = h }
}

// WithClock replaces time.Now, e.g. to pin manifest timestamps in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *PlaylistEngine) { e.now = now }
}

// NewPlaylistEngine creates a new PlaylistEngine. Either service may be nil when only the other stage is used.
func NewPlaylistEngine(spotify services.Service, video services.VideoService, opts ...EngineOption) *PlaylistEngine {
	e := &PlaylistEngine{
		spotify: spotify,
		video:   video,
		logger:  log.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
