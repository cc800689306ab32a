// Package metrics counts pipeline and export outcomes with Prometheus collectors.
//
// Each [Recorder] owns a private registry so a run's counters start at zero.
// A CLI process is too short-lived to be scraped, so the registry is written
// once at the end of a run in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors for one process. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	TracksTotal      *prometheus.CounterVec
	PlaylistsTotal   *prometheus.CounterVec
	SearchCacheTotal *prometheus.CounterVec
	RetriesTotal     prometheus.Counter
	DownloadDuration prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
}

// NewRecorder creates a Recorder with its collectors registered on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		TracksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdrop_tracks_total",
				Help: "Manifest lines processed, by final state.",
			},
			[]string{"state"},
		),
		PlaylistsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdrop_playlists_exported_total",
				Help: "Playlists handled by the exporter, by status.",
			},
			[]string{"status"},
		),
		SearchCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytdrop_search_cache_total",
				Help: "Search cache lookups, by result.",
			},
			[]string{"result"},
		),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytdrop_download_retries_total",
			Help: "Download attempts beyond the first.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ytdrop_download_duration_seconds",
			Help:    "Wall time of search plus download plus transcode per track.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytdrop_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(
		r.TracksTotal,
		r.PlaylistsTotal,
		r.SearchCacheTotal,
		r.RetriesTotal,
		r.DownloadDuration,
		r.LastRunTimestamp,
	)
	return r
}

// TrackFinished counts one track in its final state.
func (r *Recorder) TrackFinished(state string) {
	if r == nil {
		return
	}
	r.TracksTotal.WithLabelValues(state).Inc()
}

// PlaylistExported counts one playlist with status "ok" or "failed".
func (r *Recorder) PlaylistExported(status string) {
	if r == nil {
		return
	}
	r.PlaylistsTotal.WithLabelValues(status).Inc()
}

// SearchCache counts a cache lookup as a hit or a miss.
func (r *Recorder) SearchCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.SearchCacheTotal.WithLabelValues(result).Inc()
}

// Retried counts one retry of the download step.
func (r *Recorder) Retried() {
	if r == nil {
		return
	}
	r.RetriesTotal.Inc()
}

// ObserveDownload records how long a track took.
func (r *Recorder) ObserveDownload(d time.Duration) {
	if r == nil {
		return
	}
	r.DownloadDuration.Observe(d.Seconds())
}

// RunFinished stamps the end of a run.
func (r *Recorder) RunFinished(at time.Time) {
	if r == nil {
		return
	}
	r.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the Prometheus text format.
//
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
