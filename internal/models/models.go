// package models defines the data model for the playlist exporter and download pipeline
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ytdrop/internal/shared"
)

// Playlist represents a Spotify playlist
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string // Owner user ID
	TrackCount  int
	Public      bool
}

// PlaylistExport represents a playlist with all its tracks in remote order
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []Track
}

// Track represents a music track.
//
// Tracks read back from a manifest carry only Artist and Title.
type Track struct {
	ID       string
	Title    string
	Artist   string // Multiple artists joined with ", "
	Album    string
	Duration int // Duration in seconds, 0 when unknown
}

// Query returns the manifest line for t, "<artist> - <title>", or just the title when the artist is unknown.
func (t Track) Query() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// FileName returns the audio file name derived from the track title.
func (t Track) FileName(ext string) string {
	return shared.SanitizeFilename(t.Title) + "." + strings.TrimPrefix(ext, ".")
}

// Profile is the subset of a Spotify user profile used by the exporter.
type Profile struct {
	ID          string
	DisplayName string
}

// Match is the search result accepted for a track.
type Match struct {
	VideoID  string
	Title    string
	URL      string
	Duration int // seconds
}

// TrackState is the lifecycle state of one manifest line within a pipeline run.
type TrackState string

const (
	StatePending     TrackState = "pending"
	StateSkipped     TrackState = "skipped"
	StateDownloading TrackState = "downloading"
	StateDone        TrackState = "done"
	StateFailed      TrackState = "failed"
)

// Terminal reports whether s is a final state.
func (s TrackState) Terminal() bool {
	return s == StateSkipped || s == StateDone || s == StateFailed
}

// TrackResult is the outcome for one manifest line.
type TrackResult struct {
	Playlist string
	Index    int // zero-based line position within the manifest
	Track    Track
	Path     string
	State    TrackState
	Reason   error
	VideoID  string
	Attempts int
}

// ReasonText returns the failure or skip reason, or an empty string.
func (r TrackResult) ReasonText() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Error()
}

// Report summarizes a download run.
//
// Downloaded+Skipped+Failed always equals len(Results).
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Downloaded int
	Skipped    int
	Failed     int
	Results    []TrackResult
}

// Total returns the number of manifest lines accounted for.
func (r *Report) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// Add records res and bumps the matching counter.
func (r *Report) Add(res TrackResult) {
	switch res.State {
	case StateDone:
		r.Downloaded++
	case StateSkipped:
		r.Skipped++
	default:
		r.Failed++
		if res.State != StateFailed {
			res.State = StateFailed
		}
	}
	r.Results = append(r.Results, res)
}

// Failures returns the failed results in report order.
func (r *Report) Failures() []TrackResult {
	var failed []TrackResult
	for _, res := range r.Results {
		if res.State == StateFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Duplicates returns the skipped results whose destination an earlier line already claimed. They were not
// downloaded in this run, so they are listed apart from ordinary skips.
func (r *Report) Duplicates() []TrackResult {
	var dups []TrackResult
	for _, res := range r.Results {
		if res.State == StateSkipped && errors.Is(res.Reason, shared.ErrDuplicate) {
			dups = append(dups, res)
		}
	}
	return dups
}

// Run is a persisted pipeline run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Downloaded int
	Skipped    int
	Failed     int
}

// DownloadRecord is the persisted outcome of one track in a run.
type DownloadRecord struct {
	id        string
	sequence  int
	runID     string
	playlist  string
	artist    string
	title     string
	path      string
	state     TrackState
	reason    string
	videoID   string
	attempts  int
	createdAt time.Time
	updatedAt time.Time
}

// NewDownloadRecord creates a record for res within runID.
func NewDownloadRecord(runID string, res TrackResult) *DownloadRecord {
	now := time.Now()
	return &DownloadRecord{
		runID:     runID,
		playlist:  res.Playlist,
		artist:    res.Track.Artist,
		title:     res.Track.Title,
		path:      res.Path,
		state:     res.State,
		reason:    res.ReasonText(),
		videoID:   res.VideoID,
		attempts:  res.Attempts,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *DownloadRecord) ID() string           { return d.id }
func (d *DownloadRecord) Sequence() int        { return d.sequence }
func (d *DownloadRecord) RunID() string        { return d.runID }
func (d *DownloadRecord) Playlist() string     { return d.playlist }
func (d *DownloadRecord) Artist() string       { return d.artist }
func (d *DownloadRecord) Title() string        { return d.title }
func (d *DownloadRecord) Path() string         { return d.path }
func (d *DownloadRecord) State() TrackState    { return d.state }
func (d *DownloadRecord) Reason() string       { return d.reason }
func (d *DownloadRecord) VideoID() string      { return d.videoID }
func (d *DownloadRecord) Attempts() int        { return d.attempts }
func (d *DownloadRecord) CreatedAt() time.Time { return d.createdAt }
func (d *DownloadRecord) UpdatedAt() time.Time { return d.updatedAt }
func (d *DownloadRecord) SetID(id string)      { d.id = id }
func (d *DownloadRecord) SetSequence(seq int)  { d.sequence = seq }

// Query returns the manifest line the record was created from.
func (d *DownloadRecord) Query() string {
	return Track{Artist: d.artist, Title: d.title}.Query()
}

// Validate checks the record has a run, a title and a terminal state.
func (d *DownloadRecord) Validate() error {
	switch {
	case d.runID == "":
		return fmt.Errorf("%w: run ID is required", shared.ErrInvalidInput)
	case d.title == "":
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	case !d.state.Terminal():
		return fmt.Errorf("%w: state %q is not terminal", shared.ErrInvalidInput, d.state)
	}
	return nil
}

// RestoreDownloadRecord rebuilds a record from stored columns.
func RestoreDownloadRecord(id string, sequence int, runID, playlist, artist, title, path string, state TrackState, reason, videoID string, attempts int, createdAt, updatedAt time.Time) *DownloadRecord {
	return &DownloadRecord{
		id: id, sequence: sequence, runID: runID, playlist: playlist, artist: artist, title: title,
		path: path, state: state, reason: reason, videoID: videoID, attempts: attempts,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}
