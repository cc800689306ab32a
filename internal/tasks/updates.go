package tasks

import (
	"fmt"

	"github.com/desertthunder/ytdrop/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchPlaylists
	ExportPlaylist
	ReadManifests
	DownloadTracks
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchPlaylists:
		return "fetch_playlists"
	case ExportPlaylist:
		return "export_playlist"
	case ReadManifests:
		return "read_manifests"
	case DownloadTracks:
		return "download_tracks"
	default:
		return ""
	}
}

func fetchProfileUpdate(userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProfile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching Spotify profile %s...", userID),
	}
}

func fetchPlaylistsUpdate(profile *models.Profile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listing playlists of %s...", profile.DisplayName),
		Data:    profile,
	}
}

func exportCompletedUpdate(step, total int, m ManifestResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, m.PlaylistName, m.Tracks),
		Data:    m,
	}
}

func exportFailedUpdate(step, total int, f PlaylistFailure) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, f.PlaylistName, f.Err),
		Data:    f,
	}
}

func readManifestsUpdate(manifests, tracks, queued int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadManifests,
		Step:    manifests,
		Total:   manifests,
		Message: fmt.Sprintf("Read %d manifests: %d tracks, %d to download", manifests, tracks, queued),
	}
}

func trackStartedUpdate(step, total int, res models.TrackResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%s] %s", res.Playlist, res.Track.Query()),
		Data:    res,
	}
}

func trackFinishedUpdate(step, total int, res models.TrackResult) ProgressUpdate {
	var msg string
	switch res.State {
	case models.StateDone:
		msg = fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Track.Query())
	case models.StateSkipped:
		msg = fmt.Sprintf("[%d/%d] - %s", step, total, res.Track.Query())
	default:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Track.Query(), res.Reason)
	}
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}
