// package services defines the interfaces for the remote collaborators
//
// Spotify (playlist source) and YouTube via yt-dlp (search, download, transcode)
package services

import (
	"context"

	"github.com/desertthunder/ytdrop/internal/models"
)

// Service defines the interface for the playlist source used by the exporter.
type Service interface {
	// UserProfile fetches the public profile of userID.
	// Returns an error wrapping [shared.ErrNotFound] when the user does not exist.
	UserProfile(ctx context.Context, userID string) (*models.Profile, error)

	// UserPlaylists lists every playlist of userID, following pagination until exhausted.
	UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error)

	// PlaylistTracks lists every track of a playlist in remote order.
	// Removed and local-only entries are dropped.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// VideoService defines the interface for the video platform used by the download pipeline.
type VideoService interface {
	// Search returns the top result for query.
	// Returns an error wrapping [shared.ErrSearchMiss] when nothing matches.
	Search(ctx context.Context, query string) (*models.Match, error)

	// DownloadAudio downloads match and writes the transcoded audio to dest.
	// Failures wrap [shared.ErrDownload] or [shared.ErrTranscode].
	DownloadAudio(ctx context.Context, match *models.Match, dest string) error

	// Name returns the name of the service (e.g., "YouTube")
	Name() string
}
