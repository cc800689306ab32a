// YouTube [VideoService] implementation
//
// Drives the yt-dlp executable through github.com/lrstanley/go-ytdlp. Audio
// extraction is delegated to yt-dlp's ffmpeg post-processor.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const (
	youtubeWatchURL     = "https://www.youtube.com/watch?v="
	defaultAudioFormat  = "mp3"
	defaultAudioQuality = "192K"
)

// runFunc executes a prepared yt-dlp command.
type runFunc func(ctx context.Context, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error)

func runCommand(ctx context.Context, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	return cmd.Run(ctx, args...)
}

// YouTubeSearchEntry is one entry of a flat "ytsearch" result.
type YouTubeSearchEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Duration *float64 `json:"duration"`
}

// YouTubeSearchResult is the single JSON document yt-dlp prints for a search.
type YouTubeSearchResult struct {
	Entries []YouTubeSearchEntry `json:"entries"`
}

// YouTubeOption configures a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithExecutable uses the yt-dlp binary at path instead of the one on PATH.
func WithExecutable(path string) YouTubeOption {
	return func(y *YouTubeService) { y.executable = path }
}

// WithAudio sets the target codec and quality passed to yt-dlp's audio extraction.
func WithAudio(format, quality string) YouTubeOption {
	return func(y *YouTubeService) {
		if format != "" {
			y.audioFormat = format
		}
		if quality != "" {
			y.audioQuality = quality
		}
	}
}

// WithYouTubeLogger sets the logger used for yt-dlp diagnostics.
func WithYouTubeLogger(l *log.Logger) YouTubeOption {
	return func(y *YouTubeService) { y.logger = l }
}

// YouTubeService implements [VideoService] on top of yt-dlp.
type YouTubeService struct {
	executable   string
	audioFormat  string
	audioQuality string
	logger       *log.Logger
	run          runFunc
}

// NewYouTubeService creates a YouTube service; yt-dlp and ffmpeg must be installed.
func NewYouTubeService(opts ...YouTubeOption) *YouTubeService {
	y := &YouTubeService{
		audioFormat:  defaultAudioFormat,
		audioQuality: defaultAudioQuality,
		logger:       log.Default(),
		run:          runCommand,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// AudioFormat returns the extension of the files written by [YouTubeService.DownloadAudio].
func (y *YouTubeService) AudioFormat() string {
	return y.audioFormat
}

func (y *YouTubeService) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// Search returns the first search result for query.
func (y *YouTubeService) Search(ctx context.Context, query string) (*models.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrSearchMiss)
	}

	cmd := y.command().FlatPlaylist().DumpSingleJSON()
	res, err := y.run(ctx, cmd, "ytsearch1:"+query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: search %q: %s", shared.ErrDownload, query, failureDetail(res, err))
	}

	entry, err := parseSearchResult(stdout(res))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	match := &models.Match{VideoID: entry.ID, Title: entry.Title, URL: entry.URL}
	if entry.Duration != nil {
		match.Duration = int(*entry.Duration)
	}
	if match.URL == "" || !strings.HasPrefix(match.URL, "http") {
		match.URL = youtubeWatchURL + entry.ID
	}
	return match, nil
}

// parseSearchResult returns the top entry of a flat search document.
func parseSearchResult(out string) (*YouTubeSearchEntry, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, shared.ErrSearchMiss
	}

	var result YouTubeSearchResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("%w: malformed yt-dlp output: %v", shared.ErrDownload, err)
	}
	for _, e := range result.Entries {
		if e.ID != "" {
			return &e, nil
		}
	}
	return nil, shared.ErrSearchMiss
}

// DownloadAudio downloads the best audio stream of match and transcodes it to dest.
//
// dest must end in the configured audio format's extension.
func (y *YouTubeService) DownloadAudio(ctx context.Context, match *models.Match, dest string) error {
	if match == nil || (match.URL == "" && match.VideoID == "") {
		return fmt.Errorf("%w: no video to download", shared.ErrInvalidArgument)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}

	target := match.URL
	if target == "" {
		target = youtubeWatchURL + match.VideoID
	}

	cmd := y.command().
		NoPlaylist().
		ForceOverwrites().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(y.audioFormat).
		AudioQuality(y.audioQuality).
		Output(outputTemplate(dest))

	res, err := y.run(ctx, cmd, target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := failureDetail(res, err)
		y.logger.Debug("yt-dlp failed", "video", match.VideoID, "stderr", detail)
		if isTranscodeFailure(res) {
			return fmt.Errorf("%w: %s", shared.ErrTranscode, detail)
		}
		return fmt.Errorf("%w: %s", shared.ErrDownload, detail)
	}

	if !shared.FileExists(dest) {
		return fmt.Errorf("%w: yt-dlp finished without writing %s", shared.ErrTranscode, dest)
	}
	return nil
}

// outputTemplate turns dest into a yt-dlp output template whose extension is filled in after extraction.
func outputTemplate(dest string) string {
	stem := strings.TrimSuffix(dest, filepath.Ext(dest))
	return strings.ReplaceAll(stem, "%", "%%") + ".%(ext)s"
}

func isTranscodeFailure(res *ytdlp.Result) bool {
	if res == nil {
		return false
	}
	stderr := strings.ToLower(res.Stderr)
	for _, marker := range []string{"postprocessing", "ffmpeg", "ffprobe"} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// failureDetail returns the last line yt-dlp wrote to stderr, or err itself.
func failureDetail(res *ytdlp.Result, err error) string {
	if res != nil {
		lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
		if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
			return last
		}
	}
	return err.Error()
}

func stdout(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	return res.Stdout
}

// InstallYtdlp downloads a yt-dlp release into the go-ytdlp cache when none is found and returns its path.
func InstallYtdlp(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return resolved.Executable, nil
}
