// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
)

// MockSpotify is a test double for [services.Service] backed by in-memory playlists.
type MockSpotify struct {
	Profile      *models.Profile
	ProfileErr   error
	Playlists    []models.Playlist
	PlaylistsErr error
	Tracks       map[string][]models.Track // keyed by playlist ID
	TrackErrs    map[string]error          // keyed by playlist ID
}

func (m *MockSpotify) UserProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	if m.Profile == nil {
		return &models.Profile{ID: userID, DisplayName: userID}, nil
	}
	return m.Profile, nil
}

func (m *MockSpotify) UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	return m.Playlists, m.PlaylistsErr
}

func (m *MockSpotify) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if err := m.TrackErrs[playlistID]; err != nil {
		return nil, err
	}
	return m.Tracks[playlistID], nil
}

func (m *MockSpotify) Name() string { return "mock-spotify" }

// MockVideo is a test double for [services.VideoService].
//
// Queries without an entry in Matches miss. DownloadErrs holds per-video errors returned by successive attempts;
// once exhausted the download succeeds and writes a small file to dest. OnDownload, when set, runs after each
// attempt with the video id and the 1-based attempt number.
type MockVideo struct {
	Matches      map[string]*models.Match
	SearchErrs   map[string]error
	DownloadErrs map[string][]error
	OnDownload   func(videoID string, attempt int)

	mu        sync.Mutex
	searches  map[string]int
	downloads map[string]int
}

func (m *MockVideo) Search(ctx context.Context, query string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searches == nil {
		m.searches = make(map[string]int)
	}
	m.searches[query]++

	if err := m.SearchErrs[query]; err != nil {
		return nil, err
	}
	match, ok := m.Matches[query]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSearchMiss, query)
	}
	return match, nil
}

func (m *MockVideo) DownloadAudio(ctx context.Context, match *models.Match, dest string) error {
	m.mu.Lock()
	if m.downloads == nil {
		m.downloads = make(map[string]int)
	}
	attempt := m.downloads[match.VideoID]
	m.downloads[match.VideoID]++
	var err error
	if errs := m.DownloadErrs[match.VideoID]; attempt < len(errs) {
		err = errs[attempt]
	}
	m.mu.Unlock()

	if m.OnDownload != nil {
		m.OnDownload(match.VideoID, attempt+1)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("ID3"), 0644)
}

func (m *MockVideo) Name() string { return "mock-video" }

// Searches returns how many times query was searched.
func (m *MockVideo) Searches(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches[query]
}

// Downloads returns the total number of download attempts.
func (m *MockVideo) Downloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.downloads {
		total += n
	}
	return total
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// NewFailingDir returns a path that exists as a regular file, so creating anything beneath it fails.
func NewFailingDir(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	return path
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
