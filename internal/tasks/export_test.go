package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/desertthunder/ytdrop/internal/metrics"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
	th "github.com/desertthunder/ytdrop/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExport(t *testing.T) {
	t.Run("writes one manifest per playlist in remote order", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "txt")
		spotify := &th.MockSpotify{
			Profile: &models.Profile{ID: "alice", DisplayName: "Alice"},
			Playlists: []models.Playlist{
				{ID: "p1", Name: "rock", Owner: "alice"},
				{ID: "p2", Name: "Empty", Owner: "alice"},
			},
			Tracks: map[string][]models.Track{
				"p1": {
					{Artist: "Queen", Title: "Bohemian Rhapsody"},
					{Artist: "Nonexistent Artist", Title: "Fake Song XYZ123"},
				},
			},
		}

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		if len(result.Manifests) != 2 || len(result.Failed) != 0 {
			t.Fatalf("expected 2 manifests and no failures, got %+v", result)
		}

		rock := filepath.Join(out, "rock_2024-01-01T12-00-00.txt")
		if result.Manifests[0].Path != rock {
			t.Errorf("expected first manifest %s, got %s", rock, result.Manifests[0].Path)
		}
		want := "Queen - Bohemian Rhapsody\nNonexistent Artist - Fake Song XYZ123\n"
		if got := th.MustReadFile(t, rock); got != want {
			t.Errorf("manifest content = %q, want %q", got, want)
		}

		empty := filepath.Join(out, "Empty_2024-01-01T12-00-00.txt")
		if got := th.MustReadFile(t, empty); got != "" {
			t.Errorf("expected empty manifest, got %q", got)
		}
	})

	t.Run("failing playlist is skipped", func(t *testing.T) {
		out := t.TempDir()
		rec := metrics.NewRecorder()
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{
				{ID: "p1", Name: "good", Owner: "alice"},
				{ID: "p2", Name: "broken", Owner: "alice"},
				{ID: "p3", Name: "also good", Owner: "alice"},
			},
			Tracks: map[string][]models.Track{
				"p1": {{Artist: "A", Title: "One"}},
				"p3": {{Artist: "B", Title: "Two"}},
			},
			TrackErrs: map[string]error{
				"p2": fmt.Errorf("%w: status 503", shared.ErrServiceUnavailable),
			},
		}

		result, err := newTestEngine(spotify, nil, WithMetrics(rec)).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err != nil {
			t.Fatalf("expected partial failure to be recovered, got %v", err)
		}

		if len(result.Manifests) != 2 {
			t.Fatalf("expected 2 manifests, got %d", len(result.Manifests))
		}
		if result.Manifests[0].PlaylistName != "good" || result.Manifests[1].PlaylistName != "also good" {
			t.Errorf("expected listing order, got %+v", result.Manifests)
		}
		if len(result.Failed) != 1 {
			t.Fatalf("expected 1 failure, got %d", len(result.Failed))
		}

		failure := result.Failed[0]
		if failure.PlaylistID != "p2" {
			t.Errorf("expected p2 to fail, got %s", failure.PlaylistID)
		}
		if !errors.Is(failure.Err, shared.ErrPlaylistFetch) {
			t.Errorf("expected ErrPlaylistFetch, got %v", failure.Err)
		}
		if !errors.Is(failure.Err, shared.ErrServiceUnavailable) {
			t.Errorf("expected cause to be kept, got %v", failure.Err)
		}

		if got := testutil.ToFloat64(rec.PlaylistsTotal.WithLabelValues("ok")); got != 2 {
			t.Errorf("expected 2 exported playlists, got %.0f", got)
		}
		if got := testutil.ToFloat64(rec.PlaylistsTotal.WithLabelValues("failed")); got != 1 {
			t.Errorf("expected 1 failed playlist, got %.0f", got)
		}
	})

	t.Run("colliding names get a suffix", func(t *testing.T) {
		out := t.TempDir()
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{
				{ID: "p1", Name: "Rock", Owner: "alice"},
				{ID: "p2", Name: "rock", Owner: "alice"},
				{ID: "p3", Name: "Rock?", Owner: "alice"},
			},
		}

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		want := []string{"Rock", "rock (2)", "Rock (3)"}
		for i, name := range want {
			if got := result.Manifests[i].PlaylistName; got != name {
				t.Errorf("manifest %d name = %q, want %q", i, got, name)
			}
			th.AssertFileExists(t, filepath.Join(out, name+"_2024-01-01T12-00-00.txt"))
		}
	})

	t.Run("owned playlists by default", func(t *testing.T) {
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{
				{ID: "p1", Name: "mine", Owner: "alice"},
				{ID: "p2", Name: "followed", Owner: "bob"},
			},
		}
		out := t.TempDir()

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if len(result.Manifests) != 1 || result.Manifests[0].PlaylistID != "p1" {
			t.Errorf("expected only the owned playlist, got %+v", result.Manifests)
		}
		th.AssertNoFile(t, filepath.Join(out, "followed_2024-01-01T12-00-00.txt"))
	})

	t.Run("include followed", func(t *testing.T) {
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{
				{ID: "p1", Name: "mine", Owner: "alice"},
				{ID: "p2", Name: "followed", Owner: "bob"},
			},
		}

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: t.TempDir(), IncludeFollowed: true}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if len(result.Manifests) != 2 {
			t.Errorf("expected owned and followed playlists, got %+v", result.Manifests)
		}
	})

	t.Run("no owned playlists still creates the directory", func(t *testing.T) {
		spotify := &th.MockSpotify{Playlists: []models.Playlist{{ID: "p1", Name: "followed", Owner: "bob"}}}
		out := filepath.Join(t.TempDir(), "txt")

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if len(result.Manifests) != 0 || len(result.Failed) != 0 {
			t.Errorf("expected an empty result, got %+v", result)
		}
		th.AssertDirExists(t, out)
	})

	t.Run("unwritable manifest directory", func(t *testing.T) {
		out := filepath.Join(th.NewFailingDir(t), "txt")

		_, err := newTestEngine(&th.MockSpotify{}, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: out}, nil)
		if err == nil {
			t.Error("expected an error when the manifest directory cannot be created")
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{{ID: "p1", Name: "a", Owner: "alice"}, {ID: "p2", Name: "b", Owner: "alice"}},
		}
		progress := make(chan ProgressUpdate, 10)

		if _, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: t.TempDir()}, progress); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		for update := range progress {
			phases[update.Phase]++
		}
		if phases[FetchProfile] != 1 || phases[FetchPlaylists] != 1 || phases[ExportPlaylist] != 2 {
			t.Errorf("unexpected progress phases: %v", phases)
		}
	})
}

func TestExportFatalErrors(t *testing.T) {
	tc := []struct {
		name    string
		spotify *th.MockSpotify
		want    error
	}{
		{
			name:    "unknown user",
			spotify: &th.MockSpotify{ProfileErr: fmt.Errorf("%w: user ghost", shared.ErrNotFound)},
			want:    shared.ErrNotFound,
		},
		{
			name:    "rejected token",
			spotify: &th.MockSpotify{ProfileErr: fmt.Errorf("%w: status 401", shared.ErrAuth)},
			want:    shared.ErrAuth,
		},
		{
			name:    "listing fails",
			spotify: &th.MockSpotify{PlaylistsErr: fmt.Errorf("%w: status 503", shared.ErrServiceUnavailable)},
			want:    shared.ErrServiceUnavailable,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "txt")
			result, err := newTestEngine(tt.spotify, nil).Export(context.Background(), "ghost", ExportOpts{OutputDir: out}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if result != nil {
				t.Errorf("expected no result, got %+v", result)
			}
		})
	}

	t.Run("auth failure mid export aborts", func(t *testing.T) {
		spotify := &th.MockSpotify{
			Playlists: []models.Playlist{{ID: "p1", Name: "a", Owner: "alice"}},
			TrackErrs: map[string]error{"p1": fmt.Errorf("%w: status 401", shared.ErrAuth)},
		}

		result, err := newTestEngine(spotify, nil).Export(context.Background(), "alice", ExportOpts{OutputDir: t.TempDir()}, nil)
		if !errors.Is(err, shared.ErrAuth) {
			t.Fatalf("expected ErrAuth, got %v", err)
		}
		if result == nil || len(result.Failed) != 1 {
			t.Errorf("expected the failing playlist in the partial result, got %+v", result)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		_, err := newTestEngine(&th.MockSpotify{}, nil).Export(context.Background(), "", ExportOpts{}, nil)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestUniqueNames(t *testing.T) {
	playlists := []models.Playlist{
		{Name: "Chill"},
		{Name: "chill"},
		{Name: "Chill (2)"},
		{Name: ""},
	}

	got := uniqueNames(playlists)
	want := []string{"Chill", "chill (2)", "Chill (2) (2)", "untitled"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, got[i], want[i])
		}
	}
}
