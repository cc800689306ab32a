package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./ytdrop.db" {
			t.Errorf("expected database path ./ytdrop.db, got %s", config.Database.Path)
		}

		if config.Paths.ManifestDir != "txt" || config.Paths.OutputDir != "mp3" {
			t.Errorf("expected txt/mp3 paths, got %s/%s", config.Paths.ManifestDir, config.Paths.OutputDir)
		}

		if config.Download.Workers != 3 {
			t.Errorf("expected 3 download workers, got %d", config.Download.Workers)
		}

		if config.Download.Retries != 1 {
			t.Errorf("expected 1 retry, got %d", config.Download.Retries)
		}

		if config.Download.AudioQuality != "192K" {
			t.Errorf("expected audio quality 192K, got %s", config.Download.AudioQuality)
		}

		if config.Export.Workers != 2 {
			t.Errorf("expected 2 export workers, got %d", config.Export.Workers)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[paths]
manifest_dir = "/data/txt"

[download]
workers = 8
retry_delay = "500ms"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/oauth/cb"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Paths.ManifestDir != "/data/txt" {
			t.Errorf("expected manifest dir /data/txt, got %s", config.Paths.ManifestDir)
		}

		if config.Paths.OutputDir != "mp3" {
			t.Errorf("unset keys should keep defaults, got output dir %s", config.Paths.OutputDir)
		}

		if config.Download.Workers != 8 {
			t.Errorf("expected 8 workers, got %d", config.Download.Workers)
		}

		if got := config.Download.RetryBackoff(); got != 500*time.Millisecond {
			t.Errorf("expected 500ms retry delay, got %v", got)
		}

		addr, path := config.CallbackAddr()
		if addr != "localhost:3000" || path != "/oauth/cb" {
			t.Errorf("expected localhost:3000 /oauth/cb, got %s %s", addr, path)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[download\nworkers = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadOrDefault Missing File", func(t *testing.T) {
		config, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Download.Workers != 3 {
			t.Errorf("expected defaults, got %d workers", config.Download.Workers)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Spotify.UserURL = "https://open.spotify.com/user/alice"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Credentials.Spotify.UserURL != config.Credentials.Spotify.UserURL {
			t.Errorf("expected user url to survive, got %q", loaded.Credentials.Spotify.UserURL)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	tc := []struct {
		name string
		env  map[string]string
		want SpotifyConfig
	}{
		{
			name: "SPOTIFY wins",
			env: map[string]string{
				"SPOTIFY_CLIENT_ID": "id",
				"SPOTIPY_CLIENT_ID": "legacy",
			},
			want: SpotifyConfig{ClientID: "id", ClientSecret: "file-secret"},
		},
		{
			name: "SPOTIPY fallback",
			env: map[string]string{
				"SPOTIPY_CLIENT_SECRET": "legacy-secret",
				"SPOTIPY_USER_URL":      "https://open.spotify.com/user/bob",
			},
			want: SpotifyConfig{ClientID: "file-id", ClientSecret: "legacy-secret", UserURL: "https://open.spotify.com/user/bob"},
		},
		{
			name: "empty environment keeps file",
			env:  map[string]string{"SPOTIFY_CLIENT_ID": "   "},
			want: SpotifyConfig{ClientID: "file-id", ClientSecret: "file-secret"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			config.Credentials.Spotify = SpotifyConfig{ClientID: "file-id", ClientSecret: "file-secret"}

			ApplyEnv(config, func(k string) string { return tt.env[k] })

			if got := config.Credentials.Spotify; got != tt.want {
				t.Errorf("ApplyEnv() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpotifyConfigValidate(t *testing.T) {
	err := SpotifyConfig{ClientID: "id"}.Validate()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	if err := (SpotifyConfig{ClientID: "id", ClientSecret: "s", UserURL: "alice"}).Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	if err := (SpotifyConfig{ClientID: "id", ClientSecret: "s"}).Validate(); err != nil {
		t.Errorf("expected client credentials alone to be valid, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("YTDROP_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("YTDROP_TEST_DOTENV", "")
	os.Unsetenv("YTDROP_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("YTDROP_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected loaded, got %q", got)
	}
}
