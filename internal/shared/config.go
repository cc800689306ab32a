package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Paths       PathsConfig       `toml:"paths"`
	Export      ExportConfig      `toml:"export"`
	Download    DownloadConfig    `toml:"download"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the export target.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	UserURL      string `toml:"user_url"`
	TokenFile    string `toml:"token_file"`
}

// PathsConfig holds the manifest and audio output roots.
type PathsConfig struct {
	ManifestDir string `toml:"manifest_dir"`
	OutputDir   string `toml:"output_dir"`
}

// ExportConfig tunes the playlist exporter.
type ExportConfig struct {
	Workers         int     `toml:"workers"`
	RateLimit       float64 `toml:"rate_limit"`
	IncludeFollowed bool    `toml:"include_followed"`
}

// DownloadConfig tunes the download pipeline and the yt-dlp invocation.
type DownloadConfig struct {
	Workers      int     `toml:"workers"`
	SearchRate   float64 `toml:"search_rate"`
	AudioFormat  string  `toml:"audio_format"`
	AudioQuality string  `toml:"audio_quality"`
	Retries      int     `toml:"retries"`
	RetryDelay   string  `toml:"retry_delay"`
	YtdlpPath    string  `toml:"ytdlp_path"`
	CacheSize    int     `toml:"cache_size"`
}

// DatabaseConfig contains database connection settings for the run history.
//
// An empty path disables history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server fallback address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MetricsConfig controls the Prometheus textfile written at the end of each run.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// Map returns the credentials in the form accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Validate reports [ErrMissingCredentials] when the client credentials are absent.
//
// The export target is not checked here; it may come from the --user flag instead of user_url.
func (s SpotifyConfig) Validate() error {
	var missing []string
	if s.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: spotify %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// CallbackAddr returns the listen address and path of the OAuth redirect URI.
//
// Falls back to the [ServerConfig] address and "/callback" when the URI cannot be parsed.
func (c *Config) CallbackAddr() (addr, path string) {
	addr = net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
	path = "/callback"

	u, err := url.Parse(c.Credentials.Spotify.RedirectURI)
	if err != nil || u.Host == "" {
		return addr, path
	}
	if u.Port() != "" {
		addr = u.Host
	}
	if u.Path != "" {
		path = u.Path
	}
	return addr, path
}

// RetryBackoff parses [DownloadConfig.RetryDelay], defaulting to two seconds.
func (d DownloadConfig) RetryBackoff() time.Duration {
	if delay, err := time.ParseDuration(d.RetryDelay); err == nil && delay >= 0 {
		return delay
	}
	return 2 * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadOrDefault loads path when it exists and returns [DefaultConfig] when it does not.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment without overriding existing variables.
//
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays Spotify credentials from the environment onto config.
//
// Each SPOTIFY_* variable falls back to its SPOTIPY_* spelling.
func ApplyEnv(config *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(suffix string) string {
		if v := getenv("SPOTIFY_" + suffix); v != "" {
			return v
		}
		return getenv("SPOTIPY_" + suffix)
	}

	sp := &config.Credentials.Spotify
	for suffix, dst := range map[string]*string{
		"CLIENT_ID":     &sp.ClientID,
		"CLIENT_SECRET": &sp.ClientSecret,
		"REDIRECT_URI":  &sp.RedirectURI,
		"USER_URL":      &sp.UserURL,
		"TOKEN_FILE":    &sp.TokenFile,
	} {
		if v := strings.TrimSpace(lookup(suffix)); v != "" {
			*dst = v
		}
	}
}

// ExpandHome replaces a leading "~" in path with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
