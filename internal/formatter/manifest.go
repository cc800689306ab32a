// package formatter reads and writes playlist manifests and renders download reports (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
)

// TimestampLayout is the colon-free timestamp appended to manifest names.
const TimestampLayout = "2006-01-02T15-04-05"

// ManifestExt is the manifest file extension.
const ManifestExt = ".txt"

const querySeparator = " - "

// UnknownArtist stands in for a missing artist when the title itself contains " - ", so the line splits back
// into the same title. [ParseLine] maps it back to an empty artist.
const UnknownArtist = "Unknown Artist"

// Manifest is a parsed manifest file.
type Manifest struct {
	Path     string
	Playlist string
	Tracks   []models.Track
}

// ManifestName returns "<sanitized-name>_<timestamp>.txt".
func ManifestName(playlist string, ts time.Time) string {
	return shared.SanitizeFilename(playlist) + "_" + ts.Format(TimestampLayout) + ManifestExt
}

// PlaylistName recovers the playlist name from a manifest path by dropping the extension and the trailing "_<timestamp>".
//
// A stem without an underscore is returned whole.
func PlaylistName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(stem, "_"); i > 0 {
		return stem[:i]
	}
	return stem
}

// EncodeManifest renders one query line per track, each terminated by "\n".
func EncodeManifest(tracks []models.Track) []byte {
	var buf bytes.Buffer
	for _, track := range tracks {
		buf.WriteString(manifestLine(track))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// manifestLine flattens embedded line breaks so every track occupies exactly one line.
func manifestLine(track models.Track) string {
	line := strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(track.Query())), " ")
	if track.Artist == "" && strings.Contains(line, querySeparator) {
		line = UnknownArtist + querySeparator + line
	}
	return line
}

// ParseLine splits a manifest line on the first " - " into artist and title.
//
// A line without the separator is a title with no artist, as is one whose artist is [UnknownArtist].
func ParseLine(line string) models.Track {
	line = strings.TrimSpace(line)
	if artist, title, ok := strings.Cut(line, querySeparator); ok && strings.TrimSpace(title) != "" {
		if artist = strings.TrimSpace(artist); artist == UnknownArtist {
			artist = ""
		}
		return models.Track{Artist: artist, Title: strings.TrimSpace(title)}
	}
	return models.Track{Title: line}
}

// WriteManifest writes tracks to dir/ManifestName(playlist, ts), creating dir if needed.
//
// Existing files are never overwritten.
func WriteManifest(dir, playlist string, ts time.Time, tracks []models.Track) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	path := filepath.Join(dir, ManifestName(playlist, ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create manifest: %w", err)
	}

	if _, err := f.Write(EncodeManifest(tracks)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close manifest: %w", err)
	}
	return path, nil
}

// ReadManifest parses the manifest at path. Blank lines are ignored.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	m := &Manifest{Path: path, Playlist: PlaylistName(path), Tracks: []models.Track{}}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		m.Tracks = append(m.Tracks, ParseLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return m, nil
}

// DiscoverManifests returns the manifest files in dir sorted by name.
func DiscoverManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: manifest directory %s", shared.ErrNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ManifestExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
