package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
)

var reportHeaders = []string{"Playlist", "Line", "Artist", "Title", "State", "Reason", "VideoID", "Attempts", "Path"}

type reportJSON struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Downloaded int          `json:"downloaded"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Results    []resultJSON `json:"results"`
}

type resultJSON struct {
	Playlist string `json:"playlist"`
	Line     int    `json:"line"`
	Query    string `json:"query"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	Attempts int    `json:"attempts"`
	Path     string `json:"path"`
}

// ReportToCSV renders one row per result.
func ReportToCSV(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range report.Results {
		record := []string{
			res.Playlist,
			strconv.Itoa(res.Index + 1),
			res.Track.Artist,
			res.Track.Title,
			string(res.State),
			res.ReasonText(),
			res.VideoID,
			strconv.Itoa(res.Attempts),
			res.Path,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToJSON renders the report with its counts and every result.
func ReportToJSON(report *models.Report) ([]byte, error) {
	out := reportJSON{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Downloaded: report.Downloaded,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		Results:    make([]resultJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		out.Results = append(out.Results, resultJSON{
			Playlist: res.Playlist,
			Line:     res.Index + 1,
			Query:    res.Track.Query(),
			State:    string(res.State),
			Reason:   res.ReasonText(),
			VideoID:  res.VideoID,
			Attempts: res.Attempts,
			Path:     res.Path,
		})
	}
	return shared.MarshalJSON(out, true)
}

// ReportToMarkdown renders the counts and a table of failures.
func ReportToMarkdown(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Download report %s\n\n", report.RunID)
	fmt.Fprintf(&buf, "**Downloaded**: %d\n", report.Downloaded)
	fmt.Fprintf(&buf, "**Skipped**: %d\n", report.Skipped)
	fmt.Fprintf(&buf, "**Failed**: %d\n\n", report.Failed)

	failures := report.Failures()
	if len(failures) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("## Failures\n\n")
	buf.WriteString("| Playlist | Track | Reason |\n|---|---|---|\n")
	for _, res := range failures {
		fmt.Fprintf(&buf, "| %s | %s | %s |\n", escapeCell(res.Playlist), escapeCell(res.Track.Query()), escapeCell(res.ReasonText()))
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ReportToText converts a report to the plain text summary printed after a run
func ReportToText(report *models.Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Downloaded: %d\n", report.Downloaded)
	fmt.Fprintf(&buf, "Skipped: %d\n", report.Skipped)
	fmt.Fprintf(&buf, "Failed: %d\n", report.Failed)

	failures := report.Failures()
	if len(failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for i, res := range failures {
			fmt.Fprintf(&buf, "%d. [%s] %s: %s\n", i+1, res.Playlist, res.Track.Query(), res.ReasonText())
		}
	}

	return buf.Bytes()
}

// WriteReport writes report to path in the format implied by its extension (.csv, .json, .md, anything else as text).
func WriteReport(report *models.Report, path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err = ReportToCSV(report)
	case ".json":
		data, err = ReportToJSON(report)
	case ".md":
		data, err = ReportToMarkdown(report)
	default:
		data = ReportToText(report)
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
