package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/tasks"
)

// RenderReport renders the end-of-run summary printed by `ytdrop download`, failures last.
func RenderReport(report *models.Report) string {
	if report == nil {
		return styles.err.Render("No report available")
	}

	var b strings.Builder
	b.WriteString(renderCounts(report))
	b.WriteString(renderDuplicates(report))

	if failures := report.Failures(); len(failures) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Failed tracks (%d):", len(failures))))
		for _, res := range failures {
			fmt.Fprintf(&b, "\n  • [%s] %s: %s", res.Playlist, res.Track.Query(), res.ReasonText())
		}
	}
	return b.String()
}

// RenderExport renders the summary printed by `ytdrop export`.
func RenderExport(result *tasks.ExportResult) string {
	if result == nil {
		return styles.err.Render("No export result available")
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Exported %d playlists to %s", len(result.Manifests), result.OutputDir)))
	for _, m := range result.Manifests {
		fmt.Fprintf(&b, "\n  %s %s (%d tracks)", styles.ok.Render("✓"), m.PlaylistName, m.Tracks)
	}
	if len(result.Failed) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Skipped %d playlists:", len(result.Failed))))
		for _, f := range result.Failed {
			fmt.Fprintf(&b, "\n  %s %s (%s): %v", styles.err.Render("✗"), f.PlaylistName, f.PlaylistID, f.Err)
		}
	}
	return b.String()
}

// renderCounts renders the title and the boxed downloaded/skipped/failed counters.
func renderCounts(report *models.Report) string {
	counts := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.ok.Render(fmt.Sprintf("%d downloaded", report.Downloaded)),
		"  ",
		styles.help.Render(fmt.Sprintf("%d skipped", report.Skipped)),
		"  ",
		failedStyle(report.Failed).Render(fmt.Sprintf("%d failed", report.Failed)),
	)
	return styles.title.Render("Download complete") + "\n" + styles.box.Render(counts)
}

// renderDuplicates lists the lines skipped because another line already claimed their file name.
func renderDuplicates(report *models.Report) string {
	dups := report.Duplicates()
	if len(dups) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(styles.warn.Render(fmt.Sprintf("Not downloaded, same file name as an earlier track (%d):", len(dups))))
	for _, res := range dups {
		fmt.Fprintf(&b, "\n  • [%s] %s -> %s", res.Playlist, res.Track.Query(), res.Path)
	}
	return b.String()
}

func failedStyle(n int) lipgloss.Style {
	if n > 0 {
		return styles.err
	}
	return styles.help
}
