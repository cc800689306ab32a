// Package ui renders download runs in the terminal.
//
// [Model] is a bubbletea program for `ytdrop download --tui` with two views:
//  1. [DownloadView] : spinner, progress bar, live counters and the most recent track outcomes
//  2. [ResultView] : the final report plus a scrollable list of failed tracks
//
// Progress flows from the engine through a channel into the Msg union type, one update per message, so
// the run is never blocked by rendering.
//
// [RenderReport] and [RenderExport] are the lipgloss summaries printed when the TUI is not in use.
package ui
