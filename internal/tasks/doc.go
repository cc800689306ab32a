// Package tasks runs the two stages of ytdrop with real-time progress reporting.
//
// # Core Operations
//
//  1. [PlaylistEngine.Export] : Spotify → manifests
//     - Fetches the target profile and lists its playlists
//     - Fetches every playlist's tracks on a small worker pool
//     - Writes one "<name>_<timestamp>.txt" manifest per playlist
//     - A failing playlist is recorded and skipped; an auth failure aborts
//
//  2. [PlaylistEngine.Download] : manifests → audio files
//     - Reads every manifest and plans one result per line
//     - Skips lines whose destination file exists or was already scheduled
//     - Searches, downloads and transcodes the rest on a bounded worker pool
//     - Returns a [models.Report] counting downloaded, skipped and failed lines
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # History
//
// The optional [HistoryRecorder] interface persists every download run (repositories.HistoryAdapter).
// Write errors are logged at debug level and otherwise ignored.
package tasks
