// Package models defines the domain entities for ytdrop.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs describing remote data and pipeline outcomes
//   - [Playlist] : Playlist metadata from Spotify
//   - [PlaylistExport] : Playlist with its complete, ordered track listing
//   - [Track] : Song metadata; [Track.Query] is the manifest line and search query
//   - [Match] : The video-platform search result chosen for a track
//   - [TrackResult] and [Report] : Per-track outcomes of a download run
//
// 2. Persistent Entities: Database-backed models for the run history
//   - [Run] : One pipeline run with its final counts
//   - [DownloadRecord] : One track outcome within a run
//
// [DownloadRecord.Validate] guards inserts; records are only ever written once per run.
package models
