// Package services defines the [Service] and [VideoService] interfaces and implements them for Spotify and YouTube.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The [oauth2.Client] refreshes expired tokens using the refresh token; refreshed
// tokens can be persisted with [SaveToken] and restored with [LoadToken].
// When no user token is cached, [SpotifyService.AuthenticateClientCredentials]
// falls back to the client-credentials grant, which can read public playlists only.
//
// Requests pass through a [rate.Limiter] and follow the "next" link of every page
// (50 playlists or 100 tracks per request) until it is null.
//
// # YouTube Implementation
//
// [YouTubeService] drives the yt-dlp executable through [ytdlp.Command].
// Search uses the "ytsearch1:" pseudo-URL with flat playlist extraction and accepts
// the top result. Downloads select the best audio stream and let yt-dlp extract and
// transcode it with ffmpeg.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrAuth] : credentials rejected (401) or token refresh failed
//   - [shared.ErrNotFound] : user or playlist does not exist (404)
//   - [shared.ErrServiceUnavailable] : rate limited (429) or server error
//   - [shared.ErrAPIRequest] : any other unexpected response
//   - [shared.ErrSearchMiss] : search returned no results
//   - [shared.ErrDownload], [shared.ErrTranscode] : yt-dlp or ffmpeg failed
package services
