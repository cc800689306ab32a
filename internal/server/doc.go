// Package server runs the short-lived local HTTP server used by `ytdrop auth`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on top of
// [http.ServeMux]; [RequestLogger] is the only middleware ytdrop installs.
//
// # OAuth Callback
//
// [OAuthHandler] receives the Spotify redirect, checks the state parameter, exchanges the code through a
// [TokenExchanger], and publishes exactly one [OAuthResult]. Later callbacks are rejected.
//
// [CallbackServer] listens on the redirect URI's host and port, serves the handler in the background, and shuts
// itself down once a result arrives or the wait times out.
package server
