package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors (fatal for the export stage)
	ErrAuth             = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrPlaylistFetch      = fmt.Errorf("playlist fetch failed")

	// Per-track pipeline errors, recorded and skipped past
	ErrSearchMiss = fmt.Errorf("no search result")
	ErrDownload   = fmt.Errorf("download failed")
	ErrTranscode  = fmt.Errorf("transcode failed")
	ErrDuplicate  = fmt.Errorf("duplicate")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

