// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
	trackPageSize    = 100
)

// DefaultRedirectURI is the loopback callback registered for the authorization-code flow.
const DefaultRedirectURI = "http://127.0.0.1:9090/callback"

var spotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	Type       string          `json:"type"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for entries that were removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a page of playlist items.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at a different Web API root, e.g. an httptest server.
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithTokenURL overrides the accounts token endpoint.
func WithTokenURL(tokenURL string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = tokenURL }
}

// WithLimiter throttles every API request through l.
func WithLimiter(l *rate.Limiter) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = l }
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and follows pagination for listings.
type SpotifyService struct {
	config      *oauth2.Config
	tokens      oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	credentials map[string]string

	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Exchange trades an authorization code from the OAuth callback for a user token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuth, err)
	}
	return token, nil
}

// AuthenticateToken uses a previously obtained token, refreshing it when it expires.
func (s *SpotifyService) AuthenticateToken(ctx context.Context, token *oauth2.Token) {
	s.tokens = &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
}

// SetTokenRefreshCallback registers fn to receive every refreshed user token.
//
// Must be called before authenticating.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// AuthenticateClientCredentials authenticates the application itself.
//
// Only public playlists are visible with this grant.
func (s *SpotifyService) AuthenticateClientCredentials(ctx context.Context) error {
	cc := &clientcredentials.Config{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		TokenURL:     s.config.Endpoint.TokenURL,
	}
	s.tokens = oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx))
	if _, err := s.tokens.Token(); err != nil {
		s.tokens = nil
		return fmt.Errorf("%w: client credentials rejected: %v", shared.ErrAuth, err)
	}
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
	return nil
}

// Token returns the current token, refreshing it first if it has expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuth, err)
	}
	return token, nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs an authenticated GET against endpoint, which is either a path below the base URL or an absolute "next" link.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.tokens == nil {
		return fmt.Errorf("%w: no token loaded", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuth, re)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the token (status 401)", shared.ErrAuth)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// UserProfile retrieves the public profile of userID.
func (s *SpotifyService) UserProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/users/"+url.PathEscape(userID), &user); err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return &models.Profile{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// UserPlaylists retrieves every playlist of userID, 50 per page.
func (s *SpotifyService) UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	next := fmt.Sprintf("/users/%s/playlists?limit=%d&offset=0", url.PathEscape(userID), playlistPageSize)

	for next != "" {
		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("playlists of %s: %w", userID, err)
		}

		for _, sp := range page.Items {
			playlists = append(playlists, models.Playlist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				Owner:       sp.Owner.ID,
				TrackCount:  sp.Tracks.Total,
				Public:      sp.Public,
			})
		}

		next = nextPage(page.Next)
	}

	return playlists, nil
}

// PlaylistTracks retrieves every track of playlistID in playlist order, 100 per page.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	tracks := []models.Track{}
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=0", url.PathEscape(playlistID), trackPageSize)

	for next != "" {
		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, next, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if track, ok := convertTrack(item); ok {
				tracks = append(tracks, track)
			}
		}

		next = nextPage(page.Next)
	}

	return tracks, nil
}

// convertTrack maps a playlist item, rejecting removed entries, local files and podcast episodes.
func convertTrack(item SpotifyPlaylistTrack) (models.Track, bool) {
	t := item.Track
	if t == nil || item.IsLocal || t.IsLocal || t.Name == "" {
		return models.Track{}, false
	}
	if t.Type != "" && t.Type != "track" {
		return models.Track{}, false
	}

	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	return models.Track{
		ID:       t.ID,
		Title:    t.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    t.Album.Name,
		Duration: t.DurationMS / 1000,
	}, true
}

func nextPage(next *string) string {
	if next == nil {
		return ""
	}
	return *next
}

// ParseUserID extracts the user ID from a profile URL ("https://open.spotify.com/user/<id>?si=..."),
// a URI ("spotify:user:<id>") or a bare ID.
func ParseUserID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty spotify user", shared.ErrInvalidArgument)
	}
	input := raw

	if rest, ok := strings.CutPrefix(raw, "spotify:user:"); ok {
		raw = rest
	} else if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		raw = u.Path
	}

	raw = strings.Trim(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return "", fmt.Errorf("%w: no user ID in %q", shared.ErrInvalidArgument, input)
	}

	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return id, nil
}
