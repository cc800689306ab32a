package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/ytdrop/internal/shared"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// newTestSpotify returns an authenticated service pointed at an httptest server running mux.
func newTestSpotify(t *testing.T, mux *http.ServeMux) (*SpotifyService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(testCredentials, WithBaseURL(server.URL), WithTokenURL(server.URL+"/token"))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.AuthenticateToken(context.Background(), &oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer"})
	return srv, server
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != DefaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "playlist-read-private"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL should contain %q: %s", want, authURL)
			}
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("Unauthenticated Request", func(t *testing.T) {
			_, err := srv.UserProfile(context.Background(), "alice")
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("WithAccessToken", func(t *testing.T) {
			srv.AuthenticateToken(context.Background(), &oauth2.Token{AccessToken: "abc", TokenType: "Bearer"})

			token, err := srv.Token()
			if err != nil {
				t.Fatalf("expected token, got %v", err)
			}
			if token.AccessToken != "abc" {
				t.Errorf("expected access token abc, got %s", token.AccessToken)
			}
		})
	})

	t.Run("Exchange", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("failed to parse form: %v", err)
			}
			if r.Form.Get("code") != "good" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			writeJSON(t, w, map[string]any{"access_token": "user_token", "token_type": "Bearer", "refresh_token": "r"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, _ := NewSpotifyService(testCredentials, WithTokenURL(server.URL+"/token"))

		token, err := srv.Exchange(context.Background(), "good")
		if err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
		if token.AccessToken != "user_token" || token.RefreshToken != "r" {
			t.Errorf("unexpected token %+v", token)
		}

		if _, err := srv.Exchange(context.Background(), "bad"); !errors.Is(err, shared.ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
	})

	t.Run("Client Credentials", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("failed to parse form: %v", err)
			}
			if r.Form.Get("grant_type") != "client_credentials" {
				t.Errorf("expected client_credentials grant, got %s", r.Form.Get("grant_type"))
			}
			writeJSON(t, w, map[string]any{"access_token": "app_token", "token_type": "bearer", "expires_in": 3600})
		})
		mux.HandleFunc("/users/alice", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer app_token" {
				t.Errorf("expected app token, got %q", got)
			}
			writeJSON(t, w, SpotifyUser{ID: "alice", DisplayName: "Alice"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, err := NewSpotifyService(testCredentials, WithBaseURL(server.URL), WithTokenURL(server.URL+"/token"))
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		if err := srv.AuthenticateClientCredentials(context.Background()); err != nil {
			t.Fatalf("client credentials failed: %v", err)
		}

		profile, err := srv.UserProfile(context.Background(), "alice")
		if err != nil {
			t.Fatalf("UserProfile() error = %v", err)
		}
		if profile.DisplayName != "Alice" {
			t.Errorf("expected Alice, got %s", profile.DisplayName)
		}
	})

	t.Run("Client Credentials Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
		}))
		defer server.Close()

		srv, _ := NewSpotifyService(testCredentials, WithTokenURL(server.URL))
		if err := srv.AuthenticateClientCredentials(context.Background()); !errors.Is(err, shared.ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ Service = srv
	})
}

func TestSpotifyErrors(t *testing.T) {
	tc := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: shared.ErrAuth},
		{name: "not found", status: http.StatusNotFound, want: shared.ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, want: shared.ErrServiceUnavailable},
		{name: "server error", status: http.StatusBadGateway, want: shared.ErrServiceUnavailable},
		{name: "bad request", status: http.StatusBadRequest, want: shared.ErrAPIRequest},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/users/ghost", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			srv, _ := newTestSpotify(t, mux)

			_, err := srv.UserProfile(context.Background(), "ghost")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSpotifyPagination(t *testing.T) {
	t.Run("UserPlaylists follows next", func(t *testing.T) {
		var server *httptest.Server
		mux := http.NewServeMux()
		mux.HandleFunc("/users/alice/playlists", func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "50" {
				t.Errorf("expected limit 50, got %s", got)
			}
			switch r.URL.Query().Get("offset") {
			case "0":
				next := server.URL + "/users/alice/playlists?limit=50&offset=50"
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{
						{"id": "p1", "name": "Rock", "owner": map[string]any{"id": "alice"}, "tracks": map[string]any{"total": 2}},
					},
					"next": next,
				})
			case "50":
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{
						{"id": "p2", "name": "Jazz", "owner": map[string]any{"id": "bob"}, "public": true},
					},
					"next": nil,
				})
			default:
				t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
			}
		})
		srv, s := newTestSpotify(t, mux)
		server = s

		playlists, err := srv.UserPlaylists(context.Background(), "alice")
		if err != nil {
			t.Fatalf("UserPlaylists() error = %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].Name != "Rock" || playlists[0].TrackCount != 2 || playlists[0].Owner != "alice" {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if playlists[1].Owner != "bob" || !playlists[1].Public {
			t.Errorf("unexpected second playlist: %+v", playlists[1])
		}
	})

	t.Run("PlaylistTracks keeps order and drops null tracks", func(t *testing.T) {
		var server *httptest.Server
		var calls atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if got := r.URL.Query().Get("limit"); got != "100" {
				t.Errorf("expected limit 100, got %s", got)
			}
			if r.URL.Query().Get("offset") == "0" {
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{
						{"track": map[string]any{
							"name": "Bohemian Rhapsody", "type": "track", "duration_ms": 354000,
							"artists": []map[string]any{{"name": "Queen"}},
							"album":   map[string]any{"name": "A Night at the Opera"},
						}},
						{"track": nil},
						{"is_local": true, "track": map[string]any{"name": "Local Demo", "is_local": true}},
					},
					"next": server.URL + "/playlists/p1/tracks?limit=100&offset=100",
				})
				return
			}
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"track": map[string]any{
						"name": "Under Pressure", "type": "track",
						"artists": []map[string]any{{"name": "Queen"}, {"name": "David Bowie"}},
					}},
					{"track": map[string]any{"name": "Some Podcast", "type": "episode"}},
				},
				"next": nil,
			})
		})
		srv, s := newTestSpotify(t, mux)
		server = s

		tracks, err := srv.PlaylistTracks(context.Background(), "p1")
		if err != nil {
			t.Fatalf("PlaylistTracks() error = %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 page requests, got %d", calls.Load())
		}

		want := []string{"Queen - Bohemian Rhapsody", "Queen, David Bowie - Under Pressure"}
		if len(tracks) != len(want) {
			t.Fatalf("expected %d tracks, got %d: %+v", len(want), len(tracks), tracks)
		}
		for i, w := range want {
			if got := tracks[i].Query(); got != w {
				t.Errorf("track %d = %q, want %q", i, got, w)
			}
		}
		if tracks[0].Duration != 354 || tracks[0].Album != "A Night at the Opera" {
			t.Errorf("unexpected track metadata: %+v", tracks[0])
		}
	})

	t.Run("Empty playlist", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/playlists/empty/tracks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"items": []any{}, "next": nil})
		})
		srv, _ := newTestSpotify(t, mux)

		tracks, err := srv.PlaylistTracks(context.Background(), "empty")
		if err != nil {
			t.Fatalf("PlaylistTracks() error = %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", tracks)
		}
	})
}

func TestParseUserID(t *testing.T) {
	tc := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "profile url", in: "https://open.spotify.com/user/alice", want: "alice"},
		{name: "profile url with query", in: "https://open.spotify.com/user/alice?si=abc123", want: "alice"},
		{name: "trailing slash", in: "https://open.spotify.com/user/alice/", want: "alice"},
		{name: "uri", in: "spotify:user:bob", want: "bob"},
		{name: "bare id", in: "  carol  ", want: "carol"},
		{name: "escaped", in: "https://open.spotify.com/user/d%C3%A9j%C3%A0", want: "déjà"},
		{name: "empty", in: "", wantErr: true},
		{name: "no path", in: "https://open.spotify.com/", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUserID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUserID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseUserID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	if err := SaveToken(path, token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	loaded, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
		t.Errorf("unexpected token: %+v", loaded)
	}

	if _, err := LoadToken(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback when token changes", func(t *testing.T) {
		var captured []string
		mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{
			source:   mockSource,
			callback: func(token *oauth2.Token) { captured = append(captured, token.AccessToken) },
		}

		source.Token()
		source.Token()
		mockSource.token = &oauth2.Token{AccessToken: "token2"}
		source.Token()

		if strings.Join(captured, ",") != "token1,token2" {
			t.Errorf("expected callbacks for token1 and token2, got %v", captured)
		}
	})

	t.Run("skips the token it was seeded with", func(t *testing.T) {
		called := false
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "seed"}},
			callback: func(*oauth2.Token) { called = true },
			last:     "seed",
		}
		source.Token()
		if called {
			t.Error("callback should not fire for the seeded token")
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source: &mockTokenSource{err: errors.New("token source error")},
			callback: func(token *oauth2.Token) {
				t.Error("callback should not be called on error")
			},
		}

		token, err := source.Token()
		if err == nil || token != nil {
			t.Fatalf("expected error and nil token, got %v %v", token, err)
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
