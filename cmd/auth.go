package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/desertthunder/ytdrop/internal/server"
	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const authTimeout = 2 * time.Minute

// Auth runs the authorization code flow and caches the token file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	sp := r.config.Credentials.Spotify
	svc, err := services.NewSpotifyService(sp.Map())
	if err != nil {
		return err
	}

	token, err := r.authorize(ctx, svc)
	if err != nil {
		return err
	}

	path := shared.ExpandHome(sp.TokenFile)
	if err := services.SaveToken(path, token); err != nil {
		return err
	}

	r.writePlain("\n✓ Authorization successful\n")
	r.writePlain("✓ Token saved to %s\n\n", path)
	r.writePlain("You can now use: ytdrop export\n")
	return nil
}

// spotifyClient returns the injected service or an authenticated [services.SpotifyService].
//
// A cached user token is preferred; without one the browser flow runs, unless clientCredentials is set.
func (r *Runner) spotifyClient(ctx context.Context, clientCredentials bool) (services.Service, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	sp := r.config.Credentials.Spotify
	if err := sp.Validate(); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(sp.Map(), services.WithLimiter(rate.NewLimiter(rate.Limit(10), 5)))
	if err != nil {
		return nil, err
	}

	if clientCredentials {
		if err := svc.AuthenticateClientCredentials(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	}

	path := shared.ExpandHome(sp.TokenFile)
	token, err := services.LoadToken(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Info("no cached Spotify token, starting browser authorization", "path", path)
		if token, err = r.authorize(ctx, svc); err != nil {
			return nil, err
		}
		if err := services.SaveToken(path, token); err != nil {
			r.logger.Warn("failed to cache token", "path", path, "error", err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: %v (run `ytdrop auth`)", shared.ErrAuth, err)
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := services.SaveToken(path, t); err != nil {
			r.logger.Warn("failed to cache refreshed token", "path", path, "error", err)
			return
		}
		r.logger.Debug("refreshed token cached", "path", path)
	})
	svc.AuthenticateToken(ctx, token)
	return svc, nil
}

// authorize opens the browser on the Spotify consent page and waits for the local callback.
func (r *Runner) authorize(ctx context.Context, svc *services.SpotifyService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	addr, path := r.config.CallbackAddr()
	srv, err := server.NewCallbackServer(addr, path, state, svc, r.logger)
	if err != nil {
		return nil, err
	}
	srv.Start()
	r.logger.Info("waiting for OAuth callback", "addr", srv.Addr(), "path", path)

	authURL := svc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := srv.Wait(ctx, authTimeout)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuth)
	}
	return token, nil
}
