package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the config file when missing, migrates the history database and optionally installs yt-dlp.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = cmd.String("config")
	}

	if shared.FileExists(path) {
		r.logger.Info("config file found", "path", path)
	} else {
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", path)

		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		shared.ApplyEnv(config, r.getenv)
		r.config = config
	}

	if cmd.Bool("save-env") {
		if err := shared.SaveConfig(path, r.config); err != nil {
			return err
		}
		r.logger.Info("environment credentials saved", "path", path)
	}

	db := r.config.Database
	if db.Path != "" {
		r.logger.Info("initializing database", "path", db.Path)
		conn, err := shared.OpenHistory(db.Path, db.MaxOpenConns, db.MaxIdleConns)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		conn.Close()
	}

	if cmd.Bool("install-ytdlp") {
		exe, err := services.InstallYtdlp(ctx)
		if err != nil {
			return err
		}
		r.writePlain("✓ yt-dlp available at %s\n", exe)
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", path)
	if db.Path != "" {
		r.writePlain("History: %s\n", db.Path)
	}
	if err := r.config.Credentials.Spotify.Validate(); err != nil {
		r.writePlain("\nNext: set %v in %s or .env, then run `ytdrop auth`\n", err, path)
	}
	return nil
}
