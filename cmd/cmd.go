// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const version = "0.3.0"

// app builds the root command. Global flags are inherited by every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "ytdrop",
		Usage:   "Export Spotify playlists to manifests and download them as audio from YouTube",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		exportCommand, downloadCommand, authCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// exportCommand writes one manifest per Spotify playlist
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every playlist of the configured Spotify user to text manifests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Manifest directory (default: paths.manifest_dir)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Spotify profile URL or user ID (default: credentials.spotify.user_url)",
			},
			&cli.BoolFlag{
				Name:  "include-followed",
				Usage: "Also export playlists the user follows but does not own",
			},
			&cli.BoolFlag{
				Name:  "client-credentials",
				Usage: "Authenticate as the application instead of the user (public playlists only)",
			},
		},
		Action: r.Export,
	}
}

// downloadCommand resolves every manifest line to an audio file
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download every manifest line as audio, skipping files that already exist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "manifests",
				Aliases: []string{"m"},
				Usage:   "Manifest directory (default: paths.manifest_dir)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Audio output directory (default: paths.output_dir)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent downloads (default: download.workers)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view; logs go to ./tmp/ytdrop-tui.log",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Also write the run report to this file (.json, .csv, .md or .txt)",
			},
		},
		Action: r.Download,
	}
}

// authCommand caches a Spotify user token
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize ytdrop with Spotify in the browser and cache the token",
		Action: r.Auth,
	}
}

// historyCommand prints recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent download runs, failures first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of runs to show",
				Value:   1,
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "List every track, not only failures",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Show a single run by ID",
			},
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "Forget failures whose audio file has since been downloaded",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// setupCommand handles first-run configuration and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write config.toml from the defaults and initialize the history database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "install-ytdlp",
				Usage: "Download a yt-dlp release when none is on PATH",
			},
			&cli.BoolFlag{
				Name:  "save-env",
				Usage: "Persist Spotify credentials from the environment into the config file",
			},
		},
		Action: r.Setup,
	}
}
