package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytdrop/internal/metrics"
	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services left nil are built from the configuration when a command needs them.
type Runner struct {
	config      *shared.Config
	configPath  string
	spotify     services.Service
	video       services.VideoService
	metrics     *metrics.Recorder
	logger      *log.Logger
	output      io.Writer
	getenv      func(string) string
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Spotify     services.Service
	Video       services.VideoService
	Logger      *log.Logger
	Output      io.Writer
	Getenv      func(string) string
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		spotify:     opts.Spotify,
		video:       opts.Video,
		metrics:     metrics.NewRecorder(),
		logger:      opts.Logger,
		output:      opts.Output,
		getenv:      opts.Getenv,
		openBrowser: opts.OpenBrowser,
	}
}

// before loads .env, the config file and the environment overlay, in that order.
//
// A config passed to [NewRunner] is used as is.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.config != nil {
		return ctx, nil
	}

	if err := shared.LoadDotEnv(".env"); err != nil {
		r.logger.Warn("ignoring .env", "error", err)
	}

	path := cmd.String("config")
	config, err := shared.LoadOrDefault(path)
	if err != nil {
		return ctx, err
	}
	shared.ApplyEnv(config, r.getenv)

	r.config = config
	r.configPath = path
	r.logger.Debug("configuration loaded", "path", path)
	return ctx, nil
}

// SetLogger replaces the logger, e.g. while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// writeMetrics writes the metrics textfile when one is configured.
func (r *Runner) writeMetrics() {
	path := r.config.Metrics.Textfile
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(shared.ExpandHome(path)); err != nil {
		r.logger.Warn("failed to write metrics", "path", path, "error", err)
		return
	}
	r.logger.Debug("metrics written", "path", path)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
