// Package cli wires the tddf-uploader commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/config"
	"github.com/williamokano/tddf_uploader/pkg/logger"
	"github.com/williamokano/tddf_uploader/pkg/mmsapi"
)

// app holds the flag values and state shared by all commands
type app struct {
	version    string
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool
	overrides  config.Overrides

	cfg     *config.Config
	log     zerolog.Logger
	logFile io.Closer
}

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "tddf-uploader",
		Short: "Ship TDDF files from an inbox folder to the MMS server and archives",
		Long: `tddf-uploader watches an inbox folder for TDDF files, uploads them in
batches to the MMS server and every configured storage destination, and
files them under processed/ once at least one destination accepted them.

Filenames carry the scheduled slot and actual processing time, which are
decoded to report how late each file was produced.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to the JSON config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: json, console")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Shorthand for --log-level debug")
	flags.StringVar(&a.overrides.Folder, "folder", "", "Base folder holding inbox/, processed/ and logs/")
	flags.StringVar(&a.overrides.URL, "url", "", "MMS server URL")
	flags.StringVar(&a.overrides.APIKey, "key", "", "MMS API key")

	root.AddCommand(
		a.parseCmd(),
		a.pingCmd(),
		a.statusCmd(),
		a.uploadCmd(),
		a.reconcileCmd(),
		a.pruneCmd(),
		a.migrateCmd(),
		a.versionCmd(),
	)

	return root
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// setup loads the config, applies flag overrides and builds the logger.
// upload also appends to logs/tddf-uploader.log.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.overrides.Apply(cfg)
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.GetLogLevel()
	}
	if a.verbose {
		level = "debug"
	}
	format := a.logFormat
	if format == "" {
		format = cfg.GetLogFormat()
	}

	if cmd.Name() == "upload" {
		closer, err := logger.InitWithFile(level, format, cfg.LogPath())
		if err != nil {
			return err
		}
		a.logFile = closer
		a.log = *logger.Get()
		return nil
	}

	a.log = logger.New(cmd.ErrOrStderr(), level, format)
	return nil
}

// command wraps a RunE so every invocation logs its start and end
// under one correlation id
func (a *app) command(fn func(cmd *cobra.Command, args []string, log zerolog.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.closeLogFile()

		log := a.log.With().
			Str("command", cmd.Name()).
			Str("correlation_id", uuid.NewString()).
			Logger()

		start := time.Now()
		log.Debug().Strs("args", args).Msg("command started")

		err := fn(cmd, args, log)

		event := log.Debug()
		if err != nil && !errors.Is(err, errCheckFailed) {
			event = log.Error().Err(err)
		}
		event.Dur("duration", time.Since(start)).Msg("command finished")

		return err
	}
}

func (a *app) closeLogFile() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// client builds an MMS API client from the server section
func (a *app) client(log zerolog.Logger) (*mmsapi.Client, error) {
	if a.cfg.Server.URL == "" {
		return nil, errors.New("server url is not configured (set server.url or --url)")
	}
	return mmsapi.NewClient(mmsapi.Options{
		BaseURL:           a.cfg.Server.URL,
		APIKey:            a.cfg.Server.APIKey,
		RequestsPerSecond: a.cfg.Server.RequestsPerSecond,
		Version:           a.version,
		Logger:            log,
	}), nil
}
