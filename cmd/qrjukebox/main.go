// Package main provides the jukebox daemon entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/api/status"
	"github.com/osa030/qrjukebox/internal/app/controller"
	"github.com/osa030/qrjukebox/internal/app/gate"
	"github.com/osa030/qrjukebox/internal/app/notification"
	"github.com/osa030/qrjukebox/internal/app/playback"
	"github.com/osa030/qrjukebox/internal/infra/catalog"
	"github.com/osa030/qrjukebox/internal/infra/config"
	"github.com/osa030/qrjukebox/internal/infra/logger"
	"github.com/osa030/qrjukebox/internal/infra/player"
	"github.com/osa030/qrjukebox/internal/infra/scanner"
)

const defaultConfigPath = "config/qrjukebox.yaml"

var (
	app        = kingpin.New("qrjukebox", "Plays album folders when their QR card is held up to the camera")
	musicDir   = app.Arg("music-dir", "Music folder with one sub-folder per album (overrides config)").String()
	configPath = app.Flag("config", "Path to config file").Default(defaultConfigPath).String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	listAlbums = app.Flag("list-albums", "List albums in the music folder and exit").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// A missing file is fine at the default path: the appliance boots on defaults
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath, *configPath == defaultConfigPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *musicDir != "" {
		cfg.MusicDir = *musicDir
	}

	cat := catalog.New(catalog.Config{
		Root:       cfg.MusicDir,
		Extensions: cfg.Catalog.Extensions,
		ReadTags:   cfg.IsReadTags(),
	})

	if *listAlbums {
		if err := printAlbums(os.Stdout, cat); err != nil {
			zlog.Error().Msgf("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, cat); err != nil {
		zlog.Error().Msgf("Startup failed: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main daemon logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
// Only startup failures are returned.
func run(cfg *config.Config, cat *catalog.Catalog) error {
	zlog.Info().Msg("==================================================")
	zlog.Info().Msg("QR Code Jukebox")
	zlog.Info().Msg("==================================================")
	zlog.Info().Msgf("Music folder: %s", cat.Root())

	albums, err := cat.Albums()
	if err != nil {
		zlog.Warn().Msgf("Could not list albums: %v", err)
	} else {
		zlog.Info().Msgf("Found %d albums: %v", len(albums), albums)
	}

	// The sensor is the only fatal dependency
	decoder, err := scanner.NewFromConfig(&cfg.Decoder, os.Stdin)
	if err != nil {
		return errors.Wrap(err, "failed to open scanner")
	}
	defer func() {
		if err := decoder.Close(); err != nil {
			zlog.Error().Msgf("Failed to release scanner: %v", err)
		}
	}()

	engine := playback.NewEngine(cat, player.NewLauncher(player.Config{
		Command: cfg.Player.Command,
		Args:    cfg.Player.Args,
	}), playback.Config{
		GracePeriod: cfg.GracePeriod(),
		JoinTimeout: cfg.JoinTimeout(),
	})
	defer engine.Close()

	notifier := notification.NewManager()
	defer notifier.Close()
	metrics := status.NewMetrics()
	notifier.Subscribe(metrics)

	ctrl := controller.New(decoder, gate.New(cfg.DebounceWindow()), engine, cat, controller.Config{
		StopCode:     cfg.Codes.Stop,
		SkipCode:     cfg.Codes.Skip,
		SkipEnabled:  cfg.IsSkipEnabled(),
		IdleInterval: cfg.IdleInterval(),
	}, controller.WithRecorder(metrics), controller.WithNotifier(notifier))

	var statusServer *status.Server
	if cfg.Status.Addr != "" {
		statusServer = status.New(status.Config{
			Addr:       cfg.Status.Addr,
			AdminToken: cfg.Status.AdminToken,
		}, engine, cat, notifier, metrics)
		if err := statusServer.Start(); err != nil {
			return err
		}
	}

	// Execute startup hook if configured (after the sensor is open)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")
	defer executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Info().Msg("Starting scanner... (Press Ctrl+C to exit)")
	zlog.Info().Msg("--------------------------------------------------")

	if err := ctrl.Run(ctx); err != nil {
		// Input ended (e.g. stdin closed); shut down like an interrupt
		zlog.Warn().Msgf("Scanner closed: %v", err)
	} else {
		zlog.Info().Msg("Received shutdown signal...")
	}

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("%v", err)
		}
	}

	zlog.Info().Msg("Shutting down...")
	return nil
}

// printAlbums writes one album selector per line.
func printAlbums(w io.Writer, cat *catalog.Catalog) error {
	albums, err := cat.Albums()
	if err != nil {
		return err
	}
	for _, name := range albums {
		a, err := cat.Album(name)
		if err != nil {
			return err
		}
		if a.IsEmpty() {
			fmt.Fprintf(w, "  %-40s %3d tracks (no playable files)\n", a.Selector, a.Len())
			continue
		}
		fmt.Fprintf(w, "  %-40s %3d tracks\n", a.Selector, a.Len())
	}
	return nil
}
