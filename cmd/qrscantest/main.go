// Package main provides a camera smoke test: it opens the configured
// decoder and prints every code it sees.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/infra/config"
	"github.com/osa030/qrjukebox/internal/infra/logger"
	"github.com/osa030/qrjukebox/internal/infra/scanner"
)

const (
	defaultConfigPath = "config/qrjukebox.yaml"
	pollInterval      = 100 * time.Millisecond
	heartbeat         = 2 * time.Second
)

var (
	app        = kingpin.New("qrscantest", "Print every code the scanner decodes")
	configPath = app.Flag("config", "Path to config file").Default(defaultConfigPath).String()
	device     = app.Flag("device", "Video device (overrides config)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Level: "info", Console: os.Stderr}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if _, err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath, *configPath == defaultConfigPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *device != "" {
		if cfg.Decoder.Settings == nil {
			cfg.Decoder.Settings = make(map[string]any)
		}
		cfg.Decoder.Settings["device"] = *device
	}

	fmt.Println("Opening camera...")
	decoder, err := scanner.NewFromConfig(&cfg.Decoder, os.Stdin)
	if err != nil {
		fmt.Printf("ERROR: Could not open camera: %v\n", err)
		os.Exit(1)
	}
	defer decoder.Close()

	fmt.Println("\nScanning for QR codes... (Ctrl+C to stop)")
	fmt.Println("Hold a QR code in front of the camera.")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scan(ctx, decoder); err != nil {
		fmt.Printf("Scanner stopped: %v\n", err)
		return
	}
	fmt.Println("\nStopped.")
}

// scan prints decoded codes, and a heartbeat while nothing is seen.
func scan(ctx context.Context, decoder scanner.Decoder) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	polls := 0
	lastStatus := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		polls++

		codes, err := decoder.Capture()
		if err != nil {
			if errors.Is(err, scanner.ErrDecoderClosed) {
				return err
			}
			fmt.Printf("Poll %d: capture failed: %v\n", polls, err)
			continue
		}

		if len(codes) > 0 {
			for _, c := range codes {
				fmt.Printf("Poll %d: FOUND %s\n", polls, c)
			}
			lastStatus = time.Now()
		} else if time.Since(lastStatus) > heartbeat {
			fmt.Printf("Poll %d: scanning... (no QR code detected)\n", polls)
			lastStatus = time.Now()
		}
	}
}
