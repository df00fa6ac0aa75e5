// Package main provides the remote control CLI for a running jukebox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/qrjukebox/internal/api/status"
)

var (
	app    = kingpin.New("qrctl", "qrjukebox remote control")
	server = app.Flag("server", "Status server address").Default("http://localhost:8080").Envar("QRJUKEBOX_SERVER").String()
	token  = app.Flag("token", "Admin token (or set QRJUKEBOX_ADMIN_TOKEN env)").Envar("QRJUKEBOX_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show what is playing")

	// albums command
	albumsCmd = app.Command("albums", "List albums").Alias("list")

	// stop command
	stopCmd = app.Command("stop", "Stop playback")

	// skip command
	skipCmd = app.Command("skip", "Skip the current track")

	// play command
	playCmd   = app.Command("play", "Play an album")
	playAlbum = playCmd.Arg("album", "Album folder name").Required().String()

	// watch command
	watchCmd = app.Command("watch", "Print playback events as they happen")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := status.NewClient(*server, *token, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = printStatus(ctx, client)
	case albumsCmd.FullCommand():
		err = printAlbums(ctx, client)
	case stopCmd.FullCommand():
		err = stopPlayback(ctx, client)
	case skipCmd.FullCommand():
		err = skipTrack(ctx, client)
	case playCmd.FullCommand():
		err = client.Play(ctx, *playAlbum)
		if err == nil {
			fmt.Printf("Playing %s\n", *playAlbum)
		}
	case watchCmd.FullCommand():
		err = client.Watch(ctx, printEvent)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, client *status.Client) error {
	s, err := client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== CURRENT STATUS ===")
	fmt.Printf("State: %s\n", s.State)
	if s.Album != "" {
		fmt.Printf("Album: %s\n", s.Album)
		fmt.Printf("Track: %d/%d\n", min(s.TrackIndex+1, s.TrackCount), s.TrackCount)
	}
	if s.Track != nil {
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  Name: %s\n", s.Track.Name)
		fmt.Printf("  File: %s\n", s.Track.Path)
	} else {
		fmt.Println("\nNo track currently playing")
	}
	fmt.Println()
	return nil
}

func printAlbums(ctx context.Context, client *status.Client) error {
	albums, err := client.Albums(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Albums (%d):\n", len(albums))
	for _, a := range albums {
		fmt.Printf("  %s\n", a)
	}
	return nil
}

func stopPlayback(ctx context.Context, client *status.Client) error {
	stopped, err := client.Stop(ctx)
	if err != nil {
		return err
	}
	if stopped {
		fmt.Println("Playback stopped")
	} else {
		fmt.Println("Nothing was playing")
	}
	return nil
}

func skipTrack(ctx context.Context, client *status.Client) error {
	skipped, err := client.Skip(ctx)
	if err != nil {
		return err
	}
	if skipped {
		fmt.Println("Track skipped")
	} else {
		fmt.Println("Nothing was playing")
	}
	return nil
}

func printEvent(msg status.EventMessage) {
	switch msg.Type {
	case "album_started":
		fmt.Printf("[%s] Album started: %s (%d tracks)\n", msg.Time, msg.Album, msg.Total)
	case "track_started":
		if msg.Track != nil {
			fmt.Printf("[%s] Now playing [%d/%d]: %s\n", msg.Time, msg.Index+1, msg.Total, msg.Track.Name)
		}
	case "track_failed":
		fmt.Printf("[%s] Track failed (exit %d): %s\n", msg.Time, msg.ExitCode, msg.Error)
	default:
		fmt.Printf("[%s] %s: %s\n", msg.Time, msg.Type, msg.Album)
	}
}
