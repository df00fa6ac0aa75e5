// Package main provides the printable QR card generator.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/osa030/qrjukebox/internal/infra/cards"
	"github.com/osa030/qrjukebox/internal/infra/catalog"
)

var (
	app       = kingpin.New("qrcards", "Generate printable QR cards for album folders")
	musicDir  = app.Flag("music-dir", "Music folder with one sub-folder per album").Default("music").String()
	outputDir = app.Flag("output", "Output folder").Short('o').Default("qr-cards").String()
	size      = app.Flag("size", "QR code size in pixels").Default("400").Int()
	stopCode  = app.Flag("stop-code", "Code printed on the STOP card").Default("STOP").String()
	skipCode  = app.Flag("skip-code", "Code printed on the SKIP card").Default("SKIP").String()

	single      = app.Flag("single", "Generate a single card instead of one per album").Bool()
	singleCode  = app.Arg("code", "Code of the single card").String()
	singleLabel = app.Arg("label", "Label of the single card").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *single {
		if *singleCode == "" || *singleLabel == "" {
			app.Fatalf("--single needs CODE and LABEL")
		}
		write(cards.Card{Code: *singleCode, Label: *singleLabel})
		return
	}

	cat := catalog.New(catalog.Config{Root: *musicDir})
	albums, err := cat.Albums()
	if err != nil {
		fmt.Printf("Music folder not found: %s\n", *musicDir)
		fmt.Println("Create album folders in music/ first.")
		os.Exit(1)
	}
	if len(albums) == 0 {
		fmt.Printf("No album folders found in %s\n", *musicDir)
		fmt.Println("Create folders like: music/beatles-abbey-road/")
		os.Exit(1)
	}

	for _, a := range albums {
		// QR code contains the folder name directly
		write(cards.ForAlbum(a))
	}

	// Always generate control cards
	write(cards.Card{Code: *stopCode, Label: "STOP"})
	write(cards.Card{Code: *skipCode, Label: "SKIP"})

	fmt.Printf("\nGenerated %d QR cards in %s\n", len(albums)+2, *outputDir)
}

func write(c cards.Card) {
	path, err := cards.WriteFile(*outputDir, c, *size)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created: %s\n", path)
}
