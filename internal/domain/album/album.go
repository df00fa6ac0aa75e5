// Package album provides the Album domain entity.
package album

import (
	"strings"

	"github.com/osa030/qrjukebox/internal/domain/track"
)

// Album represents a folder of tracks selected by a scanned code.
// Track order is the catalog order at selection time.
type Album struct {
	Selector string        // Folder name, also the code printed on the card
	Tracks   []track.Track // Ordered tracks
}

// New creates an album from a selector and its resolved tracks.
func New(selector string, tracks []track.Track) Album {
	return Album{Selector: selector, Tracks: tracks}
}

// Len returns the number of tracks.
func (a Album) Len() int {
	return len(a.Tracks)
}

// IsEmpty reports whether the album has no playable tracks.
func (a Album) IsEmpty() bool {
	return len(a.Tracks) == 0
}

// TrackPaths returns the media file paths in play order.
func (a Album) TrackPaths() []string {
	paths := make([]string, len(a.Tracks))
	for i, t := range a.Tracks {
		paths[i] = t.Path
	}
	return paths
}

// Label returns a printable label derived from the selector,
// e.g. "beatles-abbey-road" -> "beatles abbey road".
func Label(selector string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(selector)
}
