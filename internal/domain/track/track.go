// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track represents a single playable media file inside an album folder.
type Track struct {
	Path   string // Absolute path to the media file
	Title  string // Title from tags (empty if untagged)
	Artist string // Artist from tags (empty if untagged)
	Album  string // Album from tags (empty if untagged)
}

// New creates a track for the given file path without tag information.
func New(path string) Track {
	return Track{Path: path}
}

// FileName returns the base name of the media file.
func (t Track) FileName() string {
	return filepath.Base(t.Path)
}

// Ext returns the lower-cased file extension including the leading dot.
func (t Track) Ext() string {
	return strings.ToLower(filepath.Ext(t.Path))
}

// DisplayName returns a human readable name for log lines.
// Falls back to the file name when the track carries no title tag.
func (t Track) DisplayName() string {
	if t.Title == "" {
		return t.FileName()
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
