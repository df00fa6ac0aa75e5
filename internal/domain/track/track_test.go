package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrack_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "untagged falls back to file name",
			track:    New("/music/beatles-abbey-road/01 Come Together.mp3"),
			expected: "01 Come Together.mp3",
		},
		{
			name:     "title only",
			track:    Track{Path: "/music/a/01.mp3", Title: "Come Together"},
			expected: "Come Together",
		},
		{
			name:     "artist and title",
			track:    Track{Path: "/music/a/01.mp3", Title: "Something", Artist: "The Beatles"},
			expected: "The Beatles - Something",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.DisplayName())
		})
	}
}

func TestTrack_Ext(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/music/a/01.mp3", ".mp3"},
		{"/music/a/02.FLAC", ".flac"},
		{"/music/a/noext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.path).Ext())
		})
	}
}
