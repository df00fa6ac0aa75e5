package playback

import "github.com/osa030/qrjukebox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventAlbumStarted    EventType = iota // Album selected, sequencing started
	EventTrackStarted                     // Player process spawned for a track
	EventTrackEnded                       // Player exited with status 0
	EventTrackFailed                      // Player exited non-zero or could not start
	EventTrackSkipped                     // Track cut short by a skip
	EventAlbumFinished                    // Last track done
	EventAlbumAborted                     // Player binary missing, album abandoned
	EventPlaybackStopped                  // Stopped by request
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventAlbumStarted:
		return "album_started"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackFailed:
		return "track_failed"
	case EventTrackSkipped:
		return "track_skipped"
	case EventAlbumFinished:
		return "album_finished"
	case EventAlbumAborted:
		return "album_aborted"
	case EventPlaybackStopped:
		return "playback_stopped"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	RunID    string       // Sequencing run the event belongs to
	Album    string       // Album selector
	Index    int          // Zero-based track index (-1 for album level events)
	Total    int          // Number of tracks in the album
	Track    *track.Track // Track concerned (nil for album level events)
	ExitCode int          // Player exit status for track_ended/track_failed
	Err      error        // Failure cause, if any
	State    State        // Playback state after the event
}
