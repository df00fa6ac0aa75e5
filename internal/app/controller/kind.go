package controller

// Kind is the category of a dispatched code.
type Kind int

const (
	KindUnknown Kind = iota // Not a reserved code and not an album
	KindStop                // Reserved stop code
	KindSkip                // Reserved skip code
	KindAlbum               // Names an album directory
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindSkip:
		return "skip"
	case KindAlbum:
		return "album"
	default:
		return "unknown"
	}
}

// Action is what the controller did with a code.
type Action int

const (
	ActionSuppressed     Action = iota // Repeat within the debounce window
	ActionStopped                      // Playback stopped
	ActionSkipped                      // Current track skipped
	ActionIgnored                      // Stop or skip while idle
	ActionPlaying                      // Album started
	ActionAlreadyPlaying               // Album already playing, left alone
	ActionEmptyAlbum                   // Album has no playable tracks
	ActionNotFound                     // No album by that name
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionSuppressed:
		return "suppressed"
	case ActionStopped:
		return "stopped"
	case ActionSkipped:
		return "skipped"
	case ActionIgnored:
		return "ignored"
	case ActionPlaying:
		return "playing"
	case ActionAlreadyPlaying:
		return "already_playing"
	case ActionEmptyAlbum:
		return "empty_album"
	case ActionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
