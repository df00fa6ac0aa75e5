// Package playback sequences album tracks through an external player process.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No sequencing task running
	StatePlaying              // Sequencing task is running
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
