// Package gate turns raw decoded codes into at-most-once dispatch decisions.
package gate

import "time"

// DefaultWindow is the minimum time between two dispatches of the same code.
const DefaultWindow = 2 * time.Second

// Decision is the outcome of feeding one code through the gate.
type Decision int

const (
	Suppress Decision = iota // Same code seen within the window
	Dispatch                 // Code should be handled
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case Dispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// Gate holds debounce state for a single scan loop.
// It is not safe for concurrent use; the loop is its only caller.
type Gate struct {
	window   time.Duration
	lastCode string
	lastTime time.Time
	hasLast  bool
}

// New creates a gate. A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{window: window}
}

// Window returns the debounce window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Decide suppresses a code equal to the last dispatched one while
// now-last < window. Every Dispatch records (code, now).
func (g *Gate) Decide(code string, now time.Time) Decision {
	if g.hasLast && code == g.lastCode && now.Sub(g.lastTime) < g.window {
		return Suppress
	}

	g.lastCode = code
	g.lastTime = now
	g.hasLast = true
	return Dispatch
}

// Last returns the last dispatched code and its time.
func (g *Gate) Last() (string, time.Time, bool) {
	return g.lastCode, g.lastTime, g.hasLast
}
