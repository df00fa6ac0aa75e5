// Package player builds the command line of the external program that
// plays a track and spawns it.
package player

import (
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/infra/process"
)

// FilePlaceholder is replaced by the track path in configured player args.
const FilePlaceholder = "{file}"

// ErrPlayerNotFound is returned by Start when the player binary is missing.
var ErrPlayerNotFound = errors.New("player binary not found")

// Config holds launcher configuration.
type Config struct {
	Command string   // Player binary; empty selects the platform default
	Args    []string // Arguments; FilePlaceholder marks the track path
	GOOS    string   // Platform override (defaults to runtime.GOOS)
}

// Launcher builds the player command line and spawns it.
type Launcher struct {
	command string
	args    []string
}

// NewLauncher creates a launcher for the given configuration.
func NewLauncher(cfg Config) *Launcher {
	if cfg.Command == "" {
		goos := cfg.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		def := DefaultCommand(goos)
		return &Launcher{command: def[0], args: def[1:]}
	}
	return &Launcher{command: cfg.Command, args: cfg.Args}
}

// DefaultCommand returns the platform default player command template.
func DefaultCommand(goos string) []string {
	switch goos {
	case "darwin":
		// afplay ships with macOS
		return []string{"afplay", FilePlaceholder}
	default:
		return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", FilePlaceholder}
	}
}

// Command returns the full command line used to play path.
func (l *Launcher) Command(path string) []string {
	cmd := make([]string, 0, len(l.args)+2)
	cmd = append(cmd, l.command)

	replaced := false
	for _, a := range l.args {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, path)
			replaced = true
		}
		cmd = append(cmd, a)
	}
	if !replaced {
		cmd = append(cmd, path)
	}
	return cmd
}

// Start spawns the player for path. Player output is discarded except for
// the stderr tail kept on the process.
func (l *Launcher) Start(path string) (process.Process, error) {
	argv := l.Command(path)
	zlog.Debug().Msgf("player: running %s", strings.Join(argv, " "))

	p, err := process.Start(argv, nil)
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			return nil, errors.Mark(err, ErrPlayerNotFound)
		}
		return nil, err
	}
	return p, nil
}
