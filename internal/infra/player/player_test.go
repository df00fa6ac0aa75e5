package player

import (
	"runtime"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/qrjukebox/internal/infra/process"
)

func TestLauncher_Command(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		path     string
		expected []string
	}{
		{
			name:     "darwin default",
			config:   Config{GOOS: "darwin"},
			path:     "/music/a/01.mp3",
			expected: []string{"afplay", "/music/a/01.mp3"},
		},
		{
			name:     "linux default",
			config:   Config{GOOS: "linux"},
			path:     "/music/a/01.mp3",
			expected: []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "/music/a/01.mp3"},
		},
		{
			name:     "custom command with placeholder",
			config:   Config{Command: "mpv", Args: []string{"--no-video", "--really-quiet", FilePlaceholder}},
			path:     "/music/a/01.ogg",
			expected: []string{"mpv", "--no-video", "--really-quiet", "/music/a/01.ogg"},
		},
		{
			name:     "custom command without placeholder appends path",
			config:   Config{Command: "mpg123", Args: []string{"-q"}},
			path:     "/music/a/01.mp3",
			expected: []string{"mpg123", "-q", "/music/a/01.mp3"},
		},
		{
			name:     "placeholder inside an argument",
			config:   Config{Command: "cvlc", Args: []string{"--play-and-exit", "file://" + FilePlaceholder}},
			path:     "/music/a/01.flac",
			expected: []string{"cvlc", "--play-and-exit", "file:///music/a/01.flac"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLauncher(tt.config)
			assert.Equal(t, tt.expected, l.Command(tt.path))
		})
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func shell(script string) *Launcher {
	// The track path becomes $0 of the script.
	return NewLauncher(Config{Command: "sh", Args: []string{"-c", script}})
}

func waitDone(t *testing.T, p process.Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestLauncher_Start_ExitCode(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		script   string
		expected int
	}{
		{name: "success", script: "exit 0", expected: 0},
		{name: "failure", script: "exit 3", expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := shell(tt.script).Start("/music/a/01.mp3")
			require.NoError(t, err)

			waitDone(t, p)
			assert.Equal(t, tt.expected, p.ExitCode())
		})
	}
}

func TestLauncher_Start_CapturesStderr(t *testing.T) {
	skipOnWindows(t)

	p, err := shell(`echo "cannot decode $0" >&2; exit 1`).Start("/music/a/broken.mp3")
	require.NoError(t, err)

	waitDone(t, p)
	assert.Equal(t, 1, p.ExitCode())
	assert.Contains(t, p.Stderr(), "cannot decode /music/a/broken.mp3")
}

func TestLauncher_Start_MissingBinary(t *testing.T) {
	l := NewLauncher(Config{Command: "qrjukebox-no-such-player-binary"})

	p, err := l.Start("/music/a/01.mp3")
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, ErrPlayerNotFound))
	assert.True(t, errors.Is(err, process.ErrNotFound))
}
