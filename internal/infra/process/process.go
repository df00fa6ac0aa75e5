// Package process spawns and supervises external programs.
//
// Every process gets exactly one goroutine that reaps it; Done is closed
// once the exit status is known. Termination is two-phase: Terminate, a
// bounded grace period, then Kill (see Shutdown).
package process

import (
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Start when the program binary is missing.
var ErrNotFound = errors.New("program not found")

// Process is a handle to a spawned program.
type Process interface {
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode returns the exit status, or -1 while running or when killed by a signal.
	ExitCode() int
	// Stderr returns the tail of the process error output.
	Stderr() string
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forces the process to exit.
	Kill() error
}

// stderrTail is how much error output is kept for diagnostics.
const stderrTail = 4096

type execProcess struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
}

// Start spawns argv. Stdout goes to stdout when non-nil and is discarded
// otherwise. The returned process is already running.
func Start(argv []string, stdout io.Writer) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	p := &execProcess{
		cmd:      cmd,
		stderr:   newTailBuffer(stderrTail),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	cmd.Stdout = stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "failed to start %s", argv[0]), ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to start %s", argv[0])
	}

	// Single goroutine to wait for process completion
	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *execProcess) Stderr() string {
	return p.stderr.String()
}

func (p *execProcess) Terminate() error {
	return p.signal(terminateSignal)
}

func (p *execProcess) Kill() error {
	return p.signal(os.Kill)
}

func (p *execProcess) signal(sig os.Signal) error {
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "failed to signal pid %d", p.cmd.Process.Pid)
	}
	return nil
}

// Shutdown terminates p, waits up to grace for it to exit and kills it
// otherwise. It returns true when the process had to be killed.
// Shutdown always returns after the process has been reaped.
func Shutdown(p Process, grace time.Duration) bool {
	select {
	case <-p.Done():
		return false
	default:
	}

	_ = p.Terminate()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.Done():
		return false
	case <-timer.C:
	}

	_ = p.Kill()
	<-p.Done()
	return true
}
