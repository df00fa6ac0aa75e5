// Package scanner provides the code decoder capability: a source of decoded
// QR strings read from a camera or from a keyboard-wedge scanner.
package scanner

import (
	"bytes"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSensorUnavailable is returned when the sensor cannot be opened.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrDecoderClosed is returned by Capture once the decoder has stopped
	// producing codes and every pending code has been delivered.
	ErrDecoderClosed = errors.New("decoder closed")
)

// Decoder yields decoded code strings.
type Decoder interface {
	// Capture returns every code decoded since the previous call, possibly
	// none. It never blocks on the sensor.
	Capture() ([]string, error)
	// Close releases the sensor.
	Close() error
}

// mailbox collects newline-delimited codes written by a producer and hands
// them out in arrival order.
type mailbox struct {
	mu      sync.Mutex
	partial []byte
	codes   []string
	closed  bool
	cause   error
}

func (m *mailbox) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partial = append(m.partial, p...)
	for {
		i := bytes.IndexByte(m.partial, '\n')
		if i < 0 {
			break
		}
		m.push(string(m.partial[:i]))
		m.partial = m.partial[i+1:]
	}
	return len(p), nil
}

// push must be called with mu held.
func (m *mailbox) push(line string) {
	code := strings.TrimSpace(line)
	if code == "" {
		return
	}
	m.codes = append(m.codes, code)
}

// close flushes a trailing unterminated line and marks the producer gone.
func (m *mailbox) close(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if len(m.partial) > 0 {
		m.push(string(m.partial))
		m.partial = nil
	}
	m.closed = true
	m.cause = cause
}

func (m *mailbox) take() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.codes) > 0 {
		codes := m.codes
		m.codes = nil
		return codes, nil
	}
	if m.closed {
		if m.cause != nil {
			return nil, errors.Mark(errors.Wrap(m.cause, "decoder stopped"), ErrDecoderClosed)
		}
		return nil, ErrDecoderClosed
	}
	return nil, nil
}
