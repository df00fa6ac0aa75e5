package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/domain/track"
	"github.com/osa030/qrjukebox/internal/infra/player"
	"github.com/osa030/qrjukebox/internal/infra/process"
)

// Catalog resolves an album selector to its ordered tracks.
type Catalog interface {
	ListTracks(selector string) ([]track.Track, error)
}

// Launcher spawns the external player for one track.
type Launcher interface {
	Start(path string) (process.Process, error)
}

// Config holds engine configuration.
type Config struct {
	GracePeriod time.Duration // Wait after terminate before killing the player
	JoinTimeout time.Duration // Wait for the sequencing task to exit on stop
	EventBuffer int           // Size of the event channel buffer
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod: time.Second,
		JoinTimeout: time.Second,
		EventBuffer: 32,
	}
}

// run is one sequencing task. A run never outlives its cancellation by
// more than one process shutdown.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	skip   chan struct{}
	done   chan struct{}
}

// outcome of waiting on a track.
type outcome int

const (
	outcomeExited outcome = iota
	outcomeSkipped
	outcomeCancelled
)

// Snapshot is a consistent copy of the playback state.
type Snapshot struct {
	Album      string
	Tracks     []track.Track
	TrackIndex int
	TrackCount int
	State      State
	Playing    bool
	RunID      string
}

// CurrentTrack returns the track under the cursor, if any.
func (s Snapshot) CurrentTrack() (track.Track, bool) {
	if s.TrackIndex < 0 || s.TrackIndex >= len(s.Tracks) {
		return track.Track{}, false
	}
	return s.Tracks[s.TrackIndex], true
}

// Engine owns what is playing. At most one sequencing task and one player
// process are alive per engine at any time.
type Engine struct {
	// ctrlMu serializes PlayAlbum/StopPlayback/SkipTrack/Close so that
	// overlapping callers cannot start two runs.
	ctrlMu sync.Mutex

	// mu guards everything below; taken by callers and by the sequencing task.
	mu sync.Mutex

	currentAlbum string
	tracks       []track.Track
	trackIndex   int
	state        State
	proc         process.Process
	run          *run

	catalog  Catalog
	launcher Launcher
	config   Config

	eventCh chan Event
	closed  bool

	liveTasks     atomic.Int32
	liveProcesses atomic.Int32
}

// NewEngine creates a playback engine.
func NewEngine(catalog Catalog, launcher Launcher, config Config) *Engine {
	def := DefaultConfig()
	if config.GracePeriod <= 0 {
		config.GracePeriod = def.GracePeriod
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = def.JoinTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = def.EventBuffer
	}
	return &Engine{
		tracks:   make([]track.Track, 0),
		state:    StateIdle,
		catalog:  catalog,
		launcher: launcher,
		config:   config,
		eventCh:  make(chan Event, config.EventBuffer),
	}
}

// Events returns the event channel. It is closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// PlayAlbum stops any current playback, resolves the album and starts
// playing it from the first track. It returns false when the album has no
// playable tracks; prior playback is stopped either way.
func (e *Engine) PlayAlbum(selector string) bool {
	e.ctrlMu.Lock()
	defer e.ctrlMu.Unlock()

	e.stop()

	tracks, err := e.catalog.ListTracks(selector)
	if err != nil {
		zlog.Warn().Msgf("playback: failed to resolve album %s: %v", selector, err)
		return false
	}
	if len(tracks) == 0 {
		zlog.Warn().Msgf("playback: no tracks found for album: %s", selector)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		skip:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return false
	}
	e.currentAlbum = selector
	e.tracks = tracks
	e.trackIndex = 0
	e.state = StatePlaying
	e.run = r
	e.sendEventLocked(Event{
		Type:  EventAlbumStarted,
		RunID: r.id,
		Album: selector,
		Index: -1,
		Total: len(tracks),
		State: e.state,
	})
	e.mu.Unlock()

	e.liveTasks.Add(1)
	go e.sequence(r)

	zlog.Info().Msgf("playback: playing album: %s (%d tracks)", selector, len(tracks))
	zlog.Debug().Msgf("playback: run started: album=%s run=%s", selector, r.id)
	return true
}

// StopPlayback stops the current album. It is a no-op when nothing is
// playing and returns whether anything was stopped.
func (e *Engine) StopPlayback() bool {
	e.ctrlMu.Lock()
	defer e.ctrlMu.Unlock()

	return e.stop()
}

// SkipTrack cuts the current track short; the sequencing task moves on to
// the next track, or finishes the album after the last one.
func (e *Engine) SkipTrack() bool {
	e.ctrlMu.Lock()
	defer e.ctrlMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying || e.run == nil {
		return false
	}

	select {
	case e.run.skip <- struct{}{}:
	default:
		// A skip is already pending
	}
	return true
}

// CurrentAlbum returns the selector of the last started album.
// The value is kept after the album stops or finishes.
func (e *Engine) CurrentAlbum() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentAlbum
}

// IsPlaying reports whether a sequencing task is running.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StatePlaying
}

// IsPlayingAlbum reports whether selector is the album currently playing.
func (e *Engine) IsPlayingAlbum(selector string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StatePlaying && e.currentAlbum == selector
}

// Snapshot returns a copy of the playback state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	tracks := make([]track.Track, len(e.tracks))
	copy(tracks, e.tracks)

	s := Snapshot{
		Album:      e.currentAlbum,
		Tracks:     tracks,
		TrackIndex: e.trackIndex,
		TrackCount: len(tracks),
		State:      e.state,
		Playing:    e.state == StatePlaying,
	}
	if e.run != nil {
		s.RunID = e.run.id
	}
	return s
}

// LiveTasks returns the number of sequencing tasks still running.
func (e *Engine) LiveTasks() int {
	return int(e.liveTasks.Load())
}

// LiveProcesses returns the number of player processes not yet reaped.
func (e *Engine) LiveProcesses() int {
	return int(e.liveProcesses.Load())
}

// Close stops playback and closes the event channel.
func (e *Engine) Close() {
	e.ctrlMu.Lock()
	defer e.ctrlMu.Unlock()

	e.stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.eventCh)
}

// stop cancels the current run, shuts down its player and joins it.
// Must be called with ctrlMu held.
func (e *Engine) stop() bool {
	e.mu.Lock()
	if e.state != StatePlaying || e.run == nil {
		e.mu.Unlock()
		return false
	}
	r := e.run
	// Cancelling under mu guarantees the task cannot spawn another process.
	r.cancel()
	proc := e.proc
	e.mu.Unlock()

	if proc != nil {
		if process.Shutdown(proc, e.config.GracePeriod) {
			zlog.Warn().Msgf("playback: player ignored terminate, killed after %v", e.config.GracePeriod)
		}
	}

	timer := time.NewTimer(e.config.JoinTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		zlog.Warn().Msgf("playback: sequencing task did not exit within %v: run=%s", e.config.JoinTimeout, r.id)
	}

	e.mu.Lock()
	stopped := e.run == r
	if stopped {
		e.run = nil
		e.proc = nil
		e.state = StateIdle
		e.sendEventLocked(Event{
			Type:  EventPlaybackStopped,
			RunID: r.id,
			Album: e.currentAlbum,
			Index: e.trackIndex,
			Total: len(e.tracks),
			State: e.state,
		})
	}
	e.mu.Unlock()

	if stopped {
		zlog.Info().Msg("playback: playback stopped")
	}
	return stopped
}

// sequence is the sequencing task: one player process per track until the
// album ends, the player is missing, or the run is cancelled.
func (e *Engine) sequence(r *run) {
	defer close(r.done)
	defer e.liveTasks.Add(-1)

	for {
		e.mu.Lock()
		if r.ctx.Err() != nil || e.run != r {
			// Cancelled: the canceller owns the final state.
			e.mu.Unlock()
			return
		}

		if e.trackIndex >= len(e.tracks) {
			e.finishLocked(r, EventAlbumFinished, nil)
			album := e.currentAlbum
			e.mu.Unlock()
			zlog.Info().Msgf("playback: album finished: %s", album)
			return
		}

		index, total := e.trackIndex, len(e.tracks)
		t := e.tracks[index]

		// A skip aimed at the previous track must not hit this one.
		select {
		case <-r.skip:
		default:
		}

		proc, err := e.spawn(t.Path)
		if err != nil {
			if errors.Is(err, player.ErrPlayerNotFound) {
				e.finishLocked(r, EventAlbumAborted, err)
				e.mu.Unlock()
				zlog.Error().Msgf("playback: audio player not found: %v", err)
				zlog.Error().Msg("playback: install ffmpeg: brew install ffmpeg (Mac) or sudo apt install ffmpeg (Pi)")
				return
			}
			e.sendEventLocked(e.trackEventLocked(r, EventTrackFailed, index, t, -1, err))
			e.trackIndex++
			e.mu.Unlock()
			zlog.Error().Msgf("playback: error playing %s: %v", t.FileName(), err)
			continue
		}

		e.liveProcesses.Add(1)
		e.proc = proc
		e.sendEventLocked(e.trackEventLocked(r, EventTrackStarted, index, t, 0, nil))
		e.mu.Unlock()

		zlog.Info().Msgf("playback: track %d/%d: %s", index+1, total, t.DisplayName())

		result := e.await(r, proc)
		e.liveProcesses.Add(-1)

		e.mu.Lock()
		if e.run != r {
			e.mu.Unlock()
			return
		}
		e.proc = nil
		if result == outcomeCancelled {
			e.mu.Unlock()
			return
		}

		code := proc.ExitCode()
		switch {
		case result == outcomeSkipped:
			e.sendEventLocked(e.trackEventLocked(r, EventTrackSkipped, index, t, code, nil))
			zlog.Info().Msgf("playback: skipped track %d/%d: %s", index+1, total, t.DisplayName())
		case code != 0:
			err := errors.Newf("player exited with code %d", code)
			e.sendEventLocked(e.trackEventLocked(r, EventTrackFailed, index, t, code, err))
			zlog.Error().Msgf("playback: player exited with code %d: %s", code, proc.Stderr())
		default:
			e.sendEventLocked(e.trackEventLocked(r, EventTrackEnded, index, t, code, nil))
		}
		e.trackIndex++
		e.mu.Unlock()
	}
}

// await blocks until the player exits, a skip arrives or the run is cancelled.
// The process has always been reaped when await returns.
func (e *Engine) await(r *run, proc process.Process) outcome {
	select {
	case <-proc.Done():
		if r.ctx.Err() != nil {
			return outcomeCancelled
		}
		return outcomeExited
	case <-r.ctx.Done():
		process.Shutdown(proc, e.config.GracePeriod)
		return outcomeCancelled
	case <-r.skip:
		process.Shutdown(proc, e.config.GracePeriod)
		if r.ctx.Err() != nil {
			return outcomeCancelled
		}
		return outcomeSkipped
	}
}

// finishLocked ends a run that stopped on its own.
// Must be called with lock held.
func (e *Engine) finishLocked(r *run, typ EventType, err error) {
	e.state = StateIdle
	e.run = nil
	e.proc = nil
	r.cancel()
	e.sendEventLocked(Event{
		Type:  typ,
		RunID: r.id,
		Album: e.currentAlbum,
		Index: -1,
		Total: len(e.tracks),
		Err:   err,
		State: e.state,
	})
}

// spawn starts the player, turning a launcher panic into a per-track error.
func (e *Engine) spawn(path string) (proc process.Process, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			proc, err = nil, errors.Newf("player launch panic: %v", rec)
		}
	}()
	return e.launcher.Start(path)
}

// trackEventLocked builds a track level event.
// Must be called with lock held.
func (e *Engine) trackEventLocked(r *run, typ EventType, index int, t track.Track, code int, err error) Event {
	tc := t
	return Event{
		Type:     typ,
		RunID:    r.id,
		Album:    e.currentAlbum,
		Index:    index,
		Total:    len(e.tracks),
		Track:    &tc,
		ExitCode: code,
		Err:      err,
		State:    e.state,
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
		// Channel full, drop event
	}
}
