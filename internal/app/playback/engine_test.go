package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/qrjukebox/internal/domain/track"
	"github.com/osa030/qrjukebox/internal/infra/player"
	"github.com/osa030/qrjukebox/internal/infra/process"
)

// Mock catalog for testing
type mockCatalog struct {
	albums map[string][]track.Track
	err    error
}

func (c *mockCatalog) ListTracks(selector string) ([]track.Track, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.albums[selector], nil
}

func tracks(album string, n int) []track.Track {
	ts := make([]track.Track, n)
	for i := range ts {
		ts[i] = track.New(fmt.Sprintf("/music/%s/%02d.mp3", album, i+1))
	}
	return ts
}

// Mock player process for testing
type mockProcess struct {
	path       string
	ignoreTerm bool
	done       chan struct{}
	once       sync.Once
	onExit     func()

	mu   sync.Mutex
	code int

	terminated atomic.Bool
	killed     atomic.Bool
}

func (p *mockProcess) exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		if p.onExit != nil {
			p.onExit()
		}
		close(p.done)
	})
}

func (p *mockProcess) Done() <-chan struct{} { return p.done }

func (p *mockProcess) ExitCode() int {
	select {
	case <-p.done:
	default:
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *mockProcess) Stderr() string { return "" }

func (p *mockProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerm {
		p.exit(-1)
	}
	return nil
}

func (p *mockProcess) Kill() error {
	p.killed.Store(true)
	p.exit(-1)
	return nil
}

// Mock launcher for testing
type mockLauncher struct {
	mu         sync.Mutex
	paths      []string
	errFor     map[string]error
	panicFor   string
	autoExit   *int
	ignoreTerm bool
	live       int
	maxLive    int

	started chan *mockProcess
}

func newMockLauncher() *mockLauncher {
	return &mockLauncher{
		errFor:  make(map[string]error),
		started: make(chan *mockProcess, 100),
	}
}

func (l *mockLauncher) Start(path string) (process.Process, error) {
	l.mu.Lock()
	l.paths = append(l.paths, path)
	if path == l.panicFor {
		l.mu.Unlock()
		panic("launcher exploded")
	}
	if err, ok := l.errFor[path]; ok {
		l.mu.Unlock()
		return nil, err
	}
	l.live++
	if l.live > l.maxLive {
		l.maxLive = l.live
	}
	p := &mockProcess{
		path:       path,
		ignoreTerm: l.ignoreTerm,
		done:       make(chan struct{}),
		onExit: func() {
			l.mu.Lock()
			l.live--
			l.mu.Unlock()
		},
	}
	autoExit := l.autoExit
	l.mu.Unlock()

	if autoExit != nil {
		p.exit(*autoExit)
	}
	l.started <- p
	return p, nil
}

func (l *mockLauncher) startedPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func (l *mockLauncher) maxLiveProcesses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxLive
}

func (l *mockLauncher) next(t *testing.T) *mockProcess {
	t.Helper()
	select {
	case p := <-l.started:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no player process started")
		return nil
	}
}

func exitCode(code int) *int { return &code }

func testConfig() Config {
	return Config{
		GracePeriod: 200 * time.Millisecond,
		JoinTimeout: time.Second,
		EventBuffer: 64,
	}
}

func newTestEngine(albums map[string][]track.Track, l *mockLauncher) *Engine {
	return NewEngine(&mockCatalog{albums: albums}, l, testConfig())
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool { return !e.IsPlaying() }, 2*time.Second, 5*time.Millisecond)
}

func drainEvents(e *Engine) []EventType {
	var types []EventType
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				return types
			}
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func TestEngine_NaturalCompletion(t *testing.T) {
	l := newMockLauncher()
	l.autoExit = exitCode(0)
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 4)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	waitIdle(t, e)

	s := e.Snapshot()
	assert.False(t, s.Playing)
	assert.Equal(t, 4, s.TrackIndex)
	assert.Equal(t, "a", s.Album)
	assert.Equal(t, []string{"/music/a/01.mp3", "/music/a/02.mp3", "/music/a/03.mp3", "/music/a/04.mp3"}, l.startedPaths())
	require.Eventually(t, func() bool { return e.LiveTasks() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, e.LiveProcesses())

	events := drainEvents(e)
	assert.Equal(t, EventAlbumStarted, events[0])
	assert.Equal(t, EventAlbumFinished, events[len(events)-1])
	assert.NotContains(t, events, EventPlaybackStopped)
}

func TestEngine_StopAfterAlbumFinished(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	l.next(t).exit(0)
	l.next(t).exit(0)
	waitIdle(t, e)

	assert.False(t, e.StopPlayback(), "a finished album has nothing left to stop")

	events := drainEvents(e)
	finished := 0
	for _, ev := range events {
		if ev == EventAlbumFinished {
			finished++
		}
	}
	assert.Equal(t, 1, finished)
	assert.NotContains(t, events, EventPlaybackStopped)
}

func TestEngine_AlbumScenario(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"beatles-abbey-road": tracks("beatles-abbey-road", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("beatles-abbey-road"))
	assert.True(t, e.IsPlaying())
	assert.Equal(t, "beatles-abbey-road", e.CurrentAlbum())

	l.next(t).exit(0)
	l.next(t).exit(0)
	third := l.next(t)

	assert.Equal(t, "/music/beatles-abbey-road/03.mp3", third.path)
	assert.Equal(t, 2, e.Snapshot().TrackIndex)
	assert.True(t, e.IsPlaying())

	third.exit(0)
	waitIdle(t, e)
	assert.Equal(t, 3, e.Snapshot().TrackIndex)
}

func TestEngine_StopMidTrack(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	l.next(t).exit(0)
	p := l.next(t)

	assert.True(t, e.StopPlayback())

	assert.True(t, p.terminated.Load())
	assert.False(t, p.killed.Load())
	assert.False(t, e.IsPlaying())
	assert.Equal(t, 1, e.Snapshot().TrackIndex, "stop must not advance the cursor")
	assert.Equal(t, 0, e.LiveTasks())
	assert.Equal(t, 0, e.LiveProcesses())

	events := drainEvents(e)
	assert.Contains(t, events, EventPlaybackStopped)
	assert.NotContains(t, events, EventAlbumFinished)

	// No further track starts after stop
	select {
	case extra := <-l.started:
		t.Fatalf("unexpected player start after stop: %s", extra.path)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_StopForceKillsStubbornPlayer(t *testing.T) {
	l := newMockLauncher()
	l.ignoreTerm = true
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	p := l.next(t)

	start := time.Now()
	assert.True(t, e.StopPlayback())

	assert.True(t, p.terminated.Load())
	assert.True(t, p.killed.Load())
	assert.GreaterOrEqual(t, time.Since(start), testConfig().GracePeriod)
	assert.False(t, e.IsPlaying())
	assert.Equal(t, 0, e.Snapshot().TrackIndex)
}

func TestEngine_StopIdempotent(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)
	defer e.Close()

	// Nothing playing
	assert.False(t, e.StopPlayback())
	assert.False(t, e.IsPlaying())

	require.True(t, e.PlayAlbum("a"))
	l.next(t)

	assert.True(t, e.StopPlayback())
	assert.False(t, e.StopPlayback())
	assert.False(t, e.IsPlaying())
}

func TestEngine_EmptyAlbum(t *testing.T) {
	tests := []struct {
		name    string
		catalog *mockCatalog
	}{
		{
			name:    "no tracks",
			catalog: &mockCatalog{albums: map[string][]track.Track{"empty-selector": {}}},
		},
		{
			name:    "unknown album",
			catalog: &mockCatalog{albums: map[string][]track.Track{}},
		},
		{
			name:    "catalog error",
			catalog: &mockCatalog{err: errors.New("disk on fire")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newMockLauncher()
			e := NewEngine(tt.catalog, l, testConfig())
			defer e.Close()

			assert.False(t, e.PlayAlbum("empty-selector"))
			assert.False(t, e.IsPlaying())
			assert.Equal(t, "", e.CurrentAlbum())
			assert.Empty(t, l.startedPaths())
		})
	}
}

func TestEngine_EmptyAlbumStillStopsPrevious(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2), "empty": {}}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	p := l.next(t)

	assert.False(t, e.PlayAlbum("empty"))
	assert.True(t, p.terminated.Load())
	assert.False(t, e.IsPlaying())
	assert.Equal(t, "a", e.CurrentAlbum())
}

func TestEngine_PlayAlbumReplacesCurrent(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3), "b": tracks("b", 2)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	l.next(t).exit(0)
	first := l.next(t)

	require.True(t, e.PlayAlbum("b"))
	assert.True(t, first.terminated.Load(), "previous player must be stopped before the new album starts")

	second := l.next(t)
	assert.Equal(t, "/music/b/01.mp3", second.path)
	assert.Equal(t, "b", e.CurrentAlbum())
	assert.Equal(t, 0, e.Snapshot().TrackIndex)
	assert.Equal(t, 1, l.maxLiveProcesses())
	assert.Equal(t, 1, e.LiveTasks())
}

func TestEngine_SameAlbumRestartsFromZero(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	l.next(t).exit(0)
	l.next(t)
	assert.Equal(t, 1, e.Snapshot().TrackIndex)

	require.True(t, e.PlayAlbum("a"))
	assert.Equal(t, "/music/a/01.mp3", l.next(t).path)
	assert.Equal(t, 0, e.Snapshot().TrackIndex)
}

func TestEngine_OverlappingPlayAlbumCalls(t *testing.T) {
	l := newMockLauncher()
	albums := map[string][]track.Track{}
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("album-%d", i)
		albums[name] = tracks(name, 3)
	}
	e := newTestEngine(albums, l)
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.PlayAlbum(fmt.Sprintf("album-%d", i))
			assert.LessOrEqual(t, e.LiveTasks(), 1)
			assert.LessOrEqual(t, e.LiveProcesses(), 1)
		}(i)
	}
	wg.Wait()

	assert.True(t, e.IsPlaying())
	assert.Equal(t, 1, e.LiveTasks())
	assert.Equal(t, 1, l.maxLiveProcesses())

	e.StopPlayback()
	assert.Equal(t, 0, e.LiveTasks())
	assert.Equal(t, 0, e.LiveProcesses())
}

func TestEngine_NonZeroExitAdvances(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	l.next(t).exit(1)
	second := l.next(t)
	assert.Equal(t, "/music/a/02.mp3", second.path)
	second.exit(0)
	l.next(t).exit(2)
	waitIdle(t, e)

	assert.Equal(t, 3, e.Snapshot().TrackIndex)

	var failed []int
	for {
		ev, ok := <-e.Events()
		require.True(t, ok)
		if ev.Type == EventTrackFailed {
			failed = append(failed, ev.ExitCode)
			assert.Error(t, ev.Err)
		}
		if ev.Type == EventAlbumFinished {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, failed)
}

func TestEngine_PlayerMissingAbortsAlbum(t *testing.T) {
	l := newMockLauncher()
	l.errFor["/music/a/01.mp3"] = errors.Mark(errors.New("exec: ffplay: not found"), player.ErrPlayerNotFound)
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	waitIdle(t, e)

	assert.Equal(t, 0, e.Snapshot().TrackIndex, "missing player must not advance the cursor")
	assert.Equal(t, []string{"/music/a/01.mp3"}, l.startedPaths())

	events := drainEvents(e)
	assert.Contains(t, events, EventAlbumAborted)
	assert.NotContains(t, events, EventAlbumFinished)

	// The engine stays usable
	assert.False(t, e.StopPlayback())
}

func TestEngine_OtherStartErrorAdvances(t *testing.T) {
	l := newMockLauncher()
	l.autoExit = exitCode(0)
	l.errFor["/music/a/02.mp3"] = errors.New("permission denied")
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 3)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	waitIdle(t, e)

	assert.Equal(t, 3, e.Snapshot().TrackIndex)
	assert.Equal(t, []string{"/music/a/01.mp3", "/music/a/02.mp3", "/music/a/03.mp3"}, l.startedPaths())
}

func TestEngine_LauncherPanicAdvances(t *testing.T) {
	l := newMockLauncher()
	l.autoExit = exitCode(0)
	l.panicFor = "/music/a/01.mp3"
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)
	defer e.Close()

	require.True(t, e.PlayAlbum("a"))
	waitIdle(t, e)

	assert.Equal(t, 2, e.Snapshot().TrackIndex)
	assert.Contains(t, drainEvents(e), EventTrackFailed)
}

func TestEngine_SkipTrack(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)
	defer e.Close()

	assert.False(t, e.SkipTrack(), "skip while idle is a no-op")

	require.True(t, e.PlayAlbum("a"))
	first := l.next(t)

	assert.True(t, e.SkipTrack())
	second := l.next(t)
	assert.True(t, first.terminated.Load())
	assert.Equal(t, "/music/a/02.mp3", second.path)
	assert.Equal(t, 1, e.Snapshot().TrackIndex)
	assert.True(t, e.IsPlaying())

	// Skipping the last track finishes the album
	assert.True(t, e.SkipTrack())
	waitIdle(t, e)
	assert.Equal(t, 2, e.Snapshot().TrackIndex)

	events := drainEvents(e)
	assert.Contains(t, events, EventTrackSkipped)
	assert.Equal(t, EventAlbumFinished, events[len(events)-1])
}

func TestEngine_StopRacesNaturalFinish(t *testing.T) {
	for i := 0; i < 20; i++ {
		l := newMockLauncher()
		e := newTestEngine(map[string][]track.Track{"a": tracks("a", 1)}, l)

		require.True(t, e.PlayAlbum("a"))
		p := l.next(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.exit(0)
		}()
		go func() {
			defer wg.Done()
			e.StopPlayback()
		}()
		wg.Wait()

		waitIdle(t, e)
		assert.False(t, e.StopPlayback())
		require.Eventually(t, func() bool { return e.LiveTasks() == 0 }, time.Second, 5*time.Millisecond)
		e.Close()
	}
}

func TestEngine_Close(t *testing.T) {
	l := newMockLauncher()
	e := newTestEngine(map[string][]track.Track{"a": tracks("a", 2)}, l)

	require.True(t, e.PlayAlbum("a"))
	p := l.next(t)

	e.Close()
	assert.True(t, p.terminated.Load())
	assert.False(t, e.IsPlaying())

	// Event channel is closed after buffered events are drained
	for range e.Events() {
	}

	assert.False(t, e.PlayAlbum("a"))
	e.Close()
}

func TestSnapshot_CurrentTrack(t *testing.T) {
	s := Snapshot{Tracks: tracks("a", 2), TrackIndex: 1}
	tr, ok := s.CurrentTrack()
	assert.True(t, ok)
	assert.Equal(t, "/music/a/02.mp3", tr.Path)

	s.TrackIndex = 2
	_, ok = s.CurrentTrack()
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "album_started", EventAlbumStarted.String())
	assert.Equal(t, "track_failed", EventTrackFailed.String())
	assert.Equal(t, "playback_stopped", EventPlaybackStopped.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
