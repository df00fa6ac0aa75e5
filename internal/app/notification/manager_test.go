package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/qrjukebox/internal/app/playback"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []Notification
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingStream) received() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func TestManager_SubscribeBroadcast(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{err: errors.New("client went away")}

	idA := m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, m.SubscriberCount())

	first := m.Broadcast(playback.Event{Type: playback.EventAlbumStarted, Album: "beatles-abbey-road"})
	second := m.Broadcast(playback.Event{Type: playback.EventTrackStarted, Album: "beatles-abbey-road"})

	assert.Equal(t, uint64(1), first.SequenceNo)
	assert.Equal(t, uint64(2), second.SequenceNo)

	require.Len(t, a.received(), 2)
	assert.Equal(t, playback.EventAlbumStarted, a.received()[0].Event.Type)
	assert.Len(t, b.received(), 2, "a failing subscriber still gets later events")

	m.Unsubscribe(idA)
	m.Broadcast(playback.Event{Type: playback.EventPlaybackStopped})
	assert.Len(t, a.received(), 2)
	assert.Len(t, b.received(), 3)
}

func TestManager_SlowSubscriber(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}

	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(playback.Event{Type: playback.EventAlbumFinished})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, fast.received(), 1)
}

func TestManager_StreamFunc(t *testing.T) {
	m := NewManager()
	var got []playback.EventType
	m.Subscribe(StreamFunc(func(n Notification) error {
		got = append(got, n.Event.Type)
		return nil
	}))

	m.Broadcast(playback.Event{Type: playback.EventTrackEnded})
	assert.Equal(t, []playback.EventType{playback.EventTrackEnded}, got)

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
