// Package controller runs the scan loop: it polls the decoder, debounces
// codes and turns them into playback commands.
package controller

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/app/gate"
	"github.com/osa030/qrjukebox/internal/app/notification"
	"github.com/osa030/qrjukebox/internal/app/playback"
	"github.com/osa030/qrjukebox/internal/infra/scanner"
)

// DefaultIdleInterval is the sleep between empty decoder polls.
const DefaultIdleInterval = 100 * time.Millisecond

// Engine is the playback surface the controller drives.
type Engine interface {
	PlayAlbum(selector string) bool
	StopPlayback() bool
	SkipTrack() bool
	IsPlayingAlbum(selector string) bool
	Events() <-chan playback.Event
}

// Catalog tells whether a code names an album.
type Catalog interface {
	Has(selector string) bool
	Albums() ([]string, error)
	Files(selector string) ([]string, error)
}

// Recorder observes handled codes.
type Recorder interface {
	ObserveScan(kind Kind, action Action)
}

// Config holds controller configuration.
type Config struct {
	StopCode     string
	SkipCode     string
	SkipEnabled  bool
	IdleInterval time.Duration
}

// Controller owns the gate and maps dispatched codes to engine operations.
// Handle must only be called from one goroutine at a time.
type Controller struct {
	decoder  scanner.Decoder
	gate     *gate.Gate
	engine   Engine
	catalog  Catalog
	notifier *notification.Manager
	recorder Recorder
	config   Config
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder sets the recorder notified of every handled code.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithNotifier sets the manager that playback events are broadcast to.
func WithNotifier(n *notification.Manager) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller.
func New(decoder scanner.Decoder, g *gate.Gate, engine Engine, catalog Catalog, config Config, opts ...Option) *Controller {
	if config.IdleInterval <= 0 {
		config.IdleInterval = DefaultIdleInterval
	}
	c := &Controller{
		decoder: decoder,
		gate:    g,
		engine:  engine,
		catalog: catalog,
		config:  config,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps a code to its kind. Reserved codes win over album names.
func (c *Controller) Classify(code string) Kind {
	switch {
	case code == c.config.StopCode:
		return KindStop
	case c.config.SkipEnabled && code == c.config.SkipCode:
		return KindSkip
	case c.catalog.Has(code):
		return KindAlbum
	default:
		return KindUnknown
	}
}

// Handle runs one code through the gate and, when dispatched, executes it.
func (c *Controller) Handle(code string, now time.Time) Action {
	if code == "" {
		return ActionSuppressed
	}

	if c.gate.Decide(code, now) == gate.Suppress {
		_, at, _ := c.gate.Last()
		zlog.Debug().Msgf("controller: suppressed repeat scan: %s (dispatched %v ago)", code, now.Sub(at))
		c.observe(KindUnknown, ActionSuppressed)
		return ActionSuppressed
	}

	zlog.Info().Msgf("controller: scanned: %s", code)

	kind := c.Classify(code)
	action := c.dispatch(kind, code)
	c.observe(kind, action)
	return action
}

func (c *Controller) dispatch(kind Kind, code string) Action {
	switch kind {
	case KindStop:
		if !c.engine.StopPlayback() {
			zlog.Info().Msg("controller: nothing playing, stop has no effect")
			return ActionIgnored
		}
		return ActionStopped

	case KindSkip:
		if !c.engine.SkipTrack() {
			zlog.Info().Msg("controller: nothing playing, skip has no effect")
			return ActionIgnored
		}
		return ActionSkipped

	case KindAlbum:
		if c.engine.IsPlayingAlbum(code) {
			zlog.Info().Msgf("controller: album '%s' already playing, ignoring", code)
			return ActionAlreadyPlaying
		}
		if !c.engine.PlayAlbum(code) {
			if files, err := c.catalog.Files(code); err == nil {
				zlog.Warn().Msgf("controller: files in folder: %v", files)
			}
			return ActionEmptyAlbum
		}
		return ActionPlaying

	default:
		zlog.Warn().Msgf("controller: album not found: '%s'", code)
		if albums, err := c.catalog.Albums(); err == nil {
			zlog.Warn().Msgf("controller: available albums: %v", albums)
		}
		return ActionNotFound
	}
}

func (c *Controller) observe(kind Kind, action Action) {
	if c.recorder != nil {
		c.recorder.ObserveScan(kind, action)
	}
}

// Run polls the decoder until ctx is cancelled or the decoder closes, then
// stops playback. A cancelled context is an orderly shutdown and returns
// nil. Other capture errors are logged and polling continues.
func (c *Controller) Run(ctx context.Context) error {
	zlog.Debug().Msgf("controller: debounce window %v", c.gate.Window())

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		c.eventLoop(loopCtx)
	}()

	// The shutdown stop event must reach the notifier before Run returns.
	defer func() {
		if c.engine.StopPlayback() {
			zlog.Info().Msg("controller: playback stopped for shutdown")
		}
		stopLoop()
		<-loopDone
	}()

	timer := time.NewTimer(c.config.IdleInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		codes, err := c.decoder.Capture()
		if err != nil {
			if errors.Is(err, scanner.ErrDecoderClosed) {
				return errors.Wrap(err, "decoder stopped")
			}
			zlog.Error().Msgf("controller: capture failed: %v", err)
		}

		if len(codes) == 0 {
			timer.Reset(c.config.IdleInterval)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			continue
		}

		for _, code := range codes {
			c.Handle(code, c.now())
		}
	}
}

// eventLoop logs playback events and forwards them to the notifier until
// ctx is cancelled or the event channel is closed. Events already queued
// at cancellation are still delivered.
func (c *Controller) eventLoop(ctx context.Context) {
	for !c.pumpEvents(ctx) {
		zlog.Info().Msg("controller: restarting event loop")
	}
}

// pumpEvents reports false when it was interrupted by a panic.
func (c *Controller) pumpEvents(ctx context.Context) (finished bool) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("controller: event loop panicked: %v", r)
			finished = false
		}
	}()

	events := c.engine.Events()
	for {
		select {
		case <-ctx.Done():
			c.drainEvents(events)
			return true
		case ev, ok := <-events:
			if !ok {
				return true
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) drainEvents(events <-chan playback.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		default:
			return
		}
	}
}

func (c *Controller) handleEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventTrackStarted:
		if ev.Track != nil {
			zlog.Info().Msgf("controller: now playing [%d/%d]: %s", ev.Index+1, ev.Total, ev.Track.DisplayName())
		}
	default:
		zlog.Debug().Msgf("controller: playback event: type=%s album=%s run=%s", ev.Type, ev.Album, ev.RunID)
	}

	if c.notifier != nil {
		c.notifier.Broadcast(ev)
	}
}
