package status

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/qrjukebox/internal/app/controller"
	"github.com/osa030/qrjukebox/internal/app/notification"
	"github.com/osa030/qrjukebox/internal/app/playback"
)

// Metrics holds the jukebox prometheus collectors. It observes handled
// scans as a controller.Recorder and playback events as a notification
// stream.
type Metrics struct {
	registry *prometheus.Registry

	scans    *prometheus.CounterVec
	commands *prometheus.CounterVec
	tracks   *prometheus.CounterVec
	playing  prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrjukebox",
			Name:      "scans_total",
			Help:      "Scanned codes by handling result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrjukebox",
			Name:      "commands_total",
			Help:      "Dispatched codes by kind.",
		}, []string{"kind"}),
		tracks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrjukebox",
			Name:      "tracks_total",
			Help:      "Finished tracks by outcome.",
		}, []string{"outcome"}),
		playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qrjukebox",
			Name:      "playing",
			Help:      "1 while an album is playing.",
		}),
	}

	m.registry.MustRegister(
		m.scans,
		m.commands,
		m.tracks,
		m.playing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveScan implements controller.Recorder.
func (m *Metrics) ObserveScan(kind controller.Kind, action controller.Action) {
	m.scans.WithLabelValues(action.String()).Inc()
	if action != controller.ActionSuppressed {
		m.commands.WithLabelValues(kind.String()).Inc()
	}
}

// Send implements notification.Stream.
func (m *Metrics) Send(n notification.Notification) error {
	switch n.Event.Type {
	case playback.EventTrackEnded:
		m.tracks.WithLabelValues("ended").Inc()
	case playback.EventTrackFailed:
		m.tracks.WithLabelValues("failed").Inc()
	case playback.EventTrackSkipped:
		m.tracks.WithLabelValues("skipped").Inc()
	}

	if n.Event.State == playback.StatePlaying {
		m.playing.Set(1)
	} else {
		m.playing.Set(0)
	}
	return nil
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
