package status

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/osa030/qrjukebox/internal/app/notification"
	"github.com/osa030/qrjukebox/internal/app/playback"
	"github.com/osa030/qrjukebox/internal/domain/track"
)

// TrackInfo describes a track in API responses.
type TrackInfo struct {
	Path   string `json:"path"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Name   string `json:"name"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State      string      `json:"state"`
	Playing    bool        `json:"playing"`
	Album      string      `json:"album,omitempty"`
	TrackIndex int         `json:"track_index"`
	TrackCount int         `json:"track_count"`
	Track      *TrackInfo  `json:"track,omitempty"`
	Tracks     []TrackInfo `json:"tracks"`
	RunID      string      `json:"run_id,omitempty"`
}

// EventMessage is one server-sent event on GET /events.
type EventMessage struct {
	SequenceNo uint64     `json:"sequence_no"`
	Time       string     `json:"time"`
	Type       string     `json:"type"`
	Album      string     `json:"album,omitempty"`
	Index      int        `json:"index"`
	Total      int        `json:"total"`
	Track      *TrackInfo `json:"track,omitempty"`
	ExitCode   int        `json:"exit_code"`
	Error      string     `json:"error,omitempty"`
	State      string     `json:"state"`
}

func newTrackInfo(t track.Track) TrackInfo {
	return TrackInfo{Path: t.Path, Title: t.Title, Artist: t.Artist, Name: t.DisplayName()}
}

func newStatusResponse(s playback.Snapshot) StatusResponse {
	resp := StatusResponse{
		State:      s.State.String(),
		Playing:    s.Playing,
		Album:      s.Album,
		TrackIndex: s.TrackIndex,
		TrackCount: s.TrackCount,
		Tracks:     make([]TrackInfo, 0, len(s.Tracks)),
		RunID:      s.RunID,
	}
	for _, t := range s.Tracks {
		resp.Tracks = append(resp.Tracks, newTrackInfo(t))
	}
	if t, ok := s.CurrentTrack(); ok && s.Playing {
		info := newTrackInfo(t)
		resp.Track = &info
	}
	return resp
}

func newEventMessage(n notification.Notification) EventMessage {
	msg := EventMessage{
		SequenceNo: n.SequenceNo,
		Time:       n.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Type:       n.Event.Type.String(),
		Album:      n.Event.Album,
		Index:      n.Event.Index,
		Total:      n.Event.Total,
		ExitCode:   n.Event.ExitCode,
		State:      n.Event.State.String(),
	}
	if n.Event.Track != nil {
		info := newTrackInfo(*n.Event.Track)
		msg.Track = &info
	}
	if n.Event.Err != nil {
		msg.Error = n.Event.Err.Error()
	}
	return msg
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.engine.Snapshot()))
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := s.catalog.Albums()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"albums": albums})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": s.engine.StopPlayback()})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"skipped": s.engine.SkipTrack()})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	album := chi.URLParam(r, "album")
	if !s.catalog.Has(album) {
		writeError(w, http.StatusNotFound, "album_not_found")
		return
	}
	if !s.engine.PlayAlbum(album) {
		writeError(w, http.StatusUnprocessableEntity, "album_empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"playing": true})
}

// handleEvents streams playback notifications as server-sent events until
// the client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	ch := make(chan notification.Notification, 16)
	id := s.notifier.Subscribe(notification.StreamFunc(func(n notification.Notification) error {
		select {
		case ch <- n:
			return nil
		default:
			return errors.Newf("event stream full, dropped #%d", n.SequenceNo)
		}
	}))
	defer s.notifier.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case n := <-ch:
			data, err := json.Marshal(newEventMessage(n))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.SequenceNo, n.Event.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
