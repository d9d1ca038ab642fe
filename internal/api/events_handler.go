package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/crispbridge/internal/events"
)

const streamHeartbeat = 15 * time.Second

// handleWebhookStream follows received webhooks as text/event-stream. A
// reconnecting operator sends Last-Event-ID and first gets the remembered
// webhooks it missed.
func (s *Server) handleWebhookStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before reading the backlog so nothing falls between them.
	live, unsubscribe := s.deps.Events.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sent := resumeAfter(r.Header.Get("Last-Event-ID"))
	for _, ev := range s.deps.Events.Backlog(sent) {
		if writeWebhookFrame(w, ev) != nil {
			return
		}
		sent = ev.ID
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-live:
			if !open {
				return
			}
			if ev.ID <= sent {
				continue
			}
			if writeWebhookFrame(w, ev) != nil {
				return
			}
			sent = ev.ID
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

// resumeAfter reads a Last-Event-ID header; anything but a non-negative
// integer starts from the oldest remembered webhook.
func resumeAfter(header string) int64 {
	id, err := strconv.ParseInt(header, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// writeWebhookFrame writes one event-stream frame. Data is compact JSON, so
// a single data line suffices.
func writeWebhookFrame(w io.Writer, ev events.Event) error {
	frame := "id: " + strconv.FormatInt(ev.ID, 10) + "\n"
	if ev.Type != "" {
		frame += "event: " + ev.Type + "\n"
	}
	_, err := fmt.Fprintf(w, "%sdata: %s\n\n", frame, ev.Data)
	return err
}
