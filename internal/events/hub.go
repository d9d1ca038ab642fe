package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one received webhook occurrence as the bridge sees it. ID is
// process-local and increases by one per event; operator streams resume
// from it. UUID is stable across sinks (journal, Redis).
type Event struct {
	ID   int64           `json:"id"`
	UUID string          `json:"uuid"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

const (
	defaultBacklog  = 100
	subscriberQueue = 128
)

// Hub fans webhook events out to live operator streams and remembers the
// last few so a reconnecting stream can catch up.
type Hub struct {
	mu      sync.Mutex
	seq     int64
	limit   int
	backlog []Event
	streams map[chan Event]struct{}
}

// NewHub keeps up to limit recent events; limit <= 0 uses 100.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = defaultBacklog
	}
	return &Hub{
		limit:   limit,
		backlog: make([]Event, 0, limit),
		streams: make(map[chan Event]struct{}),
	}
}

// Publish stamps a webhook event, remembers it and offers it to every open
// stream. A stream whose queue is full misses the event.
func (h *Hub) Publish(eventType string, data any) Event {
	body := json.RawMessage(`{}`)
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			body = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := Event{
		ID:   h.seq,
		UUID: uuid.NewString(),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: body,
	}
	h.remember(ev)
	for stream := range h.streams {
		select {
		case stream <- ev:
		default:
		}
	}
	return ev
}

// Subscribe opens a stream of events published from now on. The returned
// func closes it and may be called more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	stream := make(chan Event, subscriberQueue)

	h.mu.Lock()
	h.streams[stream] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.streams, stream)
			h.mu.Unlock()
			close(stream)
		})
	}
}

// Backlog returns the remembered events with ID above afterID, oldest first.
func (h *Hub) Backlog(afterID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.backlog))
	for _, ev := range h.backlog {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) remember(ev Event) {
	if len(h.backlog) == h.limit {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:h.limit-1]
	}
	h.backlog = append(h.backlog, ev)
}
