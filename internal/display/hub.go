// Package display serves the live transcript view: a JSON API over the
// reconciled records and a websocket feed that pushes every committed
// change to connected browsers.
package display

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
)

// viewMessage is the envelope pushed to viewers.
type viewMessage struct {
	Type   string                   `json:"type"` // record, clear
	Record *models.TranscriptRecord `json:"record,omitempty"`
}

// Hub fans committed records out to websocket viewers. The client set is
// owned by the Run goroutine; everything else talks to it over channels.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub. Call Run before registering viewers.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logging.WithComponent("display"),
		metrics:    metrics.DefaultMetrics,
	}
}

// Run owns the viewer set until ctx is cancelled, then closes every viewer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.metrics.RecordDisplayClientConnected()
			h.logger.Debug().Int("viewers", len(h.clients)).Msg("Viewer connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.RecordDisplayClientDisconnected()
				h.logger.Debug().Int("viewers", len(h.clients)).Msg("Viewer disconnected")
			}

		case msg := <-h.broadcast:
			h.metrics.RecordBroadcast()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Viewer is not draining; cut it loose.
					delete(h.clients, c)
					close(c.send)
					h.metrics.RecordDisplayClientDisconnected()
				}
			}
		}
	}
}

// BroadcastRecord pushes one committed record to every viewer. It never
// blocks; if the hub is saturated the message is dropped, since the next
// update for the speaker supersedes it anyway.
func (h *Hub) BroadcastRecord(rec models.TranscriptRecord) {
	data, err := json.Marshal(viewMessage{Type: "record", Record: &rec})
	if err != nil {
		return
	}
	h.send(data)
}

// BroadcastClear tells every viewer to drop its rendered transcript.
func (h *Hub) BroadcastClear() {
	data, err := json.Marshal(viewMessage{Type: "clear"})
	if err != nil {
		return
	}
	h.send(data)
}

func (h *Hub) send(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug().Msg("Dropping broadcast, hub saturated")
	}
}
