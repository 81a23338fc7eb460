package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// event is one emitted change notification, serialized onto the SSE
// stream as a single JSON object.
type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// eventHub implements service.EventEmitter by fanning emissions out to
// every subscribed client. Slow subscribers drop events rather than
// block the emitting service.
type eventHub struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newEventHub(log *slog.Logger) *eventHub {
	return &eventHub{log: log, subs: make(map[chan []byte]struct{})}
}

func (h *eventHub) Emit(_ context.Context, name string, data any) {
	payload, err := json.Marshal(event{Event: name, Data: data})
	if err != nil {
		h.log.Error("encode event", "event", name, "error", err)
		return
	}
	h.log.Debug("event", "event", name)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned channel is closed by
// Unsubscribe or CloseAll.
func (h *eventHub) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *eventHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
