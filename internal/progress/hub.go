package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrLive is returned by Open when the run id already has an open channel.
var ErrLive = errors.New("progress channel already open for run")

// Hub owns the global channel and the per-run channels.
type Hub struct {
	global *Channel

	mu      sync.Mutex
	live    map[string]*Channel
	retired *expirable.LRU[string, *Channel]
}

// NewHub keeps up to retain finished run channels for ttl.
func NewHub(retain int, ttl time.Duration) *Hub {
	if retain <= 0 {
		retain = 128
	}
	return &Hub{
		global:  NewChannel(),
		live:    make(map[string]*Channel),
		retired: expirable.NewLRU[string, *Channel](retain, nil, ttl),
	}
}

// Global returns the channel that mirrors the most recent label of any run.
func (h *Hub) Global() *Channel {
	return h.global
}

// Open creates the channel for runID and returns a publisher that writes to
// it and to the global channel. A retired channel for the same id is replaced.
func (h *Hub) Open(runID string) (Publisher, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.live[runID]; ok {
		return nil, ErrLive
	}
	h.retired.Remove(runID)
	ch := NewChannel()
	h.live[runID] = ch
	return PublisherFunc(func(status string) {
		ch.Publish(status)
		h.global.Publish(status)
	}), nil
}

// Channel returns the live or recently finished channel for runID.
func (h *Hub) Channel(runID string) (*Channel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.live[runID]; ok {
		return ch, true
	}
	return h.retired.Get(runID)
}

// Live reports whether runID has an open channel.
func (h *Hub) Live(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[runID]
	return ok
}

// Finish closes the run channel and retains it for late subscribers.
func (h *Hub) Finish(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.live[runID]
	if !ok {
		return
	}
	delete(h.live, runID)
	h.retired.Add(runID, ch)
	ch.Close()
}
