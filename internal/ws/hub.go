package ws

import (
	"sync"

	"github.com/lumenmfb/backend/internal/observability"
)

// Hub routes status events to the sockets subscribed to a channel. Channels
// are either one customer's applications or the shared staff queue.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Subscribe(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = map[*Client]struct{}{}
		h.channels[channel] = subs
	}
	if _, dup := subs[client]; dup {
		return
	}
	subs[client] = struct{}{}
	client.addChannel(channel)
	observability.AddSubscriptions(1)
}

func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for _, channel := range client.listChannels() {
		subs, ok := h.channels[channel]
		if !ok {
			continue
		}
		if _, ok := subs[client]; ok {
			delete(subs, client)
			removed++
		}
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	observability.AddSubscriptions(-removed)
}

// Publish copies the subscriber set so a slow client being dropped does not
// hold the hub lock.
func (h *Hub) Publish(channel string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(payload)
	}
}

// HasSubscribers reports whether anyone is listening on channel.
func (h *Hub) HasSubscribers(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel]) > 0
}
