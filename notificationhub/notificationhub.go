// Package notificationhub implements §4.9/§6.5: a registry of connected
// clients keyed by participant id, each fed from a bounded per-client queue
// with a drop-oldest overflow policy, and disconnected past a consecutive-
// drop threshold -- mirroring the teacher's logger.asyncWriter policy of
// never blocking the producer on a slow consumer (logger/logger.go), adapted
// from "drop the newest log line" to "drop the oldest queued event" since a
// notification consumer cares about staying current, not about a complete
// history.
package notificationhub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventKind enumerates the three notification kinds of §4.9.
type EventKind string

const (
	EventKindMessage        EventKind = "message"
	EventKindDialogueUpdate EventKind = "dialogue_update"
	EventKindStreamChunk    EventKind = "stream_chunk"
)

// Event is the server→client payload, matching the websocket frame shape of
// §6.5: {type, data, timestamp}.
type Event struct {
	Type      EventKind `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	// IsFinal marks the terminal chunk of a stream_chunk sequence.
	IsFinal bool `json:"isFinal,omitempty"`
}

const (
	DefaultQueueSize        = 64
	DefaultDisconnectStreak = 8
)

// client is one connected participant's bounded delivery queue.
type client struct {
	mu           sync.Mutex
	queue        []Event
	capacity     int
	dropStreak   int
	disconnected bool
	notify       chan struct{}
}

func newClient(capacity int) *client {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &client{capacity: capacity, notify: make(chan struct{}, 1)}
}

// enqueue appends ev, dropping the oldest queued event when full; it returns
// false once the client has exceeded the disconnect threshold.
func (c *client) enqueue(ev Event, disconnectStreak int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return false
	}
	if len(c.queue) >= c.capacity {
		c.queue = c.queue[1:]
		c.dropStreak++
		if c.dropStreak >= disconnectStreak {
			c.disconnected = true
			select {
			case c.notify <- struct{}{}:
			default:
			}
			return false
		}
	} else {
		c.dropStreak = 0
	}
	c.queue = append(c.queue, ev)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

func (c *client) drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

func (c *client) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Subscription is what NotificationHub hands a connected client so it can
// drain queued events and wait for new ones.
type Subscription struct {
	hub       *Hub
	id        string
	c         *client
}

// Drain returns and clears all currently queued events.
func (s *Subscription) Drain() []Event { return s.c.drain() }

// Wait blocks until a new event is enqueued, the client is disconnected, or
// stop fires.
func (s *Subscription) Wait(stop <-chan struct{}) (ok bool) {
	select {
	case <-s.c.notify:
		return !s.c.isDisconnected()
	case <-stop:
		return false
	}
}

// Close unregisters the client from the hub.
func (s *Subscription) Close() { s.hub.unregister(s.id) }

// Hub is the NotificationHub of §4.9.
type Hub struct {
	mu               sync.RWMutex
	clients          map[string]*client
	queueSize        int
	disconnectStreak int
	bridge           *RedisBridge
}

func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{clients: make(map[string]*client), queueSize: queueSize, disconnectStreak: DefaultDisconnectStreak}
}

// SetRedisBridge attaches bridge so Publish/Broadcast also relay across every
// other process sharing the same Redis channel. A Hub with no bridge attached
// only ever delivers locally.
func (h *Hub) SetRedisBridge(bridge *RedisBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = bridge
}

// Subscribe registers participantId and returns its Subscription.
func (h *Hub) Subscribe(participantId string) *Subscription {
	h.mu.Lock()
	c := newClient(h.queueSize)
	h.clients[participantId] = c
	h.mu.Unlock()
	return &Subscription{hub: h, id: participantId, c: c}
}

func (h *Hub) unregister(participantId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, participantId)
}

// Publish delivers ev to participantId's queue if connected; best-effort, as
// required by §4.9 -- the caller never blocks on a slow consumer. When a
// RedisBridge is attached, the event is also relayed to every other process
// sharing the same Redis channel.
func (h *Hub) Publish(participantId string, ev Event) {
	h.localPublish(participantId, ev)
	if bridge := h.redisBridge(); bridge != nil {
		if err := bridge.PublishRemote(context.Background(), participantId, ev); err != nil {
			log.Warn().Err(err).Str("participantId", participantId).Msg("notificationhub: redis publish failed")
		}
	}
}

// Broadcast delivers ev to every connected participant, and relays it to
// every other process sharing the same Redis channel when a RedisBridge is
// attached.
func (h *Hub) Broadcast(ev Event) {
	h.localBroadcast(ev)
	if bridge := h.redisBridge(); bridge != nil {
		if err := bridge.BroadcastRemote(context.Background(), ev); err != nil {
			log.Warn().Err(err).Msg("notificationhub: redis broadcast failed")
		}
	}
}

func (h *Hub) redisBridge() *RedisBridge {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bridge
}

// localPublish is the process-local delivery path, also used by RedisBridge
// to fan an event received from another process into this process's client
// queues without re-publishing it back onto Redis.
func (h *Hub) localPublish(participantId string, ev Event) {
	h.mu.RLock()
	c, ok := h.clients[participantId]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if !c.enqueue(ev, h.disconnectStreak) {
		h.unregister(participantId)
	}
}

func (h *Hub) localBroadcast(ev Event) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.localPublish(id, ev)
	}
}

// IsConnected reports whether participantId currently has a live subscription.
func (h *Hub) IsConnected(participantId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[participantId]
	return ok
}
