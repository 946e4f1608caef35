package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/realtime/bus"
)

// ChannelAll receives every meeting event. Per-meeting channels are named
// by MeetingChannel.
const ChannelAll = "meetings"

func MeetingChannel(id string) string { return "meeting:" + strings.ToLower(strings.TrimSpace(id)) }

type Message struct {
	Channel string    `json:"channel"`
	Event   bus.Event `json:"event"`
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	closed   bool
}

type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     15 * time.Second,
	}
}

func (hub *Hub) NewClient(channels ...string) *Client {
	c := &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, ch := range channels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		c.Channels[ch] = true
		subs, ok := hub.subscriptions[ch]
		if !ok {
			subs = make(map[*Client]bool)
			hub.subscriptions[ch] = subs
		}
		subs[c] = true
	}
	hub.log.Debug("SSE client subscribed", "client_id", c.ID, "channels", len(c.Channels))
	return c
}

// Publish fans ev out to ChannelAll and to the meeting's own channel. It is
// the bus forwarder callback and never blocks on a slow client.
func (hub *Hub) Publish(ev bus.Event) {
	hub.broadcast(Message{Channel: ChannelAll, Event: ev})
	if ev.MeetingID != "" {
		hub.broadcast(Message{Channel: MeetingChannel(ev.MeetingID), Event: ev})
	}
}

func (hub *Hub) broadcast(msg Message) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("Dropping SSE message; outbound buffer full", "client_id", c.ID, "channel", msg.Channel)
		}
	}
}

func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			raw, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event.Type, raw)
			flusher.Flush()
		}
	}
}

// CloseClient unsubscribes client. Safe to call more than once.
func (hub *Hub) CloseClient(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if client.closed {
		return
	}
	client.closed = true
	close(client.done)
	for ch := range client.Channels {
		if subs, ok := hub.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = map[string]bool{}
}

func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	seen := map[*Client]bool{}
	for _, subs := range hub.subscriptions {
		for c := range subs {
			seen[c] = true
		}
	}
	return len(seen)
}
