package bus

import (
	"context"
	"sync"
	"time"
)

const (
	EventMeetingSaved   = "meeting.saved"
	EventMeetingDeleted = "meeting.deleted"
)

// Event announces a committed change to a meeting record.
type Event struct {
	Type        string    `json:"type"`
	MeetingID   string    `json:"meeting_id"`
	Title       string    `json:"title,omitempty"`
	NeedsReview bool      `json:"needs_review,omitempty"`
	At          time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

// MemoryBus delivers events in-process. Used when no Redis is configured.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := append([]func(Event){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	b.mu.Lock()
	b.subs = append(b.subs, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Close() error { return nil }
