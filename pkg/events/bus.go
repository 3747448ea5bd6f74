// Package events carries the orchestrator's notifications to observational
// collaborators (chat log display, dashboards).
//
// Subscribers receive events on buffered channels; a subscriber that falls
// behind its buffer drops events rather than stalling orchestration.
// Consumers are strictly observational and must not mutate orchestration
// state in response.
package events

import (
	"log/slog"
	"sync"
)

// Kind is the notification type.
type Kind int

const (
	// KindConversationStarted marks a fresh (or reset) conversation.
	KindConversationStarted Kind = iota

	// KindMessageAppended carries a new chat message.
	KindMessageAppended

	// KindCleared asks displays to drop their transcript.
	KindCleared
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindConversationStarted:
		return "conversation-started"
	case KindMessageAppended:
		return "message-appended"
	case KindCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Sender identifies the author of a displayed message.
type Sender int

const (
	SenderUser Sender = iota
	SenderAI
	SenderSystem
)

// String returns a human-readable sender name.
func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderAI:
		return "ai"
	case SenderSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Event is one typed notification.
type Event struct {
	Kind   Kind
	Sender Sender
	Text   string
}

// Bus is an in-process publish/subscribe channel for chat events.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger.With("component", "events"),
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Subscribers whose buffers
// are full drop the event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber", "kind", ev.Kind.String())
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
