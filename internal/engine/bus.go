package engine

import (
	"slices"
	"sync"

	"github.com/fuelpoints/platform/internal/domain"
)

// EventType says why an Event was published.
type EventType string

const (
	EventCompleted        EventType = "completed"
	EventConflictResolved EventType = "conflict_resolved"
	EventInstanceFinished EventType = "instance_finished"
	EventRemoteChange     EventType = "remote_change"
	EventResynced         EventType = "resynced"
	EventLevelUp          EventType = "level_up"
)

// Event is the single payload carried on the bus. FPEarned is the
// authoritative reward plus any streak bonus; it is informational and never
// folded into local counters by subscribers.
type Event struct {
	Type            EventType         `json:"type"`
	Kind            domain.ActionKind `json:"kind,omitempty"`
	InstanceID      string            `json:"instance_id,omitempty"`
	FPEarned        int64             `json:"fp_earned,omitempty"`
	ParentCompleted bool              `json:"parent_completed,omitempty"`
	Level           int               `json:"level,omitempty"`
}

// NeedsResync reports whether the event signals that authoritative state
// moved. Events the resync itself publishes do not, which keeps the
// resync from feeding itself.
func (e Event) NeedsResync() bool {
	switch e.Type {
	case EventCompleted, EventConflictResolved, EventInstanceFinished, EventRemoteChange:
		return true
	default:
		return false
	}
}

// Listener receives bus events.
type Listener func(Event)

// Bus is a synchronous in-process publish/subscribe channel.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every listener before returning. Listeners run
// outside the bus lock so they may subscribe or unsubscribe.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	// Subscription order.
	slices.Sort(ids)
	for _, id := range ids {
		b.mu.RLock()
		l, ok := b.listeners[id]
		b.mu.RUnlock()
		if ok {
			l(e)
		}
	}
}

// Len returns the number of listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
