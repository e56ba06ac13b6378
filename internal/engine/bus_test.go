package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(Event) { got = append(got, "first") })
	b.Subscribe(func(Event) { got = append(got, "second") })
	b.Subscribe(func(Event) { got = append(got, "third") })

	b.Publish(Event{Type: EventCompleted})
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBus()
	calls := 0
	unsub := b.Subscribe(func(Event) { calls++ })
	b.Subscribe(func(Event) {})
	assert.Equal(t, 2, b.Len())

	unsub()
	unsub()
	assert.Equal(t, 1, b.Len())

	b.Publish(Event{Type: EventRemoteChange})
	assert.Zero(t, calls)
}

func TestBus_ListenerMayUnsubscribeItself(t *testing.T) {
	b := NewBus()
	calls := 0
	var unsub func()
	unsub = b.Subscribe(func(Event) {
		calls++
		unsub()
	})

	b.Publish(Event{Type: EventCompleted})
	b.Publish(Event{Type: EventCompleted})
	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Len())
}

func TestEvent_NeedsResync(t *testing.T) {
	cases := map[EventType]bool{
		EventCompleted:        true,
		EventConflictResolved: true,
		EventInstanceFinished: true,
		EventRemoteChange:     true,
		EventResynced:         false,
		EventLevelUp:          false,
	}
	for typ, want := range cases {
		assert.Equal(t, want, Event{Type: typ}.NeedsResync(), typ)
	}
}
