package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventPlayerCreated       EventType = "fuel.player.created"
	EventCompletionAccepted  EventType = "fuel.completion.accepted"
	EventStreakBonusCredited EventType = "fuel.streak.bonus_credited"
	EventLevelUp             EventType = "fuel.level.up"
	EventInstanceStarted     EventType = "fuel.instance.started"
	EventInstanceCompleted   EventType = "fuel.instance.completed"
	EventInstanceCancelled   EventType = "fuel.instance.cancelled"
	EventFuelPointsCorrected EventType = "fuel.player.corrected"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregatePlayer   AggregateType = "player"
	AggregateInstance AggregateType = "instance"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// GuardResult is the verdict of an in-process guard.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
