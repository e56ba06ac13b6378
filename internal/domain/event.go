package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(aggType AggregateType, aggID string, partition uuid.UUID, evtType EventType, payload interface{}, at time.Time) OutboxDraft {
	data, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: aggType,
		AggregateID:   aggID,
		EventType:     evtType,
		PartitionKey:  partition.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       data,
		OccurredAt:    at,
	}
}

// NewCompletionAcceptedEvent creates the event for an accepted completion.
// Partitioned by player so a player's completions stay ordered.
func NewCompletionAcceptedEvent(rec *CompletionRecord, res SubmitResult) OutboxDraft {
	return newDraft(AggregatePlayer, rec.PlayerID.String(), rec.PlayerID, EventCompletionAccepted, map[string]interface{}{
		"record_id":        rec.ID,
		"kind":             rec.Kind,
		"instance_id":      rec.InstanceID,
		"local_date":       rec.LocalDate,
		"reward":           res.Reward,
		"streak_bonus":     res.StreakBonus,
		"parent_completed": res.ParentCompleted,
		"fuel_points":      res.FuelPoints,
	}, rec.OccurredAt)
}

// NewStreakBonusEvent records a streak-tier bonus credit.
func NewStreakBonusEvent(playerID uuid.UUID, streak int, bonus int64, at time.Time) OutboxDraft {
	return newDraft(AggregatePlayer, playerID.String(), playerID, EventStreakBonusCredited, map[string]interface{}{
		"player_id":   playerID,
		"burn_streak": streak,
		"bonus":       bonus,
	}, at)
}

// NewPlayerCreatedEvent creates a player lifecycle event.
func NewPlayerCreatedEvent(playerID uuid.UUID, at time.Time) OutboxDraft {
	return newDraft(AggregatePlayer, playerID.String(), playerID, EventPlayerCreated, map[string]string{
		"player_id": playerID.String(),
	}, at)
}

// NewLevelUpEvent records a level increment.
func NewLevelUpEvent(playerID uuid.UUID, from, to int, fuelPoints int64, at time.Time) OutboxDraft {
	return newDraft(AggregatePlayer, playerID.String(), playerID, EventLevelUp, map[string]interface{}{
		"player_id":   playerID,
		"from_level":  from,
		"to_level":    to,
		"fuel_points": fuelPoints,
	}, at)
}

// NewInstanceEvent records a start, completion or cancellation of an instance.
func NewInstanceEvent(evtType EventType, st InstanceState, at time.Time) OutboxDraft {
	return newDraft(AggregateInstance, st.InstanceID, st.PlayerID, evtType, map[string]interface{}{
		"player_id":     st.PlayerID,
		"kind":          st.Kind,
		"instance_id":   st.InstanceID,
		"definition_id": st.DefinitionID,
		"status":        st.Status,
		"progress":      st.Progress,
		"target":        st.Target,
	}, at)
}

// NewCorrectionEvent records an administrative FP correction.
func NewCorrectionEvent(c FuelPointsCorrection, fuelPoints int64, at time.Time) OutboxDraft {
	return newDraft(AggregatePlayer, c.PlayerID.String(), c.PlayerID, EventFuelPointsCorrected, map[string]interface{}{
		"player_id":   c.PlayerID,
		"delta":       c.Delta,
		"reason":      c.Reason,
		"fuel_points": fuelPoints,
	}, at)
}
