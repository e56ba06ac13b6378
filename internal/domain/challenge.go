package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomChallengeTarget is the fixed number of daily sets that completes a
// custom challenge.
const CustomChallengeTarget = 21

// ChallengeInstance is a player's run of a standard challenge.
// Rewards are copied from the catalog when the instance starts.
type ChallengeInstance struct {
	ID                    uuid.UUID      `json:"id"`
	ChallengeID           string         `json:"challenge_id"`
	PlayerID              uuid.UUID      `json:"player_id"`
	Title                 string         `json:"title"`
	Actions               []string       `json:"actions,omitempty"`
	Status                InstanceStatus `json:"status"`
	VerificationCount     int            `json:"verification_count"`
	VerificationsRequired int            `json:"verifications_required"`
	DailyReward           int64          `json:"daily_reward"`
	CompletionBonus       int64          `json:"completion_bonus"`
	StartedAt             time.Time      `json:"started_at"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
	CancelledAt           *time.Time     `json:"cancelled_at,omitempty"`
}

// State returns the kind-agnostic view.
func (c *ChallengeInstance) State() InstanceState {
	return InstanceState{
		Kind:            KindStandardChallenge,
		InstanceID:      c.ID.String(),
		PlayerID:        c.PlayerID,
		DefinitionID:    c.ChallengeID,
		Title:           c.Title,
		Status:          c.Status,
		Progress:        c.VerificationCount,
		Target:          c.VerificationsRequired,
		DailyReward:     c.DailyReward,
		CompletionBonus: c.CompletionBonus,
		Actions:         c.Actions,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}
}

// CustomChallengeInstance is a player-authored challenge.
type CustomChallengeInstance struct {
	ID                uuid.UUID      `json:"id"`
	PlayerID          uuid.UUID      `json:"player_id"`
	Title             string         `json:"title"`
	Actions           []string       `json:"actions"`
	DailyMinimum      int            `json:"daily_minimum"`
	TargetCompletions int            `json:"target_completions"`
	CompletionCount   int            `json:"completion_count"`
	DailyReward       int64          `json:"daily_reward"`
	CompletionReward  int64          `json:"completion_reward"`
	Status            InstanceStatus `json:"status"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
}

// State returns the kind-agnostic view.
func (c *CustomChallengeInstance) State() InstanceState {
	return InstanceState{
		Kind:            KindCustomChallenge,
		InstanceID:      c.ID.String(),
		PlayerID:        c.PlayerID,
		Title:           c.Title,
		Status:          c.Status,
		Progress:        c.CompletionCount,
		Target:          c.TargetCompletions,
		DailyMinimum:    c.DailyMinimum,
		DailyReward:     c.DailyReward,
		CompletionBonus: c.CompletionReward,
		Actions:         c.Actions,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}
}

// CustomDayLog is the payload stored with each custom challenge completion.
type CustomDayLog struct {
	ActionsCompleted int      `json:"actions_completed"`
	MinimumMet       bool     `json:"minimum_met"`
	ActionIDs        []string `json:"action_ids"`
}

// StartCustomChallengeParams holds the input for starting a custom challenge.
type StartCustomChallengeParams struct {
	PlayerID     uuid.UUID `json:"player_id"`
	Title        string    `json:"title"`
	Actions      []string  `json:"actions"`
	DailyMinimum int       `json:"daily_minimum"`
}
