package domain

import (
	"time"

	"github.com/google/uuid"
)

// InstanceStatus is the lifecycle of a challenge, custom challenge or quest.
type InstanceStatus string

const (
	StatusActive    InstanceStatus = "active"
	StatusCompleted InstanceStatus = "completed"
	StatusCancelled InstanceStatus = "cancelled"
)

// InstanceState is the kind-agnostic view returned by getInstanceState.
// Progress is verificationCount, completionCount or weeks logged.
type InstanceState struct {
	Kind            ActionKind       `json:"kind"`
	InstanceID      string           `json:"instance_id"`
	PlayerID        uuid.UUID        `json:"player_id"`
	DefinitionID    string           `json:"definition_id,omitempty"`
	Title           string           `json:"title"`
	Status          InstanceStatus   `json:"status"`
	Progress        int              `json:"progress"`
	Target          int              `json:"target"`
	DailyMinimum    int              `json:"daily_minimum,omitempty"`
	DailyReward     int64            `json:"daily_reward"`
	CompletionBonus int64            `json:"completion_bonus"`
	Actions         []string         `json:"actions,omitempty"`
	WeeklyProgress  []WeeklyProgress `json:"weekly_progress,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Active reports whether the instance still accepts completions.
func (s InstanceState) Active() bool { return s.Status == StatusActive }

// Key returns the instance's gating scope.
func (s InstanceState) Key() InstanceKey {
	return InstanceKey{Kind: s.Kind, InstanceID: s.InstanceID}
}

// MinimumSelection returns how many sub-actions a daily set must carry.
func (s InstanceState) MinimumSelection() int {
	switch s.Kind {
	case KindStandardChallenge:
		return StandardMinSelection
	case KindCustomChallenge:
		return s.DailyMinimum
	default:
		return 0
	}
}
