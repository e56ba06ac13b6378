package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind is the closed set of time-gated actions a player can complete.
type ActionKind string

const (
	KindDailyBoost         ActionKind = "daily_boost"
	KindStandardChallenge  ActionKind = "standard_challenge"
	KindCustomChallenge    ActionKind = "custom_challenge"
	KindQuestWeekly        ActionKind = "quest_weekly"
	KindHealthReassessment ActionKind = "health_reassessment"
)

// AllKinds lists every ActionKind in a stable order.
var AllKinds = []ActionKind{
	KindDailyBoost,
	KindStandardChallenge,
	KindCustomChallenge,
	KindQuestWeekly,
	KindHealthReassessment,
}

// Cadence is the window family an ActionKind is gated by.
type Cadence int

const (
	CadenceDailyLocal Cadence = iota
	CadenceRolling
)

const (
	QuestWindowDays        = 7
	ReassessmentWindowDays = 30
	BoostsPerDay           = 3
	StandardMinSelection   = 2
)

// ParseActionKind validates a wire value.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

func (k ActionKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Cadence returns the window family for k.
func (k ActionKind) Cadence() Cadence {
	switch k {
	case KindQuestWeekly, KindHealthReassessment:
		return CadenceRolling
	default:
		return CadenceDailyLocal
	}
}

// WindowDays is the rolling window length; zero for daily kinds.
func (k ActionKind) WindowDays() int {
	switch k {
	case KindQuestWeekly:
		return QuestWindowDays
	case KindHealthReassessment:
		return ReassessmentWindowDays
	default:
		return 0
	}
}

// HasParent reports whether completions roll up into a parent instance.
func (k ActionKind) HasParent() bool {
	switch k {
	case KindStandardChallenge, KindCustomChallenge, KindQuestWeekly:
		return true
	default:
		return false
	}
}

// RequiresInstance reports whether an InstanceID must accompany a submission.
func (k ActionKind) RequiresInstance() bool {
	return k != KindHealthReassessment
}

// InstanceKey identifies the gating scope of a completion.
// InstanceID is empty for HealthReassessment.
type InstanceKey struct {
	Kind       ActionKind `json:"kind"`
	InstanceID string     `json:"instance_id,omitempty"`
}

func (k InstanceKey) String() string {
	if k.InstanceID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.InstanceID
}

// Selection is the user's input for one attempt.
type Selection struct {
	ActionIDs      []string           `json:"action_ids,omitempty"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
}

// CompletionRecord is one accepted occurrence. Append-only.
type CompletionRecord struct {
	ID          uuid.UUID       `json:"id"`
	PlayerID    uuid.UUID       `json:"player_id"`
	Kind        ActionKind      `json:"kind"`
	InstanceID  string          `json:"instance_id,omitempty"`
	LocalDate   LocalDate       `json:"local_date"`
	OccurredAt  time.Time       `json:"occurred_at"`
	WindowKey   string          `json:"window_key"`
	Reward      int64           `json:"reward"`
	StreakBonus int64           `json:"streak_bonus,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Key returns the record's gating scope.
func (r CompletionRecord) Key() InstanceKey {
	return InstanceKey{Kind: r.Kind, InstanceID: r.InstanceID}
}

// SubmitRequest is the input to the authoritative submitCompletion call.
type SubmitRequest struct {
	PlayerID   uuid.UUID  `json:"player_id"`
	Kind       ActionKind `json:"kind"`
	InstanceID string     `json:"instance_id,omitempty"`
	LocalDate  LocalDate  `json:"local_date"`
	Selection  Selection  `json:"selection"`
}

// Key returns the request's gating scope.
func (r SubmitRequest) Key() InstanceKey {
	return InstanceKey{Kind: r.Kind, InstanceID: r.InstanceID}
}

// Validate checks the structural shape of the request.
func (r SubmitRequest) Validate() error {
	if r.PlayerID == uuid.Nil {
		return ErrValidation("player_id is required")
	}
	if !r.Kind.Valid() {
		return ErrValidation(fmt.Sprintf("unknown action kind %q", r.Kind))
	}
	if r.Kind.RequiresInstance() && r.InstanceID == "" {
		return ErrValidation("instance_id is required for " + string(r.Kind))
	}
	if !r.Kind.RequiresInstance() && r.InstanceID != "" {
		return ErrValidation("instance_id must be empty for " + string(r.Kind))
	}
	if _, err := ParseLocalDate(string(r.LocalDate)); err != nil {
		return ErrValidation(err.Error())
	}
	return nil
}

// SubmitResult is returned by an accepted submitCompletion call.
// Reward already includes any parent completion bonus.
type SubmitResult struct {
	Accepted        bool   `json:"accepted"`
	Reward          int64  `json:"reward"`
	StreakBonus     int64  `json:"streak_bonus,omitempty"`
	ParentCompleted bool   `json:"parent_completed,omitempty"`
	FuelPoints      int64  `json:"fuel_points"`
	BurnStreak      int    `json:"burn_streak"`
	RecordID        string `json:"record_id,omitempty"`
}

// LevelUpResult is returned by triggerLevelUpIfEligible.
type LevelUpResult struct {
	LevelChanged bool `json:"level_changed"`
	NewLevel     int  `json:"new_level,omitempty"`
}
