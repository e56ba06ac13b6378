package engine

import (
	"github.com/fuelpoints/platform/internal/domain"
)

// Phase is one state of a completion attempt.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseValidating            Phase = "validating"
	PhaseOptimisticallyApplied Phase = "optimistically_applied"
	PhaseSubmitting            Phase = "submitting"
	PhaseConfirmed             Phase = "confirmed"
	PhaseConflictResolved      Phase = "conflict_resolved"
	PhaseRolledBack            Phase = "rolled_back"
)

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseConfirmed, PhaseConflictResolved, PhaseRolledBack:
		return true
	default:
		return false
	}
}

// Attempt is the outcome of one AttemptCompletion call. It is returned
// alongside any error so callers can see how far the attempt got.
type Attempt struct {
	Key             domain.InstanceKey `json:"key"`
	Phases          []Phase            `json:"phases"`
	Reward          int64              `json:"reward"`
	StreakBonus     int64              `json:"streak_bonus,omitempty"`
	ParentCompleted bool               `json:"parent_completed,omitempty"`
	Conflict        bool               `json:"conflict,omitempty"`
	Guess           int64              `json:"guess,omitempty"`
}

// Phase returns the last phase reached.
func (a *Attempt) Phase() Phase {
	if len(a.Phases) == 0 {
		return PhaseIdle
	}
	return a.Phases[len(a.Phases)-1]
}

// FPEarned is the reward plus any streak bonus.
func (a *Attempt) FPEarned() int64 { return a.Reward + a.StreakBonus }

func (a *Attempt) enter(p Phase) { a.Phases = append(a.Phases, p) }
