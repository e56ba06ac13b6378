// Package settlement holds the authoritative completion rules shared by every
// store implementation. Functions here are pure: stores load state, settle,
// then persist the outcome inside their own transaction.
package settlement

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/fuelpoints/platform/internal/progression"
	"github.com/google/uuid"
)

// Rules evaluates completions against the reward catalog.
type Rules struct {
	catalog  *catalog.Catalog
	resetDay time.Weekday
}

// NewRules creates a rule set. resetDay anchors the weekly boost pool.
func NewRules(cat *catalog.Catalog, resetDay time.Weekday) *Rules {
	return &Rules{catalog: cat, resetDay: resetDay}
}

// Catalog returns the reward catalog.
func (r *Rules) Catalog() *catalog.Catalog { return r.catalog }

// ResetDay returns the boost pool reset weekday.
func (r *Rules) ResetDay() time.Weekday { return r.resetDay }

// Input is everything a store knows about a submission before settling it.
// Instance is nil for boosts and reassessments.
type Input struct {
	Request  domain.SubmitRequest
	Now      time.Time
	Instance *domain.InstanceState
	History  policy.History
}

// Outcome is the effect of one accepted completion.
// Reward already includes the parent completion bonus when ParentCompleted.
type Outcome struct {
	Reward          int64
	ParentCompleted bool
	Progress        int
	WindowKey       string
	Payload         json.RawMessage
}

// Settle runs the gates for a submission and computes its outcome.
//
// Gate 1: request shape and a plausible local date
// Gate 2: parent instance exists, belongs to the player and is active
// Gate 3: the kind's time window is open
// Gate 4: per-kind selection rules and reward
func (r *Rules) Settle(in Input) (*Outcome, error) {
	req := in.Request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkLocalDate(req.LocalDate, in.Now); err != nil {
		return nil, err
	}

	if req.Kind.HasParent() {
		if in.Instance == nil || in.Instance.PlayerID != req.PlayerID || in.Instance.Kind != req.Kind {
			return nil, domain.ErrNotFound(string(req.Kind), req.InstanceID)
		}
		if !in.Instance.Active() {
			return nil, domain.ErrAlreadyFinished(fmt.Sprintf("%s %s is %s", req.Kind, req.InstanceID, in.Instance.Status))
		}
	}

	if err := r.checkWindow(in); err != nil {
		return nil, err
	}

	switch req.Kind {
	case domain.KindDailyBoost:
		return r.settleBoost(in)
	case domain.KindStandardChallenge, domain.KindCustomChallenge:
		return settleChallenge(in)
	case domain.KindQuestWeekly:
		return settleQuest(in)
	case domain.KindHealthReassessment:
		return r.settleReassessment(in)
	default:
		return nil, domain.ErrValidation(fmt.Sprintf("unknown action kind %q", req.Kind))
	}
}

// checkLocalDate rejects client dates more than one day from the UTC date,
// which covers every real timezone offset.
func checkLocalDate(d domain.LocalDate, now time.Time) error {
	gap := domain.LocalDateOf(now.UTC()).DaysUntil(d)
	if gap < -1 || gap > 1 {
		return domain.ErrValidation(fmt.Sprintf("local_date %s is not today", d))
	}
	return nil
}

func (r *Rules) checkWindow(in Input) error {
	req := in.Request
	d := policy.ForKind(req.Kind, in.History, req.LocalDate, in.Now)
	if d.Allowed {
		return nil
	}
	if d.Backdated {
		return domain.ErrValidation(fmt.Sprintf("local_date %s is earlier than a day already recorded for %s", req.LocalDate, req.Key()))
	}
	if req.Kind == domain.KindDailyBoost && (in.History.Last == nil || in.History.Last.LastLocalDate != req.LocalDate) {
		return domain.ErrValidation(fmt.Sprintf("daily boost limit of %d reached", domain.BoostsPerDay))
	}
	if req.Kind.Cadence() == domain.CadenceRolling {
		return domain.ErrConflict(fmt.Sprintf("%s already completed, next window opens in %d days", req.Key(), d.DaysRemaining))
	}
	return domain.ErrConflict(fmt.Sprintf("%s already completed on %s", req.Key(), req.LocalDate))
}

func (r *Rules) settleBoost(in Input) (*Outcome, error) {
	req := in.Request
	week := policy.PoolWeekStart(req.LocalDate, r.resetDay)
	boost, ok := r.catalog.InPool(week, req.InstanceID)
	if !ok {
		return nil, domain.ErrValidation(fmt.Sprintf("boost %q is not in this week's pool", req.InstanceID))
	}
	payload, _ := json.Marshal(map[string]string{"boost": boost.Name, "pool_week": week.String()})
	return &Outcome{
		Reward:    boost.FP,
		Progress:  in.History.DayCount + 1,
		WindowKey: req.LocalDate.String(),
		Payload:   payload,
	}, nil
}

func settleChallenge(in Input) (*Outcome, error) {
	req, inst := in.Request, in.Instance
	ids := req.Selection.ActionIDs
	if err := domain.ValidateSelection(ids, inst.MinimumSelection()); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(inst.Actions) > 0 {
		if err := domain.ValidateSelectionAllowed(ids, inst.Actions); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
	}

	out := &Outcome{
		Reward:    inst.DailyReward,
		Progress:  inst.Progress + 1,
		WindowKey: req.LocalDate.String(),
	}
	if out.Progress >= inst.Target {
		out.ParentCompleted = true
		out.Reward += inst.CompletionBonus
	}
	out.Payload, _ = json.Marshal(domain.CustomDayLog{
		ActionsCompleted: len(ids),
		MinimumMet:       true,
		ActionIDs:        ids,
	})
	return out, nil
}

func settleQuest(in Input) (*Outcome, error) {
	inst := in.Instance
	week := min(len(inst.WeeklyProgress)+1, domain.QuestWeeks)
	out := &Outcome{
		Reward:    inst.DailyReward,
		Progress:  len(inst.WeeklyProgress) + 1,
		WindowKey: fmt.Sprintf("week-%02d", week),
	}
	if out.Progress >= domain.QuestWeeks {
		out.ParentCompleted = true
		out.Reward += inst.CompletionBonus
	}
	out.Payload, _ = json.Marshal(map[string]int{"week_number": week})
	return out, nil
}

func (r *Rules) settleReassessment(in Input) (*Outcome, error) {
	scores := in.Request.Selection.CategoryScores
	if err := domain.ValidateCategoryScores(scores); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	payload, _ := json.Marshal(domain.HealthAssessment{
		CategoryScores: scores,
		Score:          progression.HealthScore(scores, r.catalog.HealthWeights),
	})
	return &Outcome{
		Reward:    r.catalog.ReassessmentReward,
		WindowKey: in.Request.LocalDate.String(),
		Payload:   payload,
	}, nil
}

// Record builds the append-only record for an accepted outcome.
func Record(in Input, out *Outcome, streakBonus int64) *domain.CompletionRecord {
	return &domain.CompletionRecord{
		ID:          uuid.New(),
		PlayerID:    in.Request.PlayerID,
		Kind:        in.Request.Kind,
		InstanceID:  in.Request.InstanceID,
		LocalDate:   in.Request.LocalDate,
		OccurredAt:  in.Now,
		WindowKey:   out.WindowKey,
		Reward:      out.Reward,
		StreakBonus: streakBonus,
		Payload:     out.Payload,
	}
}
