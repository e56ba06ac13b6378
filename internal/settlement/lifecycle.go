package settlement

import (
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// NewChallenge starts a standard challenge. Rewards are snapshotted from def.
func NewChallenge(def catalog.Challenge, playerID uuid.UUID, now time.Time) *domain.ChallengeInstance {
	return &domain.ChallengeInstance{
		ID:                    uuid.New(),
		ChallengeID:           def.ID,
		PlayerID:              playerID,
		Title:                 def.Title,
		Actions:               append([]string(nil), def.Actions...),
		Status:                domain.StatusActive,
		VerificationsRequired: def.VerificationsRequired,
		DailyReward:           def.DailyReward,
		CompletionBonus:       def.CompletionBonus,
		StartedAt:             now,
	}
}

// NewCustomChallenge validates params and starts a custom challenge with the
// reward tier in force right now.
func NewCustomChallenge(p domain.StartCustomChallengeParams, tier catalog.CustomTier, now time.Time) (*domain.CustomChallengeInstance, error) {
	if err := domain.ValidateCustomChallenge(p); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	return &domain.CustomChallengeInstance{
		ID:                uuid.New(),
		PlayerID:          p.PlayerID,
		Title:             p.Title,
		Actions:           append([]string(nil), p.Actions...),
		DailyMinimum:      p.DailyMinimum,
		TargetCompletions: domain.CustomChallengeTarget,
		DailyReward:       tier.DailyReward,
		CompletionReward:  tier.CompletionReward,
		Status:            domain.StatusActive,
		StartedAt:         now,
	}, nil
}

// NewQuest starts a quest.
func NewQuest(def catalog.Quest, playerID uuid.UUID, now time.Time) *domain.QuestInstance {
	return &domain.QuestInstance{
		ID:              uuid.New(),
		QuestID:         def.ID,
		PlayerID:        playerID,
		Title:           def.Title,
		Status:          domain.StatusActive,
		WeeklyReward:    def.WeeklyReward,
		CompletionBonus: def.CompletionBonus,
		WeeklyProgress:  []domain.WeeklyProgress{},
		StartedAt:       now,
	}
}

// CheckCancel verifies st may be cancelled by playerID.
func CheckCancel(st *domain.InstanceState, playerID uuid.UUID) error {
	if st == nil || st.PlayerID != playerID {
		return domain.ErrNotFound("instance", "")
	}
	switch st.Kind {
	case domain.KindStandardChallenge, domain.KindCustomChallenge:
	default:
		return domain.ErrValidation(fmt.Sprintf("%s instances cannot be cancelled", st.Kind))
	}
	if !st.Active() {
		return domain.ErrAlreadyFinished(fmt.Sprintf("%s %s is already %s", st.Kind, st.InstanceID, st.Status))
	}
	return nil
}

// AdvanceChallenge applies an accepted outcome to a standard challenge.
func AdvanceChallenge(c *domain.ChallengeInstance, out *Outcome, now time.Time) {
	c.VerificationCount = out.Progress
	if out.ParentCompleted {
		c.Status = domain.StatusCompleted
		c.CompletedAt = &now
	}
}

// AdvanceCustomChallenge applies an accepted outcome to a custom challenge.
func AdvanceCustomChallenge(c *domain.CustomChallengeInstance, out *Outcome, now time.Time) {
	c.CompletionCount = out.Progress
	if out.ParentCompleted {
		c.Status = domain.StatusCompleted
		c.CompletedAt = &now
	}
}

// AdvanceQuest logs the next week of a quest.
func AdvanceQuest(q *domain.QuestInstance, out *Outcome, now time.Time) {
	q.WeeklyProgress = append(q.WeeklyProgress, domain.WeeklyProgress{
		WeekNumber:     out.Progress,
		CompletionDate: now,
		FPEarned:       out.Reward,
	})
	if out.ParentCompleted {
		q.Status = domain.StatusCompleted
		q.CompletedAt = &now
	}
}
