package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuestWeeks is the number of weekly actions in a quest.
const QuestWeeks = 12

// WeeklyProgress is one logged quest week.
type WeeklyProgress struct {
	WeekNumber     int       `json:"week_number"`
	CompletionDate time.Time `json:"completion_date"`
	FPEarned       int64     `json:"fp_earned"`
}

// QuestInstance tracks a player's progress through a 12-week quest.
type QuestInstance struct {
	ID              uuid.UUID        `json:"id"`
	QuestID         string           `json:"quest_id"`
	PlayerID        uuid.UUID        `json:"player_id"`
	Title           string           `json:"title"`
	Status          InstanceStatus   `json:"status"`
	WeeklyReward    int64            `json:"weekly_reward"`
	CompletionBonus int64            `json:"completion_bonus"`
	WeeklyProgress  []WeeklyProgress `json:"weekly_progress"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// NextWeek is the week number the next accepted action will record.
func (q *QuestInstance) NextWeek() int {
	return min(len(q.WeeklyProgress)+1, QuestWeeks)
}

// LastCompletion returns the instant of the most recent logged week.
func (q *QuestInstance) LastCompletion() *time.Time {
	if len(q.WeeklyProgress) == 0 {
		return nil
	}
	t := q.WeeklyProgress[len(q.WeeklyProgress)-1].CompletionDate
	return &t
}

// State returns the kind-agnostic view.
func (q *QuestInstance) State() InstanceState {
	return InstanceState{
		Kind:            KindQuestWeekly,
		InstanceID:      q.ID.String(),
		PlayerID:        q.PlayerID,
		DefinitionID:    q.QuestID,
		Title:           q.Title,
		Status:          q.Status,
		Progress:        len(q.WeeklyProgress),
		Target:          QuestWeeks,
		DailyReward:     q.WeeklyReward,
		CompletionBonus: q.CompletionBonus,
		WeeklyProgress:  q.WeeklyProgress,
		StartedAt:       q.StartedAt,
		CompletedAt:     q.CompletedAt,
	}
}

// HealthAssessment is the payload stored with a HealthReassessment record.
type HealthAssessment struct {
	CategoryScores map[string]float64 `json:"category_scores"`
	Score          float64            `json:"score"`
}
