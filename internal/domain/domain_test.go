package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		min     int
		wantErr bool
		errMsg  string
	}{
		{"two of two", []string{"walk", "water"}, 2, false, ""},
		{"three over min", []string{"walk", "water", "sleep"}, 2, false, ""},
		{"one under min", []string{"walk"}, 2, true, "select at least 2 actions, got 1"},
		{"duplicates count once", []string{"walk", "walk"}, 2, true, "got 1"},
		{"empty id", []string{"walk", " "}, 2, true, "must not be empty"},
		{"none with zero min", nil, 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(tt.ids, tt.min)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateSelectionAllowed(t *testing.T) {
	require.NoError(t, ValidateSelectionAllowed([]string{"a", "b"}, []string{"a", "b", "c"}))
	err := ValidateSelectionAllowed([]string{"a", "z"}, []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"z"`)
}

func TestValidateCustomChallenge(t *testing.T) {
	valid := StartCustomChallengeParams{
		PlayerID:     uuid.New(),
		Title:        "Morning routine",
		Actions:      []string{"stretch", "water", "journal"},
		DailyMinimum: 2,
	}
	require.NoError(t, ValidateCustomChallenge(valid))

	t.Run("missing title", func(t *testing.T) {
		p := valid
		p.Title = "  "
		assert.Error(t, ValidateCustomChallenge(p))
	})

	t.Run("too few actions", func(t *testing.T) {
		p := valid
		p.Actions = []string{"stretch"}
		p.DailyMinimum = 1
		assert.Error(t, ValidateCustomChallenge(p))
	})

	t.Run("minimum above action count", func(t *testing.T) {
		p := valid
		p.DailyMinimum = 4
		err := ValidateCustomChallenge(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "between 1 and 3")
	})

	t.Run("bad action id", func(t *testing.T) {
		p := valid
		p.Actions = []string{"stretch", "Drink Water"}
		assert.Error(t, ValidateCustomChallenge(p))
	})
}

func TestValidateCategoryScores(t *testing.T) {
	require.NoError(t, ValidateCategoryScores(map[string]float64{"sleep": 80, "diet": 0}))
	assert.Error(t, ValidateCategoryScores(nil))
	assert.Error(t, ValidateCategoryScores(map[string]float64{"sleep": 101}))
	assert.Error(t, ValidateCategoryScores(map[string]float64{"sleep": -1}))
}

func TestValidateCorrection(t *testing.T) {
	assert.NoError(t, ValidateCorrection(FuelPointsCorrection{Delta: -5, Reason: "duplicate credit"}))
	assert.Error(t, ValidateCorrection(FuelPointsCorrection{Delta: 0, Reason: "x"}))
	assert.Error(t, ValidateCorrection(FuelPointsCorrection{Delta: 5}))
}

// --- Error Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrConflict("already logged today")
		assert.Equal(t, "CONFLICT: already logged today", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("dial tcp: timeout")
		err := ErrTransient("submit completion", cause)
		assert.Equal(t, "TRANSIENT: submit completion: dial tcp: timeout", err.Error())
		assert.ErrorIs(t, err, cause)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrNotFound("player", "1"), CodeNotFound, 404},
		{ErrConflict("dup"), CodeConflict, 409},
		{ErrValidation("bad"), CodeValidation, 400},
		{ErrAlreadyFinished("done"), CodeAlreadyFinished, 409},
		{ErrTransient("down", nil), CodeTransient, 503},
		{ErrInFlight("daily_boost:hydrate"), CodeInFlight, 409},
		{ErrUnauthorized("no"), CodeUnauthorized, 401},
		{ErrForbidden("no"), CodeForbidden, 403},
		{ErrRateLimited("slow"), CodeRateLimited, 429},
		{ErrInternal("oops", nil), CodeInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", ErrConflict("dup"))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsTransient(wrapped))

	assert.True(t, IsAlreadyFinished(ErrAlreadyFinished("completed")))
	assert.True(t, IsValidation(ErrValidation("x")))

	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.True(t, IsTransient(ErrTransient("x", nil)))
	assert.True(t, IsTransient(ErrInternal("x", nil)))
	assert.False(t, IsTransient(nil))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestNewAppError_DefaultsCode(t *testing.T) {
	err := NewAppError("", "boom", 500)
	assert.Equal(t, CodeInternal, err.Code)
}

// --- ActionKind Tests ---

func TestActionKind(t *testing.T) {
	tests := []struct {
		kind             ActionKind
		cadence          Cadence
		windowDays       int
		hasParent        bool
		requiresInstance bool
	}{
		{KindDailyBoost, CadenceDailyLocal, 0, false, true},
		{KindStandardChallenge, CadenceDailyLocal, 0, true, true},
		{KindCustomChallenge, CadenceDailyLocal, 0, true, true},
		{KindQuestWeekly, CadenceRolling, 7, true, true},
		{KindHealthReassessment, CadenceRolling, 30, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, tt.kind.Valid())
			assert.Equal(t, tt.cadence, tt.kind.Cadence())
			assert.Equal(t, tt.windowDays, tt.kind.WindowDays())
			assert.Equal(t, tt.hasParent, tt.kind.HasParent())
			assert.Equal(t, tt.requiresInstance, tt.kind.RequiresInstance())
		})
	}

	_, err := ParseActionKind("weekly_boost")
	assert.Error(t, err)
	k, err := ParseActionKind("quest_weekly")
	require.NoError(t, err)
	assert.Equal(t, KindQuestWeekly, k)
}

func TestSubmitRequest_Validate(t *testing.T) {
	base := SubmitRequest{
		PlayerID:   uuid.New(),
		Kind:       KindDailyBoost,
		InstanceID: "hydrate",
		LocalDate:  "2026-03-14",
	}
	require.NoError(t, base.Validate())

	noInstance := base
	noInstance.InstanceID = ""
	assert.True(t, IsValidation(noInstance.Validate()))

	reassess := base
	reassess.Kind = KindHealthReassessment
	reassess.InstanceID = ""
	assert.NoError(t, reassess.Validate())

	scopedReassess := reassess
	scopedReassess.InstanceID = "r-1"
	assert.True(t, IsValidation(scopedReassess.Validate()))

	badDate := base
	badDate.LocalDate = "14/03/2026"
	assert.True(t, IsValidation(badDate.Validate()))

	noPlayer := base
	noPlayer.PlayerID = uuid.Nil
	assert.True(t, IsValidation(noPlayer.Validate()))
}

func TestInstanceKey_String(t *testing.T) {
	assert.Equal(t, "daily_boost:hydrate", InstanceKey{Kind: KindDailyBoost, InstanceID: "hydrate"}.String())
	assert.Equal(t, "health_reassessment", InstanceKey{Kind: KindHealthReassessment}.String())
}

// --- LocalDate Tests ---

func TestLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:30 UTC on the 15th is still the 14th in New York.
	instant := time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, LocalDate("2026-03-14"), LocalDateOf(instant.In(loc)))
	assert.Equal(t, LocalDate("2026-03-15"), LocalDateOf(instant))

	d := LocalDate("2026-02-28")
	assert.Equal(t, LocalDate("2026-03-01"), d.AddDays(1))
	assert.Equal(t, LocalDate("2026-02-27"), d.AddDays(-1))
	assert.Equal(t, 2, d.DaysUntil("2026-03-02"))
	assert.Equal(t, -1, d.DaysUntil("2026-02-27"))

	_, err = ParseLocalDate("2026-13-01")
	assert.Error(t, err)
}

func TestPlayer_DaysSinceLastFuelPoints(t *testing.T) {
	p := &Player{}
	assert.Equal(t, 0, p.DaysSinceLastFuelPoints("2026-03-14"))

	last := LocalDate("2026-03-10")
	p.LastFuelPointsDate = &last
	assert.Equal(t, 4, p.DaysSinceLastFuelPoints("2026-03-14"))
	assert.Equal(t, 0, p.DaysSinceLastFuelPoints("2026-03-09"))
}

// --- Instance Tests ---

func TestQuestInstance_NextWeek(t *testing.T) {
	q := &QuestInstance{}
	assert.Equal(t, 1, q.NextWeek())
	assert.Nil(t, q.LastCompletion())

	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= QuestWeeks; i++ {
		q.WeeklyProgress = append(q.WeeklyProgress, WeeklyProgress{WeekNumber: i, CompletionDate: at})
	}
	assert.Equal(t, QuestWeeks, q.NextWeek(), "capped at 12")
	require.NotNil(t, q.LastCompletion())
	assert.Equal(t, at, *q.LastCompletion())
}

func TestInstanceState_MinimumSelection(t *testing.T) {
	assert.Equal(t, 2, InstanceState{Kind: KindStandardChallenge}.MinimumSelection())
	assert.Equal(t, 3, InstanceState{Kind: KindCustomChallenge, DailyMinimum: 3}.MinimumSelection())
	assert.Equal(t, 0, InstanceState{Kind: KindQuestWeekly}.MinimumSelection())
}

func TestChallengeInstance_State(t *testing.T) {
	c := &ChallengeInstance{
		ID:                    uuid.New(),
		ChallengeID:           "hydration-14",
		Status:                StatusActive,
		VerificationCount:     3,
		VerificationsRequired: 14,
		DailyReward:           10,
		CompletionBonus:       100,
	}
	st := c.State()
	assert.Equal(t, KindStandardChallenge, st.Kind)
	assert.Equal(t, c.ID.String(), st.InstanceID)
	assert.Equal(t, 3, st.Progress)
	assert.Equal(t, 14, st.Target)
	assert.True(t, st.Active())
}

// --- Event Tests ---

func TestNewCompletionAcceptedEvent(t *testing.T) {
	rec := &CompletionRecord{
		ID:         uuid.New(),
		PlayerID:   uuid.New(),
		Kind:       KindStandardChallenge,
		InstanceID: "c1",
		LocalDate:  "2026-03-14",
		OccurredAt: time.Now(),
	}
	evt := NewCompletionAcceptedEvent(rec, SubmitResult{Accepted: true, Reward: 110, ParentCompleted: true})

	assert.Equal(t, AggregatePlayer, evt.AggregateType)
	assert.Equal(t, EventCompletionAccepted, evt.EventType)
	assert.Equal(t, rec.PlayerID.String(), evt.PartitionKey)
	assert.Equal(t, json.RawMessage(`{}`), evt.Headers)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, float64(110), payload["reward"])
	assert.Equal(t, true, payload["parent_completed"])
}

func TestNewInstanceEvent(t *testing.T) {
	st := InstanceState{Kind: KindQuestWeekly, InstanceID: "q1", PlayerID: uuid.New(), Status: StatusCompleted}
	evt := NewInstanceEvent(EventInstanceCompleted, st, time.Now())
	assert.Equal(t, AggregateInstance, evt.AggregateType)
	assert.Equal(t, "q1", evt.AggregateID)
	assert.Equal(t, st.PlayerID.String(), evt.PartitionKey)
}
