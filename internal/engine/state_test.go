package engine

import (
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stateNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func seededState(t *testing.T) (*ClientState, uuid.UUID, domain.InstanceState) {
	t.Helper()
	pid := uuid.New()
	inst := domain.InstanceState{
		Kind:            domain.KindStandardChallenge,
		InstanceID:      uuid.NewString(),
		PlayerID:        pid,
		Status:          domain.StatusActive,
		Progress:        6,
		Target:          7,
		DailyReward:     5,
		CompletionBonus: 50,
		Actions:         []string{"a", "b", "c"},
	}
	s := NewClientState(pid)
	s.Reconcile(&domain.PlayerState{
		PlayerID:   pid,
		FuelPoints: 40,
		Level:      2,
		BurnStreak: 2,
		Markers: []domain.WindowMarker{
			{Kind: inst.Kind, InstanceID: inst.InstanceID, LastLocalDate: "2026-03-13", LastAt: stateNow.Add(-24 * time.Hour), CountOnLastDate: 1},
		},
		Instances: []domain.InstanceState{inst},
		AsOf:      stateNow,
	})
	s.SetBoostPool([]catalog.Boost{{ID: "walk-10", FP: 2}})
	return s, pid, inst
}

func TestClientState_BeginGuessesCompletionBonus(t *testing.T) {
	s, pid, inst := seededState(t)
	req := domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-14",
		Selection: domain.Selection{ActionIDs: []string{"a", "b"}}}

	m, err := s.Begin(req, stateNow, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(55), m.Guess())

	snap := s.Snapshot()
	assert.Equal(t, int64(95), snap.FuelPoints)
	assert.Equal(t, 1, snap.Pending)
	assert.True(t, snap.DoneToday(inst.Key(), "2026-03-14"))
	got, _ := snap.Instance(inst.Key())
	assert.Equal(t, 7, got.Progress)
}

func TestClientState_RollbackRestoresPriorMarker(t *testing.T) {
	s, pid, inst := seededState(t)
	before := s.Snapshot()
	req := domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-14",
		Selection: domain.Selection{ActionIDs: []string{"a", "c"}}}

	m, err := s.Begin(req, stateNow, nil)
	require.NoError(t, err)
	s.Rollback(m)
	s.Rollback(m)

	after := s.Snapshot()
	assert.Equal(t, before.FuelPoints, after.FuelPoints)
	assert.Equal(t, before.Markers, after.Markers)
	assert.Equal(t, before.Instances, after.Instances)
	assert.Zero(t, after.Pending)
}

func TestClientState_AdmitRefusalLeavesStateUntouched(t *testing.T) {
	s, pid, _ := seededState(t)
	before := s.Snapshot()
	req := domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "walk-10", LocalDate: "2026-03-14"}

	_, err := s.Begin(req, stateNow, func() error { return domain.ErrTransient("open", nil) })
	assert.True(t, domain.IsCode(err, domain.CodeTransient))
	assert.Equal(t, before, s.Snapshot())
}

func TestClientState_ValidationFailures(t *testing.T) {
	s, pid, inst := seededState(t)

	tests := []struct {
		name string
		req  domain.SubmitRequest
		code string
	}{
		{"too few actions", domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-14",
			Selection: domain.Selection{ActionIDs: []string{"a"}}}, domain.CodeValidation},
		{"action outside challenge", domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-14",
			Selection: domain.Selection{ActionIDs: []string{"a", "z"}}}, domain.CodeValidation},
		{"already done on that date", domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-13",
			Selection: domain.Selection{ActionIDs: []string{"a", "b"}}}, domain.CodeValidation},
		{"unknown instance", domain.SubmitRequest{PlayerID: pid, Kind: domain.KindCustomChallenge, InstanceID: uuid.NewString(), LocalDate: "2026-03-14",
			Selection: domain.Selection{ActionIDs: []string{"a", "b"}}}, domain.CodeNotFound},
		{"scores out of range", domain.SubmitRequest{PlayerID: pid, Kind: domain.KindHealthReassessment, LocalDate: "2026-03-14",
			Selection: domain.Selection{CategoryScores: map[string]float64{"sleep": 120}}}, domain.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Begin(tt.req, stateNow, nil)
			assert.Equal(t, tt.code, domain.CodeOf(err))
		})
	}
	assert.Zero(t, s.Snapshot().Pending)
}

func TestClientState_FinishedInstanceRejected(t *testing.T) {
	s, pid, inst := seededState(t)
	inst.Status = domain.StatusCompleted
	s.Reconcile(&domain.PlayerState{PlayerID: pid, Level: 2, Instances: []domain.InstanceState{inst}})

	_, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: inst.Kind, InstanceID: inst.InstanceID, LocalDate: "2026-03-14",
		Selection: domain.Selection{ActionIDs: []string{"a", "b"}}}, stateNow, nil)
	assert.True(t, domain.IsAlreadyFinished(err))
}

func TestClientState_BoostCap(t *testing.T) {
	pid := uuid.New()
	s := NewClientState(pid)
	s.Reconcile(&domain.PlayerState{PlayerID: pid, Level: 1, Markers: []domain.WindowMarker{
		{Kind: domain.KindDailyBoost, LastLocalDate: "2026-03-14", CountOnLastDate: domain.BoostsPerDay},
	}})

	_, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "walk-10", LocalDate: "2026-03-14"}, stateNow, nil)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, s.Snapshot().BoostsRemaining("2026-03-14"))
	assert.Equal(t, domain.BoostsPerDay, s.Snapshot().BoostsRemaining("2026-03-15"))
}

func TestClientState_ConfirmSwapsGuessForAuthoritativeReward(t *testing.T) {
	s, pid, _ := seededState(t)
	m, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "walk-10", LocalDate: "2026-03-14"}, stateNow, nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), s.FuelPoints())

	s.Confirm(m, &domain.SubmitResult{Accepted: true, Reward: 3, StreakBonus: 5, BurnStreak: 3})
	snap := s.Snapshot()
	assert.Equal(t, int64(48), snap.FuelPoints)
	assert.Equal(t, 3, snap.BurnStreak)
	assert.Zero(t, snap.Pending)
}

func TestClientState_ReconcileReplaysPending(t *testing.T) {
	s, pid, _ := seededState(t)
	m, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "walk-10", LocalDate: "2026-03-14"}, stateNow, nil)
	require.NoError(t, err)

	s.Reconcile(&domain.PlayerState{PlayerID: pid, FuelPoints: 100, Level: 3})
	snap := s.Snapshot()
	assert.Equal(t, int64(102), snap.FuelPoints)
	assert.Equal(t, domain.BoostsPerDay-1, snap.BoostsRemaining("2026-03-14"))

	s.Rollback(m)
	snap = s.Snapshot()
	assert.Equal(t, int64(100), snap.FuelPoints)
	assert.Equal(t, domain.BoostsPerDay, snap.BoostsRemaining("2026-03-14"))
	assert.Empty(t, snap.Markers)
}

func TestSnapshot_Thresholds(t *testing.T) {
	s, _, _ := seededState(t)
	snap := s.Snapshot()
	assert.Equal(t, int64(28), snap.NextLevelThreshold)
	assert.Equal(t, int64(20), snap.FPIntoLevel)
}

func TestClientState_OverlappingBoostRollbacksRestoreCap(t *testing.T) {
	for _, order := range [][2]int{{0, 1}, {1, 0}} {
		s, pid, _ := seededState(t)
		s.SetBoostPool([]catalog.Boost{{ID: "walk-10", FP: 2}, {ID: "stretch-5", FP: 2}})
		before := s.Snapshot()

		var ms [2]*Mutation
		for i, id := range []string{"walk-10", "stretch-5"} {
			m, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: id, LocalDate: "2026-03-14"}, stateNow, nil)
			require.NoError(t, err)
			ms[i] = m
		}
		require.Equal(t, domain.BoostsPerDay-2, s.Snapshot().BoostsRemaining("2026-03-14"))

		s.Rollback(ms[order[0]])
		assert.Equal(t, domain.BoostsPerDay-1, s.Snapshot().BoostsRemaining("2026-03-14"))
		s.Rollback(ms[order[1]])

		after := s.Snapshot()
		assert.Equal(t, domain.BoostsPerDay, after.BoostsRemaining("2026-03-14"), "order %v", order)
		assert.Equal(t, before.Markers, after.Markers, "order %v", order)
		assert.Equal(t, before.FuelPoints, after.FuelPoints)
	}
}

func TestClientState_BoostRollbackKeepsEarlierDayAggregate(t *testing.T) {
	pid := uuid.New()
	s := NewClientState(pid)
	prior := domain.WindowMarker{Kind: domain.KindDailyBoost, LastLocalDate: "2026-03-13", LastAt: stateNow.Add(-24 * time.Hour), CountOnLastDate: 2}
	s.Reconcile(&domain.PlayerState{PlayerID: pid, Level: 1, Markers: []domain.WindowMarker{prior}})

	a, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "walk-10", LocalDate: "2026-03-14"}, stateNow, nil)
	require.NoError(t, err)
	b, err := s.Begin(domain.SubmitRequest{PlayerID: pid, Kind: domain.KindDailyBoost, InstanceID: "stretch-5", LocalDate: "2026-03-14"}, stateNow, nil)
	require.NoError(t, err)
	s.Rollback(a)
	s.Rollback(b)

	got, ok := s.Snapshot().Marker(domain.InstanceKey{Kind: domain.KindDailyBoost})
	require.True(t, ok)
	assert.Equal(t, prior, got)
}
