package policy

import (
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC) // a Saturday

func datePtr(s string) *domain.LocalDate {
	d := domain.LocalDate(s)
	return &d
}

func TestDailyLocalWindow_NoPriorOccurrence(t *testing.T) {
	assert.True(t, DailyLocalWindow(nil, "2026-03-14").Allowed)
	assert.True(t, DailyLocalWindow(datePtr(""), "2026-03-14").Allowed)
}

func TestDailyLocalWindow_SameDayBlocked(t *testing.T) {
	assert.False(t, DailyLocalWindow(datePtr("2026-03-14"), "2026-03-14").Allowed)
}

func TestDailyLocalWindow_NextDayAllowed(t *testing.T) {
	assert.True(t, DailyLocalWindow(datePtr("2026-03-13"), "2026-03-14").Allowed)
}

func TestDailyLocalWindow_UsesLocalNotUTCDate(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 23:30 UTC on the 13th is already the 14th in Tokyo.
	instant := time.Date(2026, 3, 13, 23, 30, 0, 0, time.UTC)
	today := domain.LocalDateOf(instant.In(loc))
	assert.False(t, DailyLocalWindow(datePtr("2026-03-14"), today).Allowed)
	assert.True(t, DailyLocalWindow(datePtr("2026-03-13"), today).Allowed)
}

func TestRollingWindow(t *testing.T) {
	tests := []struct {
		name          string
		ago           time.Duration
		windowDays    int
		wantAllowed   bool
		wantRemaining int
	}{
		{"exactly seven days is allowed", 7 * day, 7, true, 0},
		{"6.99 days is blocked", time.Duration(6.99 * float64(day)), 7, false, 1},
		{"just elapsed", time.Minute, 7, false, 7},
		{"three and a half days", 3*day + 12*time.Hour, 7, false, 4},
		{"long ago", 90 * day, 7, true, 0},
		{"thirty day window boundary", 30 * day, 30, true, 0},
		{"twenty nine days of thirty", 29*day + 23*time.Hour, 30, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := now.Add(-tt.ago)
			got := RollingWindow(&last, now, tt.windowDays)
			assert.Equal(t, tt.wantAllowed, got.Allowed)
			assert.Equal(t, tt.wantRemaining, got.DaysRemaining)
		})
	}
}

func TestRollingWindow_NoPriorOccurrence(t *testing.T) {
	got := RollingWindow(nil, now, 30)
	assert.True(t, got.Allowed)
	assert.Equal(t, 0, got.DaysRemaining)
}

func TestRollingWindow_FutureLastClampsToFullWindow(t *testing.T) {
	last := now.Add(2 * time.Hour)
	got := RollingWindow(&last, now, 7)
	assert.False(t, got.Allowed)
	assert.Equal(t, 7, got.DaysRemaining)
}

func TestWeeklyFixedDayReset(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		resetDay time.Weekday
		want     int
	}{
		{"saturday to monday", now, time.Monday, 2},
		{"reset day itself is a full week", time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), time.Monday, 7},
		{"day before reset", time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC), time.Monday, 1},
		{"saturday to saturday", now, time.Saturday, 7},
		{"saturday to friday", now, time.Friday, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeeklyFixedDayReset(tt.at, tt.resetDay)
			assert.Equal(t, tt.want, got)
			assert.True(t, got >= 1 && got <= 7)
		})
	}
}

func TestDailyCountWindow(t *testing.T) {
	assert.Equal(t, WindowDecision{Allowed: true, Remaining: 3}, DailyCountWindow(0, 3))
	assert.Equal(t, WindowDecision{Allowed: true, Remaining: 1}, DailyCountWindow(2, 3))
	assert.Equal(t, WindowDecision{Allowed: false, Remaining: 0}, DailyCountWindow(3, 3))
	assert.Equal(t, WindowDecision{Allowed: false, Remaining: 0}, DailyCountWindow(5, 3))
}

func TestPoolWeekStart(t *testing.T) {
	assert.Equal(t, domain.LocalDate("2026-03-09"), PoolWeekStart("2026-03-14", time.Monday))
	assert.Equal(t, domain.LocalDate("2026-03-16"), PoolWeekStart("2026-03-16", time.Monday))
	assert.Equal(t, domain.LocalDate("2026-03-14"), PoolWeekStart("2026-03-14", time.Saturday))
	assert.Equal(t, domain.LocalDate("2026-03-08"), PoolWeekStart("2026-03-14", time.Sunday))
}

func TestForKind_Boost(t *testing.T) {
	today := domain.LocalDate("2026-03-14")
	other := &domain.WindowMarker{Kind: domain.KindDailyBoost, InstanceID: "walk", LastLocalDate: "2026-03-13"}

	got := ForKind(domain.KindDailyBoost, History{Last: other, DayCount: 2}, today, now)
	assert.True(t, got.Allowed)
	assert.Equal(t, 1, got.Remaining)

	got = ForKind(domain.KindDailyBoost, History{Last: other, DayCount: 3}, today, now)
	assert.False(t, got.Allowed, "daily cap reached")

	same := &domain.WindowMarker{Kind: domain.KindDailyBoost, InstanceID: "walk", LastLocalDate: today}
	got = ForKind(domain.KindDailyBoost, History{Last: same, DayCount: 1}, today, now)
	assert.False(t, got.Allowed, "same boost already done today")
}

func TestForKind_Challenges(t *testing.T) {
	today := domain.LocalDate("2026-03-14")
	for _, kind := range []domain.ActionKind{domain.KindStandardChallenge, domain.KindCustomChallenge} {
		assert.True(t, ForKind(kind, History{}, today, now).Allowed)
		done := &domain.WindowMarker{Kind: kind, InstanceID: "c1", LastLocalDate: today}
		assert.False(t, ForKind(kind, History{Last: done}, today, now).Allowed)
	}
}

func TestForKind_Rolling(t *testing.T) {
	today := domain.LocalDate("2026-03-14")
	quest := &domain.WindowMarker{Kind: domain.KindQuestWeekly, InstanceID: "q1", LastAt: now.Add(-5 * day)}
	got := ForKind(domain.KindQuestWeekly, History{Last: quest}, today, now)
	assert.False(t, got.Allowed)
	assert.Equal(t, 2, got.DaysRemaining)

	reassess := &domain.WindowMarker{Kind: domain.KindHealthReassessment, LastAt: now.Add(-30 * day)}
	assert.True(t, ForKind(domain.KindHealthReassessment, History{Last: reassess}, today, now).Allowed)
}

func TestForKind_BackdatedDailyRejected(t *testing.T) {
	today := domain.LocalDate("2026-03-14")
	tomorrow := today.AddDays(1)

	other := &domain.WindowMarker{Kind: domain.KindDailyBoost, InstanceID: "walk", LastLocalDate: "2026-03-13"}
	got := ForKind(domain.KindDailyBoost, History{Last: other, DayCount: 0, LatestDay: tomorrow}, today, now)
	assert.False(t, got.Allowed, "a boost was already logged on a later day")
	assert.True(t, got.Backdated)

	ahead := &domain.WindowMarker{Kind: domain.KindStandardChallenge, InstanceID: "c1", LastLocalDate: tomorrow}
	got = ForKind(domain.KindStandardChallenge, History{Last: ahead}, today, now)
	assert.False(t, got.Allowed)
	assert.True(t, got.Backdated)

	assert.True(t, ForKind(domain.KindStandardChallenge, History{Last: ahead}, tomorrow.AddDays(1), now).Allowed)

	quest := &domain.WindowMarker{Kind: domain.KindQuestWeekly, InstanceID: "q1", LastLocalDate: tomorrow, LastAt: now.Add(-8 * day)}
	assert.True(t, ForKind(domain.KindQuestWeekly, History{Last: quest}, today, now).Allowed, "rolling windows ignore dates")
}

func TestForKind_UnknownKind(t *testing.T) {
	assert.False(t, ForKind("weekly_boost", History{}, "2026-03-14", now).Allowed)
}

func TestHistoryFrom(t *testing.T) {
	today := domain.LocalDate("2026-03-14")
	markers := []domain.WindowMarker{
		{Kind: domain.KindDailyBoost, InstanceID: "walk-10", LastLocalDate: today, CountOnLastDate: 1},
		{Kind: domain.KindDailyBoost, InstanceID: "fruit", LastLocalDate: today, CountOnLastDate: 1},
		{Kind: domain.KindDailyBoost, LastLocalDate: today, CountOnLastDate: 2},
		{Kind: domain.KindQuestWeekly, InstanceID: "q1", LastAt: now.Add(-2 * day)},
	}

	h := HistoryFrom(markers, domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: "stairs"}, today)
	assert.Nil(t, h.Last)
	assert.Equal(t, 2, h.DayCount)

	h = HistoryFrom(markers, domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: "fruit"}, today)
	require.NotNil(t, h.Last)
	assert.Equal(t, "fruit", h.Last.InstanceID)

	h = HistoryFrom(markers, domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: "stairs"}, today.AddDays(1))
	assert.Equal(t, 0, h.DayCount, "yesterday's count does not carry over")
	assert.Equal(t, today, h.LatestDay)

	h = HistoryFrom(markers, domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: "stairs"}, today.AddDays(-1))
	assert.True(t, h.Backdated(today.AddDays(-1)))

	h = HistoryFrom(markers, domain.InstanceKey{Kind: domain.KindQuestWeekly, InstanceID: "q1"}, today)
	require.NotNil(t, h.Last)
	assert.Equal(t, 0, h.DayCount)
}
