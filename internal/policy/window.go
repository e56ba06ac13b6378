// Package policy decides whether a time-gated action may be performed now.
//
// Three cadence families exist:
//   - daily-local: once per player-local calendar day, resets at local midnight
//   - rolling: once per N days measured from the previous acceptance
//   - weekly-fixed-day: calendar-anchored reset on a configured weekday
//
// Every function is pure; callers pass the clock reading explicitly.
package policy

import (
	"time"

	"github.com/fuelpoints/platform/internal/domain"
)

const day = 24 * time.Hour

// WindowDecision is the verdict of a window check.
// DaysRemaining is only meaningful for rolling windows; Remaining only for
// count-capped daily windows. Backdated is set when a daily submission names
// a day earlier than one already recorded for its scope.
type WindowDecision struct {
	Allowed       bool `json:"allowed"`
	DaysRemaining int  `json:"days_remaining"`
	Remaining     int  `json:"remaining,omitempty"`
	Backdated     bool `json:"backdated,omitempty"`
}

// DailyLocalWindow allows the action iff it has not occurred on today's local date.
func DailyLocalWindow(last *domain.LocalDate, today domain.LocalDate) WindowDecision {
	if last == nil || last.IsZero() {
		return WindowDecision{Allowed: true}
	}
	return WindowDecision{Allowed: *last != today}
}

// RollingWindow allows the action once windowDays whole days have elapsed
// since last. Elapsed time is floored to whole days, and exactly windowDays
// in the past is allowed.
func RollingWindow(last *time.Time, now time.Time, windowDays int) WindowDecision {
	if last == nil || last.IsZero() {
		return WindowDecision{Allowed: true}
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedDays := int(elapsed / day)
	remaining := max(0, windowDays-elapsedDays)
	return WindowDecision{Allowed: remaining == 0, DaysRemaining: remaining}
}

// WeeklyFixedDayReset returns the days until the next resetDay in now's
// location. On the reset day itself the next reset is a full week away (7).
func WeeklyFixedDayReset(now time.Time, resetDay time.Weekday) int {
	days := (int(resetDay) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		return 7
	}
	return days
}

// DailyCountWindow caps acceptances per local day.
func DailyCountWindow(countToday, limit int) WindowDecision {
	remaining := max(0, limit-countToday)
	return WindowDecision{Allowed: remaining > 0, Remaining: remaining}
}

// PoolWeekStart returns the most recent resetDay on or before today.
func PoolWeekStart(today domain.LocalDate, resetDay time.Weekday) domain.LocalDate {
	t := today.Time(time.UTC)
	back := (int(t.Weekday()) - int(resetDay) + 7) % 7
	return today.AddDays(-back)
}

// History is what a caller knows about prior acceptances for one scope.
// Last is the marker for the (kind, instance) scope; DayCount is the number
// of acceptances of the kind on today's local date and LatestDay the newest
// local date any of them was recorded on (boost cap only).
type History struct {
	Last      *domain.WindowMarker
	DayCount  int
	LatestDay domain.LocalDate
}

// Backdated reports whether today is earlier than a day already recorded
// for the scope. Daily windows only move forward.
func (h History) Backdated(today domain.LocalDate) bool {
	if h.LatestDay > today {
		return true
	}
	return h.Last != nil && h.Last.LastLocalDate > today
}

// ForKind applies the cadence rule of kind.
func ForKind(kind domain.ActionKind, h History, today domain.LocalDate, now time.Time) WindowDecision {
	if kind.Cadence() == domain.CadenceDailyLocal && h.Backdated(today) {
		return WindowDecision{Backdated: true}
	}
	switch kind {
	case domain.KindDailyBoost:
		d := DailyLocalWindow(lastDate(h.Last), today)
		capDecision := DailyCountWindow(h.DayCount, domain.BoostsPerDay)
		d.Remaining = capDecision.Remaining
		d.Allowed = d.Allowed && capDecision.Allowed
		return d
	case domain.KindStandardChallenge, domain.KindCustomChallenge:
		return DailyLocalWindow(lastDate(h.Last), today)
	case domain.KindQuestWeekly, domain.KindHealthReassessment:
		return RollingWindow(lastAt(h.Last), now, kind.WindowDays())
	default:
		return WindowDecision{}
	}
}

func lastDate(m *domain.WindowMarker) *domain.LocalDate {
	if m == nil || m.LastLocalDate.IsZero() {
		return nil
	}
	d := m.LastLocalDate
	return &d
}

func lastAt(m *domain.WindowMarker) *time.Time {
	if m == nil || m.LastAt.IsZero() {
		return nil
	}
	t := m.LastAt
	return &t
}

// HistoryFrom builds the History for key out of a player's window markers.
// The aggregate boost marker (empty InstanceID) supplies the latest boost day
// and, when that day is today, today's boost count.
func HistoryFrom(markers []domain.WindowMarker, key domain.InstanceKey, today domain.LocalDate) History {
	var h History
	for i := range markers {
		m := markers[i]
		if m.Key() == key {
			h.Last = &m
		}
		if key.Kind == domain.KindDailyBoost && m.Kind == domain.KindDailyBoost && m.InstanceID == "" {
			h.LatestDay = m.LastLocalDate
			if m.LastLocalDate == today {
				h.DayCount = m.CountOnLastDate
			}
		}
	}
	return h
}
