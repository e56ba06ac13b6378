package settlement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/fuelpoints/platform/internal/progression"
)

// Markers folds completion records into one window marker per gating scope,
// plus an aggregate boost marker (empty InstanceID) carrying the number of
// boosts accepted on the latest boost day.
func Markers(records []domain.CompletionRecord) []domain.WindowMarker {
	sorted := sortedRecords(records)

	byKey := make(map[domain.InstanceKey]*domain.WindowMarker)
	var boostAll *domain.WindowMarker
	for _, r := range sorted {
		m, ok := byKey[r.Key()]
		if !ok {
			m = &domain.WindowMarker{Kind: r.Kind, InstanceID: r.InstanceID}
			byKey[r.Key()] = m
		}
		advance(m, r)

		if r.Kind == domain.KindDailyBoost {
			if boostAll == nil {
				boostAll = &domain.WindowMarker{Kind: domain.KindDailyBoost}
			}
			advance(boostAll, r)
		}
	}

	out := make([]domain.WindowMarker, 0, len(byKey)+1)
	for _, m := range byKey {
		out = append(out, *m)
	}
	if boostAll != nil {
		out = append(out, *boostAll)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

func advance(m *domain.WindowMarker, r domain.CompletionRecord) {
	if m.LastLocalDate == r.LocalDate {
		m.CountOnLastDate++
	} else if m.LastLocalDate.IsZero() || m.LastLocalDate < r.LocalDate {
		m.LastLocalDate = r.LocalDate
		m.CountOnLastDate = 1
	}
	if r.OccurredAt.After(m.LastAt) {
		m.LastAt = r.OccurredAt
	}
}

func sortedRecords(records []domain.CompletionRecord) []domain.CompletionRecord {
	sorted := append([]domain.CompletionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})
	return sorted
}

// Audit replays a player's records against the stored player row.
//
// Invariants:
//  1. FP parity: rewards + streak bonuses + corrections equal the stored total
//  2. Level consistency: stored level never exceeds the level the total earns
//  3. Window uniqueness: no two records of one scope share a window
//  4. Boost cap: at most BoostsPerDay boosts per local day
func Audit(p *domain.Player, records []domain.CompletionRecord, corrections int64) *domain.AuditReport {
	checks := make([]domain.InvariantCheck, 0, 4)

	var earned int64
	for _, r := range records {
		earned += r.Reward + r.StreakBonus
	}
	checks = append(checks, domain.InvariantCheck{
		Name:   "fp_parity",
		Passed: earned+corrections == p.FuelPoints,
		Detail: fmt.Sprintf("records=%d corrections=%d stored=%d", earned, corrections, p.FuelPoints),
	})

	maxLevel := progression.LevelForFP(p.FuelPoints)
	checks = append(checks, domain.InvariantCheck{
		Name:   "level_consistent",
		Passed: p.Level >= 1 && p.Level <= maxLevel,
		Detail: fmt.Sprintf("stored=%d earned=%d", p.Level, maxLevel),
	})

	violations := windowViolations(records)
	checks = append(checks, domain.InvariantCheck{
		Name:   "window_uniqueness",
		Passed: len(violations) == 0,
		Detail: detail(violations, "no duplicate windows"),
	})

	overCap := boostCapViolations(records)
	checks = append(checks, domain.InvariantCheck{
		Name:   "boost_daily_cap",
		Passed: len(overCap) == 0,
		Detail: detail(overCap, fmt.Sprintf("at most %d boosts per day", domain.BoostsPerDay)),
	})

	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
		}
	}
	return &domain.AuditReport{
		PlayerID:    p.ID,
		RecordCount: len(records),
		Invariants:  checks,
		AllPassed:   allPassed,
	}
}

func windowViolations(records []domain.CompletionRecord) []string {
	var out []string
	prev := make(map[domain.InstanceKey]domain.CompletionRecord)
	for _, r := range sortedRecords(records) {
		last, seen := prev[r.Key()]
		prev[r.Key()] = r
		if !seen {
			continue
		}
		if r.Kind.Cadence() == domain.CadenceRolling {
			at := last.OccurredAt
			if !policy.RollingWindow(&at, r.OccurredAt, r.Kind.WindowDays()).Allowed {
				out = append(out, fmt.Sprintf("%s %s within %d days", r.Key(), r.LocalDate, r.Kind.WindowDays()))
			}
			continue
		}
		if last.LocalDate == r.LocalDate {
			out = append(out, fmt.Sprintf("%s twice on %s", r.Key(), r.LocalDate))
		}
	}
	return out
}

func boostCapViolations(records []domain.CompletionRecord) []string {
	perDay := make(map[domain.LocalDate]int)
	for _, r := range records {
		if r.Kind == domain.KindDailyBoost {
			perDay[r.LocalDate]++
		}
	}
	var out []string
	for d, n := range perDay {
		if n > domain.BoostsPerDay {
			out = append(out, fmt.Sprintf("%d boosts on %s", n, d))
		}
	}
	sort.Strings(out)
	return out
}

func detail(items []string, ok string) string {
	if len(items) == 0 {
		return ok
	}
	return strings.Join(items, "; ")
}
