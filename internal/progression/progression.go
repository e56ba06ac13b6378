// Package progression holds the pure Fuel Points math: level thresholds,
// streak bonuses, streak continuation and the health score.
package progression

import (
	"math"
	"sort"

	"github.com/fuelpoints/platform/internal/domain"
)

const (
	// BaseThreshold is the FP needed to complete level 1.
	BaseThreshold = 20
	// GrowthFactor is the per-level threshold multiplier (about sqrt 2).
	GrowthFactor = 1.414
	// DefaultCategoryWeight applies to any category without an explicit weight.
	DefaultCategoryWeight = 0.2

	maxLevel = 200
)

// LevelThreshold is the FP needed to complete level (advance to level+1):
// round(20 * 1.414^(level-1)).
func LevelThreshold(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Round(BaseThreshold * math.Pow(GrowthFactor, float64(level-1))))
}

// CumulativeThreshold is the lifetime FP at which level is complete.
func CumulativeThreshold(level int) int64 {
	var total int64
	for l := 1; l <= level; l++ {
		total += LevelThreshold(l)
	}
	return total
}

// LevelForFP returns the level a player with lifetime FP belongs at:
// one plus the number of fully completed levels.
func LevelForFP(lifetime int64) int {
	level := 1
	for level < maxLevel && CumulativeThreshold(level) <= lifetime {
		level++
	}
	return level
}

// FPIntoLevel is how much of level's threshold a lifetime total has covered.
func FPIntoLevel(lifetime int64, level int) int64 {
	into := lifetime - CumulativeThreshold(level-1)
	if into < 0 {
		return 0
	}
	return into
}

// StreakBonus is the tiered FP bonus for reaching a streak value.
// Tiers are not cumulative.
func StreakBonus(streak int) int64 {
	switch {
	case streak >= 21:
		return 100
	case streak >= 7:
		return 10
	case streak >= 3:
		return 5
	default:
		return 0
	}
}

// NextStreak continues, keeps or restarts a burn streak for an FP-earning
// action on today. changed is false when today already counted.
func NextStreak(lastFPDate *domain.LocalDate, today domain.LocalDate, streak int) (next int, changed bool) {
	if lastFPDate == nil || lastFPDate.IsZero() {
		return 1, true
	}
	gap := lastFPDate.DaysUntil(today)
	switch {
	case gap <= 0:
		// Same day, or a late submission for an earlier date.
		return streak, false
	case gap == 1:
		return streak + 1, true
	default:
		return 1, true
	}
}

// DecayedStreak is the streak to display on today: a missed day resets it.
func DecayedStreak(lastFPDate *domain.LocalDate, today domain.LocalDate, streak int) int {
	if lastFPDate == nil || lastFPDate.IsZero() {
		return 0
	}
	if lastFPDate.DaysUntil(today) > 1 {
		return 0
	}
	return streak
}

// HealthScore is the weighted category average rounded to one decimal.
// Categories missing from weights use DefaultCategoryWeight.
func HealthScore(categoryScores map[string]float64, weights map[string]float64) float64 {
	cats := make([]string, 0, len(categoryScores))
	for c := range categoryScores {
		cats = append(cats, c)
	}
	// Fixed summation order keeps the float result reproducible.
	sort.Strings(cats)

	var sum float64
	for _, c := range cats {
		w, ok := weights[c]
		if !ok {
			w = DefaultCategoryWeight
		}
		sum += categoryScores[c] * w
	}
	return math.Round(sum*10) / 10
}
