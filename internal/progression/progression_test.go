package progression

import (
	"math"
	"testing"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestLevelThreshold(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{1, 20},
		{2, 28}, // round(28.28)
		{3, 40}, // round(39.99)
		{4, 57}, // round(56.55)
		{5, 80}, // round(79.96)
		{0, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelThreshold(tt.level), "level %d", tt.level)
	}
}

func TestLevelThreshold_GrowthRatio(t *testing.T) {
	for level := 1; level <= 40; level++ {
		lo, hi := LevelThreshold(level), LevelThreshold(level+1)
		ratio := float64(hi) / float64(lo)
		// Rounding error shrinks as thresholds grow; 0.5 on each side bounds it.
		tolerance := (0.5/float64(lo) + 0.5/float64(hi)) * GrowthFactor
		assert.InDelta(t, GrowthFactor, ratio, tolerance+1e-9, "level %d", level)
	}
}

func TestCumulativeThreshold(t *testing.T) {
	assert.Equal(t, int64(0), CumulativeThreshold(0))
	assert.Equal(t, int64(20), CumulativeThreshold(1))
	assert.Equal(t, int64(48), CumulativeThreshold(2))
	assert.Equal(t, int64(88), CumulativeThreshold(3))
}

func TestLevelForFP(t *testing.T) {
	tests := []struct {
		fp   int64
		want int
	}{
		{0, 1},
		{19, 1},
		{20, 2}, // level 1 threshold reached
		{47, 2},
		{48, 3},
		{88, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForFP(tt.fp), "fp %d", tt.fp)
	}
}

func TestLevelForFP_Monotonic(t *testing.T) {
	prev := LevelForFP(0)
	for fp := int64(1); fp < 5000; fp += 7 {
		got := LevelForFP(fp)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestFPIntoLevel(t *testing.T) {
	assert.Equal(t, int64(19), FPIntoLevel(19, 1))
	assert.Equal(t, int64(0), FPIntoLevel(20, 2))
	assert.Equal(t, int64(27), FPIntoLevel(47, 2))
	assert.Equal(t, int64(0), FPIntoLevel(10, 3))
}

func TestStreakBonus_Boundaries(t *testing.T) {
	tests := []struct {
		streak int
		want   int64
	}{
		{0, 0}, {2, 0},
		{3, 5}, {6, 5},
		{7, 10}, {20, 10},
		{21, 100}, {365, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StreakBonus(tt.streak), "streak %d", tt.streak)
	}
}

func TestStreakBonus_Monotonic(t *testing.T) {
	prev := StreakBonus(0)
	for s := 1; s <= 100; s++ {
		got := StreakBonus(s)
		assert.GreaterOrEqual(t, got, prev, "streak %d", s)
		prev = got
	}
}

func datePtr(s string) *domain.LocalDate {
	d := domain.LocalDate(s)
	return &d
}

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name        string
		last        *domain.LocalDate
		streak      int
		wantNext    int
		wantChanged bool
	}{
		{"first ever", nil, 0, 1, true},
		{"consecutive day", datePtr("2026-03-13"), 4, 5, true},
		{"same day", datePtr("2026-03-14"), 4, 4, false},
		{"missed a day", datePtr("2026-03-12"), 9, 1, true},
		{"late submission for past date", datePtr("2026-03-15"), 2, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changed := NextStreak(tt.last, "2026-03-14", tt.streak)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestDecayedStreak(t *testing.T) {
	assert.Equal(t, 0, DecayedStreak(nil, "2026-03-14", 5))
	assert.Equal(t, 5, DecayedStreak(datePtr("2026-03-14"), "2026-03-14", 5))
	assert.Equal(t, 5, DecayedStreak(datePtr("2026-03-13"), "2026-03-14", 5))
	assert.Equal(t, 0, DecayedStreak(datePtr("2026-03-12"), "2026-03-14", 5))
}

func TestHealthScore(t *testing.T) {
	t.Run("explicit weights", func(t *testing.T) {
		scores := map[string]float64{"sleep": 80, "nutrition": 70, "activity": 90, "stress": 60, "social": 75}
		weights := map[string]float64{"sleep": 0.3, "nutrition": 0.2, "activity": 0.2, "stress": 0.2, "social": 0.1}
		// 24 + 14 + 18 + 12 + 7.5 = 75.5
		assert.Equal(t, 75.5, HealthScore(scores, weights))
	})

	t.Run("default weight for unweighted categories", func(t *testing.T) {
		scores := map[string]float64{"sleep": 81, "nutrition": 72, "activity": 93, "stress": 64, "social": 77}
		// 0.2 * 387 = 77.4
		assert.Equal(t, 77.4, HealthScore(scores, nil))
	})

	t.Run("rounds to one decimal", func(t *testing.T) {
		scores := map[string]float64{"sleep": 83.33}
		got := HealthScore(scores, map[string]float64{"sleep": 1})
		assert.Equal(t, 83.3, got)
		assert.Equal(t, got, math.Round(got*10)/10)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0.0, HealthScore(nil, nil))
	})
}

func TestScenario_BoostTriggersSingleLevelUp(t *testing.T) {
	fp := int64(19)
	level := LevelForFP(fp)
	assert.Equal(t, 1, level)
	assert.Equal(t, int64(20), LevelThreshold(level))

	fp++ // one boost worth +1
	newLevel := LevelForFP(fp)
	assert.Equal(t, 2, newLevel)
	assert.Equal(t, int64(28), LevelThreshold(newLevel))

	// Re-evaluating the same total does not advance again.
	assert.Equal(t, newLevel, LevelForFP(fp))
}
