package settlement

import (
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/progression"
)

// NewPlayer returns a fresh level 1 player with no FP.
func NewPlayer(p *domain.Player, now time.Time) {
	p.FuelPoints = 0
	p.Level = 1
	p.BurnStreak = 0
	p.LastFuelPointsDate = nil
	p.CreatedAt = now
	p.UpdatedAt = now
}

// Credit adds an accepted reward to p and advances the burn streak.
// When the streak changes, the tier bonus for the new value is credited too
// and returned. Level is left alone; see LevelUp.
func Credit(p *domain.Player, reward int64, today domain.LocalDate, now time.Time) (streakBonus int64) {
	p.FuelPoints += reward
	next, changed := progression.NextStreak(p.LastFuelPointsDate, today, p.BurnStreak)
	if changed {
		p.BurnStreak = next
		streakBonus = progression.StreakBonus(next)
		p.FuelPoints += streakBonus
		d := today
		p.LastFuelPointsDate = &d
	}
	p.UpdatedAt = now
	return streakBonus
}

// LevelUp raises p's level to match its lifetime FP. The client's FP total
// caps the evaluation so a stale client never advances past what it has
// seen. Calling again with the same total is a no-op.
func LevelUp(p *domain.Player, clientFP int64, now time.Time) (domain.LevelUpResult, int) {
	from := p.Level
	target := progression.LevelForFP(min(clientFP, p.FuelPoints))
	if target <= p.Level {
		return domain.LevelUpResult{LevelChanged: false, NewLevel: p.Level}, from
	}
	p.Level = target
	p.UpdatedAt = now
	return domain.LevelUpResult{LevelChanged: true, NewLevel: target}, from
}

// Correct applies an administrative FP correction. Level is recomputed from
// the corrected total since a correction may move it down.
func Correct(p *domain.Player, c domain.FuelPointsCorrection, now time.Time) error {
	if err := domain.ValidateCorrection(c); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if p.FuelPoints+c.Delta < 0 {
		return domain.ErrValidation(fmt.Sprintf("correction of %d would make fuel points negative", c.Delta))
	}
	p.FuelPoints += c.Delta
	p.Level = progression.LevelForFP(p.FuelPoints)
	p.UpdatedAt = now
	return nil
}

// State builds the read model for p as of now in the given local day.
func State(p *domain.Player, markers []domain.WindowMarker, instances []domain.InstanceState, today domain.LocalDate, now time.Time) *domain.PlayerState {
	if markers == nil {
		markers = []domain.WindowMarker{}
	}
	if instances == nil {
		instances = []domain.InstanceState{}
	}
	return &domain.PlayerState{
		PlayerID:                p.ID,
		FuelPoints:              p.FuelPoints,
		Level:                   p.Level,
		BurnStreak:              progression.DecayedStreak(p.LastFuelPointsDate, today, p.BurnStreak),
		DaysSinceLastFuelPoints: p.DaysSinceLastFuelPoints(today),
		Markers:                 markers,
		Instances:               instances,
		AsOf:                    now,
	}
}
