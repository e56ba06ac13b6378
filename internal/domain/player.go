package domain

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a players row.
// FuelPoints is the lifetime total; it only decreases through an
// administrative correction.
type Player struct {
	ID                 uuid.UUID  `json:"id"`
	FuelPoints         int64      `json:"fuel_points"`
	Level              int        `json:"level"`
	BurnStreak         int        `json:"burn_streak"`
	LastFuelPointsDate *LocalDate `json:"last_fuel_points_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DaysSinceLastFuelPoints counts calendar days from the last FP-earning day
// to today. Zero when the player has never earned FP.
func (p *Player) DaysSinceLastFuelPoints(today LocalDate) int {
	if p.LastFuelPointsDate == nil {
		return 0
	}
	d := p.LastFuelPointsDate.DaysUntil(today)
	if d < 0 {
		return 0
	}
	return d
}

// WindowMarker is the last accepted occurrence for one gating scope.
// CountOnLastDate is the number of acceptances on LastLocalDate; for the
// aggregate boost marker (InstanceID "") it drives the per-day cap.
type WindowMarker struct {
	Kind            ActionKind `json:"kind"`
	InstanceID      string     `json:"instance_id,omitempty"`
	LastLocalDate   LocalDate  `json:"last_local_date"`
	LastAt          time.Time  `json:"last_at"`
	CountOnLastDate int        `json:"count_on_last_date"`
}

// Key returns the marker's gating scope.
func (m WindowMarker) Key() InstanceKey {
	return InstanceKey{Kind: m.Kind, InstanceID: m.InstanceID}
}

// PlayerState is the authoritative read model returned by getPlayerState.
type PlayerState struct {
	PlayerID                uuid.UUID       `json:"player_id"`
	FuelPoints              int64           `json:"fuel_points"`
	Level                   int             `json:"level"`
	BurnStreak              int             `json:"burn_streak"`
	DaysSinceLastFuelPoints int             `json:"days_since_last_fuel_points"`
	Markers                 []WindowMarker  `json:"markers"`
	Instances               []InstanceState `json:"instances"`
	AsOf                    time.Time       `json:"as_of"`
}

// FuelPointsCorrection is an administrative FP adjustment.
type FuelPointsCorrection struct {
	PlayerID uuid.UUID `json:"player_id"`
	Delta    int64     `json:"delta"`
	Reason   string    `json:"reason"`
}
