package repository

import (
	"context"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

type correctionRepo struct{}

// NewCorrectionRepository returns a pgx-backed CorrectionRepository.
func NewCorrectionRepository() CorrectionRepository {
	return &correctionRepo{}
}

func (r *correctionRepo) Insert(ctx context.Context, db DBTX, c domain.FuelPointsCorrection) error {
	_, err := db.Exec(ctx, `
		INSERT INTO fuel_point_corrections (player_id, delta, reason)
		VALUES ($1, $2, $3)`, c.PlayerID, c.Delta, c.Reason)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

func (r *correctionRepo) SumByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) (int64, error) {
	var sum int64
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta), 0)::BIGINT FROM fuel_point_corrections WHERE player_id = $1`,
		playerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum corrections: %w", err)
	}
	return sum, nil
}

type levelUpRepo struct{}

// NewLevelUpRepository returns a pgx-backed LevelUpRepository.
func NewLevelUpRepository() LevelUpRepository {
	return &levelUpRepo{}
}

func (r *levelUpRepo) Insert(ctx context.Context, db DBTX, playerID uuid.UUID, from, to int, fuelPoints int64) error {
	_, err := db.Exec(ctx, `
		INSERT INTO level_ups (player_id, from_level, to_level, fuel_points)
		VALUES ($1, $2, $3, $4)`, playerID, from, to, fuelPoints)
	if err != nil {
		return fmt.Errorf("insert level up: %w", conflictOr(err, fmt.Sprintf("level %d already reached", to)))
	}
	return nil
}
