package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const playerColumns = `id, fuel_points, level, burn_streak, last_fuel_points_date, created_at, updated_at`

type playerRepo struct{}

// NewPlayerRepository returns a pgx-backed PlayerRepository.
func NewPlayerRepository() PlayerRepository {
	return &playerRepo{}
}

func (r *playerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error) {
	row := db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *playerRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	row := tx.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id)
	return scanPlayer(row)
}

func (r *playerRepo) Create(ctx context.Context, db DBTX, player *domain.Player) error {
	_, err := db.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		player.ID,
		player.FuelPoints,
		player.Level,
		player.BurnStreak,
		dateArg(player.LastFuelPointsDate),
		player.CreatedAt,
		player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", conflictOr(err, "player "+player.ID.String()+" already exists"))
	}
	return nil
}

// Save writes absolute values computed under the row lock taken by LockForUpdate.
func (r *playerRepo) Save(ctx context.Context, tx pgx.Tx, player *domain.Player) (*domain.Player, error) {
	row := tx.QueryRow(ctx, `
		UPDATE players
		SET fuel_points = $2, level = $3, burn_streak = $4, last_fuel_points_date = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+playerColumns,
		player.ID,
		player.FuelPoints,
		player.Level,
		player.BurnStreak,
		dateArg(player.LastFuelPointsDate),
		player.UpdatedAt,
	)
	return scanPlayer(row)
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	var last pgtype.Date
	err := row.Scan(&p.ID, &p.FuelPoints, &p.Level, &p.BurnStreak, &last, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	p.LastFuelPointsDate = dateValue(last)
	return &p, nil
}
