package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const customColumns = `id, player_id, title, actions, daily_minimum, target_completions, completion_count,
	daily_reward, completion_reward, status, started_at, completed_at, cancelled_at`

type customChallengeRepo struct{}

// NewCustomChallengeRepository returns a pgx-backed CustomChallengeRepository.
func NewCustomChallengeRepository() CustomChallengeRepository {
	return &customChallengeRepo{}
}

func (r *customChallengeRepo) Insert(ctx context.Context, db DBTX, c *domain.CustomChallengeInstance) error {
	_, err := db.Exec(ctx, `
		INSERT INTO custom_challenge_instances (`+customColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.PlayerID, c.Title, c.Actions, c.DailyMinimum, c.TargetCompletions, c.CompletionCount,
		c.DailyReward, c.CompletionReward, string(c.Status), c.StartedAt, c.CompletedAt, c.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("insert custom challenge: %w", err)
	}
	return nil
}

func (r *customChallengeRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CustomChallengeInstance, error) {
	row := tx.QueryRow(ctx, `SELECT `+customColumns+` FROM custom_challenge_instances WHERE id = $1 FOR UPDATE`, id)
	return scanCustomChallenge(row)
}

func (r *customChallengeRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CustomChallengeInstance, error) {
	row := db.QueryRow(ctx, `SELECT `+customColumns+` FROM custom_challenge_instances WHERE id = $1`, id)
	return scanCustomChallenge(row)
}

func (r *customChallengeRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.CustomChallengeInstance) error {
	_, err := tx.Exec(ctx, `
		UPDATE custom_challenge_instances
		SET status = $2, completion_count = $3, completed_at = $4, cancelled_at = $5
		WHERE id = $1`,
		c.ID, string(c.Status), c.CompletionCount, c.CompletedAt, c.CancelledAt)
	if err != nil {
		return fmt.Errorf("update custom challenge: %w", err)
	}
	return nil
}

func (r *customChallengeRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.CustomChallengeInstance, error) {
	rows, err := db.Query(ctx, `
		SELECT `+customColumns+` FROM custom_challenge_instances
		WHERE player_id = $1 ORDER BY started_at ASC, id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list custom challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.CustomChallengeInstance
	for rows.Next() {
		c, err := scanCustomChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCustomChallenge(row pgx.Row) (*domain.CustomChallengeInstance, error) {
	var c domain.CustomChallengeInstance
	var status string
	err := row.Scan(&c.ID, &c.PlayerID, &c.Title, &c.Actions, &c.DailyMinimum, &c.TargetCompletions, &c.CompletionCount,
		&c.DailyReward, &c.CompletionReward, &status, &c.StartedAt, &c.CompletedAt, &c.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan custom challenge: %w", err)
	}
	c.Status = domain.InstanceStatus(status)
	return &c, nil
}
