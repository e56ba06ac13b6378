package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const challengeColumns = `id, challenge_id, player_id, title, actions, status, verification_count,
	verifications_required, daily_reward, completion_bonus, started_at, completed_at, cancelled_at`

type challengeRepo struct{}

// NewChallengeRepository returns a pgx-backed ChallengeRepository.
func NewChallengeRepository() ChallengeRepository {
	return &challengeRepo{}
}

func (r *challengeRepo) Insert(ctx context.Context, db DBTX, c *domain.ChallengeInstance) error {
	_, err := db.Exec(ctx, `
		INSERT INTO challenge_instances (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.ChallengeID, c.PlayerID, c.Title, c.Actions, string(c.Status), c.VerificationCount,
		c.VerificationsRequired, c.DailyReward, c.CompletionBonus, c.StartedAt, c.CompletedAt, c.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", conflictOr(err, "challenge "+c.ChallengeID+" is already active"))
	}
	return nil
}

func (r *challengeRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ChallengeInstance, error) {
	row := tx.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenge_instances WHERE id = $1 FOR UPDATE`, id)
	return scanChallenge(row)
}

func (r *challengeRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ChallengeInstance, error) {
	row := db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenge_instances WHERE id = $1`, id)
	return scanChallenge(row)
}

func (r *challengeRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.ChallengeInstance) error {
	_, err := tx.Exec(ctx, `
		UPDATE challenge_instances
		SET status = $2, verification_count = $3, completed_at = $4, cancelled_at = $5
		WHERE id = $1`,
		c.ID, string(c.Status), c.VerificationCount, c.CompletedAt, c.CancelledAt)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	return nil
}

func (r *challengeRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.ChallengeInstance, error) {
	rows, err := db.Query(ctx, `
		SELECT `+challengeColumns+` FROM challenge_instances
		WHERE player_id = $1 ORDER BY started_at ASC, id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.ChallengeInstance
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanChallenge(row pgx.Row) (*domain.ChallengeInstance, error) {
	var c domain.ChallengeInstance
	var status string
	err := row.Scan(&c.ID, &c.ChallengeID, &c.PlayerID, &c.Title, &c.Actions, &status, &c.VerificationCount,
		&c.VerificationsRequired, &c.DailyReward, &c.CompletionBonus, &c.StartedAt, &c.CompletedAt, &c.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}
	c.Status = domain.InstanceStatus(status)
	return &c, nil
}
