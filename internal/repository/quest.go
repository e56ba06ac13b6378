package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const questColumns = `id, quest_id, player_id, title, status, weekly_reward, completion_bonus,
	weekly_progress, started_at, completed_at`

type questRepo struct{}

// NewQuestRepository returns a pgx-backed QuestRepository.
func NewQuestRepository() QuestRepository {
	return &questRepo{}
}

func (r *questRepo) Insert(ctx context.Context, db DBTX, q *domain.QuestInstance) error {
	progress, err := marshalProgress(q.WeeklyProgress)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO quest_instances (`+questColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		q.ID, q.QuestID, q.PlayerID, q.Title, string(q.Status), q.WeeklyReward, q.CompletionBonus,
		progress, q.StartedAt, q.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quest: %w", conflictOr(err, "quest "+q.QuestID+" is already active"))
	}
	return nil
}

func (r *questRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.QuestInstance, error) {
	row := tx.QueryRow(ctx, `SELECT `+questColumns+` FROM quest_instances WHERE id = $1 FOR UPDATE`, id)
	return scanQuest(row)
}

func (r *questRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.QuestInstance, error) {
	row := db.QueryRow(ctx, `SELECT `+questColumns+` FROM quest_instances WHERE id = $1`, id)
	return scanQuest(row)
}

func (r *questRepo) Update(ctx context.Context, tx pgx.Tx, q *domain.QuestInstance) error {
	progress, err := marshalProgress(q.WeeklyProgress)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE quest_instances
		SET status = $2, weekly_progress = $3, completed_at = $4
		WHERE id = $1`,
		q.ID, string(q.Status), progress, q.CompletedAt)
	if err != nil {
		return fmt.Errorf("update quest: %w", err)
	}
	return nil
}

func (r *questRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.QuestInstance, error) {
	rows, err := db.Query(ctx, `
		SELECT `+questColumns+` FROM quest_instances
		WHERE player_id = $1 ORDER BY started_at ASC, id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestInstance
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func marshalProgress(p []domain.WeeklyProgress) ([]byte, error) {
	if p == nil {
		p = []domain.WeeklyProgress{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal weekly progress: %w", err)
	}
	return data, nil
}

func scanQuest(row pgx.Row) (*domain.QuestInstance, error) {
	var q domain.QuestInstance
	var status string
	var progress []byte
	err := row.Scan(&q.ID, &q.QuestID, &q.PlayerID, &q.Title, &status, &q.WeeklyReward, &q.CompletionBonus,
		&progress, &q.StartedAt, &q.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan quest: %w", err)
	}
	q.Status = domain.InstanceStatus(status)
	if err := json.Unmarshal(progress, &q.WeeklyProgress); err != nil {
		return nil, fmt.Errorf("decode weekly progress: %w", err)
	}
	return &q, nil
}
