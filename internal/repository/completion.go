package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type completionRepo struct{}

// NewCompletionRepository returns a pgx-backed CompletionRepository.
func NewCompletionRepository() CompletionRepository {
	return &completionRepo{}
}

// Insert relies on uq_completion_window as the final duplicate guard.
func (r *completionRepo) Insert(ctx context.Context, db DBTX, rec *domain.CompletionRecord) error {
	ld := rec.LocalDate
	payload := rec.Payload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO completion_records
		  (id, player_id, kind, instance_key, local_date, occurred_at, window_key, reward, streak_bonus, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID,
		rec.PlayerID,
		string(rec.Kind),
		rec.InstanceID,
		dateArg(&ld),
		rec.OccurredAt,
		rec.WindowKey,
		rec.Reward,
		rec.StreakBonus,
		payload,
	)
	if err != nil {
		msg := fmt.Sprintf("%s already recorded for window %s", rec.Key(), rec.WindowKey)
		return fmt.Errorf("insert completion: %w", conflictOr(err, msg))
	}
	return nil
}

func (r *completionRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.CompletionRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT id, player_id, kind, instance_key, local_date, occurred_at, window_key, reward, streak_bonus, payload
		FROM completion_records
		WHERE player_id = $1
		ORDER BY occurred_at ASC, id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletionRecord
	for rows.Next() {
		var rec domain.CompletionRecord
		var kind string
		var ld pgtype.Date
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &kind, &rec.InstanceID, &ld, &rec.OccurredAt,
			&rec.WindowKey, &rec.Reward, &rec.StreakBonus, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		rec.Kind = domain.ActionKind(kind)
		if d := dateValue(ld); d != nil {
			rec.LocalDate = *d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
