package ledger

import (
	"context"
	"fmt"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Audit replays a player's completion records against the stored player row.
// The reads share one REPEATABLE READ snapshot so a concurrent completion
// cannot split them.
func (s *Store) Audit(ctx context.Context, playerID uuid.UUID) (*domain.AuditReport, error) {
	var report *domain.AuditReport
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		p, err := s.engine.players.FindByID(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound("player", playerID.String())
		}
		records, err := s.engine.completions.ListByPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		corrections, err := s.engine.corrections.SumByPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		report = settlement.Audit(p, records, corrections)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return report, nil
}
