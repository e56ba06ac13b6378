package repository

import (
	"context"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PlayerRepository provides access to players.
type PlayerRepository interface {
	// FindByID returns a player by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the player.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error)

	// Create inserts a new player. A duplicate ID is a CONFLICT.
	Create(ctx context.Context, db DBTX, player *domain.Player) error

	// Save writes the progression columns of a locked player.
	Save(ctx context.Context, tx pgx.Tx, player *domain.Player) (*domain.Player, error)
}

// CompletionRepository provides access to completion_records.
type CompletionRepository interface {
	// Insert appends a record. A second record for the same
	// (player, kind, instance, window) is a CONFLICT.
	Insert(ctx context.Context, db DBTX, rec *domain.CompletionRecord) error

	// ListByPlayer returns the player's records in occurrence order.
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.CompletionRecord, error)
}

// ChallengeRepository provides access to challenge_instances.
type ChallengeRepository interface {
	Insert(ctx context.Context, db DBTX, c *domain.ChallengeInstance) error
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ChallengeInstance, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ChallengeInstance, error)
	Update(ctx context.Context, tx pgx.Tx, c *domain.ChallengeInstance) error
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.ChallengeInstance, error)
}

// CustomChallengeRepository provides access to custom_challenge_instances.
type CustomChallengeRepository interface {
	Insert(ctx context.Context, db DBTX, c *domain.CustomChallengeInstance) error
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CustomChallengeInstance, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CustomChallengeInstance, error)
	Update(ctx context.Context, tx pgx.Tx, c *domain.CustomChallengeInstance) error
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.CustomChallengeInstance, error)
}

// QuestRepository provides access to quest_instances.
type QuestRepository interface {
	Insert(ctx context.Context, db DBTX, q *domain.QuestInstance) error
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.QuestInstance, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.QuestInstance, error)
	Update(ctx context.Context, tx pgx.Tx, q *domain.QuestInstance) error
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.QuestInstance, error)
}

// CorrectionRepository provides access to fuel_point_corrections.
type CorrectionRepository interface {
	Insert(ctx context.Context, db DBTX, c domain.FuelPointsCorrection) error

	// SumByPlayer returns the net of every correction for the player.
	SumByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) (int64, error)
}

// LevelUpRepository provides access to level_ups.
type LevelUpRepository interface {
	Insert(ctx context.Context, db DBTX, playerID uuid.UUID, from, to int, fuelPoints int64) error
}

// OutboxRecord is a stored outbox row with its sequence number.
type OutboxRecord struct {
	Seq int64
	domain.OutboxDraft
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the ledger entry).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events in sequence order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]OutboxRecord, error)

	// MarkPublished stamps events as published.
	MarkPublished(ctx context.Context, db DBTX, seqs []int64) error
}
