// Package authority defines the authoritative store the completion engine
// talks to. Implementations: ledger (Postgres), memstore (in-process) and
// client (HTTP).
package authority

import (
	"context"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// Store is the authoritative source of player progression.
//
// SubmitCompletion is atomic and idempotent per gating window: a second
// submission for a window that already holds a record fails with a CONFLICT
// AppError and credits nothing. TriggerLevelUpIfEligible is a no-op when the
// level already matches the FP total.
type Store interface {
	SubmitCompletion(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error)
	GetPlayerState(ctx context.Context, playerID uuid.UUID) (*domain.PlayerState, error)
	GetInstanceState(ctx context.Context, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error)
	TriggerLevelUpIfEligible(ctx context.Context, playerID uuid.UUID, currentFP int64) (*domain.LevelUpResult, error)
}

// Lifecycle covers the instance operations a player drives outside of
// completions.
type Lifecycle interface {
	StartChallenge(ctx context.Context, playerID uuid.UUID, challengeID string) (*domain.InstanceState, error)
	StartCustomChallenge(ctx context.Context, params domain.StartCustomChallengeParams) (*domain.InstanceState, error)
	StartQuest(ctx context.Context, playerID uuid.UUID, questID string) (*domain.InstanceState, error)
	CancelInstance(ctx context.Context, playerID uuid.UUID, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error)
	ListBoostPool(ctx context.Context, playerID uuid.UUID, today domain.LocalDate) ([]catalog.Boost, error)
}

// Admin covers operator-only operations.
type Admin interface {
	CreatePlayer(ctx context.Context, playerID uuid.UUID) (*domain.Player, error)
	CorrectFuelPoints(ctx context.Context, c domain.FuelPointsCorrection) (*domain.Player, error)
	Audit(ctx context.Context, playerID uuid.UUID) (*domain.AuditReport, error)
}

// Full is implemented by server-side stores.
type Full interface {
	Store
	Lifecycle
	Admin
}
