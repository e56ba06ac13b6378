package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// DefaultStateTTL bounds how stale a cached PlayerState may be.
const DefaultStateTTL = 2 * time.Second

// StateLoader loads the authoritative read model on a miss.
type StateLoader interface {
	GetPlayerState(ctx context.Context, playerID uuid.UUID) (*domain.PlayerState, error)
}

// PlayerStates is a cache-aside projection of PlayerState. Writers in the
// same process must Invalidate after every write for the player.
type PlayerStates struct {
	store  Store
	loader StateLoader
	ttl    time.Duration
}

// NewPlayerStates creates the projection. ttl <= 0 uses DefaultStateTTL.
func NewPlayerStates(store Store, loader StateLoader, ttl time.Duration) *PlayerStates {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &PlayerStates{store: store, loader: loader, ttl: ttl}
}

func stateKey(playerID uuid.UUID) string {
	return fmt.Sprintf("projection:player_state:%s", playerID)
}

// Get returns the cached state or loads and caches it. Cache failures fall
// through to the loader.
func (p *PlayerStates) Get(ctx context.Context, playerID uuid.UUID) (*domain.PlayerState, error) {
	var cached domain.PlayerState
	err := GetJSON(ctx, p.store, stateKey(playerID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		_ = p.store.Delete(ctx, stateKey(playerID))
	}

	st, err := p.loader.GetPlayerState(ctx, playerID)
	if err != nil {
		return nil, err
	}
	_ = SetJSON(ctx, p.store, stateKey(playerID), st, p.ttl)
	return st, nil
}

// Invalidate drops the player's cached state.
func (p *PlayerStates) Invalidate(ctx context.Context, playerID uuid.UUID) error {
	return p.store.Delete(ctx, stateKey(playerID))
}
