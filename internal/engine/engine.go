// Package engine runs time-gated completions for one player session:
// validate locally, apply optimistically, submit once to the authoritative
// store, then confirm, absorb a conflict, or roll back.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fuelpoints/platform/internal/authority"
	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/guard"
	"github.com/google/uuid"
)

const (
	DefaultResyncDelay      = 300 * time.Millisecond
	DefaultBreakerThreshold = 3
	DefaultBreakerReset     = 30 * time.Second

	submitBreakerKey = "submit"
)

// Config holds per-session settings. Zero values fall back to defaults.
type Config struct {
	PlayerID         uuid.UUID
	Location         *time.Location
	ResyncDelay      time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Engine is the client side of the completion workflow for one player.
type Engine struct {
	store    authority.Store
	clock    clock.Clock
	logger   *slog.Logger
	playerID uuid.UUID
	loc      *time.Location

	state    *ClientState
	bus      *Bus
	resync   *Resyncer
	inflight *guard.InFlightGuard
	breaker  *guard.CircuitBreaker

	closeOnce sync.Once
}

// New creates an engine. Call Resync before the first attempt so the local
// mirror knows the player's instances and windows.
func New(store authority.Store, clk clock.Clock, logger *slog.Logger, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ResyncDelay <= 0 {
		cfg.ResyncDelay = DefaultResyncDelay
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = DefaultBreakerThreshold
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = DefaultBreakerReset
	}
	logger = logger.With("player_id", cfg.PlayerID)

	state := NewClientState(cfg.PlayerID)
	bus := NewBus()
	return &Engine{
		store:    store,
		clock:    clk,
		logger:   logger,
		playerID: cfg.PlayerID,
		loc:      cfg.Location,
		state:    state,
		bus:      bus,
		resync:   NewResyncer(store, state, bus, cfg.PlayerID, cfg.ResyncDelay, logger),
		inflight: guard.NewInFlightGuard(),
		breaker:  guard.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset, clk),
	}
}

// PlayerID returns the session's player.
func (e *Engine) PlayerID() uuid.UUID { return e.playerID }

// Today is the player's local calendar date.
func (e *Engine) Today() domain.LocalDate {
	return domain.LocalDateOf(e.clock.Now().In(e.loc))
}

// Subscribe registers l on the update bus.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	return e.bus.Subscribe(l)
}

// OnceReward calls fn with the FP earned by the next confirmed completion,
// then unsubscribes.
func (e *Engine) OnceReward(fn func(Event)) (cancel func()) {
	var (
		once  sync.Once
		unsub func()
		ready = make(chan struct{})
	)
	unsub = e.bus.Subscribe(func(ev Event) {
		if ev.Type != EventCompleted {
			return
		}
		once.Do(func() {
			<-ready
			unsub()
			fn(ev)
		})
	})
	close(ready)
	return unsub
}

// LocalState returns the current optimistic mirror.
func (e *Engine) LocalState() Snapshot {
	return e.state.Snapshot()
}

// Resync refreshes the mirror from the store now, bypassing the debounce.
func (e *Engine) Resync(ctx context.Context) error {
	return e.resync.Flush(ctx)
}

// SetBoostPool tells the engine this week's boosts so boost rewards can be
// shown before confirmation.
func (e *Engine) SetBoostPool(pool []catalog.Boost) {
	e.state.SetBoostPool(pool)
}

// NotifyRemote signals that authoritative state changed elsewhere.
func (e *Engine) NotifyRemote() {
	e.bus.Publish(Event{Type: EventRemoteChange})
}

// Flushes returns how many resyncs have completed.
func (e *Engine) Flushes() int64 { return e.resync.Flushes() }

// Close stops the debounced resync.
func (e *Engine) Close() {
	e.closeOnce.Do(e.resync.Stop)
}

// AttemptCompletion runs one attempt through the workflow. A conflict is not
// an error: the attempt resolves with zero reward.
func (e *Engine) AttemptCompletion(ctx context.Context, kind domain.ActionKind, instanceID string, sel domain.Selection) (*Attempt, error) {
	req := domain.SubmitRequest{
		PlayerID:   e.playerID,
		Kind:       kind,
		InstanceID: instanceID,
		LocalDate:  e.Today(),
		Selection:  sel,
	}
	key := req.Key()
	attempt := &Attempt{Key: key}
	attempt.enter(PhaseIdle)
	log := e.logger.With("kind", kind, "instance_id", instanceID)

	if g := e.inflight.Acquire(key.String()); !g.Allowed {
		log.Debug("attempt refused", "reason", g.Reason)
		return attempt, domain.ErrInFlight(key.String())
	}
	defer e.inflight.Release(key.String())

	attempt.enter(PhaseValidating)
	log.Debug("attempt transition", "phase", PhaseValidating)
	m, err := e.state.Begin(req, e.clock.Now(), func() error {
		if g := e.breaker.Check(submitBreakerKey); !g.Allowed {
			return domain.ErrTransient(g.Reason, nil)
		}
		return nil
	})
	if err != nil {
		log.Debug("attempt rejected", "error", err)
		return attempt, err
	}
	attempt.Guess = m.Guess()
	attempt.enter(PhaseOptimisticallyApplied)
	log.Debug("attempt transition", "phase", PhaseOptimisticallyApplied, "guess", m.Guess())

	attempt.enter(PhaseSubmitting)
	log.Debug("attempt transition", "phase", PhaseSubmitting)
	// A submission that reached the store must run to a terminal phase.
	res, err := e.store.SubmitCompletion(context.WithoutCancel(ctx), req)

	switch {
	case err == nil:
		e.breaker.RecordSuccess(submitBreakerKey)
		e.state.Confirm(m, res)
		attempt.Reward = res.Reward
		attempt.StreakBonus = res.StreakBonus
		attempt.ParentCompleted = res.ParentCompleted
		attempt.enter(PhaseConfirmed)
		log.Debug("attempt transition", "phase", PhaseConfirmed, "reward", res.Reward, "streak_bonus", res.StreakBonus)
		e.bus.Publish(Event{
			Type:            EventCompleted,
			Kind:            kind,
			InstanceID:      instanceID,
			FPEarned:        attempt.FPEarned(),
			ParentCompleted: res.ParentCompleted,
		})
		return attempt, nil

	case domain.IsConflict(err):
		e.breaker.RecordSuccess(submitBreakerKey)
		e.state.Absorb(m)
		attempt.Conflict = true
		attempt.enter(PhaseConflictResolved)
		log.Info("completion already recorded for window", "phase", PhaseConflictResolved)
		e.bus.Publish(Event{Type: EventConflictResolved, Kind: kind, InstanceID: instanceID})
		return attempt, nil

	case domain.IsAlreadyFinished(err):
		e.breaker.RecordSuccess(submitBreakerKey)
		e.state.Rollback(m)
		attempt.enter(PhaseRolledBack)
		log.Warn("instance already finished", "phase", PhaseRolledBack, "error", err)
		e.bus.Publish(Event{Type: EventInstanceFinished, Kind: kind, InstanceID: instanceID})
		return attempt, err

	case domain.IsTransient(err):
		e.breaker.RecordFailure(submitBreakerKey)
		e.state.Rollback(m)
		attempt.enter(PhaseRolledBack)
		log.Warn("submission failed, rolled back", "phase", PhaseRolledBack, "error", err)
		if domain.CodeOf(err) != domain.CodeTransient {
			err = domain.ErrTransient("completion submission failed", err)
		}
		return attempt, err

	default:
		e.breaker.RecordSuccess(submitBreakerKey)
		e.state.Rollback(m)
		attempt.enter(PhaseRolledBack)
		log.Warn("submission rejected, rolled back", "phase", PhaseRolledBack, "error", err)
		return attempt, err
	}
}
