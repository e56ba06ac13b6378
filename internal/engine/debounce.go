package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fuelpoints/platform/internal/authority"
	"github.com/google/uuid"
)

const flushTimeout = 10 * time.Second

// Resyncer coalesces bursts of resync signals into one authoritative
// refresh. The first signal arms a timer; signals arriving before it fires
// ride along.
type Resyncer struct {
	store    authority.Store
	state    *ClientState
	bus      *Bus
	playerID uuid.UUID
	delay    time.Duration
	logger   *slog.Logger

	flushMu sync.Mutex
	timer   *time.Timer
	queued  int
	stopped bool

	runMu       sync.Mutex
	flushes     atomic.Int64
	unsubscribe func()
}

// NewResyncer subscribes to bus and refreshes state at most once per delay.
func NewResyncer(store authority.Store, state *ClientState, bus *Bus, playerID uuid.UUID, delay time.Duration, logger *slog.Logger) *Resyncer {
	r := &Resyncer{
		store:    store,
		state:    state,
		bus:      bus,
		playerID: playerID,
		delay:    delay,
		logger:   logger,
	}
	r.unsubscribe = bus.Subscribe(func(e Event) {
		if e.NeedsResync() {
			r.Schedule()
		}
	})
	return r
}

// Schedule queues a resync.
func (r *Resyncer) Schedule() {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	if r.stopped {
		return
	}
	r.queued++
	if r.timer == nil {
		r.timer = time.AfterFunc(r.delay, r.fire)
	}
}

func (r *Resyncer) fire() {
	r.flushMu.Lock()
	queued := r.queued
	r.queued = 0
	r.timer = nil
	stopped := r.stopped
	r.flushMu.Unlock()

	if queued == 0 || stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		r.logger.Warn("debounced resync failed", "player_id", r.playerID, "coalesced", queued, "error", err)
	}
}

// Flush runs one refresh now: level-up check against the local FP total,
// then a full state read that replaces the local mirror.
func (r *Resyncer) Flush(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	before := r.state.Snapshot()

	lu, err := r.store.TriggerLevelUpIfEligible(ctx, r.playerID, before.FuelPoints)
	if err != nil {
		// The state read below still refreshes everything else.
		r.logger.Warn("level-up check failed", "player_id", r.playerID, "error", err)
	}

	ps, err := r.store.GetPlayerState(ctx, r.playerID)
	if err != nil {
		return err
	}
	r.state.Reconcile(ps)
	r.flushes.Add(1)

	r.bus.Publish(Event{Type: EventResynced, Level: ps.Level})
	if (lu != nil && lu.LevelChanged) || ps.Level > before.Level {
		r.logger.Info("level up", "player_id", r.playerID, "from", before.Level, "to", ps.Level)
		r.bus.Publish(Event{Type: EventLevelUp, Level: ps.Level})
	}
	return nil
}

// Flushes returns how many refreshes have completed.
func (r *Resyncer) Flushes() int64 { return r.flushes.Load() }

// Stop unsubscribes and cancels a pending refresh.
func (r *Resyncer) Stop() {
	r.unsubscribe()

	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.queued = 0
}
