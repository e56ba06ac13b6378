package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed authoritative store. Each write runs in one
// transaction: lock the player row, check the window, post.
type Store struct {
	pool   *pgxpool.Pool
	engine *Engine
	rules  *settlement.Rules
	clock  clock.Clock
	loc    *time.Location
}

// NewStore creates a Store. loc decides "today" for read models; nil means UTC.
func NewStore(pool *pgxpool.Pool, engine *Engine, rules *settlement.Rules, clk clock.Clock, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{pool: pool, engine: engine, rules: rules, clock: clk, loc: loc}
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// CreatePlayer registers a new level 1 player.
func (s *Store) CreatePlayer(ctx context.Context, playerID uuid.UUID) (*domain.Player, error) {
	now := s.clock.Now()
	p := &domain.Player{ID: playerID}
	settlement.NewPlayer(p, now)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.engine.players.Create(ctx, tx, p); err != nil {
			return err
		}
		return s.engine.insertEvents(ctx, tx, domain.NewPlayerCreatedEvent(playerID, now))
	})
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return p, nil
}

// SubmitCompletion settles and records one completion.
// Pattern: Lock → Window check → PostCompletion
func (s *Store) SubmitCompletion(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	var res *domain.SubmitResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock
		player, err := s.engine.LockPlayerForUpdate(ctx, tx, req.PlayerID)
		if err != nil {
			return err
		}
		inst, err := s.engine.lockInstance(ctx, tx, req.Kind, req.InstanceID)
		if err != nil {
			return err
		}

		// Window check against the records committed so far
		records, err := s.engine.completions.ListByPlayer(ctx, tx, player.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		in := settlement.Input{
			Request:  req,
			Now:      now,
			Instance: inst.state(),
			History:  policy.HistoryFrom(settlement.Markers(records), req.Key(), req.LocalDate),
		}
		out, err := s.rules.Settle(in)
		if err != nil {
			return err
		}

		// Post
		rec := settlement.Record(in, out, 0)
		rec.StreakBonus = settlement.Credit(player, out.Reward, req.LocalDate, now)
		res, err = s.engine.PostCompletion(ctx, tx, player, rec, out, inst, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit completion: %w", err)
	}
	return res, nil
}

// GetPlayerState returns the player's read model with markers and instances.
func (s *Store) GetPlayerState(ctx context.Context, playerID uuid.UUID) (*domain.PlayerState, error) {
	p, err := s.engine.players.FindByID(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	records, err := s.engine.completions.ListByPlayer(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}
	instances, err := s.instancesFor(ctx, playerID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	today := domain.LocalDateOf(now.In(s.loc))
	return settlement.State(p, settlement.Markers(records), instances, today, now), nil
}

// GetInstanceState returns one instance by kind and id.
func (s *Store) GetInstanceState(ctx context.Context, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	id, err := uuid.Parse(instanceID)
	if err != nil {
		return nil, domain.ErrNotFound(string(kind), instanceID)
	}
	var st *domain.InstanceState
	switch kind {
	case domain.KindStandardChallenge:
		c, err := s.engine.challenges.FindByID(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			v := c.State()
			st = &v
		}
	case domain.KindCustomChallenge:
		c, err := s.engine.customs.FindByID(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			v := c.State()
			st = &v
		}
	case domain.KindQuestWeekly:
		q, err := s.engine.quests.FindByID(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		if q != nil {
			v := q.State()
			st = &v
		}
	}
	if st == nil {
		return nil, domain.ErrNotFound(string(kind), instanceID)
	}
	return st, nil
}

// TriggerLevelUpIfEligible raises the level to match FP, at most once per total.
func (s *Store) TriggerLevelUpIfEligible(ctx context.Context, playerID uuid.UUID, currentFP int64) (*domain.LevelUpResult, error) {
	var res domain.LevelUpResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		p, err := s.engine.LockPlayerForUpdate(ctx, tx, playerID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		var from int
		res, from = settlement.LevelUp(p, currentFP, now)
		if !res.LevelChanged {
			return nil
		}
		if _, err := s.engine.players.Save(ctx, tx, p); err != nil {
			return err
		}
		if err := s.engine.levelUps.Insert(ctx, tx, p.ID, from, res.NewLevel, p.FuelPoints); err != nil {
			return err
		}
		return s.engine.insertEvents(ctx, tx, domain.NewLevelUpEvent(p.ID, from, res.NewLevel, p.FuelPoints, now))
	})
	if err != nil {
		return nil, fmt.Errorf("level up: %w", err)
	}
	return &res, nil
}

// StartChallenge starts a standard challenge from the catalog.
func (s *Store) StartChallenge(ctx context.Context, playerID uuid.UUID, challengeID string) (*domain.InstanceState, error) {
	def, ok := s.rules.Catalog().Challenge(challengeID)
	if !ok {
		return nil, domain.ErrNotFound("challenge", challengeID)
	}
	var st domain.InstanceState
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.engine.LockPlayerForUpdate(ctx, tx, playerID); err != nil {
			return err
		}
		now := s.clock.Now()
		c := settlement.NewChallenge(def, playerID, now)
		if err := s.engine.challenges.Insert(ctx, tx, c); err != nil {
			return err
		}
		st = c.State()
		return s.engine.insertEvents(ctx, tx, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	})
	if err != nil {
		return nil, fmt.Errorf("start challenge: %w", err)
	}
	return &st, nil
}

// StartCustomChallenge starts a player-authored challenge.
func (s *Store) StartCustomChallenge(ctx context.Context, params domain.StartCustomChallengeParams) (*domain.InstanceState, error) {
	var st domain.InstanceState
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.engine.LockPlayerForUpdate(ctx, tx, params.PlayerID); err != nil {
			return err
		}
		now := s.clock.Now()
		c, err := settlement.NewCustomChallenge(params, s.rules.Catalog().CustomTier(params.DailyMinimum), now)
		if err != nil {
			return err
		}
		if err := s.engine.customs.Insert(ctx, tx, c); err != nil {
			return err
		}
		st = c.State()
		return s.engine.insertEvents(ctx, tx, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	})
	if err != nil {
		return nil, fmt.Errorf("start custom challenge: %w", err)
	}
	return &st, nil
}

// StartQuest starts a quest from the catalog.
func (s *Store) StartQuest(ctx context.Context, playerID uuid.UUID, questID string) (*domain.InstanceState, error) {
	def, ok := s.rules.Catalog().Quest(questID)
	if !ok {
		return nil, domain.ErrNotFound("quest", questID)
	}
	var st domain.InstanceState
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.engine.LockPlayerForUpdate(ctx, tx, playerID); err != nil {
			return err
		}
		now := s.clock.Now()
		q := settlement.NewQuest(def, playerID, now)
		if err := s.engine.quests.Insert(ctx, tx, q); err != nil {
			return err
		}
		st = q.State()
		return s.engine.insertEvents(ctx, tx, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	})
	if err != nil {
		return nil, fmt.Errorf("start quest: %w", err)
	}
	return &st, nil
}

// CancelInstance cancels an active challenge or custom challenge.
func (s *Store) CancelInstance(ctx context.Context, playerID uuid.UUID, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	var st *domain.InstanceState
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.engine.LockPlayerForUpdate(ctx, tx, playerID); err != nil {
			return err
		}
		inst, err := s.engine.lockInstance(ctx, tx, kind, instanceID)
		if err != nil {
			return err
		}
		if err := settlement.CheckCancel(inst.state(), playerID); err != nil {
			return err
		}
		now := s.clock.Now()
		switch {
		case inst.challenge != nil:
			inst.challenge.Status, inst.challenge.CancelledAt = domain.StatusCancelled, &now
			err = s.engine.challenges.Update(ctx, tx, inst.challenge)
		case inst.custom != nil:
			inst.custom.Status, inst.custom.CancelledAt = domain.StatusCancelled, &now
			err = s.engine.customs.Update(ctx, tx, inst.custom)
		}
		if err != nil {
			return err
		}
		st = inst.state()
		return s.engine.insertEvents(ctx, tx, domain.NewInstanceEvent(domain.EventInstanceCancelled, *st, now))
	})
	if err != nil {
		return nil, fmt.Errorf("cancel instance: %w", err)
	}
	return st, nil
}

// ListBoostPool returns this week's boosts.
func (s *Store) ListBoostPool(ctx context.Context, playerID uuid.UUID, today domain.LocalDate) ([]catalog.Boost, error) {
	p, err := s.engine.players.FindByID(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	week := policy.PoolWeekStart(today, s.rules.ResetDay())
	return s.rules.Catalog().WeeklyBoostPool(week), nil
}

// CorrectFuelPoints applies an administrative FP correction.
func (s *Store) CorrectFuelPoints(ctx context.Context, c domain.FuelPointsCorrection) (*domain.Player, error) {
	var updated *domain.Player
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		p, err := s.engine.LockPlayerForUpdate(ctx, tx, c.PlayerID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := settlement.Correct(p, c, now); err != nil {
			return err
		}
		if updated, err = s.engine.players.Save(ctx, tx, p); err != nil {
			return err
		}
		if err := s.engine.corrections.Insert(ctx, tx, c); err != nil {
			return err
		}
		return s.engine.insertEvents(ctx, tx, domain.NewCorrectionEvent(c, p.FuelPoints, now))
	})
	if err != nil {
		return nil, fmt.Errorf("correct fuel points: %w", err)
	}
	return updated, nil
}

func (s *Store) instancesFor(ctx context.Context, playerID uuid.UUID) ([]domain.InstanceState, error) {
	challenges, err := s.engine.challenges.ListByPlayer(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}
	customs, err := s.engine.customs.ListByPlayer(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}
	quests, err := s.engine.quests.ListByPlayer(ctx, s.pool, playerID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.InstanceState, 0, len(challenges)+len(customs)+len(quests))
	for i := range challenges {
		out = append(out, challenges[i].State())
	}
	for i := range customs {
		out = append(out, customs[i].State())
	}
	for i := range quests {
		out = append(out, quests[i].State())
	}
	return out, nil
}
