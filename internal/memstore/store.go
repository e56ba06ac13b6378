// Package memstore is an in-process authoritative store. It applies the same
// settlement rules as the Postgres ledger and serialises every call behind
// one mutex, which stands in for the ledger's row lock.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
)

// Store is a mutex-guarded in-memory implementation of authority.Full.
type Store struct {
	rules *settlement.Rules
	clock clock.Clock
	loc   *time.Location

	mu          sync.Mutex
	players     map[uuid.UUID]*domain.Player
	challenges  map[uuid.UUID]*domain.ChallengeInstance
	customs     map[uuid.UUID]*domain.CustomChallengeInstance
	quests      map[uuid.UUID]*domain.QuestInstance
	records     map[uuid.UUID][]domain.CompletionRecord
	windows     map[string]bool
	corrections map[uuid.UUID]int64
	outbox      []domain.OutboxDraft
}

// New creates an empty store. loc is the zone used to decide "today" when
// building read models; nil means UTC.
func New(rules *settlement.Rules, clk clock.Clock, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		rules:       rules,
		clock:       clk,
		loc:         loc,
		players:     make(map[uuid.UUID]*domain.Player),
		challenges:  make(map[uuid.UUID]*domain.ChallengeInstance),
		customs:     make(map[uuid.UUID]*domain.CustomChallengeInstance),
		quests:      make(map[uuid.UUID]*domain.QuestInstance),
		records:     make(map[uuid.UUID][]domain.CompletionRecord),
		windows:     make(map[string]bool),
		corrections: make(map[uuid.UUID]int64),
	}
}

func windowKey(r *domain.CompletionRecord) string {
	return fmt.Sprintf("%s|%s|%s|%s", r.PlayerID, r.Kind, r.InstanceID, r.WindowKey)
}

// CreatePlayer registers a new level 1 player.
func (s *Store) CreatePlayer(_ context.Context, playerID uuid.UUID) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; ok {
		return nil, domain.ErrConflict("player " + playerID.String() + " already exists")
	}
	now := s.clock.Now()
	p := &domain.Player{ID: playerID}
	settlement.NewPlayer(p, now)
	s.players[playerID] = p
	s.outbox = append(s.outbox, domain.NewPlayerCreatedEvent(playerID, now))
	cp := *p
	return &cp, nil
}

// SubmitCompletion settles and records one completion atomically.
func (s *Store) SubmitCompletion(_ context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[req.PlayerID]
	if !ok {
		return nil, domain.ErrNotFound("player", req.PlayerID.String())
	}
	now := s.clock.Now()

	in := settlement.Input{
		Request:  req,
		Now:      now,
		Instance: s.instanceState(req.Kind, req.InstanceID),
		History:  policy.HistoryFrom(settlement.Markers(s.records[p.ID]), req.Key(), req.LocalDate),
	}
	out, err := s.rules.Settle(in)
	if err != nil {
		return nil, err
	}

	rec := settlement.Record(in, out, 0)
	if s.windows[windowKey(rec)] {
		return nil, domain.ErrConflict(fmt.Sprintf("%s already recorded for window %s", req.Key(), out.WindowKey))
	}

	rec.StreakBonus = settlement.Credit(p, out.Reward, req.LocalDate, now)
	s.advanceInstance(req.Kind, req.InstanceID, out, now)
	s.windows[windowKey(rec)] = true
	s.records[p.ID] = append(s.records[p.ID], *rec)

	res := domain.SubmitResult{
		Accepted:        true,
		Reward:          out.Reward,
		StreakBonus:     rec.StreakBonus,
		ParentCompleted: out.ParentCompleted,
		FuelPoints:      p.FuelPoints,
		BurnStreak:      p.BurnStreak,
		RecordID:        rec.ID.String(),
	}
	s.outbox = append(s.outbox, domain.NewCompletionAcceptedEvent(rec, res))
	if rec.StreakBonus > 0 {
		s.outbox = append(s.outbox, domain.NewStreakBonusEvent(p.ID, p.BurnStreak, rec.StreakBonus, now))
	}
	if out.ParentCompleted {
		if st := s.instanceState(req.Kind, req.InstanceID); st != nil {
			s.outbox = append(s.outbox, domain.NewInstanceEvent(domain.EventInstanceCompleted, *st, now))
		}
	}
	return &res, nil
}

// GetPlayerState returns the player's read model with markers and instances.
func (s *Store) GetPlayerState(_ context.Context, playerID uuid.UUID) (*domain.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	now := s.clock.Now()
	today := domain.LocalDateOf(now.In(s.loc))
	return settlement.State(p, settlement.Markers(s.records[playerID]), s.instancesFor(playerID), today, now), nil
}

// GetInstanceState returns one instance by kind and id.
func (s *Store) GetInstanceState(_ context.Context, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.instanceState(kind, instanceID)
	if st == nil {
		return nil, domain.ErrNotFound(string(kind), instanceID)
	}
	return st, nil
}

// TriggerLevelUpIfEligible raises the level to match FP, at most once per total.
func (s *Store) TriggerLevelUpIfEligible(_ context.Context, playerID uuid.UUID, currentFP int64) (*domain.LevelUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	now := s.clock.Now()
	res, from := settlement.LevelUp(p, currentFP, now)
	if res.LevelChanged {
		s.outbox = append(s.outbox, domain.NewLevelUpEvent(p.ID, from, res.NewLevel, p.FuelPoints, now))
	}
	return &res, nil
}

// StartChallenge starts a standard challenge from the catalog.
func (s *Store) StartChallenge(_ context.Context, playerID uuid.UUID, challengeID string) (*domain.InstanceState, error) {
	def, ok := s.rules.Catalog().Challenge(challengeID)
	if !ok {
		return nil, domain.ErrNotFound("challenge", challengeID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	for _, c := range s.challenges {
		if c.PlayerID == playerID && c.ChallengeID == challengeID && c.Status == domain.StatusActive {
			return nil, domain.ErrConflict("challenge " + challengeID + " is already active")
		}
	}
	now := s.clock.Now()
	c := settlement.NewChallenge(def, playerID, now)
	s.challenges[c.ID] = c
	st := c.State()
	s.outbox = append(s.outbox, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	return &st, nil
}

// StartCustomChallenge starts a player-authored challenge.
func (s *Store) StartCustomChallenge(_ context.Context, params domain.StartCustomChallengeParams) (*domain.InstanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[params.PlayerID]; !ok {
		return nil, domain.ErrNotFound("player", params.PlayerID.String())
	}
	now := s.clock.Now()
	c, err := settlement.NewCustomChallenge(params, s.rules.Catalog().CustomTier(params.DailyMinimum), now)
	if err != nil {
		return nil, err
	}
	s.customs[c.ID] = c
	st := c.State()
	s.outbox = append(s.outbox, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	return &st, nil
}

// StartQuest starts a quest from the catalog.
func (s *Store) StartQuest(_ context.Context, playerID uuid.UUID, questID string) (*domain.InstanceState, error) {
	def, ok := s.rules.Catalog().Quest(questID)
	if !ok {
		return nil, domain.ErrNotFound("quest", questID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	for _, q := range s.quests {
		if q.PlayerID == playerID && q.QuestID == questID && q.Status == domain.StatusActive {
			return nil, domain.ErrConflict("quest " + questID + " is already active")
		}
	}
	now := s.clock.Now()
	q := settlement.NewQuest(def, playerID, now)
	s.quests[q.ID] = q
	st := q.State()
	s.outbox = append(s.outbox, domain.NewInstanceEvent(domain.EventInstanceStarted, st, now))
	return &st, nil
}

// CancelInstance cancels an active challenge or custom challenge.
func (s *Store) CancelInstance(_ context.Context, playerID uuid.UUID, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.instanceState(kind, instanceID)
	if err := settlement.CheckCancel(st, playerID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	id := uuid.MustParse(instanceID)
	switch kind {
	case domain.KindStandardChallenge:
		c := s.challenges[id]
		c.Status, c.CancelledAt = domain.StatusCancelled, &now
	case domain.KindCustomChallenge:
		c := s.customs[id]
		c.Status, c.CancelledAt = domain.StatusCancelled, &now
	}
	st = s.instanceState(kind, instanceID)
	s.outbox = append(s.outbox, domain.NewInstanceEvent(domain.EventInstanceCancelled, *st, now))
	return st, nil
}

// ListBoostPool returns this week's boosts.
func (s *Store) ListBoostPool(_ context.Context, playerID uuid.UUID, today domain.LocalDate) ([]catalog.Boost, error) {
	s.mu.Lock()
	_, ok := s.players[playerID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	week := policy.PoolWeekStart(today, s.rules.ResetDay())
	return s.rules.Catalog().WeeklyBoostPool(week), nil
}

// CorrectFuelPoints applies an administrative FP correction.
func (s *Store) CorrectFuelPoints(_ context.Context, c domain.FuelPointsCorrection) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[c.PlayerID]
	if !ok {
		return nil, domain.ErrNotFound("player", c.PlayerID.String())
	}
	now := s.clock.Now()
	if err := settlement.Correct(p, c, now); err != nil {
		return nil, err
	}
	s.corrections[p.ID] += c.Delta
	s.outbox = append(s.outbox, domain.NewCorrectionEvent(c, p.FuelPoints, now))
	cp := *p
	return &cp, nil
}

// Audit replays the player's records against the player row.
func (s *Store) Audit(_ context.Context, playerID uuid.UUID) (*domain.AuditReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	return settlement.Audit(p, s.records[playerID], s.corrections[playerID]), nil
}

// Records returns a copy of the player's completion records.
func (s *Store) Records(playerID uuid.UUID) []domain.CompletionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CompletionRecord(nil), s.records[playerID]...)
}

// Outbox returns a copy of every event drafted so far.
func (s *Store) Outbox() []domain.OutboxDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxDraft(nil), s.outbox...)
}

func (s *Store) instanceState(kind domain.ActionKind, instanceID string) *domain.InstanceState {
	id, err := uuid.Parse(instanceID)
	if err != nil {
		return nil
	}
	var st domain.InstanceState
	switch kind {
	case domain.KindStandardChallenge:
		c, ok := s.challenges[id]
		if !ok {
			return nil
		}
		st = c.State()
	case domain.KindCustomChallenge:
		c, ok := s.customs[id]
		if !ok {
			return nil
		}
		st = c.State()
	case domain.KindQuestWeekly:
		q, ok := s.quests[id]
		if !ok {
			return nil
		}
		st = q.State()
		st.WeeklyProgress = append([]domain.WeeklyProgress(nil), q.WeeklyProgress...)
	default:
		return nil
	}
	return &st
}

func (s *Store) advanceInstance(kind domain.ActionKind, instanceID string, out *settlement.Outcome, now time.Time) {
	id, err := uuid.Parse(instanceID)
	if err != nil {
		return
	}
	switch kind {
	case domain.KindStandardChallenge:
		settlement.AdvanceChallenge(s.challenges[id], out, now)
	case domain.KindCustomChallenge:
		settlement.AdvanceCustomChallenge(s.customs[id], out, now)
	case domain.KindQuestWeekly:
		settlement.AdvanceQuest(s.quests[id], out, now)
	}
}

func (s *Store) instancesFor(playerID uuid.UUID) []domain.InstanceState {
	var out []domain.InstanceState
	for _, c := range s.challenges {
		if c.PlayerID == playerID {
			out = append(out, c.State())
		}
	}
	for _, c := range s.customs {
		if c.PlayerID == playerID {
			out = append(out, c.State())
		}
	}
	for _, q := range s.quests {
		if q.PlayerID == playerID {
			out = append(out, q.State())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].InstanceID < out[j].InstanceID
	})
	return out
}
