package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/fuelpoints/platform/internal/progression"
	"github.com/google/uuid"
)

// Snapshot is a copy of the local mirror. It is safe to keep and read
// while the engine keeps running.
type Snapshot struct {
	PlayerID                uuid.UUID              `json:"player_id"`
	FuelPoints              int64                  `json:"fuel_points"`
	Level                   int                    `json:"level"`
	BurnStreak              int                    `json:"burn_streak"`
	DaysSinceLastFuelPoints int                    `json:"days_since_last_fuel_points"`
	NextLevelThreshold      int64                  `json:"next_level_threshold"`
	FPIntoLevel             int64                  `json:"fp_into_level"`
	Markers                 []domain.WindowMarker  `json:"markers"`
	Instances               []domain.InstanceState `json:"instances"`
	Pending                 int                    `json:"pending"`
	SyncedAt                time.Time              `json:"synced_at"`
}

// Marker returns the window marker for key.
func (s Snapshot) Marker(key domain.InstanceKey) (domain.WindowMarker, bool) {
	for _, m := range s.Markers {
		if m.Key() == key {
			return m, true
		}
	}
	return domain.WindowMarker{}, false
}

// Instance returns the instance for key.
func (s Snapshot) Instance(key domain.InstanceKey) (domain.InstanceState, bool) {
	for _, st := range s.Instances {
		if st.Key() == key {
			return st, true
		}
	}
	return domain.InstanceState{}, false
}

// DoneToday reports whether key already has an acceptance on today.
func (s Snapshot) DoneToday(key domain.InstanceKey, today domain.LocalDate) bool {
	m, ok := s.Marker(key)
	return ok && m.LastLocalDate == today
}

// BoostsRemaining is how many more boosts today's cap allows.
func (s Snapshot) BoostsRemaining(today domain.LocalDate) int {
	h := policy.HistoryFrom(s.Markers, domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: "*"}, today)
	if h.Backdated(today) {
		return 0
	}
	return policy.DailyCountWindow(h.DayCount, domain.BoostsPerDay).Remaining
}

// Mutation is one optimistic change. It remembers exactly what it set so
// that it can be undone.
type Mutation struct {
	id     uint64
	req    domain.SubmitRequest
	at     time.Time
	guess  int64
	bumped bool

	set  domain.WindowMarker
	prev *domain.WindowMarker
}

// Guess is the reward assumed when the mutation was applied.
func (m *Mutation) Guess() int64 { return m.guess }

// boostAggregate is the per-day counter shared by all boosts.
func boostAggregate(k domain.InstanceKey) domain.InstanceKey {
	return domain.InstanceKey{Kind: k.Kind}
}

// ClientState is the optimistic local mirror of authoritative progression.
// Authoritative resyncs replace the base; pending mutations are replayed on
// top so an in-flight attempt stays visible.
type ClientState struct {
	mu        sync.RWMutex
	playerID  uuid.UUID
	fp        int64
	level     int
	streak    int
	daysSince int
	markers   map[domain.InstanceKey]domain.WindowMarker
	instances map[domain.InstanceKey]domain.InstanceState
	boostFP   map[string]int64
	aggBase   map[domain.LocalDate]*domain.WindowMarker
	pending   map[uint64]*Mutation
	nextID    uint64
	syncedAt  time.Time
}

// NewClientState creates an empty mirror for playerID at level 1.
func NewClientState(playerID uuid.UUID) *ClientState {
	return &ClientState{
		playerID:  playerID,
		level:     1,
		markers:   make(map[domain.InstanceKey]domain.WindowMarker),
		instances: make(map[domain.InstanceKey]domain.InstanceState),
		boostFP:   make(map[string]int64),
		aggBase:   make(map[domain.LocalDate]*domain.WindowMarker),
		pending:   make(map[uint64]*Mutation),
	}
}

// Snapshot returns a copy of the current mirror.
func (s *ClientState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markers := make([]domain.WindowMarker, 0, len(s.markers))
	for _, m := range s.markers {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].Key().String() < markers[j].Key().String() })

	instances := make([]domain.InstanceState, 0, len(s.instances))
	for _, st := range s.instances {
		instances = append(instances, st)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Key().String() < instances[j].Key().String() })

	return Snapshot{
		PlayerID:                s.playerID,
		FuelPoints:              s.fp,
		Level:                   s.level,
		BurnStreak:              s.streak,
		DaysSinceLastFuelPoints: s.daysSince,
		NextLevelThreshold:      progression.LevelThreshold(s.level),
		FPIntoLevel:             progression.FPIntoLevel(s.fp, s.level),
		Markers:                 markers,
		Instances:               instances,
		Pending:                 len(s.pending),
		SyncedAt:                s.syncedAt,
	}
}

// FuelPoints returns the local FP total, pending guesses included.
func (s *ClientState) FuelPoints() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fp
}

// SetBoostPool records the FP value of this week's boosts for reward guesses.
func (s *ClientState) SetBoostPool(pool []catalog.Boost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boostFP = make(map[string]int64, len(pool))
	for _, b := range pool {
		s.boostFP[b.ID] = b.FP
	}
}

// Begin validates req against the mirror and, when admit also passes,
// applies the optimistic mutation. Both steps run under one lock so no other
// mutation can slip between the check and the apply.
func (s *ClientState) Begin(req domain.SubmitRequest, now time.Time, admit func() error) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(req, now); err != nil {
		return nil, err
	}
	if admit != nil {
		if err := admit(); err != nil {
			return nil, err
		}
	}

	s.nextID++
	m := &Mutation{id: s.nextID, req: req, at: now, guess: s.guessReward(req)}
	s.apply(m)
	s.pending[m.id] = m
	return m, nil
}

func (s *ClientState) validate(req domain.SubmitRequest, now time.Time) error {
	if err := req.Validate(); err != nil {
		return err
	}
	key := req.Key()

	var inst domain.InstanceState
	if req.Kind.HasParent() {
		var ok bool
		inst, ok = s.instances[key]
		if !ok {
			return domain.ErrNotFound(string(req.Kind), req.InstanceID)
		}
		if !inst.Active() {
			return domain.ErrAlreadyFinished(fmt.Sprintf("%s is %s", key, inst.Status))
		}
	}

	h := policy.HistoryFrom(s.markerList(), key, req.LocalDate)
	d := policy.ForKind(req.Kind, h, req.LocalDate, now)
	if !d.Allowed {
		switch {
		case d.Backdated:
			return domain.ErrValidation(fmt.Sprintf("%s is earlier than a day already recorded for %s", req.LocalDate, key))
		case req.Kind == domain.KindDailyBoost && (h.Last == nil || h.Last.LastLocalDate != req.LocalDate):
			return domain.ErrValidation(fmt.Sprintf("daily boost limit of %d reached", domain.BoostsPerDay))
		case req.Kind.Cadence() == domain.CadenceRolling:
			return domain.ErrValidation(fmt.Sprintf("%s is available again in %d days", key, d.DaysRemaining))
		default:
			return domain.ErrValidation(fmt.Sprintf("%s already done today", key))
		}
	}

	switch req.Kind {
	case domain.KindStandardChallenge, domain.KindCustomChallenge:
		if err := domain.ValidateSelection(req.Selection.ActionIDs, inst.MinimumSelection()); err != nil {
			return domain.ErrValidation(err.Error())
		}
		if len(inst.Actions) > 0 {
			if err := domain.ValidateSelectionAllowed(req.Selection.ActionIDs, inst.Actions); err != nil {
				return domain.ErrValidation(err.Error())
			}
		}
	case domain.KindHealthReassessment:
		if err := domain.ValidateCategoryScores(req.Selection.CategoryScores); err != nil {
			return domain.ErrValidation(err.Error())
		}
	}
	return nil
}

func (s *ClientState) guessReward(req domain.SubmitRequest) int64 {
	switch req.Kind {
	case domain.KindDailyBoost:
		return s.boostFP[req.InstanceID]
	case domain.KindStandardChallenge, domain.KindCustomChallenge, domain.KindQuestWeekly:
		inst := s.instances[req.Key()]
		guess := inst.DailyReward
		if inst.Target > 0 && inst.Progress+1 >= inst.Target {
			guess += inst.CompletionBonus
		}
		return guess
	default:
		return 0
	}
}

func (s *ClientState) markerList() []domain.WindowMarker {
	out := make([]domain.WindowMarker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, m)
	}
	return out
}

func (s *ClientState) bumpMarker(key domain.InstanceKey, date domain.LocalDate, at time.Time) (set domain.WindowMarker, prev *domain.WindowMarker) {
	next := domain.WindowMarker{Kind: key.Kind, InstanceID: key.InstanceID, LastLocalDate: date, LastAt: at, CountOnLastDate: 1}
	if old, ok := s.markers[key]; ok {
		o := old
		prev = &o
		if old.LastLocalDate == date {
			next.CountOnLastDate = old.CountOnLastDate + 1
		}
	}
	s.markers[key] = next
	return next, prev
}

func (s *ClientState) restoreMarker(key domain.InstanceKey, set domain.WindowMarker, prev *domain.WindowMarker) {
	cur, ok := s.markers[key]
	if !ok || cur != set {
		// A resync replaced it; the authoritative value wins.
		return
	}
	if prev != nil {
		s.markers[key] = *prev
	} else {
		delete(s.markers, key)
	}
}

func (s *ClientState) apply(m *Mutation) {
	key := m.req.Key()
	m.set, m.prev = s.bumpMarker(key, m.req.LocalDate, m.at)
	if m.req.Kind == domain.KindDailyBoost {
		s.bumpAggregate(boostAggregate(key), m.req.LocalDate, m.at)
	}
	s.fp += m.guess

	m.bumped = false
	if inst, ok := s.instances[key]; ok && m.req.Kind.HasParent() {
		inst.Progress++
		s.instances[key] = inst
		m.bumped = true
	}
}

// bumpAggregate counts one more boost on date. The marker from before the
// first boost of date is kept in aggBase so the last rollback can restore it.
// A marker already on a later date is left alone.
func (s *ClientState) bumpAggregate(key domain.InstanceKey, date domain.LocalDate, at time.Time) {
	old, ok := s.markers[key]
	switch {
	case ok && old.LastLocalDate == date:
		old.CountOnLastDate++
		if at.After(old.LastAt) {
			old.LastAt = at
		}
		s.markers[key] = old
	case ok && old.LastLocalDate > date:
	default:
		if ok {
			o := old
			s.aggBase[date] = &o
		} else {
			s.aggBase[date] = nil
		}
		s.markers[key] = domain.WindowMarker{Kind: key.Kind, LastLocalDate: date, LastAt: at, CountOnLastDate: 1}
	}
}

// unbumpAggregate takes one boost off date. Other attempts may have counted
// on the same marker since, so the count is decremented rather than restored.
func (s *ClientState) unbumpAggregate(key domain.InstanceKey, date domain.LocalDate) {
	cur, ok := s.markers[key]
	if !ok || cur.LastLocalDate != date {
		return
	}
	if cur.CountOnLastDate > 1 {
		cur.CountOnLastDate--
		s.markers[key] = cur
		return
	}
	if base := s.aggBase[date]; base != nil {
		s.markers[key] = *base
	} else {
		delete(s.markers, key)
	}
	delete(s.aggBase, date)
}

func (s *ClientState) revert(m *Mutation) {
	key := m.req.Key()
	s.restoreMarker(key, m.set, m.prev)
	if m.req.Kind == domain.KindDailyBoost {
		s.unbumpAggregate(boostAggregate(key), m.req.LocalDate)
	}
	s.fp -= m.guess
	if m.bumped {
		if inst, ok := s.instances[key]; ok {
			inst.Progress--
			s.instances[key] = inst
		}
	}
}

// Rollback undoes m exactly and forgets it.
func (s *ClientState) Rollback(m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[m.id]; !ok {
		return
	}
	s.revert(m)
	delete(s.pending, m.id)
}

// Confirm settles m with the authoritative result: the guessed reward is
// swapped for the real one and the parent is marked completed if it was.
func (s *ClientState) Confirm(m *Mutation, res *domain.SubmitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[m.id]; !ok {
		return
	}
	delete(s.pending, m.id)

	s.fp += res.Reward + res.StreakBonus - m.guess
	s.streak = res.BurnStreak
	s.daysSince = 0
	if res.ParentCompleted {
		key := m.req.Key()
		if inst, ok := s.instances[key]; ok {
			inst.Status = domain.StatusCompleted
			s.instances[key] = inst
		}
	}
}

// Absorb settles m as a conflict: the store already held a record for the
// window, so the optimistic "done" markers stay until the next resync.
func (s *ClientState) Absorb(m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, m.id)
}

// Reconcile replaces the mirror with authoritative state and replays any
// pending mutations on top of it.
func (s *ClientState) Reconcile(ps *domain.PlayerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fp = ps.FuelPoints
	s.level = max(ps.Level, 1)
	s.streak = ps.BurnStreak
	s.daysSince = ps.DaysSinceLastFuelPoints
	s.syncedAt = ps.AsOf

	s.markers = make(map[domain.InstanceKey]domain.WindowMarker, len(ps.Markers))
	for _, m := range ps.Markers {
		s.markers[m.Key()] = m
	}
	s.instances = make(map[domain.InstanceKey]domain.InstanceState, len(ps.Instances))
	for _, st := range ps.Instances {
		s.instances[st.Key()] = st
	}
	s.aggBase = make(map[domain.LocalDate]*domain.WindowMarker)

	ids := make([]uint64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.apply(s.pending[id])
	}
}
