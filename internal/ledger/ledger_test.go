package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/repository"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes: the engine only needs the repository contracts ---

type fakePlayers struct {
	rows  map[uuid.UUID]*domain.Player
	saves int
}

func (f *fakePlayers) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Player, error) {
	return f.rows[id], nil
}

func (f *fakePlayers) LockForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	return f.rows[id], nil
}

func (f *fakePlayers) Create(_ context.Context, _ repository.DBTX, p *domain.Player) error {
	f.rows[p.ID] = p
	return nil
}

func (f *fakePlayers) Save(_ context.Context, _ pgx.Tx, p *domain.Player) (*domain.Player, error) {
	f.saves++
	cp := *p
	f.rows[p.ID] = &cp
	return &cp, nil
}

type fakeCompletions struct {
	windows map[string]bool
	rows    []domain.CompletionRecord
}

func (f *fakeCompletions) Insert(_ context.Context, _ repository.DBTX, rec *domain.CompletionRecord) error {
	k := rec.PlayerID.String() + string(rec.Kind) + rec.InstanceID + rec.WindowKey
	if f.windows[k] {
		return domain.ErrConflict("window taken")
	}
	f.windows[k] = true
	f.rows = append(f.rows, *rec)
	return nil
}

func (f *fakeCompletions) ListByPlayer(_ context.Context, _ repository.DBTX, _ uuid.UUID) ([]domain.CompletionRecord, error) {
	return f.rows, nil
}

type fakeChallenges struct {
	rows    map[uuid.UUID]*domain.ChallengeInstance
	updates int
}

func (f *fakeChallenges) Insert(_ context.Context, _ repository.DBTX, c *domain.ChallengeInstance) error {
	f.rows[c.ID] = c
	return nil
}

func (f *fakeChallenges) LockForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.ChallengeInstance, error) {
	return f.rows[id], nil
}

func (f *fakeChallenges) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.ChallengeInstance, error) {
	return f.rows[id], nil
}

func (f *fakeChallenges) Update(_ context.Context, _ pgx.Tx, c *domain.ChallengeInstance) error {
	f.updates++
	f.rows[c.ID] = c
	return nil
}

func (f *fakeChallenges) ListByPlayer(_ context.Context, _ repository.DBTX, _ uuid.UUID) ([]domain.ChallengeInstance, error) {
	return nil, nil
}

type fakeOutbox struct {
	drafts []domain.OutboxDraft
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	f.drafts = append(f.drafts, d)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(context.Context, repository.DBTX, int) ([]repository.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(context.Context, repository.DBTX, []int64) error { return nil }

type fixture struct {
	engine      *Engine
	players     *fakePlayers
	completions *fakeCompletions
	challenges  *fakeChallenges
	outbox      *fakeOutbox
	player      *domain.Player
}

func newFixture() *fixture {
	f := &fixture{
		players:     &fakePlayers{rows: map[uuid.UUID]*domain.Player{}},
		completions: &fakeCompletions{windows: map[string]bool{}},
		challenges:  &fakeChallenges{rows: map[uuid.UUID]*domain.ChallengeInstance{}},
		outbox:      &fakeOutbox{},
	}
	f.engine = NewEngine(Repositories{
		Players:     f.players,
		Completions: f.completions,
		Challenges:  f.challenges,
		Outbox:      f.outbox,
	})
	f.player = &domain.Player{ID: uuid.New(), Level: 1}
	f.players.rows[f.player.ID] = f.player
	return f
}

var ledgerNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestLockPlayerForUpdate_MissingPlayer(t *testing.T) {
	f := newFixture()
	_, err := f.engine.LockPlayerForUpdate(context.Background(), nil, uuid.New())
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestLockInstance(t *testing.T) {
	f := newFixture()
	c := &domain.ChallengeInstance{ID: uuid.New(), PlayerID: f.player.ID, Status: domain.StatusActive, VerificationsRequired: 7}
	f.challenges.rows[c.ID] = c
	ctx := context.Background()

	t.Run("kind without parent", func(t *testing.T) {
		l, err := f.engine.lockInstance(ctx, nil, domain.KindDailyBoost, "walk-10")
		require.NoError(t, err)
		assert.Nil(t, l.state())
	})

	t.Run("malformed id", func(t *testing.T) {
		l, err := f.engine.lockInstance(ctx, nil, domain.KindStandardChallenge, "nope")
		require.NoError(t, err)
		assert.Nil(t, l)
	})

	t.Run("missing row", func(t *testing.T) {
		l, err := f.engine.lockInstance(ctx, nil, domain.KindStandardChallenge, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, l)
	})

	t.Run("locked challenge", func(t *testing.T) {
		l, err := f.engine.lockInstance(ctx, nil, domain.KindStandardChallenge, c.ID.String())
		require.NoError(t, err)
		st := l.state()
		require.NotNil(t, st)
		assert.Equal(t, c.ID.String(), st.InstanceID)
		assert.Equal(t, 7, st.Target)
	})
}

func TestPostCompletion_ParentCompletedWritesThreeEvents(t *testing.T) {
	f := newFixture()
	c := &domain.ChallengeInstance{ID: uuid.New(), PlayerID: f.player.ID, Status: domain.StatusActive,
		VerificationsRequired: 7, VerificationCount: 6, DailyReward: 5, CompletionBonus: 50}
	f.challenges.rows[c.ID] = c

	inst, err := f.engine.lockInstance(context.Background(), nil, domain.KindStandardChallenge, c.ID.String())
	require.NoError(t, err)

	out := &settlement.Outcome{Reward: 55, ParentCompleted: true, Progress: 7, WindowKey: "2026-03-14"}
	rec := &domain.CompletionRecord{ID: uuid.New(), PlayerID: f.player.ID, Kind: domain.KindStandardChallenge,
		InstanceID: c.ID.String(), LocalDate: "2026-03-14", WindowKey: out.WindowKey, OccurredAt: ledgerNow}
	player := *f.player
	rec.StreakBonus = settlement.Credit(&player, out.Reward, "2026-03-14", ledgerNow)

	res, err := f.engine.PostCompletion(context.Background(), nil, &player, rec, out, inst, ledgerNow)
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.True(t, res.ParentCompleted)
	assert.Equal(t, int64(55), res.Reward)
	assert.Equal(t, player.FuelPoints, res.FuelPoints)
	assert.Equal(t, rec.ID.String(), res.RecordID)

	assert.Equal(t, domain.StatusCompleted, f.challenges.rows[c.ID].Status)
	assert.Equal(t, 7, f.challenges.rows[c.ID].VerificationCount)
	assert.Equal(t, 1, f.players.saves)

	var types []domain.EventType
	for _, d := range f.outbox.drafts {
		types = append(types, d.EventType)
	}
	assert.Contains(t, types, domain.EventCompletionAccepted)
	assert.Contains(t, types, domain.EventInstanceCompleted)
	assert.Equal(t, rec.StreakBonus > 0, len(types) == 3)
}

func TestPostCompletion_DuplicateWindowStopsBeforeCredit(t *testing.T) {
	f := newFixture()
	out := &settlement.Outcome{Reward: 2, WindowKey: "2026-03-14"}
	rec := &domain.CompletionRecord{ID: uuid.New(), PlayerID: f.player.ID, Kind: domain.KindDailyBoost,
		InstanceID: "walk-10", LocalDate: "2026-03-14", WindowKey: out.WindowKey}

	_, err := f.engine.PostCompletion(context.Background(), nil, f.player, rec, out, nil, ledgerNow)
	require.NoError(t, err)

	dup := *rec
	dup.ID = uuid.New()
	_, err = f.engine.PostCompletion(context.Background(), nil, f.player, &dup, out, nil, ledgerNow)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, 1, f.players.saves)
	assert.Len(t, f.completions.rows, 1)
}
