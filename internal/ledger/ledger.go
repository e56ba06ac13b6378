package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/repository"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Engine provides the foundational write primitives of the progression ledger:
//  1. LockPlayerForUpdate: row-level pessimistic lock
//  2. lockInstance: lock the parent challenge or quest row, if any
//  3. PostCompletion: record insert + player update + parent update + outbox events
//
// Every primitive runs inside the caller's transaction.
type Engine struct {
	players     repository.PlayerRepository
	completions repository.CompletionRepository
	challenges  repository.ChallengeRepository
	customs     repository.CustomChallengeRepository
	quests      repository.QuestRepository
	corrections repository.CorrectionRepository
	levelUps    repository.LevelUpRepository
	outbox      repository.OutboxRepository
}

// Repositories groups the repositories an Engine writes through.
type Repositories struct {
	Players     repository.PlayerRepository
	Completions repository.CompletionRepository
	Challenges  repository.ChallengeRepository
	Customs     repository.CustomChallengeRepository
	Quests      repository.QuestRepository
	Corrections repository.CorrectionRepository
	LevelUps    repository.LevelUpRepository
	Outbox      repository.OutboxRepository
}

// DefaultRepositories returns the pgx-backed repositories.
func DefaultRepositories() Repositories {
	return Repositories{
		Players:     repository.NewPlayerRepository(),
		Completions: repository.NewCompletionRepository(),
		Challenges:  repository.NewChallengeRepository(),
		Customs:     repository.NewCustomChallengeRepository(),
		Quests:      repository.NewQuestRepository(),
		Corrections: repository.NewCorrectionRepository(),
		LevelUps:    repository.NewLevelUpRepository(),
		Outbox:      repository.NewOutboxRepository(),
	}
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(r Repositories) *Engine {
	return &Engine{
		players:     r.Players,
		completions: r.Completions,
		challenges:  r.Challenges,
		customs:     r.Customs,
		quests:      r.Quests,
		corrections: r.Corrections,
		levelUps:    r.LevelUps,
		outbox:      r.Outbox,
	}
}

// LockPlayerForUpdate acquires a row-level lock and returns the player.
// Must be called within a transaction.
func (e *Engine) LockPlayerForUpdate(ctx context.Context, tx pgx.Tx, playerID uuid.UUID) (*domain.Player, error) {
	player, err := e.players.LockForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, fmt.Errorf("lock player: %w", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	return player, nil
}

// lockedInstance holds whichever parent row a completion touches.
type lockedInstance struct {
	challenge *domain.ChallengeInstance
	custom    *domain.CustomChallengeInstance
	quest     *domain.QuestInstance
}

func (l *lockedInstance) state() *domain.InstanceState {
	var st domain.InstanceState
	switch {
	case l == nil:
		return nil
	case l.challenge != nil:
		st = l.challenge.State()
	case l.custom != nil:
		st = l.custom.State()
	case l.quest != nil:
		st = l.quest.State()
	default:
		return nil
	}
	return &st
}

// lockInstance locks the parent row of kind. It returns nil, nil when the
// kind has no parent or the row does not exist; settlement reports the
// missing parent.
func (e *Engine) lockInstance(ctx context.Context, tx pgx.Tx, kind domain.ActionKind, instanceID string) (*lockedInstance, error) {
	if !kind.HasParent() {
		return nil, nil
	}
	id, err := uuid.Parse(instanceID)
	if err != nil {
		return nil, nil
	}
	l := &lockedInstance{}
	switch kind {
	case domain.KindStandardChallenge:
		l.challenge, err = e.challenges.LockForUpdate(ctx, tx, id)
		if l.challenge == nil {
			l = nil
		}
	case domain.KindCustomChallenge:
		l.custom, err = e.customs.LockForUpdate(ctx, tx, id)
		if l.custom == nil {
			l = nil
		}
	case domain.KindQuestWeekly:
		l.quest, err = e.quests.LockForUpdate(ctx, tx, id)
		if l.quest == nil {
			l = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", kind, err)
	}
	return l, nil
}

// PostCompletion writes an accepted completion. The unique window index on
// completion_records is the final duplicate guard; hitting it aborts the
// whole transaction with CONFLICT.
//
// Steps:
//  1. Insert the completion record
//  2. Save the credited player row
//  3. Advance the parent instance
//  4. Insert outbox events
func (e *Engine) PostCompletion(ctx context.Context, tx pgx.Tx, player *domain.Player, rec *domain.CompletionRecord, out *settlement.Outcome, inst *lockedInstance, now time.Time) (*domain.SubmitResult, error) {
	// Step 1: append-only record
	if err := e.completions.Insert(ctx, tx, rec); err != nil {
		return nil, err
	}

	// Step 2: player row computed under the lock
	updated, err := e.players.Save(ctx, tx, player)
	if err != nil {
		return nil, fmt.Errorf("save player: %w", err)
	}

	// Step 3: parent progress and completion
	if err := e.advance(ctx, tx, inst, out, now); err != nil {
		return nil, err
	}

	res := &domain.SubmitResult{
		Accepted:        true,
		Reward:          out.Reward,
		StreakBonus:     rec.StreakBonus,
		ParentCompleted: out.ParentCompleted,
		FuelPoints:      updated.FuelPoints,
		BurnStreak:      updated.BurnStreak,
		RecordID:        rec.ID.String(),
	}

	// Step 4: outbox (same transaction for atomicity)
	events := []domain.OutboxDraft{domain.NewCompletionAcceptedEvent(rec, *res)}
	if rec.StreakBonus > 0 {
		events = append(events, domain.NewStreakBonusEvent(updated.ID, updated.BurnStreak, rec.StreakBonus, now))
	}
	if out.ParentCompleted {
		if st := inst.state(); st != nil {
			events = append(events, domain.NewInstanceEvent(domain.EventInstanceCompleted, *st, now))
		}
	}
	if err := e.insertEvents(ctx, tx, events...); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) advance(ctx context.Context, tx pgx.Tx, inst *lockedInstance, out *settlement.Outcome, now time.Time) error {
	switch {
	case inst == nil:
		return nil
	case inst.challenge != nil:
		settlement.AdvanceChallenge(inst.challenge, out, now)
		return e.challenges.Update(ctx, tx, inst.challenge)
	case inst.custom != nil:
		settlement.AdvanceCustomChallenge(inst.custom, out, now)
		return e.customs.Update(ctx, tx, inst.custom)
	case inst.quest != nil:
		settlement.AdvanceQuest(inst.quest, out, now)
		return e.quests.Update(ctx, tx, inst.quest)
	}
	return nil
}

func (e *Engine) insertEvents(ctx context.Context, tx pgx.Tx, events ...domain.OutboxDraft) error {
	for _, evt := range events {
		if err := e.outbox.Insert(ctx, tx, evt); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}
