package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/authority"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/projection"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EventStateChanged is pushed to a player's room after every accepted write.
const EventStateChanged = "state.changed"

// Notifier pushes a message to one player's live connections.
type Notifier interface {
	PublishToPlayer(playerID string, event string, data interface{})
}

// ProgressionHandler exposes the authoritative store to authenticated players.
type ProgressionHandler struct {
	store    authority.Full
	states   *projection.PlayerStates
	notifier Notifier
	today    func() domain.LocalDate
	logger   *slog.Logger
}

// NewProgressionHandler creates a ProgressionHandler. today supplies the
// server's calendar date for requests that omit one.
func NewProgressionHandler(store authority.Full, states *projection.PlayerStates, notifier Notifier, today func() domain.LocalDate, logger *slog.Logger) *ProgressionHandler {
	return &ProgressionHandler{store: store, states: states, notifier: notifier, today: today, logger: logger}
}

// Changed invalidates the cached read model and tells the player's live
// sessions to resync.
func (h *ProgressionHandler) Changed(ctx context.Context, playerID uuid.UUID, reason string) {
	if err := h.states.Invalidate(ctx, playerID); err != nil {
		h.logger.Warn("projection invalidate failed", "player_id", playerID, "error", err)
	}
	h.notifier.PublishToPlayer(playerID.String(), EventStateChanged, map[string]string{"reason": reason})
}

// GetState handles GET /players/me.
func (h *ProgressionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	st, err := h.states.Get(r.Context(), playerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, st)
}

type levelUpRequest struct {
	CurrentFP int64 `json:"current_fp"`
}

// LevelUp handles POST /players/me/level-up.
func (h *ProgressionHandler) LevelUp(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	var req levelUpRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	res, err := h.store.TriggerLevelUpIfEligible(r.Context(), playerID, req.CurrentFP)
	if err != nil {
		RespondError(w, err)
		return
	}
	if res.LevelChanged {
		h.logger.Info("level up", "player_id", playerID, "new_level", res.NewLevel)
		h.Changed(r.Context(), playerID, "level_up")
	}
	RespondJSON(w, http.StatusOK, res)
}

// SubmitCompletion handles POST /completions.
func (h *ProgressionHandler) SubmitCompletion(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	var req domain.SubmitRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	req.PlayerID = playerID

	res, err := h.store.SubmitCompletion(r.Context(), req)
	if err != nil {
		if domain.IsConflict(err) || domain.IsAlreadyFinished(err) {
			h.logger.Info("completion rejected", "player_id", playerID, "kind", req.Kind,
				"instance_id", req.InstanceID, "code", domain.CodeOf(err))
		}
		RespondError(w, err)
		return
	}
	h.Changed(r.Context(), playerID, "completion")
	RespondJSON(w, http.StatusOK, res)
}

// GetInstance handles GET /instances/{kind}/{id}.
func (h *ProgressionHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	kind, id, err := instanceParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	st, err := h.store.GetInstanceState(r.Context(), kind, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if st.PlayerID != playerID {
		RespondError(w, domain.ErrNotFound(string(kind), id))
		return
	}
	RespondJSON(w, http.StatusOK, st)
}

type startChallengeRequest struct {
	ChallengeID string `json:"challenge_id"`
}

// StartChallenge handles POST /challenges.
func (h *ProgressionHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	var req startChallengeRequest
	if err := DecodeJSON(r, &req); err != nil || req.ChallengeID == "" {
		RespondError(w, domain.ErrValidation("challenge_id is required"))
		return
	}
	st, err := h.store.StartChallenge(r.Context(), playerID, req.ChallengeID)
	if err != nil {
		RespondError(w, err)
		return
	}
	h.Changed(r.Context(), playerID, "instance_started")
	RespondJSON(w, http.StatusCreated, st)
}

// StartCustomChallenge handles POST /custom-challenges.
func (h *ProgressionHandler) StartCustomChallenge(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	var params domain.StartCustomChallengeParams
	if err := DecodeJSON(r, &params); err != nil {
		RespondError(w, err)
		return
	}
	params.PlayerID = playerID
	st, err := h.store.StartCustomChallenge(r.Context(), params)
	if err != nil {
		RespondError(w, err)
		return
	}
	h.Changed(r.Context(), playerID, "instance_started")
	RespondJSON(w, http.StatusCreated, st)
}

type startQuestRequest struct {
	QuestID string `json:"quest_id"`
}

// StartQuest handles POST /quests.
func (h *ProgressionHandler) StartQuest(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	var req startQuestRequest
	if err := DecodeJSON(r, &req); err != nil || req.QuestID == "" {
		RespondError(w, domain.ErrValidation("quest_id is required"))
		return
	}
	st, err := h.store.StartQuest(r.Context(), playerID, req.QuestID)
	if err != nil {
		RespondError(w, err)
		return
	}
	h.Changed(r.Context(), playerID, "instance_started")
	RespondJSON(w, http.StatusCreated, st)
}

// CancelInstance handles POST /instances/{kind}/{id}/cancel.
func (h *ProgressionHandler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	kind, id, err := instanceParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	st, err := h.store.CancelInstance(r.Context(), playerID, kind, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	h.Changed(r.Context(), playerID, "instance_cancelled")
	RespondJSON(w, http.StatusOK, st)
}

// ListBoosts handles GET /boosts?date=YYYY-MM-DD. The date is the player's
// local calendar day; it defaults to the server's.
func (h *ProgressionHandler) ListBoosts(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromContext(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	today := h.today()
	if s := r.URL.Query().Get("date"); s != "" {
		if today, err = domain.ParseLocalDate(s); err != nil {
			RespondError(w, domain.ErrValidation(err.Error()))
			return
		}
	}
	pool, err := h.store.ListBoostPool(r.Context(), playerID, today)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, pool)
}

func instanceParams(r *http.Request) (domain.ActionKind, string, error) {
	kind, err := domain.ParseActionKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", domain.ErrValidation(err.Error())
	}
	return kind, chi.URLParam(r, "id"), nil
}
