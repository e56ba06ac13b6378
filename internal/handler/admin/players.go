package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fuelpoints/platform/internal/authority"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PlayerAdminHandler handles operator player management.
type PlayerAdminHandler struct {
	store    authority.Admin
	onChange func(ctx context.Context, playerID uuid.UUID, reason string)
	logger   *slog.Logger
}

// NewPlayerAdminHandler creates a new PlayerAdminHandler. onChange runs after
// every successful write and may be nil.
func NewPlayerAdminHandler(store authority.Admin, onChange func(ctx context.Context, playerID uuid.UUID, reason string), logger *slog.Logger) *PlayerAdminHandler {
	if onChange == nil {
		onChange = func(context.Context, uuid.UUID, string) {}
	}
	return &PlayerAdminHandler{store: store, onChange: onChange, logger: logger}
}

type createPlayerRequest struct {
	PlayerID *uuid.UUID `json:"player_id,omitempty"`
}

// CreatePlayer handles POST /admin/players. A missing player_id is generated.
func (h *PlayerAdminHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if r.ContentLength != 0 {
		if err := handler.DecodeJSON(r, &req); err != nil {
			handler.RespondError(w, err)
			return
		}
	}
	id := uuid.New()
	if req.PlayerID != nil {
		id = *req.PlayerID
	}

	p, err := h.store.CreatePlayer(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	h.logger.Info("player created", "player_id", p.ID)
	handler.RespondJSON(w, http.StatusCreated, p)
}

type correctionRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// CorrectFuelPoints handles POST /admin/players/{id}/corrections.
func (h *PlayerAdminHandler) CorrectFuelPoints(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid player id"))
		return
	}
	var req correctionRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, err)
		return
	}

	p, err := h.store.CorrectFuelPoints(r.Context(), domain.FuelPointsCorrection{PlayerID: id, Delta: req.Delta, Reason: req.Reason})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	h.logger.Warn("fuel points corrected", "player_id", id, "delta", req.Delta, "reason", req.Reason)
	h.onChange(r.Context(), id, "correction")
	handler.RespondJSON(w, http.StatusOK, p)
}

// Audit handles GET /admin/players/{id}/audit.
func (h *PlayerAdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid player id"))
		return
	}
	report, err := h.store.Audit(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if !report.AllPassed {
		h.logger.Warn("audit failed", "player_id", id, "invariants", report.Invariants)
	}
	handler.RespondJSON(w, http.StatusOK, report)
}
