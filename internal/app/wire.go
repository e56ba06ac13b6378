package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/authority"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/guard"
	"github.com/fuelpoints/platform/internal/handler"
	adminhandler "github.com/fuelpoints/platform/internal/handler/admin"
	"github.com/fuelpoints/platform/internal/infra"
	"github.com/fuelpoints/platform/internal/projection"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Store    authority.Full
	JWTMgr   *auth.JWTManager
	Hub      *infra.WSHub // nil creates a private hub
	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger

	// Health pings the backing store; nil for the memory backend.
	Health func(ctx context.Context) error

	// SubmitRatePerMinute bounds completion submissions per player.
	SubmitRatePerMinute int
	CORSOrigin          string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	if deps.CORSOrigin == "" {
		deps.CORSOrigin = "*"
	}
	rate := deps.SubmitRatePerMinute
	if rate <= 0 {
		rate = 30
	}

	hub := deps.Hub
	if hub == nil {
		hub = infra.NewWSHub(logger, nil)
	}

	states := projection.NewPlayerStates(projection.NewInMemoryStore(clk), deps.Store, projection.DefaultStateTTL)
	today := func() domain.LocalDate { return domain.LocalDateOf(clk.Now().In(loc)) }
	submitLimiter := guard.NewRateLimiter(rate, time.Minute, clk)

	progression := handler.NewProgressionHandler(deps.Store, states, hub, today, logger)
	playerAdmin := adminhandler.NewPlayerAdminHandler(deps.Store, progression.Changed, logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigin))

	// Websocket stream sits outside the JSON content-type group.
	r.With(auth.AuthenticateStream(deps.JWTMgr)).Get("/ws", handler.StreamHandler(hub))

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		// Health (no auth)
		r.Get("/health", handler.HealthHandler(deps.Health, hub.ConnectionCount))

		// Player-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticatePlayer(deps.JWTMgr))

			r.Get("/players/me", progression.GetState)
			r.Post("/players/me/level-up", progression.LevelUp)
			r.With(handler.RateLimitPlayer(submitLimiter)).Post("/completions", progression.SubmitCompletion)

			r.Get("/instances/{kind}/{id}", progression.GetInstance)
			r.Post("/instances/{kind}/{id}/cancel", progression.CancelInstance)

			r.Post("/challenges", progression.StartChallenge)
			r.Post("/custom-challenges", progression.StartCustomChallenge)
			r.Post("/quests", progression.StartQuest)
			r.Get("/boosts", progression.ListBoosts)
		})

		// Admin-authenticated routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

			r.Route("/players", func(r chi.Router) {
				r.With(auth.RequireRole(auth.EnrollRoles()...)).Post("/", playerAdmin.CreatePlayer)
				r.With(auth.RequireRole(auth.CorrectionRoles()...)).Post("/{id}/corrections", playerAdmin.CorrectFuelPoints)
				r.With(auth.RequireRole(auth.AuditRoles()...)).Get("/{id}/audit", playerAdmin.Audit)
			})
		})
	})

	return r
}
