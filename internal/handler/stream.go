package handler

import (
	"net/http"

	"github.com/fuelpoints/platform/internal/auth"
)

// StreamServer upgrades a request into a player's notification stream.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, playerID string)
}

// StreamHandler handles GET /ws. Messages are resync hints only; clients
// fetch state over HTTP after each one.
func StreamHandler(hub StreamServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := auth.PlayerIDFromContext(r.Context())
		if err != nil {
			RespondError(w, err)
			return
		}
		hub.Serve(w, r, playerID.String())
	}
}
