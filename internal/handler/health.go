package handler

import (
	"context"
	"net/http"
)

// HealthStatus is the /health body.
type HealthStatus struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Streams int    `json:"streams"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler reports whether the authoritative store answers and how many
// state streams are open. ping may be nil for stores with nothing to reach;
// streams may be nil when no hub is wired.
func HealthHandler(ping func(ctx context.Context) error, streams func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := HealthStatus{Status: "healthy", Store: "ok"}
		if streams != nil {
			st.Streams = streams()
		}
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				st.Status, st.Store, st.Error = "unhealthy", "unreachable", err.Error()
				RespondJSON(w, http.StatusServiceUnavailable, st)
				return
			}
		}
		RespondJSON(w, http.StatusOK, st)
	}
}
