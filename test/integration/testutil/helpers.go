//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// CreatePlayer creates a player through the admin API and returns a player
// token and the player ID.
func (env *TestEnv) CreatePlayer() (token string, playerID uuid.UUID) {
	env.t.Helper()
	resp := env.POST("/admin/players", nil, env.AdminToken(auth.RoleAdmin))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("CreatePlayer: expected 201, got %d", resp.StatusCode)
	}

	var p domain.Player
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		env.t.Fatalf("CreatePlayer: decode: %v", err)
	}
	return env.PlayerToken(p.ID), p.ID
}

// PlayerToken generates a player JWT.
func (env *TestEnv) PlayerToken(playerID uuid.UUID) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmPlayer, playerID, "")
	if err != nil {
		env.t.Fatalf("PlayerToken: %v", err)
	}
	return token
}

// AdminToken generates a JWT for an admin user with the given role.
func (env *TestEnv) AdminToken(role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, uuid.New(), role)
	if err != nil {
		env.t.Fatalf("AdminToken: %v", err)
	}
	return token
}

// Today is the server's local date.
func (env *TestEnv) Today() domain.LocalDate {
	return domain.LocalDateOf(time.Now().UTC())
}

// BoostPool fetches this week's boosts for the token's player.
func (env *TestEnv) BoostPool(token string) []catalog.Boost {
	env.t.Helper()
	var pool []catalog.Boost
	DecodeJSON(env.t, env.AuthGET("/boosts", token), &pool)
	if len(pool) == 0 {
		env.t.Fatal("BoostPool: empty pool")
	}
	return pool
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// Submit posts a completion and returns the raw response.
func (env *TestEnv) Submit(token string, req domain.SubmitRequest) *http.Response {
	env.t.Helper()
	return env.POST("/completions", req, token)
}

// OutboxEventTypes lists the event types written for an aggregate, oldest first.
func (env *TestEnv) OutboxEventTypes(aggregateID string) []string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := env.Pool.Query(ctx,
		`SELECT "eventType" FROM event_outbox WHERE "aggregateId" = $1 ORDER BY "id"`, aggregateID)
	if err != nil {
		env.t.Fatalf("OutboxEventTypes: %v", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			env.t.Fatalf("OutboxEventTypes: scan: %v", err)
		}
		out = append(out, s)
	}
	return out
}
