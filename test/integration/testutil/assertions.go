//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// AssertFuelPoints queries the players table and asserts the stored total and level.
func AssertFuelPoints(t *testing.T, env *TestEnv, playerID uuid.UUID, fuelPoints int64, level int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var gotFP int64
	var gotLevel int
	err := env.Pool.QueryRow(ctx,
		"SELECT fuel_points, level FROM players WHERE id = $1", playerID,
	).Scan(&gotFP, &gotLevel)
	if err != nil {
		t.Fatalf("AssertFuelPoints: query: %v", err)
	}
	if gotFP != fuelPoints {
		t.Errorf("fuel_points: expected %d, got %d", fuelPoints, gotFP)
	}
	if gotLevel != level {
		t.Errorf("level: expected %d, got %d", level, gotLevel)
	}
}

// CountRecords returns the number of completion records of a player.
func CountRecords(t *testing.T, env *TestEnv, playerID uuid.UUID) int {
	t.Helper()
	var n int
	err := env.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM completion_records WHERE player_id = $1", playerID).Scan(&n)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	return n
}
