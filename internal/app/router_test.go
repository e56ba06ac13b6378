package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/handler"
	"github.com/fuelpoints/platform/internal/infra"
	"github.com/fuelpoints/platform/internal/memstore"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv    *httptest.Server
	hub    *infra.WSHub
	jwt    *auth.JWTManager
	admin  string
	viewer string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clk := clock.NewManual(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	store := memstore.New(settlement.NewRules(catalog.Default(), time.Monday), clk, time.UTC)
	jwtMgr := auth.NewJWTManager("router-test-secret-with-enough-bytes", time.Hour, time.Hour)
	hub := infra.NewWSHub(logger, nil)

	r := NewRouter(RouterDeps{
		Store:               store,
		JWTMgr:              jwtMgr,
		Hub:                 hub,
		Clock:               clk,
		Location:            time.UTC,
		Logger:              logger,
		SubmitRatePerMinute: 3,
	})
	ts := &testServer{srv: httptest.NewServer(r), hub: hub, jwt: jwtMgr}
	t.Cleanup(ts.srv.Close)

	var err error
	ts.admin, err = jwtMgr.GenerateToken(auth.RealmAdmin, uuid.New(), auth.RoleAdmin)
	require.NoError(t, err)
	ts.viewer, err = jwtMgr.GenerateToken(auth.RealmAdmin, uuid.New(), auth.RoleViewer)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) call(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) newPlayer(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	var p domain.Player
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/admin/players", ts.admin, nil, &p))
	token, err := ts.jwt.GenerateToken(auth.RealmPlayer, p.ID, "")
	require.NoError(t, err)
	return p.ID, token
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/health", "", nil, nil))
}

func TestRouter_RealmsAndRoles(t *testing.T) {
	ts := newTestServer(t)
	_, playerToken := ts.newPlayer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/players/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/players/me", ts.admin, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodPost, "/admin/players", playerToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, ts.call(t, http.MethodPost, "/admin/players", ts.viewer, nil, nil))
}

func TestRouter_CompletionFlowNotifiesStream(t *testing.T) {
	ts := newTestServer(t)
	playerID, token := ts.newPlayer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	var pool []catalog.Boost
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/boosts", token, nil, &pool))
	require.NotEmpty(t, pool)

	var res domain.SubmitResult
	status := ts.call(t, http.MethodPost, "/completions", token, domain.SubmitRequest{
		Kind: domain.KindDailyBoost, InstanceID: pool[0].ID, LocalDate: "2026-03-14",
	}, &res)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.Accepted)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg infra.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, handler.EventStateChanged, msg.Event)

	var st domain.PlayerState
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/players/me", token, nil, &st))
	assert.Equal(t, playerID, st.PlayerID)
	assert.Equal(t, res.FuelPoints, st.FuelPoints)

	var report domain.AuditReport
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/admin/players/"+playerID.String()+"/audit", ts.viewer, nil, &report))
	assert.True(t, report.AllPassed)
	assert.Equal(t, 1, report.RecordCount)
}

func TestRouter_AdminCorrectionShowsInState(t *testing.T) {
	ts := newTestServer(t)
	playerID, token := ts.newPlayer(t)

	var st domain.PlayerState
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/players/me", token, nil, &st))
	require.Zero(t, st.FuelPoints)

	body := map[string]interface{}{"delta": 30, "reason": "missed sync"}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/admin/players/"+playerID.String()+"/corrections", ts.admin, body, nil))

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/players/me", token, nil, &st))
	assert.Equal(t, int64(30), st.FuelPoints)
	assert.Equal(t, 2, st.Level)
}

func TestRouter_SubmissionsAreRateLimited(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newPlayer(t)

	// malformed bodies still count against the limit
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, ts.call(t, http.MethodPost, "/completions", token, map[string]string{"kind": "teleport"}, nil))
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}
