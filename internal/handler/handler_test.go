package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

// --- responders ---

func TestRespondError_CodesSurviveTheWire(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound("challenge", "c1"), http.StatusNotFound, domain.CodeNotFound},
		{domain.ErrValidation("need two actions"), http.StatusBadRequest, domain.CodeValidation},
		{domain.ErrConflict("window taken"), http.StatusConflict, domain.CodeConflict},
		{domain.ErrAlreadyFinished("challenge completed"), http.StatusConflict, domain.CodeAlreadyFinished},
		{domain.ErrInFlight("daily_boost/walk-10"), http.StatusConflict, domain.CodeInFlight},
		{domain.ErrTransient("store down", nil), http.StatusServiceUnavailable, domain.CodeTransient},
		{domain.ErrRateLimited("slow down"), http.StatusTooManyRequests, domain.CodeRateLimited},
		{fmt.Errorf("submit completion: %w", domain.ErrConflict("window taken")), http.StatusConflict, domain.CodeConflict},
		{assert.AnError, http.StatusInternalServerError, domain.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)

			var body errorBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, assert.AnError.Error())
		})
	}
}

func TestRespondJSON_NilBodyWritesNothing(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) (domain.SubmitRequest, error) {
		var req domain.SubmitRequest
		err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/completions", strings.NewReader(body)), &req)
		return req, err
	}

	req, err := decode(`{"kind":"daily_boost","instance_id":"walk-10","local_date":"2026-03-14"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.KindDailyBoost, req.Kind)
	assert.Equal(t, "walk-10", req.InstanceID)

	_, err = decode(`{"kind":`)
	assert.True(t, domain.IsValidation(err))

	_, err = decode(`{"instance_id":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
	require.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "1 MiB")
}

// --- middleware ---

func TestClientIP(t *testing.T) {
	tests := []struct {
		name, forwarded, remote, want string
	}{
		{"first forwarded hop", "1.2.3.4, 5.6.7.8", "10.0.0.1:5000", "1.2.3.4"},
		{"forwarded with spaces", "  1.2.3.4  ", "", "1.2.3.4"},
		{"remote addr host", "", "10.0.0.1:54321", "10.0.0.1"},
		{"remote addr without port", "", "10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/players/me", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/players/me", nil)
	r.Header.Set("X-Request-ID", "cli-retry-7")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "cli-retry-7", seen)
	assert.Equal(t, "cli-retry-7", w.Header().Get("X-Request-ID"))

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mux := http.NewServeMux()
	mux.HandleFunc("/health", okHandler)
	mux.HandleFunc("/completions", func(w http.ResponseWriter, _ *http.Request) {
		RespondError(w, domain.ErrTransient("store down", nil))
	})
	h := RequestLogger(logger)(mux)

	levelOf := func(path string) string {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		return line["level"].(string)
	}

	assert.Equal(t, "DEBUG", levelOf("/health"))
	assert.Equal(t, "WARN", levelOf("/completions"))
	assert.Equal(t, "INFO", levelOf("/players/me"))
}

func TestCORSWithOrigins(t *testing.T) {
	h := CORSWithOrigins("https://app.fuelpoints.io")(http.HandlerFunc(okHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/completions", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.fuelpoints.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/players/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
}

func TestJSONContentType(t *testing.T) {
	w := httptest.NewRecorder()
	JSONContentType(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boosts", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(noopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil instance")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/completions", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, domain.CodeInternal, body.Code)
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusConflict)
	assert.Equal(t, http.StatusConflict, rw.status)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Same(t, rec, rw.Unwrap())

	_, _, err := rw.Hijack()
	assert.Error(t, err)
}

// --- health ---

func TestHealthHandler(t *testing.T) {
	get := func(h http.HandlerFunc) (int, HealthStatus) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		var st HealthStatus
		require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
		return w.Code, st
	}

	code, st := get(HealthHandler(nil, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", st.Status)

	code, st = get(HealthHandler(nil, func() int { return 3 }))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, st.Streams)

	code, st = get(HealthHandler(func(context.Context) error { return assert.AnError }, nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unreachable", st.Store)
	assert.NotEmpty(t, st.Error)
}

// --- rate limiting ---

func TestRateLimitPlayer(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	h := RateLimitPlayer(guard.NewRateLimiter(2, time.Minute, clk))(http.HandlerFunc(okHandler))

	call := func(player string) int {
		ctx := auth.WithSubject(context.Background(), auth.RealmPlayer, player)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/completions", nil).WithContext(ctx))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("p1"))
	assert.Equal(t, http.StatusOK, call("p1"))
	assert.Equal(t, http.StatusTooManyRequests, call("p1"))
	assert.Equal(t, http.StatusOK, call("p2"))

	clk.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, call("p1"))
}
