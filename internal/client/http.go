// Package client talks to the Fuel Points API on behalf of one player: an
// HTTP implementation of the authoritative store and a websocket listener
// for state-changed notifications.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// HTTPStore implements authority.Store and authority.Lifecycle over the API.
// The player is identified by the bearer token; playerID arguments must match
// the token's subject and are otherwise ignored by the server.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore creates a store targeting baseURL (e.g. "http://127.0.0.1:3100").
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func (s *HTTPStore) WithHTTPClient(c *http.Client) *HTTPStore {
	s.client = c
	return s
}

func (s *HTTPStore) SubmitCompletion(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	var out domain.SubmitResult
	if err := s.do(ctx, http.MethodPost, "/completions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) GetPlayerState(ctx context.Context, _ uuid.UUID) (*domain.PlayerState, error) {
	var out domain.PlayerState
	if err := s.do(ctx, http.MethodGet, "/players/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) GetInstanceState(ctx context.Context, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	var out domain.InstanceState
	path := "/instances/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(instanceID)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) TriggerLevelUpIfEligible(ctx context.Context, _ uuid.UUID, currentFP int64) (*domain.LevelUpResult, error) {
	var out domain.LevelUpResult
	body := map[string]int64{"current_fp": currentFP}
	if err := s.do(ctx, http.MethodPost, "/players/me/level-up", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) StartChallenge(ctx context.Context, _ uuid.UUID, challengeID string) (*domain.InstanceState, error) {
	var out domain.InstanceState
	if err := s.do(ctx, http.MethodPost, "/challenges", map[string]string{"challenge_id": challengeID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) StartCustomChallenge(ctx context.Context, params domain.StartCustomChallengeParams) (*domain.InstanceState, error) {
	var out domain.InstanceState
	if err := s.do(ctx, http.MethodPost, "/custom-challenges", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) StartQuest(ctx context.Context, _ uuid.UUID, questID string) (*domain.InstanceState, error) {
	var out domain.InstanceState
	if err := s.do(ctx, http.MethodPost, "/quests", map[string]string{"quest_id": questID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) CancelInstance(ctx context.Context, _ uuid.UUID, kind domain.ActionKind, instanceID string) (*domain.InstanceState, error) {
	var out domain.InstanceState
	path := "/instances/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(instanceID) + "/cancel"
	if err := s.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPStore) ListBoostPool(ctx context.Context, _ uuid.UUID, today domain.LocalDate) ([]catalog.Boost, error) {
	var out []catalog.Boost
	path := "/boosts?date=" + url.QueryEscape(string(today))
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends one request. Transport failures and 5xx responses come back as
// TRANSIENT; any other error status is rebuilt from the body's code.
func (s *HTTPStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ErrTransient(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ErrTransient("decode "+method+" "+path, err)
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if resp.StatusCode >= 500 {
		cause := errors.New(string(bytes.TrimSpace(raw)))
		return domain.ErrTransient(fmt.Sprintf("%s %s: %d", method, path, resp.StatusCode), cause)
	}
	if eb.Code == "" {
		return domain.NewAppError(domain.CodeInternal, fmt.Sprintf("%s %s: %d %s", method, path, resp.StatusCode, bytes.TrimSpace(raw)), resp.StatusCode)
	}
	return domain.NewAppError(eb.Code, eb.Message, resp.StatusCode)
}
