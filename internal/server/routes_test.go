package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/game"
	"github.com/scythe504/hotseat-backend/internal/metrics"
	"github.com/scythe504/hotseat-backend/internal/store"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, internal.Message[any]) {}

type envelope[T any] struct {
	StatusCode int `json:"status_code"`
	Data       T   `json:"data"`
}

func newTestServer(t *testing.T) (*game.Manager, http.Handler) {
	t.Helper()
	reg := metrics.NewRegistry()
	m := game.NewManager(store.NewMemoryStore(), nopBroadcaster{},
		game.WithClock(clockwork.NewFakeClock()),
		game.WithMetrics(metrics.NewEngineMetrics(reg)),
		game.WithCodeGenerator(func() string { return "DEMO01" }))
	t.Cleanup(m.Close)

	return m, NewServer(m, nil, metrics.Handler(reg), []string{"https://host.example"}).RegisterRoutes()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateSession(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/session", `{"title":"Friday demo"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decode[createSessionResponse](t, rec)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "DEMO01", env.Data.Code)
}

func TestCreateSession_BadRequests(t *testing.T) {
	_, h := newTestServer(t)

	for _, body := range []string{`{"title":"   "}`, `{}`, `not json`} {
		rec := do(h, http.MethodPost, "/api/session", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestGetSession(t *testing.T) {
	m, h := newTestServer(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "Friday demo")
	require.NoError(t, err)
	_, _, err = m.Join(ctx, "DEMO01", "Alice")
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/api/session/demo01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[internal.SessionSnapshot](t, rec)
	assert.Equal(t, "DEMO01", env.Data.Code)
	assert.Equal(t, "Friday demo", env.Data.Title)
	assert.Equal(t, internal.StatusLobby, env.Data.Status)
	assert.Equal(t, 1, env.Data.AttendeesCount)
	require.Len(t, env.Data.Participants, 1)
	assert.Equal(t, "Alice", env.Data.Participants[0].Name)
}

func TestGetSession_NotFound(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/session/NOPE00", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, "/api/session/NOPE00/scoreboard", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetScoreboard(t *testing.T) {
	m, h := newTestServer(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "Friday demo")
	require.NoError(t, err)
	for _, name := range []string{"Alice", "Bob"} {
		_, _, err = m.Join(ctx, "DEMO01", name)
		require.NoError(t, err)
	}

	rec := do(h, http.MethodGet, "/api/session/DEMO01/scoreboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[scoreboardResponse](t, rec)
	require.Len(t, env.Data.Scoreboard, 2)
	assert.Equal(t, "Alice", env.Data.Scoreboard[0].ParticipantName)
	assert.Zero(t, env.Data.Scoreboard[0].RoundCount)
}

type failingSessions struct{}

func (failingSessions) CreateSession(context.Context, string) (internal.Session, error) {
	return internal.Session{}, errors.New("connection refused")
}

func (failingSessions) Snapshot(context.Context, string) (internal.SessionSnapshot, error) {
	return internal.SessionSnapshot{}, errors.New("connection refused")
}

func (failingSessions) Scoreboard(context.Context, string) ([]internal.ScoreboardRow, error) {
	return nil, errors.New("connection refused")
}

func TestInfrastructureErrorsAreHidden(t *testing.T) {
	h := NewServer(failingSessions{}, nil, nil, []string{"*"}).RegisterRoutes()

	rec := do(h, http.MethodPost, "/api/session", `{"title":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create session", decode[string](t, rec).Data)

	rec = do(h, http.MethodGet, "/api/session/DEMO01", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHealthAndMetrics(t *testing.T) {
	m, h := newTestServer(t)
	_, err := m.CreateSession(context.Background(), "Friday demo")
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hotseat_sessions_created_total 1")
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "https://host.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://host.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
