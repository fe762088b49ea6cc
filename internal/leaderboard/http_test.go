package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
)

func newTestMux(h *HTTPHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/leaderboards/{window}", h.HandleGet)
	mux.HandleFunc("GET /v1/leaderboards/lobby/{code}", h.HandleGetLobby)
	return mux
}

func TestHandleGetFromRedis(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	require.NoError(t, svc.RecordResult(context.Background(), RecordRequest{Participant: "alice", Score: 300}))

	rec := httptest.NewRecorder()
	newTestMux(NewHTTPHandler(svc, nil, zerolog.Nop())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/daily", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp windowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "redis", resp.Source)
	require.Len(t, resp.Top, 1)
	assert.Equal(t, 300, resp.Top[0].Score)
}

func TestHandleGetFallsBackToSnapshot(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	store := new(mockSnapshotStore)
	store.On("Latest", mock.Anything, WindowWeekly).Return(repository.Snapshot{
		Window:  WindowWeekly,
		Entries: []byte(`[{"rank":1,"participant":"old","score":10},{"rank":2,"participant":"older","score":5}]`),
	}, nil)

	rec := httptest.NewRecorder()
	newTestMux(NewHTTPHandler(svc, store, zerolog.Nop())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/weekly?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp windowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "snapshot", resp.Source)
	require.Len(t, resp.Top, 1)
	assert.Equal(t, "old", resp.Top[0].Participant)
}

func TestHandleGetUnknownWindow(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	rec := httptest.NewRecorder()
	newTestMux(NewHTTPHandler(svc, nil, zerolog.Nop())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/yearly", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_leaderboard_window")
}

func TestHandleGetLobby(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	require.NoError(t, svc.RecordLobbyResult(context.Background(), "QWE123", RecordRequest{Participant: "erin", Score: 50, Won: true}))

	rec := httptest.NewRecorder()
	newTestMux(NewHTTPHandler(svc, nil, zerolog.Nop())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/lobby/QWE123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp lobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "QWE123", resp.LobbyCode)
	require.Len(t, resp.Top, 1)
	assert.Equal(t, 1, resp.Top[0].Wins)
}
