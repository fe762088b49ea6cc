package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       *Service
	snapshots SnapshotStore
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler; snapshots may be nil.
func NewHTTPHandler(svc *Service, snapshots SnapshotStore, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

type windowResponse struct {
	Window      string                `json:"window"`
	Top         []ws.LeaderboardEntry `json:"top"`
	Source      string                `json:"source"`
	RetrievedAt string                `json:"retrievedAt"`
}

type lobbyResponse struct {
	LobbyCode   string                `json:"lobby_code"`
	Top         []ws.LeaderboardEntry `json:"top"`
	RetrievedAt string                `json:"retrievedAt"`
}

// HandleGet responds with the current leaderboard for a window.
// Route: GET /v1/leaderboards/{window}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	window := r.PathValue("window")
	if !isValidWindow(window) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard window")
		return
	}
	limit := parseLimit(r)

	ctx := r.Context()
	var (
		top    []ws.LeaderboardEntry
		source = "redis"
	)

	if h.svc != nil {
		if entries, err := h.svc.Top(ctx, window, limit); err == nil {
			top = toWSEntries(entries)
		} else {
			h.logger.Warn().Err(err).Str("window", window).Msg("redis leaderboard fetch failed")
		}
	}

	if len(top) == 0 {
		source = "snapshot"
		top = h.snapshotFallback(ctx, window, limit)
	}
	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	writeJSON(w, windowResponse{
		Window:      window,
		Top:         top,
		Source:      source,
		RetrievedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleGetLobby responds with the board of a single lobby.
// Route: GET /v1/leaderboards/lobby/{code}?limit=10
func (h *HTTPHandler) HandleGetLobby(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidLobbyCode, "Lobby code required")
		return
	}

	entries, err := h.svc.LobbyTop(r.Context(), code, parseLimit(r))
	if err != nil {
		h.logger.Warn().Err(err).Str("lobby_code", code).Msg("lobby leaderboard fetch failed")
		httperrors.RespondInternalError(w, "Failed to fetch leaderboard")
		return
	}

	writeJSON(w, lobbyResponse{
		LobbyCode:   code,
		Top:         toWSEntries(entries),
		RetrievedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, window string, limit int) []ws.LeaderboardEntry {
	if h.snapshots == nil {
		return nil
	}
	snap, err := h.snapshots.Latest(ctx, window)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Warn().Err(err).Str("window", window).Msg("snapshot fetch failed")
		}
		return nil
	}

	var entries []ws.LeaderboardEntry
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func parseLimit(r *http.Request) int {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
