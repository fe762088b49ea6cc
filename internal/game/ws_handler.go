package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

// WSHandler manages WebSocket connections and routes lobby and game messages.
type WSHandler struct {
	mp       *Multiplayer
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the game WebSocket handler.
func NewWSHandler(mp *Multiplayer, hub *ws.Hub, upgrader *websocket.Upgrader, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		mp:       mp,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "game_ws").Logger(),
	}
}

// client is the per-connection state.
type client struct {
	username    string
	displayName string

	mu      sync.Mutex
	lobbies map[string]struct{}
}

func (c *client) joined(code string) {
	c.mu.Lock()
	c.lobbies[code] = struct{}{}
	c.mu.Unlock()
}

func (c *client) left(code string) {
	c.mu.Lock()
	delete(c.lobbies, code)
	c.mu.Unlock()
}

func (c *client) codes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.lobbies))
	for code := range c.lobbies {
		out = append(out, code)
	}
	return out
}

// ServeHTTP upgrades an authenticated request. The auth middleware accepts the
// token as a ?token= query parameter for browsers.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok || claims == nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(context.WithoutCancel(r.Context()), conn, claims.Username, claims.DisplayName)
}

// HandleConnection serves one connection until the peer goes away.
func (h *WSHandler) HandleConnection(ctx context.Context, conn *websocket.Conn, username, displayName string) {
	wsConn := ws.NewConnection(conn, h.logger.With().Str("username", username).Logger())
	h.hub.RegisterConnection(username, wsConn)

	go wsConn.WritePump()

	c := &client{username: username, displayName: displayName, lobbies: make(map[string]struct{})}
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, c, msg)
	})

	// A newer connection for the same user keeps the lobbies.
	if h.hub.UnregisterConnection(username, wsConn) {
		for _, code := range c.codes() {
			h.mp.Disconnect(ctx, code, username)
		}
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, c *client, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeJoinLobby:
		return h.handleJoinLobby(ctx, c, msg)
	case ws.TypeLeaveLobby:
		return h.handleLeaveLobby(ctx, c, msg)
	case ws.TypeReadyState:
		return h.handleReadyState(ctx, c, msg)
	case ws.TypeStartGame:
		return h.handleStartGame(ctx, c, msg)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, c, msg)
	case ws.TypeRequestState:
		return h.handleRequestState(ctx, c, msg)
	default:
		return h.sendError(c.username, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) handleJoinLobby(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.JoinLobbyPayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}
	name := req.Name
	if name == "" {
		name = c.displayName
	}

	if _, err := h.mp.JoinLobby(ctx, code, c.username, name, req.Avatar); err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}
	c.joined(code)

	// Rejoining a running game resumes where the session is.
	if v, err := h.mp.PlayerView(ctx, code, c.username); err == nil {
		h.sendView(c.username, code, v)
	}
	return nil
}

func (h *WSHandler) handleLeaveLobby(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.LobbyCodePayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}
	c.left(code)
	if err := h.mp.LeaveLobby(ctx, code, c.username); err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}
	return nil
}

func (h *WSHandler) handleReadyState(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.ReadyStatePayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}
	if _, err := h.mp.SetReady(ctx, code, c.username, req.Ready); err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}
	return nil
}

func (h *WSHandler) handleStartGame(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.LobbyCodePayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}
	if err := h.mp.StartGame(ctx, code, c.username); err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}
	return nil
}

func (h *WSHandler) handleSubmitAnswer(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}

	rec, dup, err := h.mp.Submit(ctx, code, c.username, req.QuestionID, req.Answer)
	if err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}

	ack := ws.AnswerAckPayload{
		Code:          code,
		QuestionID:    rec.QuestionID,
		Accepted:      true,
		Duplicate:     dup,
		TimedOut:      rec.TimedOut(),
		PointsAwarded: rec.PointsAwarded,
		Correct:       rec.Correct,
	}
	if v, err := h.mp.PlayerView(ctx, code, c.username); err == nil {
		ack.Score = v.Score
		ack.Streak = v.Streak
	}
	return h.send(c.username, ws.TypeAnswerAck, ack, msg.RequestID)
}

func (h *WSHandler) handleRequestState(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.LobbyCodePayload
	code, ok := h.decode(c, msg, &req, &req.Code)
	if !ok {
		return nil
	}

	lobby, err := h.mp.Lobby(ctx, code)
	if err != nil {
		return h.sendDomainError(c.username, msg.RequestID, err)
	}
	if _, member := lobby.Player(c.username); !member {
		return h.sendDomainError(c.username, msg.RequestID, ErrNotInLobby)
	}
	if err := h.send(c.username, ws.TypeLobbyUpdate, lobbyPayload(lobby, h.mp.lobbies.MaxPlayers()), msg.RequestID); err != nil {
		return err
	}
	if v, err := h.mp.PlayerView(ctx, code, c.username); err == nil {
		h.sendView(c.username, code, v)
	}
	return nil
}

// decode unmarshals and validates a payload and normalizes its lobby code.
// Failures are reported to the client.
func (h *WSHandler) decode(c *client, msg ws.Message, dst any, code *string) (string, bool) {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		_ = h.sendError(c.username, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid payload")
		return "", false
	}
	if err := validate.Struct(dst); err != nil {
		_ = h.sendError(c.username, msg.RequestID, httperrors.ErrCodeValidationFailed, validationError(err).Message)
		return "", false
	}
	normalized, ok := normalizeCode(*code)
	if !ok {
		_ = h.sendError(c.username, msg.RequestID, httperrors.ErrCodeInvalidLobbyCode, "Lobby code must be 6 letters or digits")
		return "", false
	}
	return normalized, true
}

func (h *WSHandler) sendView(username, code string, v View) {
	if v.Question == nil || v.Phase == "" {
		return
	}
	err := h.send(username, ws.TypeQuestion, ws.QuestionPayload{
		Code:           code,
		Index:          v.Index,
		Total:          v.Total,
		ID:             v.Question.ID,
		Text:           v.Question.Text,
		Kind:           string(v.Question.Kind),
		Options:        v.Question.Options,
		Difficulty:     string(v.Question.Difficulty),
		AllowedSeconds: v.Allowed,
	}, "")
	if err != nil {
		h.logger.Debug().Err(err).Str("username", username).Msg("failed to send state")
	}
}

func (h *WSHandler) send(username, typ string, payload any, requestID string) error {
	msg, err := ws.NewMessage(typ, payload, requestID)
	if err != nil {
		return err
	}
	return h.hub.SendToUser(username, msg)
}

func (h *WSHandler) sendDomainError(username, requestID string, err error) error {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("username", username).Msg("game operation failed")
	}
	return h.sendError(username, requestID, e.Code, e.Message)
}

func (h *WSHandler) sendError(username, requestID, code, message string) error {
	return h.send(username, ws.TypeError, ws.ErrorPayload{Code: code, Message: message}, requestID)
}
