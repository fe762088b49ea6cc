package game

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

type wsFixture struct {
	mp     *Multiplayer
	server *httptest.Server
}

func newWSFixture(t *testing.T) wsFixture {
	t.Helper()
	f := newServiceFixture(t, fakeSource{questions: testQuestions()}, nil, ServiceOptions{})
	lobbies, _ := newTestLobbies(t, LobbyOptions{})
	hub := ws.NewHub(zerolog.Nop())
	mp := NewMultiplayer(f.svc, lobbies, hub, MultiplayerOptions{FeedbackDelay: 10 * time.Millisecond, Logger: zerolog.Nop()})
	upgrader := &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	handler := NewWSHandler(mp, hub, upgrader, zerolog.Nop())

	// Stands in for the auth middleware.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		if user != "" {
			r = r.WithContext(auth.WithClaims(r.Context(), &jwt.Claims{Username: user, DisplayName: strings.ToUpper(user)}))
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return wsFixture{mp: mp, server: server}
}

func (f wsFixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(typ, payload, "req-"+typ)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWSGameRoundTrip(t *testing.T) {
	f := newWSFixture(t)
	lobby, err := f.mp.CreateLobby(t.Context(), "alice", "Alice", "", StartQuizRequest{Count: 2})
	require.NoError(t, err)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	code := strings.ToLower(lobby.Code)

	sendMsg(t, alice, ws.TypeJoinLobby, ws.JoinLobbyPayload{Code: code})
	readUntil(t, alice, ws.TypeLobbyUpdate)
	sendMsg(t, bob, ws.TypeJoinLobby, ws.JoinLobbyPayload{Code: code})

	var update ws.LobbyUpdatePayload
	for len(update.Players) < 2 {
		require.NoError(t, json.Unmarshal(readUntil(t, alice, ws.TypeLobbyUpdate).Payload, &update))
	}
	assert.Equal(t, "BOB", update.Players[1].Name)

	sendMsg(t, bob, ws.TypeStartGame, ws.LobbyCodePayload{Code: code})
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ws.TypeError).Payload, &errPayload))
	assert.Equal(t, httperrors.ErrCodeNotHost, errPayload.Code)

	sendMsg(t, alice, ws.TypeStartGame, ws.LobbyCodePayload{Code: code})
	for round, answer := range []string{"A", "443"} {
		for _, conn := range []*websocket.Conn{alice, bob} {
			var q ws.QuestionPayload
			require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeQuestion).Payload, &q))
			require.Equal(t, round, q.Index)

			sendMsg(t, conn, ws.TypeSubmitAnswer, ws.SubmitAnswerPayload{Code: code, QuestionID: q.ID, Answer: answer})
			var ack ws.AnswerAckPayload
			ackMsg := readUntil(t, conn, ws.TypeAnswerAck)
			require.NoError(t, json.Unmarshal(ackMsg.Payload, &ack))
			assert.Equal(t, "req-"+ws.TypeSubmitAnswer, ackMsg.RequestID)
			assert.True(t, ack.Accepted)
			assert.True(t, ack.Correct)
		}
		readUntil(t, alice, ws.TypeQuestionClosed)
	}

	var done ws.GameCompletePayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ws.TypeGameComplete).Payload, &done))
	require.Len(t, done.Results, 2)
	for _, r := range done.Results {
		assert.Equal(t, 2, r.CorrectCount)
	}
}

func TestWSRejectsUnknownMessages(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "carol")

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "dance"}))
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeError).Payload, &payload))
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, payload.Code)

	sendMsg(t, conn, ws.TypeJoinLobby, ws.JoinLobbyPayload{Code: "nope"})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeError).Payload, &payload))
	assert.Equal(t, httperrors.ErrCodeValidationFailed, payload.Code)

	sendMsg(t, conn, ws.TypeJoinLobby, ws.JoinLobbyPayload{Code: "ZZZZZZ"})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, ws.TypeError).Payload, &payload))
	assert.Equal(t, httperrors.ErrCodeLobbyNotFound, payload.Code)
}

func TestWSRequiresClaims(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
