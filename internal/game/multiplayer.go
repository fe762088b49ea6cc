package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/metrics"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

const defaultFeedbackDelay = 3 * time.Second

// MultiplayerOptions tunes lobby games.
type MultiplayerOptions struct {
	// FeedbackDelay is the pause between closing a question and showing the next.
	FeedbackDelay time.Duration
	Logger        zerolog.Logger
}

// Multiplayer runs lobby games on top of the solo runtime's engine settings,
// persistence and lifecycle.
type Multiplayer struct {
	svc           *Service
	lobbies       *LobbyManager
	hub           Notifier
	feedbackDelay time.Duration
	logger        zerolog.Logger

	mu    sync.Mutex
	games map[string]*Game
}

func NewMultiplayer(svc *Service, lobbies *LobbyManager, hub Notifier, opts MultiplayerOptions) *Multiplayer {
	delay := opts.FeedbackDelay
	if delay <= 0 {
		delay = defaultFeedbackDelay
	}
	return &Multiplayer{
		svc:           svc,
		lobbies:       lobbies,
		hub:           hub,
		feedbackDelay: delay,
		logger:        opts.Logger.With().Str("component", "multiplayer").Logger(),
		games:         make(map[string]*Game),
	}
}

// CreateLobby opens a lobby hosted by host.
func (m *Multiplayer) CreateLobby(ctx context.Context, host, name, avatar string, settings StartQuizRequest) (Lobby, error) {
	lobby, err := m.lobbies.Create(ctx, host, name, avatar, settings)
	if err != nil {
		return Lobby{}, err
	}
	m.hub.Join(lobby.Code, host)
	return lobby, nil
}

func (m *Multiplayer) Lobby(ctx context.Context, code string) (Lobby, error) {
	return m.lobbies.Get(ctx, code)
}

// JoinLobby adds a player and announces the new roster.
func (m *Multiplayer) JoinLobby(ctx context.Context, code, username, name, avatar string) (Lobby, error) {
	lobby, err := m.lobbies.Join(ctx, code, username, name, avatar)
	if err != nil {
		return Lobby{}, err
	}
	m.hub.Join(code, username)
	m.announce(lobby)
	return lobby, nil
}

// LeaveLobby removes a player, abandoning their session if a game is running.
func (m *Multiplayer) LeaveLobby(ctx context.Context, code, username string) error {
	if g, ok := m.game(code); ok {
		if err := g.Leave(ctx, username); err != nil {
			m.logger.Warn().Err(err).Str("lobby_code", code).Str("player", username).Msg("failed to abandon player session")
		}
	}

	lobby, deleted, err := m.lobbies.Leave(ctx, code, username)
	m.hub.Leave(code, username)
	if err != nil {
		return err
	}
	if !deleted {
		m.announce(lobby)
	}
	return nil
}

// Disconnect handles a dropped connection: a waiting lobby loses the player,
// a running game keeps their session so they can reconnect.
func (m *Multiplayer) Disconnect(ctx context.Context, code, username string) {
	if _, ok := m.game(code); ok {
		return
	}
	if err := m.LeaveLobby(ctx, code, username); err != nil {
		m.logger.Debug().Err(err).Str("lobby_code", code).Str("player", username).Msg("leave on disconnect failed")
	}
}

func (m *Multiplayer) SetReady(ctx context.Context, code, username string, ready bool) (Lobby, error) {
	lobby, err := m.lobbies.SetReady(ctx, code, username, ready)
	if err != nil {
		return Lobby{}, err
	}
	m.announce(lobby)
	return lobby, nil
}

// StartGame fetches one question set and starts a synchronized round for every
// lobby member. Only the host may start.
func (m *Multiplayer) StartGame(ctx context.Context, code, requester string) error {
	lobby, err := m.lobbies.Get(ctx, code)
	if err != nil {
		return err
	}
	if lobby.Host != requester {
		return ErrNotHost
	}
	if lobby.Status != LobbyWaiting {
		return ErrLobbyStarted
	}

	set, err := m.svc.questions.Fetch(ctx, lobby.Settings.questionRequest())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuestionsUnavailable, err)
	}
	prepared, err := quiz.Prepare(set.Questions)
	if err != nil {
		return err
	}

	lobby, err = m.lobbies.MarkPlaying(ctx, code, requester)
	if err != nil {
		return err
	}

	g := &Game{
		code:          code,
		questions:     prepared,
		players:       lobby.Players,
		runners:       make(map[string]*Runner, len(lobby.Players)),
		inbox:         newMailbox[gameEvent](),
		hub:           m.hub,
		svc:           m.svc,
		lobbies:       m.lobbies,
		feedbackDelay: m.feedbackDelay,
		logger:        m.logger.With().Str("lobby_code", code).Logger(),
		answered:      make(map[string]quiz.AnswerRecord, len(lobby.Players)),
		left:          make(map[string]bool, len(lobby.Players)),
		tallies:       make(map[string]*tally, len(lobby.Players)),
	}
	for _, p := range lobby.Players {
		sess, err := m.svc.newSession(uuid.NewString(), p.Username, prepared)
		if err != nil {
			return err
		}
		g.runners[p.Username] = NewRunner(sess, RunnerOptions{
			TickInterval: m.svc.opts.TickInterval,
			IdleTTL:      m.svc.opts.IdleTTL,
			Source:       set.Source,
			Listener:     playerListener{inbox: g.inbox, player: p.Username},
			Logger:       m.svc.opts.Logger,
		})
		g.tallies[p.Username] = &tally{}
	}

	m.mu.Lock()
	m.games[code] = g
	m.mu.Unlock()

	m.announce(lobby)
	metrics.SessionsStarted.WithLabelValues("multiplayer").Add(float64(len(lobby.Players)))

	m.svc.wg.Add(1)
	go func() {
		defer m.svc.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.games, code)
			m.mu.Unlock()
		}()
		if err := g.Run(m.svc.ctx); err != nil {
			g.logger.Warn().Err(err).Msg("game ended with error")
		}
	}()

	m.logger.Info().
		Str("lobby_code", code).
		Int("players", len(lobby.Players)).
		Int("questions", len(prepared)).
		Str("source", set.Source).
		Msg("game started")
	return nil
}

// Submit forwards an answer from a player to their running session.
func (m *Multiplayer) Submit(ctx context.Context, code, username, questionID, answer string) (quiz.AnswerRecord, bool, error) {
	g, ok := m.game(code)
	if !ok {
		return quiz.AnswerRecord{}, false, ErrGameNotRunning
	}
	return g.Submit(ctx, username, questionID, answer)
}

// PlayerView returns the player's view of the running game.
func (m *Multiplayer) PlayerView(ctx context.Context, code, username string) (View, error) {
	g, ok := m.game(code)
	if !ok {
		return View{}, ErrGameNotRunning
	}
	return g.View(ctx, username)
}

func (m *Multiplayer) game(code string) (*Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[code]
	return g, ok
}

func (m *Multiplayer) announce(lobby Lobby) {
	msg, err := ws.NewMessage(ws.TypeLobbyUpdate, lobbyPayload(lobby, m.lobbies.MaxPlayers()), "")
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to encode lobby update")
		return
	}
	if err := m.hub.Broadcast(lobby.Code, msg); err != nil {
		m.logger.Debug().Err(err).Str("lobby_code", lobby.Code).Msg("lobby update incomplete")
	}
}
