package game

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// LobbyStatus is the lifecycle of a lobby.
type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "WAITING"
	LobbyPlaying  LobbyStatus = "PLAYING"
	LobbyFinished LobbyStatus = "FINISHED"
)

// PlayerStatus is a player's state within a lobby.
type PlayerStatus string

const (
	PlayerWaiting  PlayerStatus = "WAITING"
	PlayerReady    PlayerStatus = "READY"
	PlayerPlaying  PlayerStatus = "PLAYING"
	PlayerFinished PlayerStatus = "FINISHED"
)

const (
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength        = 6
	defaultMaxPlayers = 6
	defaultLobbyTTL   = 2 * time.Hour
	lockTTL           = 5 * time.Second
	hostColor         = "#9fef00"
	defaultAvatar     = "👤"
)

var playerColors = []string{
	"#FF5733", "#33FF57", "#3357FF", "#FF33A8", "#33FFF5",
	"#F5FF33", "#A833FF", "#FF8333", "#8CFF33", "#33B5FF",
}

// Player is a lobby member.
type Player struct {
	Username       string       `json:"username"`
	Name           string       `json:"name"`
	Avatar         string       `json:"avatar"`
	Color          string       `json:"color"`
	IsHost         bool         `json:"is_host"`
	Status         PlayerStatus `json:"status"`
	Score          int          `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	JoinedAt       time.Time    `json:"joined_at"`
}

// Lobby is the shared state of a multiplayer game, stored as JSON in Redis.
type Lobby struct {
	Code      string           `json:"code"`
	Host      string           `json:"host"`
	Status    LobbyStatus      `json:"status"`
	Settings  StartQuizRequest `json:"settings"`
	Players   []Player         `json:"players"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Player returns the member with username.
func (l *Lobby) Player(username string) (*Player, bool) {
	for i := range l.Players {
		if l.Players[i].Username == username {
			return &l.Players[i], true
		}
	}
	return nil, false
}

// PlayerScore is the final tally written back to a lobby.
type PlayerScore struct {
	Score          int
	CorrectAnswers int
}

// LobbyOptions tunes the lobby store.
type LobbyOptions struct {
	TTL        time.Duration
	MaxPlayers int
	// LockWait bounds how long a mutation waits for the lobby lock.
	LockWait time.Duration
}

// LobbyManager persists lobbies in Redis. Mutations hold a per-lobby lock.
type LobbyManager struct {
	redis      *redis.Client
	ttl        time.Duration
	maxPlayers int
	lockWait   time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// unlockScript deletes the lock only if we still own it.
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func NewLobbyManager(rdb *redis.Client, opts LobbyOptions, logger zerolog.Logger) *LobbyManager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultLobbyTTL
	}
	maxPlayers := opts.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}
	wait := opts.LockWait
	if wait <= 0 {
		wait = time.Second
	}
	return &LobbyManager{
		redis:      rdb,
		ttl:        ttl,
		maxPlayers: maxPlayers,
		lockWait:   wait,
		logger:     logger.With().Str("component", "lobby_manager").Logger(),
		now:        time.Now,
	}
}

// MaxPlayers is the lobby capacity.
func (m *LobbyManager) MaxPlayers() int {
	return m.maxPlayers
}

func lobbyKey(code string) string { return fmt.Sprintf("lobby:%s", code) }
func lockKey(code string) string  { return fmt.Sprintf("lock:lobby:%s", code) }

// normalizeCode upper-cases a code and checks its shape.
func normalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return "", false
		}
	}
	return code, true
}

func generateCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Create opens a new lobby with host as its first member.
func (m *LobbyManager) Create(ctx context.Context, host, name, avatar string, settings StartQuizRequest) (Lobby, error) {
	now := m.now().UTC()
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateCode()
		if err != nil {
			return Lobby{}, fmt.Errorf("generate lobby code: %w", err)
		}

		lobby := Lobby{
			Code:      code,
			Host:      host,
			Status:    LobbyWaiting,
			Settings:  settings,
			Players:   []Player{newPlayer(host, name, avatar, 0, true, now)},
			CreatedAt: now,
			UpdatedAt: now,
		}
		data, err := json.Marshal(lobby)
		if err != nil {
			return Lobby{}, fmt.Errorf("marshal lobby: %w", err)
		}

		created, err := m.redis.SetNX(ctx, lobbyKey(code), data, m.ttl).Result()
		if err != nil {
			return Lobby{}, fmt.Errorf("store lobby: %w", err)
		}
		if created {
			m.logger.Info().Str("lobby_code", code).Str("host", host).Msg("lobby created")
			return lobby, nil
		}
	}
	return Lobby{}, errors.New("could not allocate a unique lobby code")
}

func newPlayer(username, name, avatar string, index int, host bool, now time.Time) Player {
	if name == "" {
		name = username
	}
	if avatar == "" {
		avatar = defaultAvatar
	}
	color := playerColors[index%len(playerColors)]
	if host {
		color = hostColor
	}
	return Player{
		Username: username,
		Name:     name,
		Avatar:   avatar,
		Color:    color,
		IsHost:   host,
		Status:   PlayerWaiting,
		JoinedAt: now,
	}
}

// Get loads a lobby.
func (m *LobbyManager) Get(ctx context.Context, code string) (Lobby, error) {
	data, err := m.redis.Get(ctx, lobbyKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Lobby{}, ErrLobbyNotFound
	}
	if err != nil {
		return Lobby{}, fmt.Errorf("get lobby: %w", err)
	}

	var lobby Lobby
	if err := json.Unmarshal(data, &lobby); err != nil {
		return Lobby{}, fmt.Errorf("unmarshal lobby: %w", err)
	}
	return lobby, nil
}

// Join adds a player to a waiting lobby. Joining twice is a no-op.
func (m *LobbyManager) Join(ctx context.Context, code, username, name, avatar string) (Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		if _, ok := l.Player(username); ok {
			return nil
		}
		if l.Status != LobbyWaiting {
			return ErrLobbyStarted
		}
		if len(l.Players) >= m.maxPlayers {
			return ErrLobbyFull
		}
		l.Players = append(l.Players, newPlayer(username, name, avatar, len(l.Players), false, m.now().UTC()))
		return nil
	})
}

// Leave removes a player. The host role passes to the earliest remaining
// member; the last one out deletes the lobby, reported by deleted.
func (m *LobbyManager) Leave(ctx context.Context, code, username string) (lobby Lobby, deleted bool, err error) {
	lobby, err = m.update(ctx, code, func(l *Lobby) error {
		idx := -1
		for i := range l.Players {
			if l.Players[i].Username == username {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotInLobby
		}
		l.Players = append(l.Players[:idx], l.Players[idx+1:]...)
		if len(l.Players) > 0 && l.Host == username {
			l.Host = l.Players[0].Username
			l.Players[0].IsHost = true
			l.Players[0].Color = hostColor
		}
		return nil
	})
	if err != nil {
		return Lobby{}, false, err
	}
	if len(lobby.Players) == 0 {
		if err := m.redis.Del(ctx, lobbyKey(code)).Err(); err != nil {
			return lobby, false, fmt.Errorf("delete lobby: %w", err)
		}
		m.logger.Info().Str("lobby_code", code).Msg("lobby closed")
		return lobby, true, nil
	}
	return lobby, false, nil
}

// SetReady toggles a waiting player's ready flag.
func (m *LobbyManager) SetReady(ctx context.Context, code, username string, ready bool) (Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		p, ok := l.Player(username)
		if !ok {
			return ErrNotInLobby
		}
		if l.Status != LobbyWaiting {
			return ErrLobbyStarted
		}
		p.Status = PlayerWaiting
		if ready {
			p.Status = PlayerReady
		}
		return nil
	})
}

// MarkPlaying moves a waiting lobby to PLAYING on the host's request.
func (m *LobbyManager) MarkPlaying(ctx context.Context, code, requester string) (Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		if l.Host != requester {
			return ErrNotHost
		}
		if l.Status != LobbyWaiting {
			return ErrLobbyStarted
		}
		l.Status = LobbyPlaying
		for i := range l.Players {
			l.Players[i].Status = PlayerPlaying
			l.Players[i].Score = 0
			l.Players[i].CorrectAnswers = 0
		}
		return nil
	})
}

// Finish records final scores and closes the game.
func (m *LobbyManager) Finish(ctx context.Context, code string, scores map[string]PlayerScore) (Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		l.Status = LobbyFinished
		for i := range l.Players {
			p := &l.Players[i]
			p.Status = PlayerFinished
			if s, ok := scores[p.Username]; ok {
				p.Score = s.Score
				p.CorrectAnswers = s.CorrectAnswers
			}
		}
		return nil
	})
}

// update applies fn to the stored lobby under the lobby lock.
func (m *LobbyManager) update(ctx context.Context, code string, fn func(l *Lobby) error) (Lobby, error) {
	unlock, err := m.lock(ctx, code)
	if err != nil {
		return Lobby{}, err
	}
	defer func() {
		if err := unlock(); err != nil {
			m.logger.Warn().Err(err).Str("lobby_code", code).Msg("failed to release lobby lock")
		}
	}()

	lobby, err := m.Get(ctx, code)
	if err != nil {
		return Lobby{}, err
	}
	if err := fn(&lobby); err != nil {
		return Lobby{}, err
	}
	lobby.UpdatedAt = m.now().UTC()

	data, err := json.Marshal(lobby)
	if err != nil {
		return Lobby{}, fmt.Errorf("marshal lobby: %w", err)
	}
	if err := m.redis.Set(ctx, lobbyKey(code), data, m.ttl).Err(); err != nil {
		return Lobby{}, fmt.Errorf("store lobby: %w", err)
	}
	return lobby, nil
}

// lock acquires the lobby lock, retrying briefly while another writer holds it.
func (m *LobbyManager) lock(ctx context.Context, code string) (func() error, error) {
	key := lockKey(code)
	token := uuid.NewString()

	backoff := retry.WithMaxDuration(m.lockWait, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		acquired, err := m.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !acquired {
			return retry.RetryableError(ErrLobbyBusy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func() error {
		return unlockScript.Run(context.WithoutCancel(ctx), m.redis, []string{key}, token).Err()
	}, nil
}
