package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/events"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

// Supported leaderboard windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var defaultWindows = []string{WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime}

const lobbyBoardTTL = 7 * 24 * time.Hour

// Entry represents a leaderboard record sent to clients.
type Entry struct {
	Participant   string  `json:"participant"`
	Score         int     `json:"score"`
	Wins          int     `json:"wins"`
	Games         int     `json:"games"`
	Accuracy      float64 `json:"accuracy"`
	CorrectTotal  int     `json:"-"`
	QuestionTotal int     `json:"-"`
}

// RecordRequest captures one finished session.
type RecordRequest struct {
	Participant   string
	Score         int
	CorrectCount  int
	QuestionCount int
	Won           bool
	LobbyCode     string
	Windows       []string
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN             int
	PubSubChannel    string
	Windows          []string
	EntryTTL         time.Duration
	RedisKeyPrefix   string
	SnapshotTopLimit int
}

// Service manages leaderboard state in Redis and emits updates over Pub/Sub.
type Service struct {
	redis          *redis.Client
	logger         zerolog.Logger
	topN           int
	pubsubChannel  string
	windows        []string
	entryTTL       time.Duration
	prefix         string
	snapshotTopLim int
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = defaultWindows
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	snapTop := opts.SnapshotTopLimit
	if snapTop <= 0 {
		snapTop = 100
	}

	return &Service{
		redis:          redis,
		logger:         logger.With().Str("component", "leaderboard").Logger(),
		topN:           topN,
		pubsubChannel:  channel,
		windows:        windows,
		entryTTL:       opts.EntryTTL,
		prefix:         prefix,
		snapshotTopLim: snapTop,
	}
}

// Windows lists the windows this service maintains.
func (s *Service) Windows() []string {
	return append([]string(nil), s.windows...)
}

// HandleQuizCompleted is the quiz.completed consumer. Multiplayer results also
// land on the lobby board; rank 1 counts as a win.
func (s *Service) HandleQuizCompleted(ctx context.Context, ev events.QuizCompleted) error {
	req := RecordRequest{
		Participant:   ev.Participant,
		Score:         ev.Result.TotalScore,
		CorrectCount:  ev.Result.CorrectCount,
		QuestionCount: ev.Result.QuestionCount,
		Won:           ev.LobbyCode != "" && ev.Result.Rank == 1,
		LobbyCode:     ev.LobbyCode,
	}
	if err := s.RecordResult(ctx, req); err != nil {
		return err
	}
	if ev.LobbyCode == "" {
		return nil
	}
	return s.RecordLobbyResult(ctx, ev.LobbyCode, req)
}

// RecordResult updates leaderboard metrics for applicable windows.
func (s *Service) RecordResult(ctx context.Context, req RecordRequest) error {
	if req.Participant == "" {
		return fmt.Errorf("record result: empty participant")
	}

	windows := req.Windows
	if len(windows) == 0 {
		windows = s.windows
	}

	entry := newEntry(req)
	for _, window := range windows {
		zKey := s.leaderboardKey(window)
		ttl := s.entryTTL
		if window == WindowAllTime {
			ttl = 0
		}
		if err := s.increment(ctx, zKey, s.metaKey(window, entry.Participant), entry, ttl); err != nil {
			return fmt.Errorf("update leaderboard window %s: %w", window, err)
		}
	}

	// Publish aggregate update for WebSocket consumers.
	go s.publishUpdate(context.WithoutCancel(ctx), windows)
	return nil
}

// Top retrieves the top N entries for a given window.
func (s *Service) Top(ctx context.Context, window string, limit int) ([]Entry, error) {
	entries, err := s.top(ctx, s.leaderboardKey(window), func(p string) string { return s.metaKey(window, p) }, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return entries, nil
}

// SnapshotTop returns the configured snapshot size for persistence jobs.
func (s *Service) SnapshotTop(ctx context.Context, window string) ([]Entry, error) {
	return s.Top(ctx, window, s.snapshotTopLim)
}

// RecordLobbyResult records a result on the lobby's own board, kept apart from
// the global windows.
func (s *Service) RecordLobbyResult(ctx context.Context, code string, req RecordRequest) error {
	entry := newEntry(req)
	err := s.increment(ctx, s.lobbyLeaderboardKey(code), s.lobbyMetaKey(code, entry.Participant), entry, lobbyBoardTTL)
	if err != nil {
		return fmt.Errorf("update lobby leaderboard %s: %w", code, err)
	}
	go s.publishLobbyUpdate(context.WithoutCancel(ctx), code)
	return nil
}

// LobbyTop retrieves the top N entries for a lobby.
func (s *Service) LobbyTop(ctx context.Context, code string, limit int) ([]Entry, error) {
	entries, err := s.top(ctx, s.lobbyLeaderboardKey(code), func(p string) string { return s.lobbyMetaKey(code, p) }, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch lobby leaderboard: %w", err)
	}
	return entries, nil
}

func newEntry(req RecordRequest) Entry {
	accuracy := 0.0
	if req.QuestionCount > 0 {
		accuracy = float64(req.CorrectCount) / float64(req.QuestionCount)
	}
	return Entry{
		Participant:   req.Participant,
		Score:         req.Score,
		Wins:          boolToInt(req.Won),
		Games:         1,
		Accuracy:      accuracy,
		CorrectTotal:  req.CorrectCount,
		QuestionTotal: req.QuestionCount,
	}
}

func (s *Service) increment(ctx context.Context, zKey, metaKey string, entry Entry, ttl time.Duration) error {
	pipe := s.redis.TxPipeline()
	pipe.ZIncrBy(ctx, zKey, float64(entry.Score), entry.Participant)
	pipe.HIncrBy(ctx, metaKey, "wins", int64(entry.Wins))
	pipe.HIncrBy(ctx, metaKey, "games", int64(entry.Games))
	pipe.HIncrBy(ctx, metaKey, "correct", int64(entry.CorrectTotal))
	pipe.HIncrBy(ctx, metaKey, "questions", int64(entry.QuestionTotal))
	if ttl > 0 {
		pipe.Expire(ctx, zKey, ttl)
		pipe.Expire(ctx, metaKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Service) top(ctx context.Context, zKey string, metaKey func(string) string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		participant, _ := z.Member.(string)
		entry, err := s.readMeta(ctx, metaKey(participant), participant)
		if err != nil {
			s.logger.Warn().Err(err).Str("participant", participant).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) readMeta(ctx context.Context, key, participant string) (Entry, error) {
	data, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Participant: participant}
	entry.Wins = parseInt(data["wins"])
	entry.Games = parseInt(data["games"])
	entry.CorrectTotal = parseInt(data["correct"])
	entry.QuestionTotal = parseInt(data["questions"])
	if entry.QuestionTotal > 0 {
		entry.Accuracy = float64(entry.CorrectTotal) / float64(entry.QuestionTotal)
	}
	return entry, nil
}

func (s *Service) publishUpdate(ctx context.Context, windows []string) {
	for _, window := range windows {
		entries, err := s.Top(ctx, window, 10)
		if err != nil {
			s.logger.Warn().Err(err).Str("window", window).Msg("failed to collect leaderboard update")
			continue
		}
		if len(entries) == 0 {
			continue
		}
		s.publish(ctx, ws.LeaderboardUpdatePayload{Window: window, Top: toWSEntries(entries)})
	}
}

func (s *Service) publishLobbyUpdate(ctx context.Context, code string) {
	entries, err := s.LobbyTop(ctx, code, 10)
	if err != nil {
		s.logger.Warn().Err(err).Str("lobby_code", code).Msg("failed to collect lobby leaderboard update")
		return
	}
	s.publish(ctx, ws.LeaderboardUpdatePayload{Window: WindowLobby, LobbyCode: code, Top: toWSEntries(entries)})
}

func (s *Service) publish(ctx context.Context, payload ws.LeaderboardUpdatePayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
		return
	}
	if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}

// WindowLobby tags updates that belong to a single lobby board.
const WindowLobby = "lobby"

func (s *Service) leaderboardKey(window string) string {
	return fmt.Sprintf("%s:%s", s.prefix, window)
}

func (s *Service) metaKey(window, participant string) string {
	return fmt.Sprintf("%s:%s:meta:%s", s.prefix, window, participant)
}

func (s *Service) lobbyLeaderboardKey(code string) string {
	return fmt.Sprintf("%s:lobby:%s", s.prefix, code)
}

func (s *Service) lobbyMetaKey(code, participant string) string {
	return fmt.Sprintf("%s:lobby:%s:meta:%s", s.prefix, code, participant)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
