package game

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/result"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

// Notifier delivers WebSocket messages (implemented by ws.Hub).
type Notifier interface {
	Broadcast(code string, msg ws.Message) error
	SendToUser(username string, msg ws.Message) error
	Join(code, username string)
	Leave(code, username string)
}

type eventKind int

const (
	evTick eventKind = iota
	evAnswer
	evClosed
)

type gameEvent struct {
	kind      eventKind
	player    string
	remaining int
	rec       quiz.AnswerRecord
	reason    CloseReason
}

type playerListener struct {
	inbox  *mailbox[gameEvent]
	player string
}

func (l playerListener) OnTick(_ *Runner, remaining int) {
	l.inbox.put(gameEvent{kind: evTick, player: l.player, remaining: remaining})
}

func (l playerListener) OnAnswer(_ *Runner, rec quiz.AnswerRecord) {
	l.inbox.put(gameEvent{kind: evAnswer, player: l.player, rec: rec})
}

// The game ranks and aggregates results itself once every session completes.
func (l playerListener) OnComplete(*Runner, quiz.Result) {}

func (l playerListener) OnClosed(_ *Runner, reason CloseReason) {
	l.inbox.put(gameEvent{kind: evClosed, player: l.player, reason: reason})
}

type tally struct {
	score   int
	correct int
}

// Game drives one multiplayer round: a runner per player over the same
// questions, advanced together once every remaining player is in Feedback.
type Game struct {
	code          string
	questions     []quiz.Question
	players       []Player
	runners       map[string]*Runner
	inbox         *mailbox[gameEvent]
	hub           Notifier
	svc           *Service
	lobbies       *LobbyManager
	feedbackDelay time.Duration
	logger        zerolog.Logger

	// loop-owned
	index    int
	answered map[string]quiz.AnswerRecord
	left     map[string]bool
	tallies  map[string]*tally
	closed   bool
}

func (g *Game) runner(username string) (*Runner, bool) {
	r, ok := g.runners[username]
	return r, ok
}

// Submit forwards an answer to the player's runner.
func (g *Game) Submit(ctx context.Context, username, questionID, answer string) (quiz.AnswerRecord, bool, error) {
	r, ok := g.runner(username)
	if !ok {
		return quiz.AnswerRecord{}, false, ErrNotInLobby
	}
	return r.Submit(ctx, questionID, answer)
}

// View returns the player's session view.
func (g *Game) View(ctx context.Context, username string) (View, error) {
	r, ok := g.runner(username)
	if !ok {
		return View{}, ErrNotInLobby
	}
	return r.View(ctx)
}

// Leave abandons the player's session; the rest of the lobby carries on.
func (g *Game) Leave(ctx context.Context, username string) error {
	r, ok := g.runner(username)
	if !ok {
		return nil
	}
	return r.Abandon(ctx)
}

// Run starts every runner, then coordinates the round until it completes, the
// last player leaves or ctx ends.
func (g *Game) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	eg, egctx := errgroup.WithContext(runCtx)
	for _, r := range g.runners {
		eg.Go(func() error { return r.Run(egctx) })
	}
	defer func() {
		cancel()
		if err := eg.Wait(); err != nil {
			g.logger.Warn().Err(err).Msg("game runner failed")
		}
	}()

	g.broadcast(ws.TypeGameStarted, ws.GameStartedPayload{
		Code:          g.code,
		QuestionCount: len(g.questions),
		Difficulty:    string(result.Difficulty(g.questions)),
		Topic:         g.questions[0].Topic,
	})
	for _, p := range g.players {
		v, err := g.runners[p.Username].Start(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Str("player", p.Username).Msg("failed to start player session")
			g.left[p.Username] = true
			continue
		}
		g.sendQuestion(p.Username, v)
	}

	var advance <-chan time.Time
	for {
		if g.active() == 0 {
			g.logger.Info().Msg("every player left, ending game")
			g.finishEmpty(ctx)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil

		case <-g.inbox.ready():
			for _, ev := range g.inbox.drain() {
				g.handle(ev)
			}
			if !g.closed && g.active() > 0 && g.allAnswered() {
				g.closeQuestion()
				advance = time.After(g.feedbackDelay)
			}

		case <-advance:
			advance = nil
			if g.advanceAll(ctx) {
				g.finish(ctx)
				return nil
			}
		}
	}
}

func (g *Game) handle(ev gameEvent) {
	switch ev.kind {
	case evTick:
		g.send(ev.player, ws.TypeQuestionTick, ws.QuestionTickPayload{
			Code:             g.code,
			Index:            g.index,
			RemainingSeconds: ev.remaining,
		})

	case evAnswer:
		if g.index >= len(g.questions) || ev.rec.QuestionID != g.questions[g.index].ID {
			return
		}
		g.answered[ev.player] = ev.rec
		t := g.tallies[ev.player]
		t.score += ev.rec.PointsAwarded
		if ev.rec.Kind == quiz.KindMultipleChoice && ev.rec.PointsAwarded > 0 {
			t.correct++
		}
		if ev.rec.TimedOut() {
			g.send(ev.player, ws.TypeAnswerAck, ws.AnswerAckPayload{
				Code:       g.code,
				QuestionID: ev.rec.QuestionID,
				Accepted:   true,
				TimedOut:   true,
				Score:      t.score,
			})
		}

	case evClosed:
		if ev.reason == ReasonAbandoned || ev.reason == ReasonExpired {
			g.left[ev.player] = true
		}
	}
}

func (g *Game) active() int {
	n := 0
	for _, p := range g.players {
		if !g.left[p.Username] {
			n++
		}
	}
	return n
}

func (g *Game) allAnswered() bool {
	for _, p := range g.players {
		if g.left[p.Username] {
			continue
		}
		if _, ok := g.answered[p.Username]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) closeQuestion() {
	g.closed = true
	q := g.questions[g.index]

	progress := make([]ws.PlayerProgress, 0, len(g.players))
	for _, p := range g.players {
		t := g.tallies[p.Username]
		pp := ws.PlayerProgress{
			Username:       p.Username,
			Score:          t.score,
			CorrectAnswers: t.correct,
			Status:         string(PlayerPlaying),
		}
		if g.left[p.Username] {
			pp.Status = "LEFT"
		}
		if rec, ok := g.answered[p.Username]; ok {
			pp.Answer = rec.RawAnswer
			pp.PointsAwarded = rec.PointsAwarded
		}
		progress = append(progress, pp)
	}

	g.broadcast(ws.TypeQuestionClosed, ws.QuestionClosedPayload{
		Code:          g.code,
		Index:         g.index,
		QuestionID:    q.ID,
		CorrectAnswer: q.CorrectAnswer,
		Players:       progress,
		NextInSeconds: int(g.feedbackDelay / time.Second),
	})
}

// advanceAll moves every remaining player on and reports whether the round is over.
func (g *Game) advanceAll(ctx context.Context) bool {
	for _, p := range g.players {
		if g.left[p.Username] {
			continue
		}
		v, err := g.runners[p.Username].Advance(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Str("player", p.Username).Msg("failed to advance player")
			g.left[p.Username] = true
			continue
		}
		if v.Phase != quiz.PhaseCompleted {
			g.sendQuestion(p.Username, v)
		}
	}

	g.index++
	g.answered = make(map[string]quiz.AnswerRecord, len(g.players))
	g.closed = false
	return g.index >= len(g.questions)
}

type standing struct {
	player     Player
	state      quiz.State
	answerTime int
}

// finish ranks the players (score, then less total answer time, then name),
// records each ranked result and closes the lobby.
func (g *Game) finish(ctx context.Context) {
	standings := make([]standing, 0, len(g.players))
	for _, p := range g.players {
		if g.left[p.Username] {
			continue
		}
		st, err := g.runners[p.Username].State(ctx)
		if err != nil || st.Phase != quiz.PhaseCompleted {
			g.logger.Warn().Err(err).Str("player", p.Username).Msg("player did not complete")
			continue
		}
		total := 0
		for _, a := range st.Answers {
			total += a.SubmittedAt
		}
		standings = append(standings, standing{player: p, state: st, answerTime: total})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.state.Score != b.state.Score {
			return a.state.Score > b.state.Score
		}
		if a.answerTime != b.answerTime {
			return a.answerTime < b.answerTime
		}
		return a.player.Username < b.player.Username
	})

	results := make([]ws.GameResult, 0, len(standings))
	scores := make(map[string]PlayerScore, len(standings))
	for i, s := range standings {
		res := g.svc.opts.Aggregator.Aggregate(s.state, result.Context{Multiplayer: true, Rank: i + 1})
		g.svc.recordAsync(res, g.code)

		codes := make([]string, 0, len(res.Achievements))
		for _, a := range res.Achievements {
			codes = append(codes, a.Code)
		}
		results = append(results, ws.GameResult{
			Rank:          res.Rank,
			Username:      s.player.Username,
			Name:          s.player.Name,
			TotalScore:    res.TotalScore,
			CorrectCount:  res.CorrectCount,
			QuestionCount: res.QuestionCount,
			Achievements:  codes,
		})
		scores[s.player.Username] = PlayerScore{Score: res.TotalScore, CorrectAnswers: res.CorrectCount}
	}

	g.broadcast(ws.TypeGameComplete, ws.GameCompletePayload{Code: g.code, Results: results})
	g.logger.Info().Int("players", len(results)).Msg("game completed")
	g.closeLobby(ctx, scores)
}

func (g *Game) finishEmpty(ctx context.Context) {
	g.closeLobby(ctx, nil)
}

func (g *Game) closeLobby(ctx context.Context, scores map[string]PlayerScore) {
	lobby, err := g.lobbies.Finish(context.WithoutCancel(ctx), g.code, scores)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to mark lobby finished")
		return
	}
	g.broadcast(ws.TypeLobbyUpdate, lobbyPayload(lobby, g.lobbies.MaxPlayers()))
}

func (g *Game) sendQuestion(username string, v View) {
	if v.Question == nil {
		return
	}
	g.send(username, ws.TypeQuestion, ws.QuestionPayload{
		Code:           g.code,
		Index:          v.Index,
		Total:          v.Total,
		ID:             v.Question.ID,
		Text:           v.Question.Text,
		Kind:           string(v.Question.Kind),
		Options:        v.Question.Options,
		Difficulty:     string(v.Question.Difficulty),
		AllowedSeconds: v.Allowed,
	})
}

func (g *Game) send(username, typ string, payload any) {
	msg, err := ws.NewMessage(typ, payload, "")
	if err != nil {
		g.logger.Error().Err(err).Str("type", typ).Msg("failed to encode message")
		return
	}
	if err := g.hub.SendToUser(username, msg); err != nil {
		g.logger.Debug().Err(err).Str("player", username).Str("type", typ).Msg("player unreachable")
	}
}

func (g *Game) broadcast(typ string, payload any) {
	msg, err := ws.NewMessage(typ, payload, "")
	if err != nil {
		g.logger.Error().Err(err).Str("type", typ).Msg("failed to encode message")
		return
	}
	if err := g.hub.Broadcast(g.code, msg); err != nil {
		g.logger.Debug().Err(err).Str("type", typ).Msg("broadcast incomplete")
	}
}

func lobbyPayload(l Lobby, maxPlayers int) ws.LobbyUpdatePayload {
	players := make([]ws.LobbyPlayer, 0, len(l.Players))
	for _, p := range l.Players {
		players = append(players, ws.LobbyPlayer{
			Username:       p.Username,
			Name:           p.Name,
			Avatar:         p.Avatar,
			Color:          p.Color,
			IsHost:         p.IsHost,
			Status:         string(p.Status),
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
		})
	}
	return ws.LobbyUpdatePayload{
		Code:         l.Code,
		Host:         l.Host,
		Status:       string(l.Status),
		Topic:        l.Settings.Topic,
		QuestionType: l.Settings.QuestionType,
		Difficulty:   l.Settings.Difficulty,
		Count:        l.Settings.Count,
		Players:      players,
		MaxPlayers:   maxPlayers,
	}
}
