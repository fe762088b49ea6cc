package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	"github.com/gokatarajesh/cyberhoot/internal/events"
	"github.com/gokatarajesh/cyberhoot/internal/explanation"
	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/session"
)

func testQuestions() []quiz.Question {
	return []quiz.Question{
		{
			ID:             "q1",
			Text:           "What does MFA stand for?",
			Kind:           quiz.KindMultipleChoice,
			Options:        []string{"Multi-Factor Authentication", "Main Firewall Access", "Managed File Archive"},
			CorrectAnswer:  "A",
			Difficulty:     quiz.DifficultyEasy,
			AllowedSeconds: 20,
			Topic:          "cybersecurity",
		},
		{
			ID:             "q2",
			Text:           "Which port does HTTPS use by default?",
			Kind:           quiz.KindMultipleChoice,
			Options:        []string{"21", "80", "443"},
			CorrectAnswer:  "443",
			Difficulty:     quiz.DifficultyEasy,
			AllowedSeconds: 20,
			Topic:          "cybersecurity",
		},
	}
}

type fakeSource struct {
	questions []quiz.Question
	err       error
}

func (f fakeSource) Fetch(_ context.Context, _ question.Request) (question.Set, error) {
	if f.err != nil {
		return question.Set{}, f.err
	}
	return question.Set{Questions: f.questions, Source: question.SourceFallback}, nil
}

type memoryResults struct {
	mu    sync.Mutex
	saved map[string]repository.StoredResult
}

func newMemoryResults() *memoryResults {
	return &memoryResults{saved: make(map[string]repository.StoredResult)}
}

func (m *memoryResults) Save(_ context.Context, res quiz.Result, lobbyCode string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[res.SessionID]; ok {
		return false, nil
	}
	m.saved[res.SessionID] = repository.StoredResult{Result: res, LobbyCode: lobbyCode}
	return true, nil
}

func (m *memoryResults) GetBySession(_ context.Context, id string) (repository.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.saved[id]
	if !ok {
		return repository.StoredResult{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memoryResults) ListByParticipant(_ context.Context, participant string, _ int) ([]repository.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []repository.StoredResult{}
	for _, r := range m.saved {
		if r.Participant == participant {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryResults) all() []repository.StoredResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.StoredResult, 0, len(m.saved))
	for _, r := range m.saved {
		out = append(out, r)
	}
	return out
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.QuizCompleted
}

func (p *capturePublisher) PublishQuizCompleted(_ context.Context, ev events.QuizCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) published() []events.QuizCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.QuizCompleted(nil), p.events...)
}

type fakeExplainer struct {
	text string
	err  error
}

func (f fakeExplainer) Explain(_ context.Context, req explanation.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text + " (" + req.QuestionID + ")", nil
}

var errUpstream = errors.New("upstream down")

// slowTicks keeps timers from expiring during a test.
const slowTicks = time.Hour

func newTestSession(t *testing.T, id string, qs []quiz.Question) *session.Session {
	t.Helper()
	return newParticipantSession(t, id, "alice", qs)
}

func newParticipantSession(t *testing.T, id, participant string, qs []quiz.Question) *session.Session {
	t.Helper()
	s, err := session.New(id, qs, session.Options{Participant: participant, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s
}

type recordingListener struct {
	ticks     chan int
	answers   chan quiz.AnswerRecord
	completed chan quiz.Result
	closed    chan CloseReason
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		ticks:     make(chan int, 128),
		answers:   make(chan quiz.AnswerRecord, 16),
		completed: make(chan quiz.Result, 1),
		closed:    make(chan CloseReason, 1),
	}
}

func (l *recordingListener) OnTick(_ *Runner, remaining int) {
	select {
	case l.ticks <- remaining:
	default:
	}
}

func (l *recordingListener) OnAnswer(_ *Runner, rec quiz.AnswerRecord) { l.answers <- rec }
func (l *recordingListener) OnComplete(_ *Runner, res quiz.Result)     { l.completed <- res }
func (l *recordingListener) OnClosed(_ *Runner, reason CloseReason)    { l.closed <- reason }
