package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/result"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/scoring"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/timer"
)

const (
	defaultGradeTimeout = 5 * time.Second
	defaultMaxGrade     = 500
)

// Grader scores open-ended answers.
type Grader interface {
	Grade(ctx context.Context, req quiz.GradeRequest) (quiz.GradeResult, error)
}

// Options configures a session.
type Options struct {
	Participant  string
	Scoring      *scoring.Engine
	Aggregator   *result.Aggregator
	Grader       Grader
	GradeTimeout time.Duration
	// MaxGradePoints caps grader scores; default 500.
	MaxGradePoints int
	Now            func() time.Time
	Logger         zerolog.Logger
}

// Session is the quiz state machine for one participant:
//
//	NotStarted -> AwaitingAnswer -> Feedback -> (AwaitingAnswer | Completed)
//
// It is not safe for concurrent use. Exactly one goroutine owns a session and
// calls Tick from its ticker; transitions are guarded by phase only.
type Session struct {
	id          string
	participant string
	questions   []quiz.Question
	index       int
	phase       quiz.Phase
	score       int
	streak      int
	allowed     int
	nextAllowed int
	closed      bool
	startedAt   time.Time
	completedAt time.Time
	result      *quiz.Result

	collector    *Collector
	timer        timer.Timer
	engine       *scoring.Engine
	aggregator   *result.Aggregator
	grader       Grader
	gradeTimeout time.Duration
	maxGrade     int
	now          func() time.Time
	logger       zerolog.Logger
}

// New validates questions and creates a session in NotStarted. Any malformed
// question, or an empty list, fails with quiz.ErrMalformedQuestion.
func New(id string, questions []quiz.Question, opts Options) (*Session, error) {
	prepared, err := quiz.Prepare(questions)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	engine := opts.Scoring
	if engine == nil {
		engine = scoring.NewEngine(scoring.DefaultConfig())
	}
	agg := opts.Aggregator
	if agg == nil {
		agg = result.New()
	}
	gradeTimeout := opts.GradeTimeout
	if gradeTimeout <= 0 {
		gradeTimeout = defaultGradeTimeout
	}
	maxGrade := opts.MaxGradePoints
	if maxGrade <= 0 {
		maxGrade = defaultMaxGrade
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		id:           id,
		participant:  opts.Participant,
		questions:    prepared,
		phase:        quiz.PhaseNotStarted,
		collector:    NewCollector(prepared),
		engine:       engine,
		aggregator:   agg,
		grader:       opts.Grader,
		gradeTimeout: gradeTimeout,
		maxGrade:     maxGrade,
		now:          now,
		logger:       opts.Logger.With().Str("component", "quiz_session").Str("session_id", id).Logger(),
	}, nil
}

// Start moves to the first question and arms its timer.
func (s *Session) Start() error {
	if err := s.guard("start", quiz.PhaseNotStarted); err != nil {
		return err
	}
	s.index = 0
	s.startedAt = s.now()
	s.armTimer()
	s.phase = quiz.PhaseAwaitingAnswer
	return nil
}

// Answer records raw for the current question, scores it with the seconds left at
// submission and moves to Feedback. The timeout sentinel behaves like Timeout.
func (s *Session) Answer(ctx context.Context, raw string) (quiz.AnswerRecord, error) {
	if raw == quiz.TimeoutAnswer {
		return s.Timeout()
	}
	if err := s.guard("answer", quiz.PhaseAwaitingAnswer); err != nil {
		return quiz.AnswerRecord{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return quiz.AnswerRecord{}, quiz.ErrEmptyAnswer
	}

	q := s.questions[s.index]
	remaining := s.timer.Remaining()
	s.timer.Stop()

	var score ScoreFunc
	switch q.Kind {
	case quiz.KindOpenEnded:
		score = func(q quiz.Question, raw string) (int, bool, bool) {
			return s.grade(ctx, q, raw)
		}
	default:
		streak := s.streak
		score = MultipleChoiceScore(func(q quiz.Question, correct bool) int {
			return s.engine.Score(q, remaining, streak, correct)
		})
	}

	rec, _, err := s.collector.Submit(q.ID, raw, s.allowed-remaining, score)
	if err != nil {
		return quiz.AnswerRecord{}, fmt.Errorf("record answer: %w", err)
	}

	if q.Kind == quiz.KindMultipleChoice {
		if rec.Correct {
			s.streak++
		} else {
			s.streak = 0
		}
	}
	s.score += rec.PointsAwarded
	s.phase = quiz.PhaseFeedback
	return rec, nil
}

// Submit is the idempotent entry point for transports: an already answered
// question returns its stored record with duplicate set, otherwise the answer
// must target the current question.
func (s *Session) Submit(ctx context.Context, questionID, raw string) (rec quiz.AnswerRecord, duplicate bool, err error) {
	if s.closed {
		return quiz.AnswerRecord{}, false, quiz.ErrSessionClosed
	}
	if existing, ok := s.collector.Get(questionID); ok {
		return existing, true, nil
	}
	if !s.collector.Knows(questionID) {
		return quiz.AnswerRecord{}, false, fmt.Errorf("%w: %s", quiz.ErrUnknownQuestion, questionID)
	}
	if s.phase != quiz.PhaseAwaitingAnswer || s.questions[s.index].ID != questionID {
		return quiz.AnswerRecord{}, false, quiz.TransitionError("answer "+questionID, s.phase)
	}
	rec, err = s.Answer(ctx, raw)
	return rec, false, err
}

// Timeout records the sentinel answer for the current question: zero points and
// a reset streak.
func (s *Session) Timeout() (quiz.AnswerRecord, error) {
	if err := s.guard("timeout", quiz.PhaseAwaitingAnswer); err != nil {
		return quiz.AnswerRecord{}, err
	}
	q := s.questions[s.index]
	s.timer.Stop()

	rec, _, err := s.collector.Submit(q.ID, quiz.TimeoutAnswer, s.allowed, nil)
	if err != nil {
		return quiz.AnswerRecord{}, fmt.Errorf("record timeout: %w", err)
	}
	s.streak = 0
	s.phase = quiz.PhaseFeedback
	return rec, nil
}

// Tick advances the countdown by one second. On expiry it performs Timeout and
// returns the sentinel record with expired set. Ticks outside AwaitingAnswer are ignored.
func (s *Session) Tick() (rec quiz.AnswerRecord, expired bool, err error) {
	if s.closed || s.phase != quiz.PhaseAwaitingAnswer {
		return quiz.AnswerRecord{}, false, nil
	}
	if !s.timer.Tick() {
		return quiz.AnswerRecord{}, false, nil
	}
	rec, err = s.Timeout()
	return rec, err == nil, err
}

// Advance leaves Feedback: to the next question with a fresh timer, or to
// Completed after the last one, at which point the result is aggregated.
func (s *Session) Advance() (quiz.Phase, error) {
	if err := s.guard("advance", quiz.PhaseFeedback); err != nil {
		return s.phase, err
	}
	if s.index == len(s.questions)-1 {
		s.phase = quiz.PhaseCompleted
		s.completedAt = s.now()
		res := s.aggregator.Aggregate(s.State(), result.Context{})
		s.result = &res
		return s.phase, nil
	}
	s.index++
	s.armTimer()
	s.phase = quiz.PhaseAwaitingAnswer
	return s.phase, nil
}

// Abandon tears the session down; the timer is stopped and every later
// transition fails with quiz.ErrSessionClosed.
func (s *Session) Abandon() {
	s.timer.Stop()
	s.closed = true
}

// Result returns the aggregated report once the session is Completed.
func (s *Session) Result() (quiz.Result, error) {
	if s.phase != quiz.PhaseCompleted || s.result == nil {
		return quiz.Result{}, quiz.ErrNotCompleted
	}
	return *s.result, nil
}

// State returns a snapshot of the session.
func (s *Session) State() quiz.State {
	return quiz.State{
		SessionID:    s.id,
		Participant:  s.participant,
		Questions:    append([]quiz.Question(nil), s.questions...),
		CurrentIndex: s.index,
		Answers:      s.collector.Records(),
		Score:        s.score,
		Streak:       s.streak,
		Phase:        s.phase,
		Remaining:    s.timer.Remaining(),
		StartedAt:    s.startedAt,
		CompletedAt:  s.completedAt,
	}
}

// Current returns the question at the current index once the session has started.
func (s *Session) Current() (quiz.Question, bool) {
	if s.phase == quiz.PhaseNotStarted {
		return quiz.Question{}, false
	}
	return s.questions[s.index], true
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Participant() string { return s.participant }
func (s *Session) Phase() quiz.Phase   { return s.phase }
func (s *Session) Score() int          { return s.score }
func (s *Session) Streak() int         { return s.streak }
func (s *Session) Remaining() int      { return s.timer.Remaining() }
func (s *Session) Allowed() int        { return s.allowed }
func (s *Session) Closed() bool        { return s.closed }
func (s *Session) Len() int            { return len(s.questions) }

func (s *Session) guard(op string, want quiz.Phase) error {
	if s.closed {
		return fmt.Errorf("%s: %w", op, quiz.ErrSessionClosed)
	}
	if s.phase != want {
		return quiz.TransitionError(op, s.phase)
	}
	return nil
}

// armTimer starts the clock for the current question. A grader override
// replaces the question's allowance so scoring decays over the same window.
func (s *Session) armTimer() {
	allowed := s.questions[s.index].AllowedSeconds
	if s.nextAllowed > 0 {
		allowed = s.nextAllowed
		s.nextAllowed = 0
		s.questions[s.index].AllowedSeconds = allowed
	}
	s.allowed = allowed
	s.timer.Start(allowed)
}

// grade asks the grader for an open-ended score. Failures and timeouts award
// zero so the quiz never blocks on the collaborator.
func (s *Session) grade(ctx context.Context, q quiz.Question, raw string) (int, bool, bool) {
	if s.grader == nil {
		return 0, false, false
	}
	gctx, cancel := context.WithTimeout(ctx, s.gradeTimeout)
	defer cancel()

	res, err := s.grader.Grade(gctx, quiz.GradeRequest{
		SessionID:   s.id,
		Participant: s.participant,
		QuestionID:  q.ID,
		Question:    q.Text,
		Answer:      raw,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("question_id", q.ID).Msg("grading failed, awarding zero")
		return 0, false, false
	}
	if res.NextSolvingSeconds > 0 {
		s.nextAllowed = res.NextSolvingSeconds
	}
	return min(max(res.Score, 0), s.maxGrade), res.Correct, true
}
