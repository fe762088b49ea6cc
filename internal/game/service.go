package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	"github.com/gokatarajesh/cyberhoot/internal/events"
	"github.com/gokatarajesh/cyberhoot/internal/explanation"
	"github.com/gokatarajesh/cyberhoot/internal/metrics"
	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/result"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/scoring"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/session"
)

const defaultPersistTimeout = 10 * time.Second

// QuestionSource resolves question sets (implemented by question.Service).
type QuestionSource interface {
	Fetch(ctx context.Context, req question.Request) (question.Set, error)
}

// ResultStore persists completed results (implemented by repository.ResultRepository).
type ResultStore interface {
	Save(ctx context.Context, res quiz.Result, lobbyCode string) (bool, error)
	GetBySession(ctx context.Context, sessionID string) (repository.StoredResult, error)
	ListByParticipant(ctx context.Context, participant string, limit int) ([]repository.StoredResult, error)
}

// Explainer looks up explanations (implemented by explanation.Client).
type Explainer interface {
	Explain(ctx context.Context, req explanation.Request) (string, error)
}

// ServiceOptions tunes session creation and runners.
type ServiceOptions struct {
	Scoring        *scoring.Engine
	Aggregator     *result.Aggregator
	Grader         session.Grader
	GradeTimeout   time.Duration
	MaxGradePoints int
	TickInterval   time.Duration
	IdleTTL        time.Duration
	MaxSessions    int
	PersistTimeout time.Duration
	Logger         zerolog.Logger
}

// Service runs solo quiz sessions, one runner goroutine per session.
type Service struct {
	questions QuestionSource
	results   ResultStore
	publisher events.Publisher
	explainer Explainer
	registry  *Registry
	opts      ServiceOptions
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires the solo runtime; results, publisher and explainer may be nil.
func NewService(questions QuestionSource, results ResultStore, publisher events.Publisher, explainer Explainer, opts ServiceOptions) *Service {
	if opts.Aggregator == nil {
		opts.Aggregator = result.New()
	}
	if opts.Scoring == nil {
		opts.Scoring = scoring.NewEngine(scoring.DefaultConfig())
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		questions: questions,
		results:   results,
		publisher: publisher,
		explainer: explainer,
		registry:  NewRegistry(opts.MaxSessions),
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "game_service").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run blocks until ctx ends, then stops every runner and waits for pending writes.
func (s *Service) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Shutdown()
	return nil
}

// Shutdown stops all runners and waits for them.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Active is the number of live solo sessions.
func (s *Service) Active() int {
	return s.registry.Len()
}

// newSession builds a session over qs with the service's engine settings.
func (s *Service) newSession(id, participant string, qs []quiz.Question) (*session.Session, error) {
	return session.New(id, qs, session.Options{
		Participant:    participant,
		Scoring:        s.opts.Scoring,
		Aggregator:     s.opts.Aggregator,
		Grader:         s.opts.Grader,
		GradeTimeout:   s.opts.GradeTimeout,
		MaxGradePoints: s.opts.MaxGradePoints,
		Logger:         s.opts.Logger,
	})
}

// Start fetches questions, launches a runner and shows the first question.
func (s *Service) Start(ctx context.Context, participant string, req question.Request) (View, error) {
	set, err := s.questions.Fetch(ctx, req)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrQuestionsUnavailable, err)
	}

	sess, err := s.newSession(uuid.NewString(), participant, set.Questions)
	if err != nil {
		return View{}, err
	}
	runner := NewRunner(sess, RunnerOptions{
		TickInterval: s.opts.TickInterval,
		IdleTTL:      s.opts.IdleTTL,
		Source:       set.Source,
		Listener:     soloListener{s},
		Logger:       s.opts.Logger,

		ReleaseOnComplete: true,
	})
	prev, err := s.registry.Add(runner)
	if err != nil {
		return View{}, err
	}
	if prev != nil {
		// One live session per participant: starting again abandons the old one.
		if err := prev.Abandon(ctx); err != nil {
			s.logger.Warn().Err(err).Str("session_id", prev.ID()).Msg("failed to abandon previous session")
		}
		s.logger.Info().
			Str("session_id", prev.ID()).
			Str("participant", participant).
			Msg("previous solo session replaced")
	}
	s.launch(runner)
	metrics.SessionsStarted.WithLabelValues("solo").Inc()

	s.logger.Info().
		Str("session_id", runner.ID()).
		Str("participant", participant).
		Str("source", set.Source).
		Int("questions", len(set.Questions)).
		Msg("solo session started")

	return runner.Start(ctx)
}

func (s *Service) launch(r *Runner) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.registry.Remove(r.ID(), r)
		if err := r.Run(s.ctx); err != nil {
			s.logger.Warn().Err(err).Str("session_id", r.ID()).Msg("runner exited with error")
		}
	}()
}

// lookup finds a live runner owned by participant. Other participants' sessions
// are reported as missing.
func (s *Service) lookup(id, participant string) (*Runner, error) {
	r, ok := s.registry.Get(id)
	if !ok || r.Participant() != participant {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

// View shows the live session; a released one is summarised from its stored result.
func (s *Service) View(ctx context.Context, participant, id string) (View, error) {
	r, err := s.lookup(id, participant)
	if err == nil {
		v, err := r.View(ctx)
		if !errors.Is(err, ErrRunnerStopped) {
			return v, err
		}
	}
	res, err := s.stored(ctx, participant, id)
	if err != nil {
		return View{}, err
	}
	return View{
		SessionID:   res.SessionID,
		Participant: res.Participant,
		Phase:       quiz.PhaseCompleted,
		Index:       max(res.QuestionCount-1, 0),
		Total:       res.QuestionCount,
		Score:       res.TotalScore,
	}, nil
}

func (s *Service) Submit(ctx context.Context, participant, id, questionID, answer string) (quiz.AnswerRecord, bool, error) {
	r, err := s.lookup(id, participant)
	if err != nil {
		return quiz.AnswerRecord{}, false, err
	}
	return r.Submit(ctx, questionID, answer)
}

func (s *Service) Advance(ctx context.Context, participant, id string) (View, error) {
	r, err := s.lookup(id, participant)
	if err != nil {
		return View{}, err
	}
	return r.Advance(ctx)
}

// Abandon stops a live session. A session that already completed and was
// released is a no-op.
func (s *Service) Abandon(ctx context.Context, participant, id string) error {
	r, err := s.lookup(id, participant)
	if err == nil {
		return r.Abandon(ctx)
	}
	if _, serr := s.stored(ctx, participant, id); serr != nil {
		return err
	}
	return nil
}

// Result returns the aggregated report, from the live runner or, once it has
// been released, from the result store.
func (s *Service) Result(ctx context.Context, participant, id string) (quiz.Result, error) {
	r, err := s.lookup(id, participant)
	if err == nil {
		res, err := r.Result(ctx)
		if !errors.Is(err, ErrRunnerStopped) {
			return res, err
		}
	}
	return s.stored(ctx, participant, id)
}

// stored loads a persisted result owned by participant.
func (s *Service) stored(ctx context.Context, participant, id string) (quiz.Result, error) {
	if s.results == nil {
		return quiz.Result{}, ErrSessionNotFound
	}
	stored, err := s.results.GetBySession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return quiz.Result{}, ErrSessionNotFound
	}
	if err != nil {
		return quiz.Result{}, fmt.Errorf("load result: %w", err)
	}
	if stored.Participant != participant {
		return quiz.Result{}, ErrSessionNotFound
	}
	return stored.Result, nil
}

// History lists the participant's most recent results.
func (s *Service) History(ctx context.Context, participant string, limit int) ([]repository.StoredResult, error) {
	if s.results == nil {
		return []repository.StoredResult{}, nil
	}
	return s.results.ListByParticipant(ctx, participant, limit)
}

// Explain fetches the explanation of a question once the session is completed.
// Released sessions are explained from the persisted breakdown.
func (s *Service) Explain(ctx context.Context, participant, id, questionID string) (string, error) {
	req, err := s.explainRequest(ctx, participant, id, questionID)
	if err != nil {
		return "", err
	}
	if s.explainer == nil {
		return "", ErrExplanationFailed
	}
	text, err := s.explainer.Explain(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("question_id", questionID).Msg("explanation lookup failed")
		return "", fmt.Errorf("%w: %v", ErrExplanationFailed, err)
	}
	return text, nil
}

func (s *Service) explainRequest(ctx context.Context, participant, id, questionID string) (explanation.Request, error) {
	r, err := s.lookup(id, participant)
	if err == nil {
		st, err := r.State(ctx)
		switch {
		case err == nil:
			return requestFromState(st, questionID)
		case !errors.Is(err, ErrRunnerStopped):
			return explanation.Request{}, err
		}
	}

	res, err := s.stored(ctx, participant, id)
	if err != nil {
		return explanation.Request{}, err
	}
	for _, item := range res.Breakdown {
		if item.QuestionID == questionID {
			return explanation.Request{QuestionID: item.QuestionID, Question: item.Question, Answer: item.RawAnswer}, nil
		}
	}
	return explanation.Request{}, fmt.Errorf("%w: %s", quiz.ErrUnknownQuestion, questionID)
}

func requestFromState(st quiz.State, questionID string) (explanation.Request, error) {
	if st.Phase != quiz.PhaseCompleted {
		return explanation.Request{}, quiz.ErrNotCompleted
	}
	for _, q := range st.Questions {
		if q.ID != questionID {
			continue
		}
		req := explanation.Request{QuestionID: q.ID, Question: q.Text}
		if rec, ok := st.Answer(q.ID); ok {
			req.Answer = rec.RawAnswer
		}
		return req, nil
	}
	return explanation.Request{}, fmt.Errorf("%w: %s", quiz.ErrUnknownQuestion, questionID)
}

// record persists a result and publishes quiz.completed when it was new.
func (s *Service) record(ctx context.Context, res quiz.Result, lobbyCode string) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PersistTimeout)
	defer cancel()

	logger := s.logger.With().Str("session_id", res.SessionID).Str("participant", res.Participant).Logger()

	if s.results != nil {
		inserted, err := s.results.Save(ctx, res, lobbyCode)
		if err != nil {
			logger.Error().Err(err).Msg("failed to persist result")
			return
		}
		if !inserted {
			logger.Debug().Msg("result already persisted")
			return
		}
	}

	if s.publisher == nil {
		return
	}
	ev := events.QuizCompleted{
		ID:          uuid.NewString(),
		SessionID:   res.SessionID,
		Participant: res.Participant,
		LobbyCode:   lobbyCode,
		Result:      res,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishQuizCompleted(ctx, ev); err != nil {
		logger.Warn().Err(err).Msg("failed to publish quiz completed")
	}
}

// recordAsync runs record off the caller's goroutine; Shutdown waits for it.
func (s *Service) recordAsync(res quiz.Result, lobbyCode string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.record(context.WithoutCancel(s.ctx), res, lobbyCode)
	}()
}

type soloListener struct {
	svc *Service
}

func (soloListener) OnTick(*Runner, int)                 {}
func (soloListener) OnAnswer(*Runner, quiz.AnswerRecord) {}
func (soloListener) OnClosed(*Runner, CloseReason)       {}

func (l soloListener) OnComplete(r *Runner, res quiz.Result) {
	l.svc.logger.Info().
		Str("session_id", r.ID()).
		Int("score", res.TotalScore).
		Int("correct", res.CorrectCount).
		Msg("solo session completed")
	// Persisted before the runner releases so Result can serve it from the store.
	l.svc.record(context.WithoutCancel(l.svc.ctx), res, "")
}
