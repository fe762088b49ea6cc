package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/metrics"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/session"
)

const (
	defaultTickInterval = time.Second
	defaultIdleTTL      = 30 * time.Minute
)

// CloseReason says why a runner stopped.
type CloseReason string

const (
	ReasonReleased  CloseReason = "released"
	ReasonAbandoned CloseReason = "abandoned"
	ReasonExpired   CloseReason = "expired"
	ReasonShutdown  CloseReason = "shutdown"
)

// Listener observes a runner. Callbacks run on the runner goroutine and must
// not call back into the same runner.
type Listener interface {
	OnTick(r *Runner, remaining int)
	OnAnswer(r *Runner, rec quiz.AnswerRecord)
	OnComplete(r *Runner, res quiz.Result)
	OnClosed(r *Runner, reason CloseReason)
}

type nopListener struct{}

func (nopListener) OnTick(*Runner, int)                 {}
func (nopListener) OnAnswer(*Runner, quiz.AnswerRecord) {}
func (nopListener) OnComplete(*Runner, quiz.Result)     {}
func (nopListener) OnClosed(*Runner, CloseReason)       {}

// RunnerOptions tunes a runner.
type RunnerOptions struct {
	TickInterval time.Duration
	// IdleTTL ends the runner when no command arrives for that long; default 30m.
	IdleTTL  time.Duration
	Source   string
	Listener Listener
	Logger   zerolog.Logger

	// ReleaseOnComplete stops the runner right after the result is handed
	// to the listener.
	ReleaseOnComplete bool
}

type command struct {
	fn    func(s *session.Session) error
	reply chan error
}

// Runner is the single goroutine that owns a session. Every transition, ticks
// included, is executed on that goroutine, so a submission racing an expiry is
// decided by whichever command the loop picks first.
type Runner struct {
	sess     *session.Session
	cmds     chan command
	done     chan struct{}
	interval time.Duration
	idleTTL  time.Duration
	source   string
	listener Listener
	logger   zerolog.Logger
	release  bool

	// loop-owned
	stop   bool
	reason CloseReason
}

func NewRunner(sess *session.Session, opts RunnerOptions) *Runner {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	idle := opts.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	listener := opts.Listener
	if listener == nil {
		listener = nopListener{}
	}
	return &Runner{
		sess:     sess,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		interval: interval,
		idleTTL:  idle,
		source:   opts.Source,
		listener: listener,
		release:  opts.ReleaseOnComplete,
		logger: opts.Logger.With().
			Str("component", "session_runner").
			Str("session_id", sess.ID()).
			Str("participant", sess.Participant()).
			Logger(),
	}
}

func (r *Runner) ID() string          { return r.sess.ID() }
func (r *Runner) Participant() string { return r.sess.Participant() }

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run drives the session until it is abandoned, idles out or ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	idle := time.NewTimer(r.idleTTL)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			r.close(ReasonShutdown)
			return nil

		case <-idle.C:
			r.close(ReasonExpired)
			return nil

		case cmd := <-r.cmds:
			phase, index := r.sess.Phase(), r.sess.State().CurrentIndex
			cmd.reply <- cmd.fn(r.sess)
			if r.stop {
				r.listener.OnClosed(r, r.reason)
				return nil
			}
			// A freshly armed question gets a full first second.
			if r.sess.Phase() == quiz.PhaseAwaitingAnswer && (phase != quiz.PhaseAwaitingAnswer || index != r.sess.State().CurrentIndex) {
				ticker.Reset(r.interval)
			}
			idle.Reset(r.idleTTL)

		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	if r.sess.Phase() != quiz.PhaseAwaitingAnswer || r.sess.Closed() {
		return
	}
	rec, expired, err := r.sess.Tick()
	if err != nil {
		r.logger.Warn().Err(err).Msg("tick failed")
		return
	}
	if expired {
		r.recordAnswer(rec)
		return
	}
	r.listener.OnTick(r, r.sess.Remaining())
}

// close tears down an unfinished session; a completed one is simply released.
func (r *Runner) close(reason CloseReason) {
	if r.sess.Phase() == quiz.PhaseCompleted {
		reason = ReasonReleased
	} else {
		r.sess.Abandon()
		outcome := "abandoned"
		if reason == ReasonExpired {
			outcome = "expired"
		}
		metrics.SessionsFinished.WithLabelValues(outcome).Inc()
	}
	r.logger.Debug().Str("reason", string(reason)).Msg("session runner stopped")
	r.listener.OnClosed(r, reason)
}

func (r *Runner) recordAnswer(rec quiz.AnswerRecord) {
	outcome := "incorrect"
	switch {
	case rec.TimedOut():
		outcome = "timeout"
	case rec.Correct:
		outcome = "correct"
	}
	metrics.Answers.WithLabelValues(string(rec.Kind), outcome).Inc()
	if q, ok := r.sess.Current(); ok {
		metrics.PointsAwarded.WithLabelValues(string(q.Difficulty)).Observe(float64(rec.PointsAwarded))
	}
	r.listener.OnAnswer(r, rec)
}

// do runs fn on the runner goroutine and waits for its result.
func (r *Runner) do(ctx context.Context, fn func(s *session.Session) error) error {
	reply := make(chan error, 1)
	select {
	case r.cmds <- command{fn: fn, reply: reply}:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// The loop always replies before it can exit.
	return <-reply
}

// Start shows the first question.
func (r *Runner) Start(ctx context.Context) (View, error) {
	var v View
	err := r.do(ctx, func(s *session.Session) error {
		if err := s.Start(); err != nil {
			return err
		}
		v = viewOf(s, r.source)
		return nil
	})
	return v, err
}

// Submit records an answer for questionID; duplicates return the stored record.
func (r *Runner) Submit(ctx context.Context, questionID, raw string) (rec quiz.AnswerRecord, duplicate bool, err error) {
	err = r.do(ctx, func(s *session.Session) error {
		var serr error
		rec, duplicate, serr = s.Submit(ctx, questionID, raw)
		if serr != nil {
			return serr
		}
		if !duplicate {
			r.recordAnswer(rec)
		}
		return nil
	})
	return rec, duplicate, err
}

// Advance leaves Feedback. After the last question the result is aggregated
// and handed to the listener.
func (r *Runner) Advance(ctx context.Context) (View, error) {
	var v View
	err := r.do(ctx, func(s *session.Session) error {
		phase, err := s.Advance()
		if err != nil {
			return err
		}
		if phase == quiz.PhaseCompleted {
			res, err := s.Result()
			if err != nil {
				return err
			}
			metrics.SessionsFinished.WithLabelValues("completed").Inc()
			r.listener.OnComplete(r, res)
			if r.release {
				r.stop, r.reason = true, ReasonReleased
			}
		}
		v = viewOf(s, r.source)
		return nil
	})
	return v, err
}

func (r *Runner) View(ctx context.Context) (View, error) {
	var v View
	err := r.do(ctx, func(s *session.Session) error {
		v = viewOf(s, r.source)
		return nil
	})
	return v, err
}

func (r *Runner) State(ctx context.Context) (quiz.State, error) {
	var st quiz.State
	err := r.do(ctx, func(s *session.Session) error {
		st = s.State()
		return nil
	})
	return st, err
}

func (r *Runner) Result(ctx context.Context) (quiz.Result, error) {
	var res quiz.Result
	err := r.do(ctx, func(s *session.Session) error {
		var err error
		res, err = s.Result()
		return err
	})
	return res, err
}

// Abandon stops the runner. An unfinished session is torn down; a completed
// one is released with its result intact.
func (r *Runner) Abandon(ctx context.Context) error {
	err := r.do(ctx, func(s *session.Session) error {
		r.stop = true
		if s.Phase() == quiz.PhaseCompleted {
			r.reason = ReasonReleased
			return nil
		}
		s.Abandon()
		metrics.SessionsFinished.WithLabelValues("abandoned").Inc()
		r.reason = ReasonAbandoned
		return nil
	})
	if errors.Is(err, ErrRunnerStopped) {
		return nil
	}
	return err
}
