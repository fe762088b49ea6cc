package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

type mockGrader struct {
	mock.Mock
}

func (m *mockGrader) Grade(ctx context.Context, req quiz.GradeRequest) (quiz.GradeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(quiz.GradeResult), args.Error(1)
}

type blockingGrader struct{}

func (blockingGrader) Grade(ctx context.Context, _ quiz.GradeRequest) (quiz.GradeResult, error) {
	<-ctx.Done()
	return quiz.GradeResult{}, ctx.Err()
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func easyQuestions() []quiz.Question {
	return []quiz.Question{
		{ID: "q1", Text: "Which is a symmetric cipher?", Kind: quiz.KindMultipleChoice, Options: []string{"A) AES", "B) RSA", "C) ECDSA"}, CorrectAnswer: "A", Difficulty: quiz.DifficultyEasy, Topic: "cybersecurity"},
		{ID: "q2", Text: "What does MFA stand for?", Kind: quiz.KindMultipleChoice, Options: []string{"Multi-factor authentication", "Main firewall access"}, CorrectAnswer: "Multi-factor authentication", Difficulty: quiz.DifficultyEasy, Topic: "cybersecurity"},
		{ID: "q3", Text: "Which port does HTTPS use?", Kind: quiz.KindMultipleChoice, Options: []string{"80", "443", "21"}, CorrectAnswer: "B", Difficulty: quiz.DifficultyEasy, Topic: "cybersecurity"},
	}
}

func newTestSession(t *testing.T, qs []quiz.Question, opts Options) *Session {
	t.Helper()
	opts.Logger = zerolog.Nop()
	s, err := New("s-1", qs, opts)
	require.NoError(t, err)
	return s
}

func tick(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, expired, err := s.Tick()
		require.NoError(t, err)
		require.False(t, expired)
	}
}

func TestSessionEasyScenarioScores855(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestSession(t, easyQuestions(), Options{Participant: "alice", Now: clock.Now})
	ctx := context.Background()

	require.NoError(t, s.Start())
	rec, err := s.Answer(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 450, rec.PointsAwarded)
	assert.True(t, rec.Correct)
	assert.Equal(t, 1, s.Streak())

	_, err = s.Advance()
	require.NoError(t, err)
	tick(t, s, 10)
	rec, err = s.Answer(ctx, "multi-factor AUTHENTICATION")
	require.NoError(t, err)
	assert.Equal(t, 405, rec.PointsAwarded)
	assert.Equal(t, 10, rec.SubmittedAt)

	_, err = s.Advance()
	require.NoError(t, err)
	rec, err = s.Answer(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PointsAwarded)
	assert.False(t, rec.Correct)
	assert.Equal(t, 0, s.Streak())

	clock.Advance(45 * time.Second)
	phase, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, quiz.PhaseCompleted, phase)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 855, res.TotalScore)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 3, res.QuestionCount)
	assert.Equal(t, 45, res.ElapsedSeconds)
	assert.Equal(t, quiz.DifficultyEasy, res.Difficulty)
	assert.Equal(t, "cybersecurity", res.Topic)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, "q1", res.Breakdown[0].QuestionID)
	assert.Equal(t, "C", res.Breakdown[2].RawAnswer)
}

func TestSessionHardTimeout(t *testing.T) {
	qs := []quiz.Question{
		{ID: "h1", Text: "Which attack abuses TCP handshakes?", Kind: quiz.KindMultipleChoice, Options: []string{"SYN flood", "XSS"}, CorrectAnswer: "A", Difficulty: quiz.DifficultyHard},
		{ID: "h2", Text: "Which mode lacks diffusion?", Kind: quiz.KindMultipleChoice, Options: []string{"ECB", "GCM"}, CorrectAnswer: "A", Difficulty: quiz.DifficultyHard},
	}
	s := newTestSession(t, qs, Options{})
	require.NoError(t, s.Start())
	assert.Equal(t, quiz.DefaultHardSeconds, s.Remaining())

	var (
		rec     quiz.AnswerRecord
		expired bool
		err     error
	)
	for i := 0; i < quiz.DefaultHardSeconds; i++ {
		rec, expired, err = s.Tick()
		require.NoError(t, err)
	}
	require.True(t, expired)
	assert.True(t, rec.TimedOut())
	assert.Equal(t, 0, rec.PointsAwarded)
	assert.Equal(t, 0, s.Streak())
	assert.Equal(t, quiz.PhaseFeedback, s.Phase())

	// no second expiry while in feedback
	_, expired, err = s.Tick()
	require.NoError(t, err)
	assert.False(t, expired)

	phase, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, quiz.PhaseAwaitingAnswer, phase)
	assert.Equal(t, quiz.DefaultHardSeconds, s.Remaining())
}

func TestSessionTimeoutResetsStreak(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	ctx := context.Background()
	require.NoError(t, s.Start())
	_, err := s.Answer(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, 1, s.Streak())
	_, err = s.Advance()
	require.NoError(t, err)

	rec, err := s.Answer(ctx, quiz.TimeoutAnswer)
	require.NoError(t, err)
	assert.True(t, rec.TimedOut())
	assert.Equal(t, 0, s.Streak())
}

func TestNewRejectsEmptyQuestionList(t *testing.T) {
	s, err := New("s-1", nil, Options{})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, quiz.ErrMalformedQuestion))
}

func TestNewRejectsMalformedQuestion(t *testing.T) {
	qs := easyQuestions()
	qs[1].CorrectAnswer = "Z) nothing"
	_, err := New("s-1", qs, Options{})

	var mErr *quiz.MalformedQuestionError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "q2", mErr.QuestionID)
}

func TestSessionGuardsTransitions(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	ctx := context.Background()

	_, err := s.Answer(ctx, "A")
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	_, err = s.Advance()
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	_, err = s.Timeout()
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	_, err = s.Result()
	assert.ErrorIs(t, err, quiz.ErrNotCompleted)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), quiz.ErrInvalidTransition)
	_, err = s.Advance()
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)

	_, err = s.Answer(ctx, "A")
	require.NoError(t, err)
	_, err = s.Answer(ctx, "B")
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	assert.Equal(t, 450, s.Score())
}

func TestSessionRejectsEmptyAnswer(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	require.NoError(t, s.Start())
	tick(t, s, 3)

	_, err := s.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, quiz.ErrEmptyAnswer)
	assert.Equal(t, quiz.PhaseAwaitingAnswer, s.Phase())
	assert.Equal(t, 17, s.Remaining())

	// the countdown keeps running after a rejected answer
	tick(t, s, 1)
	assert.Equal(t, 16, s.Remaining())
}

func TestSessionSubmitIsIdempotent(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	ctx := context.Background()
	require.NoError(t, s.Start())

	first, dup, err := s.Submit(ctx, "q1", "A")
	require.NoError(t, err)
	assert.False(t, dup)

	second, dup, err := s.Submit(ctx, "q1", "B")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first, second)
	assert.Equal(t, 450, s.Score())

	_, err = s.Advance()
	require.NoError(t, err)
	third, dup, err := s.Submit(ctx, "q1", "C")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first, third)
	assert.Equal(t, quiz.PhaseAwaitingAnswer, s.Phase())
}

func TestSessionSubmitValidatesQuestion(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	ctx := context.Background()
	require.NoError(t, s.Start())

	_, _, err := s.Submit(ctx, "nope", "A")
	assert.ErrorIs(t, err, quiz.ErrUnknownQuestion)

	_, _, err = s.Submit(ctx, "q2", "A")
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	assert.Equal(t, quiz.PhaseAwaitingAnswer, s.Phase())
}

func TestSessionAdvanceRoundTrip(t *testing.T) {
	qs := easyQuestions()
	s := newTestSession(t, qs, Options{})
	ctx := context.Background()
	require.NoError(t, s.Start())

	var phase quiz.Phase
	for i := range qs {
		if i%2 == 0 {
			_, err := s.Answer(ctx, "B")
			require.NoError(t, err)
		} else {
			_, err := s.Timeout()
			require.NoError(t, err)
		}
		var err error
		phase, err = s.Advance()
		require.NoError(t, err)
	}
	assert.Equal(t, quiz.PhaseCompleted, phase)

	_, err := s.Advance()
	assert.ErrorIs(t, err, quiz.ErrInvalidTransition)
	assert.Equal(t, len(qs), s.timer.Starts())
}

func TestSessionScoreEqualsSumOfPoints(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	ctx := context.Background()
	require.NoError(t, s.Start())

	for _, ans := range []string{"A", "A", "B"} {
		tick(t, s, 4)
		_, err := s.Answer(ctx, ans)
		require.NoError(t, err)
		_, err = s.Advance()
		require.NoError(t, err)
	}

	state := s.State()
	sum := 0
	for _, a := range state.Answers {
		sum += a.PointsAwarded
		assert.GreaterOrEqual(t, a.PointsAwarded, 0)
	}
	assert.Equal(t, sum, state.Score)
	assert.Len(t, state.Answers, 3)
}

func TestSessionAbandon(t *testing.T) {
	s := newTestSession(t, easyQuestions(), Options{})
	require.NoError(t, s.Start())
	s.Abandon()

	_, err := s.Answer(context.Background(), "A")
	assert.ErrorIs(t, err, quiz.ErrSessionClosed)
	_, _, err = s.Submit(context.Background(), "q1", "A")
	assert.ErrorIs(t, err, quiz.ErrSessionClosed)

	_, expired, err := s.Tick()
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestSessionGradesOpenEnded(t *testing.T) {
	qs := []quiz.Question{
		{ID: "o1", Text: "Explain phishing.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyMedium},
		{ID: "o2", Text: "Explain least privilege.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyMedium},
	}
	grader := &mockGrader{}
	grader.On("Grade", mock.Anything, mock.MatchedBy(func(r quiz.GradeRequest) bool {
		return r.QuestionID == "o1" && r.Answer == "fake emails" && r.Participant == "bob"
	})).Return(quiz.GradeResult{Score: 320, Correct: true, NextSolvingSeconds: 12}, nil).Once()
	grader.On("Grade", mock.Anything, mock.MatchedBy(func(r quiz.GradeRequest) bool {
		return r.QuestionID == "o2"
	})).Return(quiz.GradeResult{Score: 9000}, nil).Once()

	s := newTestSession(t, qs, Options{Participant: "bob", Grader: grader})
	ctx := context.Background()
	require.NoError(t, s.Start())

	rec, err := s.Answer(ctx, "fake emails")
	require.NoError(t, err)
	assert.Equal(t, 320, rec.PointsAwarded)
	assert.True(t, rec.Graded)
	assert.Equal(t, 0, s.Streak())

	_, err = s.Advance()
	require.NoError(t, err)
	assert.Equal(t, 12, s.Remaining())
	assert.Equal(t, 12, s.Allowed())

	rec, err = s.Answer(ctx, "only what is needed")
	require.NoError(t, err)
	assert.Equal(t, 500, rec.PointsAwarded)
	assert.Equal(t, 820, s.Score())

	_, err = s.Advance()
	require.NoError(t, err)
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, res.CorrectCount)
	grader.AssertExpectations(t)
}

func TestSessionGraderOverrideScalesTimeBonus(t *testing.T) {
	tests := []struct {
		name     string
		override int
		ticks    int
		want     int
	}{
		{name: "shorter window answered at full time", override: 10, ticks: 0, want: 1350},
		{name: "longer window answered halfway", override: 90, ticks: 45, want: 1125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := []quiz.Question{
				{ID: "o1", Text: "Explain ransomware.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyHard},
				{ID: "q2", Text: "Which port does HTTPS use?", Kind: quiz.KindMultipleChoice, Options: []string{"21", "80", "443"}, CorrectAnswer: "443", Difficulty: quiz.DifficultyHard},
			}
			grader := &mockGrader{}
			grader.On("Grade", mock.Anything, mock.Anything).
				Return(quiz.GradeResult{Score: 100, Correct: true, NextSolvingSeconds: tt.override}, nil).Once()

			s := newTestSession(t, qs, Options{Grader: grader})
			ctx := context.Background()
			require.NoError(t, s.Start())
			_, err := s.Answer(ctx, "encrypts files for ransom")
			require.NoError(t, err)
			_, err = s.Advance()
			require.NoError(t, err)

			cur, ok := s.Current()
			require.True(t, ok)
			assert.Equal(t, tt.override, cur.AllowedSeconds)

			tick(t, s, tt.ticks)
			rec, err := s.Answer(ctx, "443")
			require.NoError(t, err)
			assert.True(t, rec.Correct)
			assert.Equal(t, tt.want, rec.PointsAwarded)
			grader.AssertExpectations(t)
		})
	}
}

func TestSessionNegativeGradeAwardsZero(t *testing.T) {
	qs := []quiz.Question{{ID: "o1", Text: "Explain SQL injection.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyEasy}}
	grader := &mockGrader{}
	grader.On("Grade", mock.Anything, mock.Anything).Return(quiz.GradeResult{Score: -40}, nil)

	s := newTestSession(t, qs, Options{Grader: grader})
	require.NoError(t, s.Start())
	rec, err := s.Answer(context.Background(), "no idea")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PointsAwarded)
	assert.True(t, rec.Graded)
	assert.Equal(t, 0, s.Score())
}

func TestSessionGraderFailureAwardsZero(t *testing.T) {
	qs := []quiz.Question{{ID: "o1", Text: "Explain XSS.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyEasy}}
	grader := &mockGrader{}
	grader.On("Grade", mock.Anything, mock.Anything).Return(quiz.GradeResult{}, errors.New("upstream down"))

	s := newTestSession(t, qs, Options{Grader: grader})
	require.NoError(t, s.Start())
	rec, err := s.Answer(context.Background(), "script injection")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PointsAwarded)
	assert.False(t, rec.Graded)
	assert.Equal(t, quiz.PhaseFeedback, s.Phase())
}

func TestSessionGraderTimeoutAwardsZero(t *testing.T) {
	qs := []quiz.Question{{ID: "o1", Text: "Explain CSRF.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyEasy}}
	s := newTestSession(t, qs, Options{Grader: blockingGrader{}, GradeTimeout: 20 * time.Millisecond})
	require.NoError(t, s.Start())

	start := time.Now()
	rec, err := s.Answer(context.Background(), "forged requests")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, rec.PointsAwarded)
}

func TestSessionWithoutGraderScoresOpenEndedZero(t *testing.T) {
	qs := []quiz.Question{{ID: "o1", Text: "Explain CSRF.", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyEasy}}
	s := newTestSession(t, qs, Options{})
	require.NoError(t, s.Start())
	rec, err := s.Answer(context.Background(), "forged requests")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PointsAwarded)
}
