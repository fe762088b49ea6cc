package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

func TestCollectorKeepsFirstAnswer(t *testing.T) {
	qs, err := quiz.Prepare(easyQuestions())
	require.NoError(t, err)
	c := NewCollector(qs)

	calls := 0
	score := func(q quiz.Question, raw string) (int, bool, bool) {
		calls++
		return 100, true, false
	}

	first, dup, err := c.Submit("q1", "A", 3, score)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 100, first.PointsAwarded)

	again, dup, err := c.Submit("q1", "B", 9, score)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestCollectorTimeoutSkipsScoring(t *testing.T) {
	qs, err := quiz.Prepare(easyQuestions())
	require.NoError(t, err)
	c := NewCollector(qs)

	rec, _, err := c.Submit("q2", quiz.TimeoutAnswer, 20, func(quiz.Question, string) (int, bool, bool) {
		t.Fatal("score func called for timeout")
		return 0, false, false
	})
	require.NoError(t, err)
	assert.True(t, rec.TimedOut())
	assert.Equal(t, 0, rec.PointsAwarded)
}

func TestCollectorRejectsUnknownAndEmpty(t *testing.T) {
	qs, err := quiz.Prepare(easyQuestions())
	require.NoError(t, err)
	c := NewCollector(qs)

	_, _, err = c.Submit("q9", "A", 0, nil)
	assert.ErrorIs(t, err, quiz.ErrUnknownQuestion)
	_, _, err = c.Submit("q1", "", 0, nil)
	assert.ErrorIs(t, err, quiz.ErrEmptyAnswer)
	assert.Equal(t, 0, c.Len())
}

func TestCollectorRecordsInSubmissionOrder(t *testing.T) {
	qs, err := quiz.Prepare(easyQuestions())
	require.NoError(t, err)
	c := NewCollector(qs)

	score := MultipleChoiceScore(func(_ quiz.Question, correct bool) int {
		if correct {
			return 10
		}
		return 0
	})
	_, _, err = c.Submit("q3", "443", 1, score)
	require.NoError(t, err)
	_, _, err = c.Submit("q1", "b", 2, score)
	require.NoError(t, err)

	recs := c.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "q3", recs[0].QuestionID)
	assert.True(t, recs[0].Correct)
	assert.Equal(t, 10, recs[0].PointsAwarded)
	assert.False(t, recs[1].Correct)
	assert.Equal(t, 0, recs[1].PointsAwarded)
}
