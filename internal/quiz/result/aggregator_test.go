package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

func codes(achs []quiz.Achievement) []string {
	out := make([]string, 0, len(achs))
	for _, a := range achs {
		out = append(out, a.Code)
	}
	return out
}

func completedState(d quiz.Difficulty, score int, elapsed time.Duration) quiz.State {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return quiz.State{
		SessionID:   "s-1",
		Participant: "alice",
		Questions: []quiz.Question{
			{ID: "q1", Kind: quiz.KindMultipleChoice, Difficulty: d, Topic: "cybersecurity"},
			{ID: "q2", Kind: quiz.KindOpenEnded, Difficulty: d, Topic: "cybersecurity"},
			{ID: "q3", Kind: quiz.KindMultipleChoice, Difficulty: d, Topic: "cybersecurity"},
		},
		Answers: []quiz.AnswerRecord{
			{QuestionID: "q3", Kind: quiz.KindMultipleChoice, RawAnswer: "TIMEOUT"},
			{QuestionID: "q1", Kind: quiz.KindMultipleChoice, RawAnswer: "A", PointsAwarded: score - 200, Correct: true},
			{QuestionID: "q2", Kind: quiz.KindOpenEnded, RawAnswer: "some text", PointsAwarded: 200, Correct: true},
		},
		Score:       score,
		Phase:       quiz.PhaseCompleted,
		StartedAt:   start,
		CompletedAt: start.Add(elapsed),
	}
}

func TestAggregateBuildsBreakdownInQuestionOrder(t *testing.T) {
	res := New().Aggregate(completedState(quiz.DifficultyHard, 900, 3*time.Minute), Context{})

	assert.Equal(t, 900, res.TotalScore)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 3, res.QuestionCount)
	assert.Equal(t, 180, res.ElapsedSeconds)
	assert.Equal(t, res.CompletedAt.Add(-3*time.Minute), res.StartedAt)
	assert.Equal(t, "cybersecurity", res.Topic)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, []string{"q1", "q2", "q3"}, []string{res.Breakdown[0].QuestionID, res.Breakdown[1].QuestionID, res.Breakdown[2].QuestionID})
	assert.Equal(t, "TIMEOUT", res.Breakdown[2].RawAnswer)
	assert.Equal(t, []string{"high_scorer", "challenge_seeker"}, codes(res.Achievements))
}

func TestAggregateAchievements(t *testing.T) {
	unstarted := completedState(quiz.DifficultyEasy, 250, 90*time.Second)
	unstarted.StartedAt = time.Time{}

	tests := []struct {
		name  string
		state quiz.State
		rc    Context
		want  []string
	}{
		{"fast easy", completedState(quiz.DifficultyEasy, 250, 90*time.Second), Context{}, []string{"speed_demon", "beginner"}},
		{"medium winner", completedState(quiz.DifficultyMedium, 400, 5*time.Minute), Context{Multiplayer: true, Rank: 1}, []string{"high_scorer", "champion", "skilled_player"}},
		{"runner up", completedState(quiz.DifficultyMedium, 250, 5*time.Minute), Context{Multiplayer: true, Rank: 2}, []string{"skilled_player"}},
		{"no start time", unstarted, Context{}, []string{"beginner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Aggregate(tt.state, tt.rc)
			assert.Equal(t, tt.want, codes(res.Achievements))
		})
	}
}

func TestAggregateFallsBackToScholar(t *testing.T) {
	state := completedState(quiz.DifficultyEasy, 250, 5*time.Minute)
	state.Questions[1].Difficulty = quiz.DifficultyHard

	res := New().Aggregate(state, Context{})
	assert.Equal(t, quiz.DifficultyAll, res.Difficulty)
	assert.Equal(t, []string{"cyber_scholar"}, codes(res.Achievements))
}

func TestDifficulty(t *testing.T) {
	assert.Equal(t, quiz.DifficultyAll, Difficulty(nil))
	assert.Equal(t, quiz.DifficultyHard, Difficulty([]quiz.Question{{Difficulty: quiz.DifficultyHard}}))
}
