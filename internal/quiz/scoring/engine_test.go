package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

func question(d quiz.Difficulty, allowed int) quiz.Question {
	return quiz.Question{ID: "q", Kind: quiz.KindMultipleChoice, Difficulty: d, AllowedSeconds: allowed}
}

func TestScoreIncorrectIsZero(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Equal(t, 0, e.Score(question(quiz.DifficultyHard, 45), 45, 5, false))
}

func TestScoreFullTimeNoStreak(t *testing.T) {
	e := NewEngine(DefaultConfig())
	for d, mult := range map[quiz.Difficulty]int{
		quiz.DifficultyEasy:   3,
		quiz.DifficultyMedium: 5,
		quiz.DifficultyHard:   9,
	} {
		q := question(d, quiz.DefaultSeconds(d))
		assert.Equal(t, 150*mult, e.Score(q, q.AllowedSeconds, 0, true), string(d))
	}
}

func TestScoreHalfTimeWithStreak(t *testing.T) {
	e := NewEngine(Config{})
	// 100 + 25 + 10 = 135, times 3
	assert.Equal(t, 405, e.Score(question(quiz.DifficultyEasy, 20), 10, 1, true))
}

func TestScoreClampsRemaining(t *testing.T) {
	e := NewEngine(DefaultConfig())
	q := question(quiz.DifficultyMedium, 30)

	assert.Equal(t, e.Score(q, 30, 0, true), e.Score(q, 300, 0, true))
	assert.Equal(t, 100*5, e.Score(q, -4, 0, true))
}

func TestTimeBonusFloors(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// 7/30*50 = 11.67
	assert.Equal(t, 11, e.TimeBonus(7, 30))
	assert.Equal(t, 0, e.TimeBonus(0, 30))
	assert.Equal(t, 0, e.TimeBonus(5, 0))
}

func TestStreakBonusCaps(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Equal(t, 0, e.StreakBonus(0))
	assert.Equal(t, 30, e.StreakBonus(3))
	assert.Equal(t, 50, e.StreakBonus(5))
	assert.Equal(t, 50, e.StreakBonus(12))
}

func TestOpenEndedNeverScores(t *testing.T) {
	e := NewEngine(DefaultConfig())
	q := quiz.Question{ID: "o", Kind: quiz.KindOpenEnded, Difficulty: quiz.DifficultyHard, AllowedSeconds: 45}
	assert.Equal(t, 0, e.Score(q, 45, 0, true))
}

func TestMissingAllowedUsesDifficultyDefault(t *testing.T) {
	e := NewEngine(DefaultConfig())
	q := question(quiz.DifficultyEasy, 0)
	assert.Equal(t, 405, e.Score(q, 10, 1, true))
}

func TestMaxScore(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Equal(t, 200*9, e.MaxScore(question(quiz.DifficultyHard, 45), 7))
}
