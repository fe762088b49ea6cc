package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

func ids(qs []quiz.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestBankSelect(t *testing.T) {
	bank, err := LoadBank()
	require.NoError(t, err)

	tests := []struct {
		name       string
		difficulty quiz.Difficulty
		typ        Type
		count      int
		want       []string
	}{
		{"hard mcq", quiz.DifficultyHard, TypeMCQ, 5, []string{"fallback-7", "fallback-8", "fallback-9"}},
		{"all mcq truncated", quiz.DifficultyAll, TypeMCQ, 4, []string{"fallback-1", "fallback-2", "fallback-3", "fallback-4"}},
		{"open ignores difficulty", quiz.DifficultyEasy, TypeOpen, 5, []string{"fallback-10", "fallback-11", "fallback-12"}},
		{"easy all appends open", quiz.DifficultyEasy, TypeAll, 10, []string{"fallback-1", "fallback-2", "fallback-3", "fallback-10", "fallback-11", "fallback-12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(bank.Select(tt.difficulty, tt.typ, tt.count)))
		})
	}
}

func TestBankEverythingIsPlayable(t *testing.T) {
	bank, err := LoadBank()
	require.NoError(t, err)

	all := bank.Select(quiz.DifficultyAll, TypeAll, 0)
	require.Len(t, all, 12)
	prepared, err := quiz.Prepare(all)
	require.NoError(t, err)

	assert.Equal(t, "AES-256", prepared[7].CorrectAnswer)
	assert.Equal(t, quiz.DefaultHardSeconds, prepared[7].AllowedSeconds)
	assert.Equal(t, quiz.KindOpenEnded, prepared[9].Kind)
	assert.Equal(t, 60, prepared[9].AllowedSeconds)
}

func TestBankSelectReturnsCopies(t *testing.T) {
	bank, err := LoadBank()
	require.NoError(t, err)

	first := bank.Select(quiz.DifficultyEasy, TypeMCQ, 1)
	first[0].Options[0] = "mutated"
	again := bank.Select(quiz.DifficultyEasy, TypeMCQ, 1)
	assert.NotEqual(t, "mutated", again[0].Options[0])
}

func TestParseBankRejectsBrokenEntries(t *testing.T) {
	_, err := ParseBank([]byte("easy:\n  - id: x\n    text: broken\n    options: [a, b]\n    correct_answer: c\n"))
	assert.ErrorIs(t, err, quiz.ErrMalformedQuestion)
}
