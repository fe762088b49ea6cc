package question

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

//go:embed fallback.yaml
var fallbackYAML []byte

type bankEntry struct {
	ID             string   `yaml:"id"`
	Text           string   `yaml:"text"`
	Options        []string `yaml:"options"`
	CorrectAnswer  string   `yaml:"correct_answer"`
	Difficulty     string   `yaml:"difficulty"`
	AllowedSeconds int      `yaml:"allowed_seconds"`
}

type bankFile struct {
	Easy   []bankEntry `yaml:"easy"`
	Medium []bankEntry `yaml:"medium"`
	Hard   []bankEntry `yaml:"hard"`
	Open   []bankEntry `yaml:"open"`
}

// Bank is the fixed question set used when every remote source fails.
type Bank struct {
	byDifficulty map[quiz.Difficulty][]quiz.Question
	open         []quiz.Question
}

// LoadBank parses the embedded fallback bank.
func LoadBank() (*Bank, error) {
	return ParseBank(fallbackYAML)
}

// ParseBank parses a bank document. Multiple-choice entries are grouped under
// their difficulty key; open entries carry their own difficulty.
func ParseBank(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fallback bank: %w", err)
	}

	b := &Bank{byDifficulty: make(map[quiz.Difficulty][]quiz.Question, 3)}
	groups := []struct {
		d       quiz.Difficulty
		entries []bankEntry
	}{
		{quiz.DifficultyEasy, f.Easy},
		{quiz.DifficultyMedium, f.Medium},
		{quiz.DifficultyHard, f.Hard},
	}
	for _, g := range groups {
		for _, e := range g.entries {
			b.byDifficulty[g.d] = append(b.byDifficulty[g.d], e.question(quiz.KindMultipleChoice, g.d))
		}
	}
	for _, e := range f.Open {
		b.open = append(b.open, e.question(quiz.KindOpenEnded, quiz.Difficulty(e.Difficulty)))
	}

	all := append([]quiz.Question(nil), b.open...)
	for _, g := range groups {
		all = append(all, b.byDifficulty[g.d]...)
	}
	if _, err := quiz.Prepare(all); err != nil {
		return nil, fmt.Errorf("fallback bank: %w", err)
	}
	return b, nil
}

func (e bankEntry) question(kind quiz.Kind, d quiz.Difficulty) quiz.Question {
	return quiz.Question{
		ID:             e.ID,
		Text:           e.Text,
		Kind:           kind,
		Options:        append([]string(nil), e.Options...),
		CorrectAnswer:  e.CorrectAnswer,
		Difficulty:     d,
		AllowedSeconds: e.AllowedSeconds,
		Source:         SourceFallback,
	}
}

// Select filters the bank: difficulty all covers every level, and the open or all
// types append the whole open-ended set after the multiple-choice questions. The
// result is truncated to count.
func (b *Bank) Select(d quiz.Difficulty, t Type, count int) []quiz.Question {
	levels := []quiz.Difficulty{d}
	if d == quiz.DifficultyAll {
		levels = []quiz.Difficulty{quiz.DifficultyEasy, quiz.DifficultyMedium, quiz.DifficultyHard}
	}

	var out []quiz.Question
	for _, level := range levels {
		for _, q := range b.byDifficulty[level] {
			if t == TypeAll || (t == TypeMCQ && q.Kind == quiz.KindMultipleChoice) {
				out = append(out, cloneQuestion(q))
			}
		}
	}
	if t == TypeOpen || t == TypeAll {
		for _, q := range b.open {
			out = append(out, cloneQuestion(q))
		}
	}
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

func cloneQuestion(q quiz.Question) quiz.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}
