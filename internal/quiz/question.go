package quiz

import (
	"fmt"
	"regexp"
	"strings"
)

// optionPrefix matches labels such as "A) ", "b. " or "C: " in front of option text.
var optionPrefix = regexp.MustCompile(`^\s*[A-Fa-f]\s*[\).:]\s+`)

const letters = "ABCDEF"

// ParseDifficulty accepts easy, medium or hard in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// DefaultSeconds is the time budget used when a question does not carry one.
func DefaultSeconds(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return DefaultEasySeconds
	case DifficultyHard:
		return DefaultHardSeconds
	default:
		return DefaultMediumSeconds
	}
}

// Letter returns the label assigned to the option at index i.
func Letter(i int) string {
	if i < 0 || i >= len(letters) {
		return ""
	}
	return letters[i : i+1]
}

// StripOptionPrefix removes a leading letter label from option or answer text.
func StripOptionPrefix(s string) string {
	return strings.TrimSpace(optionPrefix.ReplaceAllString(s, ""))
}

// letterIndex maps a bare letter ("B", "c") to an option index.
func letterIndex(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	i := strings.IndexByte(letters, strings.ToUpper(s)[0])
	return i, i >= 0
}

// ResolveOption finds the option an answer denotes. A bare letter selects by position,
// anything else is compared case-insensitively after prefix stripping. The answer must
// denote exactly one option.
func ResolveOption(options []string, answer string) (int, bool) {
	trimmed := strings.TrimSpace(answer)
	if i, ok := letterIndex(trimmed); ok {
		if i < len(options) {
			return i, true
		}
		return 0, false
	}

	want := StripOptionPrefix(trimmed)
	if want == "" {
		return 0, false
	}
	found := -1
	for i, opt := range options {
		if strings.EqualFold(StripOptionPrefix(opt), want) {
			if found >= 0 {
				return 0, false
			}
			found = i
		}
	}
	return found, found >= 0
}

// IsCorrect reports whether raw selects the correct option of a prepared
// multiple-choice question. Open-ended questions are never correct locally.
func IsCorrect(q Question, raw string) bool {
	if q.Kind != KindMultipleChoice || raw == TimeoutAnswer {
		return false
	}
	i, ok := ResolveOption(q.Options, raw)
	if !ok {
		return false
	}
	return strings.EqualFold(q.Options[i], q.CorrectAnswer)
}

// Prepare validates questions for a session and returns normalized copies: option
// labels stripped, the correct answer rewritten to the full option text and missing
// time budgets filled from the difficulty.
func Prepare(questions []Question) ([]Question, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: a session needs at least one question", ErrMalformedQuestion)
	}

	seen := make(map[string]struct{}, len(questions))
	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		prepared, err := prepareOne(q, i)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[prepared.ID]; dup {
			return nil, malformed(q, i, "duplicate id")
		}
		seen[prepared.ID] = struct{}{}
		out = append(out, prepared)
	}
	return out, nil
}

func prepareOne(q Question, index int) (Question, error) {
	q.ID = strings.TrimSpace(q.ID)
	q.Text = strings.TrimSpace(q.Text)
	if q.ID == "" {
		return q, malformed(q, index, "missing id")
	}
	if q.Text == "" {
		return q, malformed(q, index, "empty text")
	}

	d, err := ParseDifficulty(string(q.Difficulty))
	if err != nil {
		return q, malformed(q, index, err.Error())
	}
	q.Difficulty = d

	switch {
	case q.AllowedSeconds < 0:
		return q, malformed(q, index, "negative allowed seconds")
	case q.AllowedSeconds == 0:
		q.AllowedSeconds = DefaultSeconds(d)
	}

	switch q.Kind {
	case KindMultipleChoice:
		return prepareChoice(q, index)
	case KindOpenEnded:
		q.Options = nil
		return q, nil
	default:
		return q, malformed(q, index, fmt.Sprintf("unknown kind %q", q.Kind))
	}
}

func prepareChoice(q Question, index int) (Question, error) {
	if len(q.Options) == 0 {
		return q, malformed(q, index, "multiple choice without options")
	}
	if len(q.Options) > len(letters) {
		return q, malformed(q, index, fmt.Sprintf("more than %d options", len(letters)))
	}
	opts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = StripOptionPrefix(opt)
		if opts[i] == "" {
			return q, malformed(q, index, fmt.Sprintf("empty option %s", Letter(i)))
		}
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return q, malformed(q, index, "missing correct answer")
	}
	i, ok := ResolveOption(opts, q.CorrectAnswer)
	if !ok {
		return q, malformed(q, index, fmt.Sprintf("correct answer %q does not denote exactly one option", q.CorrectAnswer))
	}
	q.Options = opts
	q.CorrectAnswer = opts[i]
	return q, nil
}
