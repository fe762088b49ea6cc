package question

import (
	"fmt"
	"strings"
	"time"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

// Type selects the question kinds of a set.
type Type string

const (
	TypeMCQ  Type = "mcq"
	TypeOpen Type = "open"
	TypeAll  Type = "all"
)

// Sources that can produce a question set.
const (
	SourceCache     = "cache"
	SourceGenerator = "generator"
	SourceOpenTDB   = "opentdb"
	SourceFallback  = "fallback"
)

const (
	DefaultTopic    = "cybersecurity"
	DefaultLanguage = "English"
	DefaultCount    = 5
	MaxCount        = 50
)

// Request describes the question set a quiz needs.
type Request struct {
	Topic      string          `json:"topic"`
	Type       Type            `json:"question_type"`
	Difficulty quiz.Difficulty `json:"difficulty"`
	Count      int             `json:"count"`
	Language   string          `json:"language"`
}

// Normalize fills defaults and canonicalizes casing. It fails on unknown types
// or difficulties.
func (r Request) Normalize() (Request, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Count <= 0 {
		r.Count = DefaultCount
	}
	if r.Count > MaxCount {
		r.Count = MaxCount
	}

	switch Type(strings.ToLower(string(r.Type))) {
	case "", TypeMCQ, "multiple-choice":
		r.Type = TypeMCQ
	case TypeOpen, "open-ended":
		r.Type = TypeOpen
	case TypeAll:
		r.Type = TypeAll
	default:
		return r, fmt.Errorf("unknown question type %q", r.Type)
	}

	switch d := quiz.Difficulty(strings.ToLower(string(r.Difficulty))); d {
	case "", quiz.DifficultyAll:
		r.Difficulty = quiz.DifficultyAll
	case quiz.DifficultyEasy, quiz.DifficultyMedium, quiz.DifficultyHard:
		r.Difficulty = d
	default:
		return r, fmt.Errorf("unknown difficulty %q", r.Difficulty)
	}
	return r, nil
}

// NumericDifficulty is the 1-10 scale used by the question generator.
func NumericDifficulty(d quiz.Difficulty) int {
	switch d {
	case quiz.DifficultyEasy:
		return 3
	case quiz.DifficultyHard:
		return 9
	default:
		return 5
	}
}

// Set is a batch of questions ready for a session.
type Set struct {
	Questions []quiz.Question `json:"questions"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// GenerateRequest is what the generator receives for one batch.
type GenerateRequest struct {
	Topic      string
	Type       Type
	Difficulty quiz.Difficulty
	Language   string
	Count      int
}
