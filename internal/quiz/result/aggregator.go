package result

import (
	"time"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

// Context carries facts about a finished session that the state itself does not hold.
type Context struct {
	Multiplayer bool
	// Rank is the 1-based finishing position in a multiplayer game, 0 when unknown.
	Rank int
}

// Rule derives an achievement from a result; ok is false when it does not apply.
type Rule func(r quiz.Result, rc Context) (quiz.Achievement, bool)

// Aggregator turns a session snapshot into a QuizResult.
type Aggregator struct {
	rules    []Rule
	fallback quiz.Achievement
}

// New returns an aggregator with the default achievement rules.
func New() *Aggregator {
	return NewWithRules(DefaultRules(), CyberScholar)
}

// NewWithRules builds an aggregator with custom rules. The fallback achievement is
// awarded when no rule applies; an empty fallback Code disables it.
func NewWithRules(rules []Rule, fallback quiz.Achievement) *Aggregator {
	return &Aggregator{rules: rules, fallback: fallback}
}

// Aggregate builds the final report. Breakdown rows follow question order; open-ended
// answers never count towards CorrectCount.
func (a *Aggregator) Aggregate(state quiz.State, rc Context) quiz.Result {
	res := quiz.Result{
		SessionID:     state.SessionID,
		Participant:   state.Participant,
		Difficulty:    Difficulty(state.Questions),
		TotalScore:    state.Score,
		QuestionCount: len(state.Questions),
		Rank:          rc.Rank,
		Breakdown:     make([]quiz.BreakdownItem, 0, len(state.Questions)),
		StartedAt:     state.StartedAt,
		CompletedAt:   state.CompletedAt,
	}
	if len(state.Questions) > 0 {
		res.Topic = state.Questions[0].Topic
	}
	if !state.StartedAt.IsZero() && !state.CompletedAt.IsZero() {
		res.ElapsedSeconds = int(state.CompletedAt.Sub(state.StartedAt) / time.Second)
	}

	for _, q := range state.Questions {
		rec, ok := state.Answer(q.ID)
		item := quiz.BreakdownItem{QuestionID: q.ID, Question: q.Text, Kind: q.Kind}
		if ok {
			item.RawAnswer = rec.RawAnswer
			item.PointsAwarded = rec.PointsAwarded
			item.WasCorrect = rec.Correct
			if q.Kind == quiz.KindMultipleChoice && rec.PointsAwarded > 0 {
				res.CorrectCount++
			}
		}
		res.Breakdown = append(res.Breakdown, item)
	}

	res.Achievements = a.achievements(res, rc)
	return res
}

func (a *Aggregator) achievements(r quiz.Result, rc Context) []quiz.Achievement {
	out := make([]quiz.Achievement, 0, len(a.rules))
	for _, rule := range a.rules {
		if ach, ok := rule(r, rc); ok {
			out = append(out, ach)
		}
	}
	if len(out) == 0 && a.fallback.Code != "" {
		out = append(out, a.fallback)
	}
	return out
}

// Difficulty reports the shared difficulty of a question set, or all when mixed.
func Difficulty(questions []quiz.Question) quiz.Difficulty {
	if len(questions) == 0 {
		return quiz.DifficultyAll
	}
	d := questions[0].Difficulty
	for _, q := range questions[1:] {
		if q.Difficulty != d {
			return quiz.DifficultyAll
		}
	}
	return d
}
