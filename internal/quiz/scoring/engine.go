package scoring

import "github.com/gokatarajesh/cyberhoot/internal/quiz"

// Config holds the scoring constants.
type Config struct {
	BaseScore      int // default: 100
	MaxTimeBonus   int // default: 50
	StreakStep     int // default: 10 per consecutive correct answer
	MaxStreakBonus int // default: 50
	Multipliers    map[quiz.Difficulty]int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BaseScore:      100,
		MaxTimeBonus:   50,
		StreakStep:     10,
		MaxStreakBonus: 50,
		Multipliers: map[quiz.Difficulty]int{
			quiz.DifficultyEasy:   3,
			quiz.DifficultyMedium: 5,
			quiz.DifficultyHard:   9,
		},
	}
}

// Engine computes points for answered questions. It is pure and safe for concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine; a zero Config selects the defaults.
func NewEngine(config Config) *Engine {
	if config.BaseScore == 0 && len(config.Multipliers) == 0 {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Score computes points for one answer.
// Formula: (base + time_bonus + streak_bonus) * difficulty_multiplier
// - time_bonus: floor(remaining/allowed * max), remaining clamped to [0, allowed]
// - streak_bonus: streak before this answer times the step, capped
// Open-ended questions never score here; their points come from the grader.
func (e *Engine) Score(q quiz.Question, secondsRemaining, streak int, isCorrect bool) int {
	if !isCorrect || q.Kind == quiz.KindOpenEnded {
		return 0
	}

	allowed := q.AllowedSeconds
	if allowed <= 0 {
		allowed = quiz.DefaultSeconds(q.Difficulty)
	}

	return (e.config.BaseScore + e.TimeBonus(secondsRemaining, allowed) + e.StreakBonus(streak)) * e.Multiplier(q.Difficulty)
}

// TimeBonus decays linearly from the maximum at full time to zero at expiry.
func (e *Engine) TimeBonus(secondsRemaining, allowed int) int {
	if allowed <= 0 {
		return 0
	}
	rem := clamp(secondsRemaining, 0, allowed)
	return clamp(rem*e.config.MaxTimeBonus/allowed, 0, e.config.MaxTimeBonus)
}

// StreakBonus rewards consecutive correct answers up to the cap.
func (e *Engine) StreakBonus(streak int) int {
	if streak <= 0 {
		return 0
	}
	return min(streak*e.config.StreakStep, e.config.MaxStreakBonus)
}

// Multiplier returns the difficulty multiplier, 1 for unknown difficulties.
func (e *Engine) Multiplier(d quiz.Difficulty) int {
	if m, ok := e.config.Multipliers[d]; ok {
		return m
	}
	return 1
}

// MaxScore is the best possible score for a question answered with the given streak.
func (e *Engine) MaxScore(q quiz.Question, streak int) int {
	return e.Score(q, q.AllowedSeconds, streak, true)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
