package quiz

import "time"

// Kind distinguishes multiple-choice from open-ended questions.
type Kind string

const (
	KindMultipleChoice Kind = "mcq"
	KindOpenEnded      Kind = "open"
)

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyAll is only valid on requests and aggregated results.
	DifficultyAll Difficulty = "all"
)

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseFeedback       Phase = "feedback"
	PhaseCompleted      Phase = "completed"
)

// TimeoutAnswer is the raw answer recorded when the timer expires.
const TimeoutAnswer = "TIMEOUT"

// Default time budgets per difficulty, in seconds.
const (
	DefaultEasySeconds   = 20
	DefaultMediumSeconds = 30
	DefaultHardSeconds   = 45
)

// Question is a single prompt within a session.
type Question struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	Kind           Kind       `json:"kind"`
	Options        []string   `json:"options,omitempty"`
	CorrectAnswer  string     `json:"correct_answer,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	AllowedSeconds int        `json:"allowed_seconds"`
	Topic          string     `json:"topic,omitempty"`
	Language       string     `json:"language,omitempty"`
	Source         string     `json:"source,omitempty"`
}

// Public returns a copy safe to hand to participants (no correct answer).
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	q.Options = append([]string(nil), q.Options...)
	return q
}

// AnswerRecord is the single answer stored for a question.
type AnswerRecord struct {
	QuestionID    string `json:"question_id"`
	Question      string `json:"question,omitempty"`
	Kind          Kind   `json:"kind"`
	RawAnswer     string `json:"raw_answer"`
	SubmittedAt   int    `json:"submitted_at"`
	PointsAwarded int    `json:"points_awarded"`
	Correct       bool   `json:"correct"`
	Graded        bool   `json:"graded,omitempty"`
}

// TimedOut reports whether the record was produced by timer expiry.
func (r AnswerRecord) TimedOut() bool {
	return r.RawAnswer == TimeoutAnswer
}

// State is a point-in-time snapshot of a session.
type State struct {
	SessionID    string         `json:"session_id"`
	Participant  string         `json:"participant"`
	Questions    []Question     `json:"questions"`
	CurrentIndex int            `json:"current_index"`
	Answers      []AnswerRecord `json:"answers"`
	Score        int            `json:"score"`
	Streak       int            `json:"streak"`
	Phase        Phase          `json:"phase"`
	Remaining    int            `json:"remaining"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// Answer looks up the record for a question id.
func (s State) Answer(questionID string) (AnswerRecord, bool) {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return AnswerRecord{}, false
}

// BreakdownItem is one row of a result, in question order.
type BreakdownItem struct {
	QuestionID    string `json:"question_id"`
	Kind          Kind   `json:"kind"`
	RawAnswer     string `json:"raw_answer"`
	PointsAwarded int    `json:"points_awarded"`
	WasCorrect    bool   `json:"was_correct"`
}

// Achievement is an advisory badge derived from a result.
type Achievement struct {
	Code        string `json:"code"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Result is the final report of a completed session.
type Result struct {
	SessionID      string          `json:"session_id"`
	Participant    string          `json:"participant"`
	Topic          string          `json:"topic,omitempty"`
	Difficulty     Difficulty      `json:"difficulty"`
	TotalScore     int             `json:"total_score"`
	CorrectCount   int             `json:"correct_count"`
	QuestionCount  int             `json:"question_count"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	Rank           int             `json:"rank,omitempty"`
	Breakdown      []BreakdownItem `json:"breakdown"`
	Achievements   []Achievement   `json:"achievements"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// GradeRequest is sent to the open-ended grading collaborator.
type GradeRequest struct {
	SessionID   string `json:"session_id"`
	Participant string `json:"participant"`
	QuestionID  string `json:"question_id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
}

// GradeResult is the grader's verdict. NextSolvingSeconds is zero when absent.
type GradeResult struct {
	Score              int  `json:"score"`
	Correct            bool `json:"correct"`
	NextSolvingSeconds int  `json:"next_solving_seconds,omitempty"`
}
