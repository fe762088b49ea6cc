package game

import (
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/session"
)

// View is what a participant sees of their session. The correct answer only
// appears once the current question has been answered.
type View struct {
	SessionID     string             `json:"session_id"`
	Participant   string             `json:"participant"`
	Phase         quiz.Phase         `json:"phase"`
	Index         int                `json:"index"`
	Total         int                `json:"total"`
	Question      *quiz.Question     `json:"question,omitempty"`
	Remaining     int                `json:"remaining_seconds"`
	Allowed       int                `json:"allowed_seconds"`
	Score         int                `json:"score"`
	Streak        int                `json:"streak"`
	LastAnswer    *quiz.AnswerRecord `json:"last_answer,omitempty"`
	CorrectAnswer string             `json:"correct_answer,omitempty"`
	Source        string             `json:"source,omitempty"`
}

func viewOf(s *session.Session, source string) View {
	st := s.State()
	v := View{
		SessionID:   s.ID(),
		Participant: s.Participant(),
		Phase:       s.Phase(),
		Index:       st.CurrentIndex,
		Total:       s.Len(),
		Remaining:   s.Remaining(),
		Allowed:     s.Allowed(),
		Score:       s.Score(),
		Streak:      s.Streak(),
		Source:      source,
	}

	q, ok := s.Current()
	if !ok {
		return v
	}
	pub := q.Public()
	v.Question = &pub

	if v.Phase == quiz.PhaseFeedback || v.Phase == quiz.PhaseCompleted {
		if rec, ok := st.Answer(q.ID); ok {
			v.LastAnswer = &rec
		}
		v.CorrectAnswer = q.CorrectAnswer
	}
	return v
}
