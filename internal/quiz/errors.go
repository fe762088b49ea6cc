package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the current phase.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrMalformedQuestion is returned when a session would be built from invalid questions.
	ErrMalformedQuestion = errors.New("malformed question")
	ErrEmptyAnswer       = errors.New("empty answer")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrSessionClosed     = errors.New("session closed")
	ErrNotCompleted      = errors.New("session not completed")
)

// MalformedQuestionError names the offending question.
type MalformedQuestionError struct {
	QuestionID string
	Index      int
	Reason     string
}

func (e *MalformedQuestionError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("malformed question at index %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed question %q: %s", e.QuestionID, e.Reason)
}

func (e *MalformedQuestionError) Unwrap() error {
	return ErrMalformedQuestion
}

func malformed(q Question, index int, reason string) error {
	return &MalformedQuestionError{QuestionID: q.ID, Index: index, Reason: reason}
}

// TransitionError reports the operation and phase of a rejected transition.
func TransitionError(op string, phase Phase) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, phase)
}
