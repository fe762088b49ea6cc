package game

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// StartQuizRequest is the body of POST /v1/quizzes and the lobby settings.
type StartQuizRequest struct {
	Topic        string `json:"topic" validate:"omitempty,max=64"`
	QuestionType string `json:"question_type" validate:"omitempty,oneof=mcq open all multiple-choice open-ended"`
	Difficulty   string `json:"difficulty" validate:"omitempty,oneof=easy medium hard all"`
	Count        int    `json:"count" validate:"omitempty,min=1,max=50"`
	Language     string `json:"language" validate:"omitempty,max=32"`
}

func (r StartQuizRequest) questionRequest() question.Request {
	return question.Request{
		Topic:      r.Topic,
		Type:       question.Type(r.QuestionType),
		Difficulty: quiz.Difficulty(r.Difficulty),
		Count:      r.Count,
		Language:   r.Language,
	}
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=128"`
	Answer     string `json:"answer" validate:"required,max=4000"`
}

type CreateLobbyRequest struct {
	Name     string           `json:"name" validate:"omitempty,max=32"`
	Avatar   string           `json:"avatar" validate:"omitempty,max=16"`
	Settings StartQuizRequest `json:"settings"`
}

// fieldError is the first failing field of a validation error.
type fieldError struct {
	Field   string
	Message string
}

func validationError(err error) fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fieldError{Message: err.Error()}
	}
	fe := verrs[0]
	msg := fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fieldError{Field: fe.Field(), Message: msg}
}
