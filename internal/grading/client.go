// Package grading scores open-ended answers through the external grader.
package grading

import (
	"context"
	"fmt"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/quiz/session"
	"github.com/gokatarajesh/cyberhoot/internal/upstream"
)

const gradePath = "/ws/questions/gradeAnswer"

// Client implements session.Grader.
type Client struct {
	upstream *upstream.Client
}

var _ session.Grader = (*Client)(nil)

func NewClient(c *upstream.Client) *Client {
	return &Client{upstream: c}
}

type gradeRequest struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	UserAnswer string `json:"userAnswer"`
	Username   string `json:"username,omitempty"`
}

type gradeResponse struct {
	Score       int  `json:"score"`
	Correct     bool `json:"correct"`
	SolvingTime int  `json:"solvingTime"`
}

// Grade posts the answer and maps the verdict. The username comes from the
// request credentials when present, else from the grade request.
func (c *Client) Grade(ctx context.Context, req quiz.GradeRequest) (quiz.GradeResult, error) {
	username := req.Participant
	if creds, ok := auth.CredentialsFrom(ctx); ok && creds.Username != "" {
		username = creds.Username
	}

	var resp gradeResponse
	err := c.upstream.PostJSON(ctx, gradePath, gradeRequest{
		QuestionID: req.QuestionID,
		Question:   req.Question,
		UserAnswer: req.Answer,
		Username:   username,
	}, &resp)
	if err != nil {
		return quiz.GradeResult{}, fmt.Errorf("grade %s: %w", req.QuestionID, err)
	}
	return quiz.GradeResult{
		Score:              resp.Score,
		Correct:            resp.Correct,
		NextSolvingSeconds: max(resp.SolvingTime, 0),
	}, nil
}
