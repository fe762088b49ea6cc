package session

import (
	"fmt"
	"strings"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

// ScoreFunc evaluates a first answer to a question. It is not called for the
// timeout sentinel, which always scores zero.
type ScoreFunc func(q quiz.Question, raw string) (points int, correct, graded bool)

// Collector keeps at most one AnswerRecord per question.
type Collector struct {
	questions map[string]quiz.Question
	records   map[string]quiz.AnswerRecord
	order     []string
}

// NewCollector creates a collector for a prepared question set.
func NewCollector(questions []quiz.Question) *Collector {
	byID := make(map[string]quiz.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &Collector{
		questions: byID,
		records:   make(map[string]quiz.AnswerRecord, len(questions)),
		order:     make([]string, 0, len(questions)),
	}
}

// Submit records the answer for questionID. A second submission for the same
// question is a no-op that returns the stored record with duplicate set.
func (c *Collector) Submit(questionID, raw string, submittedAt int, score ScoreFunc) (rec quiz.AnswerRecord, duplicate bool, err error) {
	if existing, ok := c.records[questionID]; ok {
		return existing, true, nil
	}
	q, ok := c.questions[questionID]
	if !ok {
		return quiz.AnswerRecord{}, false, fmt.Errorf("%w: %s", quiz.ErrUnknownQuestion, questionID)
	}
	if raw != quiz.TimeoutAnswer && strings.TrimSpace(raw) == "" {
		return quiz.AnswerRecord{}, false, quiz.ErrEmptyAnswer
	}

	rec = quiz.AnswerRecord{
		QuestionID:  questionID,
		Kind:        q.Kind,
		RawAnswer:   raw,
		SubmittedAt: max(submittedAt, 0),
	}
	if raw != quiz.TimeoutAnswer && score != nil {
		points, correct, graded := score(q, raw)
		rec.PointsAwarded = max(points, 0)
		rec.Correct = correct
		rec.Graded = graded
	}

	c.records[questionID] = rec
	c.order = append(c.order, questionID)
	return rec, false, nil
}

// Get returns the record for a question, if any.
func (c *Collector) Get(questionID string) (quiz.AnswerRecord, bool) {
	rec, ok := c.records[questionID]
	return rec, ok
}

// Knows reports whether questionID belongs to the question set.
func (c *Collector) Knows(questionID string) bool {
	_, ok := c.questions[questionID]
	return ok
}

// Records returns all answers in the order they were recorded.
func (c *Collector) Records() []quiz.AnswerRecord {
	out := make([]quiz.AnswerRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id])
	}
	return out
}

// Len is the number of recorded answers.
func (c *Collector) Len() int {
	return len(c.order)
}

// MultipleChoiceScore adapts a points function into a ScoreFunc using the
// canonical answer normalization.
func MultipleChoiceScore(points func(q quiz.Question, correct bool) int) ScoreFunc {
	return func(q quiz.Question, raw string) (int, bool, bool) {
		correct := quiz.IsCorrect(q, raw)
		return points(q, correct), correct, false
	}
}
