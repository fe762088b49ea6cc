// Package generator talks to the question generator service.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/upstream"
)

const (
	questionsPath = "/ws/questions/getQuestions"

	defaultMaxRetries = 2
	defaultBackoff    = 200 * time.Millisecond
)

// Config tunes retries of transient generator failures.
type Config struct {
	MaxRetries uint64
	Backoff    time.Duration
}

// Generator implements question.Generator.
type Generator struct {
	client *upstream.Client
	config Config
	logger zerolog.Logger
}

var _ question.Generator = (*Generator)(nil)

func New(client *upstream.Client, cfg Config, logger zerolog.Logger) *Generator {
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Generator{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "question_generator").Logger(),
	}
}

// Generate asks for req.Count questions. The service answers one question or a
// list per call, so it is called until enough arrive or a call adds nothing.
func (g *Generator) Generate(ctx context.Context, req question.GenerateRequest) ([]quiz.Question, error) {
	if !g.client.Configured() {
		return nil, upstream.ErrNotConfigured
	}

	kind := "mcq"
	if req.Type == question.TypeOpen {
		kind = "open"
	}
	payload := generatorRequest{
		Difficulty: question.NumericDifficulty(req.Difficulty),
		Type:       kind,
		Language:   req.Language,
		Topic:      req.Topic,
		Count:      req.Count,
	}

	label := req.Difficulty
	if label == quiz.DifficultyAll || label == "" {
		label = quiz.DifficultyMedium
	}

	seen := make(map[string]struct{}, req.Count)
	out := make([]quiz.Question, 0, req.Count)
	for len(out) < req.Count {
		batch, err := g.call(ctx, payload)
		if err != nil {
			if len(out) > 0 {
				g.logger.Warn().Err(err).Int("have", len(out)).Msg("generator stopped early")
				break
			}
			return nil, err
		}
		added := 0
		for _, gq := range batch {
			q := gq.toQuestion(label, req.Topic, req.Language)
			if _, dup := seen[q.Text]; dup || q.Text == "" {
				continue
			}
			seen[q.Text] = struct{}{}
			out = append(out, q)
			added++
		}
		if added == 0 {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("generator returned empty question set")
	}
	if len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}

func (g *Generator) call(ctx context.Context, payload generatorRequest) ([]generatedQuestion, error) {
	backoff := retry.WithMaxRetries(g.config.MaxRetries, retry.NewExponential(g.config.Backoff))

	var raw json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		raw = nil
		if err := g.client.PostJSON(ctx, questionsPath, payload, &raw); err != nil {
			var statusErr *upstream.StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return err
			}
			g.logger.Debug().Err(err).Msg("retrying generator call")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeQuestions(raw)
}

// decodeQuestions accepts either a single question object or an array.
func decodeQuestions(raw json.RawMessage) ([]generatedQuestion, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []generatedQuestion
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode generator list: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return wrapped.Questions, nil
	}
	var single generatedQuestion
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode generator question: %w", err)
	}
	return []generatedQuestion{single}, nil
}

type generatorRequest struct {
	Difficulty int    `json:"difficulty"`
	Type       string `json:"type"`
	Language   string `json:"language"`
	Topic      string `json:"topic"`
	Count      int    `json:"count,omitempty"`
}

type generatedQuestion struct {
	ID            flexibleID `json:"id"`
	Type          string     `json:"type"`
	Language      string     `json:"language"`
	Topic         string     `json:"topic"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correctAnswer"`
	Answer        string     `json:"answer"`
	SolvingTime   int        `json:"solvingTime"`
}

func (gq generatedQuestion) toQuestion(d quiz.Difficulty, topic, language string) quiz.Question {
	id := string(gq.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if gq.Topic != "" {
		topic = gq.Topic
	}
	if gq.Language != "" {
		language = gq.Language
	}

	q := quiz.Question{
		ID:             "gen-" + id,
		Text:           strings.TrimSpace(gq.Text),
		Difficulty:     d,
		AllowedSeconds: gq.SolvingTime,
		Topic:          topic,
		Language:       language,
		Source:         question.SourceGenerator,
	}
	switch strings.ToLower(gq.Type) {
	case "open", "open-ended":
		q.Kind = quiz.KindOpenEnded
	default:
		q.Kind = quiz.KindMultipleChoice
		q.Options = gq.Options
		q.CorrectAnswer = gq.CorrectAnswer
		if q.CorrectAnswer == "" {
			q.CorrectAnswer = gq.Answer
		}
	}
	return q
}

// flexibleID accepts both numeric and string ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexibleID(n.String())
	return nil
}
