// Package explanation fetches post-quiz explanations for answered questions.
package explanation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/upstream"
)

const (
	explainPath     = "/ws/questions/explain"
	defaultCacheTTL = 24 * time.Hour
)

// ErrEmptyExplanation is returned when the service answers without text.
var ErrEmptyExplanation = errors.New("explanation service returned no text")

// Request identifies the question to explain.
type Request struct {
	QuestionID string
	Question   string
	Answer     string
}

// Client calls the explanation service and caches answers in Redis by question id.
type Client struct {
	upstream *upstream.Client
	redis    *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewClient builds a client; rdb may be nil to disable caching.
func NewClient(c *upstream.Client, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *Client {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		upstream: c,
		redis:    rdb,
		ttl:      ttl,
		logger:   logger.With().Str("component", "explanation_client").Logger(),
	}
}

type explainRequest struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Answer     string `json:"answer,omitempty"`
	Username   string `json:"username,omitempty"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

func cacheKey(questionID string) string {
	return "explanation:" + questionID
}

// Explain returns the explanation text for a question.
func (c *Client) Explain(ctx context.Context, req Request) (string, error) {
	if c.redis != nil {
		text, err := c.redis.Get(ctx, cacheKey(req.QuestionID)).Result()
		switch {
		case err == nil && text != "":
			return text, nil
		case err != nil && !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Msg("explanation cache read failed")
		}
	}

	payload := explainRequest{QuestionID: req.QuestionID, Question: req.Question, Answer: req.Answer}
	if creds, ok := auth.CredentialsFrom(ctx); ok {
		payload.Username = creds.Username
	}
	var resp explainResponse
	if err := c.upstream.PostJSON(ctx, explainPath, payload, &resp); err != nil {
		return "", fmt.Errorf("explain %s: %w", req.QuestionID, err)
	}
	if resp.Explanation == "" {
		return "", ErrEmptyExplanation
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, cacheKey(req.QuestionID), resp.Explanation, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("explanation cache write failed")
		}
	}
	return resp.Explanation, nil
}
