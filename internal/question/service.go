package question

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/metrics"
	"github.com/gokatarajesh/cyberhoot/internal/question/external"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

const defaultFetchTimeout = 4 * time.Second

// SetCache defines cache behavior (implemented by the Redis-backed Cache).
type SetCache interface {
	Get(ctx context.Context, req Request) (*Set, error)
	Set(ctx context.Context, req Request, set Set) error
}

// Generator produces questions on demand from the generator service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]quiz.Question, error)
}

type opentdbProvider interface {
	Fetch(ctx context.Context, amount int, difficulty string) ([]external.OpenTDBQuestion, error)
}

// ServiceOptions tunes the question service.
type ServiceOptions struct {
	// FetchTimeout bounds each remote source call; default 4s.
	FetchTimeout time.Duration
	Logger       zerolog.Logger
}

// Service resolves question sets with the priority cache -> generator -> OpenTDB
// -> fallback bank. It only fails when the request itself is invalid.
type Service struct {
	cache     SetCache
	generator Generator
	opentdb   opentdbProvider
	bank      *Bank
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the sources; cache, generator and opentdb may be nil.
func NewService(cache SetCache, generator Generator, opentdb opentdbProvider, bank *Bank, opts ServiceOptions) *Service {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Service{
		cache:     cache,
		generator: generator,
		opentdb:   opentdb,
		bank:      bank,
		timeout:   timeout,
		logger:    opts.Logger.With().Str("component", "question_service").Logger(),
		now:       time.Now,
	}
}

// Fetch returns a validated question set for req.
func (s *Service) Fetch(ctx context.Context, req Request) (Set, error) {
	req, err := req.Normalize()
	if err != nil {
		return Set{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Msg("question cache read failed")
		} else if cached != nil && len(cached.Questions) > 0 {
			metrics.QuestionSource.WithLabelValues(SourceCache).Inc()
			set := *cached
			set.Source = SourceCache
			return set, nil
		}
	}

	qs, source := s.fetchRemote(ctx, req)
	if len(qs) == 0 {
		if s.bank == nil {
			return Set{}, errors.New("no question source available")
		}
		qs, source = s.bank.Select(req.Difficulty, req.Type, req.Count), SourceFallback
		for i := range qs {
			qs[i].Topic = req.Topic
			qs[i].Language = req.Language
		}
	}
	if len(qs) == 0 {
		return Set{}, fmt.Errorf("no %s questions for difficulty %s", req.Type, req.Difficulty)
	}

	set := Set{Questions: qs, Source: source, FetchedAt: s.now()}
	metrics.QuestionSource.WithLabelValues(source).Inc()
	if source != SourceFallback && s.cache != nil {
		if err := s.cache.Set(ctx, req, set); err != nil {
			s.logger.Warn().Err(err).Msg("question cache write failed")
		}
	}
	return set, nil
}

func (s *Service) fetchRemote(ctx context.Context, req Request) ([]quiz.Question, string) {
	if s.generator != nil {
		qs, err := s.fromGenerator(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", req.Topic).Msg("question generator failed")
		}
		if len(qs) > 0 {
			return qs, SourceGenerator
		}
	}
	if s.opentdb != nil && req.Type != TypeOpen {
		qs, err := s.fromOpenTDB(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Msg("opentdb fetch failed")
		}
		if len(qs) > 0 {
			return qs, SourceOpenTDB
		}
	}
	return nil, ""
}

func (s *Service) fromGenerator(ctx context.Context, req Request) ([]quiz.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	qs, err := s.generator.Generate(ctx, GenerateRequest{
		Topic:      req.Topic,
		Type:       req.Type,
		Difficulty: req.Difficulty,
		Language:   req.Language,
		Count:      req.Count,
	})
	if err != nil {
		return nil, err
	}
	return s.keepValid(qs, req.Count), nil
}

func (s *Service) fromOpenTDB(ctx context.Context, req Request) ([]quiz.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	difficulty := string(req.Difficulty)
	if req.Difficulty == quiz.DifficultyAll {
		difficulty = ""
	}
	rows, err := s.opentdb.Fetch(ctx, req.Count, difficulty)
	if err != nil {
		return nil, err
	}
	qs := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		qs = append(qs, normalizeOpenTDB(row, req))
	}
	return s.keepValid(qs, req.Count), nil
}

// keepValid drops questions a session would reject and makes ids unique.
func (s *Service) keepValid(qs []quiz.Question, limit int) []quiz.Question {
	out := make([]quiz.Question, 0, min(len(qs), limit))
	ids := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if len(out) == limit {
			break
		}
		if _, dup := ids[q.ID]; dup || q.ID == "" {
			q.ID = uuid.NewString()
		}
		prepared, err := quiz.Prepare([]quiz.Question{q})
		if err != nil {
			s.logger.Debug().Err(err).Str("source", q.Source).Msg("dropping invalid question")
			continue
		}
		ids[q.ID] = struct{}{}
		out = append(out, prepared[0])
	}
	return out
}

func normalizeOpenTDB(q external.OpenTDBQuestion, req Request) quiz.Question {
	options := make([]string, 0, len(q.IncorrectAnswer)+1)
	for _, opt := range q.IncorrectAnswer {
		options = append(options, html.UnescapeString(opt))
	}
	options = append(options, html.UnescapeString(q.CorrectAnswer))
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	d, err := quiz.ParseDifficulty(q.Difficulty)
	if err != nil {
		d = quiz.DifficultyMedium
	}
	return quiz.Question{
		ID:            "otdb-" + uuid.NewString(),
		Text:          html.UnescapeString(strings.TrimSpace(q.Question)),
		Kind:          quiz.KindMultipleChoice,
		Options:       options,
		CorrectAnswer: html.UnescapeString(q.CorrectAnswer),
		Difficulty:    d,
		Topic:         req.Topic,
		Language:      req.Language,
		Source:        SourceOpenTDB,
	}
}
