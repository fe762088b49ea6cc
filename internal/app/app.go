package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/auth/jwt"
	"github.com/gokatarajesh/cyberhoot/internal/config"
	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	"github.com/gokatarajesh/cyberhoot/internal/events"
	"github.com/gokatarajesh/cyberhoot/internal/explanation"
	"github.com/gokatarajesh/cyberhoot/internal/game"
	"github.com/gokatarajesh/cyberhoot/internal/grading"
	"github.com/gokatarajesh/cyberhoot/internal/leaderboard"
	"github.com/gokatarajesh/cyberhoot/internal/logging"
	"github.com/gokatarajesh/cyberhoot/internal/metrics"
	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/question/external"
	"github.com/gokatarajesh/cyberhoot/internal/question/generator"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/server"
	"github.com/gokatarajesh/cyberhoot/internal/upstream"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

const prewarmQueueSize = 32

// Application aggregates shared infrastructure and the background workers.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
	bus   *events.Bus

	games          *game.Service
	leaderboards   *leaderboard.Service
	lbBroadcaster  *leaderboard.Broadcaster
	snapshotWorker *leaderboard.SnapshotWorker
	fetcher        *question.FetcherWorker
	limiter        *server.RateLimiter
	prewarm        []question.Request
}

// New bootstraps the logger, Postgres, Redis, collaborators and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	metrics.Register(prometheus.DefaultRegisterer)

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	userRepo := repository.NewUserRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(pool)

	refreshSecret := cfg.Security.JWTRefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.Security.JWTSecret + "_refresh"
	}
	authSvc := auth.NewService(userRepo, auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			AccessSecret:  []byte(cfg.Security.JWTSecret),
			RefreshSecret: []byte(refreshSecret),
			AccessTTL:     cfg.Security.AccessTokenTTL,
			RefreshTTL:    cfg.Security.RefreshTokenTTL,
			Issuer:        cfg.Name,
		},
		PasswordCost:      cfg.Security.PasswordCost,
		PasswordMinLength: cfg.Security.PasswordMinLength,
	}, logger)
	authHandlers := auth.NewHTTPHandlers(authSvc, logger)

	questionSvc, err := buildQuestionService(cfg, redisClient, logger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}
	prewarm, err := prewarmRequests(cfg.Prewarm)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	bus, err := events.NewBus(events.Config{
		KafkaBrokers: cfg.Events.KafkaBrokers,
		KafkaTopic:   cfg.Events.KafkaTopic,
		BufferSize:   cfg.Events.BufferSize,
	}, logger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("events bus: %w", err)
	}

	// Optional collaborators stay untyped nil when unconfigured.
	var grader *grading.Client
	if cfg.Upstream.GraderURL != "" {
		grader = grading.NewClient(upstreamClient(cfg, "grader", cfg.Upstream.GraderURL))
	}
	var explainer game.Explainer
	if cfg.Upstream.ExplanationURL != "" {
		explainer = explanation.NewClient(
			upstreamClient(cfg, "explanation", cfg.Upstream.ExplanationURL),
			redisClient,
			cfg.Runtime.ExplanationCacheTTL,
			logger,
		)
	}

	gameOpts := game.ServiceOptions{
		GradeTimeout:   cfg.Runtime.GradeTimeout,
		MaxGradePoints: cfg.Runtime.MaxGradePoints,
		TickInterval:   cfg.Runtime.TickInterval,
		IdleTTL:        cfg.Runtime.SessionIdleTTL,
		MaxSessions:    cfg.Runtime.MaxSessions,
		PersistTimeout: cfg.Runtime.PersistTimeout,
		Logger:         logger,
	}
	if grader != nil {
		gameOpts.Grader = grader
	}
	gameSvc := game.NewService(questionSvc, resultRepo, bus, explainer, gameOpts)

	wsHub := ws.NewHub(logger)
	lobbies := game.NewLobbyManager(redisClient, game.LobbyOptions{
		TTL:        cfg.Lobby.TTL,
		MaxPlayers: cfg.Lobby.MaxPlayers,
		LockWait:   cfg.Lobby.LockWait,
	}, logger)
	multiplayer := game.NewMultiplayer(gameSvc, lobbies, wsHub, game.MultiplayerOptions{
		FeedbackDelay: cfg.Lobby.FeedbackDelay,
		Logger:        logger,
	})
	gameHandlers := game.NewHTTPHandlers(gameSvc, multiplayer, logger)
	gameWS := game.NewWSHandler(multiplayer, wsHub, server.NewUpgrader(cfg.Security.AllowedOrigins), logger)

	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:             cfg.Leaderboard.TopN,
		PubSubChannel:    cfg.Leaderboard.PubSubChannel,
		EntryTTL:         cfg.Leaderboard.EntryTTL,
		SnapshotTopLimit: cfg.Leaderboard.SnapshotTopN,
	})
	lbBroadcaster := leaderboard.NewBroadcaster(redisClient, wsHub, cfg.Leaderboard.PubSubChannel, logger)
	lbHTTPHandler := leaderboard.NewHTTPHandler(leaderboardSvc, snapshotRepo, logger)
	var snapshotWorker *leaderboard.SnapshotWorker
	if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
		snapshotWorker = leaderboard.NewSnapshotWorker(leaderboardSvc, snapshotRepo, interval, cfg.Leaderboard.SnapshotTopN, logger)
	}

	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	apiServer := server.NewHTTPServer(cfg, logger, server.Routes{
		Auth:        authHandlers,
		Game:        gameHandlers,
		GameWS:      gameWS,
		Leaderboard: lbHTTPHandler,
		Tokens:      authSvc,
		Limiter:     limiter,
		Pingers: map[string]server.Pinger{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	return &Application{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		http:           apiServer,
		bus:            bus,
		games:          gameSvc,
		leaderboards:   leaderboardSvc,
		lbBroadcaster:  lbBroadcaster,
		snapshotWorker: snapshotWorker,
		fetcher:        question.NewFetcherWorker(questionSvc, prewarmQueueSize, logger, cfg.Runtime.QuestionFetchTimeout),
		limiter:        limiter,
		prewarm:        prewarm,
	}, nil
}

// Run serves HTTP and the background workers until ctx is cancelled, then shuts
// everything down within the graceful shutdown timeout.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		return nil
	})

	g.Go(func() error { return a.games.Run(gctx) })
	g.Go(func() error { return a.limiter.Run(gctx) })
	g.Go(func() error { return background(a.logger, "question fetcher", a.fetcher.Run(gctx)) })
	g.Go(func() error {
		return background(a.logger, "leaderboard broadcaster", a.lbBroadcaster.Run(gctx))
	})
	if a.snapshotWorker != nil {
		g.Go(func() error {
			return background(a.logger, "leaderboard snapshot worker", a.snapshotWorker.Run(gctx))
		})
	}
	g.Go(func() error {
		err := a.bus.SubscribeQuizCompleted(gctx, a.leaderboards.HandleQuizCompleted)
		return background(a.logger, "leaderboard event subscriber", err)
	})

	for _, req := range a.prewarm {
		if !a.fetcher.Enqueue(req) {
			a.logger.Warn().Str("topic", req.Topic).Msg("prewarm queue full")
		}
	}

	err := g.Wait()

	if cerr := a.bus.Close(); cerr != nil {
		a.logger.Error().Err(cerr).Msg("events bus shutdown error")
	}
	a.pool.Close()
	if cerr := a.redis.Close(); cerr != nil {
		a.logger.Error().Err(cerr).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return err
}

// background logs a worker exit; cancellation is a clean stop.
func background(logger zerolog.Logger, name string, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Str("worker", name).Msg("background worker stopped")
	}
	return nil
}

func buildQuestionService(cfg *config.App, rdb *redis.Client, logger zerolog.Logger) (*question.Service, error) {
	bank, err := question.LoadBank()
	if err != nil {
		return nil, fmt.Errorf("load fallback bank: %w", err)
	}

	var gen question.Generator
	if cfg.Upstream.GeneratorURL != "" {
		gen = generator.New(upstreamClient(cfg, "generator", cfg.Upstream.GeneratorURL), generator.Config{
			MaxRetries: cfg.Upstream.MaxRetries,
		}, logger)
	} else {
		logger.Warn().Msg("question generator not configured; using OpenTDB and the fallback bank")
	}

	var svc *question.Service
	cache := question.NewCache(rdb, cfg.Runtime.QuestionCacheTTL)
	opts := question.ServiceOptions{FetchTimeout: cfg.Runtime.QuestionFetchTimeout, Logger: logger}
	if cfg.OpenTDB.Enabled {
		svc = question.NewService(cache, gen, external.NewOpenTDBClient(cfg.OpenTDB.BaseURL, cfg.OpenTDB.Category, nil), bank, opts)
	} else {
		svc = question.NewService(cache, gen, nil, bank, opts)
	}
	return svc, nil
}

func upstreamClient(cfg *config.App, name, baseURL string) *upstream.Client {
	return upstream.New(upstream.Config{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.HTTPTimeout,
		OAuth2: upstream.OAuth2Config{
			TokenURL:     cfg.Upstream.OAuthTokenURL,
			ClientID:     cfg.Upstream.OAuthClientID,
			ClientSecret: cfg.Upstream.OAuthClientSecret,
			Scopes:       cfg.Upstream.OAuthScopes,
		},
	})
}

func prewarmRequests(cfg config.Prewarm) ([]question.Request, error) {
	difficulty := quiz.DifficultyAll
	if d := strings.TrimSpace(cfg.Difficulty); d != "" && !strings.EqualFold(d, string(quiz.DifficultyAll)) {
		parsed, err := quiz.ParseDifficulty(d)
		if err != nil {
			return nil, fmt.Errorf("PREWARM_DIFFICULTY: %w", err)
		}
		difficulty = parsed
	}
	reqs := make([]question.Request, 0, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		reqs = append(reqs, question.Request{Topic: topic, Type: question.TypeAll, Difficulty: difficulty})
	}
	return reqs, nil
}
