package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/config"
	"github.com/gokatarajesh/cyberhoot/internal/game"
	"github.com/gokatarajesh/cyberhoot/internal/leaderboard"
	"github.com/gokatarajesh/cyberhoot/internal/logging"
	"github.com/gokatarajesh/cyberhoot/internal/metrics"
)

const pingTimeout = 2 * time.Second

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

// Routes are the handlers mounted on the API server. Nil handlers leave their
// routes unregistered.
type Routes struct {
	Auth        *auth.HTTPHandlers
	Game        *game.HTTPHandlers
	GameWS      http.Handler
	Leaderboard *leaderboard.HTTPHandler
	Tokens      auth.TokenValidator
	Limiter     *RateLimiter
	Pingers     map[string]Pinger
}

// NewUpgrader builds the WebSocket upgrader. A "*" entry allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// NewHTTPServer wires every route of the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, routes Routes) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(logger, routes),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the root handler: health and metrics are public, /v1 and
// /ws go through token validation and the rate limiter.
func NewHandler(logger zerolog.Logger, routes Routes) http.Handler {
	root := http.NewServeMux()

	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/ping", pingHandler(routes.Pingers))

	if h := routes.Auth; h != nil {
		api.HandleFunc("POST /v1/auth/register", h.Register)
		api.HandleFunc("POST /v1/auth/login", h.Login)
		api.HandleFunc("POST /v1/auth/guest", h.CreateGuest)
		api.HandleFunc("POST /v1/auth/refresh", h.RefreshToken)
		api.Handle("POST /v1/auth/convert", auth.RequireAuth(http.HandlerFunc(h.ConvertGuest)))
		api.Handle("GET /v1/users/me", auth.RequireAuth(http.HandlerFunc(h.GetMe)))
	}

	if h := routes.Game; h != nil {
		protected := func(pattern string, fn http.HandlerFunc) {
			api.Handle(pattern, auth.RequireAuth(fn))
		}
		protected("POST /v1/quizzes", h.StartQuiz)
		protected("GET /v1/quizzes/{id}", h.GetQuiz)
		protected("DELETE /v1/quizzes/{id}", h.AbandonQuiz)
		protected("POST /v1/quizzes/{id}/answers", h.SubmitAnswer)
		protected("POST /v1/quizzes/{id}/advance", h.AdvanceQuiz)
		protected("GET /v1/quizzes/{id}/result", h.GetResult)
		protected("GET /v1/quizzes/{id}/questions/{qid}/explanation", h.GetExplanation)
		protected("GET /v1/results", h.ListResults)
		protected("POST /v1/lobbies", h.CreateLobby)
		protected("GET /v1/lobbies/{code}", h.GetLobby)
	}

	if h := routes.Leaderboard; h != nil {
		api.HandleFunc("GET /v1/leaderboards/{window}", h.HandleGet)
		api.HandleFunc("GET /v1/leaderboards/lobby/{code}", h.HandleGetLobby)
	}

	if routes.GameWS != nil {
		api.Handle("GET /ws/games", routes.GameWS)
	}

	var protectedAPI http.Handler = api
	if routes.Limiter != nil {
		protectedAPI = routes.Limiter.Middleware(protectedAPI)
	}
	if routes.Tokens != nil {
		protectedAPI = auth.AuthMiddleware(routes.Tokens, logger)(protectedAPI)
	}
	root.Handle("/v1/", protectedAPI)
	root.Handle("/ws/", protectedAPI)

	return requestLogger(logger, root)
}

func pingHandler(pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				logging.FromContext(ctx).Error().Err(err).Str("dependency", name).Msg("dependency ping failed")
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, map[string]any{"pong": healthy, "dependencies": status})
	}
}

// requestLogger attaches a request-scoped logger and records status metrics.
func requestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))

		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		event := reqLogger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = reqLogger.Warn()
		}
		event.Int("status", rec.status).Dur("duration", time.Since(start)).Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
