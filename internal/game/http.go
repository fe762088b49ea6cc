package game

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for solo quizzes, results and lobbies.
type HTTPHandlers struct {
	service *Service
	lobbies *Multiplayer
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers; lobbies may be nil when multiplayer is off.
func NewHTTPHandlers(service *Service, lobbies *Multiplayer, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		lobbies: lobbies,
		logger:  logger.With().Str("component", "game_http").Logger(),
	}
}

type answerResponse struct {
	Record    quiz.AnswerRecord `json:"record"`
	Duplicate bool              `json:"duplicate"`
}

type historyResponse struct {
	Results []repository.StoredResult `json:"results"`
}

type explanationResponse struct {
	QuestionID  string `json:"question_id"`
	Explanation string `json:"explanation"`
}

// StartQuiz handles POST /v1/quizzes
func (h *HTTPHandlers) StartQuiz(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}

	var req StartQuizRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.Start(r.Context(), participant, req.questionRequest())
	if err != nil {
		h.fail(w, err, "start quiz")
		return
	}
	h.respondJSON(w, http.StatusCreated, view)
}

// GetQuiz handles GET /v1/quizzes/{id}
func (h *HTTPHandlers) GetQuiz(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), participant, r.PathValue("id"))
	if err != nil {
		h.fail(w, err, "get quiz")
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// SubmitAnswer handles POST /v1/quizzes/{id}/answers
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, dup, err := h.service.Submit(r.Context(), participant, r.PathValue("id"), req.QuestionID, req.Answer)
	if err != nil {
		h.fail(w, err, "submit answer")
		return
	}
	status := http.StatusCreated
	if dup {
		status = http.StatusOK
	}
	h.respondJSON(w, status, answerResponse{Record: rec, Duplicate: dup})
}

// AdvanceQuiz handles POST /v1/quizzes/{id}/advance
func (h *HTTPHandlers) AdvanceQuiz(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	view, err := h.service.Advance(r.Context(), participant, r.PathValue("id"))
	if err != nil {
		h.fail(w, err, "advance quiz")
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// GetResult handles GET /v1/quizzes/{id}/result
func (h *HTTPHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	res, err := h.service.Result(r.Context(), participant, r.PathValue("id"))
	if err != nil {
		h.fail(w, err, "get result")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// AbandonQuiz handles DELETE /v1/quizzes/{id}
func (h *HTTPHandlers) AbandonQuiz(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	if err := h.service.Abandon(r.Context(), participant, r.PathValue("id")); err != nil {
		h.fail(w, err, "abandon quiz")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetExplanation handles GET /v1/quizzes/{id}/questions/{qid}/explanation
func (h *HTTPHandlers) GetExplanation(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	qid := r.PathValue("qid")
	text, err := h.service.Explain(r.Context(), participant, r.PathValue("id"), qid)
	if err != nil {
		h.fail(w, err, "get explanation")
		return
	}
	h.respondJSON(w, http.StatusOK, explanationResponse{QuestionID: qid, Explanation: text})
}

// ListResults handles GET /v1/results?limit=20
func (h *HTTPHandlers) ListResults(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be a positive integer", "limit")
			return
		}
		limit = parsed
	}

	results, err := h.service.History(r.Context(), participant, limit)
	if err != nil {
		h.fail(w, err, "list results")
		return
	}
	h.respondJSON(w, http.StatusOK, historyResponse{Results: results})
}

// CreateLobby handles POST /v1/lobbies
func (h *HTTPHandlers) CreateLobby(w http.ResponseWriter, r *http.Request) {
	participant, ok := h.participant(w, r)
	if !ok {
		return
	}
	if h.lobbies == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Multiplayer is disabled")
		return
	}

	var req CreateLobbyRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := req.Name
	if name == "" {
		if claims, ok := auth.ClaimsFrom(r.Context()); ok {
			name = claims.DisplayName
		}
	}

	lobby, err := h.lobbies.CreateLobby(r.Context(), participant, name, req.Avatar, req.Settings)
	if err != nil {
		h.fail(w, err, "create lobby")
		return
	}
	h.respondJSON(w, http.StatusCreated, lobby)
}

// GetLobby handles GET /v1/lobbies/{code}
func (h *HTTPHandlers) GetLobby(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.participant(w, r); !ok {
		return
	}
	if h.lobbies == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Multiplayer is disabled")
		return
	}
	code, ok := normalizeCode(r.PathValue("code"))
	if !ok {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidLobbyCode, "Lobby code must be 6 letters or digits")
		return
	}

	lobby, err := h.lobbies.Lobby(r.Context(), code)
	if err != nil {
		h.fail(w, err, "get lobby")
		return
	}
	h.respondJSON(w, http.StatusOK, lobby)
}

func (h *HTTPHandlers) participant(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok || claims == nil || claims.Username == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return "", false
	}
	return claims.Username, true
}

func (h *HTTPHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		fe := validationError(err)
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, fe.Message, fe.Field)
		return false
	}
	return true
}

func (h *HTTPHandlers) fail(w http.ResponseWriter, err error, op string) {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		h.logger.Debug().Err(err).Str("op", op).Msg("request rejected")
	}
	httperrors.RespondError(w, e.Status, e.Code, e.Message)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
