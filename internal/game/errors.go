package game

import (
	"errors"
	"net/http"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrTooManySessions      = errors.New("too many active sessions")
	ErrRunnerStopped        = errors.New("session runner stopped")
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	ErrExplanationFailed    = errors.New("explanation unavailable")

	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrLobbyFull      = errors.New("lobby is full")
	ErrLobbyStarted   = errors.New("lobby already started")
	ErrNotHost        = errors.New("only the host can do that")
	ErrNotInLobby     = errors.New("not a member of this lobby")
	ErrLobbyBusy      = errors.New("lobby is busy, try again")
	ErrGameNotRunning = errors.New("no game running in this lobby")
)

// apiError is the transport view of an error: HTTP status plus stable code.
type apiError struct {
	Status  int
	Code    string
	Message string
}

// classify maps domain errors onto HTTP statuses and error codes. WebSocket
// error messages reuse the code.
func classify(err error) apiError {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrRunnerStopped):
		return apiError{http.StatusNotFound, httperrors.ErrCodeSessionNotFound, "Session not found"}
	case errors.Is(err, quiz.ErrSessionClosed):
		return apiError{http.StatusGone, httperrors.ErrCodeSessionClosed, "Session is closed"}
	case errors.Is(err, quiz.ErrInvalidTransition):
		return apiError{http.StatusConflict, httperrors.ErrCodeInvalidTransition, err.Error()}
	case errors.Is(err, quiz.ErrNotCompleted):
		return apiError{http.StatusConflict, httperrors.ErrCodeNotCompleted, "Session is not completed yet"}
	case errors.Is(err, quiz.ErrMalformedQuestion):
		return apiError{http.StatusUnprocessableEntity, httperrors.ErrCodeMalformedQuestion, err.Error()}
	case errors.Is(err, quiz.ErrEmptyAnswer):
		return apiError{http.StatusBadRequest, httperrors.ErrCodeEmptyAnswer, "Answer must not be empty"}
	case errors.Is(err, quiz.ErrUnknownQuestion):
		return apiError{http.StatusBadRequest, httperrors.ErrCodeUnknownQuestion, "Question does not belong to this session"}
	case errors.Is(err, ErrTooManySessions):
		return apiError{http.StatusServiceUnavailable, httperrors.ErrCodeSessionLimitExceed, "Too many active sessions"}
	case errors.Is(err, ErrQuestionsUnavailable):
		return apiError{http.StatusServiceUnavailable, httperrors.ErrCodeQuestionsFailed, "No questions available"}
	case errors.Is(err, ErrExplanationFailed):
		return apiError{http.StatusBadGateway, httperrors.ErrCodeExplanationFailed, "Explanation service unavailable"}
	case errors.Is(err, ErrLobbyNotFound):
		return apiError{http.StatusNotFound, httperrors.ErrCodeLobbyNotFound, "Lobby not found"}
	case errors.Is(err, ErrLobbyFull):
		return apiError{http.StatusConflict, httperrors.ErrCodeLobbyFull, "Lobby is full"}
	case errors.Is(err, ErrLobbyStarted):
		return apiError{http.StatusConflict, httperrors.ErrCodeLobbyStarted, "Game already started"}
	case errors.Is(err, ErrNotHost):
		return apiError{http.StatusForbidden, httperrors.ErrCodeNotHost, "Only the host can start the game"}
	case errors.Is(err, ErrNotInLobby):
		return apiError{http.StatusForbidden, httperrors.ErrCodeForbidden, "Not a member of this lobby"}
	case errors.Is(err, ErrLobbyBusy):
		return apiError{http.StatusConflict, httperrors.ErrCodeLobbyBusy, "Lobby is busy, try again"}
	case errors.Is(err, ErrGameNotRunning):
		return apiError{http.StatusConflict, httperrors.ErrCodeInvalidTransition, "No game running in this lobby"}
	default:
		return apiError{http.StatusInternalServerError, httperrors.ErrCodeInternalError, "Internal server error"}
	}
}
