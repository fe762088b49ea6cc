package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc: authSvc,
		logger:  logger.With().Str("component", "auth_http").Logger(),
	}
}

type authResponse struct {
	User
	TokenPair
}

// Register handles POST /v1/auth/register
func (h *HTTPHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, tokens, err := h.authSvc.Register(r.Context(), req)
	if err != nil {
		h.respondAccountError(w, httperrors.ErrCodeRegistrationFailed, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, authResponse{User: *user, TokenPair: *tokens})
}

// Login handles POST /v1/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, tokens, err := h.authSvc.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeLoginFailed, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		httperrors.RespondInternalError(w, "Login failed")
		return
	}

	h.respondJSON(w, http.StatusOK, authResponse{User: *user, TokenPair: *tokens})
}

// CreateGuest handles POST /v1/auth/guest
func (h *HTTPHandlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req GuestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
			return
		}
	}

	user, tokens, err := h.authSvc.CreateGuest(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("guest creation failed")
		httperrors.RespondInternalError(w, "Guest creation failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, authResponse{User: *user, TokenPair: *tokens})
}

// ConvertGuest handles POST /v1/auth/convert (requires auth middleware)
func (h *HTTPHandlers) ConvertGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Invalid or missing token")
		return
	}

	var req ConvertGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, tokens, err := h.authSvc.ConvertGuest(r.Context(), claims.UserID, req)
	if err != nil {
		h.respondAccountError(w, httperrors.ErrCodeConversionFailed, err)
		return
	}

	h.respondJSON(w, http.StatusOK, authResponse{User: *user, TokenPair: *tokens})
}

// RefreshToken handles POST /v1/auth/refresh
func (h *HTTPHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	tokens, err := h.authSvc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeRefreshFailed, "Invalid refresh token")
		return
	}

	h.respondJSON(w, http.StatusOK, tokens)
}

// GetMe handles GET /v1/users/me (requires auth middleware)
func (h *HTTPHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Invalid or missing token")
		return
	}

	user, err := h.authSvc.Me(r.Context(), claims)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "User not found")
			return
		}
		h.logger.Error().Err(err).Msg("load current user failed")
		httperrors.RespondInternalError(w, "Failed to load user")
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

func (h *HTTPHandlers) respondAccountError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		httperrors.RespondConflict(w, httperrors.ErrCodeUsernameTaken, err.Error())
	case errors.Is(err, ErrInvalidUsername):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "username")
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "password")
	case errors.Is(err, ErrNotGuest):
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("account request failed")
		httperrors.RespondBadRequest(w, code, "Request failed")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
