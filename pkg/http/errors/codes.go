package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Account errors
	ErrCodeRegistrationFailed  = "registration_failed"
	ErrCodeLoginFailed         = "login_failed"
	ErrCodeGuestCreationFailed = "guest_creation_failed"
	ErrCodeConversionFailed    = "conversion_failed"
	ErrCodeRefreshFailed       = "refresh_failed"
	ErrCodeUsernameTaken       = "username_taken"

	// Quiz session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeSessionClosed      = "session_closed"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeNotCompleted       = "not_completed"
	ErrCodeMalformedQuestion  = "malformed_question"
	ErrCodeEmptyAnswer        = "empty_answer"
	ErrCodeUnknownQuestion    = "unknown_question"
	ErrCodeQuestionsFailed    = "questions_unavailable"
	ErrCodeExplanationFailed  = "explanation_unavailable"
	ErrCodeTooManyRequests    = "too_many_requests"
	ErrCodeSessionLimitExceed = "session_limit_exceeded"

	// Lobby errors
	ErrCodeLobbyNotFound     = "lobby_not_found"
	ErrCodeLobbyFull         = "lobby_full"
	ErrCodeLobbyStarted      = "lobby_already_started"
	ErrCodeNotHost           = "not_host"
	ErrCodeInvalidLobbyCode  = "invalid_lobby_code"
	ErrCodeLobbyBusy         = "lobby_busy"
	ErrCodeLobbyCreateFailed = "lobby_creation_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeUnknownWindow          = "unknown_leaderboard_window"
)
