package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeJoinLobby    = "join_lobby"
	TypeLeaveLobby   = "leave_lobby"
	TypeReadyState   = "ready_state"
	TypeStartGame    = "start_game"
	TypeSubmitAnswer = "submit_answer"
	TypeRequestState = "request_state"

	// Server -> Client
	TypeLobbyUpdate       = "lobby_update"
	TypeGameStarted       = "game_started"
	TypeQuestion          = "question"
	TypeQuestionTick      = "question_tick"
	TypeAnswerAck         = "answer_ack"
	TypeQuestionClosed    = "question_closed"
	TypeGameComplete      = "game_complete"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed envelope.
func NewMessage(typ string, payload any, requestID string) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Payload: raw, RequestID: requestID}, nil
}

// Client Messages (incoming)

type JoinLobbyPayload struct {
	Code   string `json:"code" validate:"required,len=6,alphanum"`
	Name   string `json:"name" validate:"omitempty,max=32"`
	Avatar string `json:"avatar" validate:"omitempty,max=16"`
}

type LobbyCodePayload struct {
	Code string `json:"code" validate:"required,len=6,alphanum"`
}

type ReadyStatePayload struct {
	Code  string `json:"code" validate:"required,len=6,alphanum"`
	Ready bool   `json:"ready"`
}

type SubmitAnswerPayload struct {
	Code       string `json:"code" validate:"required,len=6,alphanum"`
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"required,max=4000"`
}

// Server Messages (outgoing)

type LobbyPlayer struct {
	Username       string `json:"username"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar"`
	Color          string `json:"color"`
	IsHost         bool   `json:"is_host"`
	Status         string `json:"status"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
}

type LobbyUpdatePayload struct {
	Code         string        `json:"code"`
	Host         string        `json:"host"`
	Status       string        `json:"status"`
	Topic        string        `json:"topic"`
	QuestionType string        `json:"question_type"`
	Difficulty   string        `json:"difficulty"`
	Count        int           `json:"count"`
	Players      []LobbyPlayer `json:"players"`
	MaxPlayers   int           `json:"max_players"`
}

type GameStartedPayload struct {
	Code          string `json:"code"`
	QuestionCount int    `json:"question_count"`
	Difficulty    string `json:"difficulty"`
	Topic         string `json:"topic"`
}

type QuestionPayload struct {
	Code           string   `json:"code"`
	Index          int      `json:"index"`
	Total          int      `json:"total"`
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Kind           string   `json:"kind"`
	Options        []string `json:"options,omitempty"`
	Difficulty     string   `json:"difficulty"`
	AllowedSeconds int      `json:"allowed_seconds"`
}

type QuestionTickPayload struct {
	Code             string `json:"code"`
	Index            int    `json:"index"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type AnswerAckPayload struct {
	Code          string `json:"code"`
	QuestionID    string `json:"question_id"`
	Accepted      bool   `json:"accepted"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	TimedOut      bool   `json:"timed_out,omitempty"`
	PointsAwarded int    `json:"points_awarded"`
	Correct       bool   `json:"correct"`
	Score         int    `json:"score"`
	Streak        int    `json:"streak"`
}

type PlayerProgress struct {
	Username       string `json:"username"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	Answer         string `json:"answer,omitempty"`
	PointsAwarded  int    `json:"points_awarded"`
	Status         string `json:"status"`
}

type QuestionClosedPayload struct {
	Code          string           `json:"code"`
	Index         int              `json:"index"`
	QuestionID    string           `json:"question_id"`
	CorrectAnswer string           `json:"correct_answer,omitempty"`
	Players       []PlayerProgress `json:"players"`
	NextInSeconds int              `json:"next_in_seconds"`
}

type GameResult struct {
	Rank          int      `json:"rank"`
	Username      string   `json:"username"`
	Name          string   `json:"name"`
	TotalScore    int      `json:"total_score"`
	CorrectCount  int      `json:"correct_count"`
	QuestionCount int      `json:"question_count"`
	Achievements  []string `json:"achievements"`
}

type GameCompletePayload struct {
	Code    string       `json:"code"`
	Results []GameResult `json:"results"`
}

type LeaderboardUpdatePayload struct {
	Window    string             `json:"window"`
	LobbyCode string             `json:"lobby_code,omitempty"`
	Top       []LeaderboardEntry `json:"top"`
}

type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	Participant string  `json:"participant"`
	Score       int     `json:"score"`
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
	Accuracy    float64 `json:"accuracy"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
