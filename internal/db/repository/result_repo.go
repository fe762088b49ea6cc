package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// StoredResult is a persisted quiz result.
type StoredResult struct {
	quiz.Result
	LobbyCode string    `json:"lobby_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultRepository persists completed quiz results.
type ResultRepository struct {
	db DBTX
}

func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save stores a result once per session. A repeated save for the same session
// is a no-op and reports inserted=false.
func (r *ResultRepository) Save(ctx context.Context, res quiz.Result, lobbyCode string) (inserted bool, err error) {
	breakdown, err := json.Marshal(nonNil(res.Breakdown))
	if err != nil {
		return false, fmt.Errorf("encode breakdown: %w", err)
	}
	achievements, err := json.Marshal(nonNil(res.Achievements))
	if err != nil {
		return false, fmt.Errorf("encode achievements: %w", err)
	}
	completed := res.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO quiz_results (
			session_id, participant, lobby_code, topic, difficulty, total_score,
			correct_count, question_count, elapsed_seconds, rank, breakdown, achievements, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.Participant, nullText(lobbyCode), res.Topic, string(res.Difficulty), res.TotalScore,
		res.CorrectCount, res.QuestionCount, res.ElapsedSeconds, res.Rank, breakdown, achievements, completed,
	)
	if err != nil {
		return false, fmt.Errorf("save result %s: %w", res.SessionID, translate(err))
	}
	return tag.RowsAffected() > 0, nil
}

// ListByParticipant returns the most recent results for a participant, newest first.
func (r *ResultRepository) ListByParticipant(ctx context.Context, participant string, limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := r.db.Query(ctx,
		`SELECT session_id, participant, lobby_code, topic, difficulty, total_score, correct_count,
			question_count, elapsed_seconds, rank, breakdown, achievements, completed_at, created_at
		 FROM quiz_results
		 WHERE participant = $1
		 ORDER BY completed_at DESC
		 LIMIT $2`,
		participant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StoredResult, error) {
		return scanResult(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

// GetBySession fetches the stored result of a session.
func (r *ResultRepository) GetBySession(ctx context.Context, sessionID string) (StoredResult, error) {
	row := r.db.QueryRow(ctx,
		`SELECT session_id, participant, lobby_code, topic, difficulty, total_score, correct_count,
			question_count, elapsed_seconds, rank, breakdown, achievements, completed_at, created_at
		 FROM quiz_results WHERE session_id = $1`,
		sessionID,
	)
	res, err := scanResult(row)
	if err != nil {
		return StoredResult{}, fmt.Errorf("get result %s: %w", sessionID, translate(err))
	}
	return res, nil
}

func scanResult(row scanner) (StoredResult, error) {
	var (
		res                     StoredResult
		lobby                   pgtype.Text
		difficulty              string
		breakdown, achievements []byte
	)
	if err := row.Scan(
		&res.SessionID, &res.Participant, &lobby, &res.Topic, &difficulty, &res.TotalScore, &res.CorrectCount,
		&res.QuestionCount, &res.ElapsedSeconds, &res.Rank, &breakdown, &achievements, &res.CompletedAt, &res.CreatedAt,
	); err != nil {
		return StoredResult{}, err
	}
	res.Difficulty = quiz.Difficulty(difficulty)
	// Only the duration is stored.
	if !res.CompletedAt.IsZero() {
		res.StartedAt = res.CompletedAt.Add(-time.Duration(res.ElapsedSeconds) * time.Second)
	}
	if lobby.Valid {
		res.LobbyCode = lobby.String
	}
	if err := json.Unmarshal(breakdown, &res.Breakdown); err != nil {
		return StoredResult{}, fmt.Errorf("decode breakdown: %w", err)
	}
	if err := json.Unmarshal(achievements, &res.Achievements); err != nil {
		return StoredResult{}, fmt.Errorf("decode achievements: %w", err)
	}
	return res, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
