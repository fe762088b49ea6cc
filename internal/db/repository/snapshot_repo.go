package repository

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is a persisted copy of a leaderboard window.
type Snapshot struct {
	ID          int64
	Window      string
	GeneratedAt time.Time
	Entries     []byte
	SourceHash  string
}

// SnapshotRepository stores leaderboard snapshots.
type SnapshotRepository struct {
	db DBTX
}

func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert stores a snapshot unless one with the same hash already exists for the window.
func (r *SnapshotRepository) Insert(ctx context.Context, s Snapshot) (inserted bool, err error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO leaderboard_snapshots (time_window, generated_at, entries, source_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (time_window, source_hash) DO NOTHING`,
		s.Window, s.GeneratedAt, s.Entries, s.SourceHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot %s: %w", s.Window, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Latest returns the newest snapshot of a window.
func (r *SnapshotRepository) Latest(ctx context.Context, window string) (Snapshot, error) {
	var s Snapshot
	err := r.db.QueryRow(ctx,
		`SELECT id, time_window, generated_at, entries, source_hash
		 FROM leaderboard_snapshots
		 WHERE time_window = $1
		 ORDER BY generated_at DESC
		 LIMIT 1`,
		window,
	).Scan(&s.ID, &s.Window, &s.GeneratedAt, &s.Entries, &s.SourceHash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot %s: %w", window, translate(err))
	}
	return s, nil
}
