package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// User is a stored account. Guests have no password.
type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	PasswordHash string
	Guest        bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

const userColumns = `id, username, display_name, password_hash, is_guest, created_at, last_login_at`

// UserRepository exposes typed DB operations required by auth flows.
type UserRepository struct {
	db DBTX
}

// NewUserRepository wraps a pool or transaction for user operations.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken username yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (username, display_name, password_hash, is_guest)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.Username, u.DisplayName, nullText(u.PasswordHash), u.Guest,
	)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", translate(err))
	}
	return created, nil
}

// GetByUsername fetches a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("get user %q: %w", username, translate(err))
	}
	return u, nil
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", id, translate(err))
	}
	return u, nil
}

// UpdateLogin records the last login timestamp.
func (r *UserRepository) UpdateLogin(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update login: %w", ErrNotFound)
	}
	return nil
}

// PromoteGuest upgrades a guest to a registered account in a single statement.
// Registered users are left untouched and reported as ErrNotFound.
func (r *UserRepository) PromoteGuest(ctx context.Context, id uuid.UUID, username, displayName, passwordHash string) (User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users
		 SET username = $2, display_name = $3, password_hash = $4, is_guest = FALSE
		 WHERE id = $1 AND is_guest
		 RETURNING `+userColumns,
		id, username, displayName, passwordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("promote guest: %w", translate(err))
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var (
		u         User
		hash      pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &hash, &u.Guest, &u.CreatedAt, &lastLogin); err != nil {
		return User{}, err
	}
	if hash.Valid {
		u.PasswordHash = hash.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
