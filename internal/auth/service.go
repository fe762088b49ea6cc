package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth/jwt"
	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of letters, digits, '.', '_' or '-'")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrNotGuest           = errors.New("account is not a guest")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)

type userStore interface {
	Create(ctx context.Context, u repository.User) (repository.User, error)
	GetByUsername(ctx context.Context, username string) (repository.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	UpdateLogin(ctx context.Context, id uuid.UUID) error
	PromoteGuest(ctx context.Context, id uuid.UUID, username, displayName, passwordHash string) (repository.User, error)
}

// Service handles authentication and user management.
type Service struct {
	users     userStore
	tokenMgr  *jwt.Manager
	passwords Passwords
	logger    zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
	// PasswordCost is the bcrypt work factor; PasswordMinLength the shortest
	// accepted password. Zero means the package defaults.
	PasswordCost      int
	PasswordMinLength int
}

// NewService creates an authentication service.
func NewService(users userStore, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		tokenMgr:  jwt.NewManager(opts.TokenConfig),
		passwords: NewPasswords(opts.PasswordCost, opts.PasswordMinLength),
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new registered user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, nil, err
	}
	passwordHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	dbUser, err := s.users.Create(ctx, repository.User{
		Username:     username,
		DisplayName:  displayNameOr(req.DisplayName, username),
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("username", username).Msg("user registered")
	return &user, tokens, nil
}

// Login authenticates a user with username/password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *TokenPair, error) {
	dbUser, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("login lookup failed")
		}
		return nil, nil, ErrInvalidCredentials
	}
	if dbUser.Guest || dbUser.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if !s.passwords.Matches(dbUser.PasswordHash, req.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLogin(ctx, dbUser.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", dbUser.ID.String()).Msg("failed to record login")
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return &user, tokens, nil
}

// CreateGuest creates an ephemeral guest account with a generated username.
func (s *Service) CreateGuest(ctx context.Context, req GuestRequest) (*User, *TokenPair, error) {
	username := "guest-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]

	dbUser, err := s.users.Create(ctx, repository.User{
		Username:    username,
		DisplayName: displayNameOr(req.DisplayName, "Guest"),
		Guest:       true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create guest: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("guest created")
	return &user, tokens, nil
}

// ConvertGuest upgrades a guest account to registered.
func (s *Service) ConvertGuest(ctx context.Context, guestID uuid.UUID, req ConvertGuestRequest) (*User, *TokenPair, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, nil, err
	}
	passwordHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	current, err := s.users.GetByID(ctx, guestID)
	if err != nil {
		return nil, nil, fmt.Errorf("convert guest: %w", err)
	}
	if !current.Guest {
		return nil, nil, ErrNotGuest
	}

	dbUser, err := s.users.PromoteGuest(ctx, guestID, username, displayNameOr(req.DisplayName, current.DisplayName), passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("convert guest: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("guest converted to registered")
	return &user, tokens, nil
}

// RefreshToken generates a new access token from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	// Fetch user to ensure still exists
	dbUser, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return s.generateTokenPair(toUser(dbUser))
}

// Me returns the stored account behind claims.
func (s *Service) Me(ctx context.Context, claims *jwt.Claims) (*User, error) {
	dbUser, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	user := toUser(dbUser)
	return &user, nil
}

// ValidateToken validates an access token and returns user claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

func (s *Service) generateTokenPair(user User) (*TokenPair, error) {
	jwtUser := jwt.User{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IsGuest:     user.IsGuest,
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(jwtUser)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenMgr.GenerateRefreshToken(jwtUser)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenMgr.AccessTTL().Seconds()),
	}, nil
}

func toUser(u repository.User) User {
	return User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsGuest:     u.Guest,
	}
}

func normalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(username) || strings.HasPrefix(username, "guest-") {
		return "", ErrInvalidUsername
	}
	return username, nil
}

func displayNameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
