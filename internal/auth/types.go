package auth

import (
	"github.com/google/uuid"
)

// User represents an authenticated user (registered or guest).
type User struct {
	ID          uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	IsGuest     bool      `json:"is_guest"`
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterRequest for username/password registration.
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest for username/password authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GuestRequest for creating ephemeral guest accounts.
type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

// ConvertGuestRequest upgrades a guest to a registered account.
type ConvertGuestRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
