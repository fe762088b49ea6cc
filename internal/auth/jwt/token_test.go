package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager()
	user := User{ID: uuid.New(), Username: "ace", DisplayName: "Ace", IsGuest: true}

	token, err := m.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ace", claims.Username)
	assert.True(t, claims.IsGuest)
	assert.Equal(t, "cyberhoot", claims.Issuer)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	m := testManager()
	refresh, err := m.GenerateRefreshToken(User{ID: uuid.New(), Username: "ace"})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateRefreshToken(refresh)
	assert.NoError(t, err)
}

func TestSharedSecretStillSeparatesAudiences(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("only-secret")})
	access, err := m.GenerateAccessToken(User{ID: uuid.New(), Username: "ace"})
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	m := testManager()
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }
	token, err := m.GenerateAccessToken(User{ID: uuid.New(), Username: "ace"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTamperedToken(t *testing.T) {
	m := testManager()
	token, err := m.GenerateAccessToken(User{ID: uuid.New(), Username: "ace"})
	require.NoError(t, err)

	other := NewManager(TokenConfig{AccessSecret: []byte("different")})
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
