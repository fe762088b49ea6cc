package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PG_HOST", "localhost")
	t.Setenv("PG_USER", "cyberhoot")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "cyberhoot")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cyberhoot", cfg.Name)
	assert.Equal(t, 4*time.Second, cfg.Runtime.QuestionFetchTimeout)
	assert.Equal(t, time.Second, cfg.Runtime.TickInterval)
	assert.Equal(t, 6, cfg.Lobby.MaxPlayers)
	assert.Equal(t, 18, cfg.OpenTDB.Category)
	assert.Empty(t, cfg.Events.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 12, cfg.Security.PasswordCost)
	assert.Equal(t, 8, cfg.Security.PasswordMinLength)
	assert.Contains(t, cfg.Postgres.DSN(), "dbname=cyberhoot")
	assert.False(t, cfg.Production())
}

func TestLoadLists(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PREWARM_TOPICS", "phishing,passwords")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, []string{"phishing", "passwords"}, cfg.Prewarm.Topics)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("PG_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Security.JWTSecret = "short"
	cfg.Upstream.OAuthTokenURL = "https://auth.example.com/token"
	cfg.Security.PasswordCost = 40
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "PASSWORD_BCRYPT_COST")
	assert.Contains(t, err.Error(), "UPSTREAM_OAUTH")
}
