package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("cyberhoot", "test", "debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("cyberhoot", "test", "loud").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("cyberhoot", "production", "").GetLevel())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := IntoContext(context.Background(), logger)
	l := FromContext(ctx)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)

	buf.Reset()
	l = FromContext(context.Background())
	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())
}
