package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/question"
	"github.com/gokatarajesh/cyberhoot/internal/quiz"
	"github.com/gokatarajesh/cyberhoot/internal/upstream"
)

func newGenerator(url string) *Generator {
	client := upstream.New(upstream.Config{Name: "generator", BaseURL: url})
	return New(client, Config{MaxRetries: 3, Backoff: time.Millisecond}, zerolog.Nop())
}

func TestGenerateCollectsSingleQuestionResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, questionsPath, r.URL.Path)
		var body generatorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 9, body.Difficulty)
		assert.Equal(t, "mcq", body.Type)
		assert.Equal(t, "cybersecurity", body.Topic)

		n := calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      n,
			"type":    "mcq",
			"text":    []string{"", "Which protocol secures web traffic?", "Which tool scans ports?"}[n],
			"options": []string{"A) TLS", "B) FTP", "C) Telnet"},
			"answer":  "A",
		})
	}))
	defer srv.Close()

	qs, err := newGenerator(srv.URL).Generate(context.Background(), question.GenerateRequest{
		Topic: "cybersecurity", Type: question.TypeMCQ, Difficulty: quiz.DifficultyHard, Language: "English", Count: 2,
	})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "gen-1", qs[0].ID)
	assert.Equal(t, "A", qs[0].CorrectAnswer)
	assert.Equal(t, quiz.DifficultyHard, qs[0].Difficulty)
	assert.Equal(t, question.SourceGenerator, qs[1].Source)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerateAcceptsListAndOpenQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"x1","type":"open","text":"Explain salting.","solvingTime":50},{"id":"x2","type":"open","text":"Explain hashing."}]`))
	}))
	defer srv.Close()

	qs, err := newGenerator(srv.URL).Generate(context.Background(), question.GenerateRequest{
		Type: question.TypeOpen, Difficulty: quiz.DifficultyAll, Count: 2,
	})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, quiz.KindOpenEnded, qs[0].Kind)
	assert.Equal(t, 50, qs[0].AllowedSeconds)
	assert.Equal(t, quiz.DifficultyMedium, qs[1].Difficulty)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"questions":[{"id":7,"type":"mcq","text":"Pick the hash","options":["SHA-256","AES"],"correctAnswer":"SHA-256"}]}`))
	}))
	defer srv.Close()

	qs, err := newGenerator(srv.URL).Generate(context.Background(), question.GenerateRequest{Count: 1})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "SHA-256", qs[0].CorrectAnswer)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad topic", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newGenerator(srv.URL).Generate(context.Background(), question.GenerateRequest{Count: 1})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateStopsWhenNothingNew(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id":"same","type":"mcq","text":"Same question","options":["a","b"],"correctAnswer":"a"}`))
	}))
	defer srv.Close()

	qs, err := newGenerator(srv.URL).Generate(context.Background(), question.GenerateRequest{Count: 5})
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerateNotConfigured(t *testing.T) {
	_, err := newGenerator("").Generate(context.Background(), question.GenerateRequest{Count: 1})
	assert.ErrorIs(t, err, upstream.ErrNotConfigured)
}
