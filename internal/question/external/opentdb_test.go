package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTDBFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api.php", r.URL.Path)
		assert.Equal(t, "2", q.Get("amount"))
		assert.Equal(t, "18", q.Get("category"))
		assert.Equal(t, "multiple", q.Get("type"))
		assert.Equal(t, "hard", q.Get("difficulty"))
		_, _ = w.Write([]byte(`{"response_code":0,"results":[{"category":"Science: Computers","type":"multiple","difficulty":"hard","question":"What does &quot;TLS&quot; stand for?","correct_answer":"Transport Layer Security","incorrect_answers":["Total Link Safety","Trusted Login Service","Transfer Layer Socket"]}]}`))
	}))
	defer srv.Close()

	qs, err := NewOpenTDBClient(srv.URL, 0, srv.Client()).Fetch(context.Background(), 2, "hard")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Transport Layer Security", qs[0].CorrectAnswer)
	assert.Len(t, qs[0].IncorrectAnswer, 3)
}

func TestOpenTDBResponseCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("difficulty"))
		_, _ = w.Write([]byte(`{"response_code":1,"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenTDBClient(srv.URL, 9, nil).Fetch(context.Background(), 5, "")
	assert.ErrorContains(t, err, "response code 1")
}
