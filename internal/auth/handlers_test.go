package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
)

func TestHandlers_RegisterLoginAndMe(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	h := NewHTTPHandlers(svc, zerolog.Nop())
	id := uuid.New()
	stored := repository.User{ID: id, Username: "alice", DisplayName: "Alice"}

	store.On("Create", mock.Anything, mock.Anything).Return(stored, nil)
	store.On("GetByID", mock.Anything, id).Return(stored, nil)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"username":"alice","password":"correct-horse","display_name":"Alice"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	me := AuthMiddleware(svc, zerolog.Nop())(RequireAuth(http.HandlerFunc(h.GetMe)))
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	me.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, id, user.ID)
}

func TestHandlers_RegisterConflict(t *testing.T) {
	store := new(mockUserStore)
	h := NewHTTPHandlers(newTestService(store), zerolog.Nop())
	store.On("Create", mock.Anything, mock.Anything).Return(repository.User{}, repository.ErrConflict)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"username":"alice","password":"correct-horse"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "username_taken")
}

func TestHandlers_LoginRejectsBadCredentials(t *testing.T) {
	store := new(mockUserStore)
	h := NewHTTPHandlers(newTestService(store), zerolog.Nop())
	store.On("GetByUsername", mock.Anything, "alice").Return(repository.User{}, repository.ErrNotFound)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"username":"alice","password":"nope-nope"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	h := NewHTTPHandlers(newTestService(new(mockUserStore)), zerolog.Nop())
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	store.On("Create", mock.Anything, mock.Anything).Return(repository.User{ID: uuid.New(), Username: "guest-1", Guest: true}, nil)
	_, tokens, err := svc.CreateGuest(t.Context(), GuestRequest{})
	require.NoError(t, err)

	var seen Credentials
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CredentialsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mw := AuthMiddleware(svc, zerolog.Nop())

	cases := []struct {
		name   string
		header string
		query  string
		status int
		user   string
	}{
		{name: "anonymous passes through", status: http.StatusNoContent},
		{name: "bearer header", header: "Bearer " + tokens.AccessToken, status: http.StatusNoContent, user: "guest-1"},
		{name: "query token", query: "?token=" + tokens.AccessToken, status: http.StatusNoContent, user: "guest-1"},
		{name: "malformed header", header: "Token abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer abc", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = Credentials{}
			req := httptest.NewRequest(http.MethodGet, "/ws/games"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.user, seen.Username)
			if tc.user != "" {
				assert.Equal(t, tokens.AccessToken, seen.Token)
			}
		})
	}
}

func TestRequireRegistered(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	store.On("Create", mock.Anything, mock.Anything).Return(repository.User{ID: uuid.New(), Username: "guest-1", Guest: true}, nil)
	_, tokens, err := svc.CreateGuest(t.Context(), GuestRequest{})
	require.NoError(t, err)

	handler := AuthMiddleware(svc, zerolog.Nop())(RequireRegistered(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodPost, "/v1/lobbies", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
