package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/cyberhoot/pkg/http/errors"
)

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying validated claims.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the claims injected by AuthMiddleware.
func ClaimsFrom(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware validates JWT tokens and injects claims and collaborator
// credentials into the request context. Requests without a token pass through.
func AuthMiddleware(validator TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid authorization header")
				return
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn().Err(err).Msg("token validation failed")
				code := httperrors.ErrCodeInvalidToken
				if errors.Is(err, jwt.ErrExpiredToken) {
					code = httperrors.ErrCodeTokenExpired
				}
				httperrors.RespondUnauthorized(w, code, "Invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = WithCredentials(ctx, Credentials{Username: claims.Username, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request is authenticated.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFrom(r.Context()); !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRegistered ensures the user is not a guest.
func RequireRegistered(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || claims.IsGuest {
			httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Registered account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the token
// query parameter browsers use for WebSocket upgrades. ok is false for a
// malformed header.
func bearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.URL.Query().Get("token"), true
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
