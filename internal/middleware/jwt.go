package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"devnet/internal/httpjson"
)

// Context keys set by AuthMiddleware.
type contextKey string

const (
	UserKey     contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// TokenValidator is the part of the user service the middleware needs.
type TokenValidator interface {
	ValidateToken(tokenString string) (int, string, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle rejects requests without a valid token and stores the caller's
// identity on the request context.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r.Header.Get("Authorization"))

		// Browsers cannot set headers on websocket upgrades.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			httpjson.Error(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		userID, username, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			httpjson.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, username)))
	})
}

// WithIdentity returns ctx carrying the authenticated user.
func WithIdentity(ctx context.Context, userID int, username string) context.Context {
	ctx = context.WithValue(ctx, UserKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}

// Identity returns the user stored by Handle.
func Identity(ctx context.Context) (int, string, bool) {
	userID, ok := ctx.Value(UserKey).(int)
	username, ok2 := ctx.Value(UsernameKey).(string)
	if !ok || !ok2 || username == "" {
		return 0, "", false
	}
	return userID, username, true
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
