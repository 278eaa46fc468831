package middleware

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/service"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserContextKey contextKey = "userContext"

type AuthMiddleware struct {
	authService *service.AuthService
}

func NewAuthMiddleware(authService *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

func (m *AuthMiddleware) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			helper.WriteError(w, helper.NewUnauthorizedError(""))
			return
		}

		m.serveVerified(w, r, next, tokenString)
	})
}

// VerifyWSToken reads the token from the query string, since browsers cannot
// set headers on websocket upgrades. A bearer header is accepted as well.
func (m *AuthMiddleware) VerifyWSToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			var ok bool
			if tokenString, ok = bearerToken(r); !ok {
				helper.WriteError(w, helper.NewUnauthorizedError(""))
				return
			}
		}

		m.serveVerified(w, r, next, tokenString)
	})
}

func (m *AuthMiddleware) serveVerified(w http.ResponseWriter, r *http.Request, next http.Handler, tokenString string) {
	userContext, err := m.authService.VerifyUser(r.Context(), tokenString)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	ctx := context.WithValue(r.Context(), UserContextKey, userContext)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserFromContext returns the user attached by VerifyToken or VerifyWSToken.
func UserFromContext(ctx context.Context) (*model.UserDTO, bool) {
	userContext, ok := ctx.Value(UserContextKey).(*model.UserDTO)
	return userContext, ok && userContext != nil
}
