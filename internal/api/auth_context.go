package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userKey is the context key for the authenticated user.
const userKey ctxKey = "user"

// setUser stores the authenticated user in context.
func setUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}

// RequireUser returns the authenticated user or a 401 error.
func RequireUser(ctx context.Context) (*domain.User, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	return user, nil
}

// RequireModerator returns the authenticated user if they are a moderator.
func RequireModerator(ctx context.Context) (*domain.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsMod {
		return nil, domainerrors.Forbidden("moderator access required")
	}
	return user, nil
}

// authMiddleware returns a middleware that validates Bearer tokens and stores
// the user in context. Without a valid token the request continues
// anonymously; handlers use RequireUser to insist.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setUser(r.Context(), user)))
		})
	}
}
