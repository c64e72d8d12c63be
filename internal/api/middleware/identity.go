package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/presencechat/internal/api/apierr"
	"github.com/mcoot/presencechat/internal/api/request"
	"github.com/mcoot/presencechat/internal/model"
)

type contextKey string

const userContextKey contextKey = "user"

// RequireUser reads the acting participant from the User header.
// Requests without one are rejected before reaching the handler.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(request.UserHeader))
		if user == "" {
			apierr.WriteError(w, model.NewValidationError(request.UserHeader+" header is required"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser returns the acting participant from the request context
func GetUser(ctx context.Context) string {
	user, _ := ctx.Value(userContextKey).(string)
	return user
}

// MustGetUser returns the acting participant or panics
func MustGetUser(ctx context.Context) string {
	user := GetUser(ctx)
	if user == "" {
		panic("no user in context - RequireUser middleware not applied?")
	}
	return user
}
