package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/the-lightning-land/postd/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// requireUser rejects requests without a valid bearer token and hands the
// verified claims to the wrapped handler through the request context.
func (a *Api) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			a.jsonError(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := a.auth.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.jsonError(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(userContextKey).(*auth.Claims)
	return claims
}
