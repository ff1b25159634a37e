package httpapi

import (
	"context"
	"net/http"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth"
)

type contextKey struct{}

var sessionContextKey = contextKey{}

// Middleware authenticates the request's bearer token and stores the
// resulting session on the request context before calling next.
// Requests without a valid, unrevoked session are rejected.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, err)
			return
		}

		info, err := s.service.Authenticate(r.Context(), tokenString)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the authenticated session stored by
// Middleware, if any.
func SessionFromContext(ctx context.Context) (auth.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey).(auth.SessionInfo)
	return info, ok
}
