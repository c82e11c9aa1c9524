package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fieldops.lk/internal/rbac"
	"fieldops.lk/internal/session"
	"fieldops.lk/internal/tokens"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer token to a live session and loads the current
// user record into the request context as the acting principal. The directory
// is re-read on every request so a role change takes effect immediately, not
// at next login.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := tokens.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		if _, err := a.sessions.Touch(r.Context(), claims.SessionID); err != nil {
			switch {
			case errors.Is(err, session.ErrExpired):
				writeError(w, r, http.StatusUnauthorized, "session expired")
			case errors.Is(err, session.ErrNotFound):
				writeError(w, r, http.StatusUnauthorized, "session closed")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		user, err := a.users.Get(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := rbac.ContextWithPrincipal(r.Context(), user.Principal())
		ctx = contextWithSessionID(ctx, claims.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionIDKey struct{}

func contextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

func sessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey{}).(string)
	return v
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
