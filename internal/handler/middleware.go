package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DebugAuthMiddleware guards debug routes with a static bearer token.
// An empty token leaves the routes open.
func DebugAuthMiddleware(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("debug auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing debug token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("debug auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				logger.Warn("debug auth: token rejected", zap.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, "invalid debug token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
