package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tivrox-backend/internal/auth"
	"tivrox-backend/internal/transport"
)

type adminKey struct{}

// AdminAuth requires a valid bearer token on every request it wraps.
func AdminAuth(manager *auth.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "Missing token", nil)
				return
			}

			claims, err := manager.Parse(token)
			if err != nil {
				message := "Invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "Token expired"
				}
				log.Warn("admin auth: rejected",
					slog.String("reason", message),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				transport.WriteError(w, http.StatusUnauthorized, message, nil)
				return
			}

			ctx := context.WithValue(r.Context(), adminKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(adminKey{}).(string); ok {
		return v
	}
	return ""
}
