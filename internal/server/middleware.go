package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestLogger logs one line per request once the handler has returned.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			zap.L().Error("HTTP request", fields...)
			return
		}
		zap.L().Debug("HTTP request", fields...)
	})
}

// authenticate resolves the bearer token to a caller identity. The account is
// reloaded so deactivation and role changes apply to tokens already issued.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", errUnauthorized))
			return
		}

		identity, err := s.tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			zap.L().Debug("Token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, r, err)
			return
		}

		user, err := s.ledger.Profile(r.Context(), identity.UserId)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				err = fmt.Errorf("%w: unknown account", errUnauthorized)
			}
			writeError(w, r, err)
			return
		}
		identity.Role = user.Role

		next.ServeHTTP(w, r.WithContext(models.WithIdentity(r.Context(), identity)))
	})
}

// requireRole rejects callers whose role is not one of roles.
func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := models.GetIdentity(r.Context())
			if id == nil {
				writeError(w, r, errUnauthorized)
				return
			}
			if !id.HasRole(roles...) {
				zap.L().Warn("Role check failed",
					zap.String("user_id", id.UserId),
					zap.String("role", id.Role),
					zap.String("path", r.URL.Path))
				writeError(w, r, fmt.Errorf("%w: requires %s", errForbidden, strings.Join(roles, " or ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
