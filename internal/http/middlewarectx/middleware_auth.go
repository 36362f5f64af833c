// Package middlewarectx содержит HTTP middleware аутентификации сессий,
// проверки права доступа к сигналам и ограничения частоты запросов.
//
// AuthMiddleware проверяет наличие и валидность сессионного токена в
// заголовке Authorization и кладёт в контекст UID пользователя и
// идентификатор сессии. EntitlementMiddleware поверх аутентификации
// перечитывает пользователя из хранилища и пропускает запрос только при
// действующем праве доступа.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// SessionResolver описывает разрешение bearer-токена в живую сессию.
type SessionResolver interface {
	Resolve(ctx context.Context, bearer string) (string, *models.SessionRecord, error)
}

// AuthMiddleware проверяет сессионный токен запроса. При успехе кладёт в
// контекст UID пользователя, идентификатор сессии и запись сессии.
func AuthMiddleware(log *slog.Logger, sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			bearer := strings.TrimPrefix(authHeader, "Bearer ")

			sessionID, record, err := sessions.Resolve(r.Context(), bearer)
			if err != nil {
				log.Info("session resolution failed", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired session"))
				return
			}

			ctx := context.WithValue(r.Context(), UserUID, record.UserUID)
			ctx = context.WithValue(ctx, SessionID, sessionID)
			ctx = context.WithValue(ctx, Session, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
