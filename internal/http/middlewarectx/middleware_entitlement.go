package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// UserReader описывает чтение пользователя из хранилища.
type UserReader interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// SessionRefresher обновляет проекцию подписки в записи сессии.
type SessionRefresher interface {
	RefreshIfStale(ctx context.Context, sessionID string, record *models.SessionRecord, user *models.User) error
}

// EntitlementMiddleware пропускает запрос только при действующем праве
// доступа к сигналам. Решение принимается по свежему состоянию
// пользователя из хранилища, а не по проекции в сессии: отзыв права
// действует немедленно для всех сессий.
func EntitlementMiddleware(log *slog.Logger, users UserReader, sessions SessionRefresher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok || userUID == "" {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			user, err := users.GetUser(r.Context(), userUID)
			if err != nil {
				log.Error("failed to load user for entitlement check", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			if !user.Entitled(time.Now()) {
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("active subscription required"))
				return
			}

			// Пользователь уже прочитан, заодно освежаем проекцию подписки
			// в записи сессии.
			if sessionID, ok := r.Context().Value(SessionID).(string); ok {
				if record, ok := r.Context().Value(Session).(*models.SessionRecord); ok {
					if err := sessions.RefreshIfStale(r.Context(), sessionID, record, user); err != nil {
						log.Warn("failed to refresh session projection", sl.Err(err))
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
