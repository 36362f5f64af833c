// Package logout реализует HTTP-обработчик завершения сессии.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/middlewarectx"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
)

// SessionRevoker отзывает одну сессию.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID, userUID string) error
}

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log      *slog.Logger
	sessions SessionRevoker
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, sessions SessionRevoker) *Handler {
	return &Handler{log: log, sessions: sessions}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Отзывает текущую сессию пользователя.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Сессия отозвана"
// @Failure 401 {object} response.ErrorResponse "Нет аутентификации"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, _ := r.Context().Value(middlewarectx.UserUID).(string)
	sessionID, _ := r.Context().Value(middlewarectx.SessionID).(string)
	if userUID == "" || sessionID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	if err := h.sessions.Revoke(r.Context(), sessionID, userUID); err != nil {
		log.Error("failed to revoke session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("session revoked", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OK())
}
