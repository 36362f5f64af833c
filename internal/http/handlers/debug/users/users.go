// Package users реализует отладочную выдачу списка пользователей.
//
// Маршрут регистрируется только в окружении development, и обработчик
// дополнительно отказывает в любом другом окружении.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const listLimit = 100

// UserLister описывает выборку пользователей из хранилища.
type UserLister interface {
	ListUsers(ctx context.Context, limit int) ([]*models.User, error)
}

// Handler обрабатывает отладочные запросы списка пользователей.
type Handler struct {
	log           *slog.Logger
	users         UserLister
	isDevelopment bool
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, users UserLister, isDevelopment bool) *Handler {
	return &Handler{
		log:           log,
		users:         users,
		isDevelopment: isDevelopment,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.debug.users"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if !h.isDevelopment {
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("debug endpoints are disabled"))
		return
	}

	users, err := h.users.ListUsers(r.Context(), listLimit)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	now := time.Now()
	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, models.NewUserView(u, now))
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"users": views,
		"count": len(views),
	}))
}
