// Package cancel реализует HTTP-обработчик отмены подписки в конце
// оплаченного периода.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/http/middlewarectx"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// Service описывает интерфейс отмены подписки.
type Service interface {
	RequestCancellation(ctx context.Context, userUID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы отмены подписки.
type Handler struct {
	log        *slog.Logger
	reconciler Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, reconciler Service) *Handler {
	return &Handler{log: log, reconciler: reconciler}
}

// ServeHTTP godoc
// @Summary Отмена подписки
// @Description Помечает подписку на отмену в конце оплаченного периода. Доступ сохраняется до его окончания.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Отмена запрошена"
// @Failure 401 {object} response.ErrorResponse "Нет аутентификации"
// @Failure 403 {object} response.ErrorResponse "Нет действующей подписки"
// @Router /cancel-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	user, err := h.reconciler.RequestCancellation(r.Context(), userUID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			log.Info("cancellation rejected, no active subscription")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("no active subscription to cancel"))
		case errors.Is(err, apperrors.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("cancellation failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal service error"))
		}
		return
	}

	log.Info("cancellation requested", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user": models.NewUserView(user, time.Now()),
	}))
}
