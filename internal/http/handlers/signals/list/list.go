// Package list реализует HTTP-обработчик выдачи последних торговых
// сигналов. Маршрут закрыт middleware аутентификации и проверки подписки.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/services/signals"
)

// Service описывает интерфейс выдачи сигналов.
type Service interface {
	ListRecent(ctx context.Context, limit int) ([]signals.View, error)
}

// Handler обрабатывает HTTP-запросы списка сигналов.
type Handler struct {
	log     *slog.Logger
	signals Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, signalsService Service) *Handler {
	return &Handler{log: log, signals: signalsService}
}

// ServeHTTP godoc
// @Summary Последние торговые сигналы
// @Description Возвращает последние сигналы, от новых к старым. Требуется действующая подписка.
// @Tags Signals
// @Produce  json
// @Security BearerAuth
// @Param limit query int false "Количество сигналов (по умолчанию 20, максимум 100)"
// @Success 200 {object} response.Response "Список сигналов"
// @Failure 401 {object} response.ErrorResponse "Нет аутентификации"
// @Failure 403 {object} response.ErrorResponse "Нет действующей подписки"
// @Router /signals [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.signals.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	views, err := h.signals.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error("failed to list signals", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"signals": views,
		"count":   len(views),
	}))
}
