// Package webhook реализует HTTP-обработчик вебхуков платёжного провайдера.
//
// Ответ 2xx отдаётся только после долговременной фиксации результата:
// применённое, повторное или устаревшее событие. Любая внутренняя ошибка
// возвращает 5xx, чтобы провайдер повторил доставку.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
	"github.com/magabrotheeeer/forex-signals/internal/paymentprovider"
	"github.com/magabrotheeeer/forex-signals/internal/storage/repository"
)

const maxBodySize = 1 << 20 // 1 MiB

// Service описывает интерфейс применения событий провайдера.
type Service interface {
	ApplyEvent(ctx context.Context, ev models.ProviderEvent) (*repository.ApplyOutcome, error)
}

// Handler обрабатывает вебхуки провайдера.
type Handler struct {
	log          *slog.Logger
	reconciler   Service
	secret       string
	replayWindow time.Duration
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, reconciler Service, secret string, replayWindow time.Duration) *Handler {
	return &Handler{
		log:          log,
		reconciler:   reconciler,
		secret:       secret,
		replayWindow: replayWindow,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Принимает подписанные события подписки. Подпись проверяется до разбора тела.
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие зафиксировано"
// @Failure 400 {object} response.ErrorResponse "Подпись или тело не приняты"
// @Failure 500 {object} response.ErrorResponse "Событие не зафиксировано, нужна повторная доставка"
// @Router /webhooks/payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	sig := r.Header.Get(paymentprovider.SignatureHeader)
	if err := paymentprovider.VerifyWebhookSignature(h.secret, sig, body, h.replayWindow, time.Now()); err != nil {
		log.Info("webhook signature rejected", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	ev, err := paymentprovider.ParseWebhookEvent(body)
	if err != nil {
		log.Error("failed to parse webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
		return
	}

	outcome, err := h.reconciler.ApplyEvent(r.Context(), *ev)
	if err != nil {
		log.Error("failed to apply provider event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("event not recorded"))
		return
	}

	log.Info("provider event recorded",
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
		slog.Bool("applied", outcome.Applied),
	)
	render.JSON(w, r, response.OK())
}
