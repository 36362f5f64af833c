// Package verify реализует HTTP-обработчик подтверждения оплаты после
// возврата пользователя со страницы провайдера.
//
// Подтверждение опрашивает провайдера по идентификатору checkout-сессии
// и применяет результат тем же путём, что и вебхук. Повторный вызов с
// тем же идентификатором безопасен.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// Request — структура входных данных подтверждения оплаты.
type Request struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Service описывает интерфейс подтверждения checkout-сессии.
type Service interface {
	VerifyCheckoutSession(ctx context.Context, sessionID string) (*models.User, error)
}

// SessionIssuer выпускает сессию для пользователя.
type SessionIssuer interface {
	Issue(ctx context.Context, user *models.User) (string, error)
}

// Handler обрабатывает HTTP-запросы подтверждения оплаты.
type Handler struct {
	log        *slog.Logger
	reconciler Service
	sessions   SessionIssuer
	validate   *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, reconciler Service, sessions SessionIssuer) *Handler {
	return &Handler{
		log:        log,
		reconciler: reconciler,
		sessions:   sessions,
		validate:   validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Подтверждение оплаты
// @Description Проверяет завершённую checkout-сессию у провайдера, активирует подписку и выпускает сессию для пользователя.
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор checkout-сессии"
// @Success 200 {object} response.Response "Подписка активирована"
// @Failure 400 {object} response.ErrorResponse "Сессия не завершена"
// @Failure 502 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /verify-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := h.reconciler.VerifyCheckoutSession(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			log.Info("checkout session not complete")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("checkout session is not complete"))
		case errors.Is(err, apperrors.ErrProviderUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider is temporarily unavailable"))
		case errors.Is(err, apperrors.ErrNotFound):
			log.Info("checkout session matches no user")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("checkout session matches no account"))
		default:
			log.Error("verify subscription failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal service error"))
		}
		return
	}

	token, err := h.sessions.Issue(r.Context(), user)
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("subscription verified", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
		"user":  models.NewUserView(user, time.Now()),
	}))
}
