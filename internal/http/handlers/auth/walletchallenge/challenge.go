// Package walletchallenge реализует HTTP-обработчик выдачи одноразового
// nonce для входа по криптокошельку.
package walletchallenge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/lib/wallet"
)

// Request — структура входных данных запроса nonce.
type Request struct {
	Address string `json:"address" validate:"required"`
}

// Service описывает интерфейс выдачи nonce.
type Service interface {
	WalletChallenge(ctx context.Context, address string) (string, error)
}

// Handler обрабатывает HTTP-запросы выдачи nonce.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдача nonce для входа по кошельку
// @Description Возвращает одноразовый nonce и сообщение для подписи ключом кошелька.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Адрес кошелька"
// @Success 200 {object} response.Response "Nonce выдан"
// @Failure 400 {object} response.ErrorResponse "Некорректный адрес"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/wallet/challenge [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.walletchallenge"

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

	nonce, err := h.auth.WalletChallenge(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			log.Info("wallet address rejected")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid wallet address"))
			return
		}
		log.Error("failed to issue wallet challenge", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"nonce":   nonce,
		"message": string(wallet.ChallengeMessage(nonce)),
	}))
}
