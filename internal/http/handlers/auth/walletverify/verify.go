// Package walletverify реализует HTTP-обработчик проверки подписи nonce
// и входа (или регистрации) по криптокошельку.
package walletverify

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

// Request — структура входных данных проверки подписи.
type Request struct {
	Address   string `json:"address" validate:"required"`
	PublicKey string `json:"public_key" validate:"required,hexadecimal"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// Service описывает интерфейс входа по кошельку.
type Service interface {
	WalletVerify(ctx context.Context, address, publicKey, signature string) (*models.User, error)
}

// SessionIssuer выпускает сессию для аутентифицированного пользователя.
type SessionIssuer interface {
	Issue(ctx context.Context, user *models.User) (string, error)
}

// Handler обрабатывает HTTP-запросы проверки подписи кошелька.
type Handler struct {
	log      *slog.Logger
	auth     Service
	sessions SessionIssuer
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, auth Service, sessions SessionIssuer) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		sessions: sessions,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход по подписи кошелька
// @Description Проверяет подпись выданного nonce. Для нового адреса заводится учётная запись.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Адрес, публичный ключ и подпись nonce"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 401 {object} response.ErrorResponse "Подпись не подтверждена"
// @Failure 410 {object} response.ErrorResponse "Nonce истёк или уже использован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/wallet/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.walletverify"

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

	user, err := h.auth.WalletVerify(r.Context(), req.Address, req.PublicKey, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrExpiredChallenge):
			log.Info("wallet challenge expired")
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("challenge expired or already used"))
		case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrValidation):
			log.Info("wallet signature rejected")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("signature verification failed"))
		default:
			log.Error("wallet verify failed", sl.Err(err))
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

	log.Info("wallet login success", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
		"user":  models.NewUserView(user, time.Now()),
	}))
}
