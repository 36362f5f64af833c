// Package reset реализует HTTP-обработчик установки нового пароля
// по токену восстановления.
package reset

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
)

// Request — структура входных данных для сброса пароля.
type Request struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required,hexadecimal"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// Service описывает интерфейс сброса пароля.
type Service interface {
	ResetPassword(ctx context.Context, email, resetToken, newPassword string) error
}

// Handler обрабатывает HTTP-запросы сброса пароля.
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
// @Summary Установка нового пароля по токену
// @Description Проверяет одноразовый токен восстановления и записывает новый пароль. Все сессии пользователя отзываются.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Email, токен и новый пароль"
// @Success 200 {object} response.Response "Пароль обновлён"
// @Failure 400 {object} response.ErrorResponse "Токен не подходит или истёк"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.reset"

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

	if err := h.auth.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrExpiredToken):
			log.Info("reset token expired")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("reset token has expired"))
		case errors.Is(err, apperrors.ErrInvalidToken):
			log.Info("reset token rejected")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid reset token"))
		default:
			log.Error("reset password failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal service error"))
		}
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OK())
}
