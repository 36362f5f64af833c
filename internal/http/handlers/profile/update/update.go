// Package update реализует HTTP-обработчик редактирования профиля:
// имя, email и смена пароля с подтверждением текущего.
package update

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
	"github.com/magabrotheeeer/forex-signals/internal/http/middlewarectx"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
	"github.com/magabrotheeeer/forex-signals/internal/services/auth"
)

// Request — структура входных данных редактирования профиля.
// Смена пароля требует непустых CurrentPassword и NewPassword.
type Request struct {
	Name            string `json:"name" validate:"max=100"`
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"current_password" validate:"omitempty,min=6"`
	NewPassword     string `json:"new_password" validate:"omitempty,min=6,max=72"`
}

// Service описывает интерфейс редактирования профиля.
type Service interface {
	UpdateProfile(ctx context.Context, userUID string, req auth.ProfileUpdate) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы редактирования профиля.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service) *Handler {
	return &Handler{
		log:      log,
		auth:     authService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Редактирование профиля
// @Description Обновляет имя и email; при передаче пары паролей меняет пароль после проверки текущего.
// @Tags Profile
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Новые данные профиля"
// @Success 200 {object} response.Response "Профиль обновлён"
// @Failure 401 {object} response.ErrorResponse "Текущий пароль не подтверждён"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /profile [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.update"

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

	if (req.NewPassword == "") != (req.CurrentPassword == "") {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("password change requires both current and new password"))
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), userUID, auth.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			log.Info("current password rejected")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("current password is incorrect"))
		case errors.Is(err, apperrors.ErrConflict):
			log.Info("email already taken")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email is already in use"))
		default:
			log.Error("profile update failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal service error"))
		}
		return
	}

	log.Info("profile updated", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user": models.NewUserView(user, time.Now()),
	}))
}
