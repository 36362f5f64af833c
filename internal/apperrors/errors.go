// Package apperrors определяет сентинельные ошибки бизнес-уровня и их
// соответствие HTTP-статусам. Обработчики сравнивают ошибки через errors.Is
// и не зависят от текста сообщений.
package apperrors

import (
	"errors"
	"net/http"
)

// Сентинельные ошибки, возвращаемые сервисами.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already in use")
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("expired token")
	ErrExpiredChallenge    = errors.New("expired challenge")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrInternal            = errors.New("internal error")
)

// HTTPStatus возвращает HTTP-статус, соответствующий ошибке.
// Неизвестные ошибки считаются внутренними.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrExpiredChallenge):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
