package forgot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestForgotHandler_UniformResponse(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
	}{
		{"email registered", nil},
		{"service failure hidden from caller", errors.New("smtp queue down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(AuthMock)
			auth.On("ForgotPassword", mock.Anything, "user@example.com").
				Return(tt.serviceErr).Once()

			handler := New(newNoopLogger(), auth)

			var body bytes.Buffer
			require.NoError(t, json.NewEncoder(&body).Encode(Request{Email: "user@example.com"}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", &body)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "OK", resp["status"])
			data := resp["data"].(map[string]any)
			assert.Equal(t, "if that email is registered, a reset link has been sent", data["message"])

			auth.AssertExpectations(t)
		})
	}
}

func TestForgotHandler_ValidationError(t *testing.T) {
	auth := new(AuthMock)
	handler := New(newNoopLogger(), auth)

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(Request{Email: "not-an-email"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", &body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	auth.AssertNotCalled(t, "ForgotPassword", mock.Anything, mock.Anything)
}
