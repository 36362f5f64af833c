package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) Login(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type SessionsMock struct{ mock.Mock }

func (m *SessionsMock) Issue(ctx context.Context, user *models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	user := &models.User{UID: "u1", Email: "user@example.com", SubscriptionStatus: models.SubscriptionNone}

	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(auth *AuthMock, sessions *SessionsMock)
		wantStatusCode int
		wantStatus     string
		wantError      string
	}{
		{
			name:        "valid login",
			requestBody: Request{Email: "user@example.com", Password: "password123"},
			setupMocks: func(auth *AuthMock, sessions *SessionsMock) {
				auth.On("Login", mock.Anything, "user@example.com", "password123").
					Return(user, nil).Once()
				sessions.On("Issue", mock.Anything, user).Return("tok", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:        "invalid credentials",
			requestBody: Request{Email: "user@example.com", Password: "wrong-pass"},
			setupMocks: func(auth *AuthMock, sessions *SessionsMock) {
				auth.On("Login", mock.Anything, "user@example.com", "wrong-pass").
					Return(nil, apperrors.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     "Error",
			wantError:      "invalid credentials",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMocks:     func(auth *AuthMock, sessions *SessionsMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Email: "user@example.com"},
			setupMocks:     func(auth *AuthMock, sessions *SessionsMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
			wantError:      "field Password is a required field",
		},
		{
			name:           "validation error - malformed email",
			requestBody:    Request{Email: "not-an-email", Password: "password123"},
			setupMocks:     func(auth *AuthMock, sessions *SessionsMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
			wantError:      "field Email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(AuthMock)
			sessions := new(SessionsMock)
			tt.setupMocks(auth, sessions)

			handler := New(newNoopLogger(), auth, sessions)

			var body bytes.Buffer
			require.NoError(t, json.NewEncoder(&body).Encode(tt.requestBody))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", &body)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, "tok", data["token"])
			}

			auth.AssertExpectations(t)
			sessions.AssertExpectations(t)
		})
	}
}
