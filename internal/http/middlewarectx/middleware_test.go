package middlewarectx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/forex-signals/internal/models"
)

type SessionsMock struct{ mock.Mock }

func (m *SessionsMock) Resolve(ctx context.Context, bearer string) (string, *models.SessionRecord, error) {
	args := m.Called(ctx, bearer)
	record, _ := args.Get(1).(*models.SessionRecord)
	return args.String(0), record, args.Error(2)
}

func (m *SessionsMock) RefreshIfStale(ctx context.Context, sessionID string, record *models.SessionRecord, user *models.User) error {
	args := m.Called(ctx, sessionID, record, user)
	return args.Error(0)
}

type UsersMock struct{ mock.Mock }

func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	record := &models.SessionRecord{UserUID: "u1", Status: models.SubscriptionActive}

	tests := []struct {
		name           string
		authHeader     string
		setupMocks     func(sessions *SessionsMock)
		wantStatusCode int
		wantNextCalled bool
	}{
		{
			name:       "valid token passes context through",
			authHeader: "Bearer good-token",
			setupMocks: func(sessions *SessionsMock) {
				sessions.On("Resolve", mock.Anything, "good-token").
					Return("sess-1", record, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "missing header rejected",
			authHeader:     "",
			setupMocks:     func(sessions *SessionsMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme rejected",
			authHeader:     "Basic abc",
			setupMocks:     func(sessions *SessionsMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "unresolvable token rejected",
			authHeader: "Bearer stale-token",
			setupMocks: func(sessions *SessionsMock) {
				sessions.On("Resolve", mock.Anything, "stale-token").
					Return("", nil, errors.New("session not found")).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionsMock)
			tt.setupMocks(sessions)

			var nextCalled bool
			var gotUID, gotSessionID any
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotUID = r.Context().Value(UserUID)
				gotSessionID = r.Context().Value(SessionID)
				w.WriteHeader(http.StatusOK)
			})

			handler := AuthMiddleware(newNoopLogger(), sessions)(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
			if tt.wantNextCalled {
				assert.Equal(t, "u1", gotUID)
				assert.Equal(t, "sess-1", gotSessionID)
			}
			sessions.AssertExpectations(t)
		})
	}
}

func TestEntitlementMiddleware(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name           string
		user           *models.User
		userErr        error
		wantStatusCode int
		wantNextCalled bool
	}{
		{
			name: "active subscription passes",
			user: &models.User{
				UID:                   "u1",
				SubscriptionStatus:    models.SubscriptionActive,
				SubscriptionPeriodEnd: &future,
			},
			wantStatusCode: http.StatusOK,
			wantNextCalled: true,
		},
		{
			name: "canceled but paid period passes",
			user: &models.User{
				UID:                   "u1",
				SubscriptionStatus:    models.SubscriptionCanceled,
				SubscriptionPeriodEnd: &future,
			},
			wantStatusCode: http.StatusOK,
			wantNextCalled: true,
		},
		{
			name: "expired period rejected",
			user: &models.User{
				UID:                   "u1",
				SubscriptionStatus:    models.SubscriptionActive,
				SubscriptionPeriodEnd: &past,
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "no subscription rejected",
			user:           &models.User{UID: "u1", SubscriptionStatus: models.SubscriptionNone},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "storage failure is not a denial",
			userErr:        errors.New("connection refused"),
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			users.On("GetUser", mock.Anything, "u1").Return(tt.user, tt.userErr).Once()

			sessions := new(SessionsMock)
			if tt.wantNextCalled {
				sessions.On("RefreshIfStale", mock.Anything, "sess-1", mock.Anything, tt.user).
					Return(nil).Once()
			}

			var nextCalled bool
			handler := EntitlementMiddleware(newNoopLogger(), users, sessions)(okHandler(&nextCalled))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
			ctx := context.WithValue(req.Context(), UserUID, "u1")
			ctx = context.WithValue(ctx, SessionID, "sess-1")
			ctx = context.WithValue(ctx, Session, &models.SessionRecord{UserUID: "u1"})
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
			users.AssertExpectations(t)
			sessions.AssertExpectations(t)
		})
	}
}

func TestEntitlementMiddleware_MissingIdentity(t *testing.T) {
	users := new(UsersMock)
	sessions := new(SessionsMock)

	var nextCalled bool
	handler := EntitlementMiddleware(newNoopLogger(), users, sessions)(okHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, nextCalled)
	users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestEntitlementMiddleware_RefreshFailureDoesNotBlock(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	user := &models.User{
		UID:                   "u1",
		SubscriptionStatus:    models.SubscriptionActive,
		SubscriptionPeriodEnd: &future,
	}

	users := new(UsersMock)
	users.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()

	sessions := new(SessionsMock)
	sessions.On("RefreshIfStale", mock.Anything, "sess-1", mock.Anything, user).
		Return(errors.New("redis down")).Once()

	var nextCalled bool
	handler := EntitlementMiddleware(newNoopLogger(), users, sessions)(okHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	ctx := context.WithValue(req.Context(), UserUID, "u1")
	ctx = context.WithValue(ctx, SessionID, "sess-1")
	ctx = context.WithValue(ctx, Session, &models.SessionRecord{UserUID: "u1"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, nextCalled)
}
