package paymentprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
)

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_1", Status: "complete"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	session, err := client.GetCheckoutSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "no such session"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	_, err := client.GetCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ExhaustedRetriesReportUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	_, err := client.GetCheckoutSession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)

		var req CreateCheckoutSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "price_monthly", req.PriceID)

		_ = json.NewEncoder(w).Encode(CheckoutSession{
			ID:     "cs_new",
			URL:    "https://pay.example.com/cs_new",
			Status: "open",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	session, err := client.CreateCheckoutSession(context.Background(), CreateCheckoutSessionRequest{
		PriceID:    "price_monthly",
		SuccessURL: "https://signals.example.com/success",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", session.ID)
	assert.NotEmpty(t, session.URL)
}

func TestClient_SetCancelAtPeriodEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions/sub_1", r.URL.Path)

		var req UpdateSubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.CancelAtPeriodEnd)

		_ = json.NewEncoder(w).Encode(Subscription{ID: "sub_1", Status: "active", CancelAtPeriodEnd: true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second)
	sub, err := client.SetCancelAtPeriodEnd(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
}
