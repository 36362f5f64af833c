// Package paymentprovider реализует клиент биллинг-провайдера:
// создание и чтение checkout-сессий, отмену подписки в конце периода
// и проверку подписи входящих вебхуков.
//
// Клиент — единственный компонент, который общается с провайдером;
// остальные части системы работают через реконсилиацию.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
)

// Client — stateless HTTP-клиент провайдера, переиспользуемый между запросами.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

const (
	maxAttempts  = 3
	initialDelay = 500 * time.Millisecond
	maxDelay     = 2 * time.Second
)

// NewClient создаёт новый клиент провайдера.
func NewClient(apiURL, secretKey string, requestTimeout time.Duration) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do выполняет запрос с ограниченным экспоненциальным повтором на сетевых
// ошибках и 5xx. После исчерпания попыток возвращает ErrProviderUnavailable.
// Ответы 4xx не повторяются.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	const op = "paymentprovider.do"

	delay := initialDelay
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("provider returned %s", resp.Status)
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			var errResp errorResponse
			_ = json.NewDecoder(resp.Body).Decode(&errResp)
			_ = resp.Body.Close()
			return fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status, errResp.Error.Message)
		}

		if result != nil {
			if err = json.NewDecoder(resp.Body).Decode(result); err != nil {
				_ = resp.Body.Close()
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		_ = resp.Body.Close()
		return nil
	}

	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrProviderUnavailable, lastErr)
}

// CreateCheckoutSession создаёт checkout-сессию и возвращает её вместе с
// URL для перенаправления пользователя.
func (c *Client) CreateCheckoutSession(ctx context.Context, reqParams CreateCheckoutSessionRequest) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", reqParams, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession возвращает checkout-сессию по её ID.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SetCancelAtPeriodEnd помечает подписку на отмену в конце оплаченного
// периода. Источником истины о фактической отмене остаётся вебхук.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	req := UpdateSubscriptionRequest{CancelAtPeriodEnd: true}
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
