package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// SignatureHeader — заголовок с подписью вебхука.
const SignatureHeader = "X-Provider-Signature"

// VerifyWebhookSignature проверяет подпись вебхука вида
// "t=<unix>,v1=<hex hmac-sha256>", где подписываемая строка — "<t>.<body>".
// Метка времени ограничивает окно повторной доставки перехваченного тела.
func VerifyWebhookSignature(secret, header string, body []byte, replayWindow time.Duration, now time.Time) error {
	const op = "paymentprovider.VerifyWebhookSignature"

	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("%s: malformed signature header", op)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: malformed timestamp: %w", op, err)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > replayWindow || age < -replayWindow {
		return fmt.Errorf("%s: timestamp outside replay window", op)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%s: malformed signature: %w", op, err)
	}
	expectedBytes, _ := hex.DecodeString(expected)
	if !hmac.Equal(expectedBytes, sigBytes) {
		return fmt.Errorf("%s: signature mismatch", op)
	}
	return nil
}

// webhookPayload — сырое тело вебхука провайдера.
type webhookPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID                string `json:"id"`
			Status            string `json:"status"`
			CustomerID        string `json:"customer"`
			CustomerEmail     string `json:"customer_email"`
			SubscriptionID    string `json:"subscription"`
			CurrentPeriodEnd  int64  `json:"current_period_end"`
			CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent разбирает тело вебхука в нормализованное событие.
func ParseWebhookEvent(body []byte) (*models.ProviderEvent, error) {
	const op = "paymentprovider.ParseWebhookEvent"

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payload.ID == "" || payload.Type == "" {
		return nil, fmt.Errorf("%s: missing event id or type", op)
	}

	ev := &models.ProviderEvent{
		ID:                payload.ID,
		Type:              payload.Type,
		CreatedAt:         time.Unix(payload.Created, 0).UTC(),
		CustomerID:        payload.Data.Object.CustomerID,
		CustomerEmail:     payload.Data.Object.CustomerEmail,
		Status:            payload.Data.Object.Status,
		CancelAtPeriodEnd: payload.Data.Object.CancelAtPeriodEnd,
	}
	if payload.Data.Object.CurrentPeriodEnd > 0 {
		ev.CurrentPeriodEnd = time.Unix(payload.Data.Object.CurrentPeriodEnd, 0).UTC()
	}

	// Для checkout-сессии ID подписки лежит в поле subscription, для
	// событий подписки — в ID самого объекта.
	switch payload.Type {
	case models.EventCheckoutSessionCompleted, models.EventInvoicePaymentFailed:
		ev.SubscriptionID = payload.Data.Object.SubscriptionID
	default:
		ev.SubscriptionID = payload.Data.Object.ID
	}
	return ev, nil
}
