package paymentprovider

// CreateCheckoutSessionRequest — запрос на создание checkout-сессии.
type CreateCheckoutSessionRequest struct {
	PriceID    string            `json:"price_id"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"` // например, ожидаемый email
}

// CheckoutSession — checkout-сессия провайдера.
type CheckoutSession struct {
	ID               string `json:"id"`
	URL              string `json:"url,omitempty"`
	Status           string `json:"status"` // например "complete"
	CustomerID       string `json:"customer"`
	SubscriptionID   string `json:"subscription"`
	CustomerEmail    string `json:"customer_email"`
	CurrentPeriodEnd int64  `json:"current_period_end"` // unix-время окончания периода
	Created          int64  `json:"created"`
}

// UpdateSubscriptionRequest — запрос на изменение подписки.
// Единственная используемая операция — отмена в конце периода.
type UpdateSubscriptionRequest struct {
	CancelAtPeriodEnd bool `json:"cancel_at_period_end"`
}

// Subscription — подписка провайдера.
type Subscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomerID        string `json:"customer"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// errorResponse — тело ошибки провайдера.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
