package models

import "time"

// Типы событий биллинг-провайдера, которые потребляет реконсилиация.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// ProviderEvent — нормализованное событие провайдера после проверки
// подписи. Один и тот же тип используется для вебхуков и для
// верификации checkout-сессии при возврате пользователя.
type ProviderEvent struct {
	ID                string    // Идентификатор события у провайдера (ключ идемпотентности)
	Type              string    // Тип события
	CreatedAt         time.Time // Момент эмиссии события провайдером
	SubscriptionID    string    // ID подписки
	CustomerID        string    // ID покупателя
	CustomerEmail     string    // Почта покупателя (для заведения пользователя)
	Status            string    // Статус подписки в полезной нагрузке
	CurrentPeriodEnd  time.Time // Конец оплаченного периода
	CancelAtPeriodEnd bool      // Запрошена отмена в конце периода
}
