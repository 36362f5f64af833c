// Package models содержит доменные модели: пользователя с атрибутами
// подписки, торговый сигнал, сессию и события платёжного провайдера.
package models

import "time"

// Статусы подписки пользователя. Словарь совпадает со статусами
// биллинг-провайдера; поле всегда заполняется реконсилиацией и
// никогда не редактируется вручную.
const (
	SubscriptionNone       = "none"
	SubscriptionTrialing   = "trialing"
	SubscriptionActive     = "active"
	SubscriptionCanceled   = "canceled"
	SubscriptionPastDue    = "past_due"
	SubscriptionIncomplete = "incomplete"
)

// User представляет зарегистрированного пользователя системы.
// Учётные данные — пароль и/или кошелёк: хотя бы одно из двух присутствует.
type User struct {
	UID           string     // Уникальный идентификатор пользователя
	Email         string     // Электронная почта (нормализованная, уникальная)
	Name          string     // Отображаемое имя
	PasswordHash  string     // Хэш пароля; пусто при входе только по кошельку
	WalletAddress string     // Адрес кошелька; пусто при входе только по паролю
	CreatedAt     time.Time  // Дата регистрации
	UpdatedAt     time.Time  // Дата последнего изменения

	SubscriptionStatus     string     // Текущий статус подписки
	SubscriptionProviderID string     // ID подписки у провайдера
	SubscriptionCustomerID string     // ID покупателя у провайдера
	SubscriptionPeriodEnd  *time.Time // Момент окончания оплаченного периода
	SubscriptionUpdatedAt  *time.Time // Штамп провайдера для отбрасывания устаревших событий
	CanceledAt             *time.Time // Когда запрошена отмена в конце периода

	ResetPasswordTokenHash string     // SHA-256 хэш токена сброса пароля
	ResetPasswordExpires   *time.Time // Срок действия токена сброса
}

// Entitled сообщает, имеет ли пользователь право на закрытый контент
// в момент now. Статус canceled сохраняет доступ до конца оплаченного
// периода.
func (u *User) Entitled(now time.Time) bool {
	if u.SubscriptionStatus != SubscriptionActive && u.SubscriptionStatus != SubscriptionCanceled {
		return false
	}
	return u.SubscriptionPeriodEnd != nil && u.SubscriptionPeriodEnd.After(now)
}

// UserView — безопасное представление пользователя для выдачи наружу.
// Хэши и идентификаторы провайдера не раскрываются.
type UserView struct {
	UID                string     `json:"uid"`
	Email              string     `json:"email,omitempty"`
	Name               string     `json:"name,omitempty"`
	WalletAddress      string     `json:"wallet_address,omitempty"`
	SubscriptionStatus string     `json:"subscription_status"`
	PeriodEnd          *time.Time `json:"subscription_period_end,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	Entitled           bool       `json:"entitled"`
}

// NewUserView строит представление пользователя на момент now.
func NewUserView(u *User, now time.Time) UserView {
	return UserView{
		UID:                u.UID,
		Email:              u.Email,
		Name:               u.Name,
		WalletAddress:      u.WalletAddress,
		SubscriptionStatus: u.SubscriptionStatus,
		PeriodEnd:          u.SubscriptionPeriodEnd,
		CanceledAt:         u.CanceledAt,
		Entitled:           u.Entitled(now),
	}
}

// SubscriptionUpdate описывает полный набор полей подписки,
// которым реконсилиация замещает текущее состояние пользователя.
type SubscriptionUpdate struct {
	Status     string
	ProviderID string
	CustomerID string
	PeriodEnd  *time.Time
	CanceledAt *time.Time
	EventTime  time.Time
}
