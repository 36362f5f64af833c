package models

// Типы почтовых задач, публикуемых в очередь отправителя.
const (
	MailPasswordReset       = "password_reset"
	MailSubscriptionExpired = "subscription_expired"
)

// MailTask — задача на отправку письма. Публикуется веб-бэкендом,
// потребляется процессом mail-sender.
type MailTask struct {
	Type      string `json:"type"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ResetLink string `json:"reset_link,omitempty"`
}
