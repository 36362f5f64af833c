package models

import "time"

// SessionRecord — запись сессии в redis. Поля Status и PeriodEnd —
// проекция атрибутов подписки на момент выпуска или последнего
// обновления; шлюз авторизации им не доверяет и перечитывает
// пользователя из хранилища на каждом запросе.
type SessionRecord struct {
	UserUID     string     `json:"user_uid"`
	IssuedAt    time.Time  `json:"issued_at"`
	RefreshedAt time.Time  `json:"refreshed_at"`
	Status      string     `json:"status"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}
