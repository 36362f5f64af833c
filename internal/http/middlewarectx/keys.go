package middlewarectx

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID — ключ для UID пользователя в контексте.
	UserUID Key = "user_uid"
	// SessionID — ключ для идентификатора сессии в контексте.
	SessionID Key = "session_id"
	// Session — ключ для записи сессии в контексте.
	Session Key = "session"
)
