// Package token реализует генерацию и парсинг сессионных JWT.
//
// Claims несут идентификатор пользователя и идентификатор сессии;
// права доступа в токене не хранятся — их источником остаётся база.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims описывает данные, хранящиеся в сессионном токене.
type SessionClaims struct {
	UserUID              string `json:"user_uid"`   // Идентификатор пользователя
	SessionID            string `json:"session_id"` // Идентификатор записи сессии в redis
	jwt.RegisteredClaims        // Стандартные claims (ExpiresAt, IssuedAt и пр.)
}

// GenerateToken создает сессионный токен для пары пользователь/сессия,
// подписывая его секретным ключом. Время жизни определяется tokenTTL.
func (m *MakerImpl) GenerateToken(userUID, sessionID string) (string, error) {
	claims := SessionClaims{
		UserUID:   userUID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// ParseToken парсит токен, проверяет подпись и срок действия,
// возвращает SessionClaims, если токен корректен.
func (m *MakerImpl) ParseToken(tokenStr string) (*SessionClaims, error) {
	const op = "token.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
