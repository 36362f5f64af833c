// Package password реализует функции для безопасного хеширования и проверки паролей.
//
// GetHash создает bcrypt-хеш пароля для безопасного хранения.
// CompareHash сравнивает исходный bcrypt-хеш с введённым паролем.
// Дополнительно пакет распознаёт унаследованные записи с паролем в открытом
// виде: такие записи сравниваются за постоянное время и мигрируются на bcrypt
// при первом успешном входе.
package password

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash — валидный bcrypt-хэш случайной строки. Используется для
// холостого сравнения при неизвестном email, чтобы время ответа не
// выдавало существование учётной записи.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// GetHash принимает пароль пользователя и возвращает его bcrypt-хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt-хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе — ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsAdaptiveHash сообщает, является ли сохранённое значение bcrypt-хэшем.
// Всё остальное трактуется как унаследованный пароль в открытом виде.
func IsAdaptiveHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// ComparePlaintext сравнивает унаследованный пароль в открытом виде
// с введённым за постоянное время.
func ComparePlaintext(stored, externalPassword string) error {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(externalPassword)) != 1 {
		return fmt.Errorf("password.ComparePlaintext: mismatch")
	}
	return nil
}

// DummyCompare выполняет холостое bcrypt-сравнение. Вызывается на пути
// "пользователь не найден", чтобы выровнять время ответа с обычной
// проверкой пароля.
func DummyCompare(externalPassword string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(externalPassword))
}

// ConstantTimeEquals сравнивает две строки за постоянное время.
// Используется для токенов сброса пароля.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
