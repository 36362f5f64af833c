// Package wallet содержит валидацию адресов кошельков и проверку подписи
// серверного challenge.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// challengePrefix — доменный префикс подписываемого сообщения, чтобы
// подпись challenge нельзя было переиспользовать в другом контексте.
const challengePrefix = "forex-signals auth: "

// ValidateAddress проверяет формат адреса кошелька: hex-строка из 32 байт,
// допускается префикс 0x.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := strings.TrimPrefix(addr, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")

	if len(normalized) != 64 {
		return fmt.Errorf("invalid address length: expected 64 characters (without 0x), got %d", len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeAddress приводит адрес к нижнему регистру без префикса 0x.
func NormalizeAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return strings.ToLower(addr)
}

// ValidateAndNormalizeAddress валидирует адрес и возвращает нормализованную форму.
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

// ChallengeMessage возвращает сообщение, которое клиент должен подписать
// для данного nonce.
func ChallengeMessage(nonce string) []byte {
	return []byte(challengePrefix + nonce)
}

// VerifySignature проверяет ed25519-подпись challenge. Публичный ключ
// должен соответствовать нормализованному адресу кошелька.
func VerifySignature(address, nonce, publicKeyHex, signatureHex string) error {
	const op = "wallet.VerifySignature"

	pub, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%s: invalid public key", op)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%s: invalid signature", op)
	}

	if NormalizeAddress(address) != hex.EncodeToString(pub) {
		return fmt.Errorf("%s: public key does not match address", op)
	}

	if !ed25519.Verify(pub, ChallengeMessage(nonce), sig) {
		return fmt.Errorf("%s: signature verification failed", op)
	}
	return nil
}
