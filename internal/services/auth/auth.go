// Package auth содержит логику проверки учётных данных, восстановления
// пароля и обновления профиля. Все пути, чувствительные к перебору
// учётных записей, схлопывают различимые отказы в единый ответ.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/lib/password"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/lib/wallet"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const (
	resetTokenTTL      = time.Hour
	walletChallengeTTL = 5 * time.Minute
	challengeKeyPrefix = "wallet_challenge:"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByWalletAddress(ctx context.Context, address string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userUID, hash string) error
	UpdateProfile(ctx context.Context, userUID, name, email string, passwordHash *string) error
	SetResetToken(ctx context.Context, userUID, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, userUID, newHash string) error
}

// ChallengeStore хранит одноразовые nonce для входа по кошельку.
type ChallengeStore interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// SessionRevoker отзывает сессии пользователя после сброса пароля.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userUID string) error
}

// MailPublisher публикует почтовые задачи в очередь отправителя.
type MailPublisher interface {
	Publish(message any) error
}

// Service отвечает за проверку учётных данных и восстановление доступа.
type Service struct {
	users      UserRepository
	challenges ChallengeStore
	sessions   SessionRevoker
	mail       MailPublisher
	appURL     string
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, challenges ChallengeStore, sessions SessionRevoker, mail MailPublisher, appURL string, log *slog.Logger) *Service {
	return &Service{
		users:      users,
		challenges: challenges,
		sessions:   sessions,
		mail:       mail,
		appURL:     appURL,
		log:        log,
	}
}

// NormalizeEmail приводит email к канонической форме для поиска и хранения.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login проверяет пару email/пароль и возвращает пользователя.
//
// Неизвестный email проходит холостое bcrypt-сравнение, чтобы время ответа
// совпадало с обычной проверкой. Унаследованный пароль в открытом виде при
// успешном входе немедленно мигрируется на bcrypt.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*models.User, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		password.DummyCompare(rawPassword)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.PasswordHash == "" {
		password.DummyCompare(rawPassword)
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
	}

	if password.IsAdaptiveHash(user.PasswordHash) {
		if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
		}
		return user, nil
	}

	// Унаследованная запись с паролем в открытом виде.
	if err := password.ComparePlaintext(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
	}
	upgraded, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.UID, upgraded); err != nil {
		// Вход состоялся; миграция повторится при следующем входе.
		s.log.Error("failed to upgrade legacy password hash", sl.Err(err))
	} else {
		user.PasswordHash = upgraded
	}
	return user, nil
}

// WalletChallenge выпускает одноразовый nonce для указанного адреса кошелька.
func (s *Service) WalletChallenge(ctx context.Context, address string) (string, error) {
	const op = "auth.WalletChallenge"

	normalized, err := wallet.ValidateAndNormalizeAddress(address)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, apperrors.ErrValidation)
	}

	nonce, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.challenges.Set(ctx, challengeKeyPrefix+normalized, nonce, walletChallengeTTL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return nonce, nil
}

// WalletVerify проверяет подпись nonce и возвращает пользователя,
// заводя нового при первом подключении кошелька. Nonce одноразовый.
func (s *Service) WalletVerify(ctx context.Context, address, publicKey, signature string) (*models.User, error) {
	const op = "auth.WalletVerify"

	normalized, err := wallet.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrValidation)
	}

	var nonce string
	found, err := s.challenges.Get(ctx, challengeKeyPrefix+normalized, &nonce)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrExpiredChallenge)
	}
	if err := s.challenges.Invalidate(ctx, challengeKeyPrefix+normalized); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := wallet.VerifySignature(normalized, nonce, publicKey, signature); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
	}

	user, err := s.users.GetUserByWalletAddress(ctx, normalized)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newUID, err := s.users.RegisterUser(ctx, models.User{
		WalletAddress:      normalized,
		SubscriptionStatus: models.SubscriptionNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err = s.users.GetUser(ctx, newUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ForgotPassword запускает восстановление пароля. Ответ одинаков для
// существующих и несуществующих адресов; различие не наблюдаемо ни по
// форме ответа, ни по времени.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	plaintext, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tokenHash := sha256.Sum256([]byte(plaintext))

	normalized := NormalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// Запись токена и публикация письма уходят с пути запроса: обе ветки
	// отвечают сразу после одного SELECT, и время ответа не раскрывает
	// существование учётной записи.
	go s.deliverResetToken(user, normalized, plaintext, hex.EncodeToString(tokenHash[:]))
	return nil
}

// deliverResetToken сохраняет хэш токена сброса и публикует почтовую
// задачу. Выполняется в фоне; отказы логируются.
func (s *Service) deliverResetToken(user *models.User, email, plaintext, tokenHash string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	expires := time.Now().UTC().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.UID, tokenHash, expires); err != nil {
		s.log.Error("failed to store reset token", sl.Err(err))
		return
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s&email=%s", s.appURL, plaintext, email)
	task := models.MailTask{
		Type:      models.MailPasswordReset,
		Email:     email,
		Name:      user.Name,
		ResetLink: resetLink,
	}
	if err := s.mail.Publish(task); err != nil {
		s.log.Error("failed to publish reset mail task", sl.Err(err))
	}
}

// ResetPassword завершает восстановление: токен сравнивается за постоянное
// время, одноразовый, действует один час. Успех отзывает все сессии.
func (s *Service) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	const op = "auth.ResetPassword"

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidToken)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.ResetPasswordTokenHash == "" {
		return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidToken)
	}

	presented := sha256.Sum256([]byte(resetToken))
	if !password.ConstantTimeEquals(hex.EncodeToString(presented[:]), user.ResetPasswordTokenHash) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidToken)
	}
	if user.ResetPasswordExpires == nil || !user.ResetPasswordExpires.After(time.Now().UTC()) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrExpiredToken)
	}

	newHash, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.ResetPassword(ctx, user.UID, newHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.RevokeAllForUser(ctx, user.UID); err != nil {
		s.log.Error("failed to revoke sessions after password reset", sl.Err(err))
	}
	return nil
}

// ProfileUpdate — входные данные обновления профиля.
type ProfileUpdate struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile обновляет имя, email и (опционально) пароль пользователя.
// Пользователь загружается до проверок; уникальность email относительно
// остальных пользователей обеспечивает база. Смена пароля требует верного
// текущего пароля, включая путь унаследованных записей.
func (s *Service) UpdateProfile(ctx context.Context, userUID string, req ProfileUpdate) (*models.User, error) {
	const op = "auth.UpdateProfile"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var newHash *string
	if req.NewPassword != "" {
		if err := s.verifyCurrentPassword(user, req.CurrentPassword); err != nil {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
		}
		hashed, err := password.GetHash(req.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		newHash = &hashed
	}

	if err := s.users.UpdateProfile(ctx, userUID, req.Name, NormalizeEmail(req.Email), newHash); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) verifyCurrentPassword(user *models.User, current string) error {
	if user.PasswordHash == "" {
		password.DummyCompare(current)
		return apperrors.ErrInvalidCredentials
	}
	if password.IsAdaptiveHash(user.PasswordHash) {
		return password.CompareHash(user.PasswordHash, current)
	}
	return password.ComparePlaintext(user.PasswordHash, current)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
