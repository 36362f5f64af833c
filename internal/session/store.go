// Package session реализует выпуск, разрешение и отзыв сессий.
//
// Носителем является подписанный токен с идентификаторами пользователя и
// сессии; источником истины о жизни сессии — запись в redis. Запись несёт
// проекцию атрибутов подписки на момент последнего обновления, которая
// периодически перечитывается из хранилища, но никогда не используется
// для решений о доступе.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/cache"
	"github.com/magabrotheeeer/forex-signals/internal/lib/token"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const (
	sessionKeyPrefix  = "session:"
	userSessionsIndex = "user_sessions:"
)

// Store управляет записями сессий в redis.
type Store struct {
	cache           *cache.Cache
	tokens          token.Maker
	ttl             time.Duration
	refreshInterval time.Duration
}

// NewStore создаёт Store с заданными TTL сессии и интервалом обновления
// проекции подписки.
func NewStore(c *cache.Cache, tokens token.Maker, ttl, refreshInterval time.Duration) *Store {
	return &Store{
		cache:           c,
		tokens:          tokens,
		ttl:             ttl,
		refreshInterval: refreshInterval,
	}
}

// Issue выпускает новую сессию для пользователя и возвращает bearer-токен.
func (s *Store) Issue(ctx context.Context, user *models.User) (string, error) {
	const op = "session.Issue"

	sessionID := uuid.New().String()
	now := time.Now().UTC()
	record := models.SessionRecord{
		UserUID:     user.UID,
		IssuedAt:    now,
		RefreshedAt: now,
		Status:      user.SubscriptionStatus,
		PeriodEnd:   user.SubscriptionPeriodEnd,
	}

	if err := s.cache.Set(ctx, sessionKeyPrefix+sessionID, record, s.ttl); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Db.SAdd(ctx, userSessionsIndex+user.UID, sessionID).Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Db.Expire(ctx, userSessionsIndex+user.UID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	bearer, err := s.tokens.GenerateToken(user.UID, sessionID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return bearer, nil
}

// Resolve проверяет подпись токена и существование записи сессии.
// Отозванная или истёкшая сессия даёт ErrUnauthenticated.
func (s *Store) Resolve(ctx context.Context, bearer string) (string, *models.SessionRecord, error) {
	const op = "session.Resolve"

	claims, err := s.tokens.ParseToken(bearer)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, apperrors.ErrUnauthenticated)
	}

	var record models.SessionRecord
	found, err := s.cache.Get(ctx, sessionKeyPrefix+claims.SessionID, &record)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found || record.UserUID != claims.UserUID {
		return "", nil, fmt.Errorf("%s: %w", op, apperrors.ErrUnauthenticated)
	}
	return claims.SessionID, &record, nil
}

// RefreshIfStale перечитывает проекцию подписки в записи сессии, если с
// последнего обновления прошло больше настроенного интервала. TTL записи
// при этом не продлевается: абсолютный срок сессии задан при выпуске.
func (s *Store) RefreshIfStale(ctx context.Context, sessionID string, record *models.SessionRecord, user *models.User) error {
	const op = "session.RefreshIfStale"

	if time.Since(record.RefreshedAt) < s.refreshInterval {
		return nil
	}

	remaining, err := s.cache.Db.TTL(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if remaining <= 0 {
		return fmt.Errorf("%s: %w", op, apperrors.ErrUnauthenticated)
	}

	record.RefreshedAt = time.Now().UTC()
	record.Status = user.SubscriptionStatus
	record.PeriodEnd = user.SubscriptionPeriodEnd
	if err := s.cache.Set(ctx, sessionKeyPrefix+sessionID, record, remaining); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Revoke удаляет одну сессию (logout).
func (s *Store) Revoke(ctx context.Context, sessionID, userUID string) error {
	const op = "session.Revoke"

	if err := s.cache.Invalidate(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Db.SRem(ctx, userSessionsIndex+userUID, sessionID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeAllForUser удаляет все сессии пользователя. Вызывается после
// успешного сброса пароля.
func (s *Store) RevokeAllForUser(ctx context.Context, userUID string) error {
	const op = "session.RevokeAllForUser"

	ids, err := s.cache.Db.SMembers(ctx, userSessionsIndex+userUID).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, id := range ids {
		if err := s.cache.Invalidate(ctx, sessionKeyPrefix+id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := s.cache.Db.Del(ctx, userSessionsIndex+userUID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
