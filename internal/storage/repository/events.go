package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// ApplyOutcome описывает результат применения события провайдера.
type ApplyOutcome struct {
	Applied   bool         // Поля подписки были обновлены
	Duplicate bool         // Событие с таким ID уже обработано
	Stale     bool         // Событие старше сохранённого состояния подписки
	User      *models.User // Состояние пользователя после применения (nil, если пользователь не найден)
}

// DecideFunc — правило перехода: по текущему состоянию пользователя и
// событию возвращает полный набор полей подписки на замену. Возврат
// false означает, что событие игнорируется для данного состояния.
type DecideFunc func(current *models.User) (models.SubscriptionUpdate, bool)

// ApplySubscriptionEvent применяет событие платёжного провайдера в одной
// транзакции: регистрирует ID события (идемпотентность), блокирует строку
// пользователя (сериализация по пользователю), отбрасывает устаревшие
// события и замещает поля подписки вычисленным состоянием. При отсутствии
// пользователя и непустом provision заводит нового.
func (s *Storage) ApplySubscriptionEvent(ctx context.Context, ev models.ProviderEvent, provision *models.User, decide DecideFunc) (*ApplyOutcome, error) {
	const op = "storage.ApplySubscriptionEvent"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Идемпотентность: повторное событие фиксируется как дубликат и не
	// приводит к изменению состояния.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_events (event_id, event_type) VALUES ($1, $2)
		 ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		// Дубликат не меняет состояние, но пользователь всё равно
		// находится: повторная верификация checkout-сессии должна
		// вернуть ту же учётную запись, что и первая.
		user, err := s.lockUserForEvent(ctx, tx, ev)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &ApplyOutcome{Duplicate: true, User: user}, nil
	}

	user, err := s.lockUserForEvent(ctx, tx, ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		if provision == nil {
			if err = tx.Commit(); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return &ApplyOutcome{}, nil
		}
		user, err = s.provisionUser(ctx, tx, provision)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE payment_events SET user_uid = $1 WHERE event_id = $2`,
		user.UID, ev.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Событие старше уже применённого состояния подписки отбрасывается,
	// но остаётся в множестве обработанных.
	if user.SubscriptionUpdatedAt != nil && ev.CreatedAt.Before(*user.SubscriptionUpdatedAt) {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &ApplyOutcome{Stale: true, User: user}, nil
	}

	upd, ok := decide(user)
	if !ok {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &ApplyOutcome{User: user}, nil
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET subscription_status = $1,
		     subscription_provider_id = $2,
		     subscription_customer_id = $3,
		     subscription_period_end = $4,
		     canceled_at = $5,
		     subscription_updated_at = $6,
		     updated_at = now()
		 WHERE uid = $7`,
		upd.Status, upd.ProviderID, upd.CustomerID,
		upd.PeriodEnd, upd.CanceledAt,
		upd.EventTime, user.UID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Попутная зачистка множества обработанных событий старше суток.
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM payment_events WHERE created_at < now() - INTERVAL '24 hours'`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user.SubscriptionStatus = upd.Status
	user.SubscriptionProviderID = upd.ProviderID
	user.SubscriptionCustomerID = upd.CustomerID
	user.SubscriptionPeriodEnd = upd.PeriodEnd
	user.CanceledAt = upd.CanceledAt
	user.SubscriptionUpdatedAt = &upd.EventTime
	return &ApplyOutcome{Applied: true, User: user}, nil
}

// lockUserForEvent находит пользователя, к которому относится событие,
// и блокирует его строку до конца транзакции.
func (s *Storage) lockUserForEvent(ctx context.Context, tx *sql.Tx, ev models.ProviderEvent) (*models.User, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"subscription_provider_id", ev.SubscriptionID},
		{"subscription_customer_id", ev.CustomerID},
		{"email", ev.CustomerEmail},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		query := `SELECT ` + userColumns + ` FROM users WHERE ` + l.column + ` = $1 FOR UPDATE`
		u, err := scanUser(tx.QueryRowContext(ctx, query, l.value))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, nil
}

func (s *Storage) provisionUser(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (email, name, password_hash, subscription_status)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + userColumns
	return scanUser(tx.QueryRowContext(ctx, query,
		nullableString(user.Email), user.Name, nullableString(user.PasswordHash), models.SubscriptionNone))
}
