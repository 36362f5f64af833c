package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const userColumns = `uid, email, name, password_hash, wallet_address, created_at, updated_at,
	subscription_status, subscription_provider_id, subscription_customer_id,
	subscription_period_end, subscription_updated_at, canceled_at,
	reset_password_token_hash, reset_password_expires`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	u := &models.User{}
	var email, passwordHash, walletAddress sql.NullString
	var periodEnd, subscriptionUpdatedAt, canceledAt, resetExpires sql.NullTime

	if err := row.Scan(&u.UID, &email, &u.Name, &passwordHash, &walletAddress,
		&u.CreatedAt, &u.UpdatedAt,
		&u.SubscriptionStatus, &u.SubscriptionProviderID, &u.SubscriptionCustomerID,
		&periodEnd, &subscriptionUpdatedAt, &canceledAt,
		&u.ResetPasswordTokenHash, &resetExpires); err != nil {
		return nil, err
	}

	if email.Valid {
		u.Email = email.String
	}
	if passwordHash.Valid {
		u.PasswordHash = passwordHash.String
	}
	if walletAddress.Valid {
		u.WalletAddress = walletAddress.String
	}
	if periodEnd.Valid {
		u.SubscriptionPeriodEnd = &periodEnd.Time
	}
	if subscriptionUpdatedAt.Valid {
		u.SubscriptionUpdatedAt = &subscriptionUpdatedAt.Time
	}
	if canceledAt.Valid {
		u.CanceledAt = &canceledAt.Time
	}
	if resetExpires.Valid {
		u.ResetPasswordExpires = &resetExpires.Time
	}
	return u, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperrors.ErrConflict
	}
	return err
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
// Нарушение уникальности email или адреса кошелька возвращается как ErrConflict.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, name, password_hash, wallet_address, subscription_status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		nullableString(user.Email), user.Name, nullableString(user.PasswordHash),
		nullableString(user.WalletAddress), user.SubscriptionStatus).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapUniqueViolation(err))
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по нормализованному email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByWalletAddress возвращает пользователя по адресу кошелька.
func (s *Storage) GetUserByWalletAddress(ctx context.Context, address string) (*models.User, error) {
	const op = "storage.GetUserByWalletAddress"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdatePasswordHash обновляет хэш пароля пользователя. Используется при
// миграции унаследованных паролей в открытом виде на bcrypt.
func (s *Storage) UpdatePasswordHash(ctx context.Context, userUID, hash string) error {
	const op = "storage.UpdatePasswordHash"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $1, updated_at = now()
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, hash, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfile атомарно обновляет имя, email и (опционально) хэш пароля.
// Нарушение уникальности email возвращается как ErrConflict.
func (s *Storage) UpdateProfile(ctx context.Context, userUID, name, email string, passwordHash *string) error {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET name = $1, email = $2,
			      password_hash = COALESCE($3, password_hash),
			      updated_at = now()
			  WHERE uid = $4`
	result, err := s.DB.ExecContext(ctx, query, name, email, passwordHash, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapUniqueViolation(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	return nil
}

// SetResetToken сохраняет хэш токена сброса пароля и срок его действия.
func (s *Storage) SetResetToken(ctx context.Context, userUID, tokenHash string, expires time.Time) error {
	const op = "storage.SetResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET reset_password_token_hash = $1, reset_password_expires = $2
			  WHERE uid = $3`
	if _, err := s.DB.ExecContext(ctx, query, tokenHash, expires, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetPassword записывает новый хэш пароля и очищает поля токена сброса.
func (s *Storage) ResetPassword(ctx context.Context, userUID, newHash string) error {
	const op = "storage.ResetPassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $1,
			      reset_password_token_hash = '',
			      reset_password_expires = NULL,
			      updated_at = now()
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, newHash, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindSubscriptionsExpiredLastDay возвращает пользователей, у которых
// оплаченный период закончился за последние сутки. Используется
// планировщиком уведомлений об окончании подписки.
func (s *Storage) FindSubscriptionsExpiredLastDay(ctx context.Context) ([]*models.User, error) {
	const op = "storage.FindSubscriptionsExpiredLastDay"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE subscription_status IN ($1, $2)
			    AND subscription_period_end >= now() - INTERVAL '24 hours'
			    AND subscription_period_end < now()
			    AND email IS NOT NULL`
	rows, err := s.DB.QueryContext(ctx, query, models.SubscriptionActive, models.SubscriptionCanceled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsers возвращает пользователей для отладочной выдачи в development.
func (s *Storage) ListUsers(ctx context.Context, limit int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
