package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/lib/password"
	"github.com/magabrotheeeer/forex-signals/internal/lib/wallet"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

type UsersMock struct{ mock.Mock }

func (m *UsersMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) GetUserByWalletAddress(ctx context.Context, address string) (*models.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) UpdatePasswordHash(ctx context.Context, userUID, hash string) error {
	return m.Called(ctx, userUID, hash).Error(0)
}

func (m *UsersMock) UpdateProfile(ctx context.Context, userUID, name, email string, passwordHash *string) error {
	return m.Called(ctx, userUID, name, email, passwordHash).Error(0)
}

func (m *UsersMock) SetResetToken(ctx context.Context, userUID, tokenHash string, expires time.Time) error {
	return m.Called(ctx, userUID, tokenHash, expires).Error(0)
}

func (m *UsersMock) ResetPassword(ctx context.Context, userUID, newHash string) error {
	return m.Called(ctx, userUID, newHash).Error(0)
}

type ChallengesMock struct{ mock.Mock }

func (m *ChallengesMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *ChallengesMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *ChallengesMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type SessionsMock struct{ mock.Mock }

func (m *SessionsMock) RevokeAllForUser(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

type MailMock struct{ mock.Mock }

func (m *MailMock) Publish(message any) error {
	return m.Called(message).Error(0)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(users *UsersMock, challenges *ChallengesMock, sessions *SessionsMock, mail *MailMock) *Service {
	return New(users, challenges, sessions, mail, "https://signals.example.com", NewNoopLogger())
}

func TestLogin(t *testing.T) {
	hash, err := password.GetHash("correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name       string
		email      string
		rawPass    string
		setupMocks func(users *UsersMock)
		wantErr    error
	}{
		{
			name:    "success with bcrypt hash",
			email:   "User@Example.com",
			rawPass: "correct-horse",
			setupMocks: func(users *UsersMock) {
				users.On("GetUserByEmail", mock.Anything, "user@example.com").
					Return(&models.User{UID: "u1", PasswordHash: hash}, nil).Once()
			},
		},
		{
			name:    "wrong password",
			email:   "user@example.com",
			rawPass: "wrong",
			setupMocks: func(users *UsersMock) {
				users.On("GetUserByEmail", mock.Anything, "user@example.com").
					Return(&models.User{UID: "u1", PasswordHash: hash}, nil).Once()
			},
			wantErr: apperrors.ErrInvalidCredentials,
		},
		{
			name:    "unknown email maps to invalid credentials",
			email:   "ghost@example.com",
			rawPass: "whatever",
			setupMocks: func(users *UsersMock) {
				users.On("GetUserByEmail", mock.Anything, "ghost@example.com").
					Return(nil, apperrors.ErrNotFound).Once()
			},
			wantErr: apperrors.ErrInvalidCredentials,
		},
		{
			name:    "wallet-only account rejects password login",
			email:   "wallet@example.com",
			rawPass: "whatever",
			setupMocks: func(users *UsersMock) {
				users.On("GetUserByEmail", mock.Anything, "wallet@example.com").
					Return(&models.User{UID: "u2", WalletAddress: "abc"}, nil).Once()
			},
			wantErr: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			tt.setupMocks(users)

			svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
			user, err := svc.Login(context.Background(), tt.email, tt.rawPass)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "u1", user.UID)
			}
			users.AssertExpectations(t)
		})
	}
}

func TestLogin_LegacyPlaintextUpgradedOnSuccess(t *testing.T) {
	users := new(UsersMock)
	users.On("GetUserByEmail", mock.Anything, "legacy@example.com").
		Return(&models.User{UID: "u1", PasswordHash: "plain-secret"}, nil).Once()
	users.On("UpdatePasswordHash", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
		return password.IsAdaptiveHash(h) && password.CompareHash(h, "plain-secret") == nil
	})).Return(nil).Once()

	svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
	user, err := svc.Login(context.Background(), "legacy@example.com", "plain-secret")
	require.NoError(t, err)
	assert.True(t, password.IsAdaptiveHash(user.PasswordHash))
	users.AssertExpectations(t)
}

func TestLogin_LegacyPlaintextWrongPassword(t *testing.T) {
	users := new(UsersMock)
	users.On("GetUserByEmail", mock.Anything, "legacy@example.com").
		Return(&models.User{UID: "u1", PasswordHash: "plain-secret"}, nil).Once()

	svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
	_, err := svc.Login(context.Background(), "legacy@example.com", "not-it")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	users.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPassword(t *testing.T) {
	t.Run("known email stores hash and publishes task off the request path", func(t *testing.T) {
		var storedHash string
		proceed := make(chan struct{})
		published := make(chan models.MailTask, 1)

		users := new(UsersMock)
		users.On("GetUserByEmail", mock.Anything, "user@example.com").
			Return(&models.User{UID: "u1", Name: "Ivan", Email: "user@example.com"}, nil).Once()
		users.On("SetResetToken", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
			storedHash = h
			return len(h) == 64
		}), mock.Anything).Run(func(mock.Arguments) {
			<-proceed
		}).Return(nil).Once()

		mail := new(MailMock)
		mail.On("Publish", mock.Anything).Run(func(args mock.Arguments) {
			published <- args.Get(0).(models.MailTask)
		}).Return(nil).Once()

		svc := newService(users, new(ChallengesMock), new(SessionsMock), mail)

		// Запись токена заблокирована, но вызов уже вернулся: побочные
		// эффекты для существующего адреса не лежат на пути запроса,
		// и время ответа совпадает с веткой неизвестного адреса.
		require.NoError(t, svc.ForgotPassword(context.Background(), "User@example.com"))
		close(proceed)

		var task models.MailTask
		select {
		case task = <-published:
		case <-time.After(2 * time.Second):
			t.Fatal("mail task was not published")
		}

		assert.Equal(t, models.MailPasswordReset, task.Type)
		assert.Equal(t, "user@example.com", task.Email)
		// В письме уходит исходный токен, в базе — его SHA-256.
		var token string
		_, err := fmt.Sscanf(task.ResetLink, "https://signals.example.com/reset-password?token=%64s", &token)
		require.NoError(t, err)
		sum := sha256.Sum256([]byte(token))
		assert.Equal(t, storedHash, hex.EncodeToString(sum[:]))

		users.AssertExpectations(t)
		mail.AssertExpectations(t)
	})

	t.Run("unknown email succeeds without side effects", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUserByEmail", mock.Anything, "ghost@example.com").
			Return(nil, apperrors.ErrNotFound).Once()

		mail := new(MailMock)
		svc := newService(users, new(ChallengesMock), new(SessionsMock), mail)
		require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
		mail.AssertNotCalled(t, "Publish", mock.Anything)
		users.AssertNotCalled(t, "SetResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResetPassword(t *testing.T) {
	token := "aabbccdd"
	sum := sha256.Sum256([]byte(token))
	tokenHash := hex.EncodeToString(sum[:])
	future := time.Now().UTC().Add(30 * time.Minute)
	past := time.Now().UTC().Add(-time.Minute)

	tests := []struct {
		name       string
		token      string
		user       *models.User
		wantErr    error
		wantCommit bool
	}{
		{
			name:  "success",
			token: token,
			user: &models.User{
				UID:                    "u1",
				ResetPasswordTokenHash: tokenHash,
				ResetPasswordExpires:   &future,
			},
			wantCommit: true,
		},
		{
			name:  "wrong token",
			token: "00000000",
			user: &models.User{
				UID:                    "u1",
				ResetPasswordTokenHash: tokenHash,
				ResetPasswordExpires:   &future,
			},
			wantErr: apperrors.ErrInvalidToken,
		},
		{
			name:  "expired token",
			token: token,
			user: &models.User{
				UID:                    "u1",
				ResetPasswordTokenHash: tokenHash,
				ResetPasswordExpires:   &past,
			},
			wantErr: apperrors.ErrExpiredToken,
		},
		{
			name:    "no outstanding token",
			token:   token,
			user:    &models.User{UID: "u1"},
			wantErr: apperrors.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			users.On("GetUserByEmail", mock.Anything, "user@example.com").
				Return(tt.user, nil).Once()
			sessions := new(SessionsMock)
			if tt.wantCommit {
				users.On("ResetPassword", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
					return password.CompareHash(h, "new-password") == nil
				})).Return(nil).Once()
				sessions.On("RevokeAllForUser", mock.Anything, "u1").Return(nil).Once()
			}

			svc := newService(users, new(ChallengesMock), sessions, new(MailMock))
			err := svc.ResetPassword(context.Background(), "user@example.com", tt.token, "new-password")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			users.AssertExpectations(t)
			sessions.AssertExpectations(t)
		})
	}
}

func TestWalletVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	address := hex.EncodeToString(pub)
	nonce := "deadbeef"
	signature := hex.EncodeToString(ed25519.Sign(priv, []byte(wallet.ChallengeMessage(nonce))))

	t.Run("existing user logs in", func(t *testing.T) {
		challenges := new(ChallengesMock)
		challenges.On("Get", mock.Anything, "wallet_challenge:"+address, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = nonce
			}).Return(true, nil).Once()
		challenges.On("Invalidate", mock.Anything, "wallet_challenge:"+address).Return(nil).Once()

		users := new(UsersMock)
		users.On("GetUserByWalletAddress", mock.Anything, address).
			Return(&models.User{UID: "u1", WalletAddress: address}, nil).Once()

		svc := newService(users, challenges, new(SessionsMock), new(MailMock))
		user, err := svc.WalletVerify(context.Background(), address, hex.EncodeToString(pub), signature)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UID)
		challenges.AssertExpectations(t)
	})

	t.Run("first wallet login provisions user", func(t *testing.T) {
		challenges := new(ChallengesMock)
		challenges.On("Get", mock.Anything, "wallet_challenge:"+address, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = nonce
			}).Return(true, nil).Once()
		challenges.On("Invalidate", mock.Anything, "wallet_challenge:"+address).Return(nil).Once()

		users := new(UsersMock)
		users.On("GetUserByWalletAddress", mock.Anything, address).
			Return(nil, apperrors.ErrNotFound).Once()
		users.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.WalletAddress == address && u.PasswordHash == ""
		})).Return("u2", nil).Once()
		users.On("GetUser", mock.Anything, "u2").
			Return(&models.User{UID: "u2", WalletAddress: address}, nil).Once()

		svc := newService(users, challenges, new(SessionsMock), new(MailMock))
		user, err := svc.WalletVerify(context.Background(), address, hex.EncodeToString(pub), signature)
		require.NoError(t, err)
		assert.Equal(t, "u2", user.UID)
		users.AssertExpectations(t)
	})

	t.Run("missing nonce is expired challenge", func(t *testing.T) {
		challenges := new(ChallengesMock)
		challenges.On("Get", mock.Anything, "wallet_challenge:"+address, mock.Anything).
			Return(false, nil).Once()

		svc := newService(new(UsersMock), challenges, new(SessionsMock), new(MailMock))
		_, err := svc.WalletVerify(context.Background(), address, hex.EncodeToString(pub), signature)
		assert.ErrorIs(t, err, apperrors.ErrExpiredChallenge)
	})

	t.Run("bad signature consumes nonce", func(t *testing.T) {
		challenges := new(ChallengesMock)
		challenges.On("Get", mock.Anything, "wallet_challenge:"+address, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = nonce
			}).Return(true, nil).Once()
		challenges.On("Invalidate", mock.Anything, "wallet_challenge:"+address).Return(nil).Once()

		badSig := hex.EncodeToString(ed25519.Sign(priv, []byte("другое сообщение")))
		svc := newService(new(UsersMock), challenges, new(SessionsMock), new(MailMock))
		_, err := svc.WalletVerify(context.Background(), address, hex.EncodeToString(pub), badSig)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		challenges.AssertExpectations(t)
	})
}

func TestUpdateProfile(t *testing.T) {
	hash, err := password.GetHash("current-pass")
	require.NoError(t, err)

	t.Run("password change requires correct current password", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "u1").
			Return(&models.User{UID: "u1", PasswordHash: hash}, nil).Once()

		svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
		_, err := svc.UpdateProfile(context.Background(), "u1", ProfileUpdate{
			Name:            "Ivan",
			Email:           "new@example.com",
			CurrentPassword: "wrong",
			NewPassword:     "brand-new",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success with password change", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "u1").
			Return(&models.User{UID: "u1", PasswordHash: hash}, nil).Once()
		users.On("UpdateProfile", mock.Anything, "u1", "Ivan", "new@example.com", mock.MatchedBy(func(h *string) bool {
			return h != nil && password.CompareHash(*h, "brand-new") == nil
		})).Return(nil).Once()
		users.On("GetUser", mock.Anything, "u1").
			Return(&models.User{UID: "u1", Name: "Ivan", Email: "new@example.com"}, nil).Once()

		svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
		updated, err := svc.UpdateProfile(context.Background(), "u1", ProfileUpdate{
			Name:            "Ivan",
			Email:           "New@Example.com",
			CurrentPassword: "current-pass",
			NewPassword:     "brand-new",
		})
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", updated.Email)
		users.AssertExpectations(t)
	})

	t.Run("profile-only update skips password verification", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "u1").
			Return(&models.User{UID: "u1", PasswordHash: hash}, nil).Once()
		users.On("UpdateProfile", mock.Anything, "u1", "Ivan", "user@example.com", (*string)(nil)).
			Return(nil).Once()
		users.On("GetUser", mock.Anything, "u1").
			Return(&models.User{UID: "u1", Name: "Ivan", Email: "user@example.com"}, nil).Once()

		svc := newService(users, new(ChallengesMock), new(SessionsMock), new(MailMock))
		_, err := svc.UpdateProfile(context.Background(), "u1", ProfileUpdate{
			Name:  "Ivan",
			Email: "user@example.com",
		})
		require.NoError(t, err)
		users.AssertExpectations(t)
	})
}
