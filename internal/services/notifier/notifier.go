// Package notifier периодически находит пользователей с закончившейся
// подпиской и публикует для них почтовые задачи.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/forex-signals/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const scanInterval = 24 * time.Hour

// UserRepository описывает выборку пользователей с истёкшей подпиской.
type UserRepository interface {
	FindSubscriptionsExpiredLastDay(ctx context.Context) ([]*models.User, error)
}

// Service публикует уведомления об окончании подписки.
type Service struct {
	repo UserRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// NotifyExpiredSubscriptions раз в сутки сканирует закончившиеся подписки
// и публикует почтовые задачи. Блокируется до отмены контекста.
func (s *Service) NotifyExpiredSubscriptions(ctx context.Context, channel *amqp.Channel) {
	s.runNotifyExpiredSubscriptions(ctx, channel)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runNotifyExpiredSubscriptions(ctx, channel)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runNotifyExpiredSubscriptions(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting scan for expired subscriptions")
	users, err := s.repo.FindSubscriptionsExpiredLastDay(ctx)
	if err != nil {
		s.log.Error("failed to find expired subscriptions", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no expired subscriptions found")
		return
	}
	s.log.Info("found expired subscriptions", slog.Int("count", len(users)))
	for _, u := range users {
		task := models.MailTask{
			Type:  models.MailSubscriptionExpired,
			Email: u.Email,
			Name:  u.Name,
		}
		if err := rabbitmq.PublishMessage(channel, rabbitmq.Exchange, "outgoing", task); err != nil {
			s.log.Error("failed to publish mail task", sl.Err(err))
		}
	}
}
