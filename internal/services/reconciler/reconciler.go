// Package reconciler приводит внутреннее состояние подписки пользователя
// к авторитетному состоянию платёжного провайдера.
//
// У реконсилиации две точки входа — событие вебхука и верификация
// checkout-сессии при возврате пользователя — и одно правило обновления:
// поля подписки всегда замещаются целиком из полезной нагрузки провайдера,
// никогда не инкрементируются.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/lib/password"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/models"
	"github.com/magabrotheeeer/forex-signals/internal/paymentprovider"
	"github.com/magabrotheeeer/forex-signals/internal/storage/repository"
)

// SubscriptionRepository описывает контракт транзакционного применения
// событий подписки.
type SubscriptionRepository interface {
	ApplySubscriptionEvent(ctx context.Context, ev models.ProviderEvent, provision *models.User, decide repository.DecideFunc) (*repository.ApplyOutcome, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// ProviderClient описывает используемые операции клиента провайдера.
type ProviderClient interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*paymentprovider.CheckoutSession, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Service применяет события провайдера к хранилищу пользователей.
type Service struct {
	repo     SubscriptionRepository
	provider ProviderClient
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, provider ProviderClient, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		log:      log,
	}
}

// ApplyEvent применяет одно событие провайдера. Дубликаты и устаревшие
// события не меняют состояние и не являются ошибкой.
func (s *Service) ApplyEvent(ctx context.Context, ev models.ProviderEvent) (*repository.ApplyOutcome, error) {
	const op = "reconciler.ApplyEvent"

	provision, err := s.provisionFor(ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	outcome, err := s.repo.ApplySubscriptionEvent(ctx, ev, provision, func(current *models.User) (models.SubscriptionUpdate, bool) {
		return Decide(current, ev)
	})
	if err != nil {
		eventsFailed.WithLabelValues(ev.Type).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case outcome.Duplicate:
		eventsDiscarded.WithLabelValues(ev.Type, "duplicate").Inc()
		s.log.Info("duplicate provider event ignored", slog.String("event_id", ev.ID))
	case outcome.Stale:
		eventsDiscarded.WithLabelValues(ev.Type, "stale").Inc()
		s.log.Info("stale provider event discarded", slog.String("event_id", ev.ID))
	case !outcome.Applied:
		eventsDiscarded.WithLabelValues(ev.Type, "ignored").Inc()
	default:
		eventsApplied.WithLabelValues(ev.Type).Inc()
	}
	return outcome, nil
}

// VerifyCheckoutSession проверяет завершённую checkout-сессию у провайдера
// и применяет её как событие checkout.session.completed. Результат
// идентичен доставке соответствующего вебхука.
func (s *Service) VerifyCheckoutSession(ctx context.Context, sessionID string) (*models.User, error) {
	const op = "reconciler.VerifyCheckoutSession"

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.Status != "complete" {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrValidation)
	}

	ev := models.ProviderEvent{
		ID:               "checkout.session:" + session.ID,
		Type:             models.EventCheckoutSessionCompleted,
		CreatedAt:        time.Unix(session.Created, 0).UTC(),
		SubscriptionID:   session.SubscriptionID,
		CustomerID:       session.CustomerID,
		CustomerEmail:    session.CustomerEmail,
		CurrentPeriodEnd: time.Unix(session.CurrentPeriodEnd, 0).UTC(),
	}

	outcome, err := s.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if outcome.User == nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	return outcome.User, nil
}

// RequestCancellation помечает подписку пользователя на отмену в конце
// периода. Отказ провайдера логируется и не блокирует локальную пометку:
// источником истины остаётся следующий вебхук.
func (s *Service) RequestCancellation(ctx context.Context, userUID string) (*models.User, error) {
	const op = "reconciler.RequestCancellation"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.SubscriptionProviderID == "" || !user.Entitled(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrForbidden)
	}

	if _, err := s.provider.SetCancelAtPeriodEnd(ctx, user.SubscriptionProviderID); err != nil {
		s.log.Error("provider cancel request failed, applying local hint anyway", sl.Err(err))
	}

	now := time.Now().UTC()
	ev := models.ProviderEvent{
		ID:                "local.cancel:" + uuid.New().String(),
		Type:              models.EventSubscriptionUpdated,
		CreatedAt:         now,
		SubscriptionID:    user.SubscriptionProviderID,
		CustomerID:        user.SubscriptionCustomerID,
		CancelAtPeriodEnd: true,
	}
	outcome, err := s.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if outcome.User == nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	return outcome.User, nil
}

// provisionFor готовит запись нового пользователя для событий, способных
// завести учётную запись (первая оплата анонимного покупателя). Пароль
// заполняется случайным хэшем; доступ настраивается через сброс пароля.
func (s *Service) provisionFor(ev models.ProviderEvent) (*models.User, error) {
	if ev.Type != models.EventCheckoutSessionCompleted || ev.CustomerEmail == "" {
		return nil, nil
	}
	placeholder, err := password.GetHash(uuid.New().String())
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:              ev.CustomerEmail,
		PasswordHash:       placeholder,
		SubscriptionStatus: models.SubscriptionNone,
	}, nil
}

// Decide — таблица переходов состояния подписки. По текущему состоянию
// пользователя и событию возвращает полный набор полей на замену; false
// означает, что событие игнорируется для данного состояния.
func Decide(current *models.User, ev models.ProviderEvent) (models.SubscriptionUpdate, bool) {
	upd := models.SubscriptionUpdate{
		ProviderID: coalesce(ev.SubscriptionID, current.SubscriptionProviderID),
		CustomerID: coalesce(ev.CustomerID, current.SubscriptionCustomerID),
		EventTime:  ev.CreatedAt,
	}

	switch ev.Type {
	case models.EventCheckoutSessionCompleted, models.EventSubscriptionCreated:
		upd.Status = models.SubscriptionActive
		upd.PeriodEnd = periodEnd(ev, current)
		return upd, true

	case models.EventSubscriptionUpdated:
		if ev.CancelAtPeriodEnd {
			// Отмена без действующей подписки не имеет смысла.
			if current.SubscriptionStatus == models.SubscriptionNone ||
				current.SubscriptionStatus == models.SubscriptionIncomplete {
				return models.SubscriptionUpdate{}, false
			}
			upd.Status = models.SubscriptionCanceled
			upd.PeriodEnd = periodEnd(ev, current)
			canceledAt := ev.CreatedAt
			if current.CanceledAt != nil {
				canceledAt = *current.CanceledAt
			}
			upd.CanceledAt = &canceledAt
			return upd, true
		}
		upd.Status = mapProviderStatus(ev.Status)
		upd.PeriodEnd = periodEnd(ev, current)
		return upd, true

	case models.EventSubscriptionDeleted:
		upd.Status = models.SubscriptionNone
		upd.ProviderID = ""
		upd.PeriodEnd = nil
		upd.CanceledAt = nil
		return upd, true

	case models.EventInvoicePaymentFailed:
		upd.Status = models.SubscriptionPastDue
		upd.PeriodEnd = current.SubscriptionPeriodEnd
		return upd, true
	}

	return models.SubscriptionUpdate{}, false
}

// mapProviderStatus переводит статус провайдера во внутренний словарь.
func mapProviderStatus(status string) string {
	switch status {
	case "", "active":
		return models.SubscriptionActive
	case "trialing":
		return models.SubscriptionTrialing
	case "past_due":
		return models.SubscriptionPastDue
	case "canceled":
		return models.SubscriptionCanceled
	case "incomplete", "incomplete_expired":
		return models.SubscriptionIncomplete
	default:
		return models.SubscriptionNone
	}
}

// periodEnd берёт конец периода из события, а при его отсутствии
// сохраняет текущее значение (отмена не сдвигает оплаченный период).
func periodEnd(ev models.ProviderEvent, current *models.User) *time.Time {
	if !ev.CurrentPeriodEnd.IsZero() {
		t := ev.CurrentPeriodEnd
		return &t
	}
	return current.SubscriptionPeriodEnd
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
