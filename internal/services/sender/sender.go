// Package sender отправляет почтовые задачи из очереди по SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	libsmtp "github.com/magabrotheeeer/forex-signals/internal/lib/smtp"
	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// Transport описывает SMTP-транспорт отправителя.
type Transport interface {
	Connect() (libsmtp.Client, error)
	Sender() string
}

// Service обрабатывает задачи очереди mail.outgoing.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, transport Transport) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleMailTask разбирает задачу из очереди и отправляет письмо
// соответствующего типа. Неизвестный тип подтверждается без отправки,
// чтобы сообщение не зациклилось в очереди.
func (s *Service) HandleMailTask(body []byte) error {
	var task models.MailTask
	if err := json.Unmarshal(body, &task); err != nil {
		s.log.Error("failed to unmarshal mail task", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	switch task.Type {
	case models.MailPasswordReset:
		return s.sendPasswordReset(task)
	case models.MailSubscriptionExpired:
		return s.sendSubscriptionExpired(task)
	default:
		s.log.Warn("unknown mail task type, dropping", slog.String("type", task.Type))
		return nil
	}
}

func (s *Service) sendPasswordReset(task models.MailTask) error {
	subject := "Восстановление пароля"
	bodyText := fmt.Sprintf(`Здравствуйте, %s!

Вы запросили восстановление пароля. Для установки нового пароля перейдите по ссылке:
%s

Ссылка действительна один час и может быть использована только один раз.
Если вы не запрашивали восстановление, просто проигнорируйте это письмо.`,
		displayName(task), task.ResetLink)

	return s.sendEmail([]string{task.Email}, subject, bodyText)
}

func (s *Service) sendSubscriptionExpired(task models.MailTask) error {
	subject := "Ваша подписка на торговые сигналы закончилась"
	bodyText := fmt.Sprintf(`Здравствуйте, %s!

Срок действия вашей подписки истёк, доступ к торговым сигналам приостановлен.
Чтобы возобновить доступ, оформите подписку заново в личном кабинете.`,
		displayName(task))

	return s.sendEmail([]string{task.Email}, subject, bodyText)
}

func displayName(task models.MailTask) string {
	if task.Name != "" {
		return task.Name
	}
	return task.Email
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.Sender(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.Sender()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.Sender()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
