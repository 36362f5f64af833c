// Package mailsender собирает процесс отправки писем: потребитель
// очереди почтовых задач поверх SMTP-транспорта.
package mailsender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/forex-signals/internal/config"
	"github.com/magabrotheeeer/forex-signals/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/forex-signals/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/forex-signals/internal/services/sender"
)

// App — процесс mail-sender.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *senderservice.Service
	logger *slog.Logger
}

// New инициализирует подключение к очереди и SMTP-транспорт.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMailQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.New(logger, transport)

	return &App{
		conn:   conn,
		ch:     ch,
		sender: senderService,
		logger: logger,
	}, nil
}

// Run запускает потребителя очереди и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, "mail.outgoing", a.sender.HandleMailTask); err != nil {
		a.logger.Error("failed to start mail.outgoing consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("mail-sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
