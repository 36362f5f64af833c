// Package forexsignals собирает основное приложение: хранилище, кэш,
// очередь почтовых задач, клиента платёжного провайдера, сервисы и
// HTTP-сервер.
package forexsignals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/forex-signals/internal/cache"
	"github.com/magabrotheeeer/forex-signals/internal/config"
	"github.com/magabrotheeeer/forex-signals/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/forex-signals/internal/lib/token"
	"github.com/magabrotheeeer/forex-signals/internal/migrations"
	"github.com/magabrotheeeer/forex-signals/internal/paymentprovider"
	"github.com/magabrotheeeer/forex-signals/internal/services/auth"
	"github.com/magabrotheeeer/forex-signals/internal/services/notifier"
	"github.com/magabrotheeeer/forex-signals/internal/services/reconciler"
	"github.com/magabrotheeeer/forex-signals/internal/services/signals"
	"github.com/magabrotheeeer/forex-signals/internal/session"
	"github.com/magabrotheeeer/forex-signals/internal/storage/repository"
)

// App — основное приложение forex-signals.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	rabbit   *amqp.Connection
	channel  *amqp.Channel
	notifier *notifier.Service
}

// mailQueue публикует почтовые задачи в обменник mail.
type mailQueue struct {
	ch *amqp.Channel
}

func (q *mailQueue) Publish(message any) error {
	return rabbitmq.PublishMessage(q.ch, rabbitmq.Exchange, "outgoing", message)
}

// New инициализирует приложение и все его зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	channel, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetMailQueues())
	if err != nil {
		rabbitConn.Close()
		return nil, err
	}

	tokens := token.NewMaker(cfg.SessionSecretKey, cfg.SessionTTL)
	sessions := session.NewStore(cacheRedis, tokens, cfg.SessionTTL, cfg.RefreshInterval)
	provider := paymentprovider.NewClient(cfg.ProviderAPIURL, cfg.ProviderSecretKey, cfg.RequestTimeout)

	authService := auth.New(db, cacheRedis, sessions, &mailQueue{ch: channel}, cfg.AppURL, logger)
	reconcilerService := reconciler.New(db, provider, logger)
	signalsService := signals.New(db)
	notifierService := notifier.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, &Services{
		Auth:       authService,
		Reconciler: reconcilerService,
		Signals:    signalsService,
		Sessions:   sessions,
		Provider:   provider,
		Storage:    db,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		rabbit:   rabbitConn,
		channel:  channel,
		notifier: notifierService,
	}, nil
}

// Run запускает HTTP-сервер и планировщик уведомлений, блокируясь до
// отмены контекста или фатальной ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	go a.notifier.NotifyExpiredSubscriptions(ctx, a.channel)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.channel.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.rabbit.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.Any("err", closeErr))
		}
		a.db.DB.Close()
		return err
	}
}
