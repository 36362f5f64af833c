// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек приложения.
type Config struct {
	Env                     string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	AppURL                  string        `yaml:"app_url" env:"APP_URL"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RabbitURL               string        `yaml:"rabbit_url" env:"RABBIT_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Session                 `yaml:"session"`
	PaymentProvider         `yaml:"payment_provider"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Session структура для настройки сессионных токенов.
type Session struct {
	SessionSecretKey string        `yaml:"session_secret_key" env:"SESSION_SECRET_KEY"`
	SessionTTL       time.Duration `yaml:"session_ttl" env-default:"24h"`
	RefreshInterval  time.Duration `yaml:"refresh_interval" env-default:"5m"`
}

// PaymentProvider структура с реквизитами биллинг-провайдера.
type PaymentProvider struct {
	ProviderAPIURL      string        `yaml:"provider_api_url" env:"PROVIDER_API_URL"`
	ProviderSecretKey   string        `yaml:"provider_secret_key" env:"PROVIDER_SECRET_KEY"`
	WebhookSecret       string        `yaml:"webhook_secret" env:"PROVIDER_WEBHOOK_SECRET"`
	PriceID             string        `yaml:"price_id" env:"PROVIDER_PRICE_ID"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env-default:"10s"`
	WebhookReplayWindow time.Duration `yaml:"webhook_replay_window" env-default:"5m"`
}

// SMTP структура для настройки почтового транспорта.
type SMTP struct {
	SMTPHost string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPass string `yaml:"smtp_pass" env:"SMTP_PASS"`
}

// IsDevelopment сообщает, запущено ли приложение в окружении разработки.
// Маршруты отладки регистрируются только в этом режиме.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MustLoad загружает конфиг из файла, указанного в CONFIG_PATH,
// с переопределением значений из переменных окружения.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
