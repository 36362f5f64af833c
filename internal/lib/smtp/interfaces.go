// Package smtp реализует STARTTLS-транспорт исходящей почты.
package smtp

import "io"

// Client — минимальный контракт SMTP-сессии, достаточный для отправки
// одного письма. Скрывает *smtp.Client ради подмены в тестах.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}
