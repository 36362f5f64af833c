package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/forex-signals/internal/http/response"
)

// perIPLimiters хранит лимитеры по адресу клиента. Записи живут до
// рестарта процесса; для одного инстанса этого достаточно.
type perIPLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newPerIPLimiters(r rate.Limit, burst int) *perIPLimiters {
	return &perIPLimiters{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (p *perIPLimiters) get(addr string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[addr]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.limiters[addr] = l
	}
	return l
}

// clientHost извлекает хост из адреса соединения: эфемерный порт не
// должен давать клиенту свежий лимитер на каждое соединение.
func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// RateLimitMiddleware ограничивает частоту запросов с одного адреса.
// Вешается на маршруты с учётными данными: вход, восстановление пароля,
// выдача nonce для кошелька.
func RateLimitMiddleware(log *slog.Logger, r rate.Limit, burst int) func(http.Handler) http.Handler {
	limiters := newPerIPLimiters(r, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiters.get(clientHost(req.RemoteAddr)).Allow() {
				log.Info("too many requests", slog.String("remote_addr", req.RemoteAddr))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, req, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
