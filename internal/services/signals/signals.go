// Package signals отдаёт ленту торговых сигналов подписчикам.
package signals

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/magabrotheeeer/forex-signals/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// SignalRepository описывает выборку сигналов из хранилища.
type SignalRepository interface {
	ListRecentSignals(ctx context.Context, limit int) ([]*models.Signal, error)
}

// Service выполняет бизнес-логику выдачи сигналов.
type Service struct {
	repo SignalRepository
}

// New создает новый экземпляр Service.
func New(repo SignalRepository) *Service {
	return &Service{repo: repo}
}

// View — представление сигнала для выдачи наружу: цены и пипсы
// сериализуются строками с фиксированной точностью, чтобы клиент
// не зависел от плавающего формата чисел.
type View struct {
	ID         string `json:"id"`
	Pair       string `json:"pair"`
	Direction  string `json:"direction"`
	Timeframe  string `json:"timeframe"`
	Entry      string `json:"entry"`
	StopLoss   string `json:"stop_loss"`
	TakeProfit string `json:"take_profit"`
	SLPips     string `json:"sl_pips"`
	TPPips     string `json:"tp_pips"`
	RiskReward string `json:"risk_reward"`
	Time       string `json:"time"`
}

// ListRecent возвращает последние сигналы, от новых к старым.
// Нулевой limit заменяется значением по умолчанию, верхняя граница — 100.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]View, error) {
	const op = "signals.ListRecent"

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	items, err := s.repo.ListRecentSignals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]View, 0, len(items))
	for _, sig := range items {
		views = append(views, NewView(sig))
	}
	return views, nil
}

// NewView строит представление одного сигнала.
func NewView(sig *models.Signal) View {
	return View{
		ID:         sig.ID,
		Pair:       sig.Pair,
		Direction:  sig.Direction,
		Timeframe:  sig.Timeframe,
		Entry:      formatPrice(sig.Entry),
		StopLoss:   formatPrice(sig.StopLoss),
		TakeProfit: formatPrice(sig.TakeProfit),
		SLPips:     formatPips(sig.SLPips),
		TPPips:     formatPips(sig.TPPips),
		RiskReward: strconv.FormatFloat(sig.RiskReward, 'f', 2, 64),
		Time:       sig.Time.UTC().Format(time.RFC3339),
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

func formatPips(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
