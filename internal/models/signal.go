package models

import "time"

// Направления торгового сигнала.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

// Signal представляет торговый сигнал, рассчитанный внешним пайплайном.
// Для этого сервиса коллекция сигналов доступна только на чтение.
type Signal struct {
	ID         string    // Идентификатор сигнала
	Pair       string    // Валютная пара, например "EURUSD"
	Direction  string    // BUY или SELL
	Timeframe  string    // Таймфрейм, например "H4"
	Entry      float64   // Цена входа
	StopLoss   float64   // Уровень стоп-лосса
	TakeProfit float64   // Уровень тейк-профита
	SLPips     float64   // Стоп-лосс в пунктах
	TPPips     float64   // Тейк-профит в пунктах
	RiskReward float64   // Соотношение риск/прибыль
	Time       time.Time // Момент формирования сигнала
}
