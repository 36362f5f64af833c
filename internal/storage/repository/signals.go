package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/forex-signals/internal/models"
)

// ListRecentSignals возвращает последние сигналы, отсортированные по времени
// по убыванию. Коллекция наполняется внешним пайплайном, здесь только чтение.
func (s *Storage) ListRecentSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	const op = "storage.ListRecentSignals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, pair, direction, timeframe, entry, stop_loss, take_profit,
			      sl_pips, tp_pips, risk_reward, time
			  FROM signals
			  ORDER BY time DESC
			  LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Signal
	for rows.Next() {
		var item models.Signal
		if err := rows.Scan(&item.ID, &item.Pair, &item.Direction, &item.Timeframe,
			&item.Entry, &item.StopLoss, &item.TakeProfit,
			&item.SLPips, &item.TPPips, &item.RiskReward, &item.Time); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
