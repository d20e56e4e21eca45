package positions

import (
	"context"
	"fmt"
	"log/slog"

	"TradingPlatform/internal/domain/models"

	"github.com/shopspring/decimal"
)

type EventSource interface {
	ListFillEvents(ctx context.Context, userId string) ([]models.OrderEvent, error)
}

// Aggregator computes net positions as a pure fold over the event log.
// Nothing is materialized: every query replays the user's fill events.
type Aggregator struct {
	log    *slog.Logger
	events EventSource
}

func New(log *slog.Logger, events EventSource) *Aggregator {
	return &Aggregator{
		log:    log,
		events: events,
	}
}

func (a *Aggregator) Positions(ctx context.Context, userId string) ([]models.Position, error) {
	const op = "positions.Positions"

	events, err := a.events.ListFillEvents(ctx, userId)
	if err != nil {
		a.log.Error("failed to list fill events", "user_id", userId, "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return Fold(events), nil
}

// Fold aggregates fill events into positions keyed by (symbol, side) using
// weighted-average cost. BUY adds quantity and cost; SELL removes quantity
// and proportional cost; a position whose quantity drops to zero or below
// disappears. SELL events with no open position are ignored. The fold is
// idempotent over the same input.
func Fold(events []models.OrderEvent) []models.Position {
	type key struct {
		symbol string
		side   models.OrderSide
	}

	byKey := make(map[key]*models.Position)
	var order []key

	for _, ev := range events {
		if ev.Status != models.Filled && ev.Status != models.PartiallyFilled {
			continue
		}

		k := key{symbol: ev.Symbol, side: ev.Side}
		pos, ok := byKey[k]
		if !ok {
			// Only BUY opens a position; a SELL with nothing open is dropped.
			if ev.Side == models.Buy {
				byKey[k] = &models.Position{
					Symbol:     ev.Symbol,
					Side:       ev.Side,
					Quantity:   ev.Quantity,
					EntryPrice: ev.Price,
					TotalCost:  ev.Quantity.Mul(ev.Price),
				}
				order = append(order, k)
			}
			continue
		}

		if ev.Side == models.Buy {
			pos.Quantity = pos.Quantity.Add(ev.Quantity)
			pos.TotalCost = pos.TotalCost.Add(ev.Quantity.Mul(ev.Price))
			pos.EntryPrice = pos.TotalCost.Div(pos.Quantity)
			continue
		}

		pos.Quantity = pos.Quantity.Sub(ev.Quantity)
		if pos.Quantity.LessThanOrEqual(decimal.Zero) {
			delete(byKey, k)
			continue
		}
		pos.TotalCost = pos.TotalCost.Sub(ev.Quantity.Mul(ev.Price))
		pos.EntryPrice = pos.TotalCost.Div(pos.Quantity)
	}

	result := make([]models.Position, 0, len(byKey))
	for _, k := range order {
		if pos, ok := byKey[k]; ok {
			result = append(result, *pos)
		}
	}
	return result
}
