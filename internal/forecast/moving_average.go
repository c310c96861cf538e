// Package forecast predicts product demand from the sale history in the movement log.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
)

const (
	DefaultWindow = 90 * 24 * time.Hour
	pageSize      = 1000
	source        = "moving_average"
)

// MovingAverage projects the average daily sale quantity over a trailing window onto
// the requested period. It needs nothing but read access to the ledger.
type MovingAverage struct {
	store  core.Querier
	window time.Duration
	now    func() time.Time
}

func NewMovingAverage(store core.Querier, window time.Duration) *MovingAverage {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MovingAverage{store: store, window: window, now: func() time.Time { return time.Now().UTC() }}
}

var _ core.Forecaster = (*MovingAverage)(nil)

func (f *MovingAverage) Forecast(ctx context.Context, productID uuid.UUID, periodDays int) (core.Forecast, error) {
	if periodDays <= 0 {
		return core.Forecast{}, fmt.Errorf("period_days must be positive, got %d", periodDays)
	}
	now := f.now()
	since := now.Add(-f.window)

	sold := decimal.Zero
	saleDays := make(map[string]bool)
	filter := core.MoveFilter{ProductID: productID, Limit: pageSize}
	for {
		page, err := f.store.Moves(ctx, filter)
		if err != nil {
			return core.Forecast{}, fmt.Errorf("failed to read movement log: %w", err)
		}
		for _, m := range page {
			if m.Reason != core.ReasonSale || m.CreatedAt.Before(since) || m.CreatedAt.After(now) {
				continue
			}
			sold = sold.Add(m.Qty)
			saleDays[m.CreatedAt.Format(time.DateOnly)] = true
		}
		if len(page) < pageSize {
			break
		}
		filter.AfterSeq = page[len(page)-1].Seq
	}

	items, err := f.store.StockItems(ctx, core.StockFilter{ProductID: &productID})
	if err != nil {
		return core.Forecast{}, fmt.Errorf("failed to read stock: %w", err)
	}
	available := decimal.Zero
	for _, it := range items {
		available = available.Add(it.AvailableQty)
	}

	windowDays := decimal.NewFromFloat(f.window.Hours() / 24)
	predicted := sold.Div(windowDays).Mul(decimal.NewFromInt(int64(periodDays))).Round(2)
	recommended := predicted.Sub(available)
	if recommended.IsNegative() {
		recommended = decimal.Zero
	}

	return core.Forecast{
		PredictedDemand:     predicted,
		RecommendedOrderQty: recommended,
		Confidence:          confidence(len(saleDays), windowDays),
		Source:              source,
	}, nil
}

// confidence is the share of days in the window that had at least one sale.
func confidence(days int, windowDays decimal.Decimal) float64 {
	if days == 0 || !windowDays.IsPositive() {
		return 0
	}
	c, _ := decimal.NewFromInt(int64(days)).Div(windowDays).Round(2).Float64()
	if c > 1 {
		return 1
	}
	return c
}
