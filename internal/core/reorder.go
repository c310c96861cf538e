package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Forecast is what a Forecaster predicts for one product over a period.
type Forecast struct {
	PredictedDemand     decimal.Decimal `json:"predicted_demand"`
	RecommendedOrderQty decimal.Decimal `json:"recommended_order_qty"`
	Confidence          float64         `json:"confidence"`
	Source              string          `json:"source"`
}

// Forecaster is a demand oracle. Its output only seeds reorder suggestions and is never
// used by the ledger itself.
type Forecaster interface {
	Forecast(ctx context.Context, productID uuid.UUID, periodDays int) (Forecast, error)
}

// ReorderSuggestion combines current stock, inbound purchase qty and a forecast.
type ReorderSuggestion struct {
	ProductID      uuid.UUID       `json:"product_id"`
	PeriodDays     int             `json:"period_days"`
	OnHand         decimal.Decimal `json:"on_hand"`
	Available      decimal.Decimal `json:"available"`
	OnOrder        decimal.Decimal `json:"on_order"`
	Forecast       *Forecast       `json:"forecast,omitempty"`
	RecommendedQty decimal.Decimal `json:"recommended_qty"`
	Error          string          `json:"error,omitempty"`
}

type ReorderService struct {
	store      Querier
	forecaster Forecaster
	s          settings
}

func NewReorderService(store Querier, forecaster Forecaster, opts ...Option) *ReorderService {
	return &ReorderService{store: store, forecaster: forecaster, s: newSettings(opts)}
}

// SuggestReorders builds one suggestion per product. With no product ids it covers every
// product that has stock rows or open purchase lines. A forecaster failure is recorded on
// the suggestion and leaves RecommendedQty at zero.
func (r *ReorderService) SuggestReorders(ctx context.Context, productIDs []uuid.UUID, periodDays int) ([]ReorderSuggestion, error) {
	if periodDays <= 0 {
		return nil, invalid("period_days", "must be positive, got %d", periodDays)
	}
	items, err := r.store.StockItems(ctx, StockFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock snapshot: %w", err)
	}
	pos, err := r.store.ListPurchaseOrders(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	type totals struct{ onHand, available, onOrder decimal.Decimal }
	byProduct := make(map[uuid.UUID]*totals)
	var order []uuid.UUID
	get := func(id uuid.UUID) *totals {
		t, ok := byProduct[id]
		if !ok {
			t = &totals{}
			byProduct[id] = t
			order = append(order, id)
		}
		return t
	}
	for _, it := range items {
		t := get(it.ProductID)
		t.onHand = t.onHand.Add(it.Qty)
		t.available = t.available.Add(it.AvailableQty)
	}
	for _, po := range pos {
		if !po.Status.IsOpen() {
			continue
		}
		for _, l := range po.Lines {
			t := get(l.ProductID)
			t.onOrder = t.onOrder.Add(l.Remaining())
		}
	}
	if len(productIDs) > 0 {
		order = productIDs
	}

	out := make([]ReorderSuggestion, 0, len(order))
	for _, id := range order {
		t := get(id)
		sug := ReorderSuggestion{
			ProductID:      id,
			PeriodDays:     periodDays,
			OnHand:         t.onHand,
			Available:      t.available,
			OnOrder:        t.onOrder,
			RecommendedQty: decimal.Zero,
		}
		if r.forecaster == nil {
			sug.Error = "no forecaster configured"
			out = append(out, sug)
			continue
		}
		fc, err := r.forecaster.Forecast(ctx, id, periodDays)
		if err != nil {
			r.s.log.Warn("forecast failed", zap.String("product_id", id.String()), zap.Error(err))
			sug.Error = err.Error()
			out = append(out, sug)
			continue
		}
		sug.Forecast = &fc
		if rec := fc.RecommendedOrderQty.Sub(t.onOrder); rec.IsPositive() {
			sug.RecommendedQty = rec
		}
		out = append(out, sug)
	}
	return out, nil
}
