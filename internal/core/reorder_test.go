package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
)

type stubForecaster struct {
	fc  core.Forecast
	err error
}

func (s stubForecaster) Forecast(context.Context, uuid.UUID, int) (core.Forecast, error) {
	return s.fc, s.err
}

func TestReorder_SubtractsOpenPurchaseQty(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "10", "1")
	po := f.confirmedPO(t, core.PurchaseOrderLineInput{ProductID: f.product, QtyOrdered: d("30"), UnitCost: d("1")})
	_, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: po.Lines[0].ID, Qty: d("10")}})
	require.NoError(t, err)

	svc := core.NewReorderService(f.store, stubForecaster{fc: core.Forecast{
		PredictedDemand: d("80"), RecommendedOrderQty: d("50"), Confidence: 0.7, Source: "stub",
	}})
	sugs, err := svc.SuggestReorders(f.ctx, nil, 30)
	require.NoError(t, err)
	require.Len(t, sugs, 1)

	s := sugs[0]
	assert.Equal(t, f.product, s.ProductID)
	requireDecimal(t, "20", s.OnHand)
	requireDecimal(t, "20", s.Available)
	requireDecimal(t, "20", s.OnOrder)
	require.NotNil(t, s.Forecast)
	requireDecimal(t, "30", s.RecommendedQty)
	assert.Empty(t, s.Error)
}

func TestReorder_NeverNegative(t *testing.T) {
	f := newFixture(t)
	f.confirmedPO(t, core.PurchaseOrderLineInput{ProductID: f.product, QtyOrdered: d("100"), UnitCost: d("1")})

	svc := core.NewReorderService(f.store, stubForecaster{fc: core.Forecast{RecommendedOrderQty: d("40")}})
	sugs, err := svc.SuggestReorders(f.ctx, []uuid.UUID{f.product}, 7)
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	requireDecimal(t, "0", sugs[0].RecommendedQty)
}

func TestReorder_ForecastFailureIsPerProduct(t *testing.T) {
	f := newFixture(t)
	unknown := uuid.New()

	svc := core.NewReorderService(f.store, stubForecaster{err: errors.New("model unavailable")})
	sugs, err := svc.SuggestReorders(f.ctx, []uuid.UUID{unknown}, 14)
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	assert.Equal(t, "model unavailable", sugs[0].Error)
	assert.Nil(t, sugs[0].Forecast)
	requireDecimal(t, "0", sugs[0].RecommendedQty)

	none := core.NewReorderService(f.store, nil)
	sugs, err = none.SuggestReorders(f.ctx, []uuid.UUID{unknown}, 14)
	require.NoError(t, err)
	assert.NotEmpty(t, sugs[0].Error)

	_, err = svc.SuggestReorders(f.ctx, nil, 0)
	require.ErrorIs(t, err, core.ErrValidation)
}
