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

func TestLedger_AdjustInboundAndOutbound(t *testing.T) {
	f := newFixture(t)

	f.stockIn(t, f.locA, "10", "5")
	it := f.item(t, f.locA)
	requireDecimal(t, "10", it.Qty)
	requireDecimal(t, "10", it.AvailableQty)
	requireDecimal(t, "5", it.CostPerUnit)
	assert.Equal(t, int64(1), it.Version)

	move, err := f.ledger.Adjust(f.ctx, core.AdjustmentInput{
		ProductID: f.product, LocationID: f.locA, Delta: d("-3"), Reason: core.ReasonDamage, Note: "dropped",
	})
	require.NoError(t, err)
	require.NotNil(t, move.FromLocationID)
	assert.Nil(t, move.ToLocationID)
	assert.Equal(t, core.ReasonDamage, move.Reason)
	requireDecimal(t, "3", move.Qty)
	requireDecimal(t, "5", move.UnitCost)

	it = f.item(t, f.locA)
	requireDecimal(t, "7", it.Qty)
	requireDecimal(t, "5", it.CostPerUnit, "consumption keeps the unit cost")
}

func TestLedger_MovingAverageCost(t *testing.T) {
	f := newFixture(t)

	f.stockIn(t, f.locA, "10", "5")
	f.stockIn(t, f.locA, "30", "9")
	requireDecimal(t, "8", f.item(t, f.locA).CostPerUnit)

	f.stockIn(t, f.locA, "3", "1")
	// (40*8 + 3*1) / 43 rounded to six places
	requireDecimal(t, "7.511628", f.item(t, f.locA).CostPerUnit)
}

func TestLedger_OutboundBeyondAvailableChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "4", "2")

	_, err := f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locA, Delta: d("-5")})
	require.ErrorIs(t, err, core.ErrInsufficientStock)

	var se *core.StockError
	require.True(t, errors.As(err, &se))
	requireDecimal(t, "5", se.Requested)
	requireDecimal(t, "4", se.Available)

	requireDecimal(t, "4", f.item(t, f.locA).Qty)
	assert.Len(t, f.moves(t), 1)
}

func TestLedger_ApplyMoveValidation(t *testing.T) {
	f := newFixture(t)
	loc := f.locA

	tests := []struct {
		name string
		in   core.StockMoveInput
	}{
		{"missing product", core.StockMoveInput{ToLocationID: &loc, Qty: d("1"), Reason: core.ReasonAdjustment}},
		{"zero qty", core.StockMoveInput{ProductID: f.product, ToLocationID: &loc, Qty: d("0"), Reason: core.ReasonAdjustment}},
		{"negative cost", core.StockMoveInput{ProductID: f.product, ToLocationID: &loc, Qty: d("1"), UnitCost: d("-1"), Reason: core.ReasonAdjustment}},
		{"no locations", core.StockMoveInput{ProductID: f.product, Qty: d("1"), Reason: core.ReasonAdjustment}},
		{"same source and destination", core.StockMoveInput{ProductID: f.product, FromLocationID: &loc, ToLocationID: &loc, Qty: d("1"), Reason: core.ReasonTransfer}},
		{"unknown reason", core.StockMoveInput{ProductID: f.product, ToLocationID: &loc, Qty: d("1"), Reason: "gift"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ApplyMove(f.ctx, tt.in)
			require.ErrorIs(t, err, core.ErrValidation)
		})
	}

	_, err := f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locA, Delta: d("0")})
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locA, Delta: d("1"), Reason: core.ReasonSale})
	require.ErrorIs(t, err, core.ErrValidation)

	assert.Empty(t, f.moves(t))
}

func TestLedger_UnknownLocationIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: uuid.New(), Delta: d("1")})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedger_InactiveWarehouseRejectsMoves(t *testing.T) {
	f := newFixture(t)
	other, err := f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "OVERFLOW", Name: "Overflow"})
	require.NoError(t, err)
	loc, err := f.dir.CreateLocation(f.ctx, other.ID, core.LocationInput{Code: "X-01"})
	require.NoError(t, err)

	_, err = f.dir.DeactivateWarehouse(f.ctx, other.ID)
	require.NoError(t, err)

	_, err = f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: loc.ID, Delta: d("1")})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestLedger_TransferCarriesSourceCost(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "10", "4")
	f.stockIn(t, f.locB, "2", "10")

	move, err := f.ledger.Transfer(f.ctx, f.product, f.locA, f.locB, "", d("4"), "rebalance")
	require.NoError(t, err)
	assert.Equal(t, core.ReasonTransfer, move.Reason)
	requireDecimal(t, "4", move.UnitCost)

	requireDecimal(t, "6", f.item(t, f.locA).Qty)
	b := f.item(t, f.locB)
	requireDecimal(t, "6", b.Qty)
	// (2*10 + 4*4) / 6
	requireDecimal(t, "6", b.CostPerUnit)

	_, err = f.ledger.Transfer(f.ctx, f.product, f.locA, f.locB, "", d("7"), "")
	require.ErrorIs(t, err, core.ErrInsufficientStock)
}

func TestLedger_Recount(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "10", "3")
	key := core.StockKey{ProductID: f.product, LocationID: f.locA}

	move, err := f.ledger.Recount(f.ctx, key, d("7"), "cycle count")
	require.NoError(t, err)
	require.NotNil(t, move)
	assert.Equal(t, core.ReasonRecount, move.Reason)
	requireDecimal(t, "3", move.Qty)
	require.NotNil(t, move.FromLocationID)
	requireDecimal(t, "7", f.item(t, f.locA).Qty)

	move, err = f.ledger.Recount(f.ctx, key, d("7"), "")
	require.NoError(t, err)
	assert.Nil(t, move, "matching count records nothing")

	move, err = f.ledger.Recount(f.ctx, key, d("9"), "")
	require.NoError(t, err)
	require.NotNil(t, move.ToLocationID)
	requireDecimal(t, "3", move.UnitCost, "found stock is valued at current cost")

	_, err = f.res.Reserve(f.ctx, uuid.New(), []core.ReservationLine{
		{LineID: uuid.New(), ProductID: f.product, LocationID: f.locA, Qty: d("5")},
	})
	require.NoError(t, err)
	_, err = f.ledger.Recount(f.ctx, key, d("4"), "")
	require.ErrorIs(t, err, core.ErrInsufficientStock)

	_, err = f.ledger.Recount(f.ctx, key, d("-1"), "")
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestLedger_MoveHistoryPaging(t *testing.T) {
	f := newFixture(t)
	for range 5 {
		f.stockIn(t, f.locA, "1", "1")
	}
	f.stockIn(t, f.locB, "1", "1")

	page, err := f.ledger.GetMoveHistory(f.ctx, core.MoveFilter{ProductID: f.product, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Less(t, page[0].Seq, page[1].Seq)

	next, err := f.ledger.GetMoveHistory(f.ctx, core.MoveFilter{ProductID: f.product, AfterSeq: page[1].Seq, Limit: 10})
	require.NoError(t, err)
	require.Len(t, next, 4)
	assert.Greater(t, next[0].Seq, page[1].Seq)

	atB, err := f.ledger.GetMoveHistory(f.ctx, core.MoveFilter{ProductID: f.product, LocationID: &f.locB})
	require.NoError(t, err)
	assert.Len(t, atB, 1)

	_, err = f.ledger.GetMoveHistory(f.ctx, core.MoveFilter{})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestLedger_SnapshotIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "5", "2")
	f.stockIn(t, f.locB, "8", "2")

	first, err := f.ledger.GetStockSnapshot(f.ctx, f.product, nil)
	require.NoError(t, err)
	second, err := f.ledger.GetStockSnapshot(f.ctx, f.product, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Len(t, f.moves(t), 2, "reads append nothing")
}

func TestLedger_ReconcileMatchesFoldOfMoves(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "10", "2")
	_, err := f.ledger.Transfer(f.ctx, f.product, f.locA, f.locB, "", d("3"), "")
	require.NoError(t, err)
	_, err = f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locB, Delta: d("-1")})
	require.NoError(t, err)

	diffs, err := f.ledger.Reconcile(f.ctx, f.product, nil)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	// Corrupt the materialized row behind the ledger's back.
	key := core.StockKey{ProductID: f.product, LocationID: f.locA}
	err = f.store.InTx(f.ctx, func(ctx context.Context, tx core.Tx) error {
		items, err := tx.LockStockItems(ctx, []core.StockKey{key})
		if err != nil {
			return err
		}
		it := items[key]
		it.Qty = it.Qty.Add(d("1"))
		it.AvailableQty = it.AvailableQty.Add(d("1"))
		return tx.SaveStockItem(ctx, it)
	})
	require.NoError(t, err)

	diffs, err = f.ledger.Reconcile(f.ctx, f.product, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, key, diffs[0].Key)
	requireDecimal(t, "8", diffs[0].StoredQty)
	requireDecimal(t, "7", diffs[0].ReplayQty)
	assert.Equal(t, 2, diffs[0].MoveCount)

	onlyB, err := f.ledger.Reconcile(f.ctx, f.product, &f.locB)
	require.NoError(t, err)
	assert.Empty(t, onlyB)
}
