package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
)

func seedLocation(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	w := core.Warehouse{ID: uuid.New(), Code: "W", IsActive: true, IsDefault: true}
	l := core.Location{ID: uuid.New(), WarehouseID: w.ID, Code: "L", Type: core.LocationStorage, IsActive: true}
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		if err := tx.SaveWarehouse(ctx, &w); err != nil {
			return err
		}
		return tx.SaveLocation(ctx, &l)
	}))
	return l.ID
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		w := core.Warehouse{ID: uuid.New(), Code: "GONE", IsActive: true}
		require.NoError(t, tx.SaveWarehouse(ctx, &w))
		got, err := tx.ListWarehouses(ctx, true)
		require.NoError(t, err)
		assert.Len(t, got, 1, "a transaction reads its own writes")
		return boom
	})
	require.ErrorIs(t, err, boom)

	ws, err := s.ListWarehouses(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestInTx_MovesGetSeqOnCommit(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	loc := seedLocation(t, s)
	product := uuid.New()

	var pending []*core.StockMove
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		for range 3 {
			m := &core.StockMove{ID: uuid.New(), ProductID: product, ToLocationID: &loc, Qty: decimal.NewFromInt(1), Reason: core.ReasonAdjustment}
			if err := tx.AppendMove(ctx, m); err != nil {
				return err
			}
			assert.Zero(t, m.Seq)
			pending = append(pending, m)
		}
		return nil
	}))
	for i, m := range pending {
		assert.Equal(t, int64(i+1), m.Seq)
	}

	page, err := s.Moves(ctx, core.MoveFilter{ProductID: product, AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Seq)
}

func TestSaveStockItem_RequiresLock(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	loc := seedLocation(t, s)
	key := core.StockKey{ProductID: uuid.New(), LocationID: loc}

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.SaveStockItem(ctx, &core.StockItem{ProductID: key.ProductID, LocationID: key.LocationID})
	})
	require.Error(t, err)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		items, err := tx.LockStockItems(ctx, []core.StockKey{key})
		if err != nil {
			return err
		}
		it := items[key]
		assert.False(t, it.Exists())
		it.Qty = decimal.NewFromInt(2)
		it.AvailableQty = it.Qty
		return tx.SaveStockItem(ctx, it)
	}))

	rows, err := s.StockItems(ctx, core.StockFilter{LocationID: &loc})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Version)
}

func TestLock_TimesOutWithContention(t *testing.T) {
	s := New(20 * time.Millisecond)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
			if err := tx.LockWarehouses(ctx); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.LockWarehouses(ctx)
	})
	require.ErrorIs(t, err, core.ErrContention)

	close(release)
	require.Eventually(t, func() bool {
		return s.InTx(ctx, func(ctx context.Context, tx core.Tx) error { return tx.LockWarehouses(ctx) }) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestPurchaseOrderLinesAreCopied(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	po := core.PurchaseOrder{ID: uuid.New(), Supplier: "S", Status: core.PODraft, Lines: []core.PurchaseOrderLine{
		{ID: uuid.New(), QtyOrdered: decimal.NewFromInt(5), QtyReceived: decimal.Zero},
	}}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx core.Tx) error { return tx.SavePurchaseOrder(ctx, &po) }))

	po.Lines[0].QtyReceived = decimal.NewFromInt(5)
	got, err := s.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].QtyReceived.IsZero(), "callers cannot mutate stored lines")

	_, err = s.GetPurchaseOrder(ctx, uuid.New())
	require.ErrorIs(t, err, core.ErrNotFound)
}
