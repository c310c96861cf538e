package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/memstore"
)

// flakyStore fails the first fails transactions with lock contention.
type flakyStore struct {
	*memstore.Store
	fails int
	calls int
}

func (s *flakyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	s.calls++
	if s.calls <= s.fails {
		return fmt.Errorf("row lock: %w", core.ErrContention)
	}
	return s.Store.InTx(ctx, fn)
}

func TestTxRunner_RetriesContention(t *testing.T) {
	store := &flakyStore{Store: memstore.New(0), fails: 2}
	dir := core.NewLocationDirectory(store, core.WithMaxAttempts(3), core.WithRetryBackoff(time.Millisecond))

	wh, err := dir.CreateWarehouse(context.Background(), core.WarehouseInput{Code: "W", Name: "W"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.True(t, wh.IsDefault)
}

func TestTxRunner_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyStore{Store: memstore.New(0), fails: 10}
	dir := core.NewLocationDirectory(store, core.WithMaxAttempts(3), core.WithRetryBackoff(0))

	_, err := dir.CreateWarehouse(context.Background(), core.WarehouseInput{Code: "W", Name: "W"})
	require.ErrorIs(t, err, core.ErrContention)
	assert.Equal(t, 3, store.calls)
}

func TestTxRunner_DoesNotRetryOtherErrors(t *testing.T) {
	store := &flakyStore{Store: memstore.New(0)}
	ledger := core.NewLedger(store, core.WithMaxAttempts(5))

	_, err := ledger.Adjust(context.Background(), core.AdjustmentInput{ProductID: uuid.New(), LocationID: uuid.New(), Delta: d("1")})
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 1, store.calls)
}

func TestTxRunner_HeldLockSurfacesAsContention(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locA, "10", "1")
	key := core.StockKey{ProductID: f.product, LocationID: f.locA}
	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = f.store.InTx(f.ctx, func(ctx context.Context, tx core.Tx) error {
			if _, err := tx.LockStockItems(ctx, []core.StockKey{key}); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked
	defer close(done)

	res := core.NewReservationManager(f.store, f.ledger, core.WithMaxAttempts(1))
	_, err := res.Reserve(f.ctx, uuid.New(), []core.ReservationLine{
		{LineID: uuid.New(), ProductID: f.product, LocationID: f.locA, Qty: d("1")},
	})
	require.ErrorIs(t, err, core.ErrContention)
	requireDecimal(t, "0", f.item(t, f.locA).ReservedQty)
}
