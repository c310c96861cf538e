package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/memstore"
)

// fixture is one warehouse with two storage locations over a fresh in-memory store.
// Location A is the default.
type fixture struct {
	ctx     context.Context
	store   *memstore.Store
	dir     *core.LocationDirectory
	ledger  *core.Ledger
	res     *core.ReservationManager
	pos     *core.PurchaseOrderService
	sos     *core.SalesOrderService
	wh      *core.Warehouse
	locA    uuid.UUID
	locB    uuid.UUID
	product uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New(500 * time.Millisecond)
	opts := []core.Option{core.WithRetryBackoff(time.Millisecond)}

	ledger := core.NewLedger(store, opts...)
	res := core.NewReservationManager(store, ledger, opts...)
	f := &fixture{
		ctx:     ctx,
		store:   store,
		dir:     core.NewLocationDirectory(store, opts...),
		ledger:  ledger,
		res:     res,
		pos:     core.NewPurchaseOrderService(store, ledger, opts...),
		sos:     core.NewSalesOrderService(store, res, opts...),
		product: uuid.New(),
	}

	wh, err := f.dir.CreateWarehouse(ctx, core.WarehouseInput{Code: "MAIN", Name: "Main warehouse"})
	require.NoError(t, err)
	f.wh = wh
	a, err := f.dir.CreateLocation(ctx, wh.ID, core.LocationInput{Code: "A-01"})
	require.NoError(t, err)
	b, err := f.dir.CreateLocation(ctx, wh.ID, core.LocationInput{Code: "B-01"})
	require.NoError(t, err)
	f.locA, f.locB = a.ID, b.ID
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stockIn books qty into loc at cost through a manual adjustment.
func (f *fixture) stockIn(t *testing.T, loc uuid.UUID, qty, cost string) {
	t.Helper()
	_, err := f.ledger.Adjust(f.ctx, core.AdjustmentInput{
		ProductID:  f.product,
		LocationID: loc,
		Delta:      d(qty),
		UnitCost:   d(cost),
	})
	require.NoError(t, err)
}

// item returns the committed row for the fixture product at loc (zero row when absent)
// and checks the availability invariant on it.
func (f *fixture) item(t *testing.T, loc uuid.UUID) core.StockItem {
	t.Helper()
	items, err := f.store.StockItems(f.ctx, core.StockFilter{ProductID: &f.product, LocationID: &loc})
	require.NoError(t, err)
	if len(items) == 0 {
		return core.StockItem{ProductID: f.product, LocationID: loc}
	}
	require.Len(t, items, 1)
	it := items[0]
	requireInvariant(t, it)
	return it
}

func requireInvariant(t *testing.T, it core.StockItem) {
	t.Helper()
	require.False(t, it.ReservedQty.IsNegative(), "reserved_qty < 0 on %s", it.Key())
	require.False(t, it.AvailableQty.IsNegative(), "available_qty < 0 on %s", it.Key())
	require.True(t, it.AvailableQty.Equal(it.Qty.Sub(it.ReservedQty)),
		"available %s != qty %s - reserved %s on %s", it.AvailableQty, it.Qty, it.ReservedQty, it.Key())
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func (f *fixture) moves(t *testing.T) []core.StockMove {
	t.Helper()
	ms, err := f.ledger.GetMoveHistory(f.ctx, core.MoveFilter{ProductID: f.product, Limit: core.MaxHistoryLimit})
	require.NoError(t, err)
	return ms
}
