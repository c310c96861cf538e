package core

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the read side of the persistence provider. Get* methods return an error
// wrapping ErrNotFound for unknown ids.
type Querier interface {
	GetWarehouse(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	ListWarehouses(ctx context.Context, includeInactive bool) ([]Warehouse, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)
	ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]Location, error)

	// StockItems is ordered by product, location, lot.
	StockItems(ctx context.Context, f StockFilter) ([]StockItem, error)
	// Moves is ordered by Seq ascending.
	Moves(ctx context.Context, f MoveFilter) ([]StockMove, error)
	ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]Reservation, error)

	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status *PurchaseOrderStatus) ([]PurchaseOrder, error)
	GetSalesOrder(ctx context.Context, id uuid.UUID) (*SalesOrder, error)
	ListSalesOrders(ctx context.Context, status *SalesOrderStatus) ([]SalesOrder, error)
}

// Tx is one atomic unit of work. Reads through the embedded Querier observe the
// transaction's own writes. Lock* methods hold row locks until the transaction ends and
// return an error wrapping ErrContention when a lock cannot be taken in time.
type Tx interface {
	Querier

	// LockWarehouses serializes changes to the default warehouse/location flags.
	LockWarehouses(ctx context.Context) error
	// LockStockItems locks keys in sorted order. Keys without a row come back as
	// zero-valued items with Version 0.
	LockStockItems(ctx context.Context, keys []StockKey) (map[StockKey]*StockItem, error)
	LockReservations(ctx context.Context, orderID uuid.UUID) ([]Reservation, error)
	LockPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	LockSalesOrder(ctx context.Context, id uuid.UUID) (*SalesOrder, error)

	SaveWarehouse(ctx context.Context, w *Warehouse) error
	SaveLocation(ctx context.Context, l *Location) error
	DeleteLocation(ctx context.Context, id uuid.UUID) error
	// SaveStockItem upserts and bumps Version.
	SaveStockItem(ctx context.Context, item *StockItem) error
	// AppendMove assigns Seq, either immediately or when the transaction commits.
	AppendMove(ctx context.Context, m *StockMove) error
	SaveReservation(ctx context.Context, r *Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	SavePurchaseOrder(ctx context.Context, po *PurchaseOrder) error
	SaveSalesOrder(ctx context.Context, so *SalesOrder) error
}

// Store is the persistence/transaction provider.
type Store interface {
	Querier
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
