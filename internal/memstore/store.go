// Package memstore is an in-process core.Store. Row locks are per key with a bounded
// wait and writes are staged per transaction and applied atomically on commit. It backs
// the test suite and the memory STORE mode; nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory-ledger/internal/core"
)

const DefaultLockTimeout = 2 * time.Second

type Store struct {
	mu           sync.RWMutex
	warehouses   map[uuid.UUID]core.Warehouse
	locations    map[uuid.UUID]core.Location
	items        map[core.StockKey]core.StockItem
	reservations map[uuid.UUID]core.Reservation
	pos          map[uuid.UUID]core.PurchaseOrder
	sos          map[uuid.UUID]core.SalesOrder
	moves        []core.StockMove
	seq          int64

	locks       *lockTable
	lockTimeout time.Duration
}

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		warehouses:   make(map[uuid.UUID]core.Warehouse),
		locations:    make(map[uuid.UUID]core.Location),
		items:        make(map[core.StockKey]core.StockItem),
		reservations: make(map[uuid.UUID]core.Reservation),
		pos:          make(map[uuid.UUID]core.PurchaseOrder),
		sos:          make(map[uuid.UUID]core.SalesOrder),
		locks:        newLockTable(),
		lockTimeout:  lockTimeout,
	}
}

var _ core.Store = (*Store)(nil)

// InTx runs fn against a fresh transaction. Locks are held until fn returns; staged
// writes are applied only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	t := s.begin()
	defer t.releaseLocks()
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) begin() *tx {
	return &tx{
		s:            s,
		held:         make(map[string]bool),
		warehouses:   newOverlay(s.warehouses, nil),
		locations:    newOverlay(s.locations, nil),
		items:        newOverlay(s.items, nil),
		reservations: newOverlay(s.reservations, nil),
		pos:          newOverlay(s.pos, clonePO),
		sos:          newOverlay(s.sos, cloneSO),
	}
}

// read runs a query against committed state only.
func read[T any](s *Store, fn func(t *tx) (T, error)) (T, error) {
	t := s.begin()
	return fn(t)
}

func (s *Store) GetWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error) {
	return read(s, func(t *tx) (*core.Warehouse, error) { return t.GetWarehouse(ctx, id) })
}

func (s *Store) ListWarehouses(ctx context.Context, includeInactive bool) ([]core.Warehouse, error) {
	return read(s, func(t *tx) ([]core.Warehouse, error) { return t.ListWarehouses(ctx, includeInactive) })
}

func (s *Store) GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error) {
	return read(s, func(t *tx) (*core.Location, error) { return t.GetLocation(ctx, id) })
}

func (s *Store) ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]core.Location, error) {
	return read(s, func(t *tx) ([]core.Location, error) { return t.ListLocations(ctx, warehouseID) })
}

func (s *Store) StockItems(ctx context.Context, f core.StockFilter) ([]core.StockItem, error) {
	return read(s, func(t *tx) ([]core.StockItem, error) { return t.StockItems(ctx, f) })
}

func (s *Store) Moves(ctx context.Context, f core.MoveFilter) ([]core.StockMove, error) {
	return read(s, func(t *tx) ([]core.StockMove, error) { return t.Moves(ctx, f) })
}

func (s *Store) ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	return read(s, func(t *tx) ([]core.Reservation, error) { return t.ReservationsByOrder(ctx, orderID) })
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return read(s, func(t *tx) (*core.PurchaseOrder, error) { return t.GetPurchaseOrder(ctx, id) })
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status *core.PurchaseOrderStatus) ([]core.PurchaseOrder, error) {
	return read(s, func(t *tx) ([]core.PurchaseOrder, error) { return t.ListPurchaseOrders(ctx, status) })
}

func (s *Store) GetSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	return read(s, func(t *tx) (*core.SalesOrder, error) { return t.GetSalesOrder(ctx, id) })
}

func (s *Store) ListSalesOrders(ctx context.Context, status *core.SalesOrderStatus) ([]core.SalesOrder, error) {
	return read(s, func(t *tx) ([]core.SalesOrder, error) { return t.ListSalesOrders(ctx, status) })
}

// ── Transaction ───────────────────────────────────────────────────────────────

type tx struct {
	s     *Store
	held  map[string]bool
	order []string

	warehouses   *overlay[uuid.UUID, core.Warehouse]
	locations    *overlay[uuid.UUID, core.Location]
	items        *overlay[core.StockKey, core.StockItem]
	reservations *overlay[uuid.UUID, core.Reservation]
	pos          *overlay[uuid.UUID, core.PurchaseOrder]
	sos          *overlay[uuid.UUID, core.SalesOrder]
	moves        []*core.StockMove
}

var _ core.Tx = (*tx)(nil)

// lock takes a named lock once per transaction.
func (t *tx) lock(ctx context.Context, name string) error {
	if t.held[name] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, name, t.s.lockTimeout); err != nil {
		return err
	}
	t.held[name] = true
	t.order = append(t.order, name)
	return nil
}

func (t *tx) releaseLocks() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.release(t.order[i])
	}
	t.order = nil
	clear(t.held)
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.warehouses.commit()
	t.locations.commit()
	t.items.commit()
	t.reservations.commit()
	t.pos.commit()
	t.sos.commit()
	for _, m := range t.moves {
		t.s.seq++
		m.Seq = t.s.seq
		t.s.moves = append(t.s.moves, *m)
	}
}

func (t *tx) rlock() func() {
	t.s.mu.RLock()
	return t.s.mu.RUnlock
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (t *tx) GetWarehouse(_ context.Context, id uuid.UUID) (*core.Warehouse, error) {
	defer t.rlock()()
	w, ok := t.warehouses.get(id)
	if !ok {
		return nil, fmt.Errorf("warehouse %s: %w", id, core.ErrNotFound)
	}
	return &w, nil
}

func (t *tx) ListWarehouses(_ context.Context, includeInactive bool) ([]core.Warehouse, error) {
	defer t.rlock()()
	out := t.warehouses.values(func(w core.Warehouse) bool { return includeInactive || w.IsActive })
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) GetLocation(_ context.Context, id uuid.UUID) (*core.Location, error) {
	defer t.rlock()()
	l, ok := t.locations.get(id)
	if !ok {
		return nil, fmt.Errorf("location %s: %w", id, core.ErrNotFound)
	}
	return &l, nil
}

func (t *tx) ListLocations(_ context.Context, warehouseID uuid.UUID) ([]core.Location, error) {
	defer t.rlock()()
	out := t.locations.values(func(l core.Location) bool { return l.WarehouseID == warehouseID })
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) StockItems(_ context.Context, f core.StockFilter) ([]core.StockItem, error) {
	defer t.rlock()()
	out := t.items.values(func(it core.StockItem) bool {
		if f.ProductID != nil && it.ProductID != *f.ProductID {
			return false
		}
		return f.LocationID == nil || it.LocationID == *f.LocationID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (t *tx) Moves(_ context.Context, f core.MoveFilter) ([]core.StockMove, error) {
	defer t.rlock()()
	match := func(m core.StockMove) bool {
		if f.ProductID != uuid.Nil && m.ProductID != f.ProductID {
			return false
		}
		if f.LocationID == nil {
			return true
		}
		return (m.FromLocationID != nil && *m.FromLocationID == *f.LocationID) ||
			(m.ToLocationID != nil && *m.ToLocationID == *f.LocationID)
	}
	// Committed moves are already in Seq order.
	start := sort.Search(len(t.s.moves), func(i int) bool { return t.s.moves[i].Seq > f.AfterSeq })
	var out []core.StockMove
	for _, m := range t.s.moves[start:] {
		if f.Limit > 0 && len(out) >= f.Limit {
			return out, nil
		}
		if match(m) {
			out = append(out, m)
		}
	}
	for _, m := range t.moves {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		if match(*m) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (t *tx) ReservationsByOrder(_ context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	defer t.rlock()()
	out := t.reservations.values(func(r core.Reservation) bool { return r.SalesOrderID == orderID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *tx) GetPurchaseOrder(_ context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	defer t.rlock()()
	po, ok := t.pos.get(id)
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", id, core.ErrNotFound)
	}
	return &po, nil
}

func (t *tx) ListPurchaseOrders(_ context.Context, status *core.PurchaseOrderStatus) ([]core.PurchaseOrder, error) {
	defer t.rlock()()
	out := t.pos.values(func(po core.PurchaseOrder) bool { return status == nil || po.Status == *status })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *tx) GetSalesOrder(_ context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	defer t.rlock()()
	so, ok := t.sos.get(id)
	if !ok {
		return nil, fmt.Errorf("sales order %s: %w", id, core.ErrNotFound)
	}
	return &so, nil
}

func (t *tx) ListSalesOrders(_ context.Context, status *core.SalesOrderStatus) ([]core.SalesOrder, error) {
	defer t.rlock()()
	out := t.sos.values(func(so core.SalesOrder) bool { return status == nil || so.Status == *status })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// ── Locks ─────────────────────────────────────────────────────────────────────

func (t *tx) LockWarehouses(ctx context.Context) error {
	return t.lock(ctx, "directory")
}

func (t *tx) LockStockItems(ctx context.Context, keys []core.StockKey) (map[core.StockKey]*core.StockItem, error) {
	sorted := core.SortKeys(keys)
	for _, k := range sorted {
		if err := t.lock(ctx, "stock:"+k.String()); err != nil {
			return nil, err
		}
	}
	defer t.rlock()()
	out := make(map[core.StockKey]*core.StockItem, len(sorted))
	for _, k := range sorted {
		it, ok := t.items.get(k)
		if !ok {
			it = core.StockItem{ProductID: k.ProductID, LocationID: k.LocationID, LotNumber: k.LotNumber}
		}
		out[k] = &it
	}
	return out, nil
}

func (t *tx) LockReservations(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	if err := t.lock(ctx, "reservations:"+orderID.String()); err != nil {
		return nil, err
	}
	return t.ReservationsByOrder(ctx, orderID)
}

func (t *tx) LockPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	if err := t.lock(ctx, "po:"+id.String()); err != nil {
		return nil, err
	}
	return t.GetPurchaseOrder(ctx, id)
}

func (t *tx) LockSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	if err := t.lock(ctx, "so:"+id.String()); err != nil {
		return nil, err
	}
	return t.GetSalesOrder(ctx, id)
}

// ── Writes ────────────────────────────────────────────────────────────────────

func (t *tx) SaveWarehouse(_ context.Context, w *core.Warehouse) error {
	t.warehouses.set(w.ID, *w)
	return nil
}

func (t *tx) SaveLocation(_ context.Context, l *core.Location) error {
	t.locations.set(l.ID, *l)
	return nil
}

func (t *tx) DeleteLocation(_ context.Context, id uuid.UUID) error {
	t.locations.remove(id)
	defer t.rlock()()
	for _, it := range t.items.values(func(it core.StockItem) bool { return it.LocationID == id }) {
		t.items.remove(it.Key())
	}
	return nil
}

func (t *tx) SaveStockItem(_ context.Context, item *core.StockItem) error {
	k := item.Key()
	if !t.held["stock:"+k.String()] {
		return fmt.Errorf("stock row %s saved without its lock", k)
	}
	item.Version++
	t.items.set(k, *item)
	return nil
}

func (t *tx) AppendMove(_ context.Context, m *core.StockMove) error {
	t.moves = append(t.moves, m)
	return nil
}

func (t *tx) SaveReservation(_ context.Context, r *core.Reservation) error {
	t.reservations.set(r.ID, *r)
	return nil
}

func (t *tx) DeleteReservation(_ context.Context, id uuid.UUID) error {
	t.reservations.remove(id)
	return nil
}

func (t *tx) SavePurchaseOrder(_ context.Context, po *core.PurchaseOrder) error {
	t.pos.set(po.ID, *po)
	return nil
}

func (t *tx) SaveSalesOrder(_ context.Context, so *core.SalesOrder) error {
	t.sos.set(so.ID, *so)
	return nil
}

func clonePO(po core.PurchaseOrder) core.PurchaseOrder {
	po.Lines = slices.Clone(po.Lines)
	return po
}

func cloneSO(so core.SalesOrder) core.SalesOrder {
	so.Lines = slices.Clone(so.Lines)
	return so
}
