package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"inventory-ledger/internal/core"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the PostgreSQL core.Store. Every transaction sets a local lock_timeout so a
// blocked row lock fails with core.ErrContention instead of waiting forever.
type Store struct {
	reader
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Store{reader: reader{q: pool}, pool: pool, lockTimeout: lockTimeout}
}

var _ core.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock_timeout: %w", err)
	}
	ptx := &pgTx{reader: reader{q: tx}, tx: tx}
	if err := fn(ctx, ptx); err != nil {
		return mapErr(err)
	}
	if err := ptx.dropPlaceholders(ctx); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

type reader struct {
	q pgxQuerier
}

const warehouseCols = `id, code, name, address, is_default, is_active, created_at`

func scanWarehouse(row scanner) (core.Warehouse, error) {
	var w core.Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.IsDefault, &w.IsActive, &w.CreatedAt)
	return w, err
}

func (r reader) GetWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error) {
	w, err := scanWarehouse(r.q.QueryRow(ctx, `SELECT `+warehouseCols+` FROM warehouses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("warehouse %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse: %w", err)
	}
	return &w, nil
}

func (r reader) ListWarehouses(ctx context.Context, includeInactive bool) ([]core.Warehouse, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+warehouseCols+`
		FROM warehouses
		WHERE $1 OR is_active
		ORDER BY code`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	var out []core.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const locationCols = `id, warehouse_id, code, zone, aisle, rack, shelf, bin, location_type,
	capacity_volume, capacity_weight, is_default, is_active, created_at`

func scanLocation(row scanner) (core.Location, error) {
	var l core.Location
	err := row.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Zone, &l.Aisle, &l.Rack, &l.Shelf, &l.Bin, &l.Type,
		&l.CapacityVolume, &l.CapacityWeight, &l.IsDefault, &l.IsActive, &l.CreatedAt)
	return l, err
}

func (r reader) GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error) {
	l, err := scanLocation(r.q.QueryRow(ctx, `SELECT `+locationCols+` FROM locations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	return &l, nil
}

func (r reader) ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]core.Location, error) {
	rows, err := r.q.Query(ctx, `SELECT `+locationCols+` FROM locations WHERE warehouse_id = $1 ORDER BY code`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var out []core.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const stockCols = `product_id, location_id, lot_number, qty, reserved_qty, available_qty, cost_per_unit,
	expires_at, last_movement_date, version`

func scanStockItem(row scanner) (core.StockItem, error) {
	var it core.StockItem
	err := row.Scan(&it.ProductID, &it.LocationID, &it.LotNumber, &it.Qty, &it.ReservedQty, &it.AvailableQty,
		&it.CostPerUnit, &it.ExpiresAt, &it.LastMovementDate, &it.Version)
	return it, err
}

func (r reader) StockItems(ctx context.Context, f core.StockFilter) ([]core.StockItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+stockCols+`
		FROM stock_items
		WHERE ($1::uuid IS NULL OR product_id = $1)
		  AND ($2::uuid IS NULL OR location_id = $2)
		ORDER BY product_id, location_id, lot_number`, f.ProductID, f.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock items: %w", err)
	}
	defer rows.Close()

	var out []core.StockItem
	for rows.Next() {
		it, err := scanStockItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const moveCols = `seq, id, product_id, from_location_id, to_location_id, lot_number, qty, unit_cost, reason,
	ref_table, ref_id, note, created_at`

func (r reader) Moves(ctx context.Context, f core.MoveFilter) ([]core.StockMove, error) {
	var product *uuid.UUID
	if f.ProductID != uuid.Nil {
		product = &f.ProductID
	}
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+moveCols+`
		FROM stock_moves
		WHERE seq > $1
		  AND ($2::uuid IS NULL OR product_id = $2)
		  AND ($3::uuid IS NULL OR from_location_id = $3 OR to_location_id = $3)
		ORDER BY seq
		LIMIT $4`, f.AfterSeq, product, f.LocationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock moves: %w", err)
	}
	defer rows.Close()

	var out []core.StockMove
	for rows.Next() {
		var m core.StockMove
		if err := rows.Scan(&m.Seq, &m.ID, &m.ProductID, &m.FromLocationID, &m.ToLocationID, &m.LotNumber,
			&m.Qty, &m.UnitCost, &m.Reason, &m.RefTable, &m.RefID, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock move: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const reservationCols = `id, sales_order_id, line_id, product_id, location_id, lot_number, qty, created_at`

func (r reader) reservations(ctx context.Context, orderID uuid.UUID, forUpdate bool) ([]core.Reservation, error) {
	sql := `SELECT ` + reservationCols + ` FROM reservations WHERE sales_order_id = $1 ORDER BY created_at, id`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := r.q.Query(ctx, sql, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var out []core.Reservation
	for rows.Next() {
		var res core.Reservation
		if err := rows.Scan(&res.ID, &res.SalesOrderID, &res.LineID, &res.ProductID, &res.LocationID,
			&res.LotNumber, &res.Qty, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r reader) ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	return r.reservations(ctx, orderID, false)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

const poCols = `id, supplier, status, notes, created_at, updated_at, sent_at, confirmed_at, received_at, cancelled_at`

func scanPO(row scanner) (core.PurchaseOrder, error) {
	var po core.PurchaseOrder
	err := row.Scan(&po.ID, &po.Supplier, &po.Status, &po.Notes, &po.CreatedAt, &po.UpdatedAt,
		&po.SentAt, &po.ConfirmedAt, &po.ReceivedAt, &po.CancelledAt)
	return po, err
}

func (r reader) purchaseOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*core.PurchaseOrder, error) {
	sql := `SELECT ` + poCols + ` FROM purchase_orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	po, err := scanPO(r.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("purchase order %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase order: %w", err)
	}
	lines, err := r.poLines(ctx, `WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	po.Lines = lines[po.ID]
	return &po, nil
}

func (r reader) poLines(ctx context.Context, where string, args ...any) (map[uuid.UUID][]core.PurchaseOrderLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, line_number, product_id, qty_ordered, qty_received, unit_cost
		FROM purchase_order_lines `+where+`
		ORDER BY order_id, line_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]core.PurchaseOrderLine)
	for rows.Next() {
		var l core.PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNumber, &l.ProductID, &l.QtyOrdered, &l.QtyReceived, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (r reader) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return r.purchaseOrder(ctx, id, false)
}

func (r reader) ListPurchaseOrders(ctx context.Context, status *core.PurchaseOrderStatus) ([]core.PurchaseOrder, error) {
	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+poCols+`
		FROM purchase_orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at, id`, st)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	var out []core.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		out = append(out, po)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := r.poLines(ctx, `WHERE order_id IN (SELECT id FROM purchase_orders WHERE ($1::text IS NULL OR status = $1))`, st)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// ── Sales orders ──────────────────────────────────────────────────────────────

const soCols = `id, customer, channel, status, notes, created_at, updated_at, confirmed_at, shipped_at,
	delivered_at, cancelled_at`

func scanSO(row scanner) (core.SalesOrder, error) {
	var so core.SalesOrder
	err := row.Scan(&so.ID, &so.Customer, &so.Channel, &so.Status, &so.Notes, &so.CreatedAt, &so.UpdatedAt,
		&so.ConfirmedAt, &so.ShippedAt, &so.DeliveredAt, &so.CancelledAt)
	return so, err
}

func (r reader) salesOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*core.SalesOrder, error) {
	sql := `SELECT ` + soCols + ` FROM sales_orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	so, err := scanSO(r.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sales order %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sales order: %w", err)
	}
	lines, err := r.soLines(ctx, `WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	so.Lines = lines[so.ID]
	return &so, nil
}

func (r reader) soLines(ctx context.Context, where string, args ...any) (map[uuid.UUID][]core.SalesOrderLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, line_number, product_id, location_id, lot_number, qty_ordered, qty_picked, qty_shipped
		FROM sales_order_lines `+where+`
		ORDER BY order_id, line_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]core.SalesOrderLine)
	for rows.Next() {
		var l core.SalesOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNumber, &l.ProductID, &l.LocationID, &l.LotNumber,
			&l.QtyOrdered, &l.QtyPicked, &l.QtyShipped); err != nil {
			return nil, fmt.Errorf("failed to scan sales order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (r reader) GetSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	return r.salesOrder(ctx, id, false)
}

func (r reader) ListSalesOrders(ctx context.Context, status *core.SalesOrderStatus) ([]core.SalesOrder, error) {
	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+soCols+`
		FROM sales_orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at, id`, st)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales orders: %w", err)
	}
	var out []core.SalesOrder
	for rows.Next() {
		so, err := scanSO(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sales order: %w", err)
		}
		out = append(out, so)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := r.soLines(ctx, `WHERE order_id IN (SELECT id FROM sales_orders WHERE ($1::text IS NULL OR status = $1))`, st)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}
