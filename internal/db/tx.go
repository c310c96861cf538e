package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inventory-ledger/internal/core"
)

type pgTx struct {
	reader
	tx pgx.Tx
	// placeholders are stock rows this transaction inserted only to lock them.
	placeholders []core.StockKey
}

var _ core.Tx = (*pgTx)(nil)

// ── Locks ─────────────────────────────────────────────────────────────────────

func (t *pgTx) LockWarehouses(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `SELECT 1 FROM directory_lock WHERE id = 1 FOR UPDATE`); err != nil {
		return mapErr(fmt.Errorf("failed to lock directory: %w", err))
	}
	return nil
}

// LockStockItems locks one key at a time in sorted order. Missing rows are inserted
// empty first so the lock also covers keys nobody has stocked yet, and are dropped again
// at commit unless saved. A key whose location does not exist stays unlocked and comes
// back with Version 0.
func (t *pgTx) LockStockItems(ctx context.Context, keys []core.StockKey) (map[core.StockKey]*core.StockItem, error) {
	sorted := core.SortKeys(keys)
	out := make(map[core.StockKey]*core.StockItem, len(sorted))
	for _, k := range sorted {
		tag, err := t.tx.Exec(ctx, `
			INSERT INTO stock_items (product_id, location_id, lot_number)
			SELECT $1, $2, $3
			WHERE EXISTS (SELECT 1 FROM locations WHERE id = $2)
			ON CONFLICT (product_id, location_id, lot_number) DO NOTHING`,
			k.ProductID, k.LocationID, k.LotNumber)
		if err != nil {
			return nil, mapErr(fmt.Errorf("failed to upsert stock item %s: %w", k, err))
		}
		if tag.RowsAffected() == 1 {
			t.placeholders = append(t.placeholders, k)
		}
		it, err := scanStockItem(t.tx.QueryRow(ctx, `
			SELECT `+stockCols+`
			FROM stock_items
			WHERE product_id = $1 AND location_id = $2 AND lot_number = $3
			FOR UPDATE`, k.ProductID, k.LocationID, k.LotNumber))
		if errors.Is(err, pgx.ErrNoRows) {
			it = core.StockItem{ProductID: k.ProductID, LocationID: k.LocationID, LotNumber: k.LotNumber}
		} else if err != nil {
			return nil, mapErr(fmt.Errorf("failed to lock stock item %s: %w", k, err))
		}
		out[k] = &it
	}
	return out, nil
}

// dropPlaceholders deletes the lock rows this transaction inserted but never saved, so
// a transaction that wrote nothing leaves no empty stock rows behind.
func (t *pgTx) dropPlaceholders(ctx context.Context) error {
	for _, k := range t.placeholders {
		if _, err := t.tx.Exec(ctx, `
			DELETE FROM stock_items
			WHERE product_id = $1 AND location_id = $2 AND lot_number = $3 AND version = 0`,
			k.ProductID, k.LocationID, k.LotNumber); err != nil {
			return fmt.Errorf("failed to drop placeholder stock item %s: %w", k, err)
		}
	}
	t.placeholders = nil
	return nil
}

func (t *pgTx) LockReservations(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	rs, err := t.reservations(ctx, orderID, true)
	return rs, mapErr(err)
}

func (t *pgTx) LockPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	po, err := t.purchaseOrder(ctx, id, true)
	return po, mapErr(err)
}

func (t *pgTx) LockSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	so, err := t.salesOrder(ctx, id, true)
	return so, mapErr(err)
}

// ── Writes ────────────────────────────────────────────────────────────────────

func (t *pgTx) SaveWarehouse(ctx context.Context, w *core.Warehouse) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO warehouses (id, code, name, address, is_default, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, address = EXCLUDED.address,
			is_default = EXCLUDED.is_default, is_active = EXCLUDED.is_active`,
		w.ID, w.Code, w.Name, w.Address, w.IsDefault, w.IsActive, w.CreatedAt)
	return err
}

func (t *pgTx) SaveLocation(ctx context.Context, l *core.Location) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO locations (id, warehouse_id, code, zone, aisle, rack, shelf, bin, location_type,
			capacity_volume, capacity_weight, is_default, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, zone = EXCLUDED.zone, aisle = EXCLUDED.aisle, rack = EXCLUDED.rack,
			shelf = EXCLUDED.shelf, bin = EXCLUDED.bin, location_type = EXCLUDED.location_type,
			capacity_volume = EXCLUDED.capacity_volume, capacity_weight = EXCLUDED.capacity_weight,
			is_default = EXCLUDED.is_default, is_active = EXCLUDED.is_active`,
		l.ID, l.WarehouseID, l.Code, l.Zone, l.Aisle, l.Rack, l.Shelf, l.Bin, l.Type,
		l.CapacityVolume, l.CapacityWeight, l.IsDefault, l.IsActive, l.CreatedAt)
	return err
}

// DeleteLocation removes the location; its empty stock rows go with it.
func (t *pgTx) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	return err
}

func (t *pgTx) SaveStockItem(ctx context.Context, it *core.StockItem) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_items (product_id, location_id, lot_number, qty, reserved_qty, cost_per_unit,
			expires_at, last_movement_date, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		ON CONFLICT (product_id, location_id, lot_number) DO UPDATE SET
			qty = EXCLUDED.qty, reserved_qty = EXCLUDED.reserved_qty, cost_per_unit = EXCLUDED.cost_per_unit,
			expires_at = EXCLUDED.expires_at, last_movement_date = EXCLUDED.last_movement_date,
			version = stock_items.version + 1
		RETURNING available_qty, version`,
		it.ProductID, it.LocationID, it.LotNumber, it.Qty, it.ReservedQty, it.CostPerUnit,
		it.ExpiresAt, it.LastMovementDate,
	).Scan(&it.AvailableQty, &it.Version)
	return err
}

func (t *pgTx) AppendMove(ctx context.Context, m *core.StockMove) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO stock_moves (id, product_id, from_location_id, to_location_id, lot_number, qty, unit_cost,
			reason, ref_table, ref_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`,
		m.ID, m.ProductID, m.FromLocationID, m.ToLocationID, m.LotNumber, m.Qty, m.UnitCost,
		m.Reason, m.RefTable, m.RefID, m.Note, m.CreatedAt,
	).Scan(&m.Seq)
}

func (t *pgTx) SaveReservation(ctx context.Context, r *core.Reservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (id, sales_order_id, line_id, product_id, location_id, lot_number, qty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET qty = EXCLUDED.qty`,
		r.ID, r.SalesOrderID, r.LineID, r.ProductID, r.LocationID, r.LotNumber, r.Qty, r.CreatedAt)
	return err
}

func (t *pgTx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	return err
}

func (t *pgTx) SavePurchaseOrder(ctx context.Context, po *core.PurchaseOrder) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO purchase_orders (id, supplier, status, notes, created_at, updated_at,
			sent_at, confirmed_at, received_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at,
			sent_at = EXCLUDED.sent_at, confirmed_at = EXCLUDED.confirmed_at,
			received_at = EXCLUDED.received_at, cancelled_at = EXCLUDED.cancelled_at`,
		po.ID, po.Supplier, po.Status, po.Notes, po.CreatedAt, po.UpdatedAt,
		po.SentAt, po.ConfirmedAt, po.ReceivedAt, po.CancelledAt); err != nil {
		return fmt.Errorf("failed to save purchase order header: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range po.Lines {
		batch.Queue(`
			INSERT INTO purchase_order_lines (id, order_id, line_number, product_id, qty_ordered, qty_received, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET qty_received = EXCLUDED.qty_received`,
			l.ID, po.ID, l.LineNumber, l.ProductID, l.QtyOrdered, l.QtyReceived, l.UnitCost)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save purchase order lines: %w", err)
	}
	return nil
}

func (t *pgTx) SaveSalesOrder(ctx context.Context, so *core.SalesOrder) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO sales_orders (id, customer, channel, status, notes, created_at, updated_at,
			confirmed_at, shipped_at, delivered_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at,
			confirmed_at = EXCLUDED.confirmed_at, shipped_at = EXCLUDED.shipped_at,
			delivered_at = EXCLUDED.delivered_at, cancelled_at = EXCLUDED.cancelled_at`,
		so.ID, so.Customer, so.Channel, so.Status, so.Notes, so.CreatedAt, so.UpdatedAt,
		so.ConfirmedAt, so.ShippedAt, so.DeliveredAt, so.CancelledAt); err != nil {
		return fmt.Errorf("failed to save sales order header: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range so.Lines {
		batch.Queue(`
			INSERT INTO sales_order_lines (id, order_id, line_number, product_id, location_id, lot_number,
				qty_ordered, qty_picked, qty_shipped)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET qty_picked = EXCLUDED.qty_picked, qty_shipped = EXCLUDED.qty_shipped`,
			l.ID, so.ID, l.LineNumber, l.ProductID, l.LocationID, l.LotNumber, l.QtyOrdered, l.QtyPicked, l.QtyShipped)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save sales order lines: %w", err)
	}
	return nil
}
