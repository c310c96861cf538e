package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-ledger/internal/metrics"
)

// ReservationManager holds stock against sales order lines without removing it from
// on-hand. Reserve is all-or-nothing over a batch; consuming a reservation turns it into
// a sale move.
type ReservationManager struct {
	store  Store
	ledger *Ledger
	tx     txRunner
}

func NewReservationManager(store Store, ledger *Ledger, opts ...Option) *ReservationManager {
	s := newSettings(opts)
	return &ReservationManager{store: store, ledger: ledger, tx: txRunner{store: store, settings: s}}
}

// Reserve creates one reservation per line. Every key of the batch stays locked for the
// whole check-and-commit, so two orders racing for the last units cannot both win. On
// failure nothing is reserved and the error names the first failing line. Ids of sales
// orders are refused with ErrInvalidTransition; their holds follow the order workflow.
func (m *ReservationManager) Reserve(ctx context.Context, orderID uuid.UUID, lines []ReservationLine) ([]Reservation, error) {
	var out []Reservation
	err := m.tx.run(ctx, "reserve", func(ctx context.Context, tx Tx) error {
		if err := standaloneHold(ctx, tx, orderID, "reserved"); err != nil {
			return err
		}
		var err error
		out, err = m.reserveTx(ctx, tx, orderID, lines)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ReservationManager) reserveTx(ctx context.Context, tx Tx, orderID uuid.UUID, lines []ReservationLine) ([]Reservation, error) {
	if orderID == uuid.Nil {
		return nil, invalid("sales_order_id", "is required")
	}
	if len(lines) == 0 {
		return nil, invalid("lines", "at least one line is required")
	}
	keys := make([]StockKey, 0, len(lines))
	seen := make(map[uuid.UUID]bool, len(lines))
	for i, l := range lines {
		if seen[l.LineID] {
			return nil, invalid(fmt.Sprintf("lines[%d].line_id", i), "line %s appears more than once", l.LineID)
		}
		seen[l.LineID] = true
		if l.ProductID == uuid.Nil || l.LocationID == uuid.Nil {
			return nil, invalid(fmt.Sprintf("lines[%d]", i), "product_id and location_id are required")
		}
		if !l.Qty.IsPositive() {
			return nil, invalid(fmt.Sprintf("lines[%d].qty", i), "must be positive, got %s", l.Qty)
		}
		keys = append(keys, l.key())
	}

	existing, err := tx.LockReservations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, invalid("sales_order_id", "order %s already holds %d reservations", orderID, len(existing))
	}

	// 1. Lock every key of the batch
	items, err := tx.LockStockItems(ctx, keys)
	if err != nil {
		return nil, err
	}

	// 2. Check all lines before writing anything. Lines sharing a key draw on the same
	// available qty.
	claimed := make(map[StockKey]decimal.Decimal, len(keys))
	for _, l := range lines {
		k := l.key()
		if _, err := activeLocation(ctx, tx, k.LocationID); err != nil {
			return nil, err
		}
		left := items[k].AvailableQty.Sub(claimed[k])
		if left.LessThan(l.Qty) {
			metrics.Reservations.WithLabelValues("insufficient").Inc()
			lineID := l.LineID
			return nil, &StockError{Kind: ErrInsufficientStock, ProductID: k.ProductID, LocationID: k.LocationID,
				LotNumber: k.LotNumber, LineID: &lineID, Requested: l.Qty, Available: left}
		}
		claimed[k] = claimed[k].Add(l.Qty)
	}

	// 3. Commit
	now := m.tx.now()
	out := make([]Reservation, 0, len(lines))
	for _, l := range lines {
		r := Reservation{
			ID:           uuid.New(),
			SalesOrderID: orderID,
			LineID:       l.LineID,
			ProductID:    l.ProductID,
			LocationID:   l.LocationID,
			LotNumber:    l.LotNumber,
			Qty:          l.Qty,
			CreatedAt:    now,
		}
		if err := tx.SaveReservation(ctx, &r); err != nil {
			return nil, fmt.Errorf("failed to save reservation: %w", err)
		}
		out = append(out, r)
	}
	for _, k := range SortKeys(keys) {
		it := items[k]
		it.ReservedQty = it.ReservedQty.Add(claimed[k])
		it.recompute()
		if err := it.checkInvariant(); err != nil {
			return nil, err
		}
		if err := tx.SaveStockItem(ctx, it); err != nil {
			return nil, fmt.Errorf("failed to save stock item %s: %w", k, err)
		}
	}
	metrics.Reservations.WithLabelValues("reserved").Add(float64(len(out)))
	m.tx.log.Info("stock reserved", zap.String("sales_order_id", orderID.String()), zap.Int("lines", len(out)))
	return out, nil
}

// Release removes every reservation of an order and restores available qty. It fails
// with ErrReservationNotFound when the order holds none.
func (m *ReservationManager) Release(ctx context.Context, orderID uuid.UUID) ([]Reservation, error) {
	var out []Reservation
	err := m.tx.run(ctx, "release", func(ctx context.Context, tx Tx) error {
		if err := standaloneHold(ctx, tx, orderID, "released"); err != nil {
			return err
		}
		var err error
		out, err = m.releaseTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return fmt.Errorf("order %s: %w", orderID, ErrReservationNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// releaseTx releases whatever the order still holds, which may be nothing.
func (m *ReservationManager) releaseTx(ctx context.Context, tx Tx, orderID uuid.UUID) ([]Reservation, error) {
	held, err := tx.LockReservations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return nil, nil
	}
	keys := make([]StockKey, 0, len(held))
	for _, r := range held {
		keys = append(keys, r.Key())
	}
	items, err := tx.LockStockItems(ctx, keys)
	if err != nil {
		return nil, err
	}
	for _, r := range held {
		it := items[r.Key()]
		it.ReservedQty = it.ReservedQty.Sub(r.Qty)
		it.recompute()
		if err := it.checkInvariant(); err != nil {
			return nil, fmt.Errorf("release of reservation %s would break stock invariant: %w", r.ID, err)
		}
		if err := tx.DeleteReservation(ctx, r.ID); err != nil {
			return nil, fmt.Errorf("failed to delete reservation: %w", err)
		}
	}
	for _, k := range SortKeys(keys) {
		if err := tx.SaveStockItem(ctx, items[k]); err != nil {
			return nil, fmt.Errorf("failed to save stock item %s: %w", k, err)
		}
	}
	metrics.Reservations.WithLabelValues("released").Add(float64(len(held)))
	m.tx.log.Info("reservations released", zap.String("sales_order_id", orderID.String()), zap.Int("count", len(held)))
	return held, nil
}

// Consume ships qty of a line's reservation: it appends a sale move out of the reserved
// location and shrinks the reservation, deleting it at zero.
func (m *ReservationManager) Consume(ctx context.Context, orderID, lineID uuid.UUID, qty decimal.Decimal) (*StockMove, error) {
	if !qty.IsPositive() {
		return nil, invalid("qty", "must be positive, got %s", qty)
	}
	var move *StockMove
	err := m.tx.run(ctx, "consume", func(ctx context.Context, tx Tx) error {
		if err := standaloneHold(ctx, tx, orderID, "consumed"); err != nil {
			return err
		}
		held, err := tx.LockReservations(ctx, orderID)
		if err != nil {
			return err
		}
		r := findReservation(held, lineID)
		if r == nil {
			return fmt.Errorf("order %s line %s: %w", orderID, lineID, ErrReservationNotFound)
		}
		items, err := tx.LockStockItems(ctx, []StockKey{r.Key()})
		if err != nil {
			return err
		}
		move, err = m.consumeLocked(ctx, tx, r, qty, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return move, nil
}

// consumeLocked consumes from a reservation whose stock row is already locked.
func (m *ReservationManager) consumeLocked(ctx context.Context, tx Tx, r *Reservation, qty decimal.Decimal, items map[StockKey]*StockItem) (*StockMove, error) {
	if qty.GreaterThan(r.Qty) {
		return nil, &LineError{Kind: ErrOverConsumption, OrderID: r.SalesOrderID, LineID: r.LineID, Requested: qty, Remaining: r.Qty}
	}
	from := r.LocationID
	orderID := r.SalesOrderID
	move, err := m.ledger.applyMoveTx(ctx, tx, StockMoveInput{
		ProductID:      r.ProductID,
		FromLocationID: &from,
		LotNumber:      r.LotNumber,
		Qty:            qty,
		Reason:         ReasonSale,
		RefTable:       "sales_orders",
		RefID:          &orderID,
	}, items, true)
	if err != nil {
		return nil, err
	}

	r.Qty = r.Qty.Sub(qty)
	if r.Qty.IsZero() {
		err = tx.DeleteReservation(ctx, r.ID)
	} else {
		err = tx.SaveReservation(ctx, r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", r.ID, err)
	}
	metrics.Reservations.WithLabelValues("consumed").Inc()
	return move, nil
}

// ListReservations returns the reservations an order currently holds.
func (m *ReservationManager) ListReservations(ctx context.Context, orderID uuid.UUID) ([]Reservation, error) {
	rs, err := m.store.ReservationsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return rs, nil
}

// standaloneHold refuses direct reservation calls for an id that names a sales order.
// Those holds are created by Confirm, shrunk by Ship and dropped by Cancel.
func standaloneHold(ctx context.Context, tx Tx, orderID uuid.UUID, action string) error {
	so, err := tx.LockSalesOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &TransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), To: action}
}

func findReservation(held []Reservation, lineID uuid.UUID) *Reservation {
	for i := range held {
		if held[i].LineID == lineID {
			return &held[i]
		}
	}
	return nil
}
