package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-ledger/internal/metrics"
)

// SalesOrderService drives customer orders from pending to delivered. Confirm reserves
// stock, Ship consumes the reservations, Cancel releases what is left.
type SalesOrderService struct {
	store        Store
	reservations *ReservationManager
	tx           txRunner
}

func NewSalesOrderService(store Store, reservations *ReservationManager, opts ...Option) *SalesOrderService {
	s := newSettings(opts)
	return &SalesOrderService{store: store, reservations: reservations, tx: txRunner{store: store, settings: s}}
}

// CreateSalesOrder creates a pending order. Each line names the location it ships from.
func (s *SalesOrderService) CreateSalesOrder(ctx context.Context, customer, channel string, lines []SalesOrderLineInput, notes string) (*SalesOrder, error) {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return nil, invalid("customer", "is required")
	}
	if len(lines) == 0 {
		return nil, invalid("lines", "at least one line is required")
	}

	now := s.tx.now()
	so := &SalesOrder{
		ID:        uuid.New(),
		Customer:  customer,
		Channel:   strings.TrimSpace(channel),
		Status:    SOPending,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, in := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if in.ProductID == uuid.Nil {
			return nil, invalid(field+".product_id", "is required")
		}
		if in.LocationID == uuid.Nil {
			return nil, invalid(field+".location_id", "is required")
		}
		if !in.QtyOrdered.IsPositive() {
			return nil, invalid(field+".qty_ordered", "must be positive, got %s", in.QtyOrdered)
		}
		so.Lines = append(so.Lines, SalesOrderLine{
			ID:         uuid.New(),
			OrderID:    so.ID,
			LineNumber: i + 1,
			ProductID:  in.ProductID,
			LocationID: in.LocationID,
			LotNumber:  in.LotNumber,
			QtyOrdered: in.QtyOrdered,
			QtyPicked:  decimal.Zero,
			QtyShipped: decimal.Zero,
		})
	}

	err := s.tx.run(ctx, "create_sales_order", func(ctx context.Context, tx Tx) error {
		return tx.SaveSalesOrder(ctx, so)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save sales order: %w", err)
	}
	s.tx.log.Info("sales order created", zap.String("so_id", so.ID.String()), zap.String("customer", customer))
	return so, nil
}

// Confirm reserves every line and moves the order to confirmed. When any line cannot be
// reserved nothing is held and the order stays pending.
func (s *SalesOrderService) Confirm(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	var reserved []Reservation
	so, err := s.transition(ctx, id, SOConfirmed, func(ctx context.Context, tx Tx, so *SalesOrder, now time.Time) error {
		lines := make([]ReservationLine, 0, len(so.Lines))
		for _, l := range so.Lines {
			lines = append(lines, ReservationLine{
				LineID:     l.ID,
				ProductID:  l.ProductID,
				LocationID: l.LocationID,
				LotNumber:  l.LotNumber,
				Qty:        l.QtyOrdered,
			})
		}
		var err error
		reserved, err = s.reservations.reserveTx(ctx, tx, so.ID, lines)
		if err != nil {
			return err
		}
		so.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: so, Reservations: reserved}, nil
}

// StartProcessing hands a confirmed order to the warehouse.
func (s *SalesOrderService) StartProcessing(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	so, err := s.transition(ctx, id, SOProcessing, nil)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: so}, nil
}

// Pick records picked quantities. The order becomes picked once every line is fully
// picked, otherwise it stays processing.
func (s *SalesOrderService) Pick(ctx context.Context, id uuid.UUID, picks []LineQty) (*TransitionResult, error) {
	if len(picks) == 0 {
		return nil, invalid("lines", "at least one pick line is required")
	}
	var out *SalesOrder
	err := s.tx.run(ctx, "pick_sales_order", func(ctx context.Context, tx Tx) error {
		so, err := tx.LockSalesOrder(ctx, id)
		if err != nil {
			return err
		}
		if so.Status != SOProcessing {
			return &TransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), To: string(SOPicked)}
		}
		for i, p := range picks {
			if !p.Qty.IsPositive() {
				return invalid(fmt.Sprintf("lines[%d].qty", i), "must be positive, got %s", p.Qty)
			}
			idx, ok := so.line(p.LineID)
			if !ok {
				return invalid("line_id", "line %s is not on sales order %s", p.LineID, so.ID)
			}
			l := &so.Lines[idx]
			picked := l.QtyPicked.Add(p.Qty)
			if picked.GreaterThan(l.QtyOrdered) {
				return invalid(fmt.Sprintf("lines[%d].qty", i), "picking %s would exceed ordered %s (already picked %s)",
					p.Qty, l.QtyOrdered, l.QtyPicked)
			}
			l.QtyPicked = picked
		}
		next := SOProcessing
		if so.fullyPicked() {
			next = SOPicked
		}
		if err := s.apply(ctx, tx, so, next); err != nil {
			return err
		}
		out = so
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(out)
	return &TransitionResult{Order: out}, nil
}

// Pack closes picking.
func (s *SalesOrderService) Pack(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	so, err := s.transition(ctx, id, SOPacked, nil)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: so}, nil
}

// Ship consumes reservations for the given per-line quantities, appending one sale move
// per line. An empty shipment list ships everything picked and not yet shipped. The
// order becomes shipped when every line is fully shipped and otherwise stays packed.
func (s *SalesOrderService) Ship(ctx context.Context, id uuid.UUID, shipments []LineQty) (*TransitionResult, error) {
	var (
		out   *SalesOrder
		moves []*StockMove
	)
	err := s.tx.run(ctx, "ship_sales_order", func(ctx context.Context, tx Tx) error {
		moves = nil
		so, err := tx.LockSalesOrder(ctx, id)
		if err != nil {
			return err
		}
		if so.Status != SOPacked {
			return &TransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), To: string(SOShipped)}
		}

		batch := shipments
		if len(batch) == 0 {
			for _, l := range so.Lines {
				if rest := l.QtyPicked.Sub(l.QtyShipped); rest.IsPositive() {
					batch = append(batch, LineQty{LineID: l.ID, Qty: rest})
				}
			}
			if len(batch) == 0 {
				return invalid("lines", "nothing left to ship on sales order %s", so.ID)
			}
		}

		// 1. Check quantities against picked totals
		for i, sh := range batch {
			if !sh.Qty.IsPositive() {
				return invalid(fmt.Sprintf("lines[%d].qty", i), "must be positive, got %s", sh.Qty)
			}
			idx, ok := so.line(sh.LineID)
			if !ok {
				return invalid("line_id", "line %s is not on sales order %s", sh.LineID, so.ID)
			}
			l := &so.Lines[idx]
			shipped := l.QtyShipped.Add(sh.Qty)
			if shipped.GreaterThan(l.QtyPicked) {
				return invalid(fmt.Sprintf("lines[%d].qty", i), "shipping %s would exceed picked %s (already shipped %s)",
					sh.Qty, l.QtyPicked, l.QtyShipped)
			}
			l.QtyShipped = shipped
		}

		// 2. Lock the order's reservations and every stock row they touch
		held, err := tx.LockReservations(ctx, so.ID)
		if err != nil {
			return err
		}
		keys := make([]StockKey, 0, len(held))
		for _, r := range held {
			keys = append(keys, r.Key())
		}
		items, err := tx.LockStockItems(ctx, keys)
		if err != nil {
			return err
		}

		// 3. Consume
		for _, sh := range batch {
			r := findReservation(held, sh.LineID)
			if r == nil {
				return fmt.Errorf("sales order %s line %s: %w", so.ID, sh.LineID, ErrReservationNotFound)
			}
			m, err := s.reservations.consumeLocked(ctx, tx, r, sh.Qty, items)
			if err != nil {
				return err
			}
			moves = append(moves, m)
		}

		next := SOPacked
		now := s.tx.now()
		if so.fullyShipped() {
			next = SOShipped
			so.ShippedAt = &now
		}
		if err := s.apply(ctx, tx, so, next); err != nil {
			return err
		}
		out = so
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(out)
	return &TransitionResult{Order: out, Moves: derefMoves(moves)}, nil
}

// Deliver marks a shipped order as delivered.
func (s *SalesOrderService) Deliver(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	so, err := s.transition(ctx, id, SODelivered, func(_ context.Context, _ Tx, so *SalesOrder, now time.Time) error {
		so.DeliveredAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: so}, nil
}

// Cancel cancels a pre-shipped order and releases its remaining reservations. No stock
// move is written.
func (s *SalesOrderService) Cancel(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	var released []Reservation
	so, err := s.transition(ctx, id, SOCancelled, func(ctx context.Context, tx Tx, so *SalesOrder, now time.Time) error {
		released = nil
		if so.Status.HoldsReservations() {
			var err error
			if released, err = s.reservations.releaseTx(ctx, tx, so.ID); err != nil {
				return err
			}
		}
		so.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: so, Reservations: released}, nil
}

func (s *SalesOrderService) GetSalesOrder(ctx context.Context, id uuid.UUID) (*SalesOrder, error) {
	return s.store.GetSalesOrder(ctx, id)
}

// ListSalesOrders lists orders, optionally filtered by status.
func (s *SalesOrderService) ListSalesOrders(ctx context.Context, status *SalesOrderStatus) ([]SalesOrder, error) {
	sos, err := s.store.ListSalesOrders(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales orders: %w", err)
	}
	return sos, nil
}

// transition locks the order, checks the edge, runs mutate and saves.
func (s *SalesOrderService) transition(ctx context.Context, id uuid.UUID, to SalesOrderStatus,
	mutate func(context.Context, Tx, *SalesOrder, time.Time) error) (*SalesOrder, error) {

	var out *SalesOrder
	err := s.tx.run(ctx, "sales_order_"+string(to), func(ctx context.Context, tx Tx) error {
		so, err := tx.LockSalesOrder(ctx, id)
		if err != nil {
			return err
		}
		if !so.Status.CanTransitionTo(to) {
			return &TransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), To: string(to)}
		}
		if mutate != nil {
			if err := mutate(ctx, tx, so, s.tx.now()); err != nil {
				return err
			}
		}
		if err := s.apply(ctx, tx, so, to); err != nil {
			return err
		}
		out = so
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(out)
	return out, nil
}

func (s *SalesOrderService) apply(ctx context.Context, tx Tx, so *SalesOrder, to SalesOrderStatus) error {
	if !so.Status.CanTransitionTo(to) {
		return &TransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), To: string(to)}
	}
	so.Status = to
	so.UpdatedAt = s.tx.now()
	if err := tx.SaveSalesOrder(ctx, so); err != nil {
		return fmt.Errorf("failed to save sales order: %w", err)
	}
	return nil
}

func (s *SalesOrderService) recordTransition(so *SalesOrder) {
	metrics.OrderTransitions.WithLabelValues("sales", string(so.Status)).Inc()
	s.tx.log.Info("sales order transition", zap.String("so_id", so.ID.String()), zap.String("status", string(so.Status)))
}
