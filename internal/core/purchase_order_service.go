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

// PurchaseOrderService drives supplier orders through draft → sent → confirmed →
// (partially_received →) received. Receipts are the only writers of purchase moves.
type PurchaseOrderService struct {
	store  Store
	ledger *Ledger
	tx     txRunner
}

func NewPurchaseOrderService(store Store, ledger *Ledger, opts ...Option) *PurchaseOrderService {
	s := newSettings(opts)
	return &PurchaseOrderService{store: store, ledger: ledger, tx: txRunner{store: store, settings: s}}
}

// CreatePurchaseOrder creates a draft order.
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, supplier string, lines []PurchaseOrderLineInput, notes string) (*PurchaseOrder, error) {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return nil, invalid("supplier", "is required")
	}
	if len(lines) == 0 {
		return nil, invalid("lines", "at least one line is required")
	}

	now := s.tx.now()
	po := &PurchaseOrder{
		ID:        uuid.New(),
		Supplier:  supplier,
		Status:    PODraft,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, in := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if in.ProductID == uuid.Nil {
			return nil, invalid(field+".product_id", "is required")
		}
		if !in.QtyOrdered.IsPositive() {
			return nil, invalid(field+".qty_ordered", "must be positive, got %s", in.QtyOrdered)
		}
		if in.UnitCost.IsNegative() {
			return nil, invalid(field+".unit_cost", "cannot be negative, got %s", in.UnitCost)
		}
		po.Lines = append(po.Lines, PurchaseOrderLine{
			ID:          uuid.New(),
			OrderID:     po.ID,
			LineNumber:  i + 1,
			ProductID:   in.ProductID,
			QtyOrdered:  in.QtyOrdered,
			QtyReceived: decimal.Zero,
			UnitCost:    in.UnitCost,
		})
	}

	err := s.tx.run(ctx, "create_purchase_order", func(ctx context.Context, tx Tx) error {
		return tx.SavePurchaseOrder(ctx, po)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save purchase order: %w", err)
	}
	s.tx.log.Info("purchase order created", zap.String("po_id", po.ID.String()), zap.String("supplier", supplier))
	return po, nil
}

// Send marks a draft order as sent to the supplier.
func (s *PurchaseOrderService) Send(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.transition(ctx, id, POSent, func(po *PurchaseOrder, now time.Time) error {
		po.SentAt = &now
		return nil
	})
}

// Confirm records the supplier's confirmation. Receipts are accepted from here on.
func (s *PurchaseOrderService) Confirm(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.transition(ctx, id, POConfirmed, func(po *PurchaseOrder, now time.Time) error {
		po.ConfirmedAt = &now
		return nil
	})
}

// Cancel is allowed from draft, sent or confirmed while nothing has been received.
func (s *PurchaseOrderService) Cancel(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.transition(ctx, id, POCancelled, func(po *PurchaseOrder, now time.Time) error {
		if po.hasReceipts() {
			return &TransitionError{Entity: "purchase order", ID: po.ID, From: string(po.Status), To: string(POCancelled)}
		}
		po.CancelledAt = &now
		return nil
	})
}

// Receive books a batch of receipts. Each line becomes one purchase move into its
// location (the default location when none is given), valued at the line's unit cost.
// The batch is atomic: one OverReceipt or stock failure rejects all of it.
func (s *PurchaseOrderService) Receive(ctx context.Context, id uuid.UUID, receipts []ReceiptLine) (*ReceiptResult, error) {
	if len(receipts) == 0 {
		return nil, invalid("lines", "at least one receipt line is required")
	}
	for i, r := range receipts {
		if !r.Qty.IsPositive() {
			return nil, invalid(fmt.Sprintf("lines[%d].qty", i), "must be positive, got %s", r.Qty)
		}
	}

	var (
		order *PurchaseOrder
		moves []*StockMove
	)
	err := s.tx.run(ctx, "receive_purchase_order", func(ctx context.Context, tx Tx) error {
		moves = nil
		po, err := tx.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		// A received order has nothing left on any line, so it falls through to
		// the over-receipt check below.
		if po.Status != POConfirmed && po.Status != POPartiallyReceived && po.Status != POReceived {
			return &TransitionError{Entity: "purchase order", ID: po.ID, From: string(po.Status), To: string(POPartiallyReceived)}
		}

		// 1. Resolve lines and locations, check cumulative quantities
		var def *Location
		inputs := make([]StockMoveInput, 0, len(receipts))
		keys := make([]StockKey, 0, len(receipts))
		incoming := make(map[uuid.UUID]decimal.Decimal)
		for _, r := range receipts {
			idx, ok := po.line(r.LineID)
			if !ok {
				return invalid("line_id", "line %s is not on purchase order %s", r.LineID, po.ID)
			}
			pl := &po.Lines[idx]
			incoming[pl.ID] = incoming[pl.ID].Add(r.Qty)
			if pl.QtyReceived.Add(incoming[pl.ID]).GreaterThan(pl.QtyOrdered) {
				return &LineError{Kind: ErrOverReceipt, OrderID: po.ID, LineID: pl.ID,
					Requested: incoming[pl.ID], Remaining: pl.Remaining()}
			}

			loc := r.LocationID
			if loc == nil {
				if def == nil {
					if def, err = defaultLocation(ctx, tx); err != nil {
						return fmt.Errorf("receipt without location: %w", err)
					}
				}
				loc = &def.ID
			}
			poID := po.ID
			in := StockMoveInput{
				ProductID:    pl.ProductID,
				ToLocationID: loc,
				LotNumber:    r.LotNumber,
				ExpiresAt:    r.ExpiresAt,
				Qty:          r.Qty,
				UnitCost:     pl.UnitCost,
				Reason:       ReasonPurchase,
				RefTable:     "purchase_orders",
				RefID:        &poID,
				Note:         fmt.Sprintf("PO %s line %d", po.ID, pl.LineNumber),
			}
			inputs = append(inputs, in)
			keys = append(keys, moveKeys(in)...)
		}

		// 2. Apply moves
		items, err := tx.LockStockItems(ctx, keys)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			m, err := s.ledger.applyMoveTx(ctx, tx, in, items, false)
			if err != nil {
				return err
			}
			moves = append(moves, m)
		}

		// 3. Update lines and status
		for i := range po.Lines {
			po.Lines[i].QtyReceived = po.Lines[i].QtyReceived.Add(incoming[po.Lines[i].ID])
		}
		now := s.tx.now()
		next := POPartiallyReceived
		if po.fullyReceived() {
			next = POReceived
			po.ReceivedAt = &now
		}
		if !po.Status.CanTransitionTo(next) {
			return &TransitionError{Entity: "purchase order", ID: po.ID, From: string(po.Status), To: string(next)}
		}
		po.Status = next
		po.UpdatedAt = now
		if err := tx.SavePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to save purchase order: %w", err)
		}
		order = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := &ReceiptResult{Order: order, Moves: derefMoves(moves)}
	metrics.OrderTransitions.WithLabelValues("purchase", string(result.Order.Status)).Inc()
	s.tx.log.Info("purchase order received",
		zap.String("po_id", id.String()),
		zap.String("status", string(result.Order.Status)),
		zap.Int("moves", len(result.Moves)))
	return result, nil
}

func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.store.GetPurchaseOrder(ctx, id)
}

// ListPurchaseOrders lists orders, optionally filtered by status.
func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context, status *PurchaseOrderStatus) ([]PurchaseOrder, error) {
	pos, err := s.store.ListPurchaseOrders(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return pos, nil
}

func (s *PurchaseOrderService) transition(ctx context.Context, id uuid.UUID, to PurchaseOrderStatus, mutate func(*PurchaseOrder, time.Time) error) (*PurchaseOrder, error) {
	var out *PurchaseOrder
	err := s.tx.run(ctx, "purchase_order_"+string(to), func(ctx context.Context, tx Tx) error {
		po, err := tx.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if !po.Status.CanTransitionTo(to) {
			return &TransitionError{Entity: "purchase order", ID: po.ID, From: string(po.Status), To: string(to)}
		}
		now := s.tx.now()
		if err := mutate(po, now); err != nil {
			return err
		}
		po.Status = to
		po.UpdatedAt = now
		if err := tx.SavePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to save purchase order: %w", err)
		}
		out = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues("purchase", string(to)).Inc()
	s.tx.log.Info("purchase order transition", zap.String("po_id", id.String()), zap.String("status", string(to)))
	return out, nil
}
