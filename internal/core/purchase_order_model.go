package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	PODraft             PurchaseOrderStatus = "draft"
	POSent              PurchaseOrderStatus = "sent"
	POConfirmed         PurchaseOrderStatus = "confirmed"
	POPartiallyReceived PurchaseOrderStatus = "partially_received"
	POReceived          PurchaseOrderStatus = "received"
	POCancelled         PurchaseOrderStatus = "cancelled"
)

var poTransitions = newTransitionTable(map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PODraft:             {POSent, POCancelled},
	POSent:              {POConfirmed, POCancelled},
	POConfirmed:         {POPartiallyReceived, POReceived, POCancelled},
	POPartiallyReceived: {POPartiallyReceived, POReceived},
}, POReceived, POCancelled)

// ParsePurchaseOrderStatus rejects strings that are not part of the status machine.
func ParsePurchaseOrderStatus(s string) (PurchaseOrderStatus, error) {
	st := PurchaseOrderStatus(s)
	if !poTransitions.known(st) {
		return "", invalid("status", "unknown purchase order status %q", s)
	}
	return st, nil
}

func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	return poTransitions.allows(s, next)
}

func (s PurchaseOrderStatus) IsTerminal() bool { return poTransitions.isTerminal(s) }

// IsOpen reports whether goods are still expected against the order.
func (s PurchaseOrderStatus) IsOpen() bool {
	return s == POSent || s == POConfirmed || s == POPartiallyReceived
}

// PurchaseOrder is a supplier order. Lines accumulate QtyReceived across partial receipts.
type PurchaseOrder struct {
	ID          uuid.UUID           `json:"id"`
	Supplier    string              `json:"supplier"`
	Status      PurchaseOrderStatus `json:"status"`
	Notes       string              `json:"notes,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	SentAt      *time.Time          `json:"sent_at,omitempty"`
	ConfirmedAt *time.Time          `json:"confirmed_at,omitempty"`
	ReceivedAt  *time.Time          `json:"received_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Lines       []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine invariant: 0 <= QtyReceived <= QtyOrdered.
type PurchaseOrderLine struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   uuid.UUID       `json:"product_id"`
	QtyOrdered  decimal.Decimal `json:"qty_ordered"`
	QtyReceived decimal.Decimal `json:"qty_received"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

func (l PurchaseOrderLine) Remaining() decimal.Decimal {
	return l.QtyOrdered.Sub(l.QtyReceived)
}

func (po *PurchaseOrder) line(id uuid.UUID) (int, bool) {
	for i := range po.Lines {
		if po.Lines[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (po *PurchaseOrder) hasReceipts() bool {
	for _, l := range po.Lines {
		if l.QtyReceived.IsPositive() {
			return true
		}
	}
	return false
}

func (po *PurchaseOrder) fullyReceived() bool {
	for _, l := range po.Lines {
		if l.QtyReceived.LessThan(l.QtyOrdered) {
			return false
		}
	}
	return true
}

// PurchaseOrderLineInput is one line of a new purchase order.
type PurchaseOrderLineInput struct {
	ProductID  uuid.UUID
	QtyOrdered decimal.Decimal
	UnitCost   decimal.Decimal
}

// ReceiptLine receives qty against one PO line. A nil LocationID receives into the
// default location of the default warehouse.
type ReceiptLine struct {
	LineID     uuid.UUID
	Qty        decimal.Decimal
	LocationID *uuid.UUID
	LotNumber  string
	ExpiresAt  *time.Time
}

// ReceiptResult is returned by PurchaseOrderService.Receive.
type ReceiptResult struct {
	Order *PurchaseOrder `json:"order"`
	Moves []StockMove    `json:"moves"`
}
