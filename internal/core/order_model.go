package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SalesOrderStatus string

const (
	SOPending    SalesOrderStatus = "pending"
	SOConfirmed  SalesOrderStatus = "confirmed"
	SOProcessing SalesOrderStatus = "processing"
	SOPicked     SalesOrderStatus = "picked"
	SOPacked     SalesOrderStatus = "packed"
	SOShipped    SalesOrderStatus = "shipped"
	SODelivered  SalesOrderStatus = "delivered"
	SOCancelled  SalesOrderStatus = "cancelled"
)

// Partial shipments keep the order in packed (packed -> packed).
var soTransitions = newTransitionTable(map[SalesOrderStatus][]SalesOrderStatus{
	SOPending:    {SOConfirmed, SOCancelled},
	SOConfirmed:  {SOProcessing, SOCancelled},
	SOProcessing: {SOProcessing, SOPicked, SOCancelled},
	SOPicked:     {SOPacked, SOCancelled},
	SOPacked:     {SOPacked, SOShipped, SOCancelled},
	SOShipped:    {SODelivered},
}, SODelivered, SOCancelled)

// ParseSalesOrderStatus rejects strings that are not part of the status machine.
func ParseSalesOrderStatus(s string) (SalesOrderStatus, error) {
	st := SalesOrderStatus(s)
	if !soTransitions.known(st) {
		return "", invalid("status", "unknown sales order status %q", s)
	}
	return st, nil
}

func (s SalesOrderStatus) CanTransitionTo(next SalesOrderStatus) bool {
	return soTransitions.allows(s, next)
}

func (s SalesOrderStatus) IsTerminal() bool { return soTransitions.isTerminal(s) }

// HoldsReservations reports whether reservations may exist in this status.
func (s SalesOrderStatus) HoldsReservations() bool {
	switch s {
	case SOConfirmed, SOProcessing, SOPicked, SOPacked:
		return true
	}
	return false
}

// SalesOrder is a customer order fulfilled out of the ledger.
type SalesOrder struct {
	ID          uuid.UUID        `json:"id"`
	Customer    string           `json:"customer"`
	Channel     string           `json:"channel"`
	Status      SalesOrderStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time       `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
	Lines       []SalesOrderLine `json:"lines"`
}

// SalesOrderLine invariant: QtyShipped <= QtyPicked <= QtyOrdered, each non-decreasing.
type SalesOrderLine struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	LineNumber int             `json:"line_number"`
	ProductID  uuid.UUID       `json:"product_id"`
	LocationID uuid.UUID       `json:"location_id"`
	LotNumber  string          `json:"lot_number,omitempty"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
	QtyPicked  decimal.Decimal `json:"qty_picked"`
	QtyShipped decimal.Decimal `json:"qty_shipped"`
}

func (so *SalesOrder) line(id uuid.UUID) (int, bool) {
	for i := range so.Lines {
		if so.Lines[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (so *SalesOrder) fullyPicked() bool {
	for _, l := range so.Lines {
		if l.QtyPicked.LessThan(l.QtyOrdered) {
			return false
		}
	}
	return true
}

func (so *SalesOrder) fullyShipped() bool {
	for _, l := range so.Lines {
		if l.QtyShipped.LessThan(l.QtyOrdered) {
			return false
		}
	}
	return true
}

// SalesOrderLineInput is one line of a new sales order. LocationID is the location the
// line reserves and ships from.
type SalesOrderLineInput struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	LotNumber  string
	QtyOrdered decimal.Decimal
}

// LineQty is a per-line quantity used by pick and ship.
type LineQty struct {
	LineID uuid.UUID
	Qty    decimal.Decimal
}

// Reservation holds quantity at one key for one sales order line.
type Reservation struct {
	ID           uuid.UUID       `json:"id"`
	SalesOrderID uuid.UUID       `json:"sales_order_id"`
	LineID       uuid.UUID       `json:"line_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	LocationID   uuid.UUID       `json:"location_id"`
	LotNumber    string          `json:"lot_number,omitempty"`
	Qty          decimal.Decimal `json:"qty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (r Reservation) Key() StockKey {
	return StockKey{ProductID: r.ProductID, LocationID: r.LocationID, LotNumber: r.LotNumber}
}

// ReservationLine is one requested hold in a reserve batch.
type ReservationLine struct {
	LineID     uuid.UUID
	ProductID  uuid.UUID
	LocationID uuid.UUID
	LotNumber  string
	Qty        decimal.Decimal
}

func (l ReservationLine) key() StockKey {
	return StockKey{ProductID: l.ProductID, LocationID: l.LocationID, LotNumber: l.LotNumber}
}

// TransitionResult is returned by sales order transitions.
type TransitionResult struct {
	Order        *SalesOrder   `json:"order"`
	Reservations []Reservation `json:"reservations,omitempty"`
	Moves        []StockMove   `json:"moves,omitempty"`
}
