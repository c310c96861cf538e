package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Warehouse is a physical site. Exactly one active warehouse carries IsDefault.
type Warehouse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type LocationType string

const (
	LocationStorage   LocationType = "storage"
	LocationStaging   LocationType = "staging"
	LocationReceiving LocationType = "receiving"
	LocationDamage    LocationType = "damage"
	LocationReturns   LocationType = "returns"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationStorage, LocationStaging, LocationReceiving, LocationDamage, LocationReturns:
		return true
	}
	return false
}

// Location is a bin/shelf inside a warehouse. Capacity fields are advisory only.
type Location struct {
	ID             uuid.UUID        `json:"id"`
	WarehouseID    uuid.UUID        `json:"warehouse_id"`
	Code           string           `json:"code"`
	Zone           string           `json:"zone,omitempty"`
	Aisle          string           `json:"aisle,omitempty"`
	Rack           string           `json:"rack,omitempty"`
	Shelf          string           `json:"shelf,omitempty"`
	Bin            string           `json:"bin,omitempty"`
	Type           LocationType     `json:"location_type"`
	CapacityVolume *decimal.Decimal `json:"capacity_volume,omitempty"`
	CapacityWeight *decimal.Decimal `json:"capacity_weight,omitempty"`
	IsDefault      bool             `json:"is_default"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
}

// StockKey identifies a StockItem row. An empty LotNumber means "no lot".
type StockKey struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	LotNumber  string
}

func (k StockKey) String() string {
	return k.ProductID.String() + "/" + k.LocationID.String() + "/" + k.LotNumber
}

// Less orders keys for lock acquisition.
func (k StockKey) Less(o StockKey) bool {
	if c := strings.Compare(k.ProductID.String(), o.ProductID.String()); c != 0 {
		return c < 0
	}
	if c := strings.Compare(k.LocationID.String(), o.LocationID.String()); c != 0 {
		return c < 0
	}
	return k.LotNumber < o.LotNumber
}

// StockItem is the materialized balance for one key. It is only ever changed by the
// ledger and the reservation manager.
//
// Invariant: AvailableQty = Qty - ReservedQty, ReservedQty >= 0, AvailableQty >= 0.
type StockItem struct {
	ProductID        uuid.UUID       `json:"product_id"`
	LocationID       uuid.UUID       `json:"location_id"`
	LotNumber        string          `json:"lot_number,omitempty"`
	Qty              decimal.Decimal `json:"qty"`
	ReservedQty      decimal.Decimal `json:"reserved_qty"`
	AvailableQty     decimal.Decimal `json:"available_qty"`
	CostPerUnit      decimal.Decimal `json:"cost_per_unit"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	LastMovementDate *time.Time      `json:"last_movement_date,omitempty"`
	Version          int64           `json:"version"`
}

func (s *StockItem) Key() StockKey {
	return StockKey{ProductID: s.ProductID, LocationID: s.LocationID, LotNumber: s.LotNumber}
}

// Exists reports whether the row has been persisted at least once.
func (s *StockItem) Exists() bool { return s.Version > 0 }

func (s *StockItem) recompute() {
	s.AvailableQty = s.Qty.Sub(s.ReservedQty)
}

func (s *StockItem) checkInvariant() error {
	if s.ReservedQty.IsNegative() || s.AvailableQty.IsNegative() || !s.AvailableQty.Equal(s.Qty.Sub(s.ReservedQty)) {
		return &StockError{
			Kind:       ErrInsufficientStock,
			ProductID:  s.ProductID,
			LocationID: s.LocationID,
			LotNumber:  s.LotNumber,
			Requested:  s.ReservedQty,
			Available:  s.Qty,
		}
	}
	return nil
}

func newStockItem(k StockKey) *StockItem {
	return &StockItem{
		ProductID:  k.ProductID,
		LocationID: k.LocationID,
		LotNumber:  k.LotNumber,
	}
}

type MoveReason string

const (
	ReasonPurchase   MoveReason = "purchase"
	ReasonSale       MoveReason = "sale"
	ReasonAdjustment MoveReason = "adjustment"
	ReasonTransfer   MoveReason = "transfer"
	ReasonReturn     MoveReason = "return"
	ReasonDamage     MoveReason = "damage"
	ReasonRecount    MoveReason = "recount"
)

func (r MoveReason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonSale, ReasonAdjustment, ReasonTransfer, ReasonReturn, ReasonDamage, ReasonRecount:
		return true
	}
	return false
}

// StockMove is an immutable ledger entry. Qty is always positive; direction comes from
// which of FromLocationID/ToLocationID is set.
type StockMove struct {
	ID             uuid.UUID       `json:"id"`
	Seq            int64           `json:"seq"`
	ProductID      uuid.UUID       `json:"product_id"`
	FromLocationID *uuid.UUID      `json:"from_location_id,omitempty"`
	ToLocationID   *uuid.UUID      `json:"to_location_id,omitempty"`
	LotNumber      string          `json:"lot_number,omitempty"`
	Qty            decimal.Decimal `json:"qty"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Reason         MoveReason      `json:"reason"`
	RefTable       string          `json:"ref_table,omitempty"`
	RefID          *uuid.UUID      `json:"ref_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DeltaFor returns the signed quantity change this move applies to k.
func (m StockMove) DeltaFor(k StockKey) decimal.Decimal {
	if m.ProductID != k.ProductID || m.LotNumber != k.LotNumber {
		return decimal.Zero
	}
	delta := decimal.Zero
	if m.ToLocationID != nil && *m.ToLocationID == k.LocationID {
		delta = delta.Add(m.Qty)
	}
	if m.FromLocationID != nil && *m.FromLocationID == k.LocationID {
		delta = delta.Sub(m.Qty)
	}
	return delta
}

// StockMoveInput is the request to append one move.
type StockMoveInput struct {
	ProductID      uuid.UUID
	FromLocationID *uuid.UUID
	ToLocationID   *uuid.UUID
	LotNumber      string
	ExpiresAt      *time.Time
	Qty            decimal.Decimal
	UnitCost       decimal.Decimal
	Reason         MoveReason
	RefTable       string
	RefID          *uuid.UUID
	Note           string
}

func (in StockMoveInput) validate() error {
	if in.ProductID == uuid.Nil {
		return invalid("product_id", "is required")
	}
	if !in.Qty.IsPositive() {
		return invalid("qty", "must be positive, got %s", in.Qty)
	}
	if in.UnitCost.IsNegative() {
		return invalid("unit_cost", "cannot be negative, got %s", in.UnitCost)
	}
	if in.FromLocationID == nil && in.ToLocationID == nil {
		return invalid("location", "a move needs a source or a destination")
	}
	if in.FromLocationID != nil && in.ToLocationID != nil && *in.FromLocationID == *in.ToLocationID {
		return invalid("location", "transfer source and destination are the same")
	}
	if !in.Reason.Valid() {
		return invalid("reason", "unknown reason %q", in.Reason)
	}
	return nil
}

// AdjustmentInput is a manual correction. Delta is signed.
type AdjustmentInput struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	LotNumber  string
	Delta      decimal.Decimal
	UnitCost   decimal.Decimal
	Reason     MoveReason
	Note       string
}

// MoveFilter pages through the movement log. AfterSeq is exclusive.
type MoveFilter struct {
	ProductID  uuid.UUID
	LocationID *uuid.UUID
	AfterSeq   int64
	Limit      int
}

// StockFilter selects snapshot rows. Nil fields match everything.
type StockFilter struct {
	ProductID  *uuid.UUID
	LocationID *uuid.UUID
}

// Discrepancy is a key whose materialized qty differs from the fold of its moves.
type Discrepancy struct {
	Key       StockKey        `json:"key"`
	StoredQty decimal.Decimal `json:"stored_qty"`
	ReplayQty decimal.Decimal `json:"replay_qty"`
	MoveCount int             `json:"move_count"`
}
