package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateWarehouseRequest is the input for adding a warehouse.
type CreateWarehouseRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"required,max=200"`
	Address   string `json:"address" validate:"max=500"`
	IsDefault bool   `json:"is_default"`
}

// CreateLocationRequest is the input for adding a location to a warehouse.
type CreateLocationRequest struct {
	WarehouseID    uuid.UUID        `json:"warehouse_id" validate:"required"`
	Code           string           `json:"code" validate:"required,max=64"`
	Zone           string           `json:"zone" validate:"max=32"`
	Aisle          string           `json:"aisle" validate:"max=32"`
	Rack           string           `json:"rack" validate:"max=32"`
	Shelf          string           `json:"shelf" validate:"max=32"`
	Bin            string           `json:"bin" validate:"max=32"`
	Type           string           `json:"location_type" validate:"omitempty,oneof=storage staging receiving damage returns"`
	CapacityVolume *decimal.Decimal `json:"capacity_volume" validate:"omitempty,gte=0"`
	CapacityWeight *decimal.Decimal `json:"capacity_weight" validate:"omitempty,gte=0"`
}

// MoveHistoryRequest pages through the moves of one product. AfterSeq is exclusive.
type MoveHistoryRequest struct {
	ProductID  uuid.UUID  `json:"product_id" validate:"required"`
	LocationID *uuid.UUID `json:"location_id"`
	AfterSeq   int64      `json:"after_seq" validate:"gte=0"`
	Limit      int        `json:"limit" validate:"gte=0,lte=1000"`
}

// AdjustRequest is a manual correction. Delta is signed and non-zero.
type AdjustRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"max=64"`
	Delta      decimal.Decimal `json:"delta" validate:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Reason     string          `json:"reason" validate:"omitempty,oneof=adjustment return damage recount"`
	Note       string          `json:"note" validate:"max=500"`
}

type TransferRequest struct {
	ProductID      uuid.UUID       `json:"product_id" validate:"required"`
	FromLocationID uuid.UUID       `json:"from_location_id" validate:"required"`
	ToLocationID   uuid.UUID       `json:"to_location_id" validate:"required"`
	LotNumber      string          `json:"lot_number" validate:"max=64"`
	Qty            decimal.Decimal `json:"qty" validate:"gt=0"`
	Note           string          `json:"note" validate:"max=500"`
}

type RecountRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"max=64"`
	Counted    decimal.Decimal `json:"counted" validate:"gte=0"`
	Note       string          `json:"note" validate:"max=500"`
}

// ReserveRequest holds stock for the lines of one sales order in a single batch.
type ReserveRequest struct {
	OrderID uuid.UUID            `json:"order_id" validate:"required"`
	Lines   []ReserveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type ReserveLineRequest struct {
	LineID     uuid.UUID       `json:"line_id" validate:"required"`
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"max=64"`
	Qty        decimal.Decimal `json:"qty" validate:"gt=0"`
}

// CreatePurchaseOrderRequest is the input for creating a draft purchase order.
type CreatePurchaseOrderRequest struct {
	Supplier string          `json:"supplier" validate:"required,max=200"`
	Notes    string          `json:"notes" validate:"max=1000"`
	Lines    []POLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type POLineRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	QtyOrdered decimal.Decimal `json:"qty_ordered" validate:"gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

// ReceivePurchaseOrderRequest records goods received against a confirmed purchase order.
type ReceivePurchaseOrderRequest struct {
	ID    uuid.UUID            `json:"-" validate:"required"`
	Lines []ReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReceiptLineRequest receives qty against one PO line. LocationID is optional and
// defaults to the default location of the default warehouse.
type ReceiptLineRequest struct {
	LineID     uuid.UUID       `json:"line_id" validate:"required"`
	Qty        decimal.Decimal `json:"qty" validate:"gt=0"`
	LocationID *uuid.UUID      `json:"location_id"`
	LotNumber  string          `json:"lot_number" validate:"max=64"`
	ExpiresAt  *time.Time      `json:"expires_at"`
}

// CreateSalesOrderRequest is the input for creating a pending sales order.
type CreateSalesOrderRequest struct {
	Customer string          `json:"customer" validate:"required,max=200"`
	Channel  string          `json:"channel" validate:"max=64"`
	Notes    string          `json:"notes" validate:"max=1000"`
	Lines    []SOLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SOLineRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"max=64"`
	QtyOrdered decimal.Decimal `json:"qty_ordered" validate:"gt=0"`
}

// LineQtyRequest carries per-line quantities for pick and ship.
type LineQtyRequest struct {
	ID    uuid.UUID      `json:"-" validate:"required"`
	Lines []LineQtyEntry `json:"lines" validate:"dive"`
}

type LineQtyEntry struct {
	LineID uuid.UUID       `json:"line_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty" validate:"gt=0"`
}

// ReorderRequest asks for purchase suggestions. No product ids means every stocked
// or inbound product.
type ReorderRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
	PeriodDays int         `json:"period_days" validate:"required,min=1,max=365"`
}
