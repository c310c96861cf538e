package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"inventory-ledger/internal/channelsync"
	"inventory-ledger/internal/core"
)

// ErrNotConfigured is returned by operations whose backing integration is disabled.
var ErrNotConfigured = errors.New("not configured")

// ApplicationService is the single interface the UI adapters (CLI, Web) call.
// Implementations validate requests and delegate to the core services; they contain no
// display logic.
type ApplicationService interface {
	// ── Location directory ──
	CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error)
	ListWarehouses(ctx context.Context, includeInactive bool) ([]core.Warehouse, error)
	SetDefaultWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error)
	DeactivateWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error)
	CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error)
	ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]core.Location, error)
	SetDefaultLocation(ctx context.Context, id uuid.UUID) (*core.Location, error)
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	// ── Stock ledger ──

	// GetStock returns snapshot rows for the filter; every field is optional.
	GetStock(ctx context.Context, productID, locationID *uuid.UUID) (*StockResult, error)
	GetMoveHistory(ctx context.Context, req MoveHistoryRequest) (*MoveHistoryResult, error)
	Adjust(ctx context.Context, req AdjustRequest) (*core.StockMove, error)
	Transfer(ctx context.Context, req TransferRequest) (*core.StockMove, error)
	// Recount returns a nil move when the count matches the stored quantity.
	Recount(ctx context.Context, req RecountRequest) (*core.StockMove, error)
	Reconcile(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) (*ReconcileResult, error)

	// ── Reservations ──
	Reserve(ctx context.Context, req ReserveRequest) ([]core.Reservation, error)
	Release(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error)
	ListReservations(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error)

	// ── Purchase orders ──
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status string) ([]core.PurchaseOrder, error)
	SendPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error)
	ConfirmPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, req ReceivePurchaseOrderRequest) (*core.ReceiptResult, error)
	CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error)

	// ── Sales orders ──
	CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*core.SalesOrder, error)
	GetSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error)
	ListSalesOrders(ctx context.Context, status string) ([]core.SalesOrder, error)
	ConfirmSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error)
	StartProcessing(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error)
	PickSalesOrder(ctx context.Context, req LineQtyRequest) (*core.TransitionResult, error)
	PackSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error)
	// ShipSalesOrder ships everything picked but not yet shipped when req.Lines is empty.
	ShipSalesOrder(ctx context.Context, req LineQtyRequest) (*core.TransitionResult, error)
	DeliverSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error)
	CancelSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error)

	// ── Alerts, reorder, channel feed ──
	ScanAlerts(ctx context.Context) (*core.ScanResult, error)
	ListAlerts(ctx context.Context, status string) ([]core.StockAlert, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) (core.StockAlert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID) (core.StockAlert, error)
	SuggestReorders(ctx context.Context, req ReorderRequest) ([]core.ReorderSuggestion, error)
	// PushAvailability returns ErrNotConfigured when no Kafka brokers are set.
	PushAvailability(ctx context.Context, productIDs []uuid.UUID) ([]channelsync.Availability, error)
}
