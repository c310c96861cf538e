package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inventory-ledger/internal/channelsync"
	"inventory-ledger/internal/core"
)

// Services bundles the core services the application layer delegates to. Publisher may
// be nil when the channel feed is disabled.
type Services struct {
	Directory    *core.LocationDirectory
	Ledger       *core.Ledger
	Reservations *core.ReservationManager
	Purchases    *core.PurchaseOrderService
	Sales        *core.SalesOrderService
	Alerts       *core.AlertService
	Reorders     *core.ReorderService
	Publisher    *channelsync.Publisher
	Thresholds   core.ThresholdPolicy
}

type appService struct {
	Services
	log *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(svc Services, log *zap.Logger) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &appService{Services: svc, log: log}
}

// NewServices wires the core services over one store.
func NewServices(store core.Store, book core.AlertBook, forecaster core.Forecaster, thresholds core.ThresholdPolicy, opts ...core.Option) Services {
	ledger := core.NewLedger(store, opts...)
	reservations := core.NewReservationManager(store, ledger, opts...)
	return Services{
		Directory:    core.NewLocationDirectory(store, opts...),
		Ledger:       ledger,
		Reservations: reservations,
		Purchases:    core.NewPurchaseOrderService(store, ledger, opts...),
		Sales:        core.NewSalesOrderService(store, reservations, opts...),
		Alerts:       core.NewAlertService(store, book, opts...),
		Reorders:     core.NewReorderService(store, forecaster, opts...),
		Thresholds:   thresholds,
	}
}

// ── Location directory ────────────────────────────────────────────────────────

func (s *appService) CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.Directory.CreateWarehouse(ctx, core.WarehouseInput{
		Code:      req.Code,
		Name:      req.Name,
		Address:   req.Address,
		IsDefault: req.IsDefault,
	})
}

func (s *appService) ListWarehouses(ctx context.Context, includeInactive bool) ([]core.Warehouse, error) {
	return s.Directory.ListWarehouses(ctx, includeInactive)
}

func (s *appService) SetDefaultWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error) {
	return s.Directory.SetDefaultWarehouse(ctx, id)
}

func (s *appService) DeactivateWarehouse(ctx context.Context, id uuid.UUID) (*core.Warehouse, error) {
	return s.Directory.DeactivateWarehouse(ctx, id)
}

func (s *appService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.Directory.CreateLocation(ctx, req.WarehouseID, core.LocationInput{
		Code:           req.Code,
		Zone:           req.Zone,
		Aisle:          req.Aisle,
		Rack:           req.Rack,
		Shelf:          req.Shelf,
		Bin:            req.Bin,
		Type:           core.LocationType(req.Type),
		CapacityVolume: req.CapacityVolume,
		CapacityWeight: req.CapacityWeight,
	})
}

func (s *appService) ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]core.Location, error) {
	return s.Directory.ListLocations(ctx, warehouseID)
}

func (s *appService) SetDefaultLocation(ctx context.Context, id uuid.UUID) (*core.Location, error) {
	return s.Directory.SetDefaultLocation(ctx, id)
}

func (s *appService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return s.Directory.DeleteLocation(ctx, id)
}

// ── Stock ledger ──────────────────────────────────────────────────────────────

func (s *appService) GetStock(ctx context.Context, productID, locationID *uuid.UUID) (*StockResult, error) {
	items, err := s.Ledger.Snapshot(ctx, core.StockFilter{ProductID: productID, LocationID: locationID})
	if err != nil {
		return nil, err
	}
	res := &StockResult{Items: items}
	for _, it := range items {
		res.TotalQty = res.TotalQty.Add(it.Qty)
		res.TotalReserved = res.TotalReserved.Add(it.ReservedQty)
		res.TotalAvailable = res.TotalAvailable.Add(it.AvailableQty)
	}
	return res, nil
}

func (s *appService) GetMoveHistory(ctx context.Context, req MoveHistoryRequest) (*MoveHistoryResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	moves, err := s.Ledger.GetMoveHistory(ctx, core.MoveFilter{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		AfterSeq:   req.AfterSeq,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	res := &MoveHistoryResult{Moves: moves}
	limit := req.Limit
	if limit == 0 {
		limit = core.DefaultHistoryLimit
	}
	if len(moves) == limit {
		res.NextAfterSeq = moves[len(moves)-1].Seq
	}
	return res, nil
}

func (s *appService) Adjust(ctx context.Context, req AdjustRequest) (*core.StockMove, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	reason := core.ReasonAdjustment
	if req.Reason != "" {
		reason = core.MoveReason(req.Reason)
	}
	return s.Ledger.Adjust(ctx, core.AdjustmentInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		LotNumber:  req.LotNumber,
		Delta:      req.Delta,
		UnitCost:   req.UnitCost,
		Reason:     reason,
		Note:       req.Note,
	})
}

func (s *appService) Transfer(ctx context.Context, req TransferRequest) (*core.StockMove, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.Ledger.Transfer(ctx, req.ProductID, req.FromLocationID, req.ToLocationID, req.LotNumber, req.Qty, req.Note)
}

func (s *appService) Recount(ctx context.Context, req RecountRequest) (*core.StockMove, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	key := core.StockKey{ProductID: req.ProductID, LocationID: req.LocationID, LotNumber: req.LotNumber}
	return s.Ledger.Recount(ctx, key, req.Counted, req.Note)
}

func (s *appService) Reconcile(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) (*ReconcileResult, error) {
	diffs, err := s.Ledger.Reconcile(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if len(diffs) > 0 {
		s.log.Warn("ledger discrepancies found", zap.String("product_id", productID.String()), zap.Int("count", len(diffs)))
	}
	return &ReconcileResult{Consistent: len(diffs) == 0, Discrepancies: diffs}, nil
}

// ── Reservations ──────────────────────────────────────────────────────────────

func (s *appService) Reserve(ctx context.Context, req ReserveRequest) ([]core.Reservation, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	lines := make([]core.ReservationLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.ReservationLine{
			LineID:     l.LineID,
			ProductID:  l.ProductID,
			LocationID: l.LocationID,
			LotNumber:  l.LotNumber,
			Qty:        l.Qty,
		}
	}
	return s.Reservations.Reserve(ctx, req.OrderID, lines)
}

func (s *appService) Release(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	return s.Reservations.Release(ctx, orderID)
}

func (s *appService) ListReservations(ctx context.Context, orderID uuid.UUID) ([]core.Reservation, error) {
	return s.Reservations.ListReservations(ctx, orderID)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	lines := make([]core.PurchaseOrderLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.PurchaseOrderLineInput{ProductID: l.ProductID, QtyOrdered: l.QtyOrdered, UnitCost: l.UnitCost}
	}
	return s.Purchases.CreatePurchaseOrder(ctx, req.Supplier, lines, req.Notes)
}

func (s *appService) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return s.Purchases.GetPurchaseOrder(ctx, id)
}

func (s *appService) ListPurchaseOrders(ctx context.Context, status string) ([]core.PurchaseOrder, error) {
	var filter *core.PurchaseOrderStatus
	if status != "" {
		st, err := core.ParsePurchaseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	return s.Purchases.ListPurchaseOrders(ctx, filter)
}

func (s *appService) SendPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return s.Purchases.Send(ctx, id)
}

func (s *appService) ConfirmPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return s.Purchases.Confirm(ctx, id)
}

func (s *appService) ReceivePurchaseOrder(ctx context.Context, req ReceivePurchaseOrderRequest) (*core.ReceiptResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	receipts := make([]core.ReceiptLine, len(req.Lines))
	for i, l := range req.Lines {
		receipts[i] = core.ReceiptLine{
			LineID:     l.LineID,
			Qty:        l.Qty,
			LocationID: l.LocationID,
			LotNumber:  l.LotNumber,
			ExpiresAt:  l.ExpiresAt,
		}
	}
	return s.Purchases.Receive(ctx, req.ID, receipts)
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (*core.PurchaseOrder, error) {
	return s.Purchases.Cancel(ctx, id)
}

// ── Sales orders ──────────────────────────────────────────────────────────────

func (s *appService) CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*core.SalesOrder, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	lines := make([]core.SalesOrderLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.SalesOrderLineInput{
			ProductID:  l.ProductID,
			LocationID: l.LocationID,
			LotNumber:  l.LotNumber,
			QtyOrdered: l.QtyOrdered,
		}
	}
	return s.Sales.CreateSalesOrder(ctx, req.Customer, req.Channel, lines, req.Notes)
}

func (s *appService) GetSalesOrder(ctx context.Context, id uuid.UUID) (*core.SalesOrder, error) {
	return s.Sales.GetSalesOrder(ctx, id)
}

func (s *appService) ListSalesOrders(ctx context.Context, status string) ([]core.SalesOrder, error) {
	var filter *core.SalesOrderStatus
	if status != "" {
		st, err := core.ParseSalesOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	return s.Sales.ListSalesOrders(ctx, filter)
}

func (s *appService) ConfirmSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error) {
	return s.Sales.Confirm(ctx, id)
}

func (s *appService) StartProcessing(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error) {
	return s.Sales.StartProcessing(ctx, id)
}

func (s *appService) PickSalesOrder(ctx context.Context, req LineQtyRequest) (*core.TransitionResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, &core.ValidationError{Field: "lines", Reason: "is required"}
	}
	return s.Sales.Pick(ctx, req.ID, lineQtys(req.Lines))
}

func (s *appService) PackSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error) {
	return s.Sales.Pack(ctx, id)
}

func (s *appService) ShipSalesOrder(ctx context.Context, req LineQtyRequest) (*core.TransitionResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.Sales.Ship(ctx, req.ID, lineQtys(req.Lines))
}

func (s *appService) DeliverSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error) {
	return s.Sales.Deliver(ctx, id)
}

func (s *appService) CancelSalesOrder(ctx context.Context, id uuid.UUID) (*core.TransitionResult, error) {
	return s.Sales.Cancel(ctx, id)
}

func lineQtys(in []LineQtyEntry) []core.LineQty {
	out := make([]core.LineQty, len(in))
	for i, l := range in {
		out[i] = core.LineQty{LineID: l.LineID, Qty: l.Qty}
	}
	return out
}

// ── Alerts, reorder, channel feed ─────────────────────────────────────────────

func (s *appService) ScanAlerts(ctx context.Context) (*core.ScanResult, error) {
	return s.Alerts.Scan(ctx, s.Thresholds)
}

func (s *appService) ListAlerts(ctx context.Context, status string) ([]core.StockAlert, error) {
	var filter *core.AlertStatus
	if status != "" {
		st, err := core.ParseAlertStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	return s.Alerts.List(ctx, filter)
}

func (s *appService) AcknowledgeAlert(ctx context.Context, id uuid.UUID) (core.StockAlert, error) {
	return s.Alerts.Acknowledge(ctx, id)
}

func (s *appService) ResolveAlert(ctx context.Context, id uuid.UUID) (core.StockAlert, error) {
	return s.Alerts.Resolve(ctx, id)
}

func (s *appService) SuggestReorders(ctx context.Context, req ReorderRequest) ([]core.ReorderSuggestion, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.Reorders.SuggestReorders(ctx, req.ProductIDs, req.PeriodDays)
}

func (s *appService) PushAvailability(ctx context.Context, productIDs []uuid.UUID) ([]channelsync.Availability, error) {
	if s.Publisher == nil {
		return nil, fmt.Errorf("channel sync: %w", ErrNotConfigured)
	}
	return s.Publisher.Push(ctx, productIDs)
}

