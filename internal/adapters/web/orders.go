package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

// ── Reservations ──────────────────────────────────────────────────────────────

func (h *Handler) apiReserve(w http.ResponseWriter, r *http.Request) {
	var req app.ReserveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Reserve(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, res)
}

func (h *Handler) apiListReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	res, err := h.svc.ListReservations(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	res, err := h.svc.Release(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

// apiListPurchaseOrders handles GET /api/purchase-orders?status=.
func (h *Handler) apiListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	pos, err := h.svc.ListPurchaseOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, pos)
}

func (h *Handler) apiCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, po)
}

func (h *Handler) apiGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.GetPurchaseOrder)
}

func (h *Handler) apiSendPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.SendPurchaseOrder)
}

func (h *Handler) apiConfirmPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.ConfirmPurchaseOrder)
}

func (h *Handler) apiCancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.CancelPurchaseOrder)
}

// apiReceivePurchaseOrder handles POST /api/purchase-orders/{id}/receive.
func (h *Handler) apiReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req app.ReceivePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id
	res, err := h.svc.ReceivePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) purchaseOrderAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*core.PurchaseOrder, error)) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	po, err := fn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

// ── Sales orders ──────────────────────────────────────────────────────────────

// apiListSalesOrders handles GET /api/sales-orders?status=.
func (h *Handler) apiListSalesOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListSalesOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

func (h *Handler) apiCreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSalesOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	so, err := h.svc.CreateSalesOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, so)
}

func (h *Handler) apiGetSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	so, err := h.svc.GetSalesOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, so)
}

func (h *Handler) apiConfirmSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.ConfirmSalesOrder)
}

func (h *Handler) apiStartProcessing(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.StartProcessing)
}

func (h *Handler) apiPackSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.PackSalesOrder)
}

func (h *Handler) apiDeliverSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.DeliverSalesOrder)
}

func (h *Handler) apiCancelSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.CancelSalesOrder)
}

// apiPickSalesOrder handles POST /api/sales-orders/{id}/pick.
func (h *Handler) apiPickSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderLines(w, r, false, h.svc.PickSalesOrder)
}

// apiShipSalesOrder handles POST /api/sales-orders/{id}/ship. An empty body ships
// everything picked so far.
func (h *Handler) apiShipSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderLines(w, r, true, h.svc.ShipSalesOrder)
}

func (h *Handler) salesOrderAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*core.TransitionResult, error)) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	res, err := fn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) salesOrderLines(w http.ResponseWriter, r *http.Request, bodyOptional bool, fn func(context.Context, app.LineQtyRequest) (*core.TransitionResult, error)) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req app.LineQtyRequest
	decode := decodeJSON
	if bodyOptional {
		decode = decodeOptionalJSON
	}
	if !decode(w, r, &req) {
		return
	}
	req.ID = id
	res, err := fn(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
