package web

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"inventory-ledger/internal/app"
)

// ── Location directory ────────────────────────────────────────────────────────

// apiListWarehouses handles GET /api/warehouses?include_inactive=true.
func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("include_inactive") == "true"
	ws, err := h.svc.ListWarehouses(r.Context(), all)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, ws)
}

func (h *Handler) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req app.CreateWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.svc.CreateWarehouse(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, wh)
}

func (h *Handler) apiSetDefaultWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	wh, err := h.svc.SetDefaultWarehouse(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, wh)
}

func (h *Handler) apiDeactivateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	wh, err := h.svc.DeactivateWarehouse(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, wh)
}

func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	locs, err := h.svc.ListLocations(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, locs)
}

// apiCreateLocation handles POST /api/warehouses/{id}/locations. The warehouse comes
// from the path; any warehouse_id in the body is ignored.
func (h *Handler) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req app.CreateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.WarehouseID = id
	loc, err := h.svc.CreateLocation(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, loc)
}

func (h *Handler) apiSetDefaultLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	loc, err := h.svc.SetDefaultLocation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, loc)
}

func (h *Handler) apiDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteLocation(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Stock ledger ──────────────────────────────────────────────────────────────

// apiGetStock handles GET /api/stock?product_id=&location_id=.
func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidQuery(w, r, "product_id")
	if !ok {
		return
	}
	locationID, ok := uuidQuery(w, r, "location_id")
	if !ok {
		return
	}
	res, err := h.svc.GetStock(r.Context(), productID, locationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiMoveHistory handles GET /api/stock/moves?product_id=&location_id=&after_seq=&limit=.
func (h *Handler) apiMoveHistory(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidQuery(w, r, "product_id")
	if !ok {
		return
	}
	locationID, ok := uuidQuery(w, r, "location_id")
	if !ok {
		return
	}
	req := app.MoveHistoryRequest{LocationID: locationID}
	if productID != nil {
		req.ProductID = *productID
	}
	q := r.URL.Query()
	if v := q.Get("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, "invalid after_seq", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.AfterSeq = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "invalid limit", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Limit = n
	}
	res, err := h.svc.GetMoveHistory(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiAdjust(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	move, err := h.svc.Adjust(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, move)
}

func (h *Handler) apiTransfer(w http.ResponseWriter, r *http.Request) {
	var req app.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	move, err := h.svc.Transfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, move)
}

// apiRecount handles POST /api/stock/recounts. A count that matches the stored quantity
// records nothing and answers {"move": null}.
func (h *Handler) apiRecount(w http.ResponseWriter, r *http.Request) {
	var req app.RecountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	move, err := h.svc.Recount(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"move": move})
}

// apiReconcile handles GET /api/stock/reconcile?product_id=&location_id=.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidQuery(w, r, "product_id")
	if !ok {
		return
	}
	if productID == nil {
		writeError(w, r, "product_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	locationID, ok := uuidQuery(w, r, "location_id")
	if !ok {
		return
	}
	res, err := h.svc.Reconcile(r.Context(), *productID, locationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Alerts, reorder, channel feed ─────────────────────────────────────────────

func (h *Handler) apiScanAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ScanAlerts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.ListAlerts(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, alerts)
}

func (h *Handler) apiAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.AcknowledgeAlert(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, a)
}

func (h *Handler) apiResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.ResolveAlert(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, a)
}

func (h *Handler) apiSuggestReorders(w http.ResponseWriter, r *http.Request) {
	var req app.ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sugs, err := h.svc.SuggestReorders(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sugs)
}

// apiPushAvailability handles POST /api/channel/push with an optional
// {"product_ids": [...]} body.
func (h *Handler) apiPushAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductIDs []uuid.UUID `json:"product_ids"`
	}
	if !decodeOptionalJSON(w, r, &body) {
		return
	}
	sent, err := h.svc.PushAvailability(r.Context(), body.ProductIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sent)
}
