package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inventory-ledger/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	log    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/health", h.health)

		// ── Location directory ────────────────────────────────────────────────
		r.Get("/warehouses", h.apiListWarehouses)
		r.Post("/warehouses", h.apiCreateWarehouse)
		r.Post("/warehouses/{id}/default", h.apiSetDefaultWarehouse)
		r.Post("/warehouses/{id}/deactivate", h.apiDeactivateWarehouse)
		r.Get("/warehouses/{id}/locations", h.apiListLocations)
		r.Post("/warehouses/{id}/locations", h.apiCreateLocation)
		r.Post("/locations/{id}/default", h.apiSetDefaultLocation)
		r.Delete("/locations/{id}", h.apiDeleteLocation)

		// ── Stock ledger ──────────────────────────────────────────────────────
		r.Get("/stock", h.apiGetStock)
		r.Get("/stock/moves", h.apiMoveHistory)
		r.Post("/stock/adjustments", h.apiAdjust)
		r.Post("/stock/transfers", h.apiTransfer)
		r.Post("/stock/recounts", h.apiRecount)
		r.Get("/stock/reconcile", h.apiReconcile)

		// ── Reservations ──────────────────────────────────────────────────────
		r.Post("/reservations", h.apiReserve)
		r.Get("/reservations/{orderID}", h.apiListReservations)
		r.Delete("/reservations/{orderID}", h.apiRelease)

		// ── Purchase orders ───────────────────────────────────────────────────
		r.Get("/purchase-orders", h.apiListPurchaseOrders)
		r.Post("/purchase-orders", h.apiCreatePurchaseOrder)
		r.Get("/purchase-orders/{id}", h.apiGetPurchaseOrder)
		r.Post("/purchase-orders/{id}/send", h.apiSendPurchaseOrder)
		r.Post("/purchase-orders/{id}/confirm", h.apiConfirmPurchaseOrder)
		r.Post("/purchase-orders/{id}/receive", h.apiReceivePurchaseOrder)
		r.Post("/purchase-orders/{id}/cancel", h.apiCancelPurchaseOrder)

		// ── Sales orders ──────────────────────────────────────────────────────
		r.Get("/sales-orders", h.apiListSalesOrders)
		r.Post("/sales-orders", h.apiCreateSalesOrder)
		r.Get("/sales-orders/{id}", h.apiGetSalesOrder)
		r.Post("/sales-orders/{id}/confirm", h.apiConfirmSalesOrder)
		r.Post("/sales-orders/{id}/process", h.apiStartProcessing)
		r.Post("/sales-orders/{id}/pick", h.apiPickSalesOrder)
		r.Post("/sales-orders/{id}/pack", h.apiPackSalesOrder)
		r.Post("/sales-orders/{id}/ship", h.apiShipSalesOrder)
		r.Post("/sales-orders/{id}/deliver", h.apiDeliverSalesOrder)
		r.Post("/sales-orders/{id}/cancel", h.apiCancelSalesOrder)

		// ── Alerts, reorder, channel feed ─────────────────────────────────────
		r.Post("/alerts/scan", h.apiScanAlerts)
		r.Get("/alerts", h.apiListAlerts)
		r.Post("/alerts/{id}/acknowledge", h.apiAcknowledgeAlert)
		r.Post("/alerts/{id}/resolve", h.apiResolveAlert)
		r.Post("/reorder/suggestions", h.apiSuggestReorders)
		r.Post("/channel/push", h.apiPushAvailability)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status     string `json:"status"`
		Warehouses int    `json:"warehouses"`
	}
	ws, err := h.svc.ListWarehouses(r.Context(), false)
	if err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeError(w, r, "store unavailable", "UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, response{Status: "ok", Warehouses: len(ws)})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDecodeError(w, r, err)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeDecodeError(w, r, err)
	return false
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return
	}
	writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
}

// uuidParam parses the named URL parameter, writing a 400 on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, "invalid "+name+": "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// uuidQuery parses an optional query parameter. A missing value yields nil.
func uuidQuery(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, "invalid "+name+": "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}
