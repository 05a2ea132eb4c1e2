// Package http exposes the engine's operations to the storefront and the
// back-office UI: reservations, stock reads, alerts, forecasts and the
// manual sync trigger.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/usecase"
	"github.com/takato23/venezia-sub004/internal/worker"
)

type Handler struct {
	ledger     *ledger.Ledger
	manager    *usecase.ReservationManager
	alerts     *usecase.AlertEngine
	forecaster *usecase.Forecaster
	scheduler  *worker.SyncScheduler
	logger     *slog.Logger
}

func NewHandler(
	l *ledger.Ledger,
	manager *usecase.ReservationManager,
	alerts *usecase.AlertEngine,
	forecaster *usecase.Forecaster,
	scheduler *worker.SyncScheduler,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ledger:     l,
		manager:    manager,
		alerts:     alerts,
		forecaster: forecaster,
		scheduler:  scheduler,
		logger:     logger,
	}
}

// Router returns an http.Handler with all engine routes configured.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /stock/reservations", h.handleReserve)
	mux.HandleFunc("POST /stock/reservations/{orderID}/confirm", h.handleConfirm)
	mux.HandleFunc("DELETE /stock/reservations/{orderID}", h.handleRelease)

	mux.HandleFunc("GET /stock/products/{productID}", h.handleProduct)
	mux.HandleFunc("GET /stock/products/{productID}/forecast", h.handleForecast)
	mux.HandleFunc("GET /stock/listings", h.handleListings)
	mux.HandleFunc("GET /stock/alerts", h.handleAlerts)

	mux.HandleFunc("POST /stock/sync", h.handleSyncTrigger)
	mux.HandleFunc("GET /stock/sync/status", h.handleSyncStatus)

	return mux
}

type reserveRequest struct {
	OrderID string               `json:"orderId"`
	Items   []reserveRequestItem `json:"items"`
}

type reserveRequestItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type reserveResponse struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	// Walk-in sales arrive without an order number.
	if req.OrderID == "" {
		req.OrderID = uuid.NewString()
	}

	items := make([]domain.ReservationItem, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "each item needs a product id and a positive quantity")
			return
		}
		items[i] = domain.ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	err := h.manager.ReserveItems(r.Context(), req.OrderID, items)
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"productId": insufficient.ProductID,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.Is(err, domain.ErrIdempotencyKeyInFlight):
		writeError(w, http.StatusConflict, "order is already being processed")
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Error("reserve failed", slog.String("order_id", req.OrderID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "reservation failed")
	default:
		writeJSON(w, http.StatusCreated, reserveResponse{OrderID: req.OrderID})
	}
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	fulfilled, err := h.manager.Confirm(r.Context(), orderID)
	if errors.Is(err, domain.ErrIdempotencyKeyInFlight) {
		writeError(w, http.StatusConflict, "order is already being processed")
		return
	}
	if err != nil {
		h.logger.Error("confirm failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}

	type fulfilledItem struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	items := make([]fulfilledItem, len(fulfilled))
	for i, res := range fulfilled {
		items[i] = fulfilledItem{ProductID: res.ProductID, Quantity: res.Quantity}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "fulfilled": items})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	// Idempotent by contract: releasing an unknown order is not an error.
	h.manager.ReleaseAll(r.Context(), orderID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")
	snap, ok := h.ledger.SnapshotOf(productID)
	if !ok {
		// Read paths stay total: unknown products report zero stock.
		snap = domain.ProductSnapshot{ID: productID}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId":      snap.ID,
		"name":           snap.Name,
		"physicalStock":  snap.Physical,
		"reservedStock":  snap.Reserved,
		"availableStock": snap.Available,
		"reservations":   h.ledger.Reservations(productID),
	})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")
	forecast, err := h.forecaster.PredictFor(r.Context(), productID)
	if errors.Is(err, domain.ErrUnknownProduct) {
		writeError(w, http.StatusNotFound, "unknown product")
		return
	}
	if err != nil {
		h.logger.Error("forecast failed", slog.String("product_id", productID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "forecast unavailable")
		return
	}

	resp := map[string]any{"productId": productID}
	if forecast.Unbounded {
		resp["daysUntilStockout"] = nil
		resp["stockoutDate"] = nil
	} else {
		resp["daysUntilStockout"] = forecast.Days
		resp["stockoutDate"] = forecast.Date.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	type listing struct {
		ProductID      string    `json:"productId"`
		Name           string    `json:"name"`
		AvailableStock int       `json:"availableStock"`
		AutoDisable    bool      `json:"autoDisable"`
		LastSynced     time.Time `json:"lastSynced"`
	}

	listings := h.scheduler.Listings()
	out := make([]listing, len(listings))
	for i, l := range listings {
		out[i] = listing{
			ProductID:      l.ProductID,
			Name:           l.Name,
			AvailableStock: l.AvailableStock,
			AutoDisable:    l.AutoDisable,
			LastSynced:     l.LastSynced,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": out})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.alerts.Evaluate()
	type alertEntry struct {
		ProductID      string    `json:"productId"`
		ProductName    string    `json:"productName"`
		Level          string    `json:"level"`
		Message        string    `json:"message"`
		AvailableStock int       `json:"availableStock"`
		Timestamp      time.Time `json:"timestamp"`
	}
	out := make([]alertEntry, len(alerts))
	for i, a := range alerts {
		out[i] = alertEntry{
			ProductID:      a.ProductID,
			ProductName:    a.ProductName,
			Level:          string(a.Level),
			Message:        a.Message,
			AvailableStock: a.AvailableStock,
			Timestamp:      a.Timestamp,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func (h *Handler) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.SyncOnce(r.Context())
	if errors.Is(err, domain.ErrSyncInProgress) {
		writeError(w, http.StatusConflict, "a sync cycle is already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pushed": result.Pushed,
		"pulled": result.Pulled,
		"alerts": len(result.Alerts),
	})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, lastSync := h.scheduler.Status()
	resp := map[string]any{"status": string(status)}
	if lastSync.IsZero() {
		resp["lastSync"] = nil
	} else {
		resp["lastSync"] = lastSync
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
