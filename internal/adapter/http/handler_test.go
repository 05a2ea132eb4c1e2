package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/usecase"
	"github.com/takato23/venezia-sub004/internal/worker"
)

type stubRemote struct {
	stock []domain.PhysicalStock
}

func (s *stubRemote) PushStockUpdates(ctx context.Context, updates []domain.StockUpdate) error {
	return nil
}

func (s *stubRemote) FetchPhysicalStock(ctx context.Context, ids []string) ([]domain.PhysicalStock, error) {
	return s.stock, nil
}

func newTestHandler(t *testing.T, stock map[string]int) (*Handler, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	for id, qty := range stock {
		if err := l.SetPhysicalStock(id, qty); err != nil {
			t.Fatal(err)
		}
	}
	manager := usecase.NewReservationManager(l, nil, usecase.ReservationManagerOpts{})
	alerts := usecase.NewAlertEngine(l, domain.DefaultAlertThresholds())
	forecaster := usecase.NewForecaster(l, nil, 7)
	scheduler := worker.NewSyncScheduler(l, &stubRemote{}, alerts, nil, nil, nil, time.Minute, time.Second)
	return NewHandler(l, manager, alerts, forecaster, scheduler, nil), l
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHandleReserve(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 10})

	rec := doRequest(t, h, http.MethodPost, "/stock/reservations",
		`{"orderId":"order1","items":[{"productId":"vanilla","quantity":4}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["orderId"] != "order1" {
		t.Errorf("orderId = %v, want order1", body["orderId"])
	}
	if got := l.AvailableStock("vanilla"); got != 6 {
		t.Errorf("available = %d, want 6", got)
	}
}

func TestHandleReserveGeneratesOrderID(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 10})

	rec := doRequest(t, h, http.MethodPost, "/stock/reservations",
		`{"items":[{"productId":"vanilla","quantity":1}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	body := decodeBody(t, rec)
	orderID, _ := body["orderId"].(string)
	if orderID == "" {
		t.Error("no order ID generated for a walk-in reservation")
	}
}

func TestHandleReserveInsufficientStock(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 10})
	if err := l.Reserve("vanilla", "existing", 7); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodPost, "/stock/reservations",
		`{"orderId":"order1","items":[{"productId":"vanilla","quantity":5}]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["productId"] != "vanilla" {
		t.Errorf("productId = %v, want vanilla", body["productId"])
	}
	if body["requested"] != float64(5) || body["available"] != float64(3) {
		t.Errorf("requested/available = %v/%v, want 5/3", body["requested"], body["available"])
	}
}

func TestHandleReserveValidation(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 10})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"no items", `{"orderId":"order1","items":[]}`},
		{"zero quantity", `{"orderId":"order1","items":[{"productId":"vanilla","quantity":0}]}`},
		{"missing product id", `{"orderId":"order1","items":[{"quantity":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/stock/reservations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleConfirm(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 10})
	if err := l.Reserve("vanilla", "order1", 4); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodPost, "/stock/reservations/order1/confirm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	fulfilled, _ := body["fulfilled"].([]any)
	if len(fulfilled) != 1 {
		t.Errorf("fulfilled = %v, want one item", body["fulfilled"])
	}
	if got := l.PhysicalStock("vanilla"); got != 6 {
		t.Errorf("physical = %d after confirm, want 6", got)
	}
}

func TestHandleRelease(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 10})
	if err := l.Reserve("vanilla", "order1", 4); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodDelete, "/stock/reservations/order1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := l.AvailableStock("vanilla"); got != 10 {
		t.Errorf("available = %d after release, want 10", got)
	}

	// Releasing again is still 204.
	rec = doRequest(t, h, http.MethodDelete, "/stock/reservations/order1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("repeat status = %d, want 204", rec.Code)
	}
}

func TestHandleProduct(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 10})
	l.Track("vanilla", "Vanilla")
	if err := l.Reserve("vanilla", "order1", 4); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodGet, "/stock/products/vanilla", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["physicalStock"] != float64(10) || body["reservedStock"] != float64(4) || body["availableStock"] != float64(6) {
		t.Errorf("stock fields = %v/%v/%v, want 10/4/6",
			body["physicalStock"], body["reservedStock"], body["availableStock"])
	}
}

func TestHandleProductUnknown(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodGet, "/stock/products/nope", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown product", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["availableStock"] != float64(0) {
		t.Errorf("availableStock = %v, want 0", body["availableStock"])
	}
}

func TestHandleForecast(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 20})

	// No sales history provider wired: zero velocity, no stockout date.
	rec := doRequest(t, h, http.MethodGet, "/stock/products/vanilla/forecast", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["daysUntilStockout"] != nil || body["stockoutDate"] != nil {
		t.Errorf("unbounded forecast = %v/%v, want null/null", body["daysUntilStockout"], body["stockoutDate"])
	}
}

func TestHandleForecastUnknownProduct(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodGet, "/stock/products/nope/forecast", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleForecastOutOfStock(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 0})

	rec := doRequest(t, h, http.MethodGet, "/stock/products/vanilla/forecast", "")
	body := decodeBody(t, rec)
	if body["daysUntilStockout"] != float64(0) {
		t.Errorf("daysUntilStockout = %v, want 0", body["daysUntilStockout"])
	}
	date, _ := body["stockoutDate"].(string)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		t.Errorf("stockoutDate = %q, want yyyy-mm-dd", date)
	}
}

func TestHandleAlerts(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 0, "berry": 50})

	rec := doRequest(t, h, http.MethodGet, "/stock/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	alerts, _ := body["alerts"].([]any)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, want one", body["alerts"])
	}
	alert, _ := alerts[0].(map[string]any)
	if alert["level"] != "outOfStock" {
		t.Errorf("level = %v, want outOfStock", alert["level"])
	}
}

func TestHandleSync(t *testing.T) {
	h, _ := newTestHandler(t, map[string]int{"vanilla": 20})

	rec := doRequest(t, h, http.MethodGet, "/stock/sync/status", "")
	body := decodeBody(t, rec)
	if body["status"] != "idle" || body["lastSync"] != nil {
		t.Errorf("initial status = %v/%v, want idle/null", body["status"], body["lastSync"])
	}

	rec = doRequest(t, h, http.MethodPost, "/stock/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	if body["pushed"] != float64(1) {
		t.Errorf("pushed = %v, want 1", body["pushed"])
	}

	rec = doRequest(t, h, http.MethodGet, "/stock/sync/status", "")
	body = decodeBody(t, rec)
	if body["status"] != "success" || body["lastSync"] == nil {
		t.Errorf("status after sync = %v/%v, want success and a timestamp", body["status"], body["lastSync"])
	}
}

func TestHandleListings(t *testing.T) {
	h, l := newTestHandler(t, map[string]int{"vanilla": 20})
	l.Track("vanilla", "Vanilla")

	// Listings materialize on the first pushed sync.
	if rec := doRequest(t, h, http.MethodPost, "/stock/sync", ""); rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", rec.Code)
	}

	rec := doRequest(t, h, http.MethodGet, "/stock/listings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	listings, _ := body["listings"].([]any)
	if len(listings) != 1 {
		t.Fatalf("listings = %v, want one", body["listings"])
	}
	entry, _ := listings[0].(map[string]any)
	if entry["productId"] != "vanilla" || entry["availableStock"] != float64(20) {
		t.Errorf("listing = %v", entry)
	}
}
