package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scontrini/internal/ledger/memory"
	applog "scontrini/internal/log"
	"scontrini/internal/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	receipts := services.NewReceiptService(store, nil)
	reports := services.NewReportService(store, nil, nil)

	logger := applog.New(applog.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})

	srv := NewServer(":0", receipts, reports, logger)
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, userID string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// sampleReceipt is dated today so it lands in the current budget month.
func sampleReceipt() map[string]any {
	return map[string]any{
		"store_name":    "Esselunga",
		"purchase_date": time.Now().UTC().Format(dateLayout),
		"total":         25.00,
		"items": []map[string]any{
			{"name": "Milk", "price": 2.50, "quantity": 2, "category": "Groceries"},
			{"name": "Bread", "price": 20.00, "quantity": 1, "category": "Groceries"},
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp := doRequest(t, ts, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/receipts"},
		{http.MethodPost, "/api/receipts"},
		{http.MethodGet, "/api/analytics/spending"},
		{http.MethodGet, "/api/analytics/budgets"},
	}
	for _, p := range paths {
		resp := doRequest(t, ts, p.method, p.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want %d", p.method, p.path, resp.StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestCreateAndGetReceipt(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decodeBody[receiptView](t, resp)

	if created.StoreName != "Esselunga" {
		t.Errorf("StoreName = %q, want Esselunga", created.StoreName)
	}
	if created.Total != 25.00 {
		t.Errorf("Total = %v, want 25.00", created.Total)
	}
	if len(created.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(created.Items))
	}
	today := time.Now().UTC().Format(dateLayout)
	if created.PurchaseDate == nil || *created.PurchaseDate != today {
		t.Errorf("PurchaseDate = %v, want %s", created.PurchaseDate, today)
	}

	got := doRequest(t, ts, http.MethodGet, fmt.Sprintf("/api/receipts/%d", created.ID), "alice", nil)
	if got.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", got.StatusCode, http.StatusOK)
	}
	fetched := decodeBody[receiptView](t, got)
	if fetched.ID != created.ID {
		t.Errorf("fetched ID = %d, want %d", fetched.ID, created.ID)
	}
}

func TestCreateReceiptDefaultsQuantity(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"total": 2.50,
		"items": []map[string]any{
			{"name": "Milk", "price": 2.50, "category": "Groceries"},
		},
	}
	resp := doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	created := decodeBody[receiptView](t, resp)
	if len(created.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(created.Items))
	}
	if created.Items[0].Quantity != 1 {
		t.Errorf("Quantity = %d, want 1 when omitted", created.Items[0].Quantity)
	}
}

func TestCreateReceiptValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name: "zero quantity",
			body: map[string]any{
				"total": 5.0,
				"items": []map[string]any{{"name": "Milk", "price": 5.0, "quantity": 0}},
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "negative price",
			body: map[string]any{
				"total": 5.0,
				"items": []map[string]any{{"name": "Milk", "price": -5.0, "quantity": 1}},
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "empty item name",
			body: map[string]any{
				"total": 5.0,
				"items": []map[string]any{{"name": "  ", "price": 5.0, "quantity": 1}},
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed purchase date",
			body: map[string]any{
				"total":         5.0,
				"purchase_date": "10/06/2025",
				"items":         []map[string]any{},
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestReceiptsAreUserScoped(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())
	created := decodeBody[receiptView](t, resp)

	other := doRequest(t, ts, http.MethodGet, fmt.Sprintf("/api/receipts/%d", created.ID), "bob", nil)
	if other.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want %d", other.StatusCode, http.StatusNotFound)
	}

	otherDelete := doRequest(t, ts, http.MethodDelete, fmt.Sprintf("/api/receipts/%d", created.ID), "bob", nil)
	if otherDelete.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want %d", otherDelete.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteReceipt(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())
	created := decodeBody[receiptView](t, resp)

	deleted := doRequest(t, ts, http.MethodDelete, fmt.Sprintf("/api/receipts/%d", created.ID), "alice", nil)
	if deleted.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", deleted.StatusCode, http.StatusNoContent)
	}

	got := doRequest(t, ts, http.MethodGet, fmt.Sprintf("/api/receipts/%d", created.ID), "alice", nil)
	if got.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", got.StatusCode, http.StatusNotFound)
	}
}

func TestSpendingSummary(t *testing.T) {
	ts := newTestServer(t)

	t.Run("empty user", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/analytics/spending", "nobody", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		summary := decodeBody[map[string]any](t, resp)
		if summary["total_spent"] != 0.0 {
			t.Errorf("total_spent = %v, want 0", summary["total_spent"])
		}
		if summary["transaction_count"] != 0.0 {
			t.Errorf("transaction_count = %v, want 0", summary["transaction_count"])
		}
	})

	t.Run("after ingest", func(t *testing.T) {
		doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())

		resp := doRequest(t, ts, http.MethodGet, "/api/analytics/spending", "alice", nil)
		summary := decodeBody[map[string]any](t, resp)
		if summary["total_spent"] != 25.0 {
			t.Errorf("total_spent = %v, want 25", summary["total_spent"])
		}
		if summary["transaction_count"] != 1.0 {
			t.Errorf("transaction_count = %v, want 1", summary["transaction_count"])
		}
	})
}

func TestCategoryBreakdownEndpoint(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())

	resp := doRequest(t, ts, http.MethodGet, "/api/analytics/categories", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	breakdown := decodeBody[map[string]map[string]any](t, resp)

	groceries, ok := breakdown["Groceries"]
	if !ok {
		t.Fatalf("breakdown missing Groceries, got %v", breakdown)
	}
	if groceries["total"] != 25.0 {
		t.Errorf("Groceries total = %v, want 25", groceries["total"])
	}
	if groceries["percentage"] != 100.0 {
		t.Errorf("Groceries percentage = %v, want 100", groceries["percentage"])
	}
}

func TestBudgetLifecycle(t *testing.T) {
	ts := newTestServer(t)
	doRequest(t, ts, http.MethodPost, "/api/receipts", "alice", sampleReceipt())

	create := doRequest(t, ts, http.MethodPost, "/api/analytics/budgets", "alice",
		map[string]any{"category": "Groceries", "monthly_limit": 100.0})
	if create.StatusCode != http.StatusOK {
		t.Fatalf("create budget status = %d, want %d", create.StatusCode, http.StatusOK)
	}
	budget := decodeBody[map[string]any](t, create)
	if budget["category"] != "Groceries" {
		t.Errorf("category = %v, want Groceries", budget["category"])
	}

	status := doRequest(t, ts, http.MethodGet, "/api/analytics/budgets", "alice", nil)
	statuses := decodeBody[[]map[string]any](t, status)
	if len(statuses) != 1 {
		t.Fatalf("len(statuses) = %d, want 1", len(statuses))
	}
	if statuses[0]["current_spent"] != 25.0 {
		t.Errorf("current_spent = %v, want 25", statuses[0]["current_spent"])
	}
	if statuses[0]["status"] != "ok" {
		t.Errorf("status = %v, want ok", statuses[0]["status"])
	}

	id := int64(statuses[0]["id"].(float64))
	deleted := doRequest(t, ts, http.MethodDelete, fmt.Sprintf("/api/analytics/budgets/%d", id), "alice", nil)
	if deleted.StatusCode != http.StatusNoContent {
		t.Fatalf("delete budget status = %d, want %d", deleted.StatusCode, http.StatusNoContent)
	}

	missing := doRequest(t, ts, http.MethodDelete, fmt.Sprintf("/api/analytics/budgets/%d", id), "alice", nil)
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing budget status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestRequestIPUsesFirstForwardedHop(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{name: "single hop", forwarded: "203.0.113.7", remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "hop list", forwarded: "203.0.113.7, 70.41.3.18, 150.172.238.178", remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "padded hop list", forwarded: " 203.0.113.7 ,70.41.3.18", remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "no header", forwarded: "", remote: "10.0.0.1:1234", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := requestIP(req); got != tt.want {
				t.Errorf("requestIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBudgetValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/analytics/budgets", "alice",
		map[string]any{"category": "", "monthly_limit": 100.0})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty category status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	negative := doRequest(t, ts, http.MethodPost, "/api/analytics/budgets", "alice",
		map[string]any{"category": "Groceries", "monthly_limit": -5.0})
	if negative.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("negative limit status = %d, want %d", negative.StatusCode, http.StatusUnprocessableEntity)
	}
}
