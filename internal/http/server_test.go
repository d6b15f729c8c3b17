package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"masareef/internal/config"
	"masareef/internal/services"
	"masareef/internal/sheets/memory"
	"masareef/internal/storage"
)

const testManagerPassword = "letmein"

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	repo, err := storage.Open(filepath.Join(t.TempDir(), "masareef.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testManagerPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	cfg := &config.Config{
		Port:                "0",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		IdleTimeout:         5 * time.Second,
		ManagerPasswordHash: string(hash),
	}

	store := memory.New()
	s := NewServer(cfg, services.NewExpenseService(repo), store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return s, store
}

func doJSON(t *testing.T, s *Server, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func asManager(extra ...string) map[string]string {
	h := map[string]string{managerHeader: testManagerPassword}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func createExpense(t *testing.T, s *Server, date, amount, rate string) entryResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/expenses", map[string]string{
		"date":              date,
		"category":          "Fuel",
		"subcategory":       "Diesel",
		"description":       "crane refuel",
		"amount_before_vat": amount,
		"vat_rate":          rate,
		"entered_by":        "Ahmed",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: status %d, body %s", rec.Code, rec.Body.String())
	}
	var entry entryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return entry
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestCreateExpense(t *testing.T) {
	s, _ := newTestServer(t)

	entry := createExpense(t, s, "2024-06-01", "100", "0.15")
	if entry.ID == 0 {
		t.Fatalf("no id assigned")
	}
	if entry.VATAmount != "15" || entry.TotalAmount != "115" {
		t.Fatalf("derived amounts = %s/%s", entry.VATAmount, entry.TotalAmount)
	}
	if entry.Subcategory != "Diesel" {
		t.Fatalf("subcategory = %q", entry.Subcategory)
	}
}

func TestCreateExpenseRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	// Malformed JSON.
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status %d", rec.Code)
	}

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad date", map[string]string{"date": "01/06/2024", "category": "Fuel", "description": "x", "amount_before_vat": "10", "vat_rate": "0", "entered_by": "A"}},
		{"bad amount", map[string]string{"date": "2024-06-01", "category": "Fuel", "description": "x", "amount_before_vat": "-10", "vat_rate": "0", "entered_by": "A"}},
		{"bad rate", map[string]string{"date": "2024-06-01", "category": "Fuel", "description": "x", "amount_before_vat": "10", "vat_rate": "0.5", "entered_by": "A"}},
		{"no category", map[string]string{"date": "2024-06-01", "category": " ", "description": "x", "amount_before_vat": "10", "vat_rate": "0", "entered_by": "A"}},
	}
	for _, tc := range tests {
		rec := doJSON(t, s, http.MethodPost, "/expenses", tc.body, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status %d, body %s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestGetUpdateDeleteExpense(t *testing.T) {
	s, _ := newTestServer(t)
	entry := createExpense(t, s, "2024-06-01", "100", "0.15")

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/expenses/%d", entry.ID), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPatch, fmt.Sprintf("/expenses/%d", entry.ID),
		map[string]string{"amount_before_vat": "200"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status %d, body %s", rec.Code, rec.Body.String())
	}
	var updated entryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode patch response: %v", err)
	}
	if updated.VATAmount != "30" || updated.TotalAmount != "230" {
		t.Fatalf("amounts not recomputed: %s/%s", updated.VATAmount, updated.TotalAmount)
	}

	// An empty patch is a bad request.
	rec = doJSON(t, s, http.MethodPatch, fmt.Sprintf("/expenses/%d", entry.ID), map[string]string{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/expenses/%d", entry.ID), nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/expenses/%d", entry.ID), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestUpdateMissingExpense(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPatch, "/expenses/999",
		map[string]string{"description": "x"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestListExpenses(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")
	createExpense(t, s, "2024-06-15", "50", "0")
	createExpense(t, s, "2024-07-01", "25", "0")

	rec := doJSON(t, s, http.MethodGet, "/expenses?start=2024-06-01&end=2024-06-30", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var resp struct {
		Entries []entryResponse `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(resp.Entries))
	}
	// Newest entry comes first.
	if resp.Entries[0].Date != "2024-06-15" {
		t.Fatalf("order: first entry %s", resp.Entries[0].Date)
	}

	// Author filter.
	rec = doJSON(t, s, http.MethodGet, "/expenses?entered_by=Ahmed", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("author list: status %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 3 {
		t.Fatalf("author filter returned %d entries", len(resp.Entries))
	}

	// Half a range is a bad request.
	rec = doJSON(t, s, http.MethodGet, "/expenses?entered_by=Ahmed&start=2024-06-01", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("half range: status %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/expenses?start=2024-06-01", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing end: status %d", rec.Code)
	}
}

func TestListCategories(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/categories?level=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Categories []struct {
			Name  string `json:"name"`
			Level int    `json:"level"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 7 {
		t.Fatalf("got %d root categories, want 7", len(resp.Categories))
	}
	if resp.Categories[0].Name != "Food" {
		t.Fatalf("first root = %q", resp.Categories[0].Name)
	}
}

func TestManagerGate(t *testing.T) {
	s, _ := newTestServer(t)

	// No credential.
	rec := doJSON(t, s, http.MethodGet, "/summary?start=2024-06-01&end=2024-06-30", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: status %d", rec.Code)
	}

	// Wrong credential.
	rec = doJSON(t, s, http.MethodGet, "/summary?start=2024-06-01&end=2024-06-30", nil,
		map[string]string{managerHeader: "wrong"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong credential: status %d", rec.Code)
	}

	// Valid credential.
	rec = doJSON(t, s, http.MethodGet, "/summary?start=2024-06-01&end=2024-06-30", nil, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("valid credential: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestManagerGateDisabledWithoutHash(t *testing.T) {
	s, _ := newTestServer(t)
	s.managerHash = ""

	rec := doJSON(t, s, http.MethodGet, "/summary?start=2024-06-01&end=2024-06-30", nil, asManager())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "50", "0")
	createExpense(t, s, "2024-06-02", "150", "0")

	rec := doJSON(t, s, http.MethodGet, "/summary?start=2024-06-01&end=2024-06-30", nil, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Summary []struct {
			Category    string `json:"category"`
			TotalAmount string `json:"total_amount"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Summary) != 2 {
		t.Fatalf("summary rows = %d, want group + TOTAL", len(resp.Summary))
	}
	if resp.Summary[1].Category != "TOTAL" || resp.Summary[1].TotalAmount != "200" {
		t.Fatalf("total row = %+v", resp.Summary[1])
	}
}

func TestCSVExport(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")

	rec := doJSON(t, s, http.MethodGet, "/export/expenses.csv?start=2024-06-01&end=2024-06-30", nil, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "115.00") || !strings.Contains(body, "TOTAL") {
		t.Fatalf("csv body missing expected cells:\n%s", body)
	}

	rec = doJSON(t, s, http.MethodGet, "/export/summary.csv?start=2024-06-01&end=2024-06-30", nil, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("summary csv: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Fuel,Diesel,115.00") {
		t.Fatalf("summary csv body:\n%s", rec.Body.String())
	}
}

func TestListCategoriesRejectsBadFilters(t *testing.T) {
	s, _ := newTestServer(t)

	for _, target := range []string{
		"/categories?level=abc",
		"/categories?level=-1",
		"/categories?parent_id=abc",
	} {
		rec := doJSON(t, s, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestCSVExportByAuthor(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")

	rec := doJSON(t, s, http.MethodPost, "/expenses", map[string]string{
		"date":              "2024-06-02",
		"category":          "Fuel",
		"subcategory":       "Diesel",
		"description":       "pickup refuel",
		"amount_before_vat": "40",
		"vat_rate":          "0",
		"entered_by":        "Sara",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet,
		"/export/expenses.csv?start=2024-06-01&end=2024-06-30&entered_by=Sara", nil, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Sara") || strings.Contains(body, "Ahmed") {
		t.Fatalf("author filter not applied:\n%s", body)
	}
}

func TestPDFExport(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")

	// Manager capability is required.
	rec := doJSON(t, s, http.MethodGet, "/export/expenses.pdf?start=2024-06-01&end=2024-06-30", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: status %d", rec.Code)
	}

	for _, target := range []string{
		"/export/expenses.pdf?start=2024-06-01&end=2024-06-30",
		"/export/summary.pdf?start=2024-06-01&end=2024-06-30",
	} {
		rec := doJSON(t, s, http.MethodGet, target, nil, asManager())
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Fatalf("%s: content type = %q", target, ct)
		}
		if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
			t.Fatalf("%s: body is not a pdf document", target)
		}
	}
}

func TestSheetsExport(t *testing.T) {
	s, store := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")
	createExpense(t, s, "2024-06-02", "50", "0")

	rec := doJSON(t, s, http.MethodPost, "/export/sheets",
		map[string]string{"start": "2024-06-01", "end": "2024-06-30"}, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Exported int `json:"exported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Exported != 2 || len(store.Rows()) != 2 {
		t.Fatalf("exported %d, store holds %d", resp.Exported, len(store.Rows()))
	}
}

func TestSheetsExportUnconfigured(t *testing.T) {
	s, _ := newTestServer(t)
	s.appender = nil

	rec := doJSON(t, s, http.MethodPost, "/export/sheets",
		map[string]string{"start": "2024-06-01", "end": "2024-06-30"}, asManager())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestWipeRequiresConfirmation(t *testing.T) {
	s, _ := newTestServer(t)
	createExpense(t, s, "2024-06-01", "100", "0.15")

	// Capability alone is not enough.
	rec := doJSON(t, s, http.MethodDelete, "/expenses",
		map[string]string{"confirm": "yes please"}, asManager())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong phrase: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/expenses",
		map[string]string{"confirm": wipeConfirmPhrase}, asManager())
	if rec.Code != http.StatusOK {
		t.Fatalf("wipe: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 1 {
		t.Fatalf("deleted = %d", resp.Deleted)
	}

	// Ledger is empty afterwards.
	list := doJSON(t, s, http.MethodGet, "/expenses?start=2024-01-01&end=2024-12-31", nil, nil)
	var entries struct {
		Entries []entryResponse `json:"entries"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries.Entries) != 0 {
		t.Fatalf("ledger not empty after wipe")
	}
}
