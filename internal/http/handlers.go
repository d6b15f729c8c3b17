package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"masareef/internal/core"
	"masareef/internal/report"
	"masareef/internal/services"
	"masareef/internal/storage"
)

type expenseRequest struct {
	Date              string `json:"date"`
	Category          string `json:"category"`
	Subcategory       string `json:"subcategory"`
	SubSubcategory    string `json:"subsubcategory"`
	SubSubSubcategory string `json:"subsubsubcategory"`
	Description       string `json:"description"`
	AmountBeforeVAT   string `json:"amount_before_vat"`
	VATRate           string `json:"vat_rate"`
	EnteredBy         string `json:"entered_by"`
}

type expenseUpdateRequest struct {
	Date              *string `json:"date"`
	Category          *string `json:"category"`
	Subcategory       *string `json:"subcategory"`
	SubSubcategory    *string `json:"subsubcategory"`
	SubSubSubcategory *string `json:"subsubsubcategory"`
	Description       *string `json:"description"`
	AmountBeforeVAT   *string `json:"amount_before_vat"`
	VATRate           *string `json:"vat_rate"`
	EnteredBy         *string `json:"entered_by"`
}

type entryResponse struct {
	ID                int64  `json:"id"`
	Date              string `json:"date"`
	Category          string `json:"category"`
	Subcategory       string `json:"subcategory,omitempty"`
	SubSubcategory    string `json:"subsubcategory,omitempty"`
	SubSubSubcategory string `json:"subsubsubcategory,omitempty"`
	Description       string `json:"description"`
	AmountBeforeVAT   string `json:"amount_before_vat"`
	VATAmount         string `json:"vat_amount"`
	TotalAmount       string `json:"total_amount"`
	EnteredBy         string `json:"entered_by"`
}

func toEntryResponse(e core.LedgerEntry) entryResponse {
	return entryResponse{
		ID:                e.ID,
		Date:              e.Date.String(),
		Category:          e.Category,
		Subcategory:       e.Subcategory,
		SubSubcategory:    e.SubSubcategory,
		SubSubSubcategory: e.SubSubSubcategory,
		Description:       e.Description,
		AmountBeforeVAT:   e.AmountBeforeVAT.String(),
		VATAmount:         e.VATAmount.String(),
		TotalAmount:       e.TotalAmount.String(),
		EnteredBy:         e.EnteredBy,
	}
}

func toEntryResponses(entries []core.LedgerEntry) []entryResponse {
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out
}

// respondServiceError maps service errors onto HTTP statuses:
// expected absence is 404, validation failures are 422, a useless
// payload is 400 and everything else is an opaque 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "expense not found")
	case errors.Is(err, services.ErrEmptyUpdate):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case isValidationError(err):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidRate,
		core.ErrEmptyDescription, core.ErrLongDescription,
		core.ErrEmptyCategory, core.ErrEmptyEnteredBy,
		services.ErrCategoryGap,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// parseFilterInt parses an optional non-negative integer filter
// parameter. Empty means "filter off"; anything unparsable is an
// error rather than a silent fallback to the unfiltered listing.
func parseFilterInt(name, v string) (int64, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %q parameter: want a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level, err := parseFilterInt("level", q.Get("level"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	parentID, err := parseFilterInt("parent_id", q.Get("parent_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cats, err := s.service.Categories(r.Context(), int(level), parentID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	type categoryResponse struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id,omitempty"`
		Level    int    `json:"level"`
	}
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID, Level: c.Level}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toNewExpense()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	entry, err := s.service.Record(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEntryResponse(entry))
}

func (req expenseRequest) toNewExpense() (core.NewExpense, error) {
	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return core.NewExpense{}, fmt.Errorf("invalid date: want YYYY-MM-DD")
	}
	amount, err := core.ParseAmount(req.AmountBeforeVAT)
	if err != nil {
		return core.NewExpense{}, fmt.Errorf("invalid amount: %w", err)
	}
	rate, err := core.ParseVATRate(req.VATRate)
	if err != nil {
		return core.NewExpense{}, fmt.Errorf("invalid vat rate: %w", err)
	}
	return core.NewExpense{
		Date:              date,
		Category:          sanitizeInput(req.Category),
		Subcategory:       sanitizeInput(req.Subcategory),
		SubSubcategory:    sanitizeInput(req.SubSubcategory),
		SubSubSubcategory: sanitizeInput(req.SubSubSubcategory),
		Description:       sanitizeInput(req.Description),
		AmountBeforeVAT:   amount,
		Rate:              rate,
		EnteredBy:         sanitizeInput(req.EnteredBy),
	}, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if author := strings.TrimSpace(r.URL.Query().Get("entered_by")); author != "" {
		var start, end core.Date
		hasStart := r.URL.Query().Get("start") != ""
		hasEnd := r.URL.Query().Get("end") != ""
		if hasStart != hasEnd {
			writeError(w, r, http.StatusBadRequest, "start and end must be given together")
			return
		}
		if hasStart {
			var err error
			if start, end, err = parseRange(r); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
		}
		entries, err := s.service.ExpensesByEnteredBy(ctx, author, start, end)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.service.ExpensesByDateRange(ctx, start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

func parseIDPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid expense id")
	}
	return id, nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := s.service.Expense(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req expenseUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := req.toUpdate()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	entry, err := s.service.Update(r.Context(), id, u)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryResponse(entry))
}

func (req expenseUpdateRequest) toUpdate() (core.ExpenseUpdate, error) {
	var u core.ExpenseUpdate

	if req.Date != nil {
		d, err := core.ParseDate(strings.TrimSpace(*req.Date))
		if err != nil {
			return u, fmt.Errorf("invalid date: want YYYY-MM-DD")
		}
		u.Date = &d
	}
	strSlot := func(dst **string, src *string) {
		if src != nil {
			v := sanitizeInput(*src)
			*dst = &v
		}
	}
	strSlot(&u.Category, req.Category)
	strSlot(&u.Subcategory, req.Subcategory)
	strSlot(&u.SubSubcategory, req.SubSubcategory)
	strSlot(&u.SubSubSubcategory, req.SubSubSubcategory)
	strSlot(&u.Description, req.Description)
	strSlot(&u.EnteredBy, req.EnteredBy)

	if req.AmountBeforeVAT != nil {
		amount, err := core.ParseAmount(*req.AmountBeforeVAT)
		if err != nil {
			return u, fmt.Errorf("invalid amount: %w", err)
		}
		u.AmountBeforeVAT = &amount
	}
	if req.VATRate != nil {
		rate, err := core.ParseVATRate(*req.VATRate)
		if err != nil {
			return u, fmt.Errorf("invalid vat rate: %w", err)
		}
		u.Rate = &rate
	}
	return u, nil
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.service.Summarize(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	type summaryResponse struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory,omitempty"`
		TotalAmount string `json:"total_amount"`
	}
	out := make([]summaryResponse, len(rows))
	for i, row := range rows {
		out[i] = summaryResponse{
			Category:    row.Category,
			Subcategory: row.Subcategory,
			TotalAmount: row.TotalAmount.String(),
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"summary": out})
}

// exportEntries fetches the rows for a ledger export. An optional
// entered_by parameter narrows the download to one author's expenses,
// mirroring the listing endpoint.
func (s *Server) exportEntries(r *http.Request, start, end core.Date) ([]core.LedgerEntry, error) {
	if author := strings.TrimSpace(r.URL.Query().Get("entered_by")); author != "" {
		return s.service.ExpensesByEnteredBy(r.Context(), author, start, end)
	}
	return s.service.ExpensesByDateRange(r.Context(), start, end)
}

func (s *Server) handleExportLedgerCSV(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.exportEntries(r, start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=expenses_%s_%s.csv", start, end))
	if err := report.WriteLedger(w, entries); err != nil {
		slog.ErrorContext(r.Context(), "Ledger CSV export failed", "error", err)
	}
}

func (s *Server) handleExportLedgerPDF(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.exportEntries(r, start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=expenses_%s_%s.pdf", start, end))
	title := fmt.Sprintf("Expenses %s to %s", start, end)
	if err := report.WriteLedgerPDF(w, title, entries); err != nil {
		slog.ErrorContext(r.Context(), "Ledger PDF export failed", "error", err)
	}
}

func (s *Server) handleExportSummaryPDF(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.service.Summarize(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=summary_%s_%s.pdf", start, end))
	title := fmt.Sprintf("Category Summary %s to %s", start, end)
	if err := report.WriteSummaryPDF(w, title, rows); err != nil {
		slog.ErrorContext(r.Context(), "Summary PDF export failed", "error", err)
	}
}

func (s *Server) handleExportSummaryCSV(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.service.Summarize(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=summary_%s_%s.csv", start, end))
	if err := report.WriteSummary(w, rows); err != nil {
		slog.ErrorContext(r.Context(), "Summary CSV export failed", "error", err)
	}
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.appender == nil {
		writeError(w, r, http.StatusServiceUnavailable, "sheets export is not configured")
		return
	}

	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := core.ParseDate(strings.TrimSpace(req.Start))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid start date: want YYYY-MM-DD")
		return
	}
	end, err := core.ParseDate(strings.TrimSpace(req.End))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid end date: want YYYY-MM-DD")
		return
	}

	entries, err := s.service.ExpensesByDateRange(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	exported, err := s.appender.AppendEntries(r.Context(), entries)
	if err != nil {
		slog.ErrorContext(r.Context(), "Sheets export failed", "error", err)
		writeError(w, r, http.StatusBadGateway, "spreadsheet export failed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"exported": exported})
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Confirm != wipeConfirmPhrase {
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("confirmation phrase %q required", wipeConfirmPhrase))
		return
	}

	deleted, err := s.service.DeleteAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": deleted})
}
