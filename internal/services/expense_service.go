// Package services orchestrates expense operations: validation, VAT
// derivation and category resolution sit here, between the transport
// layer and storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"masareef/internal/core"
	"masareef/internal/storage"
)

var (
	// ErrEmptyUpdate reports an update payload that sets no fields.
	ErrEmptyUpdate = errors.New("update sets no fields")

	// ErrCategoryGap reports a category level given without its parent
	// level, e.g. a sub-subcategory under an empty subcategory.
	ErrCategoryGap = errors.New("category level set without its parent level")
)

// ExpenseService coordinates the expense ledger and the category tree.
type ExpenseService struct {
	storage *storage.Repository
}

func NewExpenseService(st *storage.Repository) *ExpenseService {
	return &ExpenseService{storage: st}
}

// resolveChain turns a category name path into reference ids, creating
// missing nodes level by level under their exact parent. Levels after
// the first empty name must also be empty; the returned names are the
// trimmed path.
func (s *ExpenseService) resolveChain(ctx context.Context, names [core.MaxCategoryDepth]string) ([core.MaxCategoryDepth]sql.NullInt64, [core.MaxCategoryDepth]string, error) {
	var refs [core.MaxCategoryDepth]sql.NullInt64

	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	if names[0] == "" {
		return refs, names, core.ErrEmptyCategory
	}

	var parent int64
	for i, name := range names {
		if name == "" {
			for _, rest := range names[i:] {
				if rest != "" {
					return refs, names, ErrCategoryGap
				}
			}
			break
		}
		id, err := s.storage.GetOrCreateCategory(ctx, name, parent, i+1)
		if err != nil {
			return refs, names, fmt.Errorf("resolve category level %d: %w", i+1, err)
		}
		refs[i] = sql.NullInt64{Int64: id, Valid: true}
		parent = id
	}
	return refs, names, nil
}

// Record validates the submission, derives VAT from the amount and
// rate, resolves the category path and persists the expense. The
// returned entry is the stored row in its read shape.
func (s *ExpenseService) Record(ctx context.Context, in core.NewExpense) (core.LedgerEntry, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.EnteredBy = strings.TrimSpace(in.EnteredBy)
	if err := in.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	amount := core.RoundAmount(in.AmountBeforeVAT)
	vat, total := core.ComputeVAT(amount, in.Rate)

	refs, names, err := s.resolveChain(ctx, [core.MaxCategoryDepth]string{
		in.Category, in.Subcategory, in.SubSubcategory, in.SubSubSubcategory,
	})
	if err != nil {
		return core.LedgerEntry{}, err
	}

	id, err := s.storage.InsertExpense(ctx, storage.Expense{
		Date:                in.Date,
		CategoryID:          refs[0],
		SubcategoryID:       refs[1],
		SubSubcategoryID:    refs[2],
		SubSubSubcategoryID: refs[3],
		Description:         in.Description,
		AmountBeforeVAT:     amount,
		VATAmount:           vat,
		TotalAmount:         total,
		EnteredBy:           in.EnteredBy,
	})
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("record expense: %w", err)
	}

	return core.LedgerEntry{
		ID:                id,
		Date:              in.Date,
		Category:          names[0],
		Subcategory:       names[1],
		SubSubcategory:    names[2],
		SubSubSubcategory: names[3],
		Description:       in.Description,
		AmountBeforeVAT:   amount,
		VATAmount:         vat,
		TotalAmount:       total,
		EnteredBy:         in.EnteredBy,
	}, nil
}

// storedRate recovers the applied rate from a stored row. The rate
// itself is not persisted; whether VAT was charged determines it.
func storedRate(e storage.Expense) core.VATRate {
	if e.VATAmount.IsZero() {
		return core.RateZero
	}
	return core.RateStandard
}

// Update applies a partial update to one expense. Touched category
// slots force a re-resolution of the whole path against the stored
// names; a changed amount or rate recomputes VAT and the total.
// Returns storage.ErrNotFound when the id does not exist.
func (s *ExpenseService) Update(ctx context.Context, id int64, u core.ExpenseUpdate) (core.LedgerEntry, error) {
	if u.Empty() {
		return core.LedgerEntry{}, ErrEmptyUpdate
	}

	existing, err := s.storage.ExpenseByID(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	var su storage.ExpenseUpdate

	if u.Date != nil {
		if err := u.Date.Validate(); err != nil {
			return core.LedgerEntry{}, err
		}
		su.Date = u.Date
	}

	if u.TouchesCategories() {
		names := [core.MaxCategoryDepth]string{
			existing.Category, existing.Subcategory,
			existing.SubSubcategory, existing.SubSubSubcategory,
		}
		overlay := [core.MaxCategoryDepth]*string{
			u.Category, u.Subcategory, u.SubSubcategory, u.SubSubSubcategory,
		}
		for i, o := range overlay {
			if o == nil {
				continue
			}
			names[i] = *o
			// An explicit empty slot clears the level and its descendants.
			if strings.TrimSpace(*o) == "" {
				for j := i + 1; j < len(names); j++ {
					if overlay[j] == nil {
						names[j] = ""
					}
				}
			}
		}
		refs, _, err := s.resolveChain(ctx, names)
		if err != nil {
			return core.LedgerEntry{}, err
		}
		su.CategoryID = &refs[0]
		su.SubcategoryID = &refs[1]
		su.SubSubcategoryID = &refs[2]
		su.SubSubSubcategoryID = &refs[3]
	}

	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		if desc == "" {
			return core.LedgerEntry{}, core.ErrEmptyDescription
		}
		if len(desc) > 200 {
			return core.LedgerEntry{}, core.ErrLongDescription
		}
		su.Description = &desc
	}

	if u.AmountBeforeVAT != nil || u.Rate != nil {
		amount := existing.AmountBeforeVAT
		if u.AmountBeforeVAT != nil {
			amount = core.RoundAmount(*u.AmountBeforeVAT)
			if !amount.IsPositive() {
				return core.LedgerEntry{}, core.ErrInvalidAmount
			}
		}
		rate := storedRate(existing)
		if u.Rate != nil {
			if !u.Rate.Valid() {
				return core.LedgerEntry{}, core.ErrInvalidRate
			}
			rate = *u.Rate
		}
		vat, total := core.ComputeVAT(amount, rate)
		su.AmountBeforeVAT = &amount
		su.VATAmount = &vat
		su.TotalAmount = &total
	}

	if u.EnteredBy != nil {
		by := strings.TrimSpace(*u.EnteredBy)
		if by == "" {
			return core.LedgerEntry{}, core.ErrEmptyEnteredBy
		}
		su.EnteredBy = &by
	}

	found, err := s.storage.UpdateExpense(ctx, id, su)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update expense: %w", err)
	}
	if !found {
		return core.LedgerEntry{}, storage.ErrNotFound
	}

	updated, err := s.storage.ExpenseByID(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("reload expense: %w", err)
	}
	return updated.Entry(), nil
}

// Delete removes one expense. Missing ids are a no-op.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	return s.storage.DeleteExpense(ctx, id)
}

// DeleteAll irreversibly empties the ledger and reports the removed
// row count. The confirmation gate lives at the transport boundary.
func (s *ExpenseService) DeleteAll(ctx context.Context) (int64, error) {
	return s.storage.DeleteAllExpenses(ctx)
}

// Expense returns one entry by id; storage.ErrNotFound when missing.
func (s *ExpenseService) Expense(ctx context.Context, id int64) (core.LedgerEntry, error) {
	e, err := s.storage.ExpenseByID(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return e.Entry(), nil
}

// ExpensesByDateRange lists entries in [start, end], newest first.
func (s *ExpenseService) ExpensesByDateRange(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	return s.storage.ExpensesByDateRange(ctx, start, end)
}

// ExpensesByEnteredBy lists entries recorded by one author, optionally
// bounded when both dates are set.
func (s *ExpenseService) ExpensesByEnteredBy(ctx context.Context, name string, start, end core.Date) ([]core.LedgerEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptyEnteredBy
	}
	return s.storage.ExpensesByEnteredBy(ctx, name, start, end)
}

// Summarize aggregates the range per category and subcategory with a
// trailing grand-total row.
func (s *ExpenseService) Summarize(ctx context.Context, start, end core.Date) ([]core.SummaryRow, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	return s.storage.SummarizeByCategory(ctx, start, end)
}

// Categories lists category nodes, filtered by level and parent when
// given.
func (s *ExpenseService) Categories(ctx context.Context, level int, parentID int64) ([]core.Category, error) {
	return s.storage.Categories(ctx, level, parentID)
}

// CategoryNames lists just the names for selection menus.
func (s *ExpenseService) CategoryNames(ctx context.Context, level int, parentID int64) ([]string, error) {
	return s.storage.CategoryNames(ctx, level, parentID)
}

func (s *ExpenseService) Close() error {
	return s.storage.Close()
}
