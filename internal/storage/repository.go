// Package storage persists the category tree and the expense ledger in
// a file-backed SQLite database. Every operation runs as a short-lived
// statement against a shared pool; expected absence is reported through
// ErrNotFound while storage faults propagate wrapped.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"masareef/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports an expected absence: an id or a category name
// that does not resolve. It is never a storage fault.
var ErrNotFound = errors.New("not found")

// Repository is the SQLite-backed category tree store, expense ledger
// and aggregation engine.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath, applies
// migrations and seeds the default category hierarchy when the tree is
// empty.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &Repository{db: db}
	if err := r.Seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	return r, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Amounts are stored as integer ten-thousandths so that sums stay
// exact inside SQLite.
func toStored(d decimal.Decimal) int64 {
	return d.Round(core.MoneyScale).Shift(core.MoneyScale).IntPart()
}

func fromStored(n int64) decimal.Decimal {
	return decimal.New(n, -core.MoneyScale)
}

// Categories returns category rows in insertion order. A level or
// parentID of zero or below leaves that filter off; callers rely on
// insertion order for stable selection menus, so no sort is applied
// beyond the rowid.
func (r *Repository) Categories(ctx context.Context, level int, parentID int64) ([]core.Category, error) {
	query := "SELECT id, name, parent_id, level FROM categories"
	var (
		where []string
		args  []any
	)
	if level > 0 {
		where = append(where, "level = ?")
		args = append(args, level)
	}
	if parentID > 0 {
		where = append(where, "parent_id = ?")
		args = append(args, parentID)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var (
			c      core.Category
			parent sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &parent, &c.Level); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			c.ParentID = &p
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CategoryNames returns just the names, in insertion order.
func (r *Repository) CategoryNames(ctx context.Context, level int, parentID int64) ([]string, error) {
	cats, err := r.Categories(ctx, level, parentID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names, nil
}

// ResolveCategoryID looks up a category id by name. With parentID > 0
// the lookup is scoped to that parent's children; unscoped lookups
// return the first match by lowest id, an accepted ambiguity when
// duplicate names exist on different branches.
func (r *Repository) ResolveCategoryID(ctx context.Context, name string, parentID int64) (int64, error) {
	query := "SELECT id FROM categories WHERE name = ?"
	args := []any{name}
	if parentID > 0 {
		query += " AND parent_id = ?"
		args = append(args, parentID)
	}
	query += " ORDER BY id LIMIT 1"

	var id int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve category %q: %w", name, err)
	}
	return id, nil
}

// CategoryName is the inverse lookup; a missing id yields ErrNotFound.
func (r *Repository) CategoryName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, "SELECT name FROM categories WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("category name %d: %w", id, err)
	}
	return name, nil
}

// GetOrCreateCategory resolves a name within its exact parent scope
// (parentID <= 0 means root, matched against a null parent) and creates
// the node when missing.
func (r *Repository) GetOrCreateCategory(ctx context.Context, name string, parentID int64, level int) (int64, error) {
	parent := sql.NullInt64{Int64: parentID, Valid: parentID > 0}

	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM categories WHERE name = ? AND parent_id IS ? ORDER BY id LIMIT 1",
		name, parent).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup category %q: %w", name, err)
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, parent_id, level) VALUES (?, ?, ?)",
		name, parent, level)
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	slog.InfoContext(ctx, "Category created", "id", id, "name", name, "level", level)
	return id, nil
}

// Expense is the full stored record: raw category references plus the
// names resolved at read time.
type Expense struct {
	ID                  int64
	Date                core.Date
	CategoryID          sql.NullInt64
	SubcategoryID       sql.NullInt64
	SubSubcategoryID    sql.NullInt64
	SubSubSubcategoryID sql.NullInt64
	Description         string
	AmountBeforeVAT     decimal.Decimal
	VATAmount           decimal.Decimal
	TotalAmount         decimal.Decimal
	EnteredBy           string

	Category          string
	Subcategory       string
	SubSubcategory    string
	SubSubSubcategory string
}

// Entry converts the stored record to its denormalized read shape.
func (e Expense) Entry() core.LedgerEntry {
	return core.LedgerEntry{
		ID:                e.ID,
		Date:              e.Date,
		Category:          e.Category,
		Subcategory:       e.Subcategory,
		SubSubcategory:    e.SubSubcategory,
		SubSubSubcategory: e.SubSubSubcategory,
		Description:       e.Description,
		AmountBeforeVAT:   e.AmountBeforeVAT,
		VATAmount:         e.VATAmount,
		TotalAmount:       e.TotalAmount,
		EnteredBy:         e.EnteredBy,
	}
}

// InsertExpense persists a new expense row and returns its id. Amounts
// are normalized to the fixed scale; a failed insert leaves no partial
// row behind.
func (r *Repository) InsertExpense(ctx context.Context, e Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO expenses
            (date, category_id, subcategory_id, subsubcategory_id, subsubsubcategory_id,
             description, amount_before_vat, vat_amount, total_amount, entered_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Date.String(), e.CategoryID, e.SubcategoryID, e.SubSubcategoryID, e.SubSubSubcategoryID,
		e.Description, toStored(e.AmountBeforeVAT), toStored(e.VATAmount), toStored(e.TotalAmount),
		e.EnteredBy)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"date", e.Date.String(),
		"total_amount", e.TotalAmount.String(),
		"entered_by", e.EnteredBy)
	return id, nil
}

// ExpenseUpdate overwrites exactly the fields that are set. Category
// slots carry resolved identifiers; the inner null clears a reference.
type ExpenseUpdate struct {
	Date                *core.Date
	CategoryID          *sql.NullInt64
	SubcategoryID       *sql.NullInt64
	SubSubcategoryID    *sql.NullInt64
	SubSubSubcategoryID *sql.NullInt64
	Description         *string
	AmountBeforeVAT     *decimal.Decimal
	VATAmount           *decimal.Decimal
	TotalAmount         *decimal.Decimal
	EnteredBy           *string
}

// UpdateExpense applies the set fields to one row. found is false when
// the id does not exist; callers treat that as expected absence, not as
// a fault.
func (r *Repository) UpdateExpense(ctx context.Context, id int64, u ExpenseUpdate) (found bool, err error) {
	var (
		set  []string
		args []any
	)
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}

	if u.Date != nil {
		add("date", u.Date.String())
	}
	if u.CategoryID != nil {
		add("category_id", *u.CategoryID)
	}
	if u.SubcategoryID != nil {
		add("subcategory_id", *u.SubcategoryID)
	}
	if u.SubSubcategoryID != nil {
		add("subsubcategory_id", *u.SubSubcategoryID)
	}
	if u.SubSubSubcategoryID != nil {
		add("subsubsubcategory_id", *u.SubSubSubcategoryID)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.AmountBeforeVAT != nil {
		add("amount_before_vat", toStored(*u.AmountBeforeVAT))
	}
	if u.VATAmount != nil {
		add("vat_amount", toStored(*u.VATAmount))
	}
	if u.TotalAmount != nil {
		add("total_amount", toStored(*u.TotalAmount))
	}
	if u.EnteredBy != nil {
		add("entered_by", *u.EnteredBy)
	}
	if len(set) == 0 {
		return false, fmt.Errorf("update expense %d: no fields provided", id)
	}

	query := "UPDATE expenses SET "
	for i, s := range set {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update expense %d: %w", id, err)
	}
	if n == 0 {
		slog.WarnContext(ctx, "Update targeted a missing expense", "id", id)
		return false, nil
	}
	slog.InfoContext(ctx, "Expense updated", "id", id, "fields", len(set))
	return true, nil
}

// DeleteExpense removes one row. Deleting a missing id is a no-op.
func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// DeleteAllExpenses irreversibly empties the ledger and reports how
// many rows were removed. Confirmation gating happens at the caller
// boundary; once invoked there is no undo.
func (r *Repository) DeleteAllExpenses(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses")
	if err != nil {
		return 0, fmt.Errorf("delete all expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all expenses: %w", err)
	}
	slog.InfoContext(ctx, "Ledger wiped", "deleted", n)
	return n, nil
}

const entrySelect = `
    SELECT e.id, e.date,
           c1.name, c2.name, c3.name, c4.name,
           e.description, e.amount_before_vat, e.vat_amount, e.total_amount, e.entered_by
    FROM expenses e
    LEFT JOIN categories c1 ON e.category_id = c1.id
    LEFT JOIN categories c2 ON e.subcategory_id = c2.id
    LEFT JOIN categories c3 ON e.subsubcategory_id = c3.id
    LEFT JOIN categories c4 ON e.subsubsubcategory_id = c4.id`

// ExpensesByDateRange returns denormalized entries with date in
// [start, end] inclusive, newest first. Ties on the date break by
// descending id, which keeps the order stable across calls.
func (r *Repository) ExpensesByDateRange(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		entrySelect+" WHERE e.date BETWEEN ? AND ? ORDER BY e.date DESC, e.id DESC",
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("expenses by date range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ExpensesByEnteredBy filters by the recorded author name (exact
// match), optionally bounded by both dates.
func (r *Repository) ExpensesByEnteredBy(ctx context.Context, name string, start, end core.Date) ([]core.LedgerEntry, error) {
	query := entrySelect + " WHERE e.entered_by = ?"
	args := []any{name}
	if start.IsSet() && end.IsSet() {
		query += " AND e.date BETWEEN ? AND ?"
		args = append(args, start.String(), end.String())
	}
	query += " ORDER BY e.date DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expenses by author: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]core.LedgerEntry, error) {
	var entries []core.LedgerEntry
	for rows.Next() {
		var (
			e                  core.LedgerEntry
			date               string
			c1, c2, c3, c4     sql.NullString
			desc, enteredBy    sql.NullString
			amount, vat, total int64
		)
		if err := rows.Scan(&e.ID, &date, &c1, &c2, &c3, &c4, &desc, &amount, &vat, &total, &enteredBy); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("scan expense %d: malformed date %q", e.ID, date)
		}
		e.Date = d
		e.Category = c1.String
		e.Subcategory = c2.String
		e.SubSubcategory = c3.String
		e.SubSubSubcategory = c4.String
		e.Description = desc.String
		e.EnteredBy = enteredBy.String
		e.AmountBeforeVAT = fromStored(amount)
		e.VATAmount = fromStored(vat)
		e.TotalAmount = fromStored(total)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan expenses: %w", err)
	}
	return entries, nil
}

// ExpenseByID returns the full stored record, raw references included.
func (r *Repository) ExpenseByID(ctx context.Context, id int64) (Expense, error) {
	var (
		e                  Expense
		date               string
		c1, c2, c3, c4     sql.NullString
		desc, enteredBy    sql.NullString
		amount, vat, total int64
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT e.id, e.date,
               e.category_id, e.subcategory_id, e.subsubcategory_id, e.subsubsubcategory_id,
               c1.name, c2.name, c3.name, c4.name,
               e.description, e.amount_before_vat, e.vat_amount, e.total_amount, e.entered_by
        FROM expenses e
        LEFT JOIN categories c1 ON e.category_id = c1.id
        LEFT JOIN categories c2 ON e.subcategory_id = c2.id
        LEFT JOIN categories c3 ON e.subsubcategory_id = c3.id
        LEFT JOIN categories c4 ON e.subsubsubcategory_id = c4.id
        WHERE e.id = ?`, id).Scan(
		&e.ID, &date,
		&e.CategoryID, &e.SubcategoryID, &e.SubSubcategoryID, &e.SubSubSubcategoryID,
		&c1, &c2, &c3, &c4,
		&desc, &amount, &vat, &total, &enteredBy)
	if errors.Is(err, sql.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("expense by id %d: %w", id, err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return Expense{}, fmt.Errorf("expense %d: malformed date %q", id, date)
	}
	e.Date = d
	e.Category = c1.String
	e.Subcategory = c2.String
	e.SubSubcategory = c3.String
	e.SubSubSubcategory = c4.String
	e.Description = desc.String
	e.EnteredBy = enteredBy.String
	e.AmountBeforeVAT = fromStored(amount)
	e.VATAmount = fromStored(vat)
	e.TotalAmount = fromStored(total)
	return e, nil
}

// SummarizeByCategory groups expenses in [start, end] by level-1 and
// level-2 category name, summing total_amount per group, largest sum
// first. Equal sums order by category then subcategory name, a
// documented stable tie-break. A TOTAL row is appended only when at
// least one group exists.
func (r *Repository) SummarizeByCategory(ctx context.Context, start, end core.Date) ([]core.SummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT c1.name, COALESCE(c2.name, ''), SUM(e.total_amount)
        FROM expenses e
        JOIN categories c1 ON e.category_id = c1.id
        LEFT JOIN categories c2 ON e.subcategory_id = c2.id
        WHERE e.date BETWEEN ? AND ?
        GROUP BY c1.name, c2.name
        ORDER BY SUM(e.total_amount) DESC, c1.name ASC, c2.name ASC`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("summarize by category: %w", err)
	}
	defer rows.Close()

	var (
		summary []core.SummaryRow
		grand   int64
	)
	for rows.Next() {
		var (
			row   core.SummaryRow
			total int64
		)
		if err := rows.Scan(&row.Category, &row.Subcategory, &total); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		row.TotalAmount = fromStored(total)
		grand += total
		summary = append(summary, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize by category: %w", err)
	}

	if len(summary) > 0 {
		summary = append(summary, core.SummaryRow{
			Category:    core.TotalLabel,
			TotalAmount: fromStored(grand),
		})
	}
	return summary, nil
}
