package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the fixed decimal precision for every stored monetary
// amount. All three amounts of an expense are rounded to this scale at
// write time; display formatting is a formatter concern.
const MoneyScale = 4

// MaxCategoryDepth caps the category hierarchy by convention.
const MaxCategoryDepth = 4

// TotalLabel marks the synthesized grand-total row of a category summary.
const TotalLabel = "TOTAL"

type (
	// Date is a calendar date without a time component. The zero value
	// means "unset" and renders as an empty string.
	Date struct {
		time.Time
	}

	// Category is a node in the category forest. ParentID is nil for
	// roots; Level equals the depth of the ancestry chain plus one.
	Category struct {
		ID       int64
		Name     string
		ParentID *int64
		Level    int
	}

	// NewExpense is the submit payload for recording an expense. The
	// category path is given by name; levels below the first may be
	// empty. VAT is derived from AmountBeforeVAT and Rate on record.
	NewExpense struct {
		Date              Date
		Category          string
		Subcategory       string
		SubSubcategory    string
		SubSubSubcategory string
		Description       string
		AmountBeforeVAT   decimal.Decimal
		Rate              VATRate
		EnteredBy         string
	}

	// LedgerEntry is an expense joined with its resolved category names,
	// the shape every read path and export consumes. A missing category
	// level is an empty string, not an error.
	LedgerEntry struct {
		ID                int64
		Date              Date
		Category          string
		Subcategory       string
		SubSubcategory    string
		SubSubSubcategory string
		Description       string
		AmountBeforeVAT   decimal.Decimal
		VATAmount         decimal.Decimal
		TotalAmount       decimal.Decimal
		EnteredBy         string
	}

	// ExpenseUpdate overwrites exactly the fields that are set. A nil
	// slot leaves the stored value untouched; category slots carry names
	// and are re-resolved to identifiers by the service. VAT and the
	// total are never set directly, they are recomputed whenever the
	// amount or the rate changes.
	ExpenseUpdate struct {
		Date              *Date
		Category          *string
		Subcategory       *string
		SubSubcategory    *string
		SubSubSubcategory *string
		Description       *string
		AmountBeforeVAT   *decimal.Decimal
		Rate              *VATRate
		EnteredBy         *string
	}

	// SummaryRow is one aggregated line of a category summary. The grand
	// total uses Category == TotalLabel and an empty Subcategory.
	SummaryRow struct {
		Category    string
		Subcategory string
		TotalAmount decimal.Decimal
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidRate      = errors.New("invalid vat rate")
	ErrEmptyDescription = errors.New("empty description")
	ErrLongDescription  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyEnteredBy   = errors.New("empty entered by")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the ISO form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsSet reports whether the date carries a value.
func (d Date) IsSet() bool {
	return !d.IsZero()
}

func (e NewExpense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrLongDescription
	}
	if !e.AmountBeforeVAT.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Rate.Valid() {
		return ErrInvalidRate
	}
	if strings.TrimSpace(e.EnteredBy) == "" {
		return ErrEmptyEnteredBy
	}
	return nil
}

// Empty reports whether the update sets no fields at all.
func (u ExpenseUpdate) Empty() bool {
	return u.Date == nil && u.Category == nil && u.Subcategory == nil &&
		u.SubSubcategory == nil && u.SubSubSubcategory == nil &&
		u.Description == nil && u.AmountBeforeVAT == nil &&
		u.Rate == nil && u.EnteredBy == nil
}

// TouchesCategories reports whether any category slot is set, which
// forces the service to re-resolve the whole reference chain.
func (u ExpenseUpdate) TouchesCategories() bool {
	return u.Category != nil || u.Subcategory != nil ||
		u.SubSubcategory != nil || u.SubSubSubcategory != nil
}
