package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2024-06-01" {
		t.Fatalf("String() = %q, want 2024-06-01", d.String())
	}

	for _, bad := range []string{"", "2024-13-01", "01/06/2024", "yesterday"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q) expected error", bad)
		}
	}

	if (Date{}).String() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestNewExpenseValidate(t *testing.T) {
	good := NewExpense{
		Date:            NewDate(2024, 6, 1),
		Category:        "Fuel",
		Subcategory:     "Diesel",
		Description:     "workshop refuel",
		AmountBeforeVAT: decimal.RequireFromString("100"),
		Rate:            RateStandard,
		EnteredBy:       "Ahmed",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*NewExpense)
		want   error
	}{
		{"zero date", func(e *NewExpense) { e.Date = Date{} }, ErrInvalidDate},
		{"empty category", func(e *NewExpense) { e.Category = " " }, ErrEmptyCategory},
		{"empty description", func(e *NewExpense) { e.Description = "" }, ErrEmptyDescription},
		{"zero amount", func(e *NewExpense) { e.AmountBeforeVAT = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(e *NewExpense) { e.AmountBeforeVAT = decimal.RequireFromString("-1") }, ErrInvalidAmount},
		{"bad rate", func(e *NewExpense) { e.Rate = VATRate("0.5") }, ErrInvalidRate},
		{"empty entered by", func(e *NewExpense) { e.EnteredBy = "" }, ErrEmptyEnteredBy},
	}
	for _, tc := range cases {
		e := good
		tc.mutate(&e)
		if err := e.Validate(); err != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestExpenseUpdateEmpty(t *testing.T) {
	if !(ExpenseUpdate{}).Empty() {
		t.Fatalf("zero update should be empty")
	}
	desc := "new"
	u := ExpenseUpdate{Description: &desc}
	if u.Empty() {
		t.Fatalf("update with description should not be empty")
	}
	if u.TouchesCategories() {
		t.Fatalf("description update should not touch categories")
	}
	cat := "Fuel"
	if !(ExpenseUpdate{Category: &cat}).TouchesCategories() {
		t.Fatalf("category update should touch categories")
	}
}
