// Package sheets defines the outbound port for spreadsheet exports.
package sheets

import (
	"context"

	"masareef/internal/core"
)

// ExpenseRowAppender appends denormalized ledger rows to an external
// spreadsheet. The call is synchronous; the returned count is how many
// rows were written.
type ExpenseRowAppender interface {
	AppendEntries(ctx context.Context, entries []core.LedgerEntry) (int, error)
}
