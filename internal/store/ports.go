// Package store defines the persistence ports of the ledger.
//
// Implementations return raw schema.Record rows; callers validate them with
// the schema package before use.
package store

import (
	"context"
	"errors"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ReferenceError reports an entry that points at a category or account the
// user cannot see.
type ReferenceError struct {
	Field string
	ID    int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Field, e.ID)
}

// EntryQuery selects entries of one user. Zero period bounds are unbounded
// and a zero Limit returns every row.
type EntryQuery struct {
	Period core.Period
	Limit  int
}

// Ports for outbound adapters.
type (
	AccountStore interface {
		// ListAccounts returns the rows visible under o, name ascending.
		ListAccounts(ctx context.Context, o core.Ownership) ([]schema.Record, error)
		CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (schema.Record, error)
	}

	CategoryStore interface {
		// ListCategories returns the rows visible under o, name ascending.
		ListCategories(ctx context.Context, o core.Ownership) ([]schema.Record, error)
		CreateCategory(ctx context.Context, ownerID string, in core.CategoryInput) (schema.Record, error)
	}

	EntryStore interface {
		// ListEntries returns the user's entries, date descending, with
		// category and account joined in.
		ListEntries(ctx context.Context, userID string, q EntryQuery) ([]schema.Record, error)
		// CreateEntry stores the entry for userID and returns the joined row.
		CreateEntry(ctx context.Context, userID string, in core.EntryInput) (schema.Record, error)
		GetEntry(ctx context.Context, id int64) (schema.Record, error)
	}

	// Ledger is the full persistence surface used by the service layer.
	Ledger interface {
		AccountStore
		CategoryStore
		EntryStore
	}

	// MirrorQueue tracks which entries still need to be copied to the
	// spreadsheet mirror.
	MirrorQueue interface {
		ListUnmirrored(ctx context.Context, limit int) ([]schema.Record, error)
		MarkMirrored(ctx context.Context, id int64) error
	}
)
