// Package sheets defines the spreadsheet mirror ports.
package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter appends one entry as a spreadsheet row.
	EntryWriter interface {
		AppendEntry(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// MirrorReader lists entry ids already present in the year's sheet.
	MirrorReader interface {
		MirroredIDs(ctx context.Context, year int) (map[int64]bool, error)
	}
)
