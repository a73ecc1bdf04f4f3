package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
	"kakeibo/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.Ledger      = (*SQLiteRepository)(nil)
	_ store.MirrorQueue = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the server and its own pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// listVisible runs a name-ordered listing under the ownership rule and maps
// each row to its record shape.
func listVisible[T any](ctx context.Context, o core.Ownership, list func(context.Context, ListVisibleParams) ([]T, error), toRecord func(T) schema.Record) ([]schema.Record, error) {
	rows, err := list(ctx, ListVisibleParams{UserID: o.UserID, IncludeShared: o.IncludeShared})
	if err != nil {
		return nil, err
	}
	out := make([]schema.Record, len(rows))
	for i, row := range rows {
		out[i] = toRecord(row)
	}
	return out, nil
}

// ListAccounts implements store.AccountStore
func (r *SQLiteRepository) ListAccounts(ctx context.Context, o core.Ownership) ([]schema.Record, error) {
	out, err := listVisible(ctx, o, r.queries.ListAccounts, accountRecord)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// CreateAccount implements store.AccountStore
func (r *SQLiteRepository) CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (schema.Record, error) {
	a, err := r.queries.CreateAccount(ctx, CreateAccountParams{
		UserID:         nullString(ownerID),
		Name:           strings.TrimSpace(in.Name),
		InitialBalance: in.InitialBalance.Cents,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "user_id", ownerID)
	return accountRecord(a), nil
}

// ListCategories implements store.CategoryStore
func (r *SQLiteRepository) ListCategories(ctx context.Context, o core.Ownership) ([]schema.Record, error) {
	out, err := listVisible(ctx, o, r.queries.ListCategories, categoryRecord)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// CreateCategory implements store.CategoryStore
func (r *SQLiteRepository) CreateCategory(ctx context.Context, ownerID string, in core.CategoryInput) (schema.Record, error) {
	c, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		UserID: nullString(ownerID),
		Name:   strings.TrimSpace(in.Name),
		Color:  string(core.ColorOrDefault(in.Color)),
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "user_id", ownerID)
	return categoryRecord(c), nil
}

// CreateEntry implements store.EntryStore. The category and account must be
// visible to userID; otherwise a *store.ReferenceError is returned and
// nothing is written.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, userID string, in core.EntryInput) (schema.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if _, err := q.GetVisibleCategory(ctx, in.CategoryID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.ReferenceError{Field: "categoryId", ID: in.CategoryID}
		}
		return nil, fmt.Errorf("check category: %w", err)
	}
	if _, err := q.GetVisibleAccount(ctx, in.AccountID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.ReferenceError{Field: "accountId", ID: in.AccountID}
		}
		return nil, fmt.Errorf("check account: %w", err)
	}

	var desc sql.NullString
	if in.Description != nil {
		desc = sql.NullString{String: *in.Description, Valid: true}
	}
	id, err := q.CreateEntry(ctx, CreateEntryParams{
		UserID:      userID,
		Type:        string(in.Type),
		Amount:      in.Amount.Cents,
		Date:        in.Date.String(),
		Description: desc,
		CategoryID:  in.CategoryID,
		AccountID:   in.AccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	row, err := q.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read back entry %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", id,
		"type", row.Type,
		"amount_cents", row.Amount,
		"date", row.Date)

	return entryRecord(row), nil
}

// ListEntries implements store.EntryStore
func (r *SQLiteRepository) ListEntries(ctx context.Context, userID string, q store.EntryQuery) ([]schema.Record, error) {
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListEntries(ctx, ListEntriesParams{
		UserID: userID,
		From:   q.Period.From.String(),
		To:     q.Period.To.String(),
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entryRecords(rows), nil
}

// GetEntry implements store.EntryStore
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (schema.Record, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get entry by id: %w", err)
	}
	return entryRecord(row), nil
}

// ListUnmirrored implements store.MirrorQueue
func (r *SQLiteRepository) ListUnmirrored(ctx context.Context, limit int) ([]schema.Record, error) {
	rows, err := r.queries.ListUnmirrored(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unmirrored entries: %w", err)
	}
	return entryRecords(rows), nil
}

// MarkMirrored implements store.MirrorQueue. Marking an already mirrored
// entry is a no-op.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	n, err := r.queries.MarkMirrored(ctx, id)
	if err != nil {
		return fmt.Errorf("mark entry mirrored: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Entry already mirrored or missing", "id", id)
	}
	return nil
}

func accountRecord(a Account) schema.Record {
	return schema.Record{
		"id":             a.ID,
		"userId":         nullableValue(a.UserID),
		"name":           a.Name,
		"initialBalance": a.InitialBalance,
	}
}

func categoryRecord(c Category) schema.Record {
	return schema.Record{
		"id":     c.ID,
		"userId": nullableValue(c.UserID),
		"name":   c.Name,
		"color":  c.Color,
	}
}

func entryRecord(e EntryRow) schema.Record {
	return schema.Record{
		"id":          e.ID,
		"userId":      e.UserID,
		"type":        e.Type,
		"amount":      e.Amount,
		"date":        e.Date,
		"description": nullableValue(e.Description),
		"categoryId":  e.CategoryID,
		"accountId":   e.AccountID,
		"category":    categoryRecord(e.Category),
		"account":     accountRecord(e.Account),
	}
}

func entryRecords(rows []EntryRow) []schema.Record {
	out := make([]schema.Record, len(rows))
	for i, row := range rows {
		out[i] = entryRecord(row)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableValue(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}
