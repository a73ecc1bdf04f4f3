package storage

import (
	"context"
	"database/sql"
)

const listAccounts = `-- name: ListAccounts :many
SELECT id, user_id, name, initial_balance
FROM accounts
WHERE user_id = ? OR (? AND user_id IS NULL)
ORDER BY name ASC, id ASC
`

type ListVisibleParams struct {
	UserID        string
	IncludeShared bool
}

func (q *Queries) ListAccounts(ctx context.Context, arg ListVisibleParams) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, arg.UserID, arg.IncludeShared)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.InitialBalance); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getVisibleAccount = `-- name: GetVisibleAccount :one
SELECT id, user_id, name, initial_balance
FROM accounts
WHERE id = ? AND (user_id = ? OR user_id IS NULL)
`

func (q *Queries) GetVisibleAccount(ctx context.Context, id int64, userID string) (Account, error) {
	row := q.db.QueryRowContext(ctx, getVisibleAccount, id, userID)
	var i Account
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.InitialBalance)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (user_id, name, initial_balance)
VALUES (?, ?, ?)
RETURNING id, user_id, name, initial_balance
`

type CreateAccountParams struct {
	UserID         sql.NullString
	Name           string
	InitialBalance int64
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.UserID, arg.Name, arg.InitialBalance)
	var i Account
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.InitialBalance)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, user_id, name, color
FROM categories
WHERE user_id = ? OR (? AND user_id IS NULL)
ORDER BY name ASC, id ASC
`

func (q *Queries) ListCategories(ctx context.Context, arg ListVisibleParams) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, arg.UserID, arg.IncludeShared)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getVisibleCategory = `-- name: GetVisibleCategory :one
SELECT id, user_id, name, color
FROM categories
WHERE id = ? AND (user_id = ? OR user_id IS NULL)
`

func (q *Queries) GetVisibleCategory(ctx context.Context, id int64, userID string) (Category, error) {
	row := q.db.QueryRowContext(ctx, getVisibleCategory, id, userID)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Color)
	return i, err
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (user_id, name, color)
VALUES (?, ?, ?)
RETURNING id, user_id, name, color
`

type CreateCategoryParams struct {
	UserID sql.NullString
	Name   string
	Color  string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.UserID, arg.Name, arg.Color)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Color)
	return i, err
}

const createEntry = `-- name: CreateEntry :one
INSERT INTO entries (user_id, type, amount, date, description, category_id, account_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateEntryParams struct {
	UserID      string
	Type        string
	Amount      int64
	Date        string
	Description sql.NullString
	CategoryID  int64
	AccountID   int64
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createEntry,
		arg.UserID,
		arg.Type,
		arg.Amount,
		arg.Date,
		arg.Description,
		arg.CategoryID,
		arg.AccountID,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const entryColumns = `
SELECT e.id, e.user_id, e.type, e.amount, e.date, e.description, e.category_id, e.account_id,
       c.id, c.user_id, c.name, c.color,
       a.id, a.user_id, a.name, a.initial_balance
FROM entries e
JOIN categories c ON c.id = e.category_id
JOIN accounts a ON a.id = e.account_id
`

const listEntries = `-- name: ListEntries :many` + entryColumns + `WHERE e.user_id = ?
  AND (? = '' OR e.date >= ?)
  AND (? = '' OR e.date <= ?)
ORDER BY e.date DESC, e.id DESC
LIMIT ?
`

type ListEntriesParams struct {
	UserID string
	From   string
	To     string
	// Limit < 0 returns every row.
	Limit int64
}

func (q *Queries) ListEntries(ctx context.Context, arg ListEntriesParams) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntries,
		arg.UserID,
		arg.From, arg.From,
		arg.To, arg.To,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	return scanEntryRows(rows)
}

const getEntry = `-- name: GetEntry :one` + entryColumns + `WHERE e.id = ?
`

func (q *Queries) GetEntry(ctx context.Context, id int64) (EntryRow, error) {
	row := q.db.QueryRowContext(ctx, getEntry, id)
	var i EntryRow
	err := scanEntry(row, &i)
	return i, err
}

const listUnmirrored = `-- name: ListUnmirrored :many` + entryColumns + `WHERE e.mirrored_at IS NULL
ORDER BY e.id ASC
LIMIT ?
`

func (q *Queries) ListUnmirrored(ctx context.Context, limit int64) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listUnmirrored, limit)
	if err != nil {
		return nil, err
	}
	return scanEntryRows(rows)
}

const markMirrored = `-- name: MarkMirrored :execrows
UPDATE entries SET mirrored_at = CURRENT_TIMESTAMP
WHERE id = ? AND mirrored_at IS NULL
`

func (q *Queries) MarkMirrored(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markMirrored, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, i *EntryRow) error {
	return s.Scan(
		&i.ID, &i.UserID, &i.Type, &i.Amount, &i.Date, &i.Description, &i.CategoryID, &i.AccountID,
		&i.Category.ID, &i.Category.UserID, &i.Category.Name, &i.Category.Color,
		&i.Account.ID, &i.Account.UserID, &i.Account.Name, &i.Account.InitialBalance,
	)
}

func scanEntryRows(rows *sql.Rows) ([]EntryRow, error) {
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		var i EntryRow
		if err := scanEntry(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
