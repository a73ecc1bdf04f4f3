package storage

import (
	"database/sql"
)

type Account struct {
	ID             int64
	UserID         sql.NullString
	Name           string
	InitialBalance int64
}

type Category struct {
	ID     int64
	UserID sql.NullString
	Name   string
	Color  string
}

// EntryRow is an entry joined with its category and account.
type EntryRow struct {
	ID          int64
	UserID      string
	Type        string
	Amount      int64
	Date        string
	Description sql.NullString
	CategoryID  int64
	AccountID   int64
	Category    Category
	Account     Account
}
