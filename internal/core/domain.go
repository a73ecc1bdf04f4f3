package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 255
)

type (
	EntryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Account is a place money lives. OwnerID is empty for shared default accounts.
	Account struct {
		ID             int64
		OwnerID        string
		Name           string
		InitialBalance Money
	}

	// Category labels entries. OwnerID is empty for shared default categories.
	Category struct {
		ID      int64
		OwnerID string
		Name    string
		Color   Color
	}

	// Entry is a single income or expense record with its category and
	// account joined in.
	Entry struct {
		ID          int64
		UserID      string
		Type        EntryType
		Amount      Money
		Date        Date
		Description *string
		CategoryID  int64
		AccountID   int64
		Category    Category
		Account     Account
	}

	EntryInput struct {
		Type        EntryType
		Amount      Money
		Date        Date
		Description *string
		CategoryID  int64
		AccountID   int64
	}

	AccountInput struct {
		Name           string
		InitialBalance Money
	}

	CategoryInput struct {
		Name  string
		Color Color
	}
)

// EntryTypes lists the accepted entry types in display order.
var EntryTypes = []EntryType{Expense, Income}

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Sign is +1 for income and -1 for expense.
func (t EntryType) Sign() int64 {
	if t == Income {
		return 1
	}
	return -1
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location and returns it as UTC midnight.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

func (in EntryInput) Validate() error {
	var v ValidationError
	if !in.Type.Valid() {
		v.Add("type", "must be one of income, expense")
	}
	if in.Amount.Cents <= 0 {
		v.Add("amount", "must be greater than 0")
	}
	if in.Date.IsZero() {
		v.Add("date", "is required")
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > MaxDescriptionLength {
		v.Add("description", "must be at most 255 characters")
	}
	if in.CategoryID <= 0 {
		v.Add("categoryId", "is required")
	}
	if in.AccountID <= 0 {
		v.Add("accountId", "is required")
	}
	return v.OrNil()
}

func (in AccountInput) Validate() error {
	var v ValidationError
	validateName(&v, in.Name)
	return v.OrNil()
}

func (in CategoryInput) Validate() error {
	var v ValidationError
	validateName(&v, in.Name)
	if !in.Color.Valid() {
		v.Add("color", "must be one of "+strings.Join(colorNames(), ", "))
	}
	return v.OrNil()
}

func validateName(v *ValidationError, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		v.Add("name", "is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		v.Add("name", "must be at most 50 characters")
	}
}

// Signed returns the amount with the entry's sign applied.
func (e Entry) Signed() Money {
	return Money{Cents: e.Type.Sign() * e.Amount.Cents}
}

// DescriptionText returns the description or "" when it is null.
func (e Entry) DescriptionText() string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}
