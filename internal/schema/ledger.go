package schema

import (
	"kakeibo/internal/core"
)

// Account validates a stored account row.
var Account Schema[core.Account] = SchemaFunc[core.Account](func(raw Record) (core.Account, error) {
	f := newFields(raw)
	a := core.Account{
		ID:             f.id("id"),
		OwnerID:        f.owner("userId"),
		Name:           f.str("name", core.MaxNameLength),
		InitialBalance: core.Money{Cents: f.cents("initialBalance", false, 0)},
	}
	return a, f.err()
})

// Category validates a stored category row.
var Category Schema[core.Category] = SchemaFunc[core.Category](func(raw Record) (core.Category, error) {
	f := newFields(raw)
	c := core.Category{
		ID:      f.id("id"),
		OwnerID: f.owner("userId"),
		Name:    f.str("name", core.MaxNameLength),
		Color:   f.color("color"),
	}
	return c, f.err()
})

// Entry validates a stored entry row with its category and account joined in.
var Entry Schema[core.Entry] = SchemaFunc[core.Entry](func(raw Record) (core.Entry, error) {
	f := newFields(raw)
	e := core.Entry{
		ID:          f.id("id"),
		UserID:      f.str("userId", 0),
		Type:        f.entryType("type"),
		Amount:      core.Money{Cents: f.cents("amount", true, 0)},
		Date:        f.date("date"),
		Description: f.optStr("description", core.MaxDescriptionLength),
		CategoryID:  f.id("categoryId"),
		AccountID:   f.id("accountId"),
	}
	if _, present := f.lookup("amount"); present && e.Amount.Cents <= 0 {
		f.fail("amount", "must be greater than 0")
	}
	e.Category = nested(f, "category", Category)
	e.Account = nested(f, "account", Account)
	if e.Category.ID != 0 && e.CategoryID != 0 && e.Category.ID != e.CategoryID {
		f.fail("category.id", "does not match categoryId")
	}
	if e.Account.ID != 0 && e.AccountID != 0 && e.Account.ID != e.AccountID {
		f.fail("account.id", "does not match accountId")
	}
	return e, f.err()
})
