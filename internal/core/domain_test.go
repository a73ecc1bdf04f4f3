package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validEntry() EntryInput {
	return EntryInput{
		Type:       Expense,
		Amount:     Money{Cents: 1000},
		Date:       NewDate(2024, 6, 1),
		CategoryID: 1,
		AccountID:  1,
	}
}

func TestEntryInputValidate(t *testing.T) {
	if err := validEntry().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := strings.Repeat("a", 256)
	exact := strings.Repeat("あ", 255)
	cases := []struct {
		name  string
		mut   func(*EntryInput)
		field string
	}{
		{"zero amount", func(e *EntryInput) { e.Amount = Money{} }, "amount"},
		{"negative amount", func(e *EntryInput) { e.Amount = Money{Cents: -5} }, "amount"},
		{"bad type", func(e *EntryInput) { e.Type = "transfer" }, "type"},
		{"missing date", func(e *EntryInput) { e.Date = Date{} }, "date"},
		{"long description", func(e *EntryInput) { e.Description = &long }, "description"},
		{"missing category", func(e *EntryInput) { e.CategoryID = 0 }, "categoryId"},
		{"missing account", func(e *EntryInput) { e.AccountID = 0 }, "accountId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validEntry()
			tc.mut(&in)
			err := in.Validate()
			v, ok := AsValidation(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if v.Field(tc.field) == "" {
				t.Fatalf("expected issue on %q, got %v", tc.field, v.Issues)
			}
		})
	}

	in := validEntry()
	in.Description = &exact
	if err := in.Validate(); err != nil {
		t.Fatalf("255 runes should be accepted, got %v", err)
	}
}

func TestCategoryInputValidate(t *testing.T) {
	for _, c := range Palette {
		if err := (CategoryInput{Name: "Food", Color: c}).Validate(); err != nil {
			t.Fatalf("color %s: %v", c, err)
		}
	}
	if err := (CategoryInput{Name: "Food", Color: "magenta"}).Validate(); err == nil {
		t.Fatal("expected error for color outside the palette")
	}
	if err := (CategoryInput{Name: "  ", Color: Gray}).Validate(); err == nil {
		t.Fatal("expected error for blank name")
	}
	if ColorOrDefault("") != Gray {
		t.Fatal("empty color should default to gray")
	}
}

func TestAccountInputValidate(t *testing.T) {
	if err := (AccountInput{Name: "Wallet", InitialBalance: Money{Cents: -100}}).Validate(); err != nil {
		t.Fatalf("negative opening balance should be allowed: %v", err)
	}
	if err := (AccountInput{Name: strings.Repeat("x", 51)}).Validate(); err == nil {
		t.Fatal("expected error for long name")
	}
}

func TestKindOf(t *testing.T) {
	v := &ValidationError{}
	v.Add("amount", "must be greater than 0")
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrUnauthorized, KindUnauthorized},
		{fmt.Errorf("create entry: %w", ErrUnauthorized), KindUnauthorized},
		{v, KindValidation},
		{fmt.Errorf("wrapped: %w", v), KindValidation},
		{errors.New("disk full"), KindUnknown},
	}
	for i, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("case %d: KindOf = %v, want %v", i, got, tc.want)
		}
	}
}

func TestValidationErrorMerge(t *testing.T) {
	inner := &ValidationError{}
	inner.Add("color", "bad")
	var outer ValidationError
	outer.Merge("category", inner)
	outer.Merge("[2]", inner)
	if outer.Field("category.color") != "bad" || outer.Field("[2].color") != "bad" {
		t.Fatalf("unexpected paths: %v", outer.Issues)
	}
}

func TestOwnershipVisible(t *testing.T) {
	o := OwnedOrShared("u1")
	if !o.Visible("") || !o.Visible("u1") || o.Visible("u2") {
		t.Fatal("owned-or-shared rule violated")
	}
	own := Ownership{UserID: "u1"}
	if own.Visible("") {
		t.Fatal("shared rows must be hidden when IncludeShared is false")
	}
}
