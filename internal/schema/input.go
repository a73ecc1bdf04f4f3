package schema

import (
	"strings"

	"kakeibo/internal/core"
)

// EntryInput validates a create-entry payload. Amounts are numbers in major
// units; ids and date may arrive as strings.
var EntryInput Schema[core.EntryInput] = SchemaFunc[core.EntryInput](func(raw Record) (core.EntryInput, error) {
	f := newFields(raw)
	in := core.EntryInput{
		Type:        f.entryType("type"),
		Amount:      f.amount("amount", true),
		Date:        f.date("date"),
		Description: f.optText("description", core.MaxDescriptionLength),
		CategoryID:  f.id("categoryId"),
		AccountID:   f.id("accountId"),
	}
	if _, present := f.lookup("amount"); present && f.v.Field("amount") == "" && in.Amount.Cents <= 0 {
		f.fail("amount", "must be greater than 0")
	}
	return in, f.err()
})

// AccountInput validates a create-account payload. A missing opening
// balance is zero.
var AccountInput Schema[core.AccountInput] = SchemaFunc[core.AccountInput](func(raw Record) (core.AccountInput, error) {
	f := newFields(raw)
	in := core.AccountInput{
		Name:           f.str("name", core.MaxNameLength),
		InitialBalance: f.amount("initialBalance", false),
	}
	return in, f.err()
})

// CategoryInput validates a create-category payload. A missing color is gray.
var CategoryInput Schema[core.CategoryInput] = SchemaFunc[core.CategoryInput](func(raw Record) (core.CategoryInput, error) {
	f := newFields(raw)
	in := core.CategoryInput{
		Name:  f.str("name", core.MaxNameLength),
		Color: f.color("color"),
	}
	return in, f.err()
})

// EntryForm coerces an HTML form post, where every value is a string, and
// hands the result to EntryInput.
var EntryForm Schema[core.EntryInput] = SchemaFunc[core.EntryInput](func(raw Record) (core.EntryInput, error) {
	var v core.ValidationError
	shaped := Record{}
	for _, key := range []string{"type", "date", "categoryId", "accountId"} {
		if s := formString(raw, key); s != "" {
			shaped[key] = s
		}
	}
	if s := formString(raw, "amount"); s != "" {
		cents, err := core.ParseSignedCents(s)
		if err != nil {
			v.Add("amount", "must be a number")
		} else {
			shaped["amount"] = core.Money{Cents: cents}
		}
	}
	// A blank description is stored as null.
	if s, ok := raw["description"].(string); ok && strings.TrimSpace(s) != "" {
		shaped["description"] = s
	}

	in, err := EntryInput.Parse(shaped)
	return in, merge(&v, err)
})

// AccountForm coerces a form-encoded account, where the opening balance is a
// decimal string, and hands the result to AccountInput.
var AccountForm Schema[core.AccountInput] = SchemaFunc[core.AccountInput](func(raw Record) (core.AccountInput, error) {
	var v core.ValidationError
	shaped := Record{}
	if s := formString(raw, "name"); s != "" {
		shaped["name"] = s
	}
	if s := formString(raw, "initialBalance"); s != "" {
		cents, err := core.ParseSignedCents(s)
		if err != nil {
			v.Add("initialBalance", "must be a number")
		} else {
			shaped["initialBalance"] = core.Money{Cents: cents}
		}
	}
	in, err := AccountInput.Parse(shaped)
	return in, merge(&v, err)
})

// merge folds the issues of err into v, keeping the first issue per path.
// Errors other than validation failures are returned as is.
func merge(v *core.ValidationError, err error) error {
	if err == nil {
		return v.OrNil()
	}
	inner, ok := core.AsValidation(err)
	if !ok {
		return err
	}
	for _, is := range inner.Issues {
		if v.Field(is.Path) == "" {
			v.Add(is.Path, is.Message)
		}
	}
	return v.OrNil()
}

func formString(raw Record, key string) string {
	switch x := raw[key].(type) {
	case string:
		return strings.TrimSpace(x)
	case []string:
		if len(x) > 0 {
			return strings.TrimSpace(x[0])
		}
	}
	return ""
}
