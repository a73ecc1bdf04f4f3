package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
)

func storedEntry() Record {
	return Record{
		"id":          int64(7),
		"userId":      "u1",
		"type":        "expense",
		"amount":      int64(1000),
		"date":        "2024-06-01",
		"description": nil,
		"categoryId":  int64(1),
		"accountId":   int64(1),
		"category":    Record{"id": int64(1), "userId": nil, "name": "Food", "color": "red"},
		"account":     Record{"id": int64(1), "userId": nil, "name": "Wallet", "initialBalance": int64(0)},
	}
}

func issuesOf(t *testing.T, err error) *core.ValidationError {
	t.Helper()
	v, ok := core.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	return v
}

func TestEntryStoredRow(t *testing.T) {
	e, err := Validate(Entry, storedEntry())
	require.NoError(t, err)
	require.Equal(t, int64(1000), e.Amount.Cents)
	require.Equal(t, core.NewDate(2024, 6, 1), e.Date)
	require.Nil(t, e.Description)
	require.Equal(t, "Food", e.Category.Name)
	require.Equal(t, core.Red, e.Category.Color)
	require.Equal(t, "Wallet", e.Account.Name)
	require.Empty(t, e.Category.OwnerID)
}

func TestEntryStoredRowNestedIssues(t *testing.T) {
	raw := storedEntry()
	raw["category"] = Record{"id": int64(1), "name": "Food", "color": "magenta"}
	raw["amount"] = int64(0)

	_, err := Validate(Entry, raw)
	v := issuesOf(t, err)
	require.NotEmpty(t, v.Field("category.color"))
	require.NotEmpty(t, v.Field("amount"))
}

func TestEntryStoredRowMissingJoin(t *testing.T) {
	raw := storedEntry()
	delete(raw, "account")
	_, err := Validate(Entry, raw)
	require.NotEmpty(t, issuesOf(t, err).Field("account"))
}

func TestCategoryColorDefault(t *testing.T) {
	c, err := Validate(Category, Record{"id": int64(3), "name": "Misc"})
	require.NoError(t, err)
	require.Equal(t, core.Gray, c.Color)

	_, err = Validate(CategoryInput, Record{"name": "Misc", "color": "beige"})
	require.NotEmpty(t, issuesOf(t, err).Field("color"))

	in, err := Validate(CategoryInput, Record{"name": "Misc"})
	require.NoError(t, err)
	require.Equal(t, core.Gray, in.Color)
}

func TestAccountInitialBalanceDefault(t *testing.T) {
	a, err := Validate(Account, Record{"id": int64(2), "userId": "u1", "name": "Bank"})
	require.NoError(t, err)
	require.Zero(t, a.InitialBalance.Cents)
	require.Equal(t, "u1", a.OwnerID)

	in, err := Validate(AccountInput, Record{"name": "Bank", "initialBalance": json.Number("-20.5")})
	require.NoError(t, err)
	require.Equal(t, int64(-2050), in.InitialBalance.Cents)
}

func TestEntryInputJSON(t *testing.T) {
	var raw Record
	dec := json.NewDecoder(strings.NewReader(`{"type":"income","amount":1000,"date":"2024-06-01","categoryId":"1","accountId":2}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&raw))

	in, err := Validate(EntryInput, raw)
	require.NoError(t, err)
	require.Equal(t, core.Income, in.Type)
	require.Equal(t, int64(100000), in.Amount.Cents)
	require.Equal(t, int64(1), in.CategoryID)
	require.Equal(t, int64(2), in.AccountID)
	require.Nil(t, in.Description)
}

func TestEntryInputBlankDescription(t *testing.T) {
	for _, desc := range []any{"", "  \t", nil} {
		raw := Record{"type": "expense", "amount": 10.0, "date": "2024-06-01", "categoryId": 1, "accountId": 1, "description": desc}
		in, err := Validate(EntryInput, raw)
		require.NoError(t, err)
		require.Nil(t, in.Description, "description %q", desc)
	}

	raw := Record{"type": "expense", "amount": 10.0, "date": "2024-06-01", "categoryId": 1, "accountId": 1, "description": " tea "}
	in, err := Validate(EntryInput, raw)
	require.NoError(t, err)
	require.Equal(t, " tea ", *in.Description)
}

func TestAccountForm(t *testing.T) {
	in, err := Validate(AccountForm, Record{"name": "Wallet", "initialBalance": "-20.50"})
	require.NoError(t, err)
	require.Equal(t, "Wallet", in.Name)
	require.Equal(t, int64(-2050), in.InitialBalance.Cents)

	in, err = Validate(AccountForm, Record{"name": "Wallet"})
	require.NoError(t, err)
	require.Zero(t, in.InitialBalance.Cents)

	_, err = Validate(AccountForm, Record{"name": "", "initialBalance": "abc"})
	v := issuesOf(t, err)
	require.Equal(t, "must be a number", v.Field("initialBalance"))
	require.NotEmpty(t, v.Field("name"))
}

func TestEntryInputRejects(t *testing.T) {
	cases := []struct {
		name  string
		raw   Record
		field string
	}{
		{"zero amount", Record{"amount": json.Number("0")}, "amount"},
		{"negative amount", Record{"amount": -3.5}, "amount"},
		{"string amount", Record{"amount": "10"}, "amount"},
		{"bad type", Record{"type": "transfer"}, "type"},
		{"long description", Record{"description": strings.Repeat("x", 256)}, "description"},
		{"bad date", Record{"date": "06/01/2024"}, "date"},
		{"bad category", Record{"categoryId": "food"}, "categoryId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := Record{"type": "expense", "amount": 10.0, "date": "2024-06-01", "categoryId": 1, "accountId": 1}
			for k, v := range tc.raw {
				raw[k] = v
			}
			_, err := Validate(EntryInput, raw)
			require.NotEmpty(t, issuesOf(t, err).Field(tc.field))
		})
	}
}

func TestEntryForm(t *testing.T) {
	in, err := Validate(EntryForm, Record{
		"type":        "expense",
		"amount":      "1,000.5",
		"date":        "2024-06-01",
		"description": "   ",
		"categoryId":  "1",
		"accountId":   "1",
	})
	require.Error(t, err, "comma thousands separators are not accepted")

	in, err = Validate(EntryForm, Record{
		"type":        "expense",
		"amount":      "1000",
		"date":        "2024-06-01",
		"description": "   ",
		"categoryId":  "1",
		"accountId":   "1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(100000), in.Amount.Cents)
	require.Nil(t, in.Description, "blank description becomes null")

	_, err = Validate(EntryForm, Record{"type": "expense", "amount": "abc", "date": "", "categoryId": "", "accountId": "1"})
	v := issuesOf(t, err)
	require.Equal(t, "must be a number", v.Field("amount"))
	require.Equal(t, "is required", v.Field("date"))
	require.Equal(t, "is required", v.Field("categoryId"))
}

func TestValidateList(t *testing.T) {
	rows := []Record{
		{"id": int64(1), "name": "A"},
		{"id": int64(2), "name": ""},
		{"id": "x", "name": "C"},
	}
	_, err := ValidateList(Category, rows)
	v := issuesOf(t, err)
	require.NotEmpty(t, v.Field("[1].name"))
	require.NotEmpty(t, v.Field("[2].id"))

	out, err := ValidateList(Category, rows[:1])
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = Validate(Category, nil)
	require.Error(t, err)
}

func TestEntryRecordRoundTrip(t *testing.T) {
	desc := "lunch"
	e := core.Entry{
		ID: 1, UserID: "u1", Type: core.Expense, Amount: core.Money{Cents: 1200},
		Date: core.NewDate(2024, 6, 1), Description: &desc, CategoryID: 4, AccountID: 5,
		Category: core.Category{ID: 4, Name: "Food", Color: core.Green},
		Account:  core.Account{ID: 5, OwnerID: "u1", Name: "Card"},
	}
	got, err := Validate(Entry, EntryRecord(e))
	require.NoError(t, err)
	require.Equal(t, e, got)
}
