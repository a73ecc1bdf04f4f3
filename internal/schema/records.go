package schema

import (
	"net/url"

	"kakeibo/internal/core"
)

// AccountRecord is the stored shape of an account.
func AccountRecord(a core.Account) Record {
	return Record{
		"id":             a.ID,
		"userId":         nullable(a.OwnerID),
		"name":           a.Name,
		"initialBalance": a.InitialBalance.Cents,
	}
}

// CategoryRecord is the stored shape of a category.
func CategoryRecord(c core.Category) Record {
	return Record{
		"id":     c.ID,
		"userId": nullable(c.OwnerID),
		"name":   c.Name,
		"color":  string(c.Color),
	}
}

// EntryRecord is the stored shape of an entry with its joined rows.
func EntryRecord(e core.Entry) Record {
	var desc any
	if e.Description != nil {
		desc = *e.Description
	}
	return Record{
		"id":          e.ID,
		"userId":      e.UserID,
		"type":        string(e.Type),
		"amount":      e.Amount.Cents,
		"date":        e.Date.String(),
		"description": desc,
		"categoryId":  e.CategoryID,
		"accountId":   e.AccountID,
		"category":    CategoryRecord(e.Category),
		"account":     AccountRecord(e.Account),
	}
}

// FormRecord flattens url.Values into a Record of single strings.
func FormRecord(form url.Values) Record {
	out := make(Record, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
