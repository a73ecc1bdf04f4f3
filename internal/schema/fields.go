package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// fields reads typed values out of a Record and records an Issue for every
// field that is missing or has the wrong shape.
type fields struct {
	raw Record
	v   core.ValidationError
}

func newFields(raw Record) *fields { return &fields{raw: raw} }

func (f *fields) fail(key, msg string) { f.v.Add(key, msg) }

func (f *fields) err() error { return f.v.OrNil() }

// lookup returns the value for key, treating an explicit nil as absent.
func (f *fields) lookup(key string) (any, bool) {
	val, ok := f.raw[key]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

// id reads a positive integer identifier. Integer strings are coerced.
func (f *fields) id(key string) int64 {
	val, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return 0
	}
	n, ok := toInt64(val)
	if !ok {
		if s, isStr := val.(string); isStr {
			n, ok = parseIntString(s)
		}
	}
	if !ok {
		f.fail(key, "must be an integer")
		return 0
	}
	if n <= 0 {
		f.fail(key, "must be a positive integer")
		return 0
	}
	return n
}

// cents reads an integer count of minor units as stored by the data layer.
// A missing value yields def, or an issue when required is set.
func (f *fields) cents(key string, required bool, def int64) int64 {
	val, ok := f.lookup(key)
	if !ok {
		if required {
			f.fail(key, "is required")
		}
		return def
	}
	if m, isMoney := val.(core.Money); isMoney {
		return m.Cents
	}
	n, ok := toInt64(val)
	if !ok {
		f.fail(key, "must be an integer amount of minor units")
		return def
	}
	return n
}

// amount reads a monetary value expressed in major units (a JSON number) or
// an already-shaped core.Money. Strings are rejected.
func (f *fields) amount(key string, required bool) core.Money {
	val, ok := f.lookup(key)
	if !ok {
		if required {
			f.fail(key, "is required")
		}
		return core.Money{}
	}
	var d decimal.Decimal
	switch x := val.(type) {
	case core.Money:
		return x
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			f.fail(key, "must be a number")
			return core.Money{}
		}
		d = parsed
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			f.fail(key, "must be a finite number")
			return core.Money{}
		}
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	default:
		f.fail(key, "must be a number")
		return core.Money{}
	}
	cents, err := core.ParseSignedCents(d.String())
	if err != nil {
		f.fail(key, "is out of range")
		return core.Money{}
	}
	return core.Money{Cents: cents}
}

// str reads a required non-blank string of at most max runes.
func (f *fields) str(key string, max int) string {
	val, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return ""
	}
	s, ok := val.(string)
	if !ok {
		f.fail(key, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		f.fail(key, "is required")
	case max > 0 && utf8.RuneCountInString(s) > max:
		f.fail(key, "must be at most "+strconv.Itoa(max)+" characters")
	}
	return s
}

// optText is optStr for free text: blank or whitespace-only becomes nil.
func (f *fields) optText(key string, max int) *string {
	s := f.optStr(key, max)
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// optStr reads a nullable string. Absent and nil both yield nil.
func (f *fields) optStr(key string, max int) *string {
	val, ok := f.lookup(key)
	if !ok {
		return nil
	}
	switch s := val.(type) {
	case string:
		if max > 0 && utf8.RuneCountInString(s) > max {
			f.fail(key, "must be at most "+strconv.Itoa(max)+" characters")
			return nil
		}
		return &s
	case *string:
		if s == nil {
			return nil
		}
		if max > 0 && utf8.RuneCountInString(*s) > max {
			f.fail(key, "must be at most "+strconv.Itoa(max)+" characters")
			return nil
		}
		out := *s
		return &out
	default:
		f.fail(key, "must be a string or null")
		return nil
	}
}

// owner reads a nullable owner id. Nil and "" both mean ownerless.
func (f *fields) owner(key string) string {
	val, ok := f.lookup(key)
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		f.fail(key, "must be a string or null")
		return ""
	}
	return s
}

// date reads a calendar date from a core.Date, a time.Time, or an ISO string
// (YYYY-MM-DD or RFC 3339).
func (f *fields) date(key string) core.Date {
	val, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return core.Date{}
	}
	switch x := val.(type) {
	case core.Date:
		if x.IsZero() {
			f.fail(key, "is required")
		}
		return x
	case time.Time:
		if x.IsZero() {
			f.fail(key, "is required")
			return core.Date{}
		}
		return core.DateOf(x)
	case string:
		if d, err := core.ParseDate(x); err == nil {
			return d
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(x)); err == nil {
			return core.DateOf(t)
		}
		f.fail(key, "must be a date (YYYY-MM-DD)")
	default:
		f.fail(key, "must be a date")
	}
	return core.Date{}
}

func (f *fields) entryType(key string) core.EntryType {
	val, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return ""
	}
	var t core.EntryType
	switch x := val.(type) {
	case core.EntryType:
		t = x
	case string:
		t = core.EntryType(x)
	}
	if !t.Valid() {
		f.fail(key, "must be one of income, expense")
		return ""
	}
	return t
}

// color reads a palette color, defaulting to gray when absent or blank.
func (f *fields) color(key string) core.Color {
	val, ok := f.lookup(key)
	if !ok {
		return core.DefaultColor
	}
	var c core.Color
	switch x := val.(type) {
	case core.Color:
		c = x
	case string:
		c = core.Color(strings.TrimSpace(x))
	default:
		f.fail(key, "must be a string")
		return core.DefaultColor
	}
	c = core.ColorOrDefault(c)
	if !c.Valid() {
		f.fail(key, "must be one of red, orange, yellow, green, teal, blue, indigo, purple, pink, gray")
		return core.DefaultColor
	}
	return c
}

// nested validates the sub-record at key with s and merges its issues under
// the key prefix.
func nested[T any](f *fields, key string, s Schema[T]) T {
	var zero T
	val, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return zero
	}
	var sub Record
	switch x := val.(type) {
	case Record:
		sub = x
	case map[string]any:
		sub = Record(x)
	default:
		f.fail(key, "must be an object")
		return zero
	}
	out, err := Validate(s, sub)
	if err != nil {
		if v, isV := core.AsValidation(err); isV {
			f.v.Merge(key, v)
		} else {
			f.fail(key, err.Error())
		}
		return zero
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func parseIntString(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}
