// Package schema validates and shapes raw records into typed domain values.
//
// Every row read from a store and every inbound payload passes through a
// Schema before the rest of the application sees it. Failures are reported
// as *core.ValidationError with one Issue per offending field path.
package schema

import (
	"fmt"

	"kakeibo/internal/core"
)

// Record is an untyped value keyed by camelCase field names, as produced by
// a store row, a decoded JSON body or a form post.
type Record map[string]any

// Schema turns a Record into a typed value or reports why it cannot.
type Schema[T any] interface {
	Parse(raw Record) (T, error)
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc[T any] func(raw Record) (T, error)

func (f SchemaFunc[T]) Parse(raw Record) (T, error) { return f(raw) }

// Validate runs s against raw. A nil raw value is reported as a single
// root issue rather than a panic.
func Validate[T any](s Schema[T], raw Record) (T, error) {
	if raw == nil {
		var zero T
		v := &core.ValidationError{}
		v.Add("", "expected an object")
		return zero, v
	}
	return s.Parse(raw)
}

// ValidateList validates every element, prefixing issue paths with the
// element index. It returns all issues of all elements at once.
func ValidateList[T any](s Schema[T], raws []Record) ([]T, error) {
	out := make([]T, 0, len(raws))
	var agg core.ValidationError
	for i, raw := range raws {
		val, err := Validate(s, raw)
		if err != nil {
			v, ok := core.AsValidation(err)
			if !ok {
				return nil, err
			}
			agg.Merge(fmt.Sprintf("[%d]", i), v)
			continue
		}
		out = append(out, val)
	}
	if err := agg.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}
