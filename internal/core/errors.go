package core

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when an operation runs without an identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation   = errors.New("validation failed")
)

var ErrInvalidAmount = errors.New("invalid amount")

// Issue is a single validation problem at a field path such as
// "amount" or "category.color".
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every issue found while validating one value.
type ValidationError struct {
	Issues []Issue
}

func (v *ValidationError) Add(path, msg string) {
	v.Issues = append(v.Issues, Issue{Path: path, Message: msg})
}

// Merge appends the issues of other with prefix prepended to their paths.
func (v *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, is := range other.Issues {
		p := is.Path
		switch {
		case prefix == "":
		case p == "":
			p = prefix
		case strings.HasPrefix(p, "["):
			p = prefix + p
		default:
			p = prefix + "." + p
		}
		v.Add(p, is.Message)
	}
}

// OrNil returns v as an error, or nil when no issue was recorded.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Issues) == 0 {
		return nil
	}
	out := &ValidationError{Issues: append([]Issue(nil), v.Issues...)}
	return out
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Issues))
	for _, is := range v.Issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the first message recorded for path.
func (v *ValidationError) Field(path string) string {
	for _, is := range v.Issues {
		if is.Path == path {
			return is.Message
		}
	}
	return ""
}

// ErrorKind classifies failures for presentation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// KindOf maps err onto the failure taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindUnknown
	}
}

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
