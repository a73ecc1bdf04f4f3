package http

// Parsing helpers shared by the page handlers and the JSON API.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
)

const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// ParseWeek returns the Monday to Sunday week selected by the "week" query
// parameter. A missing or malformed value selects the week of today.
func ParseWeek(query url.Values, today core.Date) core.Period {
	if v := strings.TrimSpace(query.Get("week")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			return core.WeekOf(d)
		}
	}
	return core.WeekOf(today)
}

// ParsePeriod reads the optional "from" and "to" bounds of an API listing.
func ParsePeriod(query url.Values) (core.Period, error) {
	var p core.Period
	v := &core.ValidationError{}
	if s := strings.TrimSpace(query.Get("from")); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			v.Add("from", "must be a date (YYYY-MM-DD)")
		}
		p.From = d
	}
	if s := strings.TrimSpace(query.Get("to")); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			v.Add("to", "must be a date (YYYY-MM-DD)")
		}
		p.To = d
	}
	if err := v.OrNil(); err != nil {
		return core.Period{}, err
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		v.Add("to", "must not be before from")
		return core.Period{}, v
	}
	return p, nil
}

// ParseLimit reads a positive "limit" capped at max. Zero means no limit was
// given.
func ParseLimit(query url.Values, max int) (int, error) {
	s := strings.TrimSpace(query.Get("limit"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		v := &core.ValidationError{}
		v.Add("limit", "must be a positive integer")
		return 0, v
	}
	if n > max {
		n = max
	}
	return n, nil
}

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, otherwise as
// a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(trimmed, "{") || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Record exposes the parsed body to the schema layer. JSON numbers stay
// json.Number so amounts keep their exact decimal text.
func (p *RequestBodyParser) Record() schema.Record {
	if p.jsonData != nil {
		return schema.Record(p.jsonData)
	}
	return schema.FormRecord(p.formData)
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on
// failure.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed request")
	}
	return nil
}
