package http

import (
	"html/template"
	"strconv"
	"strings"

	"kakeibo/internal/core"
)

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// templateFuncs are available to every page template. money renders with
// the configured currency symbol.
func templateFuncs(currency string) template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format(currency) },
		"signed": func(e core.Entry) string {
			return e.Signed().Format(currency)
		},
		"amountInput": func(m core.Money) string { return m.String() },
		"date": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.String()
		},
		"dayLabel": func(d core.Date) string { return d.Format("Mon 2 Jan") },
		"weekLabel": func(p core.Period) string {
			return p.From.Format("2 Jan") + " to " + p.To.Format("2 Jan 2006")
		},
		"desc": func(e core.Entry) string { return e.DescriptionText() },
		"percent": func(part, total core.Money) int {
			if total.Cents <= 0 || part.Cents <= 0 {
				return 0
			}
			w := int((part.Cents*100 + total.Cents/2) / total.Cents)
			if w < 2 {
				w = 2
			}
			if w > 100 {
				w = 100
			}
			return w
		},
		"colorClass": func(c core.Color) string {
			return "color-" + string(core.ColorOrDefault(c))
		},
		"selected": func(a, b string) bool { return a == b },
		"idString": func(id int64) string { return strconv.FormatInt(id, 10) },
	}
}
