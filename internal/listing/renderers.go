package listing

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/pitabwire/backoffice/internal/table"
)

// Built-in custom renderer names.
const (
	RendererAmount   = "amount"
	RendererPhase    = "phase"
	RendererInitials = "initials"
)

// RendererNames lists the renderers Renderers provides.
func RendererNames() []string {
	return []string{RendererAmount, RendererInitials, RendererPhase}
}

// Renderers returns the built-in custom renderers for a locale.
func Renderers(locale string) table.Renderers {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	printer := message.NewPrinter(tag)

	return table.Renderers{
		RendererAmount: func(v any, row table.Record) any {
			return formatAmount(printer, v, row)
		},
		RendererPhase: func(v any, row table.Record) any {
			return formatPhase(v, row)
		},
		RendererInitials: func(v any, _ table.Record) any {
			name, _ := v.(string)
			return table.Initials(strings.Fields(name)...)
		},
	}
}

// formatAmount renders a number with two decimals and the locale's
// grouping, prefixed by the row's currency code when it has one.
func formatAmount(p *message.Printer, v any, row table.Record) string {
	f, ok := toFloat(v)
	if !ok {
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}
	out := p.Sprintf("%v", number.Decimal(f, number.Scale(2)))
	if code, _ := row["currency"].(string); code != "" {
		out = code + " " + out
	}
	return out
}

// formatPhase renders "current/total" from the row's currentPhase and
// totalPhases, or the value alone when the total is unknown.
func formatPhase(v any, row table.Record) string {
	current := v
	if current == nil {
		current = row["currentPhase"]
	}
	c, ok := toFloat(current)
	if !ok {
		return ""
	}
	t, ok := toFloat(row["totalPhases"])
	if !ok || t <= 0 {
		return strconv.FormatFloat(c, 'f', -1, 64)
	}
	return fmt.Sprintf("%s/%s", strconv.FormatFloat(c, 'f', -1, 64), strconv.FormatFloat(t, 'f', -1, 64))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
