package table

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pitabwire/backoffice/model"
)

// NotAvailable is shown by text and date cells without a value.
const NotAvailable = "N/A"

// UnassignedLabel is the name shown by an assignment cell without a person.
const UnassignedLabel = "Unassigned"

func renderCell[R any](col Column[R], row R) model.CellView {
	cell := model.CellView{Key: col.Key, Type: col.Type}
	v := col.value(row)

	switch col.Type {
	case model.ColumnBadge:
		b, ok := col.Badges[scalar(v)]
		if !ok || v == nil {
			cell.Blank = true
			return cell
		}
		cell.Badge = &model.BadgeView{StyleClass: b.StyleClass, Text: b.DisplayText}
	case model.ColumnAssignment:
		cell.Chip = chipFor(v)
	case model.ColumnCustom:
		if col.Render == nil {
			cell.Blank = true
			return cell
		}
		cell.Content = col.Render(v, row)
	default:
		text := scalar(v)
		if text == "" {
			text = NotAvailable
		}
		cell.Text = text
	}
	return cell
}

// scalar formats v without interpreting it. Dates are not reformatted.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func chipFor(v any) *model.ChipView {
	a, ok := assigneeOf(v)
	if !ok {
		return &model.ChipView{Name: UnassignedLabel, Unassigned: true}
	}
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		name = a.Email
	}
	return &model.ChipView{
		ID:       a.ID,
		Initials: Initials(a.FirstName, a.LastName),
		Name:     name,
		Email:    a.Email,
	}
}

func assigneeOf(v any) (model.Assignee, bool) {
	switch t := v.(type) {
	case model.Assignee:
		return t, true
	case *model.Assignee:
		if t == nil {
			return model.Assignee{}, false
		}
		return *t, true
	}
	m, ok := asMap(v)
	if !ok {
		return model.Assignee{}, false
	}
	a := model.Assignee{
		ID:        scalar(m["id"]),
		FirstName: scalar(m["firstName"]),
		LastName:  scalar(m["lastName"]),
		Email:     scalar(m["email"]),
	}
	if a.ID == "" && a.FirstName == "" && a.LastName == "" && a.Email == "" {
		return model.Assignee{}, false
	}
	return a, true
}

// Initials returns the upper-cased first letter of each non-empty name.
func Initials(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		r, _ := utf8.DecodeRuneInString(strings.TrimSpace(n))
		if r == utf8.RuneError {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
