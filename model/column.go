package model

// ColumnType selects how a table cell is rendered.
type ColumnType string

// Column types understood by the list rendering engine.
const (
	ColumnText       ColumnType = "text"
	ColumnDate       ColumnType = "date"
	ColumnBadge      ColumnType = "badge"
	ColumnAssignment ColumnType = "assignment"
	ColumnCustom     ColumnType = "custom"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnDate, ColumnBadge, ColumnAssignment, ColumnCustom:
		return true
	}
	return false
}

// Badge is the style and text shown for one row value of a badge column.
type Badge struct {
	StyleClass  string `yaml:"style_class"  json:"style_class"`
	DisplayText string `yaml:"display_text" json:"display_text"`
}

// Assignee is the person shape rendered by assignment columns.
type Assignee struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
