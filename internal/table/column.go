// Package table renders list rows into table views. Columns are generic over
// the row type; Record serves rows decoded from JSON.
package table

import (
	"fmt"
	"strings"

	"github.com/pitabwire/backoffice/model"
)

// RenderFunc produces the content of a custom cell.
type RenderFunc[R any] func(value any, row R) any

// Column describes one table column over rows of type R.
type Column[R any] struct {
	Key      string
	Label    string
	Type     model.ColumnType
	Sortable bool
	// Badges maps a row value to its badge. Only used by badge columns.
	Badges map[string]model.Badge
	// Value reads the cell value from a row.
	Value func(R) any
	// Render is called for custom columns. A nil Render leaves the cell
	// blank.
	Render RenderFunc[R]
}

// Descriptor returns the header metadata of the column.
func (c Column[R]) Descriptor() model.ColumnDescriptor {
	return model.ColumnDescriptor{
		Key:      c.Key,
		Label:    c.Label,
		Type:     c.Type,
		Sortable: c.Sortable,
	}
}

func (c Column[R]) value(row R) any {
	if c.Value == nil {
		return nil
	}
	return c.Value(row)
}

// Record is a loosely typed row, e.g. one item of a backend list response.
type Record map[string]any

// Field returns an accessor reading key from a Record. Dots in key descend
// into nested objects.
func Field(key string) func(Record) any {
	parts := strings.Split(key, ".")
	return func(r Record) any {
		var current any = map[string]any(r)
		for _, part := range parts {
			m, ok := asMap(current)
			if !ok {
				return nil
			}
			current = m[part]
		}
		return current
	}
}

// FieldID returns a row identity function reading key from a Record.
func FieldID(key string) func(Record) string {
	get := Field(key)
	return func(r Record) string {
		return scalar(get(r))
	}
}

// Renderers holds the named custom renderers Record columns may use.
type Renderers map[string]RenderFunc[Record]

// FromDefinitions builds Record columns from their YAML definitions.
// Custom columns look their renderer up by name.
func FromDefinitions(defs []model.ColumnDefinition, renderers Renderers) ([]Column[Record], error) {
	cols := make([]Column[Record], 0, len(defs))
	for _, d := range defs {
		col := Column[Record]{
			Key:      d.Key,
			Label:    d.Label,
			Type:     d.Type,
			Sortable: d.Sortable,
			Badges:   d.Badges,
			Value:    Field(d.Key),
		}
		if d.Type == model.ColumnCustom {
			fn, ok := renderers[d.Renderer]
			if !ok {
				return nil, fmt.Errorf("table: column %q: unknown renderer %q", d.Key, d.Renderer)
			}
			col.Render = fn
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}
