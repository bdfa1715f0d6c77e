package table

import (
	"strconv"

	"github.com/pitabwire/backoffice/model"
)

// Defaults applied by New.
const (
	DefaultEmptyMessage = "No records found"
	DefaultSkeletonRows = 5
	DefaultPageSize     = 25
)

// Options configures a Table.
type Options[R any] struct {
	Columns []Column[R]
	// RowID identifies a row for activation and selection. When nil the
	// row index is used.
	RowID        func(R) string
	EmptyMessage string
	SkeletonRows int
	// Selectable enables bulk selection.
	Selectable   bool
	OnRowClick   func(row R)
	OnBulkSelect func(ids []string)
}

// Table renders rows of type R.
type Table[R any] struct {
	columns      []Column[R]
	rowID        func(R) string
	emptyMessage string
	skeletonRows int
	onRowClick   func(R)
	selection    *Selection
}

// New creates a table.
func New[R any](opts Options[R]) *Table[R] {
	t := &Table[R]{
		columns:      opts.Columns,
		rowID:        opts.RowID,
		emptyMessage: opts.EmptyMessage,
		skeletonRows: opts.SkeletonRows,
		onRowClick:   opts.OnRowClick,
	}
	if t.emptyMessage == "" {
		t.emptyMessage = DefaultEmptyMessage
	}
	if t.skeletonRows <= 0 {
		t.skeletonRows = DefaultSkeletonRows
	}
	if opts.Selectable {
		t.selection = NewSelection(opts.OnBulkSelect)
	}
	return t
}

// Columns returns the column headers.
func (t *Table[R]) Columns() []model.ColumnDescriptor {
	out := make([]model.ColumnDescriptor, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Descriptor()
	}
	return out
}

// Selection returns the bulk selection, or nil when the table is not
// selectable.
func (t *Table[R]) Selection() *Selection { return t.selection }

// Render produces the table view. While loading only skeleton rows are
// produced; rows passed alongside are ignored. With no rows a single
// empty-message row is produced.
func (t *Table[R]) Render(rows []R, page model.PaginationView, loading bool) model.TableView {
	view := model.TableView{
		Columns:    t.Columns(),
		Loading:    loading,
		Pagination: page,
	}
	if t.selection != nil {
		view.Selected = t.selection.IDs()
	}

	switch {
	case loading:
		view.Rows = make([]model.RowView, t.skeletonRows)
		for i := range view.Rows {
			view.Rows[i] = model.RowView{Kind: model.RowSkeleton}
		}
	case len(rows) == 0:
		view.Empty = true
		view.Rows = []model.RowView{{Kind: model.RowEmpty, Message: t.emptyMessage}}
	default:
		view.Rows = make([]model.RowView, len(rows))
		for i, row := range rows {
			view.Rows[i] = t.renderRow(i, row)
		}
	}
	return view
}

func (t *Table[R]) renderRow(i int, row R) model.RowView {
	id := t.idOf(i, row)
	rv := model.RowView{
		ID:    id,
		Kind:  model.RowData,
		Cells: make([]model.CellView, len(t.columns)),
	}
	if t.selection != nil {
		rv.Selected = t.selection.Has(id)
	}
	for j, col := range t.columns {
		rv.Cells[j] = renderCell(col, row)
	}
	return rv
}

// Activate passes the row with the given id to OnRowClick and reports
// whether such a row exists.
func (t *Table[R]) Activate(rows []R, id string) bool {
	for i, row := range rows {
		if t.idOf(i, row) != id {
			continue
		}
		if t.onRowClick != nil {
			t.onRowClick(row)
		}
		return true
	}
	return false
}

func (t *Table[R]) idOf(i int, row R) string {
	if t.rowID == nil {
		return strconv.Itoa(i)
	}
	return t.rowID(row)
}

// Paginate derives the pagination metadata of one page. A page below 1 is
// page 1 and a non-positive size is DefaultPageSize.
func Paginate(page, pageSize, total int) model.PaginationView {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + pageSize - 1) / pageSize
	return model.PaginationView{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}
