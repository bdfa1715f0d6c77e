package model

// ViewDescriptor is the resolved list view sent to the frontend.
type ViewDescriptor struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Route     string              `json:"route"`
	FilterBar FilterBarDescriptor `json:"filter_bar"`
	Table     TableDescriptor     `json:"table"`
}

// FilterBarDescriptor describes the controls of a filter bar and its
// derived state.
type FilterBarDescriptor struct {
	TabType          TabType             `json:"tab_type"`
	Theme            Theme               `json:"theme"`
	Search           ControlDescriptor   `json:"search"`
	Controls         []ControlDescriptor `json:"controls"`
	GridColumns      int                 `json:"grid_columns"`
	ActiveCount      int                 `json:"active_count"`
	HasActiveFilters bool                `json:"has_active_filters"`
	Values           FieldMap            `json:"values"`
}

// ControlKind is the widget type of a filter control.
type ControlKind string

// Control kinds produced by the filter view renderer.
const (
	ControlText         ControlKind = "text"
	ControlSelect       ControlKind = "select"
	ControlDateRange    ControlKind = "date_range"
	ControlNumericRange ControlKind = "numeric_range"
	ControlNumber       ControlKind = "number"
)

// CommitMode tells the frontend when a control's value is committed.
type CommitMode string

// Commit modes.
const (
	CommitOnSubmit CommitMode = "submit"
	CommitOnBlur   CommitMode = "blur"
	CommitOnChange CommitMode = "change"
)

// ControlDescriptor describes one filter control.
type ControlDescriptor struct {
	Capability  string             `json:"capability"`
	Kind        ControlKind        `json:"kind"`
	Label       string             `json:"label"`
	Fields      []string           `json:"fields"`
	Placeholder string             `json:"placeholder,omitempty"`
	Commit      CommitMode         `json:"commit"`
	Options     []OptionDescriptor `json:"options,omitempty"`
	Loading     bool               `json:"loading,omitempty"`
	DependsOn   string             `json:"depends_on,omitempty"`
}

// OptionDescriptor is a resolved option for a select control.
type OptionDescriptor struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TableDescriptor is the resolved table metadata sent to the frontend.
type TableDescriptor struct {
	Columns      []ColumnDescriptor `json:"columns"`
	DataEndpoint string             `json:"data_endpoint"`
	PageSize     int                `json:"page_size"`
	Selectable   bool               `json:"selectable"`
	EmptyMessage string             `json:"empty_message"`
}

// ColumnDescriptor describes a visible table column header.
type ColumnDescriptor struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Type     ColumnType `json:"type"`
	Sortable bool       `json:"sortable"`
}

// TableView is a rendered table body.
type TableView struct {
	Columns    []ColumnDescriptor `json:"columns"`
	Rows       []RowView          `json:"rows"`
	Loading    bool               `json:"loading"`
	Empty      bool               `json:"empty"`
	Pagination PaginationView     `json:"pagination"`
	Selected   []string           `json:"selected,omitempty"`
}

// RowKind distinguishes data rows from placeholders.
type RowKind string

// Row kinds.
const (
	RowData     RowKind = "data"
	RowSkeleton RowKind = "skeleton"
	RowEmpty    RowKind = "empty"
)

// RowView is one rendered table row.
type RowView struct {
	ID       string     `json:"id,omitempty"`
	Kind     RowKind    `json:"kind"`
	Cells    []CellView `json:"cells,omitempty"`
	Message  string     `json:"message,omitempty"`
	Selected bool       `json:"selected,omitempty"`
}

// CellView is one rendered table cell. Exactly one of Text, Badge, Chip or
// Content is set unless Blank is true.
type CellView struct {
	Key     string     `json:"key"`
	Type    ColumnType `json:"type"`
	Text    string     `json:"text,omitempty"`
	Badge   *BadgeView `json:"badge,omitempty"`
	Chip    *ChipView  `json:"chip,omitempty"`
	Content any        `json:"content,omitempty"`
	Blank   bool       `json:"blank,omitempty"`
}

// BadgeView is a rendered badge.
type BadgeView struct {
	StyleClass string `json:"style_class"`
	Text       string `json:"text"`
}

// ChipView is a rendered person chip.
type ChipView struct {
	ID         string `json:"id,omitempty"`
	Initials   string `json:"initials"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Unassigned bool   `json:"unassigned,omitempty"`
}

// PaginationView describes the page a table shows.
type PaginationView struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Notice is a dismissable banner shown above a table.
type Notice struct {
	Level       string `json:"level"`
	Message     string `json:"message"`
	Dismissable bool   `json:"dismissable"`
}

// DataResponse is the response of a list data fetch.
type DataResponse struct {
	Table   TableView         `json:"table"`
	Payload map[string]string `json:"payload"`
	Notices []Notice          `json:"notices,omitempty"`
}

// SessionResponse is the response of a filter session operation.
type SessionResponse struct {
	SessionID string              `json:"session_id"`
	FilterBar FilterBarDescriptor `json:"filter_bar"`
	Committed bool                `json:"committed"`
	Cleared   bool                `json:"cleared,omitempty"`
	Data      *DataResponse       `json:"data,omitempty"`
}

// OptionsResponse is the response of an option lookup.
type OptionsResponse struct {
	Capability string             `json:"capability"`
	Scope      string             `json:"scope,omitempty"`
	Options    []OptionDescriptor `json:"options"`
	Fallback   bool               `json:"fallback"`
}
