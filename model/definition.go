package model

// DomainDefinition is the root structure of a definition file. Each file
// declares one domain's list views and the option sources its filters use.
type DomainDefinition struct {
	Domain        string                   `yaml:"domain"         json:"domain"`
	Version       string                   `yaml:"version"        json:"version"`
	Views         []ViewDefinition         `yaml:"views"          json:"views,omitempty"`
	OptionSources []OptionSourceDefinition `yaml:"option_sources" json:"option_sources,omitempty"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path.
	SourceFile string `yaml:"-" json:"-"`
}

// ViewDefinition describes one list view: its filter bar and its table.
type ViewDefinition struct {
	ID     string          `yaml:"id"     json:"id"`
	Title  string          `yaml:"title"  json:"title"`
	Route  string          `yaml:"route"  json:"route"`
	Filter FilterConfig    `yaml:"filter" json:"filter"`
	Table  TableDefinition `yaml:"table"  json:"table"`
}

// TableDefinition describes the table of a list view.
type TableDefinition struct {
	DataSource   DataSourceDefinition `yaml:"data_source"   json:"data_source"`
	Columns      []ColumnDefinition   `yaml:"columns"       json:"columns"`
	RowID        string               `yaml:"row_id"        json:"row_id,omitempty"`
	PageSize     int                  `yaml:"page_size"     json:"page_size,omitempty"`
	Selectable   bool                 `yaml:"selectable"    json:"selectable,omitempty"`
	EmptyMessage string               `yaml:"empty_message" json:"empty_message,omitempty"`
	SkeletonRows int                  `yaml:"skeleton_rows" json:"skeleton_rows,omitempty"`
}

// DataSourceDefinition describes how to fetch list rows from a backend service.
type DataSourceDefinition struct {
	OperationID string                    `yaml:"operation_id" json:"operation_id,omitempty"`
	ServiceID   string                    `yaml:"service_id"   json:"service_id,omitempty"`
	Handler     string                    `yaml:"handler"      json:"handler,omitempty"`
	Mapping     ResponseMappingDefinition `yaml:"mapping"      json:"mapping"`
}

// Binding converts the data source into an OperationBinding.
func (ds DataSourceDefinition) Binding() OperationBinding {
	b := OperationBinding{
		Type:        "openapi",
		ServiceID:   ds.ServiceID,
		OperationID: ds.OperationID,
		Handler:     ds.Handler,
	}
	if ds.Handler != "" {
		b.Type = "sdk"
	}
	return b
}

// ResponseMappingDefinition describes how to transform a backend response.
type ResponseMappingDefinition struct {
	ItemsPath string            `yaml:"items_path" json:"items_path"`
	TotalPath string            `yaml:"total_path" json:"total_path,omitempty"`
	FieldMap  map[string]string `yaml:"field_map"  json:"field_map,omitempty"`
}

// ColumnDefinition describes a table column in YAML. Columns of type custom
// name a renderer registered in code.
type ColumnDefinition struct {
	Key      string           `yaml:"key"      json:"key"`
	Label    string           `yaml:"label"    json:"label"`
	Type     ColumnType       `yaml:"type"     json:"type"`
	Sortable bool             `yaml:"sortable" json:"sortable,omitempty"`
	Badges   map[string]Badge `yaml:"badges"   json:"badges,omitempty"`
	Renderer string           `yaml:"renderer" json:"renderer,omitempty"`
}

// OptionSourceDefinition describes a remote option set, e.g. the list of
// sales units or the employees of one unit.
type OptionSourceDefinition struct {
	ID         string           `yaml:"id"          json:"id"`
	Operation  OperationBinding `yaml:"operation"   json:"operation"`
	IDField    string           `yaml:"id_field"    json:"id_field"`
	LabelField string           `yaml:"label_field" json:"label_field"`
	// ScopeParam is the query parameter carrying the parent value for
	// dependent sources. Empty for independent sources.
	ScopeParam string       `yaml:"scope_param" json:"scope_param,omitempty"`
	Cache      *CacheConfig `yaml:"cache"       json:"cache,omitempty"`
}

// OperationBinding describes the backend operation to invoke.
type OperationBinding struct {
	Type        string `yaml:"type"         json:"type"`
	OperationID string `yaml:"operation_id" json:"operation_id,omitempty"`
	ServiceID   string `yaml:"service_id"   json:"service_id,omitempty"`
	Handler     string `yaml:"handler"      json:"handler,omitempty"`
}

// CacheConfig describes caching settings for an option source.
type CacheConfig struct {
	TTL      string `yaml:"ttl"       json:"ttl"`
	Disabled bool   `yaml:"disabled"  json:"disabled,omitempty"`
}
