package definition

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/openapi"
	"github.com/pitabwire/backoffice/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validation error codes.
const (
	CodeRequired          = "REQUIRED"
	CodeInvalidEnum       = "INVALID_ENUM"
	CodeRange             = "RANGE"
	CodeDuplicate         = "DUPLICATE"
	CodeRefNotFound       = "REF_NOT_FOUND"
	CodeUnknownCapability = "UNKNOWN_CAPABILITY"
	CodeEmptyOptions      = "EMPTY_OPTIONS"
	CodeUnknownField      = "UNKNOWN_FIELD"
	CodeUnknownParameter  = "UNKNOWN_PARAMETER"
	CodeOperationNotFound = "OPERATION_NOT_FOUND"
)

const maxPageSize = 200

// Validator checks definitions against the filter catalog, the registered
// custom renderers and, when an index is given, the backends' OpenAPI specs.
type Validator struct {
	renderers   map[string]bool
	checkLabels bool
}

// NewValidator creates a Validator accepting the named custom renderers.
// With checkLabels the outbound name of every enabled filter field must be
// a query parameter of the view's list operation.
func NewValidator(renderers []string, checkLabels bool) *Validator {
	v := &Validator{renderers: make(map[string]bool, len(renderers)), checkLabels: checkLabels}
	for _, r := range renderers {
		v.renderers[r] = true
	}
	return v
}

// Validate checks all definitions. index may be nil to skip OpenAPI checks.
func (v *Validator) Validate(defs []model.DomainDefinition, index *openapi.Index) []VError {
	var errs []VError

	sourceIDs := make(map[string]bool)
	for _, def := range defs {
		for _, s := range def.OptionSources {
			sourceIDs[s.ID] = true
		}
	}

	seenViews := make(map[string]string)
	seenSources := make(map[string]string)
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		errs = append(errs, v.validateDomain(prefix, def, index, sourceIDs)...)

		for j, view := range def.Views {
			path := fmt.Sprintf("%s.views[%d].id", prefix, j)
			if prev, dup := seenViews[view.ID]; dup && view.ID != "" {
				errs = append(errs, VError{Path: path, Code: CodeDuplicate, Message: fmt.Sprintf("view %q already declared at %s", view.ID, prev)})
			}
			seenViews[view.ID] = path
		}
		for j, src := range def.OptionSources {
			path := fmt.Sprintf("%s.option_sources[%d].id", prefix, j)
			if prev, dup := seenSources[src.ID]; dup && src.ID != "" {
				errs = append(errs, VError{Path: path, Code: CodeDuplicate, Message: fmt.Sprintf("option source %q already declared at %s", src.ID, prev)})
			}
			seenSources[src.ID] = path
		}
	}
	return errs
}

func (v *Validator) validateDomain(prefix string, def model.DomainDefinition, index *openapi.Index, sourceIDs map[string]bool) []VError {
	var errs []VError

	if def.Domain == "" {
		errs = append(errs, VError{Path: prefix + ".domain", Code: CodeRequired, Message: "domain is required"})
	}
	if def.Version == "" {
		errs = append(errs, VError{Path: prefix + ".version", Code: CodeRequired, Message: "version is required"})
	}

	for i, view := range def.Views {
		vp := fmt.Sprintf("%s.views[%d]", prefix, i)
		errs = append(errs, v.validateView(vp, view, index, sourceIDs)...)
	}
	for i, src := range def.OptionSources {
		sp := fmt.Sprintf("%s.option_sources[%d]", prefix, i)
		errs = append(errs, v.validateOptionSource(sp, src, index)...)
	}
	return errs
}

func (v *Validator) validateView(prefix string, view model.ViewDefinition, index *openapi.Index, sourceIDs map[string]bool) []VError {
	var errs []VError

	if view.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: CodeRequired, Message: "id is required"})
	}
	if view.Title == "" {
		errs = append(errs, VError{Path: prefix + ".title", Code: CodeRequired, Message: "title is required"})
	}

	errs = append(errs, v.validateFilter(prefix+".filter", view.Filter, sourceIDs)...)
	errs = append(errs, v.validateTable(prefix+".table", view.Table, index)...)

	if v.checkLabels && index != nil {
		errs = append(errs, v.validateOutboundNames(prefix, view, index)...)
	}
	return errs
}

func (v *Validator) validateFilter(prefix string, cfg model.FilterConfig, sourceIDs map[string]bool) []VError {
	var errs []VError

	if !filter.KnownTab(cfg.TabType) {
		errs = append(errs, VError{Path: prefix + ".tab_type", Code: CodeInvalidEnum, Message: fmt.Sprintf("invalid tab type %q", cfg.TabType)})
	}

	for _, flag := range sortedKeys(cfg.Filters) {
		name := model.CapabilityFromFlag(flag)
		c, ok := filter.Lookup(name)
		if !ok || name == filter.Search {
			errs = append(errs, VError{Path: prefix + ".filters." + flag, Code: CodeUnknownCapability, Message: fmt.Sprintf("unknown filter capability %q", flag)})
			continue
		}
		if !cfg.Filters[flag] {
			continue
		}
		if c.Remote() && !sourceIDs[c.Source] {
			errs = append(errs, VError{
				Path:    prefix + ".filters." + flag,
				Code:    CodeRefNotFound,
				Message: fmt.Sprintf("capability %q needs option source %q", name, c.Source),
			})
		}
		if c.DependsOn != "" && !cfg.Enabled(c.DependsOn) {
			errs = append(errs, VError{
				Path:    prefix + ".filters." + flag,
				Code:    CodeRefNotFound,
				Message: fmt.Sprintf("capability %q depends on %q, which is not enabled", name, c.DependsOn),
			})
		}
	}

	for _, key := range sortedKeys(cfg.CustomOptions) {
		name := strings.TrimSuffix(key, "Options")
		c, ok := filter.Lookup(name)
		if !ok {
			c, ok = filter.Lookup(key)
		}
		path := prefix + ".custom_options." + key
		if !ok || c.Kind != model.ControlSelect {
			errs = append(errs, VError{Path: path, Code: CodeUnknownCapability, Message: fmt.Sprintf("%q is not a select capability", key)})
			continue
		}
		if cfg.Enabled(c.Name) && len(cfg.CustomOptions[key]) == 0 {
			errs = append(errs, VError{Path: path, Code: CodeEmptyOptions, Message: fmt.Sprintf("capability %q is enabled with an empty option list", c.Name)})
		}
	}

	for _, key := range sortedKeys(cfg.CustomLabels) {
		_, isField := filter.OwnerOf(key)
		_, isCapability := filter.Lookup(key)
		if !isField && !isCapability {
			errs = append(errs, VError{Path: prefix + ".custom_labels." + key, Code: CodeUnknownField, Message: fmt.Sprintf("%q is neither a filter field nor a capability", key)})
		}
		if cfg.CustomLabels[key] == "" {
			errs = append(errs, VError{Path: prefix + ".custom_labels." + key, Code: CodeRequired, Message: "label must not be empty"})
		}
	}
	return errs
}

func (v *Validator) validateTable(prefix string, t model.TableDefinition, index *openapi.Index) []VError {
	var errs []VError

	if len(t.Columns) == 0 {
		errs = append(errs, VError{Path: prefix + ".columns", Code: CodeRequired, Message: "at least one column is required"})
	}
	if t.PageSize < 0 || t.PageSize > maxPageSize {
		errs = append(errs, VError{Path: prefix + ".page_size", Code: CodeRange, Message: fmt.Sprintf("page_size must be 0-%d", maxPageSize)})
	}
	if t.SkeletonRows < 0 {
		errs = append(errs, VError{Path: prefix + ".skeleton_rows", Code: CodeRange, Message: "skeleton_rows must not be negative"})
	}

	keys := make(map[string]bool)
	for i, col := range t.Columns {
		cp := fmt.Sprintf("%s.columns[%d]", prefix, i)
		if col.Key == "" {
			errs = append(errs, VError{Path: cp + ".key", Code: CodeRequired, Message: "key is required"})
		} else if keys[col.Key] {
			errs = append(errs, VError{Path: cp + ".key", Code: CodeDuplicate, Message: fmt.Sprintf("column %q declared twice", col.Key)})
		}
		keys[col.Key] = true

		if !col.Type.Valid() {
			errs = append(errs, VError{Path: cp + ".type", Code: CodeInvalidEnum, Message: fmt.Sprintf("invalid column type %q", col.Type)})
			continue
		}
		switch col.Type {
		case model.ColumnBadge:
			if len(col.Badges) == 0 {
				errs = append(errs, VError{Path: cp + ".badges", Code: CodeRequired, Message: "badge columns need a badges map"})
			}
		case model.ColumnCustom:
			if col.Renderer == "" {
				errs = append(errs, VError{Path: cp + ".renderer", Code: CodeRequired, Message: "custom columns need a renderer"})
			} else if !v.renderers[col.Renderer] {
				errs = append(errs, VError{Path: cp + ".renderer", Code: CodeRefNotFound, Message: fmt.Sprintf("renderer %q is not registered", col.Renderer)})
			}
		}
	}

	ds := t.DataSource
	if ds.OperationID == "" && ds.Handler == "" {
		errs = append(errs, VError{Path: prefix + ".data_source", Code: CodeRequired, Message: "data_source needs operation_id or handler"})
	}
	if ds.OperationID != "" && ds.ServiceID == "" {
		errs = append(errs, VError{Path: prefix + ".data_source.service_id", Code: CodeRequired, Message: "service_id is required with operation_id"})
	}
	if index != nil && ds.Handler == "" && ds.OperationID != "" && ds.ServiceID != "" {
		if _, ok := index.GetOperation(ds.ServiceID, ds.OperationID); !ok {
			errs = append(errs, VError{
				Path:    prefix + ".data_source.operation_id",
				Code:    CodeOperationNotFound,
				Message: fmt.Sprintf("operation %q not found in service %q", ds.OperationID, ds.ServiceID),
			})
		}
	}
	return errs
}

// validateOutboundNames checks that every enabled filter field is sent under
// a name the list operation declares.
func (v *Validator) validateOutboundNames(prefix string, view model.ViewDefinition, index *openapi.Index) []VError {
	ds := view.Table.DataSource
	if ds.Handler != "" || ds.OperationID == "" {
		return nil
	}
	declared := index.QueryParameterNames(ds.ServiceID, ds.OperationID)
	if declared == nil {
		return nil
	}

	search, _ := filter.Lookup(filter.Search)
	caps := append([]filter.Capability{search}, filter.Enabled(view.Filter)...)

	var errs []VError
	for _, c := range caps {
		for _, field := range c.Fields {
			name := view.Filter.OutboundName(c.Name, c.Fields, field)
			if slices.Contains(declared, name) {
				continue
			}
			errs = append(errs, VError{
				Path:    prefix + ".filter.custom_labels",
				Code:    CodeUnknownParameter,
				Message: fmt.Sprintf("field %q is sent as %q, which %s does not accept", field, name, ds.OperationID),
			})
		}
	}
	return errs
}

func (v *Validator) validateOptionSource(prefix string, src model.OptionSourceDefinition, index *openapi.Index) []VError {
	var errs []VError

	if src.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: CodeRequired, Message: "id is required"})
	}

	op := src.Operation
	switch op.Type {
	case "":
		errs = append(errs, VError{Path: prefix + ".operation.type", Code: CodeRequired, Message: "operation.type is required"})
	case "openapi":
		if op.OperationID == "" || op.ServiceID == "" {
			errs = append(errs, VError{Path: prefix + ".operation", Code: CodeRequired, Message: "operation_id and service_id are required for openapi type"})
		}
	case "sdk":
		if op.Handler == "" {
			errs = append(errs, VError{Path: prefix + ".operation.handler", Code: CodeRequired, Message: "handler required for sdk type"})
		}
	default:
		errs = append(errs, VError{Path: prefix + ".operation.type", Code: CodeInvalidEnum, Message: fmt.Sprintf("invalid operation type %q", op.Type)})
	}

	if src.Cache != nil && src.Cache.TTL != "" {
		if d, err := time.ParseDuration(src.Cache.TTL); err != nil || d <= 0 {
			errs = append(errs, VError{Path: prefix + ".cache.ttl", Code: CodeRange, Message: fmt.Sprintf("invalid ttl %q", src.Cache.TTL)})
		}
	}

	if index != nil && op.Type == "openapi" && op.OperationID != "" {
		if _, ok := index.GetOperation(op.ServiceID, op.OperationID); !ok {
			errs = append(errs, VError{
				Path:    prefix + ".operation.operation_id",
				Code:    CodeOperationNotFound,
				Message: fmt.Sprintf("operation %q not found in service %q", op.OperationID, op.ServiceID),
			})
		} else if src.ScopeParam != "" && !slices.Contains(index.QueryParameterNames(op.ServiceID, op.OperationID), src.ScopeParam) {
			errs = append(errs, VError{
				Path:    prefix + ".scope_param",
				Code:    CodeUnknownParameter,
				Message: fmt.Sprintf("%s does not accept query parameter %q", op.OperationID, src.ScopeParam),
			})
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
