// Package openapi loads the OpenAPI documents of backend services and
// indexes their operations by service and operationId, so bindings can be
// resolved to a method, a path template and the query parameters the
// operation accepts.
package openapi

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"
)

// SpecSource names one service's OpenAPI document. An empty BaseURL falls
// back to the document's first server.
type SpecSource struct {
	ServiceID string
	BaseURL   string
	SpecPath  string
}

// IndexedOperation is one operation resolved against its document.
// Parameters holds path-level parameters followed by operation-level ones.
type IndexedOperation struct {
	ServiceID    string
	OperationID  string
	Method       string
	PathTemplate string
	Parameters   []*openapi3.Parameter
	Responses    *openapi3.Responses
	BaseURL      string
}

// QueryParameter returns the declared query parameter with the given name.
func (op IndexedOperation) QueryParameter(name string) (*openapi3.Parameter, bool) {
	i := slices.IndexFunc(op.Parameters, func(p *openapi3.Parameter) bool {
		return p.In == openapi3.ParameterInQuery && p.Name == name
	})
	if i < 0 {
		return nil, false
	}
	return op.Parameters[i], true
}

func (op IndexedOperation) queryParameters() []*openapi3.Parameter {
	var out []*openapi3.Parameter
	for _, p := range op.Parameters {
		if p.In == openapi3.ParameterInQuery {
			out = append(out, p)
		}
	}
	return out
}

// Codes reported in ValidationError.Code.
const (
	CodeUndeclared = "undeclared"
	CodeRequired   = "required"
	CodeUnknownOp  = "unknown_operation"
)

// ValidationError is one problem ValidateQuery found with an outbound query.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

// Index holds the operations of every loaded service. It is filled once by
// Load at startup and read concurrently afterwards.
type Index struct {
	services map[string]map[string]IndexedOperation
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{services: make(map[string]map[string]IndexedOperation)}
}

// Load parses and validates each document and indexes every operation that
// has an operationId. The first failing document aborts the load.
func (idx *Index) Load(specs []SpecSource) error {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	for _, src := range specs {
		doc, err := loader.LoadFromFile(src.SpecPath)
		if err != nil {
			return fmt.Errorf("openapi: loading %s (%s): %w", src.ServiceID, src.SpecPath, err)
		}
		if err := doc.Validate(context.Background()); err != nil {
			return fmt.Errorf("openapi: validating %s: %w", src.ServiceID, err)
		}
		idx.add(src, doc)
	}
	return nil
}

func (idx *Index) add(src SpecSource, doc *openapi3.T) {
	baseURL := src.BaseURL
	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}

	ops := idx.services[src.ServiceID]
	if ops == nil {
		ops = make(map[string]IndexedOperation)
		idx.services[src.ServiceID] = ops
	}

	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				continue
			}
			ops[op.OperationID] = IndexedOperation{
				ServiceID:    src.ServiceID,
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				Parameters:   append(derefParams(item.Parameters), derefParams(op.Parameters)...),
				Responses:    op.Responses,
				BaseURL:      baseURL,
			}
		}
	}
}

func derefParams(refs openapi3.Parameters) []*openapi3.Parameter {
	out := make([]*openapi3.Parameter, 0, len(refs))
	for _, ref := range refs {
		if ref != nil && ref.Value != nil {
			out = append(out, ref.Value)
		}
	}
	return out
}

// GetOperation returns the operation serviceID declares as operationID.
func (idx *Index) GetOperation(serviceID, operationID string) (IndexedOperation, bool) {
	op, ok := idx.services[serviceID][operationID]
	return op, ok
}

// AllOperationIDs returns the sorted operation IDs of a service.
func (idx *Index) AllOperationIDs(serviceID string) []string {
	return slices.Sorted(maps.Keys(idx.services[serviceID]))
}

// QueryParameterNames returns the sorted query parameter names an operation
// declares, or nil when the operation is unknown.
func (idx *Index) QueryParameterNames(serviceID, operationID string) []string {
	op, ok := idx.GetOperation(serviceID, operationID)
	if !ok {
		return nil
	}
	names := []string{}
	for _, p := range op.queryParameters() {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

// ValidateQuery checks outbound query parameters against an operation.
// Names it does not declare are reported as undeclared and required ones
// that are absent as required. The result is sorted by field and is empty
// when params are acceptable.
func (idx *Index) ValidateQuery(serviceID, operationID string, params map[string]string) []ValidationError {
	op, ok := idx.GetOperation(serviceID, operationID)
	if !ok {
		return []ValidationError{{
			Code:    CodeUnknownOp,
			Message: fmt.Sprintf("operation %s/%s not found", serviceID, operationID),
		}}
	}

	var errs []ValidationError
	for name := range params {
		if _, ok := op.QueryParameter(name); !ok {
			errs = append(errs, ValidationError{
				Field:   name,
				Code:    CodeUndeclared,
				Message: fmt.Sprintf("%s is not a query parameter of %s", name, operationID),
			})
		}
	}
	for _, p := range op.queryParameters() {
		if _, ok := params[p.Name]; p.Required && !ok {
			errs = append(errs, ValidationError{
				Field:   p.Name,
				Code:    CodeRequired,
				Message: p.Name + " is required",
			})
		}
	}
	slices.SortFunc(errs, func(a, b ValidationError) int { return cmp.Compare(a.Field, b.Field) })
	return errs
}
