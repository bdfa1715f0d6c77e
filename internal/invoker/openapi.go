package invoker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/internal/openapi"
	"github.com/pitabwire/backoffice/model"
)

// OpenAPIOperationInvoker calls list and lookup operations of backend
// services whose OpenAPI documents are held in an openapi.Index.
type OpenAPIOperationInvoker struct {
	index    *openapi.Index
	backends map[string]*backend
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewOpenAPIOperationInvoker creates one backend connection per configured
// service. logger and metrics may be nil.
func NewOpenAPIOperationInvoker(
	idx *openapi.Index,
	services map[string]config.ServiceConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *OpenAPIOperationInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	backends := make(map[string]*backend, len(services))
	for id, cfg := range services {
		backends[id] = newBackend(id, cfg, logger, metrics)
	}
	return &OpenAPIOperationInvoker{
		index:    idx,
		backends: backends,
		logger:   logger,
		metrics:  metrics,
	}
}

// Supports reports whether binding targets an OpenAPI operation.
func (inv *OpenAPIOperationInvoker) Supports(binding model.OperationBinding) bool {
	return binding.Type == "openapi"
}

// Invoke resolves the bound operation, checks the query against its declared
// parameters and sends it to the owning service.
func (inv *OpenAPIOperationInvoker) Invoke(
	ctx context.Context,
	rctx *model.RequestContext,
	binding model.OperationBinding,
	input model.InvocationInput,
) (result model.InvocationResult, err error) {
	op, ok := inv.index.GetOperation(binding.ServiceID, binding.OperationID)
	if !ok {
		return model.InvocationResult{}, fmt.Errorf("invoker: operation %s/%s is not indexed",
			binding.ServiceID, binding.OperationID)
	}
	be, ok := inv.backends[binding.ServiceID]
	if !ok {
		return model.InvocationResult{}, fmt.Errorf("invoker: service %q is not configured", binding.ServiceID)
	}

	ctx, span := observability.StartSpan(ctx, "backend.invoke",
		observability.AttrServiceID.String(binding.ServiceID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	if err := inv.checkQuery(binding, input.QueryParams); err != nil {
		return model.InvocationResult{}, err
	}

	out := outbound{
		method: op.Method,
		url:    requestURL(op, input),
		header: forwardHeaders(rctx, input.Headers),
	}
	observability.InjectTraceHeaders(ctx, out.header)

	start := time.Now()
	result, err = be.call(ctx, out)
	if inv.metrics != nil {
		inv.metrics.RecordBackendRequest(binding.ServiceID, binding.OperationID, result.StatusCode, time.Since(start))
	}
	if err == nil && result.StatusCode >= 500 {
		inv.logger.Error("backend returned server error",
			zap.String("service_id", binding.ServiceID),
			zap.String("operation_id", binding.OperationID),
			zap.Int("status", result.StatusCode),
		)
	}
	return result, err
}

// checkQuery rejects a call that lacks a required query parameter before it
// reaches the backend. Undeclared parameters are sent anyway and only
// logged: backends commonly accept filters their document does not list.
func (inv *OpenAPIOperationInvoker) checkQuery(binding model.OperationBinding, params map[string]string) error {
	var missing []model.FieldError
	for _, verr := range inv.index.ValidateQuery(binding.ServiceID, binding.OperationID, params) {
		switch verr.Code {
		case openapi.CodeRequired:
			missing = append(missing, model.FieldError{Field: verr.Field, Code: verr.Code, Message: verr.Message})
		case openapi.CodeUndeclared:
			inv.logger.Debug("query parameter not declared by operation",
				zap.String("service_id", binding.ServiceID),
				zap.String("operation_id", binding.OperationID),
				zap.String("param", verr.Field),
			)
		}
	}
	if len(missing) > 0 {
		return model.NewValidationError(missing)
	}
	return nil
}

// requestURL expands the path template and appends the query, sorted by key.
func requestURL(op openapi.IndexedOperation, input model.InvocationInput) string {
	var b strings.Builder
	b.WriteString(op.BaseURL)

	path := op.PathTemplate
	for name, value := range input.PathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	b.WriteString(path)

	if len(input.QueryParams) > 0 {
		q := make(url.Values, len(input.QueryParams))
		for k, v := range input.QueryParams {
			q.Set(k, v)
		}
		b.WriteByte('?')
		b.WriteString(q.Encode())
	}
	return b.String()
}

// forwardHeaders builds the outbound headers: the caller's tenancy, locale
// and correlation hints, then any binding-specific extras on top.
func forwardHeaders(rctx *model.RequestContext, extra map[string]string) http.Header {
	h := http.Header{"Accept": {"application/json"}}
	if rctx != nil {
		for key, value := range map[string]string{
			"X-Tenant-Id":       rctx.TenantID,
			"X-Partition-Id":    rctx.PartitionID,
			"X-Correlation-Id":  rctx.CorrelationID,
			"X-Request-Subject": rctx.SubjectID,
			"Accept-Language":   rctx.Locale,
			"X-Timezone":        rctx.Timezone,
		} {
			if value != "" {
				h.Set(key, stripCRLF(value))
			}
		}
	}
	for k, v := range extra {
		h.Set(stripCRLF(k), stripCRLF(v))
	}
	return h
}

// stripCRLF drops carriage returns and line feeds so forwarded values
// cannot start a new header.
func stripCRLF(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
