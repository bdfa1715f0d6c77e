package model

import (
	"context"
)

// RequestContext carries the caller identity hints, tenancy and tracing
// information forwarded to backends. The service does not authenticate;
// these values come from trusted upstream headers. It is immutable after
// construction and safe for concurrent reads.
type RequestContext struct {
	SubjectID     string
	TenantID      string
	PartitionID   string
	CorrelationID string
	TraceID       string
	Locale        string
	Timezone      string
}

// LocaleOr returns the request locale, or fallback when none was sent.
func (rc *RequestContext) LocaleOr(fallback string) string {
	if rc == nil || rc.Locale == "" {
		return fallback
	}
	return rc.Locale
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
