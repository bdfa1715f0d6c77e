package options

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

// Invoker calls a backend operation. *invoker.Registry satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, rctx *model.RequestContext, binding model.OperationBinding, input model.InvocationInput) (model.InvocationResult, error)
}

// LookupSource is a Source backed by an option source definition: it
// invokes the backend operation, maps id_field/label_field onto records and
// caches the result per scope.
type LookupSource struct {
	def        model.OptionSourceDefinition
	invoker    Invoker
	store      Store
	keyPrefix  string
	defaultTTL time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	group      *singleflight.Group
}

// LookupConfig carries the dependencies shared by all lookup sources.
type LookupConfig struct {
	Invoker    Invoker
	Store      Store
	KeyPrefix  string
	DefaultTTL time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewLookupSource creates a source for def.
func NewLookupSource(def model.OptionSourceDefinition, lc LookupConfig) *LookupSource {
	if lc.DefaultTTL <= 0 {
		lc.DefaultTTL = 5 * time.Minute
	}
	if lc.KeyPrefix == "" {
		lc.KeyPrefix = "options"
	}
	if lc.Logger == nil {
		lc.Logger = zap.NewNop()
	}
	return &LookupSource{
		def:        def,
		invoker:    lc.Invoker,
		store:      lc.Store,
		keyPrefix:  lc.KeyPrefix,
		defaultTTL: lc.DefaultTTL,
		logger:     lc.Logger,
		metrics:    lc.Metrics,
		group:      &singleflight.Group{},
	}
}

// NewLookupSources builds one LookupSource per definition, keyed by ID.
func NewLookupSources(defs []model.OptionSourceDefinition, lc LookupConfig) Sources {
	out := make(Sources, len(defs))
	for _, def := range defs {
		out[def.ID] = NewLookupSource(def, lc)
	}
	return out
}

// Definition returns the definition the source was built from.
func (s *LookupSource) Definition() model.OptionSourceDefinition { return s.def }

// Fetch implements Source. Concurrent fetches of the same key share one
// backend call, which keeps running when the caller that started it goes
// away. Backend failures are returned as Success false and are not
// cached.
func (s *LookupSource) Fetch(ctx context.Context, scope string) (Response, error) {
	key := s.cacheKey(ctx, scope)

	if s.cacheEnabled() {
		records, hit, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn("option cache read failed", zap.String("key", key), zap.Error(err))
		}
		observability.RecordCacheLookup(ctx, hit)
		if hit {
			if s.metrics != nil {
				s.metrics.RecordOptionCacheHit(s.def.ID)
			}
			return Response{Success: true, Data: records}, nil
		}
		if s.metrics != nil {
			s.metrics.RecordOptionCacheMiss(s.def.ID)
		}
	}

	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		// A caller that missed the cache just before an earlier flight
		// finished finds the fresh entry here.
		if s.cacheEnabled() {
			if records, hit, _ := s.store.Get(flight, key); hit {
				return Response{Success: true, Data: records}, nil
			}
		}
		return s.load(flight, key, scope)
	})
	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("option source %q: %w", s.def.ID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		return res.Val.(Response), nil
	}
}

// Refresh fetches the unscoped set from the backend and overwrites the
// cache entry.
func (s *LookupSource) Refresh(ctx context.Context) error {
	resp, err := s.load(ctx, s.cacheKey(ctx, ""), "")
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("options: source %q refresh unsuccessful", s.def.ID)
	}
	return nil
}

func (s *LookupSource) load(ctx context.Context, key, scope string) (Response, error) {
	input := model.InvocationInput{}
	if s.def.ScopeParam != "" && scope != "" {
		input.QueryParams = map[string]string{s.def.ScopeParam: scope}
	}

	result, err := s.invoker.Invoke(ctx, model.RequestContextFrom(ctx), s.def.Operation, input)
	if err != nil {
		return Response{}, fmt.Errorf("option source %q: %w", s.def.ID, err)
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return Response{Success: false}, nil
	}

	resp := mapLookupResults(result.Body, s.def)
	if resp.Success && s.cacheEnabled() {
		if err := s.store.Set(ctx, key, resp.Data, s.ttl()); err != nil {
			s.logger.Warn("option cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// cacheKey scopes entries by tenant when the request carries one.
func (s *LookupSource) cacheKey(ctx context.Context, scope string) string {
	if rctx := model.RequestContextFrom(ctx); rctx != nil && rctx.TenantID != "" {
		scope = rctx.TenantID + "/" + scope
	}
	return CacheKey(s.keyPrefix, s.def.ID, scope)
}

func (s *LookupSource) cacheEnabled() bool {
	return s.store != nil && (s.def.Cache == nil || !s.def.Cache.Disabled)
}

func (s *LookupSource) ttl() time.Duration {
	if s.def.Cache != nil && s.def.Cache.TTL != "" {
		if parsed, err := time.ParseDuration(s.def.Cache.TTL); err == nil {
			return parsed
		}
	}
	return s.defaultTTL
}

// mapLookupResults turns a backend body into a Response. The body may be a
// bare array or an object carrying "data" or "items" and an optional
// "success" flag.
func mapLookupResults(body any, def model.OptionSourceDefinition) Response {
	items, success := extractLookupItems(body)
	if !success {
		return Response{Success: false}
	}

	idField := def.IDField
	if idField == "" {
		idField = "id"
	}
	labelField := def.LabelField
	if labelField == "" {
		labelField = "name"
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		id := getString(item, idField)
		label := getString(item, labelField)
		if id == "" && label == "" {
			continue
		}
		attrs := make(map[string]any, len(item))
		for k, v := range item {
			if k != idField && k != labelField {
				attrs[k] = v
			}
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		records = append(records, Record{ID: id, DisplayName: label, Attributes: attrs})
	}
	return Response{Success: true, Data: records}
}

func extractLookupItems(body any) ([]map[string]any, bool) {
	if arr, ok := body.([]any); ok {
		return toMapSlice(arr), true
	}
	m, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	if flag, exists := m["success"]; exists {
		if b, isBool := flag.(bool); isBool && !b {
			return nil, false
		}
	}
	for _, field := range []string{"data", "items"} {
		if arr, ok := m[field].([]any); ok {
			return toMapSlice(arr), true
		}
	}
	return nil, false
}

func toMapSlice(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func getString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; ids must not come out as 1.5e+06.
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
