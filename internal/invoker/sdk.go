package invoker

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

// SDKHandler is an in-process backend registered at startup and invoked by
// name from definition bindings. List views and option sources whose data
// lives in the same binary (static lookups, computed lists) use handlers
// instead of an HTTP round trip.
type SDKHandler interface {
	// Name returns the unique handler name used in definition bindings.
	Name() string
	// Invoke executes the handler with the given request context and input.
	Invoke(ctx context.Context, rctx *model.RequestContext, input model.InvocationInput) (model.InvocationResult, error)
}

// SDKHandlerFunc adapts a plain function to SDKHandler.
type SDKHandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, rctx *model.RequestContext, input model.InvocationInput) (model.InvocationResult, error)
}

// Name implements SDKHandler.
func (f SDKHandlerFunc) Name() string { return f.HandlerName }

// Invoke implements SDKHandler.
func (f SDKHandlerFunc) Invoke(ctx context.Context, rctx *model.RequestContext, input model.InvocationInput) (model.InvocationResult, error) {
	return f.Fn(ctx, rctx, input)
}

// SDKHandlerRegistry stores named SDK handlers. It is safe for concurrent
// use after initial registration.
type SDKHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]SDKHandler
}

func NewSDKHandlerRegistry() *SDKHandlerRegistry {
	return &SDKHandlerRegistry{handlers: map[string]SDKHandler{}}
}

// Register adds handler under its Name(). Registering a name twice panics:
// it is a wiring mistake at startup.
func (r *SDKHandlerRegistry) Register(handler SDKHandler) {
	name := handler.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[name]; dup {
		panic("invoker: duplicate SDK handler " + strconv.Quote(name))
	}
	r.handlers[name] = handler
}

func (r *SDKHandlerRegistry) Get(name string) (SDKHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered handler names, sorted.
func (r *SDKHandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// SDKOperationInvoker dispatches "sdk" bindings to registered handlers.
type SDKOperationInvoker struct {
	registry *SDKHandlerRegistry
}

// NewSDKOperationInvoker creates an invoker backed by the given handler registry.
func NewSDKOperationInvoker(registry *SDKHandlerRegistry) *SDKOperationInvoker {
	return &SDKOperationInvoker{registry: registry}
}

// Supports reports whether binding is an "sdk" binding.
func (inv *SDKOperationInvoker) Supports(binding model.OperationBinding) bool {
	return binding.Type == "sdk"
}

// Invoke runs the handler named by binding.Handler in its own span.
func (inv *SDKOperationInvoker) Invoke(
	ctx context.Context,
	rctx *model.RequestContext,
	binding model.OperationBinding,
	input model.InvocationInput,
) (result model.InvocationResult, err error) {
	handler, ok := inv.registry.Get(binding.Handler)
	if !ok {
		return model.InvocationResult{}, fmt.Errorf("invoker: no SDK handler named %q", binding.Handler)
	}
	ctx, span := observability.StartSpan(ctx, "sdk.invoke",
		observability.AttrServiceID.String("sdk:"+binding.Handler),
	)
	defer func() { observability.EndSpanWithError(span, err) }()
	return handler.Invoke(ctx, rctx, input)
}
