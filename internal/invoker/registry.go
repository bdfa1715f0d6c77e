// Package invoker calls the backends that serve list rows and option sets,
// either over HTTP as described by an OpenAPI index or through in-process
// SDK handlers, with circuit breaking and retry for the HTTP path.
package invoker

import (
	"context"
	"fmt"
	"slices"

	"github.com/pitabwire/backoffice/model"
)

// Registry routes a binding to the first registered invoker that
// supports its type. Registration happens at startup only.
type Registry struct {
	invokers []model.OperationInvoker
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(inv model.OperationInvoker) {
	r.invokers = append(r.invokers, inv)
}

func (r *Registry) Supports(binding model.OperationBinding) bool {
	return r.find(binding) != nil
}

// Invoke hands the call to the invoker owning binding's type.
func (r *Registry) Invoke(ctx context.Context, rctx *model.RequestContext, binding model.OperationBinding, input model.InvocationInput) (model.InvocationResult, error) {
	inv := r.find(binding)
	if inv == nil {
		return model.InvocationResult{}, fmt.Errorf("invoker: unsupported binding type %q", binding.Type)
	}
	return inv.Invoke(ctx, rctx, binding, input)
}

func (r *Registry) find(binding model.OperationBinding) model.OperationInvoker {
	i := slices.IndexFunc(r.invokers, func(inv model.OperationInvoker) bool {
		return inv.Supports(binding)
	})
	if i < 0 {
		return nil
	}
	return r.invokers[i]
}
