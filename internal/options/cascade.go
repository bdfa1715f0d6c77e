package options

import (
	"context"
	"errors"

	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/model"
)

// Cascade keeps dependent option sets in step with their parent field.
type Cascade struct {
	resolver  *Resolver
	container filter.Container
}

// NewCascade binds a resolver to the container holding the filter values.
func NewCascade(resolver *Resolver, container filter.Container) *Cascade {
	return &Cascade{resolver: resolver, container: container}
}

// ParentChanged handles a new value of the parent capability: every
// enabled dependent has its selection cleared and its options re-resolved
// for the new value. A resolve superseded by a later change is not an
// error.
func (c *Cascade) ParentChanged(ctx context.Context, parent, value string) error {
	for _, dep := range c.dependents(parent) {
		key := dep.Field()
		if !c.container.Values().Get(key).IsEmpty() {
			c.container.UpdateField(key, model.Text(""))
		}
	}
	return c.Refresh(ctx, parent, value)
}

// Refresh re-resolves the enabled dependents of parent for value and leaves
// their stored selections alone. Used after a reset, where the selections
// already went back to their defaults.
func (c *Cascade) Refresh(ctx context.Context, parent, value string) error {
	for _, dep := range c.dependents(parent) {
		if _, err := c.resolver.Resolve(ctx, dep.Name, value); err != nil && !errors.Is(err, ErrSuperseded) {
			return err
		}
	}
	return nil
}

func (c *Cascade) dependents(parent string) []filter.Capability {
	var out []filter.Capability
	for _, dep := range filter.Dependents(parent) {
		if c.resolver.cfg.Enabled(dep.Name) {
			out = append(out, dep)
		}
	}
	return out
}
