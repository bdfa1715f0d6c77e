// Package filterbar renders a filter configuration into filter bar controls
// and applies the user's input, blur, submit and clear events to the
// filter state.
package filterbar

import (
	"context"
	"fmt"

	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/options"
	"github.com/pitabwire/backoffice/model"
)

// Commit triggers reported to Hooks.OnCommit.
const (
	TriggerChange = "change"
	TriggerBlur   = "blur"
	TriggerSubmit = "submit"
	TriggerClear  = "clear"
)

const defaultSearchPlaceholder = "Search..."

// Hooks are the callbacks of a filter bar. Either may be nil.
type Hooks struct {
	// OnCommit receives the complete field map whenever the bar commits,
	// i.e. when the page should fetch data again.
	OnCommit func(values model.FieldMap, trigger string)
	// OnClear is called by ClearAll before OnCommit.
	OnClear func()
}

// Bar is one filter bar: a configuration bound to its state container and
// option resolver.
type Bar struct {
	cfg       model.FilterConfig
	container filter.Container
	resolver  *options.Resolver
	cascade   *options.Cascade
	hooks     Hooks
}

// New creates a bar over container. resolver supplies the select options.
func New(cfg model.FilterConfig, container filter.Container, resolver *options.Resolver, hooks Hooks) *Bar {
	return &Bar{
		cfg:       cfg,
		container: container,
		resolver:  resolver,
		cascade:   options.NewCascade(resolver, container),
		hooks:     hooks,
	}
}

// Config returns the bar's filter configuration.
func (b *Bar) Config() model.FilterConfig { return b.cfg }

// Values returns the current field map.
func (b *Bar) Values() model.FieldMap { return b.container.Values() }

// Payload returns the outbound query parameters for the current values.
func (b *Bar) Payload() map[string]string {
	return filter.Payload(b.cfg, b.container.Values())
}

// Load resolves the options of every enabled remote capability.
func (b *Bar) Load(ctx context.Context) {
	b.resolver.ResolveEnabled(ctx, b.container.Values())
}

// Input stores a new value for key. Numeric fields are sanitized first.
// Select changes commit immediately and a parent select also resets and
// re-resolves its dependents. Search, range and number input is stored
// only. It reports whether the bar committed.
func (b *Bar) Input(ctx context.Context, key string, value model.Value) (bool, error) {
	c, owned := filter.OwnerOf(key)
	if owned && c.Numeric {
		value = sanitize(value)
	}
	b.container.UpdateField(key, value)

	if !owned || c.Kind != model.ControlSelect {
		return false, nil
	}
	if len(filter.Dependents(c.Name)) > 0 {
		if err := b.cascade.ParentChanged(ctx, c.Name, value.String()); err != nil {
			return false, fmt.Errorf("filterbar: cascade from %s: %w", c.Name, err)
		}
	}
	b.commit(TriggerChange)
	return true, nil
}

// Blur commits when key belongs to a range, date or number control.
func (b *Bar) Blur(key string) bool {
	c, ok := filter.OwnerOf(key)
	if !ok || commitMode(c) != model.CommitOnBlur {
		return false
	}
	b.commit(TriggerBlur)
	return true
}

// Submit commits the search text and every pending value (the Search and
// Apply actions).
func (b *Bar) Submit() {
	b.commit(TriggerSubmit)
}

// ClearAll restores the defaults and notifies OnClear and OnCommit. A
// parent select whose value the reset changed has its dependents
// re-resolved for the restored value.
func (b *Bar) ClearAll(ctx context.Context) error {
	before := b.container.Values()
	b.container.ResetFields()
	after := b.container.Values()

	for _, c := range filter.Catalog() {
		if len(filter.Dependents(c.Name)) == 0 {
			continue
		}
		key := c.Field()
		if before.Get(key) == after.Get(key) {
			continue
		}
		if err := b.cascade.Refresh(ctx, c.Name, after.Get(key).String()); err != nil {
			return fmt.Errorf("filterbar: refresh dependents of %s: %w", c.Name, err)
		}
	}

	if b.hooks.OnClear != nil {
		b.hooks.OnClear()
	}
	b.commit(TriggerClear)
	return nil
}

func (b *Bar) commit(trigger string) {
	if b.hooks.OnCommit != nil {
		b.hooks.OnCommit(b.container.Values(), trigger)
	}
}

// Describe renders the bar: the search control, one control per enabled
// capability in catalog order, and the derived layout and counts.
func (b *Bar) Describe() model.FilterBarDescriptor {
	enabled := filter.Enabled(b.cfg)
	controls := make([]model.ControlDescriptor, 0, len(enabled))
	for _, c := range enabled {
		controls = append(controls, b.describeControl(c))
	}

	placeholder := b.cfg.SearchPlaceholder
	if placeholder == "" {
		placeholder = defaultSearchPlaceholder
	}
	search, _ := filter.Lookup(filter.Search)

	tab := b.cfg.TabType
	if tab == "" {
		tab = model.TabDefault
	}

	return model.FilterBarDescriptor{
		TabType: tab,
		Theme:   filter.ThemeFor(b.cfg),
		Search: model.ControlDescriptor{
			Capability:  search.Name,
			Kind:        search.Kind,
			Label:       search.Label,
			Fields:      search.Fields,
			Placeholder: placeholder,
			Commit:      model.CommitOnSubmit,
		},
		Controls:         controls,
		GridColumns:      GridColumns(len(controls)),
		ActiveCount:      b.container.ActiveCount(),
		HasActiveFilters: b.container.HasActiveFilters(),
		Values:           b.container.Values(),
	}
}

func (b *Bar) describeControl(c filter.Capability) model.ControlDescriptor {
	d := model.ControlDescriptor{
		Capability: c.Name,
		Kind:       c.Kind,
		Label:      c.Label,
		Fields:     c.Fields,
		Commit:     commitMode(c),
		DependsOn:  c.DependsOn,
	}
	if c.Kind == model.ControlSelect {
		set := b.resolver.Snapshot(c.Name)
		d.Loading = set.Loading
		for _, o := range options.ToOptions(set.Records) {
			d.Options = append(d.Options, model.OptionDescriptor{Value: o.Value, Label: o.Label})
		}
	}
	return d
}

func commitMode(c filter.Capability) model.CommitMode {
	switch c.Kind {
	case model.ControlSelect:
		return model.CommitOnChange
	case model.ControlText:
		return model.CommitOnSubmit
	default:
		return model.CommitOnBlur
	}
}

func sanitize(v model.Value) model.Value {
	if v.IsPair() {
		from, to := v.Bounds()
		return model.Pair(filter.SanitizeNumeric(from), filter.SanitizeNumeric(to))
	}
	return model.Text(filter.SanitizeNumeric(v.String()))
}
