package options

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

var (
	// ErrCapabilityDisabled is returned when resolving a capability the
	// filter configuration does not enable. No source is called.
	ErrCapabilityDisabled = errors.New("options: capability not enabled")
	// ErrSuperseded is returned by a resolve whose result arrived after a
	// newer resolve for the same capability was issued. Its result is
	// dropped.
	ErrSuperseded = errors.New("options: superseded by a newer request")
)

// Resolution outcomes recorded in metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeFallback   = "fallback"
	OutcomeSuperseded = "superseded"
	OutcomeStatic     = "static"
)

// OptionSet is the current option list of one capability.
type OptionSet struct {
	Records []Record
	// Loading is true while the latest request is in flight.
	Loading bool
	// Scope is the parent value the set was requested for.
	Scope string
	// Live is true when Records came from a successful fetch.
	Live bool
	// Fallback is true when the latest fetch failed and Records are the
	// static list.
	Fallback bool
}

type slot struct {
	seq uint64
	set OptionSet
}

// Resolver keeps the option sets of one filter configuration. A resolve
// only lands if it is still the latest request for its capability.
type Resolver struct {
	cfg     model.FilterConfig
	sources Sources
	logger  *zap.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	slots map[string]*slot
}

// NewResolver creates a resolver for cfg. logger and metrics may be nil.
func NewResolver(cfg model.FilterConfig, sources Sources, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cfg:     cfg,
		sources: sources,
		logger:  logger,
		metrics: metrics,
		slots:   make(map[string]*slot),
	}
}

// staticRecords returns the configured override for the capability, or its
// built-in default list.
func (r *Resolver) staticRecords(c filter.Capability) []Record {
	if custom, ok := r.cfg.OptionsFor(c.Name); ok {
		return FromOptions(custom)
	}
	return FromOptions(c.Defaults)
}

// Snapshot returns the current option set of a capability. Before any
// resolve it holds the static list.
func (r *Resolver) Snapshot(capability string) OptionSet {
	c, ok := filter.Lookup(capability)
	if !ok {
		return OptionSet{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[capability]
	if !ok {
		return OptionSet{Records: r.staticRecords(c)}
	}
	set := s.set
	set.Records = slices.Clone(set.Records)
	return set
}

// Resolve fetches the option set of a capability for the given parent
// value. A fetch failure is logged and answered with the static list, never
// returned. The error is non-nil only for unknown or disabled capabilities
// and for superseded requests.
func (r *Resolver) Resolve(ctx context.Context, capability, parent string) (records []Record, err error) {
	c, ok := filter.Lookup(capability)
	if !ok {
		return nil, fmt.Errorf("options: unknown capability %q", capability)
	}
	if !r.cfg.Enabled(capability) {
		return nil, ErrCapabilityDisabled
	}

	if !c.Remote() {
		records := r.staticRecords(c)
		r.record(capability, OutcomeStatic)
		return records, nil
	}

	ctx, span := observability.StartSpan(ctx, "options.resolve",
		observability.AttrCapability.String(capability),
		observability.AttrSourceID.String(c.Source),
		observability.AttrScope.String(parent),
	)
	outcome := OutcomeSuccess
	defer func() {
		span.SetAttributes(observability.AttrOutcome.String(outcome))
		observability.EndSpanWithError(span, err)
	}()

	seq := r.begin(c, parent)

	resp, fetchErr := r.fetch(ctx, c, parent)

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[capability]
	if s.seq != seq {
		outcome = OutcomeSuperseded
		r.record(capability, outcome)
		return nil, ErrSuperseded
	}

	if fetchErr != nil || !resp.Success {
		outcome = OutcomeFallback
		fields := []zap.Field{
			zap.String("capability", capability),
			zap.String("source", c.Source),
			zap.String("scope", parent),
		}
		if fetchErr != nil {
			fields = append(fields, zap.Error(fetchErr))
		} else {
			fields = append(fields, zap.Bool("success", false))
		}
		r.logger.Warn("option fetch failed, using static options", fields...)
		s.set = OptionSet{Records: r.staticRecords(c), Scope: parent, Fallback: true}
	} else {
		s.set = OptionSet{Records: slices.Clone(resp.Data), Scope: parent, Live: true}
	}
	r.record(capability, outcome)
	return slices.Clone(s.set.Records), nil
}

// begin takes a new request number for the capability and marks it loading.
// The previous records stay visible while loading.
func (r *Resolver) begin(c filter.Capability, parent string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[c.Name]
	if !ok {
		s = &slot{set: OptionSet{Records: r.staticRecords(c)}}
		r.slots[c.Name] = s
	}
	s.seq++
	s.set.Loading = true
	s.set.Scope = parent
	return s.seq
}

func (r *Resolver) fetch(ctx context.Context, c filter.Capability, parent string) (Response, error) {
	src, ok := r.sources[c.Source]
	if !ok {
		return Response{}, fmt.Errorf("options: no source registered for %q", c.Source)
	}
	return src.Fetch(ctx, parent)
}

func (r *Resolver) record(capability, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordOptionResolution(capability, outcome)
	}
}

// ResolveEnabled resolves every enabled remote capability that does not
// depend on a parent, then every dependent one with its parent's current
// value taken from values. Used for the first paint of a filter bar.
func (r *Resolver) ResolveEnabled(ctx context.Context, values model.FieldMap) {
	var dependents []filter.Capability
	for _, c := range filter.Enabled(r.cfg) {
		if !c.Remote() {
			continue
		}
		if c.DependsOn != "" {
			dependents = append(dependents, c)
			continue
		}
		_, _ = r.Resolve(ctx, c.Name, "")
	}
	for _, c := range dependents {
		parent, _ := filter.Lookup(c.DependsOn)
		_, _ = r.Resolve(ctx, c.Name, values.Get(parent.Field()).String())
	}
}
