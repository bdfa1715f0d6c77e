package options

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/observability"
)

// Refresher is a source whose unscoped set can be pre-fetched.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Warmer pre-fetches option sets on a cron schedule so first paints of
// filter bars hit the cache. Schedules use a leading seconds field.
type Warmer struct {
	cron    *cron.Cron
	targets map[string]Refresher
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewWarmer creates a warmer for every source in sources that can refresh
// and is not scoped by a parent value.
func NewWarmer(sources Sources, logger *zap.Logger, metrics *observability.Metrics) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := make(map[string]Refresher)
	for id, src := range sources {
		if ls, ok := src.(*LookupSource); ok && ls.def.ScopeParam != "" {
			continue
		}
		if r, ok := src.(Refresher); ok {
			targets[id] = r
		}
	}
	return &Warmer{
		cron:    cron.New(cron.WithSeconds()),
		targets: targets,
		timeout: 30 * time.Second,
		logger:  logger,
		metrics: metrics,
	}
}

// Targets returns the IDs of the sources the warmer refreshes, sorted.
func (w *Warmer) Targets() []string {
	ids := make([]string, 0, len(w.targets))
	for id := range w.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start schedules RunOnce and starts the scheduler.
func (w *Warmer) Start(schedule string) error {
	if _, err := w.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		w.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("options: warmup schedule %q: %w", schedule, err)
	}
	w.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}

// RunOnce refreshes every target and returns how many failed.
func (w *Warmer) RunOnce(ctx context.Context) int {
	failed := 0
	for _, id := range w.Targets() {
		status := "ok"
		if err := w.targets[id].Refresh(ctx); err != nil {
			status = "error"
			failed++
			w.logger.Warn("option warmup failed", zap.String("source_id", id), zap.Error(err))
		}
		if w.metrics != nil {
			w.metrics.RecordOptionWarmup(id, status)
		}
	}
	return failed
}
