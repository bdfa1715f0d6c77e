package options

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

type countingRefresher struct {
	SourceFunc
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestNewWarmer_skipsScopedAndPlainSources(t *testing.T) {
	inv := &fakeInvoker{result: okBody([]any{})}
	lc := LookupConfig{Invoker: inv, Store: NewMemoryStore(0)}
	sources := Sources{
		"salesUnits": NewLookupSource(model.OptionSourceDefinition{ID: "salesUnits"}, lc),
		"employees":  NewLookupSource(employeeSource(), lc),
		"static":     SourceFunc(func(context.Context, string) (Response, error) { return Response{}, nil }),
	}

	w := NewWarmer(sources, nil, nil)
	if got := w.Targets(); !slices.Equal(got, []string{"salesUnits"}) {
		t.Errorf("Targets = %v, want [salesUnits]", got)
	}
}

func TestWarmer_RunOnce(t *testing.T) {
	m := observability.InitMetrics(prometheus.NewRegistry())
	good := &countingRefresher{}
	bad := &countingRefresher{err: errors.New("backend down")}
	w := NewWarmer(Sources{"industries": good, "teamLeads": bad}, nil, m)

	if failed := w.RunOnce(context.Background()); failed != 1 {
		t.Errorf("RunOnce failed = %d, want 1", failed)
	}
	if good.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Errorf("refresh calls = %d/%d, want 1/1", good.calls.Load(), bad.calls.Load())
	}
	if got := testutil.ToFloat64(m.OptionWarmupRunsTotal.WithLabelValues("industries", "ok")); got != 1 {
		t.Errorf("warmup{industries,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OptionWarmupRunsTotal.WithLabelValues("teamLeads", "error")); got != 1 {
		t.Errorf("warmup{teamLeads,error} = %v, want 1", got)
	}
}

func TestWarmer_refreshPopulatesCache(t *testing.T) {
	inv := &fakeInvoker{result: okBody([]any{map[string]any{"id": "u3", "name": "North"}})}
	store := NewMemoryStore(0)
	src := NewLookupSource(model.OptionSourceDefinition{ID: "salesUnits"}, LookupConfig{Invoker: inv, Store: store})
	w := NewWarmer(Sources{"salesUnits": src}, nil, nil)

	if failed := w.RunOnce(context.Background()); failed != 0 {
		t.Fatalf("RunOnce failed = %d, want 0", failed)
	}

	resp, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if want := []Record{{ID: "u3", DisplayName: "North"}}; !reflect.DeepEqual(resp.Data, want) {
		t.Errorf("Data = %v, want %v", resp.Data, want)
	}
	// The fetch is served from the warmed cache.
	if n := inv.calls.Load(); n != 1 {
		t.Errorf("invoker calls = %d, want 1", n)
	}
}

func TestWarmer_refreshUnsuccessful(t *testing.T) {
	inv := &fakeInvoker{result: okBody(map[string]any{"success": false})}
	src := NewLookupSource(model.OptionSourceDefinition{ID: "salesUnits"}, LookupConfig{Invoker: inv, Store: NewMemoryStore(0)})

	if err := src.Refresh(context.Background()); err == nil {
		t.Error("Refresh succeeded, want error")
	}
}

func TestWarmer_Start(t *testing.T) {
	r := &countingRefresher{}
	w := NewWarmer(Sources{"industries": r}, nil, nil)

	if err := w.Start("* * * * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for r.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled refresh never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWarmer_StartBadSchedule(t *testing.T) {
	w := NewWarmer(Sources{}, nil, nil)
	if err := w.Start("every minute"); err == nil {
		t.Error("Start accepted a bad schedule")
	}
}
