package listing

import (
	"testing"

	"github.com/pitabwire/backoffice/internal/table"
)

type renderCase struct {
	value any
	row   table.Record
	want  string
}

func checkRenderer(t *testing.T, name string, fn table.RenderFunc[table.Record], tests []renderCase) {
	t.Helper()
	for _, tt := range tests {
		if got := fn(tt.value, tt.row); got != tt.want {
			t.Errorf("%s(%v, %v) = %v, want %q", name, tt.value, tt.row, got, tt.want)
		}
	}
}

func TestAmountRenderer(t *testing.T) {
	checkRenderer(t, "amount[en]", Renderers("en")[RendererAmount], []renderCase{
		{1250000.5, nil, "1,250,000.50"},
		{"12", nil, "12.00"},
		{float64(3000), table.Record{"currency": "KES"}, "KES 3,000.00"},
		{nil, nil, ""},
		{"n/a", nil, "n/a"},
	})
	checkRenderer(t, "amount[de-DE]", Renderers("de-DE")[RendererAmount], []renderCase{
		{1250000.5, nil, "1.250.000,50"},
	})
}

func TestAmountRenderer_badLocale(t *testing.T) {
	checkRenderer(t, "amount", Renderers("not a locale!")[RendererAmount], []renderCase{
		{1000, nil, "1,000.00"},
	})
}

func TestPhaseRenderer(t *testing.T) {
	checkRenderer(t, "phase", Renderers("en")[RendererPhase], []renderCase{
		{float64(2), table.Record{"totalPhases": float64(5)}, "2/5"},
		{nil, table.Record{"currentPhase": "3", "totalPhases": 4}, "3/4"},
		{float64(2), table.Record{}, "2"},
		{nil, table.Record{}, ""},
	})
}

func TestInitialsRenderer(t *testing.T) {
	checkRenderer(t, "initials", Renderers("en")[RendererInitials], []renderCase{
		{"ada  obi", nil, "AO"},
		{nil, nil, ""},
	})
}

func TestRendererNames(t *testing.T) {
	r := Renderers("en")
	for _, name := range RendererNames() {
		if _, ok := r[name]; !ok {
			t.Errorf("renderer %q not registered", name)
		}
	}
	if len(r) != len(RendererNames()) {
		t.Errorf("renderers = %d, want %d", len(r), len(RendererNames()))
	}
}
