package listing

import (
	"reflect"
	"testing"

	"github.com/pitabwire/backoffice/model"
)

func TestApplyResponseMapping(t *testing.T) {
	tests := []struct {
		name      string
		result    model.InvocationResult
		mapping   model.ResponseMappingDefinition
		wantIDs   []any
		wantTotal int
	}{
		{
			name:      "items and total paths",
			result:    model.InvocationResult{Body: map[string]any{"page": map[string]any{"rows": []any{map[string]any{"id": "a"}}, "count": float64(9)}}},
			mapping:   model.ResponseMappingDefinition{ItemsPath: "page.rows", TotalPath: "page.count"},
			wantIDs:   []any{"a"},
			wantTotal: 9,
		},
		{
			name:      "array body",
			result:    model.InvocationResult{Body: []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}},
			wantIDs:   []any{"a", "b"},
			wantTotal: 2,
		},
		{
			name:      "data member without items path",
			result:    model.InvocationResult{Body: map[string]any{"data": []any{map[string]any{"id": "a"}}, "total": float64(30)}},
			mapping:   model.ResponseMappingDefinition{TotalPath: "total"},
			wantIDs:   []any{"a"},
			wantTotal: 30,
		},
		{
			name: "total from header",
			result: model.InvocationResult{
				Body:    []any{map[string]any{"id": "a"}},
				Headers: map[string]string{"X-Total-Count": "120"},
			},
			wantIDs:   []any{"a"},
			wantTotal: 120,
		},
		{
			name:      "string total",
			result:    model.InvocationResult{Body: map[string]any{"data": []any{}, "total": "7"}},
			mapping:   model.ResponseMappingDefinition{TotalPath: "total"},
			wantIDs:   []any{},
			wantTotal: 7,
		},
		{
			name:      "non-object items skipped",
			result:    model.InvocationResult{Body: []any{"x", map[string]any{"id": "a"}, nil}},
			wantIDs:   []any{"a"},
			wantTotal: 1,
		},
		{
			name:      "unexpected body",
			result:    model.InvocationResult{Body: "oops"},
			wantIDs:   []any{},
			wantTotal: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total := applyResponseMapping(tt.result, tt.mapping)
			ids := make([]any, len(items))
			for i, item := range items {
				ids[i] = item["id"]
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestApplyFieldMap(t *testing.T) {
	items := applyFieldMap([]map[string]any{{"lead_id": "a", "name": "Acme"}}, map[string]string{"lead_id": "id"})
	want := []map[string]any{{"id": "a", "name": "Acme"}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestExtractPath(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": "c"}}
	if got := extractPath(data, "a.b"); got != "c" {
		t.Errorf("extractPath(a.b) = %v, want c", got)
	}
	for _, path := range []string{"a.b.c", ""} {
		if got := extractPath(data, path); got != nil {
			t.Errorf("extractPath(%q) = %v, want nil", path, got)
		}
	}
	if got := extractPath(nil, "a"); got != nil {
		t.Errorf("extractPath(nil, a) = %v, want nil", got)
	}
}
