package openapi

import (
	"slices"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func loadTestIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex()
	err := idx.Load([]SpecSource{
		{ServiceID: "leads-svc", BaseURL: "https://leads.test", SpecPath: "testdata/leads-svc.yaml"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return idx
}

func TestIndex_Load(t *testing.T) {
	tests := []struct {
		name        string
		src         SpecSource
		wantErr     bool
		wantBaseURL string
	}{
		{"configured base url", SpecSource{ServiceID: "leads-svc", BaseURL: "https://leads.test", SpecPath: "testdata/leads-svc.yaml"}, false, "https://leads.test"},
		{"base url from servers", SpecSource{ServiceID: "leads-svc", SpecPath: "testdata/leads-svc.yaml"}, false, "https://leads.internal"},
		{"missing file", SpecSource{ServiceID: "hr-svc", SpecPath: "testdata/hr-svc.yaml"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewIndex()
			err := idx.Load([]SpecSource{tt.src})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			op, ok := idx.GetOperation(tt.src.ServiceID, "listLeads")
			if !ok {
				t.Fatal("listLeads not indexed")
			}
			if op.BaseURL != tt.wantBaseURL {
				t.Errorf("BaseURL = %q, want %q", op.BaseURL, tt.wantBaseURL)
			}
		})
	}
}

func TestIndex_AllOperationIDs(t *testing.T) {
	idx := loadTestIndex(t)

	want := []string{"getLead", "listClosedLeads", "listEmployees", "listLeads", "listSalesUnits"}
	if got := idx.AllOperationIDs("leads-svc"); !slices.Equal(got, want) {
		t.Errorf("AllOperationIDs = %v, want %v", got, want)
	}
	if got := idx.AllOperationIDs("hr-svc"); len(got) != 0 {
		t.Errorf("unknown service = %v", got)
	}
}

func TestIndex_GetOperation(t *testing.T) {
	idx := loadTestIndex(t)

	tests := []struct {
		service, operation string
		found              bool
		method, path       string
	}{
		{"leads-svc", "listLeads", true, "GET", "/leads"},
		{"leads-svc", "getLead", true, "GET", "/leads/{leadId}"},
		{"leads-svc", "deleteLead", false, "", ""},
		{"hr-svc", "listLeads", false, "", ""},
	}
	for _, tt := range tests {
		op, ok := idx.GetOperation(tt.service, tt.operation)
		if ok != tt.found {
			t.Errorf("%s/%s found = %v, want %v", tt.service, tt.operation, ok, tt.found)
			continue
		}
		if ok && (op.Method != tt.method || op.PathTemplate != tt.path) {
			t.Errorf("%s/%s = %s %s, want %s %s", tt.service, tt.operation, op.Method, op.PathTemplate, tt.method, tt.path)
		}
	}
}

func TestIndex_pathLevelParameters(t *testing.T) {
	idx := loadTestIndex(t)
	op, _ := idx.GetOperation("leads-svc", "getLead")

	i := slices.IndexFunc(op.Parameters, func(p *openapi3.Parameter) bool { return p.Name == "leadId" })
	if i < 0 || op.Parameters[i].In != "path" {
		t.Errorf("leadId path parameter missing from %d parameters", len(op.Parameters))
	}
	if _, ok := op.QueryParameter("leadId"); ok {
		t.Error("path parameter reported as query parameter")
	}
}

func TestIndex_QueryParameterNames(t *testing.T) {
	idx := loadTestIndex(t)

	tests := []struct {
		operation string
		want      []string
	}{
		{"listClosedLeads", []string{"closedBy", "outcome", "page", "page_size", "q"}},
		{"getLead", []string{}},
		{"deleteLead", nil},
	}
	for _, tt := range tests {
		got := idx.QueryParameterNames("leads-svc", tt.operation)
		if !slices.Equal(got, tt.want) || (got == nil) != (tt.want == nil) {
			t.Errorf("QueryParameterNames(%s) = %#v, want %#v", tt.operation, got, tt.want)
		}
	}
}

func TestIndex_ValidateQuery(t *testing.T) {
	idx := loadTestIndex(t)

	tests := []struct {
		name      string
		operation string
		params    map[string]string
		want      []string // field:code
	}{
		{
			name:      "declared filters",
			operation: "listLeads",
			params:    map[string]string{"status": "new", "minAmount": "12", "page": "1"},
		},
		{
			name:      "renamed filter",
			operation: "listLeads",
			params:    map[string]string{"leadStatus": "new", "status": "new"},
			want:      []string{"leadStatus:" + CodeUndeclared},
		},
		{
			name:      "missing scope",
			operation: "listEmployees",
			want:      []string{"salesUnitId:" + CodeRequired},
		},
		{
			name:      "both problems sorted by field",
			operation: "listEmployees",
			params:    map[string]string{"zone": "eu"},
			want:      []string{"salesUnitId:" + CodeRequired, "zone:" + CodeUndeclared},
		},
		{
			name:      "unknown operation",
			operation: "deleteLead",
			want:      []string{":" + CodeUnknownOp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range idx.ValidateQuery("leads-svc", tt.operation, tt.params) {
				if e.Message == "" {
					t.Errorf("%s has no message", e.Field)
				}
				got = append(got, e.Field+":"+e.Code)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ValidateQuery = %v, want %v", got, tt.want)
			}
		})
	}
}
