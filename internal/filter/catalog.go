// Package filter holds the filter capability catalog, the filter state
// container and the helpers that turn filter state into outbound payloads.
package filter

import (
	"slices"

	"github.com/pitabwire/backoffice/model"
)

// Capability describes one filter dimension a view may enable.
type Capability struct {
	Name  string
	Kind  model.ControlKind
	Label string
	// Fields are the state keys the capability writes. Ranges use two keys.
	Fields []string
	// Defaults is the static option list used for initial state and as the
	// fallback when a remote fetch fails.
	Defaults []model.Option
	// Source names the remote option source. Empty for static selects.
	Source string
	// DependsOn names the parent capability whose value scopes Source.
	DependsOn string
	// Numeric fields are sanitized to [0-9.] on input.
	Numeric bool
}

// Remote reports whether the capability resolves its options remotely.
func (c Capability) Remote() bool { return c.Source != "" }

// Field returns the first state key of the capability.
func (c Capability) Field() string { return c.Fields[0] }

// Search is the always-on free text capability.
const Search = "search"

// Default option lists, one per select capability.
var (
	DefaultStatusOptions = []model.Option{
		{Value: "new", Label: "New"},
		{Value: "contacted", Label: "Contacted"},
		{Value: "qualified", Label: "Qualified"},
		{Value: "proposal", Label: "Proposal"},
		{Value: "won", Label: "Won"},
		{Value: "lost", Label: "Lost"},
	}
	DefaultTypeOptions = []model.Option{
		{Value: "individual", Label: "Individual"},
		{Value: "business", Label: "Business"},
		{Value: "government", Label: "Government"},
	}
	DefaultSourceOptions = []model.Option{
		{Value: "website", Label: "Website"},
		{Value: "referral", Label: "Referral"},
		{Value: "social_media", Label: "Social Media"},
		{Value: "cold_call", Label: "Cold Call"},
		{Value: "event", Label: "Event"},
		{Value: "other", Label: "Other"},
	}
	DefaultOutcomeOptions = []model.Option{
		{Value: "won", Label: "Won"},
		{Value: "lost", Label: "Lost"},
		{Value: "cancelled", Label: "Cancelled"},
	}
	DefaultQualityRatingOptions = []model.Option{
		{Value: "excellent", Label: "Excellent"},
		{Value: "good", Label: "Good"},
		{Value: "average", Label: "Average"},
		{Value: "poor", Label: "Poor"},
	}
	DefaultSalesUnits = []model.Option{
		{Value: "", Label: "All Sales Units"},
	}
	DefaultEmployees = []model.Option{
		{Value: "", Label: "All Employees"},
	}
	DefaultIndustries = []model.Option{
		{Value: "technology", Label: "Technology"},
		{Value: "finance", Label: "Finance"},
		{Value: "healthcare", Label: "Healthcare"},
		{Value: "retail", Label: "Retail"},
		{Value: "manufacturing", Label: "Manufacturing"},
		{Value: "other", Label: "Other"},
	}
	DefaultTeamLeads = []model.Option{
		{Value: "", Label: "All Team Leads"},
	}
)

var catalog = []Capability{
	{Name: "status", Kind: model.ControlSelect, Label: "Status", Fields: []string{"status"}, Defaults: DefaultStatusOptions},
	{Name: "type", Kind: model.ControlSelect, Label: "Type", Fields: []string{"type"}, Defaults: DefaultTypeOptions},
	{Name: "salesUnit", Kind: model.ControlSelect, Label: "Sales Unit", Fields: []string{"salesUnitId"}, Defaults: DefaultSalesUnits, Source: "salesUnits"},
	{Name: "assignedTo", Kind: model.ControlSelect, Label: "Assigned To", Fields: []string{"assignedTo"}, Defaults: DefaultEmployees, Source: "employees", DependsOn: "salesUnit"},
	{Name: "dateRange", Kind: model.ControlDateRange, Label: "Date Range", Fields: []string{"startDate", "endDate"}},
	{Name: "industry", Kind: model.ControlSelect, Label: "Industry", Fields: []string{"industry"}, Defaults: DefaultIndustries, Source: "industries"},
	{Name: "amountRange", Kind: model.ControlNumericRange, Label: "Amount", Fields: []string{"minAmount", "maxAmount"}, Numeric: true},
	{Name: "closedBy", Kind: model.ControlSelect, Label: "Closed By", Fields: []string{"closedBy"}, Defaults: DefaultTeamLeads, Source: "teamLeads"},
	{Name: "currentPhase", Kind: model.ControlNumber, Label: "Current Phase", Fields: []string{"currentPhase"}, Numeric: true},
	{Name: "totalPhases", Kind: model.ControlNumber, Label: "Total Phases", Fields: []string{"totalPhases"}, Numeric: true},
	{Name: "source", Kind: model.ControlSelect, Label: "Source", Fields: []string{"source"}, Defaults: DefaultSourceOptions},
	{Name: "outcome", Kind: model.ControlSelect, Label: "Outcome", Fields: []string{"outcome"}, Defaults: DefaultOutcomeOptions},
	{Name: "qualityRating", Kind: model.ControlSelect, Label: "Quality Rating", Fields: []string{"qualityRating"}, Defaults: DefaultQualityRatingOptions},
	{Name: "archivedDateRange", Kind: model.ControlDateRange, Label: "Archived Date", Fields: []string{"archivedFrom", "archivedTo"}},
}

var searchCapability = Capability{Name: Search, Kind: model.ControlText, Label: "Search", Fields: []string{"search"}}

var (
	byName  = make(map[string]Capability, len(catalog)+1)
	byField = make(map[string]Capability)
)

func init() {
	for _, c := range append([]Capability{searchCapability}, catalog...) {
		byName[c.Name] = c
		for _, f := range c.Fields {
			byField[f] = c
		}
	}
}

// Catalog returns the optional capabilities in display order. Search is not
// included; it is always on.
func Catalog() []Capability {
	return slices.Clone(catalog)
}

// Lookup returns the capability with the given name.
func Lookup(name string) (Capability, bool) {
	c, ok := byName[name]
	return c, ok
}

// OwnerOf returns the capability that writes the given state key.
func OwnerOf(field string) (Capability, bool) {
	c, ok := byField[field]
	return c, ok
}

// Dependents returns the capabilities scoped by the named parent.
func Dependents(parent string) []Capability {
	var out []Capability
	for _, c := range catalog {
		if c.DependsOn == parent {
			out = append(out, c)
		}
	}
	return out
}

// Enabled returns the catalog entries switched on by cfg, in display order.
func Enabled(cfg model.FilterConfig) []Capability {
	var out []Capability
	for _, c := range catalog {
		if cfg.Enabled(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

var tabThemes = map[model.TabType]model.Theme{
	model.TabDefault: {
		Primary: "bg-blue-600", Secondary: "bg-blue-50", Ring: "focus:ring-blue-500",
		Background: "bg-white", Text: "text-blue-700",
	},
	model.TabActive: {
		Primary: "bg-green-600", Secondary: "bg-green-50", Ring: "focus:ring-green-500",
		Background: "bg-white", Text: "text-green-700",
	},
	model.TabClosed: {
		Primary: "bg-gray-600", Secondary: "bg-gray-50", Ring: "focus:ring-gray-500",
		Background: "bg-white", Text: "text-gray-700",
	},
	model.TabArchived: {
		Primary: "bg-amber-600", Secondary: "bg-amber-50", Ring: "focus:ring-amber-500",
		Background: "bg-white", Text: "text-amber-700",
	},
	model.TabPayroll: {
		Primary: "bg-indigo-600", Secondary: "bg-indigo-50", Ring: "focus:ring-indigo-500",
		Background: "bg-white", Text: "text-indigo-700",
	},
}

// ThemeFor returns cfg's theme with unset tokens taken from its tab type.
func ThemeFor(cfg model.FilterConfig) model.Theme {
	base, ok := tabThemes[cfg.TabType]
	if !ok {
		base = tabThemes[model.TabDefault]
	}
	return cfg.Theme.Merge(base)
}

// KnownTab reports whether t is a known tab type. The empty tab is default.
func KnownTab(t model.TabType) bool {
	if t == "" {
		return true
	}
	_, ok := tabThemes[t]
	return ok
}
