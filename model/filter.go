package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TabType is the display variant of a filter bar. It only selects a theme.
type TabType string

// Known tab types.
const (
	TabDefault  TabType = "default"
	TabActive   TabType = "active"
	TabClosed   TabType = "closed"
	TabArchived TabType = "archived"
	TabPayroll  TabType = "payroll"
)

// Theme is a bundle of style-class tokens. The engine never interprets them.
type Theme struct {
	Primary    string `yaml:"primary"    json:"primary"`
	Secondary  string `yaml:"secondary"  json:"secondary"`
	Ring       string `yaml:"ring"       json:"ring"`
	Background string `yaml:"background" json:"background"`
	Text       string `yaml:"text"       json:"text"`
}

// Merge returns t with every empty token taken from fallback.
func (t Theme) Merge(fallback Theme) Theme {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Theme{
		Primary:    pick(t.Primary, fallback.Primary),
		Secondary:  pick(t.Secondary, fallback.Secondary),
		Ring:       pick(t.Ring, fallback.Ring),
		Background: pick(t.Background, fallback.Background),
		Text:       pick(t.Text, fallback.Text),
	}
}

// Option is a value/label pair for select controls.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// FilterConfig describes which filter capabilities a list view exposes and
// how their values are named on the wire.
type FilterConfig struct {
	TabType           TabType             `yaml:"tab_type"           json:"tab_type,omitempty"`
	SearchPlaceholder string              `yaml:"search_placeholder" json:"search_placeholder,omitempty"`
	Theme             Theme               `yaml:"theme"              json:"theme"`
	Filters           map[string]bool     `yaml:"filters"            json:"filters,omitempty"`
	CustomOptions     map[string][]Option `yaml:"custom_options"     json:"custom_options,omitempty"`
	CustomLabels      map[string]string   `yaml:"custom_labels"      json:"custom_labels,omitempty"`
	Defaults          FieldMap            `yaml:"defaults"           json:"defaults,omitempty"`
	URLPrefix         string              `yaml:"url_prefix"         json:"url_prefix,omitempty"`
}

// Enabled reports whether the capability is switched on. Both the bare
// capability name ("type") and the flag form ("showType") are accepted.
func (c FilterConfig) Enabled(capability string) bool {
	if c.Filters == nil {
		return false
	}
	if c.Filters[ShowFlag(capability)] {
		return true
	}
	return c.Filters[capability]
}

// OptionsFor returns the custom option override for a capability, looked up
// as "<capability>Options" first and then by the bare name.
func (c FilterConfig) OptionsFor(capability string) ([]Option, bool) {
	if c.CustomOptions == nil {
		return nil, false
	}
	if opts, ok := c.CustomOptions[capability+"Options"]; ok {
		return opts, true
	}
	opts, ok := c.CustomOptions[capability]
	return opts, ok
}

// OutboundName returns the query-parameter name for field, one of the
// fields of capability. CustomLabels is consulted by field key, then by
// capability; the field key is the fallback. A capability label on a
// two-field capability names the pair: the first field is sent as
// <label>From and the second as <label>To.
func (c FilterConfig) OutboundName(capability string, fields []string, field string) string {
	if name := c.CustomLabels[field]; name != "" {
		return name
	}
	name := c.CustomLabels[capability]
	if name == "" {
		return field
	}
	if len(fields) == 2 {
		if field == fields[0] {
			return name + "From"
		}
		return name + "To"
	}
	return name
}

// ShowFlag returns the "showX" flag name of a capability.
func ShowFlag(capability string) string {
	r, size := utf8.DecodeRuneInString(capability)
	if r == utf8.RuneError {
		return "show"
	}
	return "show" + string(unicode.ToUpper(r)) + capability[size:]
}

// CapabilityFromFlag strips the "show" prefix of a flag name. Names without
// the prefix are returned as they are.
func CapabilityFromFlag(flag string) string {
	rest, ok := strings.CutPrefix(flag, "show")
	if !ok || rest == "" {
		return flag
	}
	r, size := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return flag
	}
	return string(unicode.ToLower(r)) + rest[size:]
}

// Value is the current value of one filter field: a text value or a
// from/to pair.
type Value struct {
	text   string
	from   string
	to     string
	isPair bool
}

// Text returns a text value.
func Text(s string) Value { return Value{text: s} }

// Pair returns a from/to value.
func Pair(from, to string) Value { return Value{from: from, to: to, isPair: true} }

// IsPair reports whether v holds a from/to pair.
func (v Value) IsPair() bool { return v.isPair }

// String returns the text of a text value, or "from..to" for pairs.
func (v Value) String() string {
	if v.isPair {
		return v.from + ".." + v.to
	}
	return v.text
}

// Bounds returns both ends of a pair. For a text value both are empty.
func (v Value) Bounds() (from, to string) { return v.from, v.to }

// IsEmpty reports whether the value counts as unset.
func (v Value) IsEmpty() bool {
	if v.isPair {
		return v.from == "" && v.to == ""
	}
	return v.text == ""
}

// MarshalJSON encodes text values as strings and pairs as objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isPair {
		return json.Marshal(struct {
			From string `json:"from"`
			To   string `json:"to"`
		}{v.from, v.to})
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a string, a number, null, a {from,to} object or a
// two-element array.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Text(t), nil
	case float64, int, int64, bool:
		return Text(fmt.Sprint(t)), nil
	case []any:
		if len(t) != 2 {
			return Value{}, fmt.Errorf("filter value: pair needs 2 elements, got %d", len(t))
		}
		return Pair(scalarString(t[0]), scalarString(t[1])), nil
	case map[string]any:
		return Pair(scalarString(t["from"]), scalarString(t["to"])), nil
	default:
		return Value{}, fmt.Errorf("filter value: unsupported type %T", raw)
	}
}

func scalarString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// FieldMap is a flat mapping from field key to current value.
type FieldMap map[string]Value

// Clone returns an independent copy of m. A nil map clones to an empty map.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ActiveCount returns the number of fields holding a non-empty value.
func (m FieldMap) ActiveCount() int {
	n := 0
	for _, v := range m {
		if !v.IsEmpty() {
			n++
		}
	}
	return n
}

// Get returns the value of key, or the empty value.
func (m FieldMap) Get(key string) Value {
	return m[key]
}
