package filter

import (
	"github.com/pitabwire/backoffice/model"
)

// Payload converts filter state into the outbound query parameters of a list
// fetch. Empty fields are omitted. Names are translated through the view's
// custom labels; pair values expand to <name>From and <name>To.
func Payload(cfg model.FilterConfig, values model.FieldMap) map[string]string {
	out := make(map[string]string, len(values))
	for key, v := range values {
		if v.IsEmpty() {
			continue
		}
		capability, fields := key, []string(nil)
		if c, ok := OwnerOf(key); ok {
			capability, fields = c.Name, c.Fields
		}
		name := cfg.OutboundName(capability, fields, key)

		if v.IsPair() {
			from, to := v.Bounds()
			if from != "" {
				out[name+"From"] = from
			}
			if to != "" {
				out[name+"To"] = to
			}
			continue
		}
		out[name] = v.String()
	}
	return out
}
