package filter

import (
	"net/url"
	"slices"
	"strings"

	"github.com/pitabwire/backoffice/model"
)

// URLCodec maps filter state to and from URL query parameters named
// prefix + field key.
type URLCodec struct {
	Prefix string
}

// Encode writes every non-empty field. Pair values are written as two
// values of the same parameter.
func (c URLCodec) Encode(values model.FieldMap) url.Values {
	q := make(url.Values, len(values))
	for key, v := range values {
		if v.IsEmpty() {
			continue
		}
		if v.IsPair() {
			from, to := v.Bounds()
			q[c.Prefix+key] = []string{from, to}
			continue
		}
		q.Set(c.Prefix+key, v.String())
	}
	return q
}

// Decode reads every parameter carrying the prefix. A parameter with exactly
// two values decodes to a pair; otherwise the first value is used. Names in
// skip are ignored.
func (c URLCodec) Decode(q url.Values, skip ...string) model.FieldMap {
	out := make(model.FieldMap)
	for name, vals := range q {
		key, ok := strings.CutPrefix(name, c.Prefix)
		if !ok || key == "" || len(vals) == 0 || slices.Contains(skip, name) {
			continue
		}
		if len(vals) == 2 {
			out[key] = model.Pair(vals[0], vals[1])
			continue
		}
		out[key] = model.Text(vals[0])
	}
	return out
}
