// Package options resolves the option sets of select filters: static
// defaults, configured overrides and remote sources, including sets scoped
// by a parent filter value.
package options

import (
	"context"

	"github.com/pitabwire/backoffice/model"
)

// Record is one option as delivered by a source.
type Record struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Response is the envelope every option source returns. Success false is
// treated exactly like a transport error.
type Response struct {
	Success bool     `json:"success"`
	Data    []Record `json:"data"`
}

// Source fetches one option set. scope is the parent value for dependent
// sets and empty otherwise.
type Source interface {
	Fetch(ctx context.Context, scope string) (Response, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, scope string) (Response, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, scope string) (Response, error) {
	return f(ctx, scope)
}

// Sources maps a source name (as referenced by a capability) to its Source.
type Sources map[string]Source

// FromOptions converts static options to records.
func FromOptions(opts []model.Option) []Record {
	out := make([]Record, len(opts))
	for i, o := range opts {
		out[i] = Record{ID: o.Value, DisplayName: o.Label}
	}
	return out
}

// ToOptions converts records to value/label options.
func ToOptions(records []Record) []model.Option {
	out := make([]model.Option, len(records))
	for i, r := range records {
		out[i] = model.Option{Value: r.ID, Label: r.DisplayName}
	}
	return out
}
