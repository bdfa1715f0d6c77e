package filterbar

import (
	"context"
	"fmt"

	"github.com/pitabwire/backoffice/model"
)

// EventType names a user action on the filter bar.
type EventType string

// Event types.
const (
	EventInput  EventType = "input"
	EventBlur   EventType = "blur"
	EventSubmit EventType = "submit"
	EventClear  EventType = "clear"
)

// Event is one user action as sent by the front end.
type Event struct {
	Type  EventType   `json:"type"`
	Field string      `json:"field,omitempty"`
	Value model.Value `json:"value"`
}

// Validate checks that the event is well formed.
func (e Event) Validate() error {
	switch e.Type {
	case EventInput, EventBlur:
		if e.Field == "" {
			return fmt.Errorf("filterbar: %s event needs a field", e.Type)
		}
	case EventSubmit, EventClear:
	default:
		return fmt.Errorf("filterbar: unknown event type %q", e.Type)
	}
	return nil
}

// Apply dispatches ev and reports whether the bar committed.
func (b *Bar) Apply(ctx context.Context, ev Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	switch ev.Type {
	case EventInput:
		return b.Input(ctx, ev.Field, ev.Value)
	case EventBlur:
		return b.Blur(ev.Field), nil
	case EventSubmit:
		b.Submit()
	case EventClear:
		if err := b.ClearAll(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}
