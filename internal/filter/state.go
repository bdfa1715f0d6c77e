package filter

import (
	"sync"

	"github.com/pitabwire/backoffice/model"
)

// ChangeFunc receives the complete field map after every change.
type ChangeFunc func(next model.FieldMap)

// Container holds the current values of a filter bar. Implementations
// accept unknown keys; the schema lives in the filter configuration.
type Container interface {
	// Values returns a copy of the current field map.
	Values() model.FieldMap
	// UpdateField sets one field and reports the full map to the change
	// callback.
	UpdateField(key string, value model.Value)
	// ResetFields restores the defaults snapshot taken at construction.
	ResetFields()
	// ActiveCount returns the number of non-empty fields.
	ActiveCount() int
	// HasActiveFilters reports whether ActiveCount is positive.
	HasActiveFilters() bool
}

// Uncontrolled is a Container that owns its field map.
type Uncontrolled struct {
	mu       sync.RWMutex
	defaults model.FieldMap
	values   model.FieldMap
	onChange ChangeFunc
}

// NewUncontrolled creates a container initialised from defaults. onChange
// may be nil.
func NewUncontrolled(defaults model.FieldMap, onChange ChangeFunc) *Uncontrolled {
	snapshot := defaults.Clone()
	return &Uncontrolled{
		defaults: snapshot,
		values:   snapshot.Clone(),
		onChange: onChange,
	}
}

// Values returns a copy of the current field map.
func (c *Uncontrolled) Values() model.FieldMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values.Clone()
}

// UpdateField stores value under key.
func (c *Uncontrolled) UpdateField(key string, value model.Value) {
	c.mu.Lock()
	c.values[key] = value
	next := c.values.Clone()
	c.mu.Unlock()

	c.notify(next)
}

// ResetFields restores the defaults snapshot.
func (c *Uncontrolled) ResetFields() {
	c.mu.Lock()
	c.values = c.defaults.Clone()
	next := c.values.Clone()
	c.mu.Unlock()

	c.notify(next)
}

// ActiveCount returns the number of non-empty fields.
func (c *Uncontrolled) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values.ActiveCount()
}

// HasActiveFilters reports whether any field is non-empty.
func (c *Uncontrolled) HasActiveFilters() bool {
	return c.ActiveCount() > 0
}

func (c *Uncontrolled) notify(next model.FieldMap) {
	if c.onChange != nil {
		c.onChange(next)
	}
}

// Controlled is a Container whose values are owned by the caller. Writes are
// computed against the owner's current map and forwarded to the change
// callback; they are never retained.
type Controlled struct {
	owner    func() model.FieldMap
	defaults model.FieldMap
	onChange ChangeFunc
}

// NewControlled creates a container mirroring owner. A nil owner mirrors the
// defaults.
func NewControlled(owner func() model.FieldMap, defaults model.FieldMap, onChange ChangeFunc) *Controlled {
	snapshot := defaults.Clone()
	if owner == nil {
		owner = func() model.FieldMap { return snapshot }
	}
	return &Controlled{
		owner:    owner,
		defaults: snapshot,
		onChange: onChange,
	}
}

// Values returns a copy of the owner's field map.
func (c *Controlled) Values() model.FieldMap {
	return c.owner().Clone()
}

// UpdateField forwards the owner's map with key set to value.
func (c *Controlled) UpdateField(key string, value model.Value) {
	next := c.Values()
	next[key] = value
	c.notify(next)
}

// ResetFields forwards the defaults snapshot.
func (c *Controlled) ResetFields() {
	c.notify(c.defaults.Clone())
}

// ActiveCount returns the number of non-empty fields in the owner's map.
func (c *Controlled) ActiveCount() int {
	return c.owner().ActiveCount()
}

// HasActiveFilters reports whether any owned field is non-empty.
func (c *Controlled) HasActiveFilters() bool {
	return c.ActiveCount() > 0
}

func (c *Controlled) notify(next model.FieldMap) {
	if c.onChange != nil {
		c.onChange(next)
	}
}

var (
	_ Container = (*Uncontrolled)(nil)
	_ Container = (*Controlled)(nil)
)
