package table

import (
	"slices"
	"sync"
)

// Selection is the set of selected row ids. It is kept apart from the rows
// so a selection survives re-renders and page changes.
type Selection struct {
	mu       sync.Mutex
	ids      map[string]struct{}
	onChange func(ids []string)
}

// NewSelection creates an empty selection. onChange, if not nil, receives
// the sorted ids after every change.
func NewSelection(onChange func(ids []string)) *Selection {
	return &Selection{ids: make(map[string]struct{}), onChange: onChange}
}

// Toggle flips id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	_, selected := s.ids[id]
	if selected {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	ids := s.sortedLocked()
	s.mu.Unlock()

	s.notify(ids)
	return !selected
}

// SelectAll adds every id. Empty ids are ignored.
func (s *Selection) SelectAll(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	out := s.sortedLocked()
	s.mu.Unlock()

	s.notify(out)
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.mu.Lock()
	clear(s.ids)
	s.mu.Unlock()

	s.notify([]string{})
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids, sorted.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Selection) sortedLocked() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *Selection) notify(ids []string) {
	if s.onChange != nil {
		s.onChange(ids)
	}
}
