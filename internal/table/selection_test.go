package table

import (
	"slices"
	"testing"
)

func TestSelection(t *testing.T) {
	var last []string
	calls := 0
	s := NewSelection(func(ids []string) {
		calls++
		last = ids
	})

	if !s.Toggle("b") || !s.Toggle("a") {
		t.Fatal("Toggle of unselected ids should report selected")
	}
	if !slices.Equal(last, []string{"a", "b"}) {
		t.Errorf("selection = %v, want [a b]", last)
	}

	if s.Toggle("b") {
		t.Error("Toggle(b) = true, want false")
	}
	if got := s.IDs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("IDs = %v, want [a]", got)
	}

	s.SelectAll([]string{"c", "", "a"})
	if !slices.Equal(last, []string{"a", "c"}) {
		t.Errorf("selection = %v, want [a c]", last)
	}
	if !s.Has("c") {
		t.Error("Has(c) = false")
	}

	s.Clear()
	if got := s.IDs(); len(got) != 0 {
		t.Errorf("IDs after Clear = %v, want none", got)
	}
	if last == nil || len(last) != 0 {
		t.Errorf("callback after Clear = %#v, want empty non-nil", last)
	}
	if calls != 5 {
		t.Errorf("callback calls = %d, want 5", calls)
	}
}

func TestSelection_nilCallback(t *testing.T) {
	s := NewSelection(nil)
	s.Toggle("x")
	s.Clear()
	if s.Has("x") {
		t.Error("Has(x) = true after Clear")
	}
}
