package filterbar

import "testing"

func TestGridColumns(t *testing.T) {
	tests := map[int]int{
		0: 1, 1: 1, 2: 2, 3: 3, 4: 4,
		5: 3, 6: 3, 7: 4, 8: 4,
		9: 3, 10: 3, 11: 4, 12: 4, 14: 3,
	}
	for n, want := range tests {
		if got := GridColumns(n); got != want {
			t.Errorf("GridColumns(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestGridColumns_lastRowNeverSingle(t *testing.T) {
	for n := 2; n <= 14; n++ {
		if cols := GridColumns(n); n%cols == 1 {
			t.Errorf("n=%d cols=%d leaves one control alone", n, cols)
		}
	}
}
