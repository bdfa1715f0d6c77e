package filterbar

// GridColumns returns the number of grid columns for n enabled controls.
// Up to four controls sit on one row. Beyond that the count is chosen so
// the last row is never left with a single control: multiples of four and
// remainders of three use four columns, everything else uses three.
func GridColumns(n int) int {
	if n <= 4 {
		return max(n, 1)
	}
	switch n % 4 {
	case 0, 3:
		return 4
	default:
		return 3
	}
}
