package bookmarks

import "math"

// Epsilons used for fuzzy timestamp matching. Inserts use the coarse window so a
// new bookmark is not proposed right next to an existing one; removals use the
// tight window so only the bookmark under the cursor is matched.
const (
	CoarseEpsilon = 3.0
	TightEpsilon  = 0.1
)

// FuzzyEqual reports whether a and b are within eps of each other.
func FuzzyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// RoundToHundredths rounds pos to two decimal places.
func RoundToHundredths(pos float64) float64 {
	return math.Round(pos*100) / 100
}

// FindInsertionIndex returns the first index i with timestamps[i] >= pos, or
// len(timestamps) when every element is smaller. timestamps must be sorted.
func FindInsertionIndex(timestamps []float64, pos float64) int {
	return findIndex(timestamps, pos, 0, len(timestamps))
}

func findIndex(timestamps []float64, pos float64, start, end int) int {
	if end-start <= 1 {
		if start == end || timestamps[start] >= pos {
			return start
		}
		return end
	}
	mid := (start + end) / 2
	if timestamps[mid] < pos {
		return findIndex(timestamps, pos, mid+1, end)
	}
	return findIndex(timestamps, pos, start, mid)
}
