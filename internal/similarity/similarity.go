package similarity

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultThreshold is the ratio at or above which two titles describe the same story.
const DefaultThreshold = 0.8

// IsDuplicate reports whether two titles are similar enough to be treated as one story.
// Empty titles never match anything.
func IsDuplicate(a, b string, threshold float64) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return Ratio(a, b) >= threshold
}

// Ratio returns the normalized similarity of two strings in [0,1].
//
// Strings are case-folded and compared rune by rune. The score is
// 1 - indel/(len(a)+len(b)), where indel is the insert/delete edit distance,
// which equals 2*LCS/(len(a)+len(b)).
func Ratio(a, b string) float64 {
	fold := cases.Fold()
	ra := []rune(fold.String(a))
	rb := []rune(fold.String(b))

	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return float64(2*lcsLength(ra, rb)) / float64(total)
}

// lcsLength computes the longest common subsequence with two rolling rows.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
