package duplicate

import "github.com/labhacker007/Joti-sub001/internal/normalize"

// contentPrefix is how many normalized runes of the body are compared.
const contentPrefix = 1000

// Ratio returns 2*LCS/(len(a)+len(b)) over runes. Two empty strings are
// identical. The result is symmetric and always within [0, 1].
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return float64(2*lcs(ra, rb)) / float64(total)
}

// lcs is the longest common subsequence length with two DP rows.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
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

// TitleSimilarity compares two raw titles after normalization.
func TitleSimilarity(a, b string) float64 {
	return Ratio(normalize.Text(a), normalize.Text(b))
}

// ContentSimilarity compares the first contentPrefix normalized runes of two
// bodies. HTML is reduced to text first. An empty body on either side scores 0.
func ContentSimilarity(a, b string) float64 {
	na := normalize.Prefix(normalize.Content(a), contentPrefix)
	nb := normalize.Prefix(normalize.Content(b), contentPrefix)
	if na == "" || nb == "" {
		return 0
	}
	return Ratio(na, nb)
}
