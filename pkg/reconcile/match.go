package reconcile

import (
	"strings"
	"unicode"

	"github.com/papergraph/papergraph/internal/util"
)

// DefaultSimilarityThreshold is the fuzzy score at or above which two
// canonical names refer to the same entity. Deliberately high: duplicate
// entities are recoverable with a later explicit merge, wrongly merged
// ones are not.
const DefaultSimilarityThreshold = 0.90

// SimilarityThreshold reads the configured fuzzy-match threshold.
func SimilarityThreshold() float64 {
	return util.GetEnvFloat("RECONCILE_SIMILARITY_THRESHOLD", DefaultSimilarityThreshold)
}

// NormalizeName canonicalizes an entity name for comparison: lowercased,
// punctuation stripped, whitespace collapsed.
func NormalizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func matchKey(name, typ string) string {
	return NormalizeName(name) + "|" + strings.ToLower(strings.TrimSpace(typ))
}

// Similarity scores how alike two entity names are in [0,1] using
// normalized Levenshtein distance over the canonical forms.
func Similarity(a, b string) float64 {
	na := NormalizeName(a)
	nb := NormalizeName(b)

	if na == nb {
		if na == "" {
			return 0
		}
		return 1
	}

	ra := []rune(na)
	rb := []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}

	return 1 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(b)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(a)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(a); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(b); i++ {
		for j := 1; j <= len(a); j++ {
			if b[i-1] == a[j-1] {
				matrix[i][j] = matrix[i-1][j-1]
			} else {
				min := matrix[i-1][j-1]
				if matrix[i][j-1] < min {
					min = matrix[i][j-1]
				}
				if matrix[i-1][j] < min {
					min = matrix[i-1][j]
				}
				matrix[i][j] = min + 1
			}
		}
	}

	return matrix[len(b)][len(a)]
}

// SameEntity reports whether two (name, type) pairs denote the same
// real-world entity under the matching policy: identical type plus either
// equal canonical names or a similarity score at or above the threshold.
func SameEntity(nameA, typeA, nameB, typeB string, threshold float64) bool {
	if !strings.EqualFold(strings.TrimSpace(typeA), strings.TrimSpace(typeB)) {
		return false
	}
	if NormalizeName(nameA) == NormalizeName(nameB) {
		return true
	}
	return Similarity(nameA, nameB) >= threshold
}
