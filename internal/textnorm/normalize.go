// Package textnorm canonicalizes free-text material names so that cache
// lookups hit regardless of case, spacing, word order, or stray punctuation.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRunRe = regexp.MustCompile(`\s+`)
	// Closes the gap between a quantity and an adjoining unit token:
	// "50 kg" -> "50kg". Fixed unit vocabulary only.
	unitGapRe = regexp.MustCompile(`(\d+)\s+(kg|g|mg|l|ml|m|cm|mm|m2|m3|pcs|unit|set|roll|lembar|batang|sak|dus|box)`)
	numSpecRe = regexp.MustCompile(`[0-9]+[a-zA-Z]*`)
)

// Normalize returns the canonical lookup key for a material name. Pure and
// total: empty input normalizes to the empty string, which callers must
// treat as "no fast path, fall back to fuzzy matching".
//
// "Semen Portland 50 kg", "Portland Semen 50kg" and "50KG semen portland"
// all normalize to "50kg portland semen".
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	text := strings.ToLower(strings.TrimSpace(name))
	text = nonAlnumRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRunRe.ReplaceAllString(text, " "))
	text = unitGapRe.ReplaceAllString(text, "$1$2")

	words := strings.Fields(text)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// Similarity computes a difflib-style ratio between two strings,
// case-insensitive: 2*M/T where M is the total length of matching blocks
// and T the combined length. Returns a value in [0, 1].
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	matched := matchingBlockLen(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingBlockLen sums the lengths of matching blocks by recursively
// splitting around the longest common substring.
func matchingBlockLen(a, b []rune, alo, ahi, blo, bhi int) int {
	i, j, k := longestMatch(a, b, alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	return k +
		matchingBlockLen(a, b, alo, i, blo, j) +
		matchingBlockLen(a, b, i+k, ahi, j+k, bhi)
}

func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestk int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newJ2len := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestk
}
