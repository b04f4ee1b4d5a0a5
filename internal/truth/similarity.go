package truth

// Ratio computes Ratcliff-Obershelp similarity between two strings,
// matching Python's difflib.SequenceMatcher.ratio(): twice the number
// of matching characters divided by the total length of both strings.
// Deterministic and symmetric in the lengths it reports; 1.0 for two
// empty strings.
func Ratio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	matches := matchingRunes(ar, br)
	return 2.0 * float64(matches) / float64(total)
}

// matchingRunes counts matched characters by finding the longest
// common substring and recursing on the unmatched flanks, the same
// divide-and-conquer difflib uses.
func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	matched := size
	matched += matchingRunes(a[:ai], b[:bi])
	matched += matchingRunes(a[ai+size:], b[bi+size:])
	return matched
}

// longestCommonSubstring returns the start indices and length of the
// longest block of runes common to a and b. Ties resolve to the
// earliest block in a, then in b, which keeps the metric deterministic.
func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	// lengths[j] holds the length of the common suffix ending at
	// a[i-1], b[j-1] for the current row.
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
