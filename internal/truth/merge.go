package truth

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Values flowing through the merge strategy are JSON-shaped: nil,
// string, float64, bool, []any, map[string]any. The strategy is pure;
// callers own the maps they pass in.

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

const (
	keyThreshold = 0.8 // fuzzy key match cutoff
	valThreshold = 0.9 // fuzzy string value match cutoff
)

// NormalizeKey canonicalizes a claim key: lowercase, strip
// non-alphanumerics, collapse whitespace runs to single underscores.
func NormalizeKey(key string) string {
	normalized := nonAlnumRe.ReplaceAllString(strings.ToLower(key), "")
	normalized = whitespaceRe.ReplaceAllString(strings.TrimSpace(normalized), "_")
	return normalized
}

// keysSimilar reports whether two normalized keys refer to the same
// claim, by exact match or fuzzy similarity.
func keysSimilar(a, b string) bool {
	if a == b {
		return true
	}
	return Ratio(a, b) >= keyThreshold
}

// ValuesMatch reports whether two claimed values agree. Strings match
// on case-folded similarity >= 0.9, lists match elementwise at equal
// length, numbers by type-promoted equality, and mismatched types fall
// back to comparing their string forms.
func ValuesMatch(a, b any) bool {
	return valuesMatch(a, b, valThreshold)
}

func valuesMatch(a, b any, threshold float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		if as == bs {
			return true
		}
		return Ratio(strings.ToLower(as), strings.ToLower(bs)) >= threshold
	}

	al, aIsList := a.([]any)
	bl, bIsList := b.([]any)
	if aIsList && bIsList {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !valuesMatch(al[i], bl[i], threshold) {
				return false
			}
		}
		return true
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return valuesMatch(fmt.Sprint(a), fmt.Sprint(b), threshold)
	}

	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// BetterValue merges two values for the same claim and returns the one
// to keep. Real data beats placeholders: non-null over null, non-empty
// over empty, not-"unknown" over "unknown", non-empty list over empty
// list. Two objects merge field-wise with the richer one winning.
func BetterValue(newVal, existing any) any {
	if existing == nil || existing == "" {
		if newVal != nil && newVal != "" {
			return newVal
		}
		return existing
	}

	existingObj, existingIsObj := existing.(map[string]any)
	newObj, newIsObj := newVal.(map[string]any)
	if existingIsObj && newIsObj {
		return mergeObjects(newObj, existingObj)
	}

	existingStr, existingIsStr := existing.(string)
	newStr, newIsStr := newVal.(string)
	if existingIsStr && newIsStr {
		if strings.EqualFold(existingStr, "unknown") && !strings.EqualFold(newStr, "unknown") {
			return newVal
		}
		if existingStr == "" && newStr != "" {
			return newVal
		}
		return existing
	}

	existingList, existingIsList := existing.([]any)
	newList, newIsList := newVal.([]any)
	if existingIsList && newIsList {
		if len(existingList) == 0 && len(newList) > 0 {
			return newVal
		}
		return existing
	}

	return existing
}

// mergeObjects merges two object values field-wise. The object with
// more real entries supplies the base; real entries from the other
// side fill the gaps.
func mergeObjects(newObj, existingObj map[string]any) map[string]any {
	base, overlay := existingObj, newObj
	if countRealEntries(newObj) > countRealEntries(existingObj) {
		base, overlay = newObj, existingObj
	}

	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		if !isRealEntry(v) {
			continue
		}
		if cur, ok := merged[k]; !ok || !isRealEntry(cur) {
			merged[k] = v
		}
	}
	return merged
}

// countRealEntries counts values that carry actual data rather than a
// placeholder.
func countRealEntries(obj map[string]any) int {
	count := 0
	for _, v := range obj {
		if isRealEntry(v) {
			count++
		}
	}
	return count
}

func isRealEntry(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != "" && !strings.EqualFold(s, "unknown")
	}
	if l, ok := v.([]any); ok {
		return len(l) > 0
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
