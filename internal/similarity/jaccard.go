package similarity

import "strings"

// JaccardSimilarity splits both strings on whitespace and returns
// |A∩B| / |A∪B|. Two empty token sets score 0.0.
//
// Grounded on the token-set-overlap shape of the teacher's
// semantic_matcher.go jaccardSimilarity, but operates on plain whitespace
// tokens rather than stemmed, stop-word-filtered keywords — the component
// score here must be a pure function of the already-normalized string.
func JaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	union := len(setA)
	for tok := range setB {
		if !setA[tok] {
			union++
		}
	}

	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
