package graph

import (
	"math"
	"regexp"
	"strings"
)

// ContextScorer computes the optional graphContext component score: a
// keyword-overlap signal between the raw input name and the textual context
// already attached to a candidate entity (its synonyms' values, joined).
// Distinct from the pure-string similarity package, this draws on
// information already living in the graph around the candidate.
//
// Grounded on the teacher's SemanticMatcher (issue/PR title-body keyword
// overlap), generalized here from issue/PR text to entity-name/synonym
// text.
type ContextScorer struct {
	stopWords map[string]bool
}

// NewContextScorer builds a ContextScorer seeded with common English stop
// words.
func NewContextScorer() *ContextScorer {
	stopWords := map[string]bool{
		"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
		"be": true, "but": true, "by": true, "for": true, "if": true, "in": true,
		"into": true, "is": true, "it": true, "no": true, "not": true, "of": true,
		"on": true, "or": true, "such": true, "that": true, "the": true, "their": true,
		"then": true, "there": true, "these": true, "they": true, "this": true, "to": true,
		"was": true, "will": true, "with": true,
	}
	return &ContextScorer{stopWords: stopWords}
}

// Score returns the Jaccard overlap of the keyword sets extracted from
// rawName and the candidate's joined synonym values. Zero context yields
// 0.0 rather than an undefined score.
func (cs *ContextScorer) Score(rawName string, candidateSynonymValues []string) float64 {
	if len(candidateSynonymValues) == 0 {
		return 0.0
	}

	nameKeywords := cs.extractKeywords(rawName)
	contextKeywords := cs.extractKeywords(strings.Join(candidateSynonymValues, " "))

	if len(nameKeywords) == 0 || len(contextKeywords) == 0 {
		return 0.0
	}

	return jaccard(nameKeywords, contextKeywords)
}

var wordPattern = regexp.MustCompile(`\b[a-z0-9]+(?:[_-][a-z0-9]+)*\b`)

func (cs *ContextScorer) extractKeywords(text string) map[string]bool {
	text = strings.ToLower(text)
	words := wordPattern.FindAllString(text, -1)

	keywords := make(map[string]bool)
	for _, word := range words {
		if cs.stopWords[word] || len(word) < 2 {
			continue
		}
		if isNumeric(word) && !looksLikeVersion(word) {
			continue
		}
		keywords[word] = true
	}
	return keywords
}

func jaccard(set1, set2 map[string]bool) float64 {
	intersection := 0
	for keyword := range set1 {
		if set2[keyword] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func looksLikeVersion(s string) bool {
	versionRegex := regexp.MustCompile(`^v?\d+\.\d+`)
	return versionRegex.MatchString(s)
}

// cosineOverlap is kept available as an alternative scoring mode for
// implementers who want partial-match weighting rather than strict Jaccard.
func cosineOverlap(set1, set2 map[string]bool) float64 {
	intersection := 0
	for keyword := range set1 {
		if set2[keyword] {
			intersection++
		}
	}
	if intersection == 0 {
		return 0.0
	}
	denominator := math.Sqrt(float64(len(set1)) * float64(len(set2)))
	if denominator == 0 {
		return 0.0
	}
	return float64(intersection) / denominator
}
