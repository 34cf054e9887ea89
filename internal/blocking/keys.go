// Package blocking generates deterministic blocking keys from a normalized
// string and indexes entities by the keys they produce, keeping fuzzy
// matching sub-linear in the number of active entities.
package blocking

import (
	"sort"
	"strings"
)

// Strategy generates the set of blocking keys for a normalized string.
// Pluggable: implementations other than DefaultStrategy may be supplied.
type Strategy interface {
	Keys(normalized string) []string
}

// DefaultStrategy produces three key families: a prefix key, a single
// sorted-tokens key, and bigram keys over prominent tokens.
type DefaultStrategy struct{}

// Keys implements Strategy.
func (DefaultStrategy) Keys(normalized string) []string {
	var keys []string

	if len(normalized) >= 3 {
		keys = append(keys, "pfx:"+normalized[:3])
	}

	tokens := strings.Fields(normalized)
	if len(tokens) > 0 {
		sorted := make([]string, len(tokens))
		copy(sorted, tokens)
		sort.Strings(sorted)
		keys = append(keys, "tok:"+strings.Join(sorted, " "))
	}

	keys = append(keys, bigramKeys(tokens)...)

	return dedupe(keys)
}

// bigramKeys produces a "first bigram" key plus bigram keys for every
// prominent (length >= 4) token, giving resilience to token reordering and
// minor internal typos.
func bigramKeys(tokens []string) []string {
	var keys []string
	if len(tokens) > 0 {
		if bg := firstBigram(tokens[0]); bg != "" {
			keys = append(keys, "bg:"+bg)
		}
	}
	for _, tok := range tokens {
		if len(tok) < 4 {
			continue
		}
		if bg := firstBigram(tok); bg != "" {
			keys = append(keys, "bg:"+bg)
		}
	}
	return keys
}

func firstBigram(token string) string {
	runes := []rune(token)
	if len(runes) < 2 {
		return ""
	}
	return string(runes[:2])
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
