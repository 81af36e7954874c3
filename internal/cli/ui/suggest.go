package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance bounds the edit distance of a suggestion
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions bounds the number of suggestions
	DefaultMaxSuggestions = 3
)

// Suggest returns up to limit candidates within maxDistance edits of target,
// closest first. Matching ignores case; ties keep candidate order.
func Suggest(target string, candidates []string, maxDistance, limit int) []string {
	type match struct {
		value    string
		distance int
	}

	want := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := EditDistance(want, strings.ToLower(c)); d <= maxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// EditDistance is the Levenshtein distance between a and b, counted in runes
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
