// Package similarity scores how alike two already-normalized strings are.
//
// Every Scorer is symmetric, returns values in [0,1], scores identical
// non-empty strings 1 and scores two empty strings 0 so that empty keys never
// match each other.
package similarity

import (
	"fmt"
	"strings"
)

type Scorer interface {
	Score(a, b string) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(a, b string) float64

func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }

const (
	NameTrigram     = "trigram"
	NameLevenshtein = "levenshtein"
)

// Default is the character-trigram Dice scorer.
var Default Scorer = Trigram{}

// ByName returns the scorer registered under name; "" selects Default.
func ByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameTrigram:
		return Trigram{}, nil
	case NameLevenshtein:
		return Levenshtein{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity scorer %q", name)
	}
}

// Trigram computes the Dice coefficient over character-trigram multisets:
//
//	2·|shared| / (|trigrams(a)| + |trigrams(b)|)
//
// Comparison is case-sensitive. Strings shorter than three characters count
// as a single gram.
type Trigram struct{}

func (Trigram) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ga := trigrams(a)
	gb := trigrams(b)

	counts := make(map[string]int, len(ga))
	for _, g := range ga {
		counts[g]++
	}
	shared := 0
	for _, g := range gb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ga)+len(gb))
}

func trigrams(s string) []string {
	r := []rune(s)
	if len(r) < 3 {
		return []string{s}
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

// Levenshtein scores 1 - distance/max(len(a), len(b)) over runes.
type Levenshtein struct{}

func (Levenshtein) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ar, br := []rune(a), []rune(b)
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}

	return 1 - float64(distance(ar, br))/float64(maxLen)
}

// distance keeps two rows, iterating the shorter string in the inner loop.
func distance(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}
