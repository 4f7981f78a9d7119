// Package index holds the in-memory historical identifier indices: one map
// per identifier kind from lookup key to the identifier minted for it.
//
// An Index never shrinks and never reassigns a key. Lookups that may lead to
// minting run inside Do, which holds the index lock for the whole
// lookup-or-create sequence.
package index

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophid/internal/similarity"
)

type Kind string

const (
	Primary   Kind = "primary"
	Secondary Kind = "secondary"
)

type Index struct {
	kind Kind

	mu      sync.Mutex
	entries map[string]string
	keys    []string
	values  map[string]int
}

func New(kind Kind) *Index {
	return &Index{
		kind:    kind,
		entries: make(map[string]string),
		values:  make(map[string]int),
	}
}

func (ix *Index) Kind() Kind { return ix.kind }

// Do runs fn with exclusive access to the index.
func (ix *Index) Do(fn func(v *View) error) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return fn(&View{ix: ix})
}

// Lookup is a locked single-key read.
func (ix *Index) Lookup(key string) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	id, ok := ix.entries[key]
	return id, ok
}

func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.keys)
}

// Snapshot copies the current entries.
func (ix *Index) Snapshot() map[string]string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[string]string, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = v
	}
	return out
}

// View is the lock-holding handle passed to Do. It must not escape fn.
type View struct {
	ix *Index
}

func (v *View) Lookup(key string) (string, bool) {
	id, ok := v.ix.entries[key]
	return id, ok
}

// Has reports whether id is already assigned to any key.
func (v *View) Has(id string) bool {
	return v.ix.values[id] > 0
}

// Put registers key → id. Re-registering the same pair is a no-op; a key
// already bound to a different identifier is an error.
func (v *View) Put(key, id string) error {
	if prev, ok := v.ix.entries[key]; ok {
		if prev == id {
			return nil
		}
		return fmt.Errorf("%s index: key %q already resolves to %q", v.ix.kind, key, prev)
	}
	v.ix.entries[key] = id
	v.ix.keys = append(v.ix.keys, key)
	v.ix.values[id]++
	return nil
}

// WithPrefix returns the identifiers starting with prefix, in insertion order.
func (v *View) WithPrefix(prefix string) []string {
	var out []string
	for _, k := range v.ix.keys {
		if id := v.ix.entries[k]; strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}

// Match is the outcome of a fuzzy scan.
type Match struct {
	Key   string
	ID    string
	Score float64 // 0–100
}

// BestMatch scores key against every indexed key in insertion order and
// returns the best entry whose score is strictly above threshold (0–100).
// An entry replaces the current best only when strictly better, so the
// first entry wins ties.
func (v *View) BestMatch(scorer similarity.Scorer, key string, threshold float64) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, k := range v.ix.keys {
		s := Percent(scorer.Score(key, k))
		if s <= threshold {
			continue
		}
		if found && s <= best.Score {
			continue
		}
		best = Match{Key: k, ID: v.ix.entries[k], Score: s}
		found = true
	}
	return best, found
}

// Percent converts a [0,1] score to the 0–100 scale, rounded to 1e-9 so that
// binary floating-point noise cannot push an exact boundary over threshold.
func Percent(score float64) float64 {
	return math.Round(score*1e11) / 1e9
}
