// Package matchkey derives identity attributes from an account and its
// linked source accounts using an ordered merging map, and builds the
// upper-cased search field used as the historical lookup key.
package matchkey

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophid/internal/models"
)

// MergeStrategy selects how values found on several source paths combine.
type MergeStrategy string

const (
	MergeMulti       MergeStrategy = "multi"
	MergeConcatenate MergeStrategy = "concatenate"
	MergeFirst       MergeStrategy = "first"
	MergeSource      MergeStrategy = "source"
)

// Valid reports whether s is a known strategy; "" counts as first.
func (s MergeStrategy) Valid() bool {
	switch s {
	case "", MergeMulti, MergeConcatenate, MergeFirst, MergeSource:
		return true
	}
	return false
}

// Entry derives one identity attribute from one or more source paths.
type Entry struct {
	SourceAttributePaths  []string      `json:"account" yaml:"account"`
	IdentityAttributeName string        `json:"identity" yaml:"identity"`
	MatchByIdentityOnly   bool          `json:"uidOnly" yaml:"uidOnly"`
	MergeStrategy         MergeStrategy `json:"attributeMerge,omitempty" yaml:"attributeMerge,omitempty"`
	SourceOverride        string        `json:"source,omitempty" yaml:"source,omitempty"`
	Weight                *float64      `json:"merging_score,omitempty" yaml:"merging_score,omitempty"`
}

// Validate checks the entry's own invariants.
func (e Entry) Validate() error {
	if e.IdentityAttributeName == "" {
		return fmt.Errorf("mapping entry has no identity attribute")
	}
	if len(e.SourceAttributePaths) == 0 && !e.MatchByIdentityOnly {
		return fmt.Errorf("mapping %q has no source attribute paths", e.IdentityAttributeName)
	}
	if !e.MergeStrategy.Valid() {
		return fmt.Errorf("mapping %q has unknown merge strategy %q", e.IdentityAttributeName, e.MergeStrategy)
	}
	if e.MergeStrategy == MergeSource && e.SourceOverride == "" {
		return fmt.Errorf("mapping %q uses source merge without a source", e.IdentityAttributeName)
	}
	return nil
}

// Table is an ordered merging map.
type Table []Entry

func (t Table) Validate() error {
	for _, e := range t {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithoutIdentityOnly returns a copy with MatchByIdentityOnly cleared on
// every entry, forcing source resolution.
func (t Table) WithoutIdentityOnly() Table {
	out := make(Table, len(t))
	copy(out, t)
	for i := range out {
		out[i].MatchByIdentityOnly = false
	}
	return out
}

// Value is a derived attribute value; multi-merged attributes hold several.
type Value []string

// String joins the parts with no separator.
func (v Value) String() string {
	return strings.Join(v, "")
}

// Attributes is the derived identity-attribute set. Order follows the first
// appearance of each identity attribute in the table.
type Attributes struct {
	names  []string
	values map[string]Value
}

// Get returns the string form of the named attribute.
func (a *Attributes) Get(name string) string {
	return a.values[name].String()
}

// Value returns the raw value of the named attribute.
func (a *Attributes) Value(name string) Value {
	return a.values[name]
}

// Names returns identity attribute names in table order.
func (a *Attributes) Names() []string {
	return append([]string(nil), a.names...)
}

// Map returns the string form of every attribute.
func (a *Attributes) Map() map[string]string {
	m := make(map[string]string, len(a.names))
	for _, n := range a.names {
		m[n] = a.values[n].String()
	}
	return m
}

// SearchField is the upper-cased concatenation of every derived value, in
// table order, with no delimiter. Distinct attribute combinations that
// concatenate to the same text collide; the historical index schema relies
// on this exact form.
func (a *Attributes) SearchField() string {
	var b strings.Builder
	for _, n := range a.names {
		b.WriteString(a.values[n].String())
	}
	return strings.ToUpper(b.String())
}

// LookupValue concatenates upper(derived[entry.identity]) for every entry of
// t, repeating attributes that appear more than once. It is the key under
// which a newly minted identifier is recorded.
func (a *Attributes) LookupValue(t Table) string {
	var b strings.Builder
	for _, e := range t {
		b.WriteString(strings.ToUpper(a.values[e.IdentityAttributeName].String()))
	}
	return b.String()
}

type tagged struct {
	value  string
	source string
}

// Build derives the identity attributes of account using table.
func Build(account *models.Account, table Table) *Attributes {
	attrs := &Attributes{values: make(map[string]Value, len(table))}

	records := make([]*models.Account, 0, 1+len(account.Linked))
	records = append(records, account)
	records = append(records, account.Linked...)

	for _, e := range table {
		var v Value
		if e.MatchByIdentityOnly {
			if s := account.Attr(e.IdentityAttributeName); s != "" {
				v = Value{s}
			}
		} else {
			v = merge(e, resolve(records, e.SourceAttributePaths))
		}

		if _, seen := attrs.values[e.IdentityAttributeName]; !seen {
			attrs.names = append(attrs.names, e.IdentityAttributeName)
		}
		attrs.values[e.IdentityAttributeName] = v
	}

	return attrs
}

// resolve walks path-major, record-minor and keeps values that are not blank.
func resolve(records []*models.Account, paths []string) []tagged {
	var out []tagged
	for _, p := range paths {
		for _, r := range records {
			if r == nil {
				continue
			}
			if s := r.Attr(p); strings.TrimSpace(s) != "" {
				out = append(out, tagged{value: s, source: r.SourceName})
			}
		}
	}
	return out
}

func merge(e Entry, found []tagged) Value {
	switch e.MergeStrategy {
	case MergeMulti:
		return distinct(found)
	case MergeConcatenate:
		d := distinct(found)
		if len(d) == 0 {
			return nil
		}
		return Value{d.String()}
	case MergeSource:
		for _, f := range found {
			if f.source == e.SourceOverride {
				return Value{f.value}
			}
		}
		return nil
	default:
		if len(found) == 0 {
			return nil
		}
		return Value{found[0].value}
	}
}

func distinct(found []tagged) Value {
	seen := make(map[string]struct{}, len(found))
	var out Value
	for _, f := range found {
		if _, ok := seen[f.value]; ok {
			continue
		}
		seen[f.value] = struct{}{}
		out = append(out, f.value)
	}
	return out
}
