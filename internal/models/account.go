// Package models holds the records exchanged between the resolution core,
// the repositories and the CSV layer.
package models

import "time"

// Account is one source-system identity record. Linked carries the
// correlated accounts of the same person from other sources; it is never
// persisted.
type Account struct {
	ID             string
	SourceID       string
	SourceName     string
	NativeIdentity string
	Name           string
	LookupKey      string
	Attributes     map[string]string
	Linked         []*Account
	CreatedAt      time.Time
}

// NewAccount returns an account with an initialised attribute map.
func NewAccount(id string, attrs map[string]string) *Account {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Account{ID: id, Attributes: attrs}
}

// Attr returns the named attribute or "".
func (a *Account) Attr(name string) string {
	if a == nil || a.Attributes == nil {
		return ""
	}
	return a.Attributes[name]
}

// SetAttr sets the named attribute, allocating the map when needed.
func (a *Account) SetAttr(name, value string) {
	if a.Attributes == nil {
		a.Attributes = make(map[string]string)
	}
	a.Attributes[name] = value
}

// Clone returns a deep copy of the account, linked accounts included.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Attributes = make(map[string]string, len(a.Attributes))
	for k, v := range a.Attributes {
		c.Attributes[k] = v
	}
	if a.Linked != nil {
		c.Linked = make([]*Account, len(a.Linked))
		for i, l := range a.Linked {
			c.Linked[i] = l.Clone()
		}
	}
	return &c
}
