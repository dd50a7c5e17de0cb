// Package alias holds the per-test-case table of named element references.
package alias

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/locator"
)

// Value is what an alias refers to: the query that located the elements and
// the set it last resolved to.
type Value struct {
	Query    locator.Query
	Resolved dom.Set
}

// Rebind finds the resolved elements in doc, a later snapshot. It reports
// false when any element is no longer at its path with the same fingerprint,
// or when nothing was resolved; the caller then re-runs Query.
func (v Value) Rebind(doc *dom.Document) (dom.Set, bool) {
	if v.Resolved.Empty() {
		return dom.Set{}, false
	}
	nodes := make([]*html.Node, 0, v.Resolved.Len())
	for _, old := range v.Resolved.Elements() {
		cur, ok := doc.At(old.Path())
		if !ok || cur.Fingerprint() != old.Fingerprint() {
			return dom.Set{}, false
		}
		nodes = append(nodes, cur.Node())
	}
	return doc.Wrap(nodes), true
}

// Registry maps alias names to values for the lifetime of one test case.
// Create one per case; Reset at case end.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Value
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Value)}
}

// Remember stores v under name. An existing entry is overwritten.
func (r *Registry) Remember(name string, v Value) {
	name = strings.TrimPrefix(name, "@")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = v
}

// Recall returns the value stored under name, or a failure.CodeAliasNotFound
// error when nothing was remembered.
func (r *Registry) Recall(name string) (Value, error) {
	name = strings.TrimPrefix(name, "@")
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	if !ok {
		return Value{}, failure.AliasNotFound(name)
	}
	return v, nil
}

// Names returns the remembered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Value)
}

// IsRef reports whether s is an alias reference ("@name").
func IsRef(s string) bool {
	return len(s) > 1 && s[0] == '@'
}
