package dom

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Set is an ordered, duplicate-free collection of elements from one snapshot.
// The zero Set is empty and valid.
type Set struct {
	doc   *Document
	elems []Element
}

func newSet(doc *Document, nodes []*html.Node) Set {
	seen := make(map[*html.Node]bool, len(nodes))
	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.Type != html.ElementNode || seen[n] {
			continue
		}
		seen[n] = true
		elems = append(elems, Element{doc: doc, node: n})
	}
	sort.SliceStable(elems, func(i, j int) bool {
		return doc.position(elems[i].node) < doc.position(elems[j].node)
	})
	return Set{doc: doc, elems: elems}
}

// Single returns a one-element Set.
func Single(e Element) Set {
	if e.node == nil {
		return Set{doc: e.doc}
	}
	return Set{doc: e.doc, elems: []Element{e}}
}

// Document returns the snapshot the set was resolved against (nil for the zero Set).
func (s Set) Document() *Document { return s.doc }

// Len returns the number of elements.
func (s Set) Len() int { return len(s.elems) }

// Empty reports whether the set has no elements.
func (s Set) Empty() bool { return len(s.elems) == 0 }

// At returns the i-th element in document order.
func (s Set) At(i int) Element { return s.elems[i] }

// Elements returns a copy of the elements.
func (s Set) Elements() []Element {
	out := make([]Element, len(s.elems))
	copy(out, s.elems)
	return out
}

// Nodes returns the underlying nodes in document order.
func (s Set) Nodes() []*html.Node {
	out := make([]*html.Node, len(s.elems))
	for i, e := range s.elems {
		out[i] = e.node
	}
	return out
}

// Text returns the concatenated text of every element.
func (s Set) Text() string {
	var b strings.Builder
	for _, e := range s.elems {
		b.WriteString(e.Text())
	}
	return b.String()
}

// Describe summarises the set for diagnostics.
func (s Set) Describe() string {
	if len(s.elems) == 0 {
		return "no elements"
	}
	const max = 5
	parts := make([]string, 0, max)
	for i, e := range s.elems {
		if i == max {
			parts = append(parts, fmt.Sprintf("... %d more", len(s.elems)-max))
			break
		}
		parts = append(parts, e.Describe())
	}
	return fmt.Sprintf("%d element(s): %s", len(s.elems), strings.Join(parts, ", "))
}
