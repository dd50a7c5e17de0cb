// Package locator resolves declarative selectors against a document snapshot.
//
// Resolution is a pure read. Zero matches is a valid result and never an error;
// the only errors are malformed selectors. Results are always in document order.
package locator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/todocheck/internal/dom"
)

var (
	cacheMu  sync.Mutex
	compiled = map[string]cascadia.Selector{}
)

// Compile parses a CSS selector, caching the result.
func Compile(selector string) (cascadia.Selector, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if sel, ok := compiled[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	compiled[selector] = sel
	return sel, nil
}

// Find returns the elements matching selector below scope, in document order.
// Without a scope the whole document is searched.
func Find(doc *dom.Document, selector string, scope ...dom.Element) (dom.Set, error) {
	sel, err := Compile(selector)
	if err != nil {
		return dom.Set{}, err
	}
	if len(scope) == 0 {
		return doc.Wrap(doc.Selection().FindMatcher(sel).Nodes), nil
	}
	nodes := make([]*html.Node, 0, len(scope))
	for _, e := range scope {
		nodes = append(nodes, e.Node())
	}
	return doc.Wrap(doc.Selection().FindNodes(nodes...).FindMatcher(sel).Nodes), nil
}

// findWithin is Find over a set; an empty set yields an empty result rather
// than falling back to the document root.
func findWithin(doc *dom.Document, selector string, scope dom.Set) (dom.Set, error) {
	if scope.Empty() {
		if _, err := Compile(selector); err != nil {
			return dom.Set{}, err
		}
		return doc.Wrap(nil), nil
	}
	return Find(doc, selector, scope.Elements()...)
}

// Contains returns the first deepest element, the subject elements themselves
// included, whose text contains text. Whitespace is collapsed and both sides are
// NFC-normalised before comparison.
func Contains(subject dom.Set, text string) dom.Set {
	doc := subject.Document()
	if doc == nil {
		return dom.Set{}
	}
	needle := normalize(text)
	for _, e := range subject.Elements() {
		if n := deepestMatch(doc, e.Node(), needle); n != nil {
			return dom.Single(doc.Element(n))
		}
	}
	return doc.Wrap(nil)
}

func deepestMatch(doc *dom.Document, n *html.Node, needle string) *html.Node {
	if n.Type != html.ElementNode {
		return nil
	}
	switch n.Data {
	case "head", "script", "style", "template":
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := deepestMatch(doc, c, needle); m != nil {
			return m
		}
	}
	if strings.Contains(normalize(doc.Element(n).Text()), needle) {
		return n
	}
	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// ContainsMatching returns the first element matching selector, among the
// subject elements and their descendants, whose text contains text.
func ContainsMatching(subject dom.Set, selector, text string) (dom.Set, error) {
	doc := subject.Document()
	sel, err := Compile(selector)
	if err != nil {
		return dom.Set{}, err
	}
	if doc == nil {
		return dom.Set{}, nil
	}
	needle := normalize(text)
	var candidates []*html.Node
	for _, e := range subject.Elements() {
		if sel.Match(e.Node()) {
			candidates = append(candidates, e.Node())
		}
		candidates = append(candidates, sel.MatchAll(e.Node())...)
	}
	for _, e := range doc.Wrap(candidates).Elements() {
		if strings.Contains(normalize(e.Text()), needle) {
			return dom.Single(e), nil
		}
	}
	return doc.Wrap(nil), nil
}
