// Package dom models the document snapshot exposed by the system under test.
//
// A Document is an immutable parse of the serialized page at one moment. Live
// element state that plain HTML cannot carry (current input value, checked
// property, focus, computed visibility and colours) is transported in data-hx-*
// attributes that drivers stamp onto their snapshot before serializing it.
// Elements fall back to the equivalent static HTML attributes when no stamp is
// present, so hand-written fixtures work without them.
package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot attributes written by drivers.
const (
	AttrVisible    = "data-hx-visible"
	AttrChecked    = "data-hx-checked"
	AttrValue      = "data-hx-value"
	AttrFocused    = "data-hx-focused"
	AttrColor      = "data-hx-color"
	AttrBackground = "data-hx-bg"
)

// Document is one parsed snapshot of the page.
type Document struct {
	doc        *goquery.Document
	url        string
	generation uint64

	orderOnce sync.Once
	order     map[*html.Node]int
}

// Parse builds a Document from serialized HTML.
// Generation must increase every time the driver observes a change, so that
// handles from older snapshots can be recognised.
func Parse(src, url string, generation uint64) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc, url: url, generation: generation}, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(src string) *Document {
	d, err := Parse(src, "about:blank", 1)
	if err != nil {
		panic(err)
	}
	return d
}

// URL returns the page URL at snapshot time.
func (d *Document) URL() string { return d.url }

// Generation returns the snapshot generation.
func (d *Document) Generation() uint64 { return d.generation }

// Selection returns the goquery selection rooted at the document node.
func (d *Document) Selection() *goquery.Selection { return d.doc.Selection }

// Root returns the document element (<html>).
func (d *Document) Root() Element {
	for c := d.doc.Selection.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return Element{doc: d, node: c}
		}
	}
	return Element{}
}

// Active returns the focused element, if the snapshot marks one.
func (d *Document) Active() (Element, bool) {
	sel := d.doc.Find("[" + AttrFocused + `="true"]`)
	if sel.Length() == 0 {
		return Element{}, false
	}
	return Element{doc: d, node: sel.Nodes[0]}, true
}

// At returns the element at the given child-index path.
func (d *Document) At(p Path) (Element, bool) {
	root := d.Root()
	if root.node == nil {
		return Element{}, false
	}
	n := root.node
	for _, idx := range p {
		n = nthElementChild(n, idx)
		if n == nil {
			return Element{}, false
		}
	}
	return Element{doc: d, node: n}, true
}

// Wrap turns nodes that belong to this document into an ordered Set.
func (d *Document) Wrap(nodes []*html.Node) Set {
	return newSet(d, nodes)
}

// Element wraps a single node of this document.
func (d *Document) Element(n *html.Node) Element {
	return Element{doc: d, node: n}
}

// position returns the document-order index of n.
func (d *Document) position(n *html.Node) int {
	d.orderOnce.Do(func() {
		d.order = make(map[*html.Node]int)
		i := 0
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			d.order[n] = i
			i++
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(d.doc.Selection.Nodes[0])
	})
	if pos, ok := d.order[n]; ok {
		return pos
	}
	return -1
}

func nthElementChild(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}
