package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Path addresses an element by child-element indices from the document element.
type Path []int

// String renders the path as "0/2/1"; the document element is "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "/")
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, error) {
	if s == "/" || s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid path segment %q", part)
		}
		p[i] = idx
	}
	return p, nil
}

// Element is a handle to one node of one snapshot.
//
// Handles are never refreshed: once the page changes they describe the past.
// Drivers compare Path and Fingerprint against the live page before acting and
// report a stale handle when they no longer line up.
type Element struct {
	doc  *Document
	node *html.Node
}

// Valid reports whether the handle points at a node.
func (e Element) Valid() bool { return e.node != nil }

// Node returns the underlying html node.
func (e Element) Node() *html.Node { return e.node }

// Document returns the snapshot this handle belongs to.
func (e Element) Document() *Document { return e.doc }

// Generation returns the generation of the owning snapshot.
func (e Element) Generation() uint64 {
	if e.doc == nil {
		return 0
	}
	return e.doc.generation
}

// Tag returns the lower-case tag name.
func (e Element) Tag() string { return e.node.Data }

// Attr returns an attribute value.
func (e Element) Attr(name string) (string, bool) {
	return attr(e.node, name)
}

// HasClass reports whether the class attribute lists class.
func (e Element) HasClass(class string) bool {
	v, _ := attr(e.node, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Classes returns the class list.
func (e Element) Classes() []string {
	v, _ := attr(e.node, "class")
	return strings.Fields(v)
}

// Text returns the concatenated text content of the element.
func (e Element) Text() string {
	var b strings.Builder
	collectText(&b, e.node)
	return b.String()
}

// OwnText returns only the text of direct text-node children.
func (e Element) OwnText() string {
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Visible reports whether neither the element nor an ancestor is hidden.
func (e Element) Visible() bool {
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if hidden(n) {
			return false
		}
	}
	return true
}

// Checked reports the checked property of a checkbox or radio.
func (e Element) Checked() bool {
	if v, ok := attr(e.node, AttrChecked); ok {
		return v == "true"
	}
	_, ok := attr(e.node, "checked")
	return ok
}

// Value returns the current value of a form control.
func (e Element) Value() string {
	if v, ok := attr(e.node, AttrValue); ok {
		return v
	}
	if e.node.Data == "textarea" {
		return e.Text()
	}
	v, _ := attr(e.node, "value")
	return v
}

// Focused reports whether the element had focus at snapshot time.
func (e Element) Focused() bool {
	v, _ := attr(e.node, AttrFocused)
	return v == "true"
}

// Disabled reports whether the element carries the disabled attribute.
func (e Element) Disabled() bool {
	_, ok := attr(e.node, "disabled")
	return ok
}

// Color returns the declared foreground colour.
func (e Element) Color() string {
	v, _ := attr(e.node, AttrColor)
	return v
}

// Backgrounds returns the declared background colours of the element and its
// ancestors, innermost first. Translucent layers show the ones behind them.
func (e Element) Backgrounds() []string {
	var out []string
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if v, ok := attr(n, AttrBackground); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsCheckbox reports whether check/uncheck can apply.
func (e Element) IsCheckbox() bool {
	if e.node.Data != "input" {
		return false
	}
	t, _ := attr(e.node, "type")
	t = strings.ToLower(t)
	return t == "checkbox" || t == "radio"
}

// IsEditable reports whether text can be typed into the element.
func (e Element) IsEditable() bool {
	switch e.node.Data {
	case "textarea":
		return true
	case "input":
		t, _ := attr(e.node, "type")
		switch strings.ToLower(t) {
		case "checkbox", "radio", "button", "submit", "reset", "hidden", "image", "file":
			return false
		}
		return true
	}
	v, ok := attr(e.node, "contenteditable")
	return ok && v != "false"
}

// Path returns the child-index path from the document element.
func (e Element) Path() Path {
	var rev []int
	for n := e.node; n != nil && n.Parent != nil && n.Parent.Type == html.ElementNode; n = n.Parent {
		idx := 0
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		rev = append(rev, idx)
	}
	p := make(Path, len(rev))
	for i := range rev {
		p[i] = rev[len(rev)-1-i]
	}
	return p
}

// Fingerprint identifies the node across snapshots well enough to detect
// replacement: tag, id and data-id. An element without either is prefixed
// with its nearest ancestor that has one, e.g. "li[data-id=3] input".
func (e Element) Fingerprint() string {
	own := key(e.node)
	if own != e.node.Data {
		return own
	}
	for n := e.node.Parent; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if k := key(n); k != n.Data {
			return k + " " + own
		}
	}
	return own
}

func key(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	if id, ok := attr(n, "id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	if id, ok := attr(n, "data-id"); ok && id != "" {
		b.WriteString("[data-id=" + id + "]")
	}
	return b.String()
}

// Describe renders a short diagnostic form like <li.todo.completed "buy milk">.
func (e Element) Describe() string {
	if e.node == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("<" + e.node.Data)
	for _, c := range e.Classes() {
		b.WriteString("." + c)
	}
	if text := strings.TrimSpace(e.Text()); text != "" {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		fmt.Fprintf(&b, " %q", text)
	}
	b.WriteString(">")
	return b.String()
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func hidden(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "template", "title", "meta", "link":
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if v, ok := attr(n, AttrVisible); ok {
		return v == "false"
	}
	if style, ok := attr(n, "style"); ok {
		s := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
			return true
		}
	}
	if n.Data == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	return false
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
