package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/todocheck/internal/dom"
)

type opKind int

const (
	opGet opKind = iota
	opFind
	opEq
	opFirst
	opLast
	opContains
	opContainsMatching
	opFocused
	opRoot
)

type op struct {
	kind     opKind
	selector string
	text     string
	index    int
}

// Query is an immutable chain of locator operations. It is the unit the harness
// re-resolves on every poll and before every command, so element handles never
// outlive the snapshot they came from.
type Query struct {
	ops   []op
	alias string
	base  int // number of ops covered by alias
}

// Get starts a query that searches the whole document.
func Get(selector string) Query {
	return Query{ops: []op{{kind: opGet, selector: selector}}}
}

// Focused starts a query yielding the focused element.
func Focused() Query {
	return Query{ops: []op{{kind: opFocused}}}
}

// ContainsText starts a query yielding the first deepest element containing text.
func ContainsText(text string) Query {
	return Query{ops: []op{{kind: opRoot}, {kind: opContains, text: text}}}
}

func (q Query) with(o op) Query {
	ops := make([]op, len(q.ops), len(q.ops)+1)
	copy(ops, q.ops)
	return Query{ops: append(ops, o), alias: q.alias, base: q.base}
}

// Find narrows to descendants matching selector.
func (q Query) Find(selector string) Query { return q.with(op{kind: opFind, selector: selector}) }

// Eq keeps the element at index; negative indexes count from the end.
func (q Query) Eq(index int) Query { return q.with(op{kind: opEq, index: index}) }

// First keeps the first element.
func (q Query) First() Query { return q.with(op{kind: opFirst}) }

// Last keeps the last element.
func (q Query) Last() Query { return q.with(op{kind: opLast}) }

// Contains narrows to the first deepest element containing text.
func (q Query) Contains(text string) Query { return q.with(op{kind: opContains, text: text}) }

// ContainsMatching narrows to the first element matching selector that contains text.
func (q Query) ContainsMatching(selector, text string) Query {
	return q.with(op{kind: opContainsMatching, selector: selector, text: text})
}

// Named marks the query as recalled from alias name. Operations chained after
// Named can be resolved from the alias's own elements with ResolveFrom.
func (q Query) Named(name string) Query {
	return Query{ops: q.ops, alias: name, base: len(q.ops)}
}

// Alias returns the alias the query starts from, or "".
func (q Query) Alias() string { return q.alias }

// Plain drops the alias marker, keeping every operation.
func (q Query) Plain() Query { return Query{ops: q.ops} }

// ResolveFrom applies the operations chained after the alias to base.
// For a query without an alias it is Resolve.
func (q Query) ResolveFrom(doc *dom.Document, base dom.Set) (dom.Set, error) {
	if q.alias == "" {
		return q.Resolve(doc)
	}
	return apply(doc, base, q.ops[q.base:])
}

// IsZero reports whether the query has no operations.
func (q Query) IsZero() bool { return len(q.ops) == 0 }

// Resolve evaluates the query against doc.
func (q Query) Resolve(doc *dom.Document) (dom.Set, error) {
	if len(q.ops) == 0 {
		return dom.Set{}, errors.New("empty query")
	}
	return apply(doc, doc.Wrap(nil), q.ops)
}

func apply(doc *dom.Document, cur dom.Set, ops []op) (dom.Set, error) {
	var err error
	for _, o := range ops {
		switch o.kind {
		case opGet:
			cur, err = Find(doc, o.selector)
		case opFind:
			cur, err = findWithin(doc, o.selector, cur)
		case opEq:
			cur = eq(cur, o.index)
		case opFirst:
			cur = eq(cur, 0)
		case opLast:
			cur = eq(cur, -1)
		case opContains:
			cur = Contains(cur, o.text)
		case opContainsMatching:
			cur, err = ContainsMatching(cur, o.selector, o.text)
		case opRoot:
			cur = dom.Single(doc.Root())
		case opFocused:
			if el, ok := doc.Active(); ok {
				cur = dom.Single(el)
			} else {
				cur = doc.Wrap(nil)
			}
		}
		if err != nil {
			return dom.Set{}, err
		}
	}
	return cur, nil
}

func eq(s dom.Set, index int) dom.Set {
	if index < 0 {
		index += s.Len()
	}
	if index < 0 || index >= s.Len() {
		return s.Document().Wrap(nil)
	}
	return dom.Single(s.At(index))
}

// String renders the chain, e.g. get(".todo-list li").eq(1).find(".toggle").
func (q Query) String() string {
	var parts []string
	ops := q.ops
	if q.alias != "" {
		parts = append(parts, "@"+q.alias)
		ops = ops[q.base:]
	}
	for _, o := range ops {
		if o.kind == opRoot {
			continue
		}
		parts = append(parts, o.String())
	}
	return strings.Join(parts, ".")
}

func (o op) String() string {
	switch o.kind {
	case opGet:
		return fmt.Sprintf("get(%s)", strconv.Quote(o.selector))
	case opFind:
		return fmt.Sprintf("find(%s)", strconv.Quote(o.selector))
	case opEq:
		return fmt.Sprintf("eq(%d)", o.index)
	case opFirst:
		return "first()"
	case opLast:
		return "last()"
	case opContains:
		return fmt.Sprintf("contains(%s)", strconv.Quote(o.text))
	case opContainsMatching:
		return fmt.Sprintf("contains(%s, %s)", strconv.Quote(o.selector), strconv.Quote(o.text))
	case opFocused:
		return "focused()"
	}
	return "?"
}
