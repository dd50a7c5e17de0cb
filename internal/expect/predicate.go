// Package expect is the retrying assertion engine.
//
// A Predicate is evaluated against a freshly resolved element set. Until keeps
// re-resolving and re-evaluating on a polling interval until the predicate
// holds or the timeout elapses, because the page reacts to commands
// asynchronously.
package expect

import (
	"fmt"
	"strings"

	"github.com/roach88/todocheck/internal/dom"
)

// Predicate is a named condition over an element set.
type Predicate struct {
	name string

	// existence predicates are the only ones that may hold on an empty set.
	existence bool

	eval func(dom.Set) bool
}

// Name returns the human-readable form, e.g. "have class completed".
func (p Predicate) Name() string { return p.name }

// Eval reports whether the predicate holds for s.
func (p Predicate) Eval(s dom.Set) bool {
	if !p.existence && s.Empty() {
		return false
	}
	return p.eval(s)
}

// Not negates p. Negations of subject predicates still require a subject:
// not.have.class on a missing element fails rather than passing vacuously.
// Negated existence is satisfied by absence.
func Not(p Predicate) Predicate {
	return Predicate{
		name:      "not " + p.name,
		existence: p.existence,
		eval:      func(s dom.Set) bool { return !p.eval(s) },
	}
}

// Exist holds when at least one element matched.
var Exist = Predicate{
	name:      "exist",
	existence: true,
	eval:      func(s dom.Set) bool { return !s.Empty() },
}

// HaveLength holds when exactly n elements matched.
func HaveLength(n int) Predicate {
	return Predicate{
		name:      fmt.Sprintf("have length %d", n),
		existence: true,
		eval:      func(s dom.Set) bool { return s.Len() == n },
	}
}

// HaveClass holds when any element carries class.
func HaveClass(class string) Predicate {
	return Predicate{
		name: "have class " + class,
		eval: func(s dom.Set) bool {
			for _, e := range s.Elements() {
				if e.HasClass(class) {
					return true
				}
			}
			return false
		},
	}
}

// Contain holds when any element's text contains text.
func Contain(text string) Predicate {
	return Predicate{
		name: fmt.Sprintf("contain %q", text),
		eval: func(s dom.Set) bool {
			for _, e := range s.Elements() {
				if strings.Contains(e.Text(), text) {
					return true
				}
			}
			return false
		},
	}
}

// HaveText holds when the combined text equals text exactly.
func HaveText(text string) Predicate {
	return Predicate{
		name: fmt.Sprintf("have text %q", text),
		eval: func(s dom.Set) bool { return s.Text() == text },
	}
}

// HaveValue holds when the first element's value equals value.
func HaveValue(value string) Predicate {
	return Predicate{
		name: fmt.Sprintf("have value %q", value),
		eval: func(s dom.Set) bool { return s.At(0).Value() == value },
	}
}

// BeVisible holds when every element is visible.
var BeVisible = Predicate{
	name: "be visible",
	eval: func(s dom.Set) bool {
		for _, e := range s.Elements() {
			if !e.Visible() {
				return false
			}
		}
		return true
	},
}

// BeChecked holds when every element is checked.
var BeChecked = Predicate{
	name: "be checked",
	eval: func(s dom.Set) bool {
		for _, e := range s.Elements() {
			if !e.Checked() {
				return false
			}
		}
		return true
	},
}

// BeFocused holds when the first element has focus.
var BeFocused = Predicate{
	name: "be focused",
	eval: func(s dom.Set) bool { return s.At(0).Focused() },
}

// Parse maps Chai-style assertion names onto predicates:
// exist, have.length, have.class, contain, have.text, have.value,
// be.visible, be.checked, be.focused, each optionally prefixed with "not.".
func Parse(name string, arg any) (Predicate, error) {
	negate := false
	base := name
	if strings.HasPrefix(base, "not.") {
		negate = true
		base = strings.TrimPrefix(base, "not.")
	}

	var p Predicate
	switch base {
	case "exist":
		p = Exist
	case "have.length":
		n, ok := toInt(arg)
		if !ok {
			return Predicate{}, fmt.Errorf("%s: expected an integer argument, got %v", name, arg)
		}
		p = HaveLength(n)
	case "have.class", "contain", "have.text", "have.value":
		s, ok := toString(arg)
		if !ok {
			return Predicate{}, fmt.Errorf("%s: expected a string argument, got %v", name, arg)
		}
		switch base {
		case "have.class":
			p = HaveClass(s)
		case "contain":
			p = Contain(s)
		case "have.text":
			p = HaveText(s)
		default:
			p = HaveValue(s)
		}
	case "be.visible":
		p = BeVisible
	case "be.checked":
		p = BeChecked
	case "be.focused":
		p = BeFocused
	default:
		return Predicate{}, fmt.Errorf("unknown assertion %q", name)
	}

	if negate {
		return Not(p), nil
	}
	return p, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", false
	case int, int64, float64, bool:
		return fmt.Sprint(s), true
	}
	return "", false
}
