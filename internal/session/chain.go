package session

import (
	"fmt"
	"strings"

	"github.com/roach88/todocheck/internal/alias"
	"github.com/roach88/todocheck/internal/command"
	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/expect"
	"github.com/roach88/todocheck/internal/locator"
)

// Chain is a lazily resolved subject. Traversal methods return new chains;
// action and assertion methods run immediately against a fresh resolution and
// return the same chain, so steps can be strung together.
type Chain struct {
	s *Session
	q locator.Query
}

// Query returns the chain's query.
func (c *Chain) Query() locator.Query { return c.q }

// String renders the chain for diagnostics.
func (c *Chain) String() string { return c.q.String() }

func (c *Chain) with(q locator.Query) *Chain {
	if c.q.IsZero() {
		return c
	}
	return &Chain{s: c.s, q: q}
}

// Find narrows to descendants matching selector.
func (c *Chain) Find(selector string) *Chain { return c.with(c.q.Find(selector)) }

// Eq narrows to the element at index; negative indexes count from the end.
func (c *Chain) Eq(index int) *Chain { return c.with(c.q.Eq(index)) }

// First narrows to the first element.
func (c *Chain) First() *Chain { return c.with(c.q.First()) }

// Last narrows to the last element.
func (c *Chain) Last() *Chain { return c.with(c.q.Last()) }

// Contains narrows to the first deepest element containing text.
func (c *Chain) Contains(text string) *Chain { return c.with(c.q.Contains(text)) }

// ContainsMatching narrows to the first element matching selector that contains text.
func (c *Chain) ContainsMatching(selector, text string) *Chain {
	return c.with(c.q.ContainsMatching(selector, text))
}

// As remembers the chain under name along with the elements it resolves to
// now. Recalling the alias yields those elements while they stay attached and
// re-runs the query once they do not.
func (c *Chain) As(name string) *Chain {
	s := c.s
	if s.Failed() {
		return c
	}
	name = strings.TrimPrefix(name, "@")
	// An alias that cannot be resolved now keeps only its query and is
	// resolved again on recall.
	v := alias.Value{Query: c.q.Plain()}
	doc, err := s.driver.Snapshot(s.ctx)
	if err == nil {
		var set dom.Set
		if set, err = s.resolve(doc, c.q); err == nil {
			v.Resolved = set
		}
	}
	s.aliases.Remember(name, v)
	s.record(StepAlias, c.q.String(), "as @"+name, err)
	return c
}

// Should waits for every predicate in turn.
func (c *Chain) Should(preds ...expect.Predicate) *Chain {
	s := c.s
	for _, p := range preds {
		if s.Failed() {
			return c
		}
		_, err := expect.Until(s.ctx, c.q.String(), s.resolver(c.q), p, s.wait)
		s.record(StepAssert, c.q.String(), p.Name(), err)
		if err != nil {
			s.fail(err)
		}
	}
	return c
}

// Resolve returns the chain's current elements without waiting.
func (c *Chain) Resolve() (dom.Set, error) {
	doc, err := c.s.driver.Snapshot(c.s.ctx)
	if err != nil {
		return dom.Set{}, err
	}
	return c.s.resolve(doc, c.q)
}

// Within runs fn with Get and Contains scoped below this chain's subject.
func (c *Chain) Within(fn func(s *Session)) *Chain {
	s := c.s
	if s.Failed() {
		return c
	}
	if _, err := expect.Until(s.ctx, c.q.String(), s.resolver(c.q), expect.Exist, s.wait); err != nil {
		s.record(StepAssert, c.q.String(), expect.Exist.Name(), err)
		s.fail(err)
		return c
	}
	scoped := *s
	q := c.q
	scoped.scope = &q
	fn(&scoped)
	return c
}

func (c *Chain) act(cmd command.Command) *Chain {
	s := c.s
	if s.Failed() {
		return c
	}
	set, err := s.actionable(c.q, cmd)
	if err == nil {
		_, err = s.exec.Execute(s.ctx, cmd, c.q.String(), set)
	}
	s.record(StepCommand, c.q.String(), cmd.String(), err)
	if err != nil {
		s.fail(err)
	}
	return c
}

// Type types text into the subject. Special keys go in braces: "{enter}",
// "{esc}", "{backspace}"; "{{}" types a literal brace.
func (c *Chain) Type(text string) *Chain {
	if c.s.Failed() {
		return c
	}
	cmds, err := command.ParseKeys(text)
	if err != nil {
		c.s.fail(fmt.Errorf("type(%q): %w", text, err))
		return c
	}
	for _, cmd := range cmds {
		c.act(cmd)
	}
	return c
}

// Clear empties the subject's value.
func (c *Chain) Clear() *Chain { return c.act(command.Clear()) }

// Click clicks the subject.
func (c *Chain) Click() *Chain { return c.act(command.Click()) }

// DblClick double-clicks the subject.
func (c *Chain) DblClick() *Chain { return c.act(command.DblClick()) }

// Check checks the subject checkbox.
func (c *Chain) Check() *Chain { return c.act(command.Check()) }

// Uncheck unchecks the subject checkbox.
func (c *Chain) Uncheck() *Chain { return c.act(command.Uncheck()) }

// Blur removes focus from the subject.
func (c *Chain) Blur() *Chain { return c.act(command.Blur()) }

// Focus focuses the subject.
func (c *Chain) Focus() *Chain { return c.act(command.Focus()) }
