package engine

import "context"

// Func is a hook or case body. env is the per-case environment.
type Func[E any] func(ctx context.Context, env E) error

// Hook is a function run before or after every case in its Context subtree.
type Hook[E any] struct {
	Name string
	Fn   Func[E]
}

// Case is a named test case.
type Case[E any] struct {
	Name string
	Body Func[E]
	Skip bool
}

// Context is a named group of cases and nested Contexts sharing hooks.
type Context[E any] struct {
	Name       string
	BeforeEach []Hook[E]
	AfterEach  []Hook[E]
	Cases      []*Case[E]
	Children   []*Context[E]
}

// Describe creates a Context and lets build populate it.
//
//	root := engine.Describe("TodoMVC", func(c *engine.Context[*session.Session]) {
//		c.OnBeforeEach("visit", visit)
//		c.It("adds items", addItems)
//		c.Describe("Editing", func(c *engine.Context[*session.Session]) { ... })
//	})
func Describe[E any](name string, build func(c *Context[E])) *Context[E] {
	c := &Context[E]{Name: name}
	if build != nil {
		build(c)
	}
	return c
}

// Describe appends a nested Context.
func (c *Context[E]) Describe(name string, build func(c *Context[E])) *Context[E] {
	child := Describe(name, build)
	c.Children = append(c.Children, child)
	return child
}

// It appends a case.
func (c *Context[E]) It(name string, body Func[E]) {
	c.Cases = append(c.Cases, &Case[E]{Name: name, Body: body})
}

// Skip appends a case that is reported as skipped without running.
func (c *Context[E]) Skip(name string, body Func[E]) {
	c.Cases = append(c.Cases, &Case[E]{Name: name, Body: body, Skip: true})
}

// OnBeforeEach appends a beforeEach hook.
func (c *Context[E]) OnBeforeEach(name string, fn Func[E]) {
	c.BeforeEach = append(c.BeforeEach, Hook[E]{Name: name, Fn: fn})
}

// OnAfterEach appends an afterEach hook.
func (c *Context[E]) OnAfterEach(name string, fn Func[E]) {
	c.AfterEach = append(c.AfterEach, Hook[E]{Name: name, Fn: fn})
}

// CaseCount returns the number of cases in the subtree.
func (c *Context[E]) CaseCount() int {
	n := len(c.Cases)
	for _, child := range c.Children {
		n += child.CaseCount()
	}
	return n
}
