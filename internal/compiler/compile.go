package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/expect"
	"github.com/roach88/todocheck/internal/session"
)

// Group is a compiled context tree.
type Group = engine.Context[*session.Session]

// Compile validates root and builds its runnable tree. All validation errors
// are returned together as ValidationErrors.
func Compile(root ContextSpec) (*Group, error) {
	if errs := Validate(root); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	var build func(g *Group, spec ContextSpec) error
	build = func(g *Group, spec ContextSpec) error {
		if len(spec.BeforeEach) > 0 {
			fn, err := program(spec.BeforeEach)
			if err != nil {
				return err
			}
			g.OnBeforeEach("before_each", fn)
		}
		if len(spec.AfterEach) > 0 {
			fn, err := teardown(spec.AfterEach)
			if err != nil {
				return err
			}
			g.OnAfterEach("after_each", fn)
		}
		for _, cs := range spec.Cases {
			fn, err := program(cs.Steps)
			if err != nil {
				return err
			}
			if cs.Skip {
				g.Skip(cs.Name, fn)
			} else {
				g.It(cs.Name, fn)
			}
		}
		for _, child := range spec.Contexts {
			var childErr error
			g.Describe(child.Name, func(c *Group) { childErr = build(c, child) })
			if childErr != nil {
				return childErr
			}
		}
		return nil
	}

	var err error
	g := engine.Describe(root.Name, func(c *Group) { err = build(c, root) })
	if err != nil {
		return nil, err
	}
	return g, nil
}

// step is a decoded step ready to run against a session.
type step struct {
	Step
	preds  []expect.Predicate
	within []step
}

func program(raw []RawStep) (engine.Func[*session.Session], error) {
	steps, err := decodeAll(raw)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, s *session.Session) error {
		for _, st := range steps {
			if s.Failed() {
				break
			}
			st.apply(s)
		}
		return s.Err()
	}, nil
}

// teardown is program for after_each steps: every step is attempted on its
// own teardown view and the failures are joined.
func teardown(raw []RawStep) (engine.Func[*session.Session], error) {
	steps, err := decodeAll(raw)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, s *session.Session) error {
		var errs []error
		for i, st := range steps {
			view := s.Teardown()
			st.apply(view)
			if err := view.Err(); err != nil {
				errs = append(errs, fmt.Errorf("step %d: %w", i, err))
			}
		}
		return errors.Join(errs...)
	}, nil
}

func decodeAll(raw []RawStep) ([]step, error) {
	out := make([]step, 0, len(raw))
	for i, r := range raw {
		st, err := DecodeStep(r)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		compiled := step{Step: st}
		for _, e := range st.Should {
			p, err := expect.Parse(e.Assert, e.Value)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			compiled.preds = append(compiled.preds, p)
		}
		if compiled.within, err = decodeAll(st.Within); err != nil {
			return nil, fmt.Errorf("step %d: within: %w", i, err)
		}
		out = append(out, compiled)
	}
	return out, nil
}

func (st step) apply(s *session.Session) {
	switch st.head {
	case HeadVisit:
		s.Visit(st.Visit)
		return
	case HeadReload:
		s.Reload()
		return
	case HeadBack:
		s.Back()
		return
	case HeadClearStorage:
		s.ClearStorage()
		return
	case HeadBlurActive:
		s.BlurActive()
		return
	case HeadAudit:
		s.CheckA11y(st.Audit...)
		return
	}

	var c *session.Chain
	switch st.head {
	case HeadGet:
		c = s.Get(st.Get)
	case HeadFocused:
		c = s.Focused()
	case HeadContains:
		c = s.Contains(st.Contains)
	}
	if st.Filter != "" {
		if st.FilterSelector != "" {
			c = c.ContainsMatching(st.FilterSelector, st.Filter)
		} else {
			c = c.Contains(st.Filter)
		}
	}
	switch {
	case st.Eq != nil:
		c = c.Eq(*st.Eq)
	case st.First:
		c = c.First()
	case st.Last:
		c = c.Last()
	}
	if st.Find != "" {
		c = c.Find(st.Find)
	}
	if st.As != "" {
		c = c.As(st.As)
	}
	if len(st.within) > 0 {
		c = c.Within(func(inner *session.Session) {
			for _, w := range st.within {
				if inner.Failed() {
					return
				}
				w.apply(inner)
			}
		})
	}
	switch st.Do {
	case "type":
		c = c.Type(st.Text)
	case "clear":
		c = c.Clear()
	case "click":
		c = c.Click()
	case "dblclick":
		c = c.DblClick()
	case "check":
		c = c.Check()
	case "uncheck":
		c = c.Uncheck()
	case "blur":
		c = c.Blur()
	case "focus":
		c = c.Focus()
	}
	if len(st.preds) > 0 {
		c.Should(st.preds...)
	}
}
