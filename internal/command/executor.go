package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/failure"
)

// Result describes an applied command.
type Result struct {
	Command Command
	Target  string // description of the element acted on, empty for browser-level commands
	Elapsed time.Duration
}

// Executor applies commands through a driver.
type Executor struct {
	driver browser.Driver
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Executor) { x.logger = l }
}

// NewExecutor creates an executor over d.
func NewExecutor(d browser.Driver, opts ...Option) *Executor {
	x := &Executor{
		driver: d,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute applies cmd. Element-level commands act on the single element of
// target; subject names the target in diagnostics. Browser-level commands
// ignore target.
//
// Failures:
//   - empty target, or a target the page no longer contains: failure.CodeElementNotFound
//   - several elements, hidden or disabled element, wrong element type, or an
//     input the page rejects: failure.CodeElementNotInteractable
func (x *Executor) Execute(ctx context.Context, cmd Command, subject string, target dom.Set) (Result, error) {
	start := time.Now()
	res := Result{Command: cmd}

	if !cmd.Kind.ElementLevel() {
		if err := x.executeBrowser(ctx, cmd); err != nil {
			return res, err
		}
		res.Elapsed = time.Since(start)
		x.logger.Debug("command applied", "command", cmd.String(), "elapsed", res.Elapsed)
		return res, nil
	}

	el, err := x.single(cmd, subject, target)
	if err != nil {
		return res, err
	}
	res.Target = el.Describe()

	if err := x.driver.Interact(ctx, browser.TargetOf(el), cmd.input()); err != nil {
		switch {
		case errors.Is(err, browser.ErrStaleElement):
			fe := failure.ElementNotFound(subject, cmd.String())
			fe.Message = "element is detached from the page"
			fe.Err = err
			return res, fe
		case errors.Is(err, browser.ErrNotInteractable):
			fe := failure.ElementNotInteractable(subject, cmd.String(), "page rejected the input")
			fe.Err = err
			return res, fe
		}
		return res, fmt.Errorf("%s on %s: %w", cmd, subject, err)
	}

	res.Elapsed = time.Since(start)
	x.logger.Debug("command applied", "command", cmd.String(), "subject", subject, "target", res.Target)
	return res, nil
}

func (x *Executor) single(cmd Command, subject string, target dom.Set) (dom.Element, error) {
	name := cmd.String()
	switch {
	case target.Empty():
		return dom.Element{}, failure.ElementNotFound(subject, name)
	case target.Len() > 1:
		return dom.Element{}, failure.ElementNotInteractable(subject, name,
			fmt.Sprintf("command needs a single element but %d matched", target.Len()))
	}

	el := target.At(0)
	if cmd.Kind != KindBlur && !el.Visible() {
		return dom.Element{}, failure.ElementNotInteractable(subject, name, "element is not visible")
	}
	if cmd.Kind != KindBlur && el.Disabled() {
		return dom.Element{}, failure.ElementNotInteractable(subject, name, "element is disabled")
	}

	switch cmd.Kind {
	case KindCheck, KindUncheck:
		if !el.IsCheckbox() {
			return dom.Element{}, failure.ElementNotInteractable(subject, name,
				fmt.Sprintf("%s needs a checkbox or radio, got <%s>", cmd.Kind, el.Tag()))
		}
	case KindType, KindClear, KindPressKey:
		if !el.IsEditable() {
			return dom.Element{}, failure.ElementNotInteractable(subject, name,
				fmt.Sprintf("cannot type into <%s>", el.Tag()))
		}
	}
	return el, nil
}

func (x *Executor) executeBrowser(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Kind {
	case KindVisit:
		err = x.driver.Visit(ctx, cmd.Path)
	case KindNavigateBack:
		err = x.driver.Back(ctx)
	case KindReload:
		err = x.driver.Reload(ctx)
	case KindClearStorage:
		err = x.driver.ClearStorage(ctx)
	case KindBlurActive:
		err = x.driver.BlurActive(ctx)
	default:
		return fmt.Errorf("unknown browser command %q", cmd.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
