package expect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/locator"
)

const list = `<html><body><ul class="todo-list">` +
	`<li class="completed"><input class="toggle" type="checkbox" checked><label>a</label></li>` +
	`<li><input class="toggle" type="checkbox"><label>b</label></li>` +
	`</ul><input class="new-todo" data-hx-focused="true" value=""><p hidden>x</p></body></html>`

func resolve(t *testing.T, sel string) dom.Set {
	t.Helper()
	s, err := locator.Find(dom.MustParse(list), sel)
	require.NoError(t, err)
	return s
}

func TestPredicates(t *testing.T) {
	lis := resolve(t, "li")
	none := resolve(t, ".missing")

	assert.True(t, Exist.Eval(lis))
	assert.False(t, Exist.Eval(none))
	assert.True(t, Not(Exist).Eval(none), "absence satisfies not.exist")
	assert.True(t, HaveLength(2).Eval(lis))
	assert.True(t, HaveLength(0).Eval(none))
	assert.True(t, HaveClass("completed").Eval(lis))
	assert.True(t, Contain("b").Eval(lis))
	assert.True(t, HaveText("ab").Eval(lis))
	assert.True(t, HaveText("").Eval(resolve(t, ".new-todo")))
	assert.True(t, BeFocused.Eval(resolve(t, ".new-todo")))
	assert.False(t, BeChecked.Eval(resolve(t, ".toggle")), "every element must be checked")
	assert.True(t, BeChecked.Eval(resolve(t, "li.completed .toggle")))
	assert.False(t, BeVisible.Eval(resolve(t, "p")))
	assert.True(t, Not(BeVisible).Eval(resolve(t, "p")))
}

func TestNot_RequiresSubject(t *testing.T) {
	none := resolve(t, ".missing")
	assert.False(t, Not(HaveClass("completed")).Eval(none))
	assert.False(t, Not(BeChecked).Eval(none))
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		arg  any
		want string
	}{
		{"exist", nil, "exist"},
		{"not.exist", nil, "not exist"},
		{"have.length", 3, "have length 3"},
		{"have.length", float64(2), "have length 2"},
		{"have.class", "completed", "have class completed"},
		{"not.have.class", "completed", "not have class completed"},
		{"contain", "cheese", `contain "cheese"`},
		{"have.text", "", `have text ""`},
		{"be.visible", nil, "be visible"},
		{"not.be.checked", nil, "not be checked"},
		{"be.focused", nil, "be focused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.name, tc.arg)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Name())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("be.purple", nil)
	assert.Error(t, err)

	_, err = Parse("have.length", "three")
	assert.Error(t, err)

	_, err = Parse("have.class", nil)
	assert.Error(t, err)
}

func TestUntil_ImmediateSuccess(t *testing.T) {
	var calls atomic.Int32
	res := func(ctx context.Context) (dom.Set, error) {
		calls.Add(1)
		return resolve(t, "li"), nil
	}

	set, err := Until(context.Background(), "li", res, HaveLength(2), Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, int32(1), calls.Load())
}

func TestUntil_EventualConsistency(t *testing.T) {
	ready := time.Now().Add(60 * time.Millisecond)
	res := func(ctx context.Context) (dom.Set, error) {
		if time.Now().Before(ready) {
			return resolve(t, ".missing"), nil
		}
		return resolve(t, "li"), nil
	}

	set, err := Until(context.Background(), "li", res, Exist, Options{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestUntil_Timeout(t *testing.T) {
	res := func(ctx context.Context) (dom.Set, error) {
		return resolve(t, "li"), nil
	}

	start := time.Now()
	_, err := Until(context.Background(), `get("li")`, res, HaveLength(3), Options{Timeout: 80 * time.Millisecond, Interval: 10 * time.Millisecond})
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, failure.CodeTimeout, fe.Code)
	assert.Equal(t, `get("li")`, fe.Selector)
	assert.Contains(t, fe.LastState, "2 element(s)")
	assert.GreaterOrEqual(t, fe.Elapsed, 80*time.Millisecond)
}

func TestUntil_ResolverErrorAborts(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("driver gone")
	res := func(ctx context.Context) (dom.Set, error) {
		calls.Add(1)
		return dom.Set{}, boom
	}

	_, err := Until(context.Background(), "x", res, Exist, Options{Timeout: time.Second})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := func(ctx context.Context) (dom.Set, error) {
		return resolve(t, ".missing"), nil
	}

	_, err := Until(ctx, "x", res, Exist, Options{Timeout: 5 * time.Second, Interval: 10 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
