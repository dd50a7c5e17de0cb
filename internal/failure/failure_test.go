package failure

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIs_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("step 3: %w", AliasNotFound("todos"))

	assert.True(t, Is(err, CodeAliasNotFound))
	assert.False(t, Is(err, CodeTimeout))
	assert.Equal(t, CodeAliasNotFound, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, Is(nil, CodeTimeout))
}

func TestError_MessageIncludesContext(t *testing.T) {
	err := Timeout(`get(".todo-list li")`, "have length 3", 4*time.Second, "2 element(s)")

	msg := err.Error()
	assert.Contains(t, msg, "TIMEOUT")
	assert.Contains(t, msg, `subject=get(".todo-list li")`)
	assert.Contains(t, msg, "elapsed=4s")
	assert.Contains(t, msg, "Last state: 2 element(s)")
	assert.Equal(t, "have length 3", err.Details["predicate"])
}

func TestElementNotInteractable_CarriesCommand(t *testing.T) {
	err := ElementNotInteractable(`get(".toggle")`, "check", "element is not visible")

	assert.Equal(t, CodeElementNotInteractable, err.Code)
	assert.Contains(t, err.Error(), "command=check")
	assert.Contains(t, err.Error(), "element is not visible")
}

func TestHook_Unwraps(t *testing.T) {
	cause := ElementNotFound(`get(".new-todo")`, "type")
	err := Hook("beforeEach", "New Todo", cause)

	assert.Equal(t, CodeHook, CodeOf(err))
	var fe *Error
	assert.True(t, errors.As(errors.Unwrap(err), &fe))
	assert.Equal(t, CodeElementNotFound, fe.Code)
}

func TestAccessibilityViolation_ListsRules(t *testing.T) {
	err := AccessibilityViolation([]string{"color-contrast"}, "label: 1.41:1")

	assert.Contains(t, err.Error(), "1 accessibility rule(s) failed: color-contrast")
	assert.Equal(t, "color-contrast", err.Details["rules"])
}
