// Package failure defines the error taxonomy shared by every harness component.
//
// Every failure that can end a test case is a *Error carrying a Code plus the
// diagnostic context the run report needs: the selector or command involved,
// the last observed state and the elapsed time. Callers classify errors with
// Is and CodeOf, which see through wrapping.
package failure

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code categorizes harness failures.
type Code string

const (
	// CodeElementNotFound indicates a locator returned nothing where a target was required,
	// or a handle went stale before a command could use it.
	CodeElementNotFound Code = "ELEMENT_NOT_FOUND"

	// CodeElementNotInteractable indicates the target exists but the command cannot apply.
	CodeElementNotInteractable Code = "ELEMENT_NOT_INTERACTABLE"

	// CodeTimeout indicates a predicate never held within its budget.
	CodeTimeout Code = "TIMEOUT"

	// CodeAliasNotFound indicates recall of a name that was never remembered.
	CodeAliasNotFound Code = "ALIAS_NOT_FOUND"

	// CodeAccessibilityViolation indicates the audit collaborator reported a failing rule.
	CodeAccessibilityViolation Code = "ACCESSIBILITY_VIOLATION"

	// CodeHook indicates a beforeEach or afterEach hook failed.
	CodeHook Code = "HOOK_FAILED"
)

// Error is a coded harness failure.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Selector describes the subject (selector chain or alias) involved, if any.
	Selector string

	// Command names the command that failed, if any.
	Command string

	// Elapsed is the time spent before the failure was declared.
	Elapsed time.Duration

	// LastState is the last observed state of the subject, for diagnostics.
	LastState string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Command != "" {
		ctx = append(ctx, "command="+e.Command)
	}
	if e.Selector != "" {
		ctx = append(ctx, "subject="+e.Selector)
	}
	if e.Elapsed > 0 {
		ctx = append(ctx, "elapsed="+e.Elapsed.Round(time.Millisecond).String())
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.LastState != "" {
		fmt.Fprintf(&b, "\n  Last state: %s", e.LastState)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is (or wraps) a failure with the given code.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// CodeOf returns the failure code of err, or "" if err is not a harness failure.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// ElementNotFound creates a failure for a missing or stale target.
func ElementNotFound(selector, command string) *Error {
	return &Error{
		Code:     CodeElementNotFound,
		Message:  "no element matched the target",
		Selector: selector,
		Command:  command,
	}
}

// ElementNotInteractable creates a failure for a target the command cannot apply to.
func ElementNotInteractable(selector, command, reason string) *Error {
	return &Error{
		Code:     CodeElementNotInteractable,
		Message:  reason,
		Selector: selector,
		Command:  command,
	}
}

// Timeout creates a failure for a predicate that never held.
func Timeout(selector, predicate string, elapsed time.Duration, lastState string) *Error {
	return &Error{
		Code:      CodeTimeout,
		Message:   fmt.Sprintf("expected %s to %s", selector, predicate),
		Selector:  selector,
		Elapsed:   elapsed,
		LastState: lastState,
		Details: map[string]string{
			"predicate": predicate,
		},
	}
}

// AliasNotFound creates a failure for recall of an unset alias.
func AliasNotFound(name string) *Error {
	return &Error{
		Code:     CodeAliasNotFound,
		Message:  fmt.Sprintf("alias %q was never remembered in this test case", name),
		Selector: "@" + name,
	}
}

// AccessibilityViolation creates a failure listing failing audit rules.
func AccessibilityViolation(rules []string, summary string) *Error {
	return &Error{
		Code:      CodeAccessibilityViolation,
		Message:   fmt.Sprintf("%d accessibility rule(s) failed: %s", len(rules), strings.Join(rules, ", ")),
		LastState: summary,
		Details: map[string]string{
			"rules": strings.Join(rules, ","),
		},
	}
}

// Hook wraps a hook error so the report can tell setup from body failures.
func Hook(kind, context string, err error) *Error {
	return &Error{
		Code:    CodeHook,
		Message: fmt.Sprintf("%s hook in %q failed", kind, context),
		Err:     err,
	}
}
