// Package browser defines the port between the harness and the page it drives.
//
// A Driver exposes the rendered document as a dom.Document snapshot and
// accepts user-level input. Two adapters exist: browser/chrome drives a real
// Chrome over the DevTools protocol, and todoapp runs an in-process TodoMVC
// page for offline runs and tests.
package browser

import (
	"context"
	"errors"

	"github.com/roach88/todocheck/internal/dom"
)

// Driver errors. The command executor maps these onto the failure taxonomy.
var (
	// ErrStaleElement means the target no longer matches the live page.
	ErrStaleElement = errors.New("element is detached from the page")

	// ErrNotInteractable means the page refused the input for the target.
	ErrNotInteractable = errors.New("element cannot receive this input")

	// ErrNoHistory means navigateBack was issued at the first history entry.
	ErrNoHistory = errors.New("no previous history entry")
)

// InputKind enumerates element-level inputs.
type InputKind string

const (
	InputType     InputKind = "type"
	InputKey      InputKind = "key"
	InputClick    InputKind = "click"
	InputDblClick InputKind = "dblclick"
	InputCheck    InputKind = "check"
	InputUncheck  InputKind = "uncheck"
	InputClear    InputKind = "clear"
	InputBlur     InputKind = "blur"
	InputFocus    InputKind = "focus"
)

// Key names a special key.
type Key string

const (
	KeyEnter     Key = "Enter"
	KeyEscape    Key = "Escape"
	KeyBackspace Key = "Backspace"
)

// Input is one element-level user action.
type Input struct {
	Kind InputKind
	Text string // InputType
	Key  Key    // InputKey
}

// Target identifies an element of a previous snapshot on the live page.
type Target struct {
	Path        dom.Path
	Fingerprint string
}

// TargetOf builds the Target for a handle.
func TargetOf(e dom.Element) Target {
	return Target{Path: e.Path(), Fingerprint: e.Fingerprint()}
}

// Driver is the system-under-test port.
type Driver interface {
	// Snapshot returns the current document.
	Snapshot(ctx context.Context) (*dom.Document, error)

	// Interact applies one input to the element at target. It returns
	// ErrStaleElement when target no longer matches the page.
	Interact(ctx context.Context, target Target, in Input) error

	// Visit loads path relative to the application root, resetting history.
	Visit(ctx context.Context, path string) error

	// Back navigates one history entry back.
	Back(ctx context.Context) error

	// Reload reloads the current URL.
	Reload(ctx context.Context) error

	// ClearStorage wipes the application's persisted state.
	ClearStorage(ctx context.Context) error

	// BlurActive removes focus from whatever element holds it.
	BlurActive(ctx context.Context) error

	// Close releases driver resources.
	Close() error
}
