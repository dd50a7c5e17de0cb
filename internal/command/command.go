// Package command applies user-intent actions to the page.
//
// The executor is one-shot: it validates the target, forwards one input to the
// driver and returns. It never waits for the page to settle; the next
// assertion does that.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/todocheck/internal/browser"
)

// Kind enumerates command kinds.
type Kind string

const (
	KindType         Kind = "type"
	KindPressKey     Kind = "pressKey"
	KindClick        Kind = "click"
	KindDblClick     Kind = "dblclick"
	KindCheck        Kind = "check"
	KindUncheck      Kind = "uncheck"
	KindClear        Kind = "clear"
	KindBlur         Kind = "blur"
	KindFocus        Kind = "focus"
	KindVisit        Kind = "visit"
	KindNavigateBack Kind = "navigateBack"
	KindReload       Kind = "reload"
	KindClearStorage Kind = "clearStorage"
	KindBlurActive   Kind = "blurActive"
)

// ElementLevel reports whether the kind needs a resolved target.
func (k Kind) ElementLevel() bool {
	switch k {
	case KindVisit, KindNavigateBack, KindReload, KindClearStorage, KindBlurActive:
		return false
	}
	return true
}

// Command is one user-intent action.
type Command struct {
	Kind Kind
	Text string      // type
	Key  browser.Key // pressKey
	Path string      // visit
}

// Constructors.
func Type(text string) Command          { return Command{Kind: KindType, Text: text} }
func PressKey(key browser.Key) Command { return Command{Kind: KindPressKey, Key: key} }
func Click() Command                   { return Command{Kind: KindClick} }
func DblClick() Command                { return Command{Kind: KindDblClick} }
func Check() Command                   { return Command{Kind: KindCheck} }
func Uncheck() Command                 { return Command{Kind: KindUncheck} }
func Clear() Command                   { return Command{Kind: KindClear} }
func Blur() Command                    { return Command{Kind: KindBlur} }
func Focus() Command                   { return Command{Kind: KindFocus} }
func Visit(path string) Command        { return Command{Kind: KindVisit, Path: path} }
func NavigateBack() Command            { return Command{Kind: KindNavigateBack} }
func Reload() Command                  { return Command{Kind: KindReload} }
func ClearStorage() Command            { return Command{Kind: KindClearStorage} }
func BlurActive() Command              { return Command{Kind: KindBlurActive} }

// String renders the command for traces and diagnostics.
func (c Command) String() string {
	switch c.Kind {
	case KindType:
		return fmt.Sprintf("type(%s)", strconv.Quote(c.Text))
	case KindPressKey:
		return fmt.Sprintf("pressKey(%s)", c.Key)
	case KindVisit:
		return fmt.Sprintf("visit(%s)", strconv.Quote(c.Path))
	}
	return string(c.Kind) + "()"
}

func (c Command) input() browser.Input {
	switch c.Kind {
	case KindType:
		return browser.Input{Kind: browser.InputType, Text: c.Text}
	case KindPressKey:
		return browser.Input{Kind: browser.InputKey, Key: c.Key}
	case KindClick:
		return browser.Input{Kind: browser.InputClick}
	case KindDblClick:
		return browser.Input{Kind: browser.InputDblClick}
	case KindCheck:
		return browser.Input{Kind: browser.InputCheck}
	case KindUncheck:
		return browser.Input{Kind: browser.InputUncheck}
	case KindClear:
		return browser.Input{Kind: browser.InputClear}
	case KindBlur:
		return browser.Input{Kind: browser.InputBlur}
	default:
		return browser.Input{Kind: browser.InputFocus}
	}
}

var specialKeys = map[string]browser.Key{
	"enter":     browser.KeyEnter,
	"esc":       browser.KeyEscape,
	"escape":    browser.KeyEscape,
	"backspace": browser.KeyBackspace,
}

// ParseKeys splits typed text into type and pressKey commands. Special keys are
// written in braces: "buy milk{enter}", "foo{esc}". "{{}" types a literal brace.
func ParseKeys(text string) ([]Command, error) {
	var cmds []Command
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			cmds = append(cmds, Type(buf.String()))
			buf.Reset()
		}
	}

	for i := 0; i < len(text); {
		if text[i] != '{' {
			buf.WriteByte(text[i])
			i++
			continue
		}
		end := strings.IndexByte(text[i+1:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated key sequence in %q", text)
		}
		name := text[i+1 : i+1+end]
		i += end + 2
		if name == "{" {
			buf.WriteByte('{')
			continue
		}
		key, ok := specialKeys[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unsupported key sequence {%s}", name)
		}
		flush()
		cmds = append(cmds, PressKey(key))
	}
	flush()
	return cmds, nil
}
