package compiler

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/todocheck/internal/expect"
)

// Validation error codes (E100-E199)
const (
	// Tree errors (E100-E109)
	ErrNameEmpty     = "E101" // context or case name is required
	ErrDuplicateCase = "E102" // two cases with the same full name
	ErrNoSteps       = "E103" // case has no steps

	// Step errors (E110-E119)
	ErrStepDecode       = "E110" // unknown key or wrong value type
	ErrStepHead         = "E111" // zero or several head keys
	ErrStepModifier     = "E112" // element modifier on a browser step
	ErrUnknownAction    = "E113" // do names no command
	ErrTypeText         = "E114" // text missing for type, or given without it
	ErrUnknownAssertion = "E115" // should names no predicate, or a bad value
	ErrAliasName        = "E116" // as is empty or starts with @
	ErrPosition         = "E117" // conflicting eq / first / last
)

// ValidationError represents a suite validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a non-empty list returned by Compile.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(parts, "; "))
}

// Validate checks a suite tree. Returns all errors found (does not fail-fast).
func Validate(root ContextSpec) []ValidationError {
	v := &validator{seen: map[string]bool{}}
	v.context(root, "", nil)
	return v.errs
}

type validator struct {
	errs []ValidationError
	seen map[string]bool
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func (v *validator) context(c ContextSpec, field string, path []string) {
	if strings.TrimSpace(c.Name) == "" {
		v.add(join(field, "name"), ErrNameEmpty, "context name is required")
	}
	path = append(path[:len(path):len(path)], c.Name)

	for i, raw := range c.BeforeEach {
		v.steps(raw, fmt.Sprintf("%s[%d]", join(field, "before_each"), i))
	}
	for i, raw := range c.AfterEach {
		v.steps(raw, fmt.Sprintf("%s[%d]", join(field, "after_each"), i))
	}
	for i, cs := range c.Cases {
		f := fmt.Sprintf("%s[%d]", join(field, "cases"), i)
		if strings.TrimSpace(cs.Name) == "" {
			v.add(join(f, "name"), ErrNameEmpty, "case name is required")
		}
		full := strings.Join(append(path[:len(path):len(path)], cs.Name), " > ")
		if v.seen[full] {
			v.add(join(f, "name"), ErrDuplicateCase, "duplicate case %q", full)
		}
		v.seen[full] = true
		if len(cs.Steps) == 0 && !cs.Skip {
			v.add(join(f, "steps"), ErrNoSteps, "case %q has no steps", cs.Name)
		}
		for j, raw := range cs.Steps {
			v.steps(raw, fmt.Sprintf("%s[%d]", join(f, "steps"), j))
		}
	}
	for i, child := range c.Contexts {
		v.context(child, fmt.Sprintf("%s[%d]", join(field, "contexts"), i), path)
	}
}

func (v *validator) steps(raw RawStep, field string) {
	st, err := DecodeStep(raw)
	if err != nil {
		if ve, ok := err.(ValidationError); ok {
			ve.Field = join(field, ve.Field)
			v.errs = append(v.errs, ve)
			return
		}
		v.add(field, ErrStepDecode, "%v", err)
		return
	}
	for _, e := range checkStep(st) {
		e.Field = join(field, e.Field)
		v.errs = append(v.errs, e)
	}
	for i, inner := range st.Within {
		v.steps(inner, fmt.Sprintf("%s[%d]", join(field, "within"), i))
	}
}

// DecodeStep decodes one raw step. Unknown keys and wrongly typed values are
// errors, and exactly one head key must be present.
func DecodeStep(raw RawStep) (Step, error) {
	var present []string
	for _, h := range heads {
		if _, ok := raw[h]; ok {
			present = append(present, h)
		}
	}
	if len(present) != 1 {
		return Step{}, ValidationError{
			Field:   "",
			Code:    ErrStepHead,
			Message: fmt.Sprintf("step needs exactly one of %s, got %v", strings.Join(heads, ", "), present),
		}
	}

	var st Step
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		Result:           &st,
	})
	if err != nil {
		return Step{}, err
	}
	// Presence flags may be written as bare keys ("reload:" decodes to nil).
	normalised := make(RawStep, len(raw))
	for k, val := range raw {
		if val == nil {
			switch k {
			case HeadReload, HeadBack, HeadClearStorage, HeadBlurActive, HeadFocused, "first", "last":
				val = true
			case HeadAudit:
				val = []string{}
			}
		}
		normalised[k] = val
	}
	if err := dec.Decode(normalised); err != nil {
		return Step{}, ValidationError{Code: ErrStepDecode, Message: err.Error()}
	}
	st.head = present[0]
	return st, nil
}

func checkStep(st Step) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	switch st.head {
	case HeadVisit:
		if st.Visit == "" {
			add("visit", ErrStepHead, "visit needs a path")
		}
	case HeadGet:
		if strings.TrimSpace(st.Get) == "" || st.Get == "@" {
			add("get", ErrStepHead, "get needs a selector or @alias")
		}
	case HeadContains:
		if st.Contains == "" {
			add("contains", ErrStepHead, "contains needs text")
		}
	}

	if !isElementHead(st.head) {
		modifiers := []struct {
			key string
			set bool
		}{
			{"find", st.Find != ""}, {"filter", st.Filter != ""}, {"eq", st.Eq != nil},
			{"first", st.First}, {"last", st.Last}, {"as", st.As != ""},
			{"within", len(st.Within) > 0}, {"do", st.Do != ""}, {"text", st.Text != ""},
			{"should", len(st.Should) > 0},
		}
		for _, m := range modifiers {
			if m.set {
				add(m.key, ErrStepModifier, "%s applies only to get, focused and contains steps", m.key)
			}
		}
		return errs
	}

	n := 0
	for _, set := range []bool{st.Eq != nil, st.First, st.Last} {
		if set {
			n++
		}
	}
	if n > 1 {
		add("eq", ErrPosition, "use at most one of eq, first and last")
	}
	if st.FilterSelector != "" && st.Filter == "" {
		add("filter_selector", ErrStepModifier, "filter_selector needs filter")
	}
	if st.As != "" && (strings.HasPrefix(st.As, "@") || strings.TrimSpace(st.As) == "") {
		add("as", ErrAliasName, "alias %q must not start with @", st.As)
	}
	if st.Do != "" && !actions[st.Do] {
		add("do", ErrUnknownAction, "unknown action %q", st.Do)
	}
	if st.Do == "type" && st.Text == "" {
		add("text", ErrTypeText, "type needs text")
	}
	if st.Do != "type" && st.Text != "" {
		add("text", ErrTypeText, "text is only used with do: type")
	}
	for i, e := range st.Should {
		if _, err := expect.Parse(e.Assert, e.Value); err != nil {
			add(fmt.Sprintf("should[%d]", i), ErrUnknownAssertion, "%v", err)
		}
	}
	return errs
}
