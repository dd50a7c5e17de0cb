// Package a11y audits a document snapshot against accessibility rules.
//
// Rules are selected by ID or tag, the way axe-core's runOnly option selects
// them ("color-contrast" or "cat.color"). Any violation fails the audit.
package a11y

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/failure"
)

// Impact grades a violation.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
)

// NodeResult is one offending element.
type NodeResult struct {
	Target  string // child-index path
	Element string // short description
	Summary string
}

// Violation is a failing rule with its offending nodes.
type Violation struct {
	RuleID string
	Impact Impact
	Help   string
	Tags   []string
	Nodes  []NodeResult
}

// Result is the outcome of one audit.
type Result struct {
	RulesRun   []string
	Violations []Violation
}

// Passed reports whether no rule failed.
func (r Result) Passed() bool { return len(r.Violations) == 0 }

// Err returns a failure.CodeAccessibilityViolation error, or nil when the audit passed.
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	ids := make([]string, len(r.Violations))
	var lines []string
	for i, v := range r.Violations {
		ids[i] = v.RuleID
		for _, n := range v.Nodes {
			lines = append(lines, fmt.Sprintf("%s %s: %s", v.RuleID, n.Element, n.Summary))
		}
	}
	return failure.AccessibilityViolation(ids, strings.Join(lines, "; "))
}

// Options selects rules. An empty RunOnly runs every rule.
type Options struct {
	RunOnly []string
}

// Rule is one check over a document.
type Rule struct {
	ID     string
	Tags   []string
	Impact Impact
	Help   string
	Check  func(doc *dom.Document) []NodeResult
}

func (r Rule) selected(runOnly []string) bool {
	if len(runOnly) == 0 {
		return true
	}
	for _, want := range runOnly {
		if want == r.ID {
			return true
		}
		for _, tag := range r.Tags {
			if want == tag {
				return true
			}
		}
	}
	return false
}

// Auditor is the accessibility-audit collaborator.
type Auditor interface {
	Audit(ctx context.Context, doc *dom.Document, opts Options) (Result, error)
}

// RuleAuditor audits with a fixed rule set.
type RuleAuditor struct {
	rules []Rule
}

// NewAuditor creates an auditor; with no rules it uses DefaultRules.
func NewAuditor(rules ...Rule) *RuleAuditor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &RuleAuditor{rules: rules}
}

// DefaultRules returns the built-in rules.
func DefaultRules() []Rule {
	return []Rule{ColorContrast(), FormLabel()}
}

// Audit runs the selected rules. Naming a rule or tag that no rule carries is
// an error, so a typo cannot silently turn an audit into a no-op.
func (a *RuleAuditor) Audit(ctx context.Context, doc *dom.Document, opts Options) (Result, error) {
	if err := a.checkSelectors(opts.RunOnly); err != nil {
		return Result{}, err
	}

	var res Result
	for _, rule := range a.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if !rule.selected(opts.RunOnly) {
			continue
		}
		res.RulesRun = append(res.RulesRun, rule.ID)
		if nodes := rule.Check(doc); len(nodes) > 0 {
			res.Violations = append(res.Violations, Violation{
				RuleID: rule.ID,
				Impact: rule.Impact,
				Help:   rule.Help,
				Tags:   rule.Tags,
				Nodes:  nodes,
			})
		}
	}
	return res, nil
}

func (a *RuleAuditor) checkSelectors(runOnly []string) error {
	known := map[string]bool{}
	for _, r := range a.rules {
		known[r.ID] = true
		for _, t := range r.Tags {
			known[t] = true
		}
	}
	var unknown []string
	for _, s := range runOnly {
		if !known[s] {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown accessibility rule or tag: %s", strings.Join(unknown, ", "))
	}
	return nil
}
