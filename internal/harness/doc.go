// Package harness runs declarative TodoMVC suites and checks their traces.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: editing
//	description: "Double-click edits an item; enter commits"
//	latency_ms: 20
//	seed:
//	  - title: buy some cheese
//	  - title: feed the cat
//	    completed: true
//	before_each:
//	  - visit: /
//	cases:
//	  - name: edits the first item
//	    steps:
//	      - get: .todo-list li
//	        first:
//	        find: label
//	        do: dblclick
//	contexts:
//	  - name: Nested
//	    cases: [...]
//	assertions:
//	  - type: case_status
//	    case: "editing > edits the first item"
//	    status: passed
//	  - type: trace_contains
//	    case: "editing > edits the first item"
//	    kind: command
//	    detail: dblclick
//	  - type: final_state
//	    items:
//	      - title: buy some cheese
//
// Step keys are described in package compiler.
//
// # Assertion Types
//
//   - case_status: a case ended with status (and optionally failure code)
//   - trace_contains: a case recorded a step matching kind/subject/detail/outcome
//   - trace_order: a case recorded the listed steps in order, gaps allowed
//   - trace_count: a case recorded exactly count matching steps
//   - final_state: the application's items after the last case
//
// A failed case fails the scenario unless a case_status assertion expects it.
//
// # Deterministic Testing
//
// Scenarios run against the in-process application with fixed run IDs. Traces
// carry no timings, so the canonical trace is stable and is compared against
// testdata/golden/<name>.golden with goldie:
//
//	go test ./internal/harness -update
package harness
