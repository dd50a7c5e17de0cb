// Package compiler turns declarative suite definitions into runnable
// scenario trees.
//
// A suite is a tree of contexts holding cases and beforeEach/afterEach step
// lists. Each step is a small map, as decoded from YAML:
//
//	- get: .todo-list li
//	  eq: 1
//	  as: secondTodo
//	- get: "@secondTodo"
//	  do: dblclick
//	- get: .new-todo
//	  do: type
//	  text: "buy some cheese{enter}"
//	  should:
//	    - assert: have.value
//	      value: ""
//
// Every step has exactly one head: a browser step (visit, reload, back,
// clear_storage, blur_active, audit) or an element step (get, focused,
// contains). Element steps then apply, in this order: filter, eq / first /
// last, find, as, within, do, should.
//
// Steps are decoded with mapstructure and unknown keys are errors. Validate
// reports every problem in a tree; Compile refuses a tree with any.
package compiler
