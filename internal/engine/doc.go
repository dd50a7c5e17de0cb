// Package engine runs scenario trees: named Contexts holding test cases,
// nested Contexts and beforeEach/afterEach hooks.
//
// EXECUTION MODEL:
//
// Depth-first walk. Within a Context its own cases run first, then its child
// Contexts, each in declaration order. For every case:
//  1. a fresh per-case environment is opened (aliases live there)
//  2. beforeEach hooks run outer to inner; the first failure skips the rest
//     and the body
//  3. the body runs
//  4. afterEach hooks run inner to outer, always, each one attempted even if
//     an earlier one failed
//  5. the environment is closed
//
// A failing case never stops its siblings. There is no case-level retry;
// retrying belongs to the assertion engine.
//
// The runner knows nothing about pages or selectors: it is generic over the
// environment type E handed to hooks and bodies.
package engine
