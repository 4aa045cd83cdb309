// Package rulefold provides a small rules engine that folds a value through a
// tree of declarative rules.
//
// A rule pairs a Matcher, a predicate over the facts and the current value,
// with an Action that produces the next value. Rules are combined into larger
// rules with AllOf, FirstOf and ChainOf, and wrapped with ScopeFacts,
// TransformOutput and When. The resulting tree is evaluated against read-only
// facts and an initial value; the result is the final value and whether any
// rule matched.
//
// Typical use is as follows:
//
//  1. Write matchers and actions for your facts and value types
//  2. Build a rule tree from them
//  3. Optionally create an Engine, which validates the tree once
//  4. Run the rule against facts and an initial value
//  5. Inspect the value, or the full State with DetailedRun
//
// # Value Threading
//
// The combinators differ in how the value flows between children:
//
//	AllOf    every child runs; each sees the value left by the previous one
//	FirstOf  children run against the same input; the first match wins
//	ChainOf  each child's output feeds the next; the first non-match stops
//
// AllOf stacks the effects of independent rules. FirstOf isolates
// alternatives from each other's partial effects. ChainOf models a pipeline
// that aborts at the first break.
//
// # Rule Ownership and Modification
//
// Rules carry no evaluation state. Once built, a rule tree can be evaluated
// any number of times, including concurrently from many goroutines, provided
// its matchers and actions are free of side effects and the tree is not
// modified.
//
// Rule trees must be finite and acyclic. Evaluation does not use recursion,
// so very deep trees are fine. NewEngine and Validate reject a tree in which
// a rule is its own ancestor. Evaluate does not check for cycles; set the
// MaxDepth option when evaluating trees that were not validated.
//
// # Failures
//
// Matchers, actions, mappers and transformers report failure by returning an
// error. Evaluation stops at the first error. Run and DetailedRun also recover
// panics raised by these functions and return them as a *PanicError, so a
// caller of Run never sees a panic from evaluation.
//
// The cel and goja subpackages build matchers and actions from CEL and
// ECMAScript expressions.
package rulefold
