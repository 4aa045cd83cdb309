// Package goja builds rulefold matchers, actions and transformers from
// small ECMAScript programs run by https://github.com/dop251/goja.
//
// A script is the body of a function. It sees the facts and the current
// value as the globals facts and value, and returns its result:
//
//	m, err := goja.Matcher[map[string]any, string](`return facts.tier === "gold";`)
//	a, err := goja.Action[map[string]any, string](`return value + "/gold";`)
//
// Scripts are compiled once. Each evaluation borrows a runtime from a
// pool, so the resulting matchers and actions may be used from many
// goroutines.
//
// The global function cronNext(expr, from) returns the next time, as an
// RFC 3339 string, that a cron expression fires after from:
//
//	return cronNext("0 9 * * MON-FRI", facts.now) <= facts.deadline;
//
// Scripts that may not terminate should be run with a Timeout.
package goja
