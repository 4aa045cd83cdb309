package rulefold

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// frame is one node on the evaluation stack.
type frame[F, V any] struct {
	rule  Rule[F, V]
	at    *location
	facts F

	// in is the state the node was entered with. acc is the running state
	// of all-of and chain-of nodes.
	in  State[V]
	acc State[V]

	// next is the index of the next child to evaluate; a value > 0 means a
	// child has returned and its result is waiting in the evaluator.
	next int
}

// Evaluate evaluates the rule against the facts, starting from state s,
// and returns the resulting state.
//
// Evaluate walks the tree with an explicit stack rather than recursion, so
// the depth of a tree is limited by memory, not by the goroutine stack.
//
// Errors returned by matchers, actions, mappers and transformers stop the
// evaluation and are returned unchanged. Panics are not recovered; use Run
// or DetailedRun for that. A malformed node yields an error wrapping
// ErrMalformedRule.
func Evaluate[F, V any](r Rule[F, V], facts F, s State[V], opts ...EvalOption) (State[V], error) {
	o := EvalOptions{}
	applyEvalOptions(&o, opts...)
	ev := evaluator[F, V]{opts: o}
	return ev.run(r, facts, s)
}

type evaluator[F, V any] struct {
	opts  EvalOptions
	stack []frame[F, V]

	// ret holds the result of the most recently completed node.
	ret State[V]

	// traceRun is the trace's number for this evaluation.
	traceRun int
}

func (ev *evaluator[F, V]) push(r Rule[F, V], at *location, facts F, in State[V]) error {
	if ev.opts.MaxDepth > 0 && len(ev.stack) >= ev.opts.MaxDepth {
		return errors.Wrapf(ErrMaxDepth, "%s: depth %d", at, len(ev.stack)+1)
	}
	if err := checkNode(r, at); err != nil {
		return err
	}
	ev.stack = append(ev.stack, frame[F, V]{
		rule:  r,
		at:    at,
		facts: facts,
		in:    in,
		acc:   in,
	})
	ev.log("enter", r, at)
	return nil
}

// pushWrapped pushes the only child of a wrapper node f.
func (ev *evaluator[F, V]) pushWrapped(f *frame[F, V], child Rule[F, V], facts F) error {
	f.next++
	return ev.push(child, f.at.child(segment(child), -1), facts, f.in)
}

// pop completes the top frame with result s.
func (ev *evaluator[F, V]) pop(s State[V]) {
	top := ev.stack[len(ev.stack)-1]
	ev.stack = ev.stack[:len(ev.stack)-1]
	ev.ret = s
	if ev.opts.Trace != nil {
		ev.opts.Trace.add(Step{
			Run:     ev.traceRun,
			Path:    top.at.String(),
			Kind:    top.rule.Kind(),
			ID:      label(top.rule),
			Depth:   len(ev.stack),
			Matched: s.Matched,
			Value:   s.Value,
		})
	}
	ev.log("exit", top.rule, top.at, slog.Bool("matched", s.Matched))
}

func (ev *evaluator[F, V]) log(msg string, r Rule[F, V], at *location, attrs ...slog.Attr) {
	l := ev.opts.Logger
	if l == nil || !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs = append(attrs,
		slog.String("path", at.String()),
		slog.String("kind", r.Kind().String()),
	)
	if id := label(r); id != "" {
		attrs = append(attrs, slog.String("id", id))
	}
	l.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

func (ev *evaluator[F, V]) run(root Rule[F, V], facts F, s State[V]) (State[V], error) {
	if ev.opts.Trace != nil {
		ev.traceRun = ev.opts.Trace.begin()
	}
	if err := ev.push(root, &location{seg: segment(root), idx: -1}, facts, s); err != nil {
		return State[V]{}, err
	}

	for len(ev.stack) > 0 {
		f := &ev.stack[len(ev.stack)-1]

		switch n := f.rule.(type) {

		case *PlainRule[F, V]:
			ok, err := n.Match(f.facts, f.in.Value)
			if err != nil {
				return State[V]{}, err
			}
			if !ok {
				ev.pop(State[V]{Matched: false, Value: f.in.Value})
				continue
			}
			v, err := n.Action(f.facts, f.in.Value)
			if err != nil {
				return State[V]{}, err
			}
			ev.pop(State[V]{Matched: true, Value: v})

		case *ScopedRule[F, V]:
			if f.next > 0 {
				ev.pop(ev.ret)
				continue
			}
			scoped, err := n.Mapper(f.facts)
			if err != nil {
				return State[V]{}, err
			}
			if err := ev.pushWrapped(f, n.Rule, scoped); err != nil {
				return State[V]{}, err
			}

		case *TransformedRule[F, V]:
			if f.next == 0 {
				if err := ev.pushWrapped(f, n.Rule, f.facts); err != nil {
					return State[V]{}, err
				}
				continue
			}
			res := ev.ret
			if res.Matched {
				v, err := n.Transform(res.Value)
				if err != nil {
					return State[V]{}, err
				}
				res.Value = v
			}
			ev.pop(res)

		case *ConditionalRule[F, V]:
			if f.next > 0 {
				ev.pop(ev.ret)
				continue
			}
			ok, err := n.Match(f.facts, f.in.Value)
			if err != nil {
				return State[V]{}, err
			}
			if !ok {
				ev.pop(State[V]{Matched: false, Value: f.in.Value})
				continue
			}
			if err := ev.pushWrapped(f, n.Rule, f.facts); err != nil {
				return State[V]{}, err
			}

		case *AllOfRule[F, V]:
			// Fold: each child sees the previous child's value, and the
			// node matched if any child did.
			if f.next > 0 {
				f.acc = State[V]{
					Matched: f.acc.Matched || ev.ret.Matched,
					Value:   ev.ret.Value,
				}
			}
			if f.next == len(n.Rules) {
				ev.pop(f.acc)
				continue
			}
			if err := ev.pushChild(f, n.Rules, f.acc); err != nil {
				return State[V]{}, err
			}

		case *FirstOfRule[F, V]:
			// Alternatives: every child sees the incoming state.
			if f.next > 0 && ev.ret.Matched {
				ev.pop(ev.ret)
				continue
			}
			if f.next == len(n.Rules) {
				ev.pop(f.in)
				continue
			}
			if err := ev.pushChild(f, n.Rules, f.in); err != nil {
				return State[V]{}, err
			}

		case *ChainOfRule[F, V]:
			// Pipeline: stop at the first child that did not match and
			// return its result.
			if f.next > 0 {
				f.acc = ev.ret
				if !f.acc.Matched {
					ev.pop(f.acc)
					continue
				}
			}
			if f.next == len(n.Rules) {
				ev.pop(f.acc)
				continue
			}
			if err := ev.pushChild(f, n.Rules, f.acc); err != nil {
				return State[V]{}, err
			}

		default:
			// checkNode rejects unknown types before they are pushed.
			return State[V]{}, errors.Wrapf(ErrMalformedRule, "%s: unknown rule type %T", f.at, f.rule)
		}
	}
	return ev.ret, nil
}

// pushChild pushes the next child of a list node f with the state in.
func (ev *evaluator[F, V]) pushChild(f *frame[F, V], rules []Rule[F, V], in State[V]) error {
	i := f.next
	f.next++
	// f is invalidated by push if the stack grows.
	return ev.push(rules[i], f.at.child(segment(rules[i]), i), f.facts, in)
}
