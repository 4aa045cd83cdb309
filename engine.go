package rulefold

import (
	"context"
	"log/slog"
)

// Run evaluates the rule against the facts, starting from the initial value
// with nothing matched, and returns the resulting value. If no rule matched
// the initial value is returned.
//
// Errors and panics raised by the rule's functions are returned as the
// error, together with the zero value of V.
func Run[F, V any](r Rule[F, V], facts F, initial V, opts ...EvalOption) (V, error) {
	s, err := DetailedRun(r, facts, initial, opts...)
	if err != nil {
		var zero V
		return zero, err
	}
	return s.Value, nil
}

// DetailedRun is like Run, but returns the full state, including whether
// any rule matched.
func DetailedRun[F, V any](r Rule[F, V], facts F, initial V, opts ...EvalOption) (s State[V], err error) {
	o := EvalOptions{}
	applyEvalOptions(&o, opts...)

	defer func() {
		if p := recover(); p != nil {
			s, err = State[V]{}, newPanicError(p)
		}
		if err != nil && o.Logger != nil {
			o.Logger.LogAttrs(context.Background(), slog.LevelWarn, "rule evaluation failed",
				slog.String("kind", segment(r)),
				slog.Any("error", err),
			)
		}
	}()

	ev := evaluator[F, V]{opts: o}
	s, err = ev.run(r, facts, State[V]{Value: initial})
	if err != nil {
		return State[V]{}, err
	}
	return s, nil
}

// An Engine binds a validated rule to a set of default evaluation options.
// An Engine is safe for concurrent use, provided the functions in the rule
// are.
type Engine[F, V any] struct {
	rule Rule[F, V]
	opts []EvalOption
}

// NewEngine validates the rule and returns an Engine evaluating it.
// The options are applied to every evaluation, before any options passed
// to the evaluation itself.
func NewEngine[F, V any](r Rule[F, V], opts ...EvalOption) (*Engine[F, V], error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	return &Engine[F, V]{
		rule: r,
		opts: append([]EvalOption(nil), opts...),
	}, nil
}

// Rule returns the rule evaluated by the engine.
func (e *Engine[F, V]) Rule() Rule[F, V] {
	return e.rule
}

// Run evaluates the engine's rule. See Run.
func (e *Engine[F, V]) Run(facts F, initial V, opts ...EvalOption) (V, error) {
	return Run(e.rule, facts, initial, e.options(opts)...)
}

// DetailedRun evaluates the engine's rule. See DetailedRun.
func (e *Engine[F, V]) DetailedRun(facts F, initial V, opts ...EvalOption) (State[V], error) {
	return DetailedRun(e.rule, facts, initial, e.options(opts)...)
}

// Bind returns a function evaluating the engine's rule against the facts,
// leaving only the initial value to be supplied.
func (e *Engine[F, V]) Bind(facts F, opts ...EvalOption) func(initial V) (V, error) {
	o := e.options(opts)
	return func(initial V) (V, error) {
		return Run(e.rule, facts, initial, o...)
	}
}

func (e *Engine[F, V]) options(opts []EvalOption) []EvalOption {
	if len(opts) == 0 {
		return e.opts
	}
	all := make([]EvalOption, 0, len(e.opts)+len(opts))
	all = append(all, e.opts...)
	return append(all, opts...)
}

// EvalOptions determine how a rule is evaluated.
// See the functional definitions below for the meaning.
type EvalOptions struct {
	MaxDepth int
	Trace    *Trace
	Logger   *slog.Logger
}

type EvalOption func(f *EvalOptions)

// Given an array of EvalOption functions, apply their effect
// on the EvalOptions struct.
func applyEvalOptions(o *EvalOptions, opts ...EvalOption) {
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
}

// MaxDepth limits how deep evaluation descends into the rule tree. Exceeding
// the limit yields ErrMaxDepth. Use it when evaluating trees that may
// contain cycles.
// Default: 0 (unlimited)
func MaxDepth(n int) EvalOption {
	return func(f *EvalOptions) {
		f.MaxDepth = n
	}
}

// WithTrace records a Step in t for every rule evaluated.
// Default: off
func WithTrace(t *Trace) EvalOption {
	return func(f *EvalOptions) {
		f.Trace = t
	}
}

// WithLogger logs every rule entered and exited at debug level, and failed
// runs at warn level.
// Default: off
func WithLogger(l *slog.Logger) EvalOption {
	return func(f *EvalOptions) {
		f.Logger = l
	}
}
