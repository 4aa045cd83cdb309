package goja

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/ezachrisen/rulefold"
	"github.com/gorhill/cronexpr"
	"github.com/pkg/errors"
)

// Names of the globals every script can refer to.
const (
	FactsVar = "facts"
	ValueVar = "value"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned when a script runs longer than its
	// Timeout.
	Interrupted = errors.New(InterruptedMessage)
)

// Options controls how scripts are compiled and run.
type Options struct {
	timeout   time.Duration
	jsonNames bool
}

// Option is a functional option for Matcher, Action and Transformer.
type Option func(o *Options)

// Timeout interrupts scripts that run longer than d. Zero means no limit.
func Timeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// JSONFieldNames exposes Go struct fields to scripts under their json tag
// names instead of their Go names.
func JSONFieldNames() Option {
	return func(o *Options) {
		o.jsonNames = true
	}
}

// script is a compiled program plus a pool of runtimes to run it in.
// A goja.Runtime is not safe for concurrent use, so each evaluation
// borrows one.
type script struct {
	src     string
	prog    *goja.Program
	timeout time.Duration
	pool    sync.Pool
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

func compile(src string, opts []Option) (*script, error) {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	prog, err := goja.Compile("", wrapSrc(src), true)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %q", src)
	}

	s := &script{src: src, prog: prog, timeout: o.timeout}
	s.pool.New = func() any {
		rt := goja.New()
		if o.jsonNames {
			rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		}
		rt.Set("cronNext", func(expr, from string) string {
			return cronNext(rt, expr, from)
		})
		return rt
	}
	return s, nil
}

// cronNext returns the first time after from, an RFC 3339 timestamp, that
// the cron expression fires. Bad input throws a script exception.
func cronNext(rt *goja.Runtime, expr, from string) string {
	c, err := cronexpr.Parse(expr)
	if err != nil {
		panic(rt.NewGoError(err))
	}
	t, err := time.Parse(time.RFC3339, from)
	if err != nil {
		panic(rt.NewGoError(err))
	}
	next := c.Next(t)
	if next.IsZero() {
		return ""
	}
	return next.UTC().Format(time.RFC3339)
}

// builtins are the globals set up when a runtime is created.
var builtins = map[string]bool{"cronNext": true}

// reset removes the globals left by an evaluation, including facts, value
// and anything a script assigned to globalThis, so that a pooled runtime
// neither keeps caller data alive nor carries state into the next run.
func reset(rt *goja.Runtime) {
	g := rt.GlobalObject()
	for _, k := range g.Keys() {
		if !builtins[k] {
			_ = g.Delete(k)
		}
	}
}

// exec runs the script with facts and value bound and hands the result to
// fn while the runtime is still borrowed.
func (s *script) exec(facts, value any, fn func(*goja.Runtime, goja.Value) error) error {
	rt := s.pool.Get().(*goja.Runtime)
	reuse := true
	defer func() {
		if reuse {
			reset(rt)
			s.pool.Put(rt)
		}
	}()

	rt.Set(FactsVar, facts)
	rt.Set(ValueVar, value)

	var timer *time.Timer
	if s.timeout > 0 {
		timer = time.AfterFunc(s.timeout, func() {
			rt.Interrupt(InterruptedMessage)
		})
	}

	v, err := rt.RunProgram(s.prog)

	if timer != nil && !timer.Stop() {
		// The interrupt may land after this point, so the runtime
		// cannot go back to the pool.
		reuse = false
	}
	rt.ClearInterrupt()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return errors.Wrapf(Interrupted, "running %q", s.src)
		}
		return errors.Wrapf(err, "running %q", s.src)
	}
	return fn(rt, v)
}

// Matcher compiles a script into a matcher. The script is the body of a
// function and must return a boolean:
//
//	m, err := goja.Matcher[map[string]any, string](`return facts.age >= 18;`)
func Matcher[F, V any](src string, opts ...Option) (rulefold.Matcher[F, V], error) {
	s, err := compile(src, opts)
	if err != nil {
		return nil, err
	}

	return func(f F, v V) (bool, error) {
		var matched bool
		err := s.exec(f, v, func(_ *goja.Runtime, res goja.Value) error {
			b, ok := res.Export().(bool)
			if !ok {
				return errors.Errorf("running %q: returned %v, wanted a boolean", src, res)
			}
			matched = b
			return nil
		})
		return matched, err
	}, nil
}

// Action compiles a script into an action. The returned value is exported
// to V.
func Action[F, V any](src string, opts ...Option) (rulefold.Action[F, V], error) {
	s, err := compile(src, opts)
	if err != nil {
		return nil, err
	}

	return func(f F, v V) (V, error) {
		var out V
		err := s.exec(f, v, export(src, &out))
		return out, err
	}, nil
}

// Transformer compiles a script over value alone. facts is undefined.
func Transformer[V any](src string, opts ...Option) (rulefold.Transformer[V], error) {
	s, err := compile(src, opts)
	if err != nil {
		return nil, err
	}

	return func(v V) (V, error) {
		var out V
		err := s.exec(goja.Undefined(), v, export(src, &out))
		return out, err
	}, nil
}

func export[V any](src string, out *V) func(*goja.Runtime, goja.Value) error {
	return func(rt *goja.Runtime, res goja.Value) error {
		if res == nil || goja.IsUndefined(res) {
			return errors.Errorf("running %q: no value returned", src)
		}
		if err := rt.ExportTo(res, out); err != nil {
			var zero V
			*out = zero
			return errors.Wrapf(err, "running %q: exporting result", src)
		}
		return nil
	}
}
