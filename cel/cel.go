package cel

import (
	"reflect"

	"github.com/ezachrisen/rulefold"
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// Names of the variables every expression can refer to.
const (
	FactsVar = "facts"
	ValueVar = "value"
)

// DefaultCostLimit caps the runtime cost of a single evaluation
const DefaultCostLimit uint64 = 1_000_000

// ErrCompile is returned, wrapped, when an expression fails to parse or check
var ErrCompile = errors.New("cel: compile error")

// Options controls how expressions are compiled.
type Options struct {
	envOptions []celgo.EnvOption
	costLimit  uint64
}

// Option is a functional option for Matcher, Action and Transformer.
type Option func(o *Options)

// EnvOptions adds CEL environment options, such as extra variables,
// macros or function libraries.
func EnvOptions(opts ...celgo.EnvOption) Option {
	return func(o *Options) {
		o.envOptions = append(o.envOptions, opts...)
	}
}

// ProtoTypes registers protocol buffer message types so that expressions
// can construct them and refer to their fields and enums by name.
func ProtoTypes(msgs ...proto.Message) Option {
	return func(o *Options) {
		types := make([]any, 0, len(msgs))
		for _, m := range msgs {
			types = append(types, m)
		}
		o.envOptions = append(o.envOptions, celgo.Types(types...))
	}
}

// CostLimit sets the runtime cost limit. Zero disables the limit.
func CostLimit(n uint64) Option {
	return func(o *Options) {
		o.costLimit = n
	}
}

// program is a checked, ready to run expression
type program struct {
	expr string
	prg  celgo.Program
}

func compile(expr string, want *celgo.Type, opts []Option) (*program, error) {
	o := Options{costLimit: DefaultCostLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	envOpts := append([]celgo.EnvOption{
		celgo.Variable(FactsVar, celgo.DynType),
		celgo.Variable(ValueVar, celgo.DynType),
	}, o.envOptions...)

	env, err := celgo.NewEnv(envOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating CEL environment")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(ErrCompile, "%q: %v", expr, iss.Err())
	}

	if want != nil {
		out := ast.OutputType()
		if !out.IsExactType(want) && !out.IsExactType(celgo.DynType) {
			return nil, errors.Wrapf(ErrCompile, "%q: output type is %s, wanted %s", expr, out, want)
		}
	}

	var prgOpts []celgo.ProgramOption
	if o.costLimit > 0 {
		prgOpts = append(prgOpts, celgo.CostLimit(o.costLimit))
	}

	prg, err := env.Program(ast, prgOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating program for %q", expr)
	}
	return &program{expr: expr, prg: prg}, nil
}

func (p *program) eval(facts, value any) (ref.Val, error) {
	out, _, err := p.prg.Eval(map[string]any{
		FactsVar: facts,
		ValueVar: value,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating %q", p.expr)
	}
	return out, nil
}

// Matcher compiles a boolean expression into a matcher. The expression
// sees the facts as `facts` and the current value as `value`.
//
//	m, err := cel.Matcher[map[string]any, string](`facts.country == "DE"`)
//
// Missing map keys are evaluation errors in CEL; guard optional facts
// with has(), e.g. `has(facts.beta) && facts.beta`.
func Matcher[F, V any](expr string, opts ...Option) (rulefold.Matcher[F, V], error) {
	p, err := compile(expr, celgo.BoolType, opts)
	if err != nil {
		return nil, err
	}

	return func(f F, v V) (bool, error) {
		out, err := p.eval(f, v)
		if err != nil {
			return false, err
		}
		b, ok := out.Value().(bool)
		if !ok {
			return false, errors.Errorf("evaluating %q: result is %s, wanted bool", expr, out.Type())
		}
		return b, nil
	}, nil
}

// Action compiles an expression into an action. The result of the
// expression becomes the new value and must be convertible to V.
func Action[F, V any](expr string, opts ...Option) (rulefold.Action[F, V], error) {
	p, err := compile(expr, nil, opts)
	if err != nil {
		return nil, err
	}

	return func(f F, v V) (V, error) {
		out, err := p.eval(f, v)
		if err != nil {
			var zero V
			return zero, err
		}
		return convert[V](expr, out)
	}, nil
}

// Transformer compiles an expression over `value` alone. The facts
// variable is bound to null.
func Transformer[V any](expr string, opts ...Option) (rulefold.Transformer[V], error) {
	p, err := compile(expr, nil, opts)
	if err != nil {
		return nil, err
	}

	return func(v V) (V, error) {
		out, err := p.eval(nil, v)
		if err != nil {
			var zero V
			return zero, err
		}
		return convert[V](expr, out)
	}, nil
}

func convert[V any](expr string, out ref.Val) (V, error) {
	var zero V

	t := reflect.TypeOf(&zero).Elem()
	if t.Kind() == reflect.Interface {
		if v, ok := out.Value().(V); ok {
			return v, nil
		}
		return zero, errors.Errorf("evaluating %q: %T does not implement %s", expr, out.Value(), t)
	}

	native, err := out.ConvertToNative(t)
	if err != nil {
		return zero, errors.Wrapf(err, "evaluating %q: converting %s to %s", expr, out.Type(), t)
	}
	v, ok := native.(V)
	if !ok {
		return zero, errors.Errorf("evaluating %q: converted to %T, wanted %s", expr, native, t)
	}
	return v, nil
}
