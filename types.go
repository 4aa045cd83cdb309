package rulefold

// A Matcher is a predicate over the facts and the current value.
// Matchers must be free of side effects; they may be called any number of
// times, or not at all, depending on the shape of the rule tree.
type Matcher[F, V any] func(facts F, value V) (bool, error)

// An Action produces the next value. It is only invoked when the matcher of
// its rule returned true.
type Action[F, V any] func(facts F, value V) (V, error)

// A Mapper replaces the facts seen by a sub-tree.
type Mapper[F any] func(facts F) (F, error)

// A Transformer post-processes the value produced by a matching sub-tree.
type Transformer[V any] func(value V) (V, error)

// State is the accumulator threaded through an evaluation.
type State[V any] struct {
	// Matched is true if any rule in the portion of the tree visited so far
	// matched.
	Matched bool

	// The current value.
	Value V
}

// MatchFunc adapts a predicate that cannot fail into a Matcher.
func MatchFunc[F, V any](fn func(F, V) bool) Matcher[F, V] {
	if fn == nil {
		return nil
	}
	return func(f F, v V) (bool, error) {
		return fn(f, v), nil
	}
}

// ActionFunc adapts a function that cannot fail into an Action.
func ActionFunc[F, V any](fn func(F, V) V) Action[F, V] {
	if fn == nil {
		return nil
	}
	return func(f F, v V) (V, error) {
		return fn(f, v), nil
	}
}

// MapperFunc adapts a function that cannot fail into a Mapper.
func MapperFunc[F any](fn func(F) F) Mapper[F] {
	if fn == nil {
		return nil
	}
	return func(f F) (F, error) {
		return fn(f), nil
	}
}

// TransformFunc adapts a function that cannot fail into a Transformer.
func TransformFunc[V any](fn func(V) V) Transformer[V] {
	if fn == nil {
		return nil
	}
	return func(v V) (V, error) {
		return fn(v), nil
	}
}
