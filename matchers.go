package rulefold

import "github.com/pkg/errors"

// Always returns a matcher that is always true. It is the neutral matcher,
// useful as the matcher of an unconditional rule.
func Always[F, V any]() Matcher[F, V] {
	return func(F, V) (bool, error) {
		return true, nil
	}
}

// Never returns a matcher that is always false.
func Never[F, V any]() Matcher[F, V] {
	return func(F, V) (bool, error) {
		return false, nil
	}
}

// Negate inverts the matcher m. An error from m is returned as is.
func Negate[F, V any](m Matcher[F, V]) Matcher[F, V] {
	return func(f F, v V) (bool, error) {
		if m == nil {
			return false, errors.Wrap(ErrMalformedRule, "negate: nil matcher")
		}
		ok, err := m(f, v)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// AnyOf returns a matcher that is true if at least one of the matchers is
// true. Matchers are called in order, stopping at the first true.
// AnyOf with no matchers is always false.
func AnyOf[F, V any](ms ...Matcher[F, V]) Matcher[F, V] {
	ms = append([]Matcher[F, V](nil), ms...)
	return func(f F, v V) (bool, error) {
		for i, m := range ms {
			if m == nil {
				return false, errors.Wrapf(ErrMalformedRule, "any-of: nil matcher at %d", i)
			}
			ok, err := m(f, v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// EveryOf returns a matcher that is true if all of the matchers are
// true. Matchers are called in order, stopping at the first false.
// EveryOf with no matchers is always true.
func EveryOf[F, V any](ms ...Matcher[F, V]) Matcher[F, V] {
	ms = append([]Matcher[F, V](nil), ms...)
	return func(f F, v V) (bool, error) {
		for i, m := range ms {
			if m == nil {
				return false, errors.Wrapf(ErrMalformedRule, "every-of: nil matcher at %d", i)
			}
			ok, err := m(f, v)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}
