package rulefold

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedRule is returned when a rule tree contains a nil node, a
	// node of an unknown type, or a node missing one of its functions.
	ErrMalformedRule = errors.New("malformed rule")

	// ErrMaxDepth is returned when evaluation descends deeper than the
	// MaxDepth option allows.
	ErrMaxDepth = errors.New("maximum rule depth exceeded")
)

// PanicError is returned by Run and DetailedRun when a matcher, action,
// mapper or transformer panicked.
type PanicError struct {
	// The value passed to panic
	Value any

	// Stack trace captured at the point of recovery
	stack error
}

func newPanicError(v any) *PanicError {
	return &PanicError{
		Value: v,
		stack: errors.WithStack(fmt.Errorf("panic: %v", v)),
	}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("rule panicked: %v", p.Value)
}

// Unwrap returns the panic value if it was an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Format prints the stack of the recovery point with %+v.
func (p *PanicError) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+') && p.stack != nil:
		fmt.Fprintf(s, "%s\n%+v", p.Error(), p.stack)
	default:
		fmt.Fprint(s, p.Error())
	}
}
