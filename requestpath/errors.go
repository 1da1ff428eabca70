package requestpath

import (
	"errors"
	"reflect"
)

// ErrCircularDependency matches every *CircularDependencyError via errors.Is.
var ErrCircularDependency = errors.New("circular dependency detected")

// CircularDependencyError indicates a type was requested while it was
// already being constructed on the same path.
type CircularDependencyError struct {
	// Chain is the full ordered chain, ending with the repeated request.
	Chain []TypeRequest
}

func (e *CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return ErrCircularDependency.Error()
	}
	return ErrCircularDependency.Error() + ": " + joinChain(e.Chain)
}

// Is reports whether target is ErrCircularDependency.
func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// Types returns the types of the chain in order.
func (e *CircularDependencyError) Types() []reflect.Type {
	types := make([]reflect.Type, len(e.Chain))
	for i, r := range e.Chain {
		types[i] = r.Type
	}
	return types
}
