package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/toutaio/toutago-ioc/requestpath"
)

var (
	// ErrTypeNotRegistered matches every *TypeNotRegisteredError.
	ErrTypeNotRegistered = errors.New("type not registered")

	// ErrInvalidRegistration matches every *InvalidRegistrationError.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrCircularDependency matches every *CircularDependencyError.
	ErrCircularDependency = requestpath.ErrCircularDependency

	// ErrConstructionFailed matches every *ConstructionFailedError.
	ErrConstructionFailed = errors.New("construction failed")

	// ErrArgumentInvalid matches every *ArgumentInvalidError, and
	// *InvalidRegistrationError values raised for a bad argument.
	ErrArgumentInvalid = errors.New("invalid argument")

	// ErrArgumentMismatch is returned by a constructor to reject the
	// arguments it was given. The type factory then tries the next candidate
	// instead of failing.
	ErrArgumentMismatch = errors.New("constructor arguments do not match")

	// ErrNoMatchingConstructor is the cause reported when no candidate
	// constructor of a type could be satisfied.
	ErrNoMatchingConstructor = errors.New("no constructor could be satisfied")

	// ErrContainerDependency is the cause reported when a service under
	// construction depends on *Container or *TypeFactory. Such services take
	// ServiceLocator, DependencyResolver or ConstructorResolver instead.
	ErrContainerDependency = errors.New("the container cannot be a dependency of a service it is building")

	// ErrDisposed is returned by a container after Dispose.
	ErrDisposed = errors.New("container is disposed")

	// ErrDefaultAlreadySet is returned by SetDefault when a default container exists.
	ErrDefaultAlreadySet = errors.New("default container already set")
)

// CircularDependencyError indicates a circular dependency was detected.
// Chain holds the full ordered request chain.
type CircularDependencyError = requestpath.CircularDependencyError

// TypeNotRegisteredError is returned when no registration and no fallback
// can produce the requested identity.
type TypeNotRegisteredError struct {
	Type  reflect.Type
	Tag   any
	Cause error
}

func (e *TypeNotRegisteredError) Error() string {
	msg := fmt.Sprintf("type %s is not registered", ServiceIdentity{Type: e.Type, Tag: e.Tag})
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is reports whether target is ErrTypeNotRegistered.
func (e *TypeNotRegisteredError) Is(target error) bool {
	return target == ErrTypeNotRegistered
}

// Unwrap returns the underlying cause error.
func (e *TypeNotRegisteredError) Unwrap() error {
	return e.Cause
}

// InvalidRegistrationError is returned when a registration cannot be accepted.
type InvalidRegistrationError struct {
	Type   reflect.Type
	Reason string

	// Argument marks errors caused by a bad caller-supplied value, such as
	// an instance that is not assignable to the service type.
	Argument bool
}

func (e *InvalidRegistrationError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("invalid registration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid registration for %v: %s", e.Type, e.Reason)
}

// Is reports whether target is ErrInvalidRegistration, or ErrArgumentInvalid
// for argument errors.
func (e *InvalidRegistrationError) Is(target error) bool {
	return target == ErrInvalidRegistration || (e.Argument && target == ErrArgumentInvalid)
}

// ConstructionFailedError wraps a failure raised by a constructor body, a
// produce callback or an initialization hook.
type ConstructionFailedError struct {
	Type  reflect.Type
	Cause error
}

func (e *ConstructionFailedError) Error() string {
	typeStr := "unknown"
	if e.Type != nil {
		typeStr = e.Type.String()
	}
	if e.Cause == nil {
		return fmt.Sprintf("failed to construct %s", typeStr)
	}
	return fmt.Sprintf("failed to construct %s: %v", typeStr, e.Cause)
}

// Is reports whether target is ErrConstructionFailed.
func (e *ConstructionFailedError) Is(target error) bool {
	return target == ErrConstructionFailed
}

// Unwrap returns the underlying cause error.
func (e *ConstructionFailedError) Unwrap() error {
	return e.Cause
}

// ArgumentInvalidError is a guard-clause violation at the API boundary.
type ArgumentInvalidError struct {
	Argument string
	Reason   string
}

func (e *ArgumentInvalidError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Reason)
}

// Is reports whether target is ErrArgumentInvalid.
func (e *ArgumentInvalidError) Is(target error) bool {
	return target == ErrArgumentInvalid
}

// ValidationError collects the problems found by Container.Validate.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", e.Errors[0])
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		b.WriteString(fmt.Sprintf("  %d. %v\n", i+1, err))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}
