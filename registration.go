package ioc

import (
	"fmt"
	"reflect"

	"github.com/toutaio/toutago-ioc/registry"
)

// ServiceIdentity is the (type, tag) key used to look up a registration.
type ServiceIdentity = registry.ServiceIdentity

// Registration describes how to produce an instance for a ServiceIdentity.
type Registration = registry.Registration

// Lifecycle represents whether a resolved instance is cached and reused.
type Lifecycle = registry.Lifecycle

const (
	// Transient builds a new instance on every resolution.
	Transient = registry.Transient

	// Singleton creates the instance lazily on first resolution and reuses it.
	// This is the default lifecycle for Register.
	Singleton = registry.Singleton
)

// ProduceFunc builds an instance for a late-bound registration.
// It receives a resolver bound to the in-flight resolution; dependencies must
// be resolved through it rather than through the container.
//
// Example:
//
//	produce := func(r ioc.DependencyResolver, _ *ioc.Registration) (any, error) {
//	    cfg, err := r.Resolve(ioc.TypeOf[*Config](), nil)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewConnection(cfg.(*Config).DSN), nil
//	}
type ProduceFunc func(r DependencyResolver, reg *Registration) (any, error)

// ImplementationSource tells a registration where its instances come from:
// a Known concrete type built by the type factory, or a Deferred callback.
type ImplementationSource interface {
	implementationSource()
}

// Known is an implementation whose concrete type is known up front.
type Known struct {
	Type reflect.Type
}

// Deferred is an implementation decided by a produce callback.
type Deferred struct {
	Produce ProduceFunc
}

func (Known) implementationSource()    {}
func (Deferred) implementationSource() {}

// ImplementedBy returns a Known implementation source for t.
func ImplementedBy(t reflect.Type) Known {
	return Known{Type: t}
}

// ProducedBy returns a Deferred implementation source for fn.
func ProducedBy(fn ProduceFunc) Deferred {
	return Deferred{Produce: fn}
}

// TypeRegisteredEvent is published after a registration was added or replaced.
type TypeRegisteredEvent struct {
	DeclaringType    reflect.Type // nil for open generic registrations
	ImplementingType reflect.Type // nil for produce callbacks
	Tag              any
	Lifecycle        Lifecycle

	// Definition is the service definition of an open generic registration.
	Definition GenericDefinition
}

type registerOptions struct {
	tag       any
	lifecycle Lifecycle
	overwrite bool
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOptions)

// WithTag registers the service under a discriminating tag.
// The tag must be comparable.
func WithTag(tag any) RegisterOption {
	return func(o *registerOptions) {
		o.tag = tag
	}
}

// WithLifecycle sets the lifecycle of the registration.
func WithLifecycle(l Lifecycle) RegisterOption {
	return func(o *registerOptions) {
		o.lifecycle = l
	}
}

// AsTransient is shorthand for WithLifecycle(Transient).
func AsTransient() RegisterOption {
	return WithLifecycle(Transient)
}

// KeepExisting makes the registration a no-op when the identity is already
// registered, instead of replacing the existing entry.
func KeepExisting() RegisterOption {
	return func(o *registerOptions) {
		o.overwrite = false
	}
}

func applyRegisterOptions(opts []RegisterOption) registerOptions {
	o := registerOptions{lifecycle: Singleton, overwrite: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newRegistration validates a registration request. It never touches
// container state.
func newRegistration(service reflect.Type, impl ImplementationSource, o registerOptions) (*Registration, error) {
	if service == nil {
		return nil, &ArgumentInvalidError{Argument: "service", Reason: "service type cannot be nil"}
	}
	if impl == nil {
		return nil, &ArgumentInvalidError{Argument: "implementation", Reason: "implementation cannot be nil"}
	}
	if err := checkTag(o.tag); err != nil {
		return nil, err
	}
	if !o.lifecycle.Valid() {
		return nil, &ArgumentInvalidError{Argument: "lifecycle", Reason: fmt.Sprintf("unknown lifecycle %q", o.lifecycle)}
	}

	reg := &Registration{
		DeclaringType: service,
		Tag:           o.tag,
		Lifecycle:     o.lifecycle,
	}

	switch src := impl.(type) {
	case Known:
		if src.Type == nil {
			return nil, &ArgumentInvalidError{Argument: "implementation", Reason: "implementation type cannot be nil"}
		}
		if src.Type.Kind() == reflect.Interface {
			return nil, &InvalidRegistrationError{
				Type:   service,
				Reason: fmt.Sprintf("implementation %v is an interface, register a produce function instead", src.Type),
			}
		}
		if !src.Type.AssignableTo(service) {
			return nil, &InvalidRegistrationError{
				Type:   service,
				Reason: fmt.Sprintf("implementation %v is not assignable to %v", src.Type, service),
			}
		}
		reg.ImplementingType = src.Type
	case Deferred:
		if src.Produce == nil {
			return nil, &ArgumentInvalidError{Argument: "implementation", Reason: "produce function cannot be nil"}
		}
		reg.Produce = src.Produce
	default:
		return nil, &ArgumentInvalidError{Argument: "implementation", Reason: fmt.Sprintf("unsupported implementation source %T", impl)}
	}

	return reg, nil
}

// checkTag rejects tags that cannot be used as a map key.
func checkTag(tag any) error {
	if tag == nil || reflect.TypeOf(tag).Comparable() {
		return nil
	}
	return &ArgumentInvalidError{Argument: "tag", Reason: fmt.Sprintf("tag of type %T is not comparable", tag)}
}
