package ioc

import (
	"fmt"
	"reflect"

	"github.com/toutaio/toutago-ioc/registry"
)

// GenericDefinition identifies an open generic type.
type GenericDefinition = registry.GenericDefinition

// OpenProduceFunc builds an instance for a closed instantiation of an open
// generic registration. closed is the requested type, such as Repo[User].
type OpenProduceFunc func(r DependencyResolver, closed reflect.Type) (any, error)

// TypeOf returns the reflect.Type of T. Works for interface types.
//
// Example:
//
//	ioc.TypeOf[Logger]()        // interface type
//	ioc.TypeOf[*UserService]()  // pointer type
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// OpenOf returns the generic definition of the instantiated type T.
// The type arguments of T are irrelevant.
//
// Example:
//
//	ioc.OpenOf[Repository[any]]()   // Repository[...]
//	ioc.OpenOf[*memoryRepo[any]]()  // *memoryRepo[...]
func OpenOf[T any]() GenericDefinition {
	def, _, ok := registry.DefinitionOf(TypeOf[T]())
	if !ok {
		panic(fmt.Sprintf("ioc: %v is not an instantiated generic type", TypeOf[T]()))
	}
	return def
}

// RegisterOpen maps every instantiation of the open service definition to the
// instantiation of impl with the same type arguments.
//
// Go cannot instantiate generic types at run time, so the closed
// implementation must be known to the type factory through a constructor.
//
// Example:
//
//	c.Factory().AddConstructor(newMemoryRepo[User])
//	c.RegisterOpen(ioc.OpenOf[Repository[any]](), ioc.OpenOf[*memoryRepo[any]]())
//	repo, _ := ioc.Resolve[Repository[User]](c)
func (c *Container) RegisterOpen(service, impl GenericDefinition, opts ...RegisterOption) error {
	if impl.IsZero() {
		return &ArgumentInvalidError{Argument: "implementation", Reason: "implementation definition cannot be empty"}
	}
	return c.registerOpen(&registry.OpenRegistration{Service: service, Implementation: impl}, opts)
}

// RegisterOpenFunc maps every instantiation of the open service definition
// to the result of produce.
func (c *Container) RegisterOpenFunc(service GenericDefinition, produce OpenProduceFunc, opts ...RegisterOption) error {
	if produce == nil {
		return &ArgumentInvalidError{Argument: "implementation", Reason: "produce function cannot be nil"}
	}
	return c.registerOpen(&registry.OpenRegistration{Service: service, Produce: produce}, opts)
}

func (c *Container) registerOpen(open *registry.OpenRegistration, opts []RegisterOption) error {
	if open.Service.IsZero() {
		return &ArgumentInvalidError{Argument: "service", Reason: "service definition cannot be empty"}
	}
	o := applyRegisterOptions(opts)
	if err := checkTag(o.tag); err != nil {
		return err
	}
	if !o.lifecycle.Valid() {
		return &ArgumentInvalidError{Argument: "lifecycle", Reason: fmt.Sprintf("unknown lifecycle %q", o.lifecycle)}
	}
	open.Tag = o.tag
	open.Lifecycle = o.lifecycle

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}
	if !c.store.UpsertOpen(open, o.overwrite) {
		c.logger.Debug("Existing open generic kept", "type", open.Service.String(), "tag", open.Tag)
		return nil
	}
	c.factory.invalidate()
	c.pending = append(c.pending, TypeRegisteredEvent{
		Definition: open.Service,
		Tag:        open.Tag,
		Lifecycle:  open.Lifecycle,
	})
	c.logger.Debug("Open generic registered", "type", open.Service.String(), "tag", open.Tag)
	return nil
}

// RemoveOpen deletes the open registration of service under tag, along with
// the closed registrations and instances made from it.
func (c *Container) RemoveOpen(service GenericDefinition, tag any) {
	if checkTag(tag) != nil {
		return
	}

	c.mu.Lock()
	defer c.unlock()
	if c.store.RemoveOpen(service, tag) {
		c.factory.invalidate()
		c.logger.Debug("Open generic removed", "type", service.String(), "tag", tag)
	}
}

// closeOpenLocked synthesizes and stores the closed registration for id from
// a matching open registration.
func (c *Container) closeOpenLocked(id ServiceIdentity) (*Registration, bool) {
	def, args, ok := registry.DefinitionOf(id.Type)
	if !ok {
		return nil, false
	}
	open, ok := c.store.Open(def, id.Tag)
	if !ok {
		return nil, false
	}

	reg := &Registration{DeclaringType: id.Type, Tag: id.Tag, Lifecycle: open.Lifecycle, Open: open}
	if produce, ok := open.Produce.(OpenProduceFunc); ok {
		closed := id.Type
		reg.Produce = ProduceFunc(func(r DependencyResolver, _ *Registration) (any, error) {
			return produce(r, closed)
		})
	} else {
		impl, ok := c.factory.closedTypeLocked(open.Implementation, args)
		if !ok || !impl.AssignableTo(id.Type) {
			c.logger.Debug("Open generic has no closed implementation",
				"type", id.Type.String(),
				"implementation", open.Implementation.String(),
			)
			return nil, false
		}
		reg.ImplementingType = impl
	}

	c.registerLocked(reg, false)
	return c.store.Get(id)
}

// Resolve resolves T from the container.
//
// Example:
//
//	logger, err := ioc.Resolve[Logger](container)
func Resolve[T any](c *Container) (T, error) {
	return ResolveTagged[T](c, nil)
}

// ResolveTagged resolves T registered under tag.
func ResolveTagged[T any](c *Container, tag any) (T, error) {
	var zero T
	v, err := c.Resolve(TypeOf[T](), tag)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// MustResolve resolves T and panics on error.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("ioc: cannot resolve %v: %v", TypeOf[T](), err))
	}
	return v
}

// RegisterType registers implementation I for service S.
//
// Example:
//
//	ioc.RegisterType[Logger, *ConsoleLogger](container)
func RegisterType[S any, I any](c *Container, opts ...RegisterOption) error {
	return c.Register(TypeOf[S](), ImplementedBy(TypeOf[I]()), opts...)
}

// RegisterFunc registers a typed produce callback for service S.
//
// Example:
//
//	ioc.RegisterFunc(container, func(r ioc.DependencyResolver) (Clock, error) {
//	    return systemClock{}, nil
//	})
func RegisterFunc[S any](c *Container, produce func(r DependencyResolver) (S, error), opts ...RegisterOption) error {
	if produce == nil {
		return &ArgumentInvalidError{Argument: "implementation", Reason: "produce function cannot be nil"}
	}
	return c.Register(TypeOf[S](), ProducedBy(func(r DependencyResolver, _ *Registration) (any, error) {
		return produce(r)
	}), opts...)
}

// RegisterInstanceOf registers instance as the singleton for service S.
func RegisterInstanceOf[S any](c *Container, instance S, tag any) error {
	return c.RegisterInstance(TypeOf[S](), instance, tag)
}

// IsRegisteredType reports whether T has an untagged registration.
func IsRegisteredType[T any](c *Container) bool {
	return c.IsRegistered(TypeOf[T](), nil)
}

// CreateInstance builds T through the container's type factory.
func CreateInstance[T any](c *Container, args ...any) (T, error) {
	var zero T
	v, err := c.factory.CreateInstanceWithArgsAndAutoCompletion(TypeOf[T](), args...)
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}
