package ioc

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/toutaio/toutago-ioc/logger"
	"github.com/toutaio/toutago-ioc/registry"
)

// ServiceLocator is the registration and lookup surface of a container.
// A container registers itself under this interface during bootstrap.
type ServiceLocator interface {
	Register(service reflect.Type, impl ImplementationSource, opts ...RegisterOption) error
	RegisterInstance(service reflect.Type, instance any, tag any) error
	IsRegistered(service reflect.Type, tag any) bool
	Resolve(service reflect.Type, tag any) (any, error)
	ResolveAll(service reflect.Type) []any
	Remove(service reflect.Type, tag any)
	RemoveAll(service reflect.Type)
	OnTypeRegistered(fn func(TypeRegisteredEvent)) (cancel func())
	Registrations() []Registration
}

type observer struct {
	id uint64
	fn func(TypeRegisteredEvent)
}

// Container is the dependency injection container.
// It manages registrations and resolves dependencies in a thread-safe manner.
//
// All state is guarded by a single mutex. Resolution holds it for the whole
// top-level call. Constructors, produce callbacks and the missing type
// handler reach the container through the DependencyResolver, ServiceLocator
// or ConstructorResolver they are given, which run under the held lock.
// Calling a *Container captured from elsewhere inside a constructor deadlocks.
type Container struct {
	mu       sync.Mutex
	id       string
	store    *registry.Store
	factory  *TypeFactory
	resolver *dependencyResolver

	observers      []observer
	nextObserverID uint64
	pending        []TypeRegisteredEvent

	providers []*providerEntry

	logger              logger.Logger
	autoResolveConcrete bool
	missingType         MissingTypeHandler
	disposed            bool

	scope *scope
}

var _ ServiceLocator = (*Container)(nil)

// New creates a new container.
// The container registers itself as ServiceLocator and *Container, its
// DependencyResolver and its TypeFactory as ConstructorResolver and
// *TypeFactory. New panics if an option fails.
//
// Example:
//
//	container := ioc.New()
//	// or with options:
//	container := ioc.New(ioc.WithDebug(), ioc.WithAutoResolveConcrete(false))
func New(options ...Option) *Container {
	c := &Container{
		id:                  uuid.NewString(),
		store:               registry.New(),
		logger:              logger.NewSlogAdapter(slog.Default()),
		autoResolveConcrete: true,
	}
	c.factory = newTypeFactory(c)
	c.resolver = &dependencyResolver{c: c}

	for _, opt := range options {
		if err := opt(c); err != nil {
			panic(fmt.Sprintf("failed to apply option: %v", err))
		}
	}
	c.logger = c.logger.WithComponent("ioc").With("container", c.id)

	c.bootstrap()
	return c
}

func (c *Container) bootstrap() {
	self := []struct {
		service  reflect.Type
		instance any
	}{
		{TypeOf[ServiceLocator](), c},
		{TypeOf[*Container](), c},
		{TypeOf[DependencyResolver](), c.resolver},
		{TypeOf[ConstructorResolver](), c.factory},
		{TypeOf[*TypeFactory](), c.factory},
	}
	for _, s := range self {
		if err := c.RegisterInstance(s.service, s.instance, nil); err != nil {
			panic(fmt.Sprintf("failed to bootstrap container: %v", err))
		}
	}
	c.logger.Debug("Container created", "auto_resolve_concrete", c.autoResolveConcrete)
}

// ID returns the unique id of the container, used in its log records.
func (c *Container) ID() string {
	return c.id
}

// Factory returns the container's type factory.
func (c *Container) Factory() *TypeFactory {
	return c.factory
}

// Resolver returns the container's DependencyResolver.
func (c *Container) Resolver() DependencyResolver {
	return c.resolver
}

// Register adds a registration for service.
// By default the registration is a singleton without tag, and an existing
// registration for the same identity is replaced.
//
// Example:
//
//	c.Register(ioc.TypeOf[Logger](), ioc.ImplementedBy(ioc.TypeOf[*ConsoleLogger]()))
//	c.Register(ioc.TypeOf[Logger](), ioc.ImplementedBy(ioc.TypeOf[*FileLogger]()), ioc.WithTag("file"))
//
// Returns an error if:
//   - service or the implementation is nil
//   - the tag is not comparable
//   - the implementation is an interface or is not assignable to service
func (c *Container) Register(service reflect.Type, impl ImplementationSource, opts ...RegisterOption) error {
	o := applyRegisterOptions(opts)
	reg, err := newRegistration(service, impl, o)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.registerLocked(reg, o.overwrite)
	return nil
}

// RegisterInstance registers an existing instance as a singleton for service.
// The instance must be assignable to service.
//
// Example:
//
//	c.RegisterInstance(ioc.TypeOf[*Config](), cfg, nil)
func (c *Container) RegisterInstance(service reflect.Type, instance any, tag any) error {
	reg, err := newInstanceRegistration(service, instance, tag)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}
	return c.registerInstanceLocked(reg, instance)
}

// IsRegistered reports whether service under tag has a registration.
// A closed generic type whose definition has an open registration counts as
// registered; the closed registration is created on the spot.
func (c *Container) IsRegistered(service reflect.Type, tag any) bool {
	if service == nil || checkTag(tag) != nil {
		return false
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return false
	}
	_, ok := c.lookupLocked(ServiceIdentity{Type: service, Tag: tag})
	return ok
}

// Resolve returns an instance of service under tag.
//
// Cached singletons are returned as is. Otherwise the registration produces
// an instance, cached when the lifecycle is Singleton. Unregistered concrete
// types are built on the fly unless WithAutoResolveConcrete(false) is set.
//
// Example:
//
//	v, err := c.Resolve(ioc.TypeOf[Logger](), nil)
//	if err != nil {
//	    return err
//	}
//	logger := v.(Logger)
func (c *Container) Resolve(service reflect.Type, tag any) (any, error) {
	if service == nil {
		return nil, &ArgumentInvalidError{Argument: "service", Reason: "service type cannot be nil"}
	}
	if err := checkTag(tag); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return c.resolveLocked(c.newSession(), ServiceIdentity{Type: service, Tag: tag})
}

// ResolveAll resolves every registration of service, whatever its tag, in
// registration order. Registrations that fail to resolve are skipped.
//
// Example:
//
//	for _, v := range c.ResolveAll(ioc.TypeOf[Logger]()) {
//	    v.(Logger).Log("message")
//	}
func (c *Container) ResolveAll(service reflect.Type) []any {
	if service == nil {
		return nil
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return nil
	}

	return c.resolveAllLocked(c.newSession(), service)
}

// Remove deletes the registration of service under tag and its cached instance.
func (c *Container) Remove(service reflect.Type, tag any) {
	if service == nil || checkTag(tag) != nil {
		return
	}

	c.mu.Lock()
	defer c.unlock()
	c.removeLocked(ServiceIdentity{Type: service, Tag: tag})
}

// RemoveAll deletes every registration of service, whatever its tag.
func (c *Container) RemoveAll(service reflect.Type) {
	if service == nil {
		return
	}

	c.mu.Lock()
	defer c.unlock()
	c.removeAllLocked(service)
}

// OnTypeRegistered subscribes fn to registration events. Events are
// delivered after the container lock is released, so fn may use the
// container. The returned function cancels the subscription.
func (c *Container) OnTypeRegistered(fn func(TypeRegisteredEvent)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.subscribeLocked(fn)
	c.mu.Unlock()
	return c.subscription(id, nil)
}

// Registrations returns a snapshot of every registration, in registration order.
func (c *Container) Registrations() []Registration {
	c.mu.Lock()
	defer c.unlock()
	return c.registrationsLocked()
}

// Validate checks that every registration with a known implementation has a
// constructor whose parameters can all be resolved. Nothing is built.
//
// Example:
//
//	if err := container.Validate(); err != nil {
//	    log.Fatalf("container misconfigured: %v", err)
//	}
func (c *Container) Validate() error {
	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}

	var errs []error
	s := c.newSession()
	for _, reg := range c.store.All() {
		if reg.IsLateBound() {
			continue
		}
		if !c.factory.satisfiableLocked(s, reg.ImplementingType, reg.Tag) {
			errs = append(errs, &TypeNotRegisteredError{
				Type:  reg.DeclaringType,
				Tag:   reg.Tag,
				Cause: fmt.Errorf("%w for %v", ErrNoMatchingConstructor, reg.ImplementingType),
			})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// unlock releases the container lock and then delivers the registration
// events queued while it was held.
func (c *Container) unlock() {
	if c.scope != nil {
		c.scope.done.Store(true)
		c.scope = nil
	}
	events := c.pending
	c.pending = nil
	var observers []observer
	if len(events) > 0 {
		observers = append(observers, c.observers...)
	}
	c.mu.Unlock()

	for _, e := range events {
		for _, o := range observers {
			o.fn(e)
		}
	}
}

// registerLocked stores reg, clears the factory caches and queues the event.
func (c *Container) registerLocked(reg *Registration, overwrite bool) bool {
	if !c.store.Upsert(reg, overwrite) {
		c.logger.Debug("Existing registration kept", "type", reg.DeclaringType.String(), "tag", reg.Tag)
		return false
	}
	c.factory.invalidate()
	c.pending = append(c.pending, TypeRegisteredEvent{
		DeclaringType:    reg.DeclaringType,
		ImplementingType: reg.ImplementingType,
		Tag:              reg.Tag,
		Lifecycle:        reg.Lifecycle,
	})
	c.logger.Debug("Service registered",
		"type", reg.DeclaringType.String(),
		"tag", reg.Tag,
		"lifecycle", reg.Lifecycle.String(),
	)
	return true
}

func (c *Container) registerInstanceLocked(reg *Registration, instance any) error {
	c.registerLocked(reg, true)
	return c.store.StoreInstance(reg.Identity(), instance)
}

func (c *Container) resolveAllLocked(s session, service reflect.Type) []any {
	regs := c.store.ByDeclaringType(service)
	instances := make([]any, 0, len(regs))
	for _, reg := range regs {
		instance, err := c.resolveLocked(s, reg.Identity())
		if err != nil {
			c.logger.Debug("Skipping registration", "type", service.String(), "tag", reg.Tag, "error", err)
			continue
		}
		instances = append(instances, instance)
	}
	return instances
}

func (c *Container) removeLocked(id ServiceIdentity) {
	if c.store.Remove(id) {
		c.factory.invalidate()
		c.logger.Debug("Service removed", "type", id.Type.String(), "tag", id.Tag)
	}
}

func (c *Container) removeAllLocked(service reflect.Type) {
	if n := c.store.RemoveAll(service); n > 0 {
		c.factory.invalidate()
		c.logger.Debug("Services removed", "type", service.String(), "count", n)
	}
}

func (c *Container) subscribeLocked(fn func(TypeRegisteredEvent)) uint64 {
	c.nextObserverID++
	id := c.nextObserverID
	c.observers = append(c.observers, observer{id: id, fn: fn})
	return id
}

// subscription returns the cancel function of observer id. held reports
// whether the caller already holds the container lock.
func (c *Container) subscription(id uint64, held func() bool) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if held == nil || !held() {
				c.mu.Lock()
				defer c.mu.Unlock()
			}
			for i, o := range c.observers {
				if o.id == id {
					c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Container) registrationsLocked() []Registration {
	regs := c.store.All()
	snapshot := make([]Registration, len(regs))
	for i, reg := range regs {
		snapshot[i] = *reg
	}
	return snapshot
}

// lookupLocked finds the registration of id, closing an open generic
// registration when needed.
func (c *Container) lookupLocked(id ServiceIdentity) (*Registration, bool) {
	if reg, ok := c.store.Get(id); ok {
		return reg, true
	}
	return c.closeOpenLocked(id)
}

// canResolveLocked is the existence check used when choosing constructors.
// It never builds anything and never consults the missing type handler.
func (c *Container) canResolveLocked(id ServiceIdentity) bool {
	if c.store.Has(id) {
		return true
	}
	if _, ok := c.closeOpenLocked(id); ok {
		return true
	}
	return c.autoResolveConcrete && c.factory.canConstructLocked(id.Type)
}

func (c *Container) resolveLocked(s session, id ServiceIdentity) (any, error) {
	if instance, ok := c.store.Instance(id); ok {
		if !s.path.IsEmpty() && c.isSelf(instance) {
			return s.bound(id.Type)
		}
		return instance, nil
	}

	reg, ok := c.lookupLocked(id)
	if !ok {
		reg, ok = c.missingTypeLocked(s, id)
	}

	if !ok {
		if !c.autoResolveConcrete || !c.factory.canConstructLocked(id.Type) {
			return nil, &TypeNotRegisteredError{Type: id.Type, Tag: id.Tag}
		}
		path, err := s.path.Branch(id.Type, id.Tag)
		if err != nil {
			return nil, err
		}
		instance, err := c.factory.constructLocked(s.at(path), id.Type, id.Tag, nil, true)
		if errors.Is(err, ErrNoMatchingConstructor) {
			return nil, &TypeNotRegisteredError{Type: id.Type, Tag: id.Tag, Cause: err}
		}
		return instance, err
	}

	path, err := s.path.Branch(id.Type, id.Tag)
	if err != nil {
		return nil, err
	}
	instance, err := c.produceLocked(s.at(path), reg)
	if err != nil {
		return nil, err
	}

	if reg.Lifecycle == Singleton {
		if err := c.store.StoreInstance(reg.Identity(), instance); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// produceLocked builds an instance for reg, through its produce callback or
// the type factory.
func (c *Container) produceLocked(s session, reg *Registration) (any, error) {
	if !reg.IsLateBound() {
		instance, err := c.factory.constructLocked(s, reg.ImplementingType, reg.Tag, nil, true)
		if errors.Is(err, ErrNoMatchingConstructor) {
			return nil, &TypeNotRegisteredError{Type: reg.DeclaringType, Tag: reg.Tag, Cause: err}
		}
		return instance, err
	}
	produce, ok := reg.Produce.(ProduceFunc)
	if !ok {
		return nil, &ConstructionFailedError{
			Type:  reg.DeclaringType,
			Cause: fmt.Errorf("unsupported produce callback %T", reg.Produce),
		}
	}

	instance, err := produce(s, reg)
	if err != nil {
		var cycle *CircularDependencyError
		if errors.As(err, &cycle) {
			return nil, cycle
		}
		var failed *ConstructionFailedError
		if errors.As(err, &failed) {
			return nil, err
		}
		return nil, &ConstructionFailedError{Type: reg.DeclaringType, Cause: err}
	}
	if instance != nil && !reflect.TypeOf(instance).AssignableTo(reg.DeclaringType) {
		return nil, &ConstructionFailedError{
			Type:  reg.DeclaringType,
			Cause: fmt.Errorf("produced value of type %T is not assignable", instance),
		}
	}
	return instance, nil
}

// missingTypeLocked asks the missing type handler for a registration.
func (c *Container) missingTypeLocked(s session, id ServiceIdentity) (*Registration, bool) {
	if c.missingType == nil {
		return nil, false
	}
	impl, lifecycle, ok := c.missingType(s, id)
	if !ok {
		return nil, false
	}

	reg, err := newRegistration(id.Type, impl, registerOptions{tag: id.Tag, lifecycle: lifecycle, overwrite: true})
	if err != nil {
		c.logger.Warn("Missing type handler returned an invalid registration", "type", id.Type.String(), "error", err)
		return nil, false
	}
	c.registerLocked(reg, true)
	return reg, true
}

// newInstanceRegistration validates a RegisterInstance request.
func newInstanceRegistration(service reflect.Type, instance any, tag any) (*Registration, error) {
	if service == nil {
		return nil, &ArgumentInvalidError{Argument: "service", Reason: "service type cannot be nil"}
	}
	if instance == nil {
		return nil, &ArgumentInvalidError{Argument: "instance", Reason: "instance cannot be nil"}
	}
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	instanceType := reflect.TypeOf(instance)
	if !instanceType.AssignableTo(service) {
		return nil, &InvalidRegistrationError{
			Type:     service,
			Reason:   fmt.Sprintf("instance of type %v is not assignable", instanceType),
			Argument: true,
		}
	}

	return &Registration{
		DeclaringType:    service,
		ImplementingType: instanceType,
		Tag:              tag,
		Lifecycle:        Singleton,
		Produce: ProduceFunc(func(DependencyResolver, *Registration) (any, error) {
			return instance, nil
		}),
	}, nil
}
