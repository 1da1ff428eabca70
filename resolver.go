package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/toutaio/toutago-ioc/requestpath"
)

// DependencyResolver is the narrow read-only view used by constructors and
// produce callbacks to pull dependencies.
type DependencyResolver interface {
	// CanResolve reports whether t under tag can be produced.
	CanResolve(t reflect.Type, tag any) bool

	// CanResolveAll reports whether every type can be produced untagged.
	CanResolveAll(types []reflect.Type) bool

	// Resolve returns an instance of t under tag.
	Resolve(t reflect.Type, tag any) (any, error)

	// ResolveAll resolves every type under tag. Failed positions hold nil.
	ResolveAll(types []reflect.Type, tag any) []any
}

var (
	dependencyResolverType  = TypeOf[DependencyResolver]()
	serviceLocatorType      = TypeOf[ServiceLocator]()
	constructorResolverType = TypeOf[ConstructorResolver]()
)

// dependencyResolver is the container's public DependencyResolver. Each call
// takes the container lock for its whole duration.
type dependencyResolver struct {
	c *Container
}

func (r *dependencyResolver) CanResolve(t reflect.Type, tag any) bool {
	if t == nil || checkTag(tag) != nil {
		return false
	}
	c := r.c
	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return false
	}
	return c.newSession().CanResolve(t, tag)
}

func (r *dependencyResolver) CanResolveAll(types []reflect.Type) bool {
	c := r.c
	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return false
	}
	return c.newSession().CanResolveAll(types)
}

func (r *dependencyResolver) Resolve(t reflect.Type, tag any) (any, error) {
	return r.c.Resolve(t, tag)
}

func (r *dependencyResolver) ResolveAll(types []reflect.Type, tag any) []any {
	c := r.c
	results := make([]any, len(types))
	if checkTag(tag) != nil {
		return results
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return results
	}

	for i, t := range types {
		if t == nil {
			continue
		}
		instance, err := c.resolveLocked(c.newSession(), ServiceIdentity{Type: t, Tag: tag})
		if err != nil {
			if errors.Is(err, ErrCircularDependency) {
				c.logger.Warn("Circular dependency in batch resolution", "type", t.String(), "error", err)
			} else {
				c.logger.Debug("Batch resolution left a position empty", "type", t.String(), "error", err)
			}
			continue
		}
		results[i] = instance
	}
	return results
}

// scope spans one hold of the container lock. Sessions created under the
// lock share it and fall back to the locking entry points once it is done.
type scope struct {
	done atomic.Bool
}

// session is a resolution in flight. It runs with the container lock held and
// carries the request path used for cycle detection. Produce callbacks
// receive the session as their DependencyResolver, and constructors asking
// for a DependencyResolver get it too.
//
// A session kept past its call goes through the locking entry points. While
// the call runs it must only be used from the goroutine running it.
type session struct {
	c     *Container
	path  requestpath.Path
	scope *scope
}

func (c *Container) newSession() session {
	if c.scope == nil {
		c.scope = &scope{}
	}
	return session{c: c, scope: c.scope}
}

// live reports whether the call that created the session still holds the lock.
func (s session) live() bool {
	return !s.scope.done.Load()
}

// at returns a copy of the session positioned at path.
func (s session) at(path requestpath.Path) session {
	s.path = path
	return s
}

// bound returns the view of a container service handed to a service under
// construction. The views run under the lock already held; the container and
// its factory cannot be wrapped and are refused.
func (s session) bound(service reflect.Type) (any, error) {
	switch service {
	case dependencyResolverType:
		return s, nil
	case serviceLocatorType:
		return sessionLocator{s: s}, nil
	case constructorResolverType:
		return sessionFactory{s: s}, nil
	}
	return nil, &ConstructionFailedError{
		Type:  service,
		Cause: fmt.Errorf("%w: depend on ServiceLocator, DependencyResolver or ConstructorResolver", ErrContainerDependency),
	}
}

func (s session) CanResolve(t reflect.Type, tag any) bool {
	if !s.live() {
		return s.c.resolver.CanResolve(t, tag)
	}
	if t == nil || checkTag(tag) != nil {
		return false
	}
	return s.c.canResolveLocked(ServiceIdentity{Type: t, Tag: tag})
}

func (s session) CanResolveAll(types []reflect.Type) bool {
	if !s.live() {
		return s.c.resolver.CanResolveAll(types)
	}
	for _, t := range types {
		if !s.CanResolve(t, nil) {
			return false
		}
	}
	return true
}

func (s session) Resolve(t reflect.Type, tag any) (any, error) {
	if !s.live() {
		return s.c.Resolve(t, tag)
	}
	if t == nil {
		return nil, &ArgumentInvalidError{Argument: "type", Reason: "type cannot be nil"}
	}
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	return s.c.resolveLocked(s, ServiceIdentity{Type: t, Tag: tag})
}

func (s session) ResolveAll(types []reflect.Type, tag any) []any {
	if !s.live() {
		return s.c.resolver.ResolveAll(types, tag)
	}
	results := make([]any, len(types))
	for i, t := range types {
		instance, err := s.Resolve(t, tag)
		if err != nil {
			s.c.logger.Debug("Batch resolution left a position empty", "type", typeString(t), "error", err)
			continue
		}
		results[i] = instance
	}
	return results
}

// resolvePreferringTag resolves a constructor parameter under tag when such a
// registration exists, and untagged otherwise.
func (s session) resolvePreferringTag(t reflect.Type, tag any) (any, error) {
	if tag != nil && s.CanResolve(t, tag) {
		return s.Resolve(t, tag)
	}
	return s.Resolve(t, nil)
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

var (
	_ DependencyResolver  = session{}
	_ ServiceLocator      = sessionLocator{}
	_ ConstructorResolver = sessionFactory{}
)

// sessionLocator is the ServiceLocator handed to services under construction.
type sessionLocator struct {
	s session
}

func (l sessionLocator) Register(service reflect.Type, impl ImplementationSource, opts ...RegisterOption) error {
	if !l.s.live() {
		return l.s.c.Register(service, impl, opts...)
	}
	o := applyRegisterOptions(opts)
	reg, err := newRegistration(service, impl, o)
	if err != nil {
		return err
	}
	l.s.c.registerLocked(reg, o.overwrite)
	return nil
}

func (l sessionLocator) RegisterInstance(service reflect.Type, instance any, tag any) error {
	if !l.s.live() {
		return l.s.c.RegisterInstance(service, instance, tag)
	}
	reg, err := newInstanceRegistration(service, instance, tag)
	if err != nil {
		return err
	}
	return l.s.c.registerInstanceLocked(reg, instance)
}

func (l sessionLocator) IsRegistered(service reflect.Type, tag any) bool {
	if !l.s.live() {
		return l.s.c.IsRegistered(service, tag)
	}
	if service == nil || checkTag(tag) != nil {
		return false
	}
	_, ok := l.s.c.lookupLocked(ServiceIdentity{Type: service, Tag: tag})
	return ok
}

func (l sessionLocator) Resolve(service reflect.Type, tag any) (any, error) {
	return l.s.Resolve(service, tag)
}

func (l sessionLocator) ResolveAll(service reflect.Type) []any {
	if !l.s.live() {
		return l.s.c.ResolveAll(service)
	}
	if service == nil {
		return nil
	}
	return l.s.c.resolveAllLocked(l.s, service)
}

func (l sessionLocator) Remove(service reflect.Type, tag any) {
	if !l.s.live() {
		l.s.c.Remove(service, tag)
		return
	}
	if service == nil || checkTag(tag) != nil {
		return
	}
	l.s.c.removeLocked(ServiceIdentity{Type: service, Tag: tag})
}

func (l sessionLocator) RemoveAll(service reflect.Type) {
	if !l.s.live() {
		l.s.c.RemoveAll(service)
		return
	}
	if service == nil {
		return
	}
	l.s.c.removeAllLocked(service)
}

func (l sessionLocator) OnTypeRegistered(fn func(TypeRegisteredEvent)) (cancel func()) {
	if !l.s.live() {
		return l.s.c.OnTypeRegistered(fn)
	}
	if fn == nil {
		return func() {}
	}
	return l.s.c.subscription(l.s.c.subscribeLocked(fn), l.s.live)
}

func (l sessionLocator) Registrations() []Registration {
	if !l.s.live() {
		return l.s.c.Registrations()
	}
	return l.s.c.registrationsLocked()
}

// sessionFactory is the ConstructorResolver handed to services under
// construction.
type sessionFactory struct {
	s session
}

func (f sessionFactory) CreateInstance(t reflect.Type) (any, error) {
	return f.create(t, nil, nil, true)
}

func (f sessionFactory) CreateInstanceWithTag(t reflect.Type, tag any) (any, error) {
	return f.create(t, tag, nil, true)
}

func (f sessionFactory) CreateInstanceWithArgs(t reflect.Type, args ...any) (any, error) {
	return f.create(t, nil, args, false)
}

func (f sessionFactory) CreateInstanceWithArgsAndAutoCompletion(t reflect.Type, args ...any) (any, error) {
	return f.create(t, nil, args, true)
}

func (f sessionFactory) create(t reflect.Type, tag any, args []any, autoComplete bool) (any, error) {
	factory := f.s.c.factory
	if !f.s.live() {
		return factory.create(t, tag, args, autoComplete)
	}
	return factory.createLocked(f.s, t, tag, args, autoComplete)
}
