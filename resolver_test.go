package ioc

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type CircularA struct {
	B *CircularB
}

type CircularB struct {
	A *CircularA
}

func NewCircularA(b *CircularB) *CircularA {
	return &CircularA{B: b}
}

func NewCircularB(a *CircularA) *CircularB {
	return &CircularB{A: a}
}

type selfReferencing struct{}

func newSelfReferencing(*selfReferencing) *selfReferencing {
	return &selfReferencing{}
}

func newCircularContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()
	c := newTestContainer(opts...)
	require.NoError(t, c.Factory().AddConstructor(NewCircularA))
	require.NoError(t, c.Factory().AddConstructor(NewCircularB))
	return c
}

func TestCircularDependency_Chain(t *testing.T) {
	c := newCircularContainer(t)

	_, err := Resolve[*CircularA](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t,
		[]reflect.Type{TypeOf[*CircularA](), TypeOf[*CircularB](), TypeOf[*CircularA]()},
		cycle.Types())
	assert.Equal(t, "circular dependency detected: *ioc.CircularA => *ioc.CircularB => *ioc.CircularA", err.Error())
}

func TestCircularDependency_Registered(t *testing.T) {
	c := newCircularContainer(t, WithAutoResolveConcrete(false))
	require.NoError(t, RegisterType[*CircularA, *CircularA](c))
	require.NoError(t, RegisterType[*CircularB, *CircularB](c))

	_, err := Resolve[*CircularB](c)

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t,
		[]reflect.Type{TypeOf[*CircularB](), TypeOf[*CircularA](), TypeOf[*CircularB]()},
		cycle.Types())
}

func TestCircularDependency_SelfReference(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Factory().AddConstructor(newSelfReferencing))

	_, err := Resolve[*selfReferencing](c)
	require.Error(t, err)

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []reflect.Type{TypeOf[*selfReferencing](), TypeOf[*selfReferencing]()}, cycle.Types())
}

func TestCircularDependency_ThroughProduceFunc(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterFunc(c, func(r DependencyResolver) (Logger, error) {
		if _, err := r.Resolve(TypeOf[Database](), nil); err != nil {
			return nil, err
		}
		return &ConsoleLogger{}, nil
	}))
	require.NoError(t, RegisterFunc(c, func(r DependencyResolver) (Database, error) {
		if _, err := r.Resolve(TypeOf[Logger](), nil); err != nil {
			return nil, err
		}
		return &MockDB{}, nil
	}))

	_, err := Resolve[Logger](c)

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.NotErrorIs(t, err, ErrConstructionFailed, "cycles are not wrapped")
	assert.Equal(t, []reflect.Type{TypeOf[Logger](), TypeOf[Database](), TypeOf[Logger]()}, cycle.Types())
}

func TestCircularDependency_DoesNotPoisonContainer(t *testing.T) {
	c := newCircularContainer(t)

	_, err := Resolve[*CircularA](c)
	require.Error(t, err)

	v, err := Resolve[*plainStruct](c)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestDependencyResolver_CanResolve(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))
	r := c.Resolver()

	assert.True(t, r.CanResolve(TypeOf[Logger](), nil))
	assert.False(t, r.CanResolve(TypeOf[Logger](), "file"))
	assert.False(t, r.CanResolve(TypeOf[Database](), nil))
	assert.True(t, r.CanResolve(TypeOf[*plainStruct](), nil), "concrete types resolve on the fly")
	assert.False(t, r.CanResolve(nil, nil))
	assert.False(t, r.CanResolve(TypeOf[Logger](), []string{}))
}

func TestDependencyResolver_CanResolveAll(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))
	r := c.Resolver()

	assert.True(t, r.CanResolveAll([]reflect.Type{TypeOf[Logger](), TypeOf[*plainStruct]()}))
	assert.False(t, r.CanResolveAll([]reflect.Type{TypeOf[Logger](), TypeOf[Database]()}))
	assert.True(t, r.CanResolveAll(nil))
}

func TestDependencyResolver_Resolve(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))
	r := c.Resolver()

	log, err := r.Resolve(TypeOf[Logger](), nil)
	require.NoError(t, err)
	assert.Same(t, MustResolve[Logger](c), log)

	_, err = r.Resolve(TypeOf[Database](), nil)
	assert.ErrorIs(t, err, ErrTypeNotRegistered)
}

func TestDependencyResolver_ResolveAllLeavesNilAtFailures(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))

	results := c.Resolver().ResolveAll([]reflect.Type{TypeOf[Logger](), TypeOf[Database]()}, nil)

	require.Len(t, results, 2)
	assert.Same(t, MustResolve[Logger](c), results[0])
	assert.Nil(t, results[1])
}

func TestDependencyResolver_ResolveAllCycleYieldsNil(t *testing.T) {
	c := newCircularContainer(t)

	results := c.Resolver().ResolveAll([]reflect.Type{TypeOf[*CircularA](), TypeOf[*plainStruct]()}, nil)

	require.Len(t, results, 2)
	assert.Nil(t, results[0])
	assert.NotNil(t, results[1])
}

func TestSession_ResolveAllInsideProduceFunc(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))

	type bundle struct {
		parts []any
	}
	require.NoError(t, RegisterFunc(c, func(r DependencyResolver) (*bundle, error) {
		if !r.CanResolveAll([]reflect.Type{TypeOf[Logger]()}) {
			return nil, errors.New("logger missing")
		}
		return &bundle{parts: r.ResolveAll([]reflect.Type{TypeOf[Logger](), TypeOf[Database]()}, nil)}, nil
	}))

	b, err := Resolve[*bundle](c)
	require.NoError(t, err)
	require.Len(t, b.parts, 2)
	assert.NotNil(t, b.parts[0])
	assert.Nil(t, b.parts[1])
}

// resolveWithin resolves T and fails the test when resolution blocks.
func resolveWithin[T any](t *testing.T, c *Container) (T, error) {
	t.Helper()
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := Resolve[T](c)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-time.After(2 * time.Second):
		t.Fatalf("resolving %v did not return", TypeOf[T]())
	}
	var zero T
	return zero, nil
}

type usesResolver struct {
	resolver DependencyResolver
	logger   Logger
}

func newUsesResolver(r DependencyResolver) (*usesResolver, error) {
	v, err := r.Resolve(TypeOf[Logger](), nil)
	if err != nil {
		return nil, err
	}
	return &usesResolver{resolver: r, logger: v.(Logger)}, nil
}

func TestConstructor_ResolvesThroughInjectedResolver(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))
	require.NoError(t, c.Factory().AddConstructor(newUsesResolver))

	u, err := resolveWithin[*usesResolver](t, c)
	require.NoError(t, err)
	require.NotNil(t, u.logger)

	// A resolver kept past construction takes the lock on its own.
	again, err := u.resolver.Resolve(TypeOf[Logger](), nil)
	require.NoError(t, err)
	assert.Same(t, u.logger, again)
	assert.True(t, u.resolver.CanResolve(TypeOf[Logger](), nil))
}

type loopsThroughResolver struct{}

func newLoopsThroughResolver(r DependencyResolver) (*loopsThroughResolver, error) {
	if _, err := r.Resolve(TypeOf[*loopsThroughResolver](), nil); err != nil {
		return nil, err
	}
	return &loopsThroughResolver{}, nil
}

func TestConstructor_InjectedResolverKeepsRequestPath(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Factory().AddConstructor(newLoopsThroughResolver))

	_, err := resolveWithin[*loopsThroughResolver](t, c)
	assert.ErrorIs(t, err, ErrCircularDependency)
}

type selfRegistering struct {
	Locator ServiceLocator `inject:""`

	sawDatabase bool
}

func (s *selfRegistering) Initialize() error {
	if err := s.Locator.Register(TypeOf[Database](), ImplementedBy(TypeOf[*MockDB]())); err != nil {
		return err
	}
	s.sawDatabase = s.Locator.IsRegistered(TypeOf[Database](), nil)
	return nil
}

func TestFieldInjection_ServiceLocatorRunsUnderHeldLock(t *testing.T) {
	c := newTestContainer()
	var events []TypeRegisteredEvent
	c.OnTypeRegistered(func(e TypeRegisteredEvent) { events = append(events, e) })

	s, err := resolveWithin[*selfRegistering](t, c)
	require.NoError(t, err)
	assert.True(t, s.sawDatabase)
	assert.True(t, IsRegisteredType[Database](c))

	require.Len(t, events, 1)
	assert.Equal(t, TypeOf[Database](), events[0].DeclaringType)

	// Outside construction the locator goes through the container.
	assert.NotEmpty(t, s.Locator.Registrations())
	assert.Len(t, s.Locator.ResolveAll(TypeOf[Database]()), 1)
}

type usesFactory struct {
	built *plainStruct
}

func newUsesFactory(f ConstructorResolver) (*usesFactory, error) {
	v, err := f.CreateInstanceWithArgs(TypeOf[*plainStruct]())
	if err != nil {
		return nil, err
	}
	return &usesFactory{built: v.(*plainStruct)}, nil
}

func TestConstructor_UsesInjectedConstructorResolver(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Factory().AddConstructor(newUsesFactory))

	u, err := resolveWithin[*usesFactory](t, c)
	require.NoError(t, err)
	assert.NotNil(t, u.built)
}

type needsContainer struct {
	c *Container
}

func newNeedsContainer(c *Container) *needsContainer {
	return &needsContainer{c: c}
}

type needsFactoryField struct {
	Factory *TypeFactory `inject:""`
}

func TestConstructor_ContainerDependencyIsRefused(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Factory().AddConstructor(newNeedsContainer))

	_, err := resolveWithin[*needsContainer](t, c)
	assert.ErrorIs(t, err, ErrContainerDependency)
	assert.ErrorIs(t, err, ErrConstructionFailed)

	_, err = resolveWithin[*needsFactoryField](t, c)
	assert.ErrorIs(t, err, ErrContainerDependency)

	// Asked for directly, the container is still its own service.
	self, err := Resolve[*Container](c)
	require.NoError(t, err)
	assert.Same(t, c, self)
}
