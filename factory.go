package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/toutaio/toutago-ioc/registry"
)

// ConstructorResolver builds instances of concrete types by selecting the
// best constructor and resolving its remaining parameters from the container.
type ConstructorResolver interface {
	// CreateInstance builds t, resolving every constructor parameter.
	CreateInstance(t reflect.Type) (any, error)

	// CreateInstanceWithTag builds t, preferring registrations under tag
	// when resolving parameters.
	CreateInstanceWithTag(t reflect.Type, tag any) (any, error)

	// CreateInstanceWithArgs builds t from a constructor whose parameters
	// match args exactly.
	CreateInstanceWithArgs(t reflect.Type, args ...any) (any, error)

	// CreateInstanceWithArgsAndAutoCompletion builds t from a constructor
	// whose leading parameters match args; the rest are resolved.
	CreateInstanceWithArgsAndAutoCompletion(t reflect.Type, args ...any) (any, error)
}

// constructorCacheKey identifies a constructor selection: the type, the shape
// of the supplied arguments and whether auto-completion was requested.
type constructorCacheKey struct {
	typ          reflect.Type
	shape        string
	autoComplete bool
}

// TypeFactory is the container's constructor catalogue and instance builder.
// Every method takes the owning container's lock.
type TypeFactory struct {
	c *Container

	constructors map[reflect.Type][]*constructorInfo
	metadata     *metadataCache
	cache        map[constructorCacheKey]*constructorInfo
	typeIDs      map[reflect.Type]int
	order        int
}

func newTypeFactory(c *Container) *TypeFactory {
	return &TypeFactory{
		c:            c,
		constructors: make(map[reflect.Type][]*constructorInfo),
		metadata:     newMetadataCache(),
		cache:        make(map[constructorCacheKey]*constructorInfo),
		typeIDs:      make(map[reflect.Type]int),
	}
}

// AddConstructor adds a constructor to the catalogue of its return type.
// Registering a constructor disables the implicit zero-value constructor of
// that type.
//
// Example:
//
//	factory.AddConstructor(NewUserService)
//	factory.AddConstructor(NewUserServiceWithCache, ioc.Preferred())
func (f *TypeFactory) AddConstructor(constructor ConstructorFunc, opts ...ConstructorOption) error {
	info, err := parseConstructor(constructor)
	if err != nil {
		return &InvalidRegistrationError{Reason: fmt.Sprintf("invalid constructor: %v", err), Argument: true}
	}
	for _, opt := range opts {
		opt(info)
	}

	c := f.c
	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}

	f.order++
	info.order = f.order
	f.constructors[info.returnType] = append(f.constructors[info.returnType], info)
	f.invalidate()

	c.logger.Debug("Constructor added",
		"type", info.returnType.String(),
		"params", info.numParams,
		"preferred", info.preferred,
	)
	return nil
}

// CreateInstance builds t, resolving every constructor parameter.
func (f *TypeFactory) CreateInstance(t reflect.Type) (any, error) {
	return f.create(t, nil, nil, true)
}

// CreateInstanceWithTag builds t, preferring registrations under tag when
// resolving parameters.
func (f *TypeFactory) CreateInstanceWithTag(t reflect.Type, tag any) (any, error) {
	return f.create(t, tag, nil, true)
}

// CreateInstanceWithArgs builds t from a constructor whose parameter list
// matches args exactly.
func (f *TypeFactory) CreateInstanceWithArgs(t reflect.Type, args ...any) (any, error) {
	return f.create(t, nil, args, false)
}

// CreateInstanceWithArgsAndAutoCompletion builds t from a constructor whose
// leading parameters match args. The remaining parameters are resolved.
func (f *TypeFactory) CreateInstanceWithArgsAndAutoCompletion(t reflect.Type, args ...any) (any, error) {
	return f.create(t, nil, args, true)
}

// ClearCache drops the cached constructor selections and metadata.
func (f *TypeFactory) ClearCache() {
	f.c.mu.Lock()
	defer f.c.unlock()
	f.invalidate()
}

func (f *TypeFactory) create(t reflect.Type, tag any, args []any, autoComplete bool) (any, error) {
	c := f.c
	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return f.createLocked(c.newSession(), t, tag, args, autoComplete)
}

func (f *TypeFactory) createLocked(s session, t reflect.Type, tag any, args []any, autoComplete bool) (any, error) {
	if t == nil {
		return nil, &ArgumentInvalidError{Argument: "type", Reason: "type cannot be nil"}
	}
	if err := checkTag(tag); err != nil {
		return nil, err
	}

	instance, err := f.constructLocked(s, t, tag, args, autoComplete)
	if errors.Is(err, ErrNoMatchingConstructor) {
		return nil, &ConstructionFailedError{Type: t, Cause: err}
	}
	return instance, err
}

// constructLocked selects a constructor for t and invokes it.
// The cached selection for the argument shape is tried first. A candidate
// whose parameters cannot be satisfied is skipped. Any other constructor
// failure aborts. When no candidate succeeds the error is
// ErrNoMatchingConstructor.
func (f *TypeFactory) constructLocked(s session, t reflect.Type, tag any, args []any, autoComplete bool) (any, error) {
	path, err := s.path.Branch(t, tag)
	if err != nil {
		return nil, err
	}
	s = s.at(path)

	key := constructorCacheKey{typ: t, shape: f.shapeOf(args), autoComplete: autoComplete}
	var tried *constructorInfo
	if cached, ok := f.cache[key]; ok {
		instance, ok, err := f.tryLocked(s, cached, tag, args, autoComplete)
		if err != nil {
			return nil, err
		}
		if ok {
			return instance, nil
		}
		tried = cached
	}

	meta := f.metadata.typeOf(t, f.constructors[t])
	for _, ctor := range meta.candidates(len(args), autoComplete) {
		if ctor == tried {
			continue
		}
		instance, ok, err := f.tryLocked(s, ctor, tag, args, autoComplete)
		if err != nil {
			return nil, err
		}
		if ok {
			f.cache[key] = ctor
			return instance, nil
		}
	}

	f.c.logger.Debug("No constructor could be satisfied", "type", t.String(), "args", len(args))
	return nil, ErrNoMatchingConstructor
}

// tryLocked invokes one candidate. It reports ok=false with a nil error when
// the candidate does not fit and the next one should be tried.
func (f *TypeFactory) tryLocked(s session, ctor *constructorInfo, tag any, args []any, autoComplete bool) (any, bool, error) {
	if !f.canInvokeLocked(s, ctor, tag, args, autoComplete) {
		return nil, false, nil
	}

	params := make([]reflect.Value, ctor.numParams)
	for i, arg := range args {
		params[i] = valueFor(arg, ctor.paramTypes[i])
	}
	for i := len(args); i < ctor.numParams; i++ {
		param := ctor.paramTypes[i]
		resolved, err := s.resolvePreferringTag(param, tag)
		if err != nil {
			// Only a missing dependency of this constructor rejects it;
			// failures deeper in the graph are reported as they are.
			if _, notRegistered := err.(*TypeNotRegisteredError); notRegistered {
				f.c.logger.Debug("Constructor parameter not resolvable",
					"type", ctor.returnType.String(),
					"param", param.String(),
				)
				return nil, false, nil
			}
			return nil, false, err
		}
		params[i] = valueFor(resolved, param)
	}

	instance, err := ctor.call(params)
	if err != nil {
		if errors.Is(err, ErrArgumentMismatch) {
			return nil, false, nil
		}
		var failed *ConstructionFailedError
		if errors.As(err, &failed) {
			return nil, false, err
		}
		return nil, false, &ConstructionFailedError{Type: ctor.returnType, Cause: err}
	}

	if err := f.c.injectLocked(s, instance); err != nil {
		return nil, false, err
	}
	if initializable, ok := instance.(Initializable); ok {
		if err := initializable.Initialize(); err != nil {
			return nil, false, &ConstructionFailedError{
				Type:  ctor.returnType,
				Cause: fmt.Errorf("initialization failed: %w", err),
			}
		}
	}

	return instance, true, nil
}

// canInvokeLocked checks a candidate without building anything: the explicit
// arguments must fit their parameters and every remaining parameter must be
// resolvable, under tag first and untagged otherwise.
func (f *TypeFactory) canInvokeLocked(s session, ctor *constructorInfo, tag any, args []any, autoComplete bool) bool {
	if len(args) > ctor.numParams || (!autoComplete && len(args) != ctor.numParams) {
		return false
	}
	for i, arg := range args {
		if !ctor.accepts(i, arg) {
			return false
		}
	}
	for i := len(args); i < ctor.numParams; i++ {
		param := ctor.paramTypes[i]
		if tag != nil && s.CanResolve(param, tag) {
			continue
		}
		if !s.CanResolve(param, nil) {
			return false
		}
	}
	return true
}

// canConstructLocked reports whether t has a constructor, registered or implicit.
func (f *TypeFactory) canConstructLocked(t reflect.Type) bool {
	if t == nil || t.Kind() == reflect.Interface {
		return false
	}
	if len(f.constructors[t]) > 0 {
		return true
	}
	_, ok := implicitConstructor(t)
	return ok
}

// satisfiableLocked reports whether at least one constructor of t could be
// invoked with nothing but container-resolved parameters.
func (f *TypeFactory) satisfiableLocked(s session, t reflect.Type, tag any) bool {
	for _, ctor := range f.metadata.typeOf(t, f.constructors[t]).candidates(0, true) {
		if f.canInvokeLocked(s, ctor, tag, nil, true) {
			return true
		}
	}
	return false
}

// closedTypeLocked finds the instantiation of an open implementation with
// the given type arguments among the types of the catalogue.
func (f *TypeFactory) closedTypeLocked(def registry.GenericDefinition, args string) (reflect.Type, bool) {
	for t := range f.constructors {
		if d, a, ok := registry.DefinitionOf(t); ok && d == def && a == args {
			return t, true
		}
	}
	return nil, false
}

// shapeOf interns the argument types into a cache key fragment.
func (f *TypeFactory) shapeOf(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		if arg == nil {
			b.WriteString("nil")
			continue
		}
		t := reflect.TypeOf(arg)
		id, ok := f.typeIDs[t]
		if !ok {
			id = len(f.typeIDs) + 1
			f.typeIDs[t] = id
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// invalidate drops every cached selection. Called on each registration change.
func (f *TypeFactory) invalidate() {
	f.cache = make(map[constructorCacheKey]*constructorInfo)
	f.metadata.invalidate()
}

// reset drops the catalogue as well. Used by Dispose.
func (f *TypeFactory) reset() {
	f.constructors = make(map[reflect.Type][]*constructorInfo)
	f.typeIDs = make(map[reflect.Type]int)
	f.invalidate()
}
