package ioc

import (
	"fmt"
	"reflect"
)

// ConstructorFunc is a function registered with TypeFactory.AddConstructor.
// Supported signatures:
//   - func(Dep1, Dep2, ...) T
//   - func(Dep1, Dep2, ...) (T, error)
//
// A constructor may return an error matching ErrArgumentMismatch to reject
// its arguments; the factory then tries the next candidate.
type ConstructorFunc interface{}

// ConstructorOption configures a constructor in the type factory catalogue.
type ConstructorOption func(*constructorInfo)

// Preferred marks a constructor to win ties against constructors of the
// same arity.
func Preferred() ConstructorOption {
	return func(info *constructorInfo) {
		info.preferred = true
	}
}

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	catchAllType = reflect.TypeOf((*interface{})(nil)).Elem()
)

// constructorInfo holds metadata about a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	paramTypes   []reflect.Type
	returnsError bool
	returnType   reflect.Type
	numParams    int

	preferred bool
	// catchAll counts parameters of the empty interface type.
	catchAll int
	// implicit constructors allocate the zero value of returnType.
	implicit bool
	order    int
}

// parseConstructor analyzes a constructor function and extracts metadata.
func parseConstructor(constructor ConstructorFunc) (*constructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", fnType.Kind())
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic constructors are not supported")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d return values", numOut)
	}

	returnType := fnType.Out(0)
	if returnType.Kind() == reflect.Interface {
		return nil, fmt.Errorf("constructor must return a concrete type, got interface %v", returnType)
	}

	returnsError := false
	if numOut == 2 {
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		returnsError = true
	}

	numParams := fnType.NumIn()
	paramTypes := make([]reflect.Type, numParams)
	catchAll := 0
	for i := 0; i < numParams; i++ {
		paramTypes[i] = fnType.In(i)
		if paramTypes[i] == catchAllType {
			catchAll++
		}
	}

	return &constructorInfo{
		fn:           fnValue,
		paramTypes:   paramTypes,
		returnsError: returnsError,
		returnType:   returnType,
		numParams:    numParams,
		catchAll:     catchAll,
	}, nil
}

// implicitConstructor returns the zero-argument constructor used for struct
// types that have nothing in the catalogue.
func implicitConstructor(t reflect.Type) (*constructorInfo, bool) {
	switch {
	case t.Kind() == reflect.Struct:
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
	default:
		return nil, false
	}
	return &constructorInfo{returnType: t, implicit: true}, true
}

// call invokes the constructor with already resolved parameters.
func (info *constructorInfo) call(params []reflect.Value) (any, error) {
	if info.implicit {
		if info.returnType.Kind() == reflect.Ptr {
			return reflect.New(info.returnType.Elem()).Interface(), nil
		}
		return reflect.New(info.returnType).Elem().Interface(), nil
	}

	results := info.fn.Call(params)
	if info.returnsError {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
	}
	return results[0].Interface(), nil
}

// accepts reports whether arg can be passed for parameter i.
// A nil argument is only accepted by nillable parameter kinds.
func (info *constructorInfo) accepts(i int, arg any) bool {
	param := info.paramTypes[i]
	if arg == nil {
		switch param.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(arg).AssignableTo(param)
}

// valueFor converts a resolved or supplied argument into a call parameter.
func valueFor(arg any, param reflect.Type) reflect.Value {
	if arg == nil {
		return reflect.Zero(param)
	}
	return reflect.ValueOf(arg)
}
