package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// injectOptions represents parsed options from an inject tag.
type injectOptions struct {
	skip     bool // Don't inject this field
	optional bool // Leave the field zero if the type is not registered
	tag      string
	tagged   bool
}

// parseInjectTag parses an inject struct tag and returns options.
// Supported formats:
//   - `inject:""` - basic injection
//   - `inject:"optional"` - optional injection
//   - `inject:"tag=foo"` - tagged registration
//   - `inject:"optional,tag=foo"` - combined options
//   - `inject:"-"` - never injected
func parseInjectTag(tag string) injectOptions {
	opts := injectOptions{}

	if tag == "-" {
		opts.skip = true
		return opts
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)

		switch {
		case part == "optional":
			opts.optional = true
		case strings.HasPrefix(part, "tag="):
			opts.tag = strings.TrimPrefix(part, "tag=")
			opts.tagged = true
		}
	}

	return opts
}

// AutoWire injects dependencies into the tagged fields of an existing struct.
// Fields already holding a non-zero value are left alone.
//
// Supported tag options:
//   - `inject:""` - basic injection (fails if not resolvable)
//   - `inject:"optional"` - optional (skips if not registered)
//   - `inject:"tag=foo"` - uses the registration tagged "foo"
//
// Example:
//
//	type UserController struct {
//	    Logger  Logger      `inject:""`
//	    Cache   Cache       `inject:"optional"`
//	    Primary Database    `inject:"tag=primary"`
//	}
//
//	controller := &UserController{}
//	err := container.AutoWire(controller)
func (c *Container) AutoWire(instance any) error {
	if instance == nil {
		return &ArgumentInvalidError{Argument: "instance", Reason: "instance cannot be nil"}
	}
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return &ArgumentInvalidError{Argument: "instance", Reason: fmt.Sprintf("must be a pointer to struct, got %T", instance)}
	}

	c.mu.Lock()
	defer c.unlock()
	if c.disposed {
		return ErrDisposed
	}
	return c.injectLocked(c.newSession(), instance)
}

// injectLocked fills the inject-tagged fields of a freshly built instance.
func (c *Container) injectLocked(s session, instance any) error {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	elem := v.Elem()
	for _, fi := range c.factory.metadata.fieldsOf(elem.Type()) {
		field := elem.Field(fi.index)
		if !field.IsZero() || !field.CanSet() {
			continue
		}

		var tag any
		if fi.options.tagged {
			tag = fi.options.tag
		}

		resolved, err := s.Resolve(fi.typ, tag)
		if err != nil {
			if _, notRegistered := err.(*TypeNotRegisteredError); notRegistered && fi.options.optional {
				continue
			}
			var cycle *CircularDependencyError
			if errors.As(err, &cycle) {
				return cycle
			}
			return &ConstructionFailedError{
				Type:  v.Type(),
				Cause: fmt.Errorf("failed to inject field %s: %w", fi.name, err),
			}
		}

		field.Set(valueFor(resolved, fi.typ))
	}
	return nil
}
