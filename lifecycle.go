package ioc

import (
	"errors"
	"fmt"
	"reflect"
)

// Initializable represents a service that requires initialization.
// Initialize is called after construction and field injection; an error
// aborts the resolution with a ConstructionFailedError.
//
// Example:
//
//	type Service struct {}
//	func (s *Service) Initialize() error {
//	    return s.setup()
//	}
type Initializable interface {
	Initialize() error
}

// Disposable represents a service that requires cleanup.
// Cached singletons implementing it are disposed by Container.Dispose.
//
// Example:
//
//	type DatabaseConnection struct {}
//	func (d *DatabaseConnection) Dispose() error {
//	    return d.connection.Close()
//	}
type Disposable interface {
	Dispose() error
}

// Dispose tears the container down.
// Cached singletons implementing Disposable are disposed in reverse creation
// order (dependents before their dependencies). Every later call on the
// container fails with ErrDisposed. Dispose is idempotent.
func (c *Container) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	entries := c.store.Instances()
	registrations := c.store.Len()
	c.disposed = true
	c.store.Clear()
	c.factory.reset()
	c.pending = nil
	c.observers = nil
	c.mu.Unlock()

	c.logger.Debug("Container disposing", "registrations", registrations, "instances", len(entries))

	seen := make(map[uintptr]bool)
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		instance := entries[i].Instance
		if c.isSelf(instance) {
			continue
		}
		if v := reflect.ValueOf(instance); v.Kind() == reflect.Ptr {
			if seen[v.Pointer()] {
				continue
			}
			seen[v.Pointer()] = true
		}
		if disposable, ok := instance.(Disposable); ok {
			if err := disposable.Dispose(); err != nil {
				errs = append(errs, fmt.Errorf("disposal error for %T: %w", instance, err))
			}
		}
	}

	if len(errs) > 0 {
		c.logger.Warn("Container disposal encountered errors", "count", len(errs))
	}
	return errors.Join(errs...)
}

// isSelf reports whether instance is one of the container's own services.
func (c *Container) isSelf(instance any) bool {
	switch v := instance.(type) {
	case *Container:
		return v == c
	case *TypeFactory:
		return v == c.factory
	case *dependencyResolver:
		return v == c.resolver
	}
	return false
}
