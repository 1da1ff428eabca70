package ioc

import (
	"errors"
	"os"

	"github.com/toutaio/toutago-ioc/logger"
)

// Option is a function that configures a Container.
type Option func(*Container) error

// MissingTypeHandler is consulted when an identity has no registration.
// Returning ok registers the supplied implementation under the identity
// before it is resolved.
//
// The handler runs under the container lock. It may look up other services
// through r, which is bound to the resolution in flight; calling the
// container itself deadlocks.
type MissingTypeHandler func(r DependencyResolver, id ServiceIdentity) (impl ImplementationSource, lifecycle Lifecycle, ok bool)

// WithLogger sets the logger used by the container.
func WithLogger(l logger.Logger) Option {
	return func(c *Container) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// WithDebug logs every registration and resolution at debug level to stderr.
func WithDebug() Option {
	return func(c *Container) error {
		c.logger = logger.New(os.Stderr, "text", "debug")
		return nil
	}
}

// WithAutoResolveConcrete controls whether unregistered concrete types are
// constructed on the fly. It is enabled by default.
func WithAutoResolveConcrete(enabled bool) Option {
	return func(c *Container) error {
		c.autoResolveConcrete = enabled
		return nil
	}
}

// WithMissingTypeHandler installs a fallback for unregistered identities.
func WithMissingTypeHandler(h MissingTypeHandler) Option {
	return func(c *Container) error {
		if h == nil {
			return errors.New("missing type handler cannot be nil")
		}
		c.missingType = h
		return nil
	}
}
