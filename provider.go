package ioc

import (
	"fmt"
	"reflect"
)

// ServiceProvider is the interface that must be implemented by service providers.
// Service providers group related registrations.
//
// Example:
//
//	type LoggingProvider struct{}
//
//	func (p *LoggingProvider) Register(c *ioc.Container) error {
//	    return ioc.RegisterType[Logger, *ConsoleLogger](c)
//	}
type ServiceProvider interface {
	Register(c *Container) error
}

// BootableProvider is an optional interface for providers that need a boot phase.
// Boot is called by BootProviders, after every provider has registered.
//
// Example:
//
//	func (p *DatabaseProvider) Boot(c *ioc.Container) error {
//	    db, err := ioc.Resolve[Database](c)
//	    if err != nil {
//	        return err
//	    }
//	    return db.Connect()
//	}
type BootableProvider interface {
	ServiceProvider
	Boot(c *Container) error
}

// DeferredProvider is an optional interface for providers that register
// conditionally.
type DeferredProvider interface {
	ServiceProvider
	ShouldRegister(c *Container) bool
}

// providerEntry tracks a registered provider.
type providerEntry struct {
	provider ServiceProvider
	booted   bool
}

// RegisterProvider registers a service provider with the container.
// The provider's Register method is called immediately. A second provider of
// the same type is ignored.
//
// Providers are a bootstrap facility: RegisterProvider and BootProviders must
// not be called concurrently.
//
// Example:
//
//	container.RegisterProvider(&LoggingProvider{})
//	container.RegisterProvider(&DatabaseProvider{})
//	container.BootProviders()
func (c *Container) RegisterProvider(provider ServiceProvider) error {
	if provider == nil {
		return &ArgumentInvalidError{Argument: "provider", Reason: "provider cannot be nil"}
	}

	if deferred, ok := provider.(DeferredProvider); ok && !deferred.ShouldRegister(c) {
		c.logger.Debug("Provider skipped", "provider", fmt.Sprintf("%T", provider))
		return nil
	}

	providerType := reflect.TypeOf(provider)
	for _, entry := range c.providers {
		if reflect.TypeOf(entry.provider) == providerType {
			return nil
		}
	}

	if err := provider.Register(c); err != nil {
		return fmt.Errorf("provider registration failed: %w", err)
	}

	c.providers = append(c.providers, &providerEntry{provider: provider})
	c.logger.Debug("Provider registered", "provider", providerType.String())
	return nil
}

// BootProviders calls Boot on every registered provider implementing
// BootableProvider that has not booted yet.
func (c *Container) BootProviders() error {
	for _, entry := range c.providers {
		if entry.booted {
			continue
		}

		if bootable, ok := entry.provider.(BootableProvider); ok {
			if err := bootable.Boot(c); err != nil {
				return fmt.Errorf("provider boot failed: %w", err)
			}
		}
		entry.booted = true
	}

	return nil
}

// Providers returns the registered providers in registration order.
func (c *Container) Providers() []ServiceProvider {
	providers := make([]ServiceProvider, len(c.providers))
	for i, entry := range c.providers {
		providers[i] = entry.provider
	}
	return providers
}
