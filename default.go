package ioc

import "sync"

var (
	defaultMu        sync.Mutex
	defaultContainer *Container
)

// SetDefault installs c as the process-wide default container.
// It fails with ErrDefaultAlreadySet when a default exists; call
// ClearDefault first to replace it.
func SetDefault(c *Container) error {
	if c == nil {
		return &ArgumentInvalidError{Argument: "container", Reason: "container cannot be nil"}
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultContainer != nil {
		return ErrDefaultAlreadySet
	}
	defaultContainer = c
	return nil
}

// Default returns the default container, if one was set.
func Default() (*Container, bool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultContainer, defaultContainer != nil
}

// ClearDefault removes the default container. The container itself is not
// disposed.
func ClearDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultContainer = nil
}
