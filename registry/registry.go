// Package registry provides storage for service registrations and realized
// singleton instances, keyed by service identity.
//
// A Store is not safe for concurrent use on its own. The container guards
// every access with its container-wide lock.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Lifecycle defines whether a resolved instance is cached and reused.
type Lifecycle string

const (
	// Transient builds a fresh instance on every resolution.
	Transient Lifecycle = "transient"

	// Singleton caches the instance after the first successful construction.
	Singleton Lifecycle = "singleton"
)

// String returns the string representation of the lifecycle.
func (l Lifecycle) String() string {
	return string(l)
}

// Valid reports whether l is a known lifecycle.
func (l Lifecycle) Valid() bool {
	return l == Transient || l == Singleton
}

// ServiceIdentity is the registry key: a requested type and an optional tag.
// Two identities are equal when both the type and the tag compare equal.
type ServiceIdentity struct {
	Type reflect.Type
	Tag  any
}

// String returns a human-readable representation of the identity.
func (id ServiceIdentity) String() string {
	typeName := "<nil>"
	if id.Type != nil {
		typeName = id.Type.String()
	}
	if id.Tag == nil {
		return typeName
	}
	return fmt.Sprintf("%s[tag=%v]", typeName, id.Tag)
}

// Registration describes how to produce an instance for a service identity.
type Registration struct {
	// DeclaringType is the service type callers ask for.
	DeclaringType reflect.Type

	// ImplementingType is the concrete type of the service when it is known
	// up front. It is nil for produce callbacks.
	ImplementingType reflect.Type

	// Tag discriminates registrations of the same declaring type.
	Tag any

	// Lifecycle defines how instances are cached.
	Lifecycle Lifecycle

	// Produce holds the construction callback for late-bound registrations.
	// Stores an ioc.ProduceFunc.
	Produce interface{}

	// Open is the open generic registration this one was closed from.
	Open *OpenRegistration

	seq uint64
}

// Identity returns the key the registration is stored under.
func (r *Registration) Identity() ServiceIdentity {
	return ServiceIdentity{Type: r.DeclaringType, Tag: r.Tag}
}

// IsLateBound reports whether instances come from Produce rather than from
// the constructors of ImplementingType.
func (r *Registration) IsLateBound() bool {
	return r.Produce != nil
}

// InstanceEntry is a realized singleton and the registration it came from.
type InstanceEntry struct {
	Registration *Registration
	Instance     any

	seq uint64
}

// ErrNoRegistration is returned when an instance is stored for an identity
// that has no registration.
var ErrNoRegistration = errors.New("registry: no registration for identity")

// Store holds registrations and singleton instances.
type Store struct {
	registrations map[ServiceIdentity]*Registration
	instances     map[ServiceIdentity]*InstanceEntry
	open          map[openKey]*OpenRegistration
	seq           uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		registrations: make(map[ServiceIdentity]*Registration),
		instances:     make(map[ServiceIdentity]*InstanceEntry),
		open:          make(map[openKey]*OpenRegistration),
	}
}

// Upsert stores a registration.
//
// When an entry for the same identity exists and overwrite is false, the
// existing entry is kept and Upsert returns false. Replacing an entry drops
// the cached instance of that identity.
func (s *Store) Upsert(reg *Registration, overwrite bool) bool {
	id := reg.Identity()
	if _, exists := s.registrations[id]; exists {
		if !overwrite {
			return false
		}
		delete(s.instances, id)
	}

	s.seq++
	reg.seq = s.seq
	s.registrations[id] = reg
	return true
}

// Get retrieves the registration for an identity.
func (s *Store) Get(id ServiceIdentity) (*Registration, bool) {
	reg, ok := s.registrations[id]
	return reg, ok
}

// Has reports whether a registration exists for the identity.
func (s *Store) Has(id ServiceIdentity) bool {
	_, ok := s.registrations[id]
	return ok
}

// Instance returns the cached singleton for an identity.
func (s *Store) Instance(id ServiceIdentity) (any, bool) {
	entry, ok := s.instances[id]
	if !ok {
		return nil, false
	}
	return entry.Instance, true
}

// StoreInstance caches a realized singleton for an identity.
// The identity must already have a registration.
func (s *Store) StoreInstance(id ServiceIdentity, instance any) error {
	reg, ok := s.registrations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRegistration, id)
	}

	s.seq++
	s.instances[id] = &InstanceEntry{Registration: reg, Instance: instance, seq: s.seq}
	return nil
}

// Remove deletes the registration and any cached instance for an identity.
// It reports whether a registration was removed.
func (s *Store) Remove(id ServiceIdentity) bool {
	_, ok := s.registrations[id]
	delete(s.registrations, id)
	delete(s.instances, id)
	return ok
}

// RemoveAll deletes every registration of a declaring type, whatever its tag.
// It returns the number of removed registrations.
func (s *Store) RemoveAll(t reflect.Type) int {
	removed := 0
	for id := range s.registrations {
		if id.Type == t {
			delete(s.registrations, id)
			delete(s.instances, id)
			removed++
		}
	}
	return removed
}

// ByDeclaringType returns every registration of a type, in registration order.
func (s *Store) ByDeclaringType(t reflect.Type) []*Registration {
	var result []*Registration
	for id, reg := range s.registrations {
		if id.Type == t {
			result = append(result, reg)
		}
	}
	sortRegistrations(result)
	return result
}

// All returns every registration, in registration order.
func (s *Store) All() []*Registration {
	result := make([]*Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		result = append(result, reg)
	}
	sortRegistrations(result)
	return result
}

// Instances returns the cached singletons in creation order.
func (s *Store) Instances() []InstanceEntry {
	entries := make([]*InstanceEntry, 0, len(s.instances))
	for _, entry := range s.instances {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	result := make([]InstanceEntry, len(entries))
	for i, entry := range entries {
		result[i] = *entry
	}
	return result
}

// Len returns the number of registrations.
func (s *Store) Len() int {
	return len(s.registrations)
}

// Clear drops every registration, instance and open registration.
func (s *Store) Clear() {
	s.registrations = make(map[ServiceIdentity]*Registration)
	s.instances = make(map[ServiceIdentity]*InstanceEntry)
	s.open = make(map[openKey]*OpenRegistration)
}

// removeClosed deletes the registrations closed from open, with their instances.
func (s *Store) removeClosed(open *OpenRegistration) int {
	removed := 0
	for id, reg := range s.registrations {
		if reg.Open == open {
			delete(s.registrations, id)
			delete(s.instances, id)
			removed++
		}
	}
	return removed
}

func sortRegistrations(regs []*Registration) {
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
}
