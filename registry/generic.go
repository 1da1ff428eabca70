package registry

import (
	"reflect"
	"strings"
)

// GenericDefinition identifies an open generic type: the unbound definition
// shared by every instantiation, such as Repository for Repository[User].
type GenericDefinition struct {
	PkgPath string
	Name    string

	// Pointer is set when the definition refers to pointers to the
	// instantiated type, such as *Repository[T].
	Pointer bool
}

// String returns a human-readable representation of the definition.
func (d GenericDefinition) String() string {
	prefix := ""
	if d.Pointer {
		prefix = "*"
	}
	if d.PkgPath == "" {
		return prefix + d.Name + "[...]"
	}
	return prefix + d.PkgPath + "." + d.Name + "[...]"
}

// IsZero reports whether d is the zero definition.
func (d GenericDefinition) IsZero() bool {
	return d == GenericDefinition{}
}

// DefinitionOf splits an instantiated generic type into its definition and
// its type-argument list, e.g. "[int]". It reports false for non-generic types.
func DefinitionOf(t reflect.Type) (GenericDefinition, string, bool) {
	if t == nil {
		return GenericDefinition{}, "", false
	}

	pointer := false
	if t.Kind() == reflect.Ptr && t.Name() == "" {
		pointer = true
		t = t.Elem()
	}

	name := t.Name()
	idx := strings.IndexByte(name, '[')
	if idx <= 0 || !strings.HasSuffix(name, "]") {
		return GenericDefinition{}, "", false
	}

	def := GenericDefinition{PkgPath: t.PkgPath(), Name: name[:idx], Pointer: pointer}
	return def, name[idx:], true
}

// OpenRegistration maps an open service definition to either an open
// implementation definition or a late-bound produce callback.
type OpenRegistration struct {
	Service GenericDefinition
	Tag     any

	// Implementation is the open implementation definition; zero when
	// the registration is late-bound.
	Implementation GenericDefinition

	Lifecycle Lifecycle

	// Produce stores an ioc.OpenProduceFunc for late-bound registrations.
	Produce interface{}
}

type openKey struct {
	def GenericDefinition
	tag any
}

// UpsertOpen stores an open registration. With overwrite false an existing
// entry is kept and UpsertOpen returns false. Replacing an entry drops the
// closed registrations made from it.
func (s *Store) UpsertOpen(reg *OpenRegistration, overwrite bool) bool {
	key := openKey{def: reg.Service, tag: reg.Tag}
	if existing, exists := s.open[key]; exists {
		if !overwrite {
			return false
		}
		s.removeClosed(existing)
	}
	s.open[key] = reg
	return true
}

// Open returns the open registration for a definition and tag.
func (s *Store) Open(def GenericDefinition, tag any) (*OpenRegistration, bool) {
	reg, ok := s.open[openKey{def: def, tag: tag}]
	return reg, ok
}

// RemoveOpen deletes an open registration and the closed registrations made
// from it.
func (s *Store) RemoveOpen(def GenericDefinition, tag any) bool {
	key := openKey{def: def, tag: tag}
	existing, ok := s.open[key]
	if !ok {
		return false
	}
	delete(s.open, key)
	s.removeClosed(existing)
	return true
}
