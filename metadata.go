package ioc

import (
	"reflect"
	"sort"
)

// metadataCache caches reflection metadata to avoid repeated type analysis.
// It is guarded by the container lock.
type metadataCache struct {
	// Ranked constructor lists, rebuilt lazily after invalidation.
	types map[reflect.Type]*typeMetadata

	// Struct field cache for field injection. Field layout never changes,
	// so invalidation keeps it.
	fields map[reflect.Type][]fieldInfo
}

// typeMetadata holds the ranked constructors of one type.
type typeMetadata struct {
	typ          reflect.Type
	constructors []*constructorInfo
}

// fieldInfo stores metadata about an injectable struct field.
type fieldInfo struct {
	index   int
	name    string
	typ     reflect.Type
	options injectOptions
}

func newMetadataCache() *metadataCache {
	return &metadataCache{
		types:  make(map[reflect.Type]*typeMetadata),
		fields: make(map[reflect.Type][]fieldInfo),
	}
}

// typeOf retrieves or computes the ranked constructors of typ.
// catalogue holds the registered constructors of typ, in registration order.
func (mc *metadataCache) typeOf(typ reflect.Type, catalogue []*constructorInfo) *typeMetadata {
	if meta, ok := mc.types[typ]; ok {
		return meta
	}

	ctors := make([]*constructorInfo, len(catalogue))
	copy(ctors, catalogue)
	if len(ctors) == 0 {
		if implicit, ok := implicitConstructor(typ); ok {
			ctors = append(ctors, implicit)
		}
	}

	sort.SliceStable(ctors, func(i, j int) bool {
		a, b := ctors[i], ctors[j]
		if a.numParams != b.numParams {
			return a.numParams > b.numParams
		}
		if a.preferred != b.preferred {
			return a.preferred
		}
		if a.catchAll != b.catchAll {
			return a.catchAll < b.catchAll
		}
		return a.order < b.order
	})

	meta := &typeMetadata{typ: typ, constructors: ctors}
	mc.types[typ] = meta
	return meta
}

// candidates returns the constructors eligible for argc explicit arguments,
// best first. With autoComplete, constructors may take more parameters than
// supplied; without it the arity must match exactly.
func (m *typeMetadata) candidates(argc int, autoComplete bool) []*constructorInfo {
	var result []*constructorInfo
	for _, ctor := range m.constructors {
		if ctor.numParams == argc || (autoComplete && ctor.numParams > argc) {
			result = append(result, ctor)
		}
	}
	return result
}

// fieldsOf retrieves or computes the injectable fields of a struct type.
func (mc *metadataCache) fieldsOf(typ reflect.Type) []fieldInfo {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if fields, ok := mc.fields[typ]; ok {
		return fields
	}

	if typ.Kind() != reflect.Struct {
		mc.fields[typ] = nil
		return nil
	}

	var fields []fieldInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// Injectable fields are exported and carry an inject tag.
		tag, hasInjectTag := field.Tag.Lookup("inject")
		if field.PkgPath != "" || !hasInjectTag {
			continue
		}
		opts := parseInjectTag(tag)
		if opts.skip {
			continue
		}

		fields = append(fields, fieldInfo{
			index:   i,
			name:    field.Name,
			typ:     field.Type,
			options: opts,
		})
	}

	mc.fields[typ] = fields
	return fields
}

// invalidate drops the ranked constructor lists.
func (mc *metadataCache) invalidate() {
	mc.types = make(map[reflect.Type]*typeMetadata)
}
