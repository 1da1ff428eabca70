// Package requestpath tracks the chain of in-flight type requests of a single
// resolution call tree and rejects circular dependency graphs.
//
// A Path is a value. Branching returns a new Path and never mutates the
// parent, so concurrent resolutions holding different paths do not interfere.
package requestpath

import (
	"fmt"
	"reflect"
	"strings"
)

// TypeRequest is one entry of a Path: the requested type and its optional tag.
type TypeRequest struct {
	Type reflect.Type
	Tag  any
}

// String returns a human-readable representation of the request.
func (r TypeRequest) String() string {
	typeName := "<nil>"
	if r.Type != nil {
		typeName = r.Type.String()
	}
	if r.Tag == nil {
		return typeName
	}
	return fmt.Sprintf("%s[tag=%v]", typeName, r.Tag)
}

// Path is an ordered, append-only chain of type requests.
// The zero value is an empty path.
type Path struct {
	entries []TypeRequest

	// reentered is set when the last entry was requested twice in a row.
	reentered bool
}

// Root returns a path containing a single request.
func Root(t reflect.Type, tag any) Path {
	return Path{entries: []TypeRequest{{Type: t, Tag: tag}}}
}

// Branch returns a new path extending p with the given request.
//
// Requesting the last entry of p again is tolerated once and returns a path
// with the same entries. A second consecutive repeat, or a repeat of any
// earlier entry, fails with a *CircularDependencyError carrying the chain.
func (p Path) Branch(t reflect.Type, tag any) (Path, error) {
	req := TypeRequest{Type: t, Tag: tag}

	if len(p.entries) == 0 {
		return Root(t, tag), nil
	}

	if p.entries[len(p.entries)-1] == req {
		if p.reentered {
			return Path{}, &CircularDependencyError{Chain: p.chainWith(req)}
		}
		return Path{entries: p.entries, reentered: true}, nil
	}

	if p.Contains(t, tag) {
		return Path{}, &CircularDependencyError{Chain: p.chainWith(req)}
	}

	// Full slice expression forces a copy on append so siblings never share
	// a backing array.
	entries := append(p.entries[:len(p.entries):len(p.entries)], req)
	return Path{entries: entries}, nil
}

// Contains reports whether the request already appears in the path.
func (p Path) Contains(t reflect.Type, tag any) bool {
	req := TypeRequest{Type: t, Tag: tag}
	for _, e := range p.entries {
		if e == req {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (p Path) Len() int {
	return len(p.entries)
}

// IsEmpty reports whether no request has been made yet.
func (p Path) IsEmpty() bool {
	return len(p.entries) == 0
}

// Last returns the most recent request.
func (p Path) Last() (TypeRequest, bool) {
	if len(p.entries) == 0 {
		return TypeRequest{}, false
	}
	return p.entries[len(p.entries)-1], true
}

// Entries returns a copy of the requests in construction order.
func (p Path) Entries() []TypeRequest {
	out := make([]TypeRequest, len(p.entries))
	copy(out, p.entries)
	return out
}

// String renders the path as "A => B => C".
func (p Path) String() string {
	return joinChain(p.entries)
}

func (p Path) chainWith(req TypeRequest) []TypeRequest {
	chain := make([]TypeRequest, 0, len(p.entries)+1)
	chain = append(chain, p.entries...)
	return append(chain, req)
}

func joinChain(chain []TypeRequest) string {
	parts := make([]string, len(chain))
	for i, r := range chain {
		parts[i] = r.String()
	}
	return strings.Join(parts, " => ")
}
