// Package members groups the raw members of a class or package by name.
//
// An Index is built in one pass over a container and then only read. Every
// name seen during the scan gets an entry, even when all of its members are
// filtered out, so Lookup can tell "never declared" apart from "declared but
// not visible in this scope".
package members

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jward/stratum/internal/raw"
)

// ErrMalformedAccessor marks a property accessor whose signature cannot be
// interpreted as a getter or setter.
var ErrMalformedAccessor = errors.New("members: malformed property accessor")

// AccessorError describes a malformed accessor.
type AccessorError struct {
	Class  string
	Method string
	Reason string
}

func (e *AccessorError) Error() string {
	return fmt.Sprintf("members: accessor %s.%s: %s", e.Class, e.Method, e.Reason)
}

func (e *AccessorError) Unwrap() error { return ErrMalformedAccessor }

// AccessorKind is the role a field-like entry plays for its property.
type AccessorKind int

const (
	AccessorField AccessorKind = iota
	AccessorGetter
	AccessorSetter
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorGetter:
		return "getter"
	case AccessorSetter:
		return "setter"
	}
	return "field"
}

// PropertyAccessor is a field-like source of a property.
type PropertyAccessor struct {
	Kind     AccessorKind
	Member   raw.Member
	Type     raw.TypeRef
	Receiver *raw.TypeRef
}

// NamedMembers is the index entry for one identifier.
type NamedMembers struct {
	Name              string
	Methods           []*raw.Method
	PropertyAccessors []PropertyAccessor

	// SAMInterface is set when a single-abstract-method interface is
	// reachable under this name.
	SAMInterface *raw.Class
}

// Empty reports whether every member under this name was filtered out.
func (n *NamedMembers) Empty() bool {
	return len(n.Methods) == 0 && len(n.PropertyAccessors) == 0 && n.SAMInterface == nil
}

// PropertyGroup collects the accessors that make up one property.
type PropertyGroup struct {
	Type     raw.TypeRef
	Receiver *raw.TypeRef
	Field    *PropertyAccessor
	Getter   *PropertyAccessor
	Setter   *PropertyAccessor
}

// IsExtension reports whether the property has a receiver.
func (g *PropertyGroup) IsExtension() bool { return g.Receiver != nil }

// IsVar reports whether the property is writable.
func (g *PropertyGroup) IsVar() bool {
	if g.Getter == nil && g.Setter == nil {
		f, ok := g.Field.Member.(*raw.Field)
		return ok && !f.Modifiers.Final
	}
	return g.Setter != nil
}

// PropertyGroups groups accessors by their (type, receiver) key. Two
// accessors of the same role under one key make the entry malformed.
func (n *NamedMembers) PropertyGroups() ([]*PropertyGroup, error) {
	byKey := make(map[string]*PropertyGroup)
	var order []string
	for i := range n.PropertyAccessors {
		acc := &n.PropertyAccessors[i]
		key := groupKey(acc)
		g, ok := byKey[key]
		if !ok {
			g = &PropertyGroup{Type: acc.Type, Receiver: acc.Receiver}
			byKey[key] = g
			order = append(order, key)
		}
		var slot **PropertyAccessor
		switch acc.Kind {
		case AccessorField:
			slot = &g.Field
		case AccessorGetter:
			slot = &g.Getter
		case AccessorSetter:
			slot = &g.Setter
		}
		if *slot != nil {
			return nil, &AccessorError{
				Class:  className(acc.Member.DeclaringClass()),
				Method: acc.Member.MemberName(),
				Reason: fmt.Sprintf("duplicate %s for property %s", acc.Kind, n.Name),
			}
		}
		*slot = acc
	}

	groups := make([]*PropertyGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups, nil
}

func groupKey(acc *PropertyAccessor) string {
	if acc.Receiver == nil {
		return acc.Type.String() + "|"
	}
	return acc.Type.String() + "|" + acc.Receiver.String()
}

// Index maps identifiers to their entries.
type Index struct {
	byName map[string]*NamedMembers
}

// Lookup returns the entry for name, or nil when the name never appeared.
func (x *Index) Lookup(name string) *NamedMembers {
	return x.byName[name]
}

// All returns every entry sorted by name.
func (x *Index) All() []*NamedMembers {
	out := make([]*NamedMembers, 0, len(x.byName))
	for _, n := range x.byName {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of names.
func (x *Index) Len() int { return len(x.byName) }

func (x *Index) getOrCreate(name string) *NamedMembers {
	n, ok := x.byName[name]
	if !ok {
		n = &NamedMembers{Name: name}
		x.byName[name] = n
	}
	return n
}

// Merge returns a new index holding the union of a and b. Entries present in
// both are concatenated; the first SAM interface wins.
func Merge(a, b *Index) *Index {
	out := &Index{byName: make(map[string]*NamedMembers, a.Len()+b.Len())}
	for _, src := range []*Index{a, b} {
		for name, n := range src.byName {
			dst := out.getOrCreate(name)
			dst.Methods = append(dst.Methods, n.Methods...)
			dst.PropertyAccessors = append(dst.PropertyAccessors, n.PropertyAccessors...)
			if dst.SAMInterface == nil {
				dst.SAMInterface = n.SAMInterface
			}
		}
	}
	return out
}

func className(c *raw.Class) string {
	if c == nil {
		return "<unknown>"
	}
	return c.FQName
}
