package members

import (
	"fmt"

	"github.com/jward/stratum/internal/raw"
)

// Options select which members of a container an index covers.
type Options struct {
	StaticMembers bool
	Origin        raw.Origin
}

type builder struct {
	opts  Options
	class *raw.Class // class being scanned; nil for a package without holder
	index *Index
}

// Build scans a container and returns its index. A malformed property
// accessor aborts the build.
func Build(c raw.Container, opts Options) (*Index, error) {
	b := &builder{
		opts:  opts,
		index: &Index{byName: make(map[string]*NamedMembers)},
	}

	switch c := c.(type) {
	case *raw.Class:
		b.class = c
		if err := b.scanClass(c); err != nil {
			return nil, err
		}
		if opts.StaticMembers {
			b.processNestedClasses(c)
		}
	case *raw.Package:
		if c.Holder != nil {
			b.class = c.Holder
			if err := b.scanClass(c.Holder); err != nil {
				return nil, err
			}
		}
		b.processPackageExtras(c)
	default:
		panic(fmt.Sprintf("members: unexpected container %T", c))
	}
	return b.index, nil
}

func (b *builder) scanClass(c *raw.Class) error {
	b.processFields(c)
	return b.processMethods(c)
}

func (b *builder) processFields(c *raw.Class) {
	for _, f := range c.Fields {
		n := b.index.getOrCreate(f.Name)
		if !b.includeMember(f) {
			continue
		}
		n.PropertyAccessors = append(n.PropertyAccessors, PropertyAccessor{
			Kind:   AccessorField,
			Member: f,
			Type:   f.Type,
		})
	}
}

func (b *builder) processMethods(c *raw.Class) error {
	// First pass: every name that may be exposed gets an entry, so filtered
	// names still resolve to an empty entry.
	for _, m := range c.Methods {
		b.index.getOrCreate(m.Name)
		if kind, prop := raw.ParseAccessorName(m.Name); kind != raw.AccessorNone {
			b.index.getOrCreate(prop)
		}
	}

	for _, m := range c.Methods {
		if m.Constructor || !b.includeMember(m) {
			continue
		}
		if !m.PropertyAccessor {
			n := b.index.getOrCreate(m.Name)
			n.Methods = append(n.Methods, m)
			continue
		}
		prop, acc, err := parseAccessor(m)
		if err != nil {
			return err
		}
		n := b.index.getOrCreate(prop)
		n.PropertyAccessors = append(n.PropertyAccessors, acc)
	}
	return nil
}

func (b *builder) processNestedClasses(c *raw.Class) {
	for _, nested := range c.Nested {
		if raw.OriginOf(nested) == raw.OriginPrimary {
			continue
		}
		if IsSAMInterface(nested) {
			b.index.getOrCreate(nested.Name).SAMInterface = nested
		}
	}
}

// processPackageExtras registers members that are reachable through a
// package but are not declared directly in it.
func (b *builder) processPackageExtras(p *raw.Package) {
	for _, c := range p.Classes {
		if c.Kind == raw.ClassKindObject {
			for _, f := range c.Fields {
				if f.Name == raw.InstanceFieldName && f.IsStatic() {
					n := b.index.getOrCreate(c.Name)
					n.PropertyAccessors = append(n.PropertyAccessors, PropertyAccessor{
						Kind:   AccessorField,
						Member: f,
						Type:   raw.TypeRef{Name: c.FQName},
					})
				}
			}
		}
		if raw.OriginOf(c) == raw.OriginForeign && IsSAMInterface(c) {
			b.index.getOrCreate(c.Name).SAMInterface = c
		}
	}
}

func (b *builder) includeMember(m raw.Member) bool {
	if b.opts.StaticMembers && RealOwnerStatic(b.class) {
		return m.IsStatic()
	}
	if m.IsStatic() != b.opts.StaticMembers {
		return false
	}
	if m.DeclaringClass() != b.class {
		return false
	}
	if m.IsSynthetic() {
		return false
	}
	if m.IsPrivate() && !isAccessorMethod(m) {
		return false
	}
	if method, ok := m.(*raw.Method); ok && b.class.IsInterface() && IsObjectMethod(method) {
		return false
	}
	return true
}

func isAccessorMethod(m raw.Member) bool {
	method, ok := m.(*raw.Method)
	return ok && method.PropertyAccessor
}

// parseAccessor turns a flagged method into a getter or setter. A receiver
// parameter, if any, must come first; getters take no other parameter and
// setters exactly one.
func parseAccessor(m *raw.Method) (string, PropertyAccessor, error) {
	kind, prop := raw.ParseAccessorName(m.Name)
	fail := func(reason string) (string, PropertyAccessor, error) {
		return "", PropertyAccessor{}, &AccessorError{
			Class:  className(m.Owner),
			Method: m.Name,
			Reason: reason,
		}
	}
	if kind == raw.AccessorNone {
		return fail("name is neither a getter nor a setter")
	}

	var receiver *raw.TypeRef
	params := m.Params
	for i, p := range params {
		if !p.Receiver {
			continue
		}
		if i != 0 || receiver != nil {
			return fail("receiver parameter must be the first parameter")
		}
		t := p.Type
		receiver = &t
	}
	if receiver != nil {
		params = params[1:]
	}

	acc := PropertyAccessor{Member: m, Receiver: receiver}
	switch kind {
	case raw.AccessorGetter:
		if len(params) != 0 {
			return fail(fmt.Sprintf("getter takes %d value parameters, want 0", len(params)))
		}
		acc.Kind = AccessorGetter
		acc.Type = m.Return
	case raw.AccessorSetter:
		if len(params) != 1 {
			return fail(fmt.Sprintf("setter takes %d value parameters, want 1", len(params)))
		}
		acc.Kind = AccessorSetter
		acc.Type = params[0].Type
	}
	return prop, acc, nil
}
