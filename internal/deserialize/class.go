package deserialize

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/memo"
	"github.com/jward/stratum/internal/metadata"
)

// Class is a class descriptor read from metadata. Modality and visibility
// are not serialized yet and take fixed defaults.
type Class struct {
	name      string
	fqName    string
	container descriptor.Descriptor
	kind      descriptor.ClassKind

	ctx        *Context
	proto      *metadata.Class
	typeParams []*descriptor.TypeParameter
	ctor       *descriptor.TypeConstructor
	supertypes *memo.Cell[[]*descriptor.Type]
	acyclic    *memo.Cell[struct{}]
	scope      *ClassScope
}

var _ descriptor.ClassDescriptor = (*Class)(nil)

// NewClass builds the class described by proto inside parent. Supertypes
// and members are resolved on first use.
func NewClass(parent *Context, container descriptor.Descriptor, proto *metadata.Class) (*Class, error) {
	fq, err := parent.Names.Name(proto.FQName)
	if err != nil {
		return nil, fmt.Errorf("deserialize: class name: %w", err)
	}
	c := &Class{
		name:      shortName(fq),
		fqName:    fq,
		container: container,
		kind:      classKind(proto.Kind()),
		proto:     proto,
	}
	c.ctor = &descriptor.TypeConstructor{Class: c}

	ctx, err := parent.Child(c, proto.TypeParameters)
	if err != nil {
		return nil, fmt.Errorf("deserialize: class %s: %w", fq, err)
	}
	c.ctx = ctx
	c.typeParams = ctx.Types.TypeParameters()
	c.supertypes = memo.NewCell(func() ([]*descriptor.Type, error) {
		sts, err := c.ctx.Types.Types(c.proto.Supertypes)
		if err != nil {
			return nil, fmt.Errorf("deserialize: supertypes of %s: %w", c.fqName, err)
		}
		return sts, nil
	})
	c.acyclic = memo.NewCell(c.checkAcyclic)

	scope, err := newClassScope(ctx, c, proto.Members)
	if err != nil {
		return nil, fmt.Errorf("deserialize: class %s: %w", fq, err)
	}
	c.scope = scope
	return c, nil
}

func (c *Class) Name() string                                 { return c.name }
func (c *Class) FQName() string                               { return c.fqName }
func (c *Class) ContainingDeclaration() descriptor.Descriptor { return c.container }
func (c *Class) Kind() descriptor.ClassKind                   { return c.kind }
func (c *Class) Modality() descriptor.Modality                { return descriptor.ModalityFinal }
func (c *Class) Visibility() descriptor.Visibility            { return descriptor.VisibilityPublic }
func (c *Class) TypeParameters() []*descriptor.TypeParameter  { return c.typeParams }
func (c *Class) TypeConstructor() *descriptor.TypeConstructor { return c.ctor }
func (c *Class) MemberScope() descriptor.MemberScope          { return c.scope }

// Supertypes returns the declared supertypes, deserialized once.
func (c *Class) Supertypes() ([]*descriptor.Type, error) { return c.supertypes.Get() }

// checkAcyclic walks the transitive supertypes of c and fails with
// ErrInconsistent when c is among them. Member resolution would otherwise
// wait on its own result.
func (c *Class) checkAcyclic() (struct{}, error) {
	seen := make(map[descriptor.ClassDescriptor]bool)
	queue := []descriptor.ClassDescriptor{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		sts, err := cur.Supertypes()
		if err != nil {
			return struct{}{}, err
		}
		for _, st := range sts {
			super := st.Constructor.Class
			if super == nil || seen[super] {
				continue
			}
			if super == descriptor.ClassDescriptor(c) {
				return struct{}{}, fmt.Errorf("%w: %s is its own supertype through %s", ErrInconsistent, c.fqName, cur.FQName())
			}
			seen[super] = true
			queue = append(queue, super)
		}
	}
	return struct{}{}, nil
}

// Annotations reads the class annotations through the context's
// annotation deserializer.
func (c *Class) Annotations() ([]*descriptor.Annotation, error) {
	return c.ctx.Annotations.ClassAnnotations(c.proto, c.ctx.Names)
}

// NestedClassNames returns the simple names of the nested classes the
// metadata advertises.
func (c *Class) NestedClassNames() ([]string, error) {
	out := make([]string, 0, len(c.proto.NestedClassName))
	for _, id := range c.proto.NestedClassName {
		n, err := c.ctx.Names.Name(id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func classKind(k metadata.ClassKind) descriptor.ClassKind {
	switch k {
	case metadata.ClassKindInterface:
		return descriptor.ClassKindInterface
	case metadata.ClassKindEnumClass:
		return descriptor.ClassKindEnumClass
	case metadata.ClassKindEnumEntry:
		return descriptor.ClassKindEnumEntry
	case metadata.ClassKindAnnotationClass:
		return descriptor.ClassKindAnnotationClass
	case metadata.ClassKindObject:
		return descriptor.ClassKindObject
	case metadata.ClassKindCompanionObject:
		return descriptor.ClassKindCompanionObject
	}
	return descriptor.ClassKindClass
}
