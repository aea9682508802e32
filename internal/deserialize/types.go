package deserialize

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/metadata"
)

// ClassResolver finds class descriptors by qualified name. A class it does
// not know resolves to nil, nil.
type ClassResolver interface {
	ResolveClass(fqName string) (descriptor.ClassDescriptor, error)
}

// TypeDeserializer turns serialized types into descriptor types. It owns
// the type parameters of one declaration and falls back to its parent for
// parameters declared further out.
type TypeDeserializer struct {
	names   *NameTable
	classes ClassResolver
	parent  *TypeDeserializer
	params  []*descriptor.TypeParameter
	byID    map[int32]*descriptor.TypeParameter
}

// NewTypeDeserializer declares protos as type parameters owned by owner.
// Their bounds are resolved lazily through the returned deserializer.
func NewTypeDeserializer(names *NameTable, classes ClassResolver, parent *TypeDeserializer, owner descriptor.Descriptor, protos []*metadata.TypeParameter) (*TypeDeserializer, error) {
	td := &TypeDeserializer{
		names:   names,
		classes: classes,
		parent:  parent,
		params:  make([]*descriptor.TypeParameter, 0, len(protos)),
		byID:    make(map[int32]*descriptor.TypeParameter, len(protos)),
	}
	for i, p := range protos {
		name, err := names.Name(p.Name)
		if err != nil {
			return nil, fmt.Errorf("deserialize: type parameter %d: %w", i, err)
		}
		tp := &descriptor.TypeParameter{
			Name:     name,
			Index:    i,
			Reified:  p.Reified,
			Variance: variance(p.Variance),
			Owner:    owner,
		}
		bounds := p.UpperBounds
		tp.SetUpperBounds(func() ([]*descriptor.Type, error) {
			return td.Types(bounds)
		})
		td.params = append(td.params, tp)
		td.byID[p.ID] = tp
	}
	return td, nil
}

// TypeParameters returns the parameters this deserializer declares.
func (td *TypeDeserializer) TypeParameters() []*descriptor.TypeParameter { return td.params }

// Type deserializes t. A nil t yields nil.
func (td *TypeDeserializer) Type(t *metadata.Type) (*descriptor.Type, error) {
	if t == nil {
		return nil, nil
	}
	if t.Constructor == nil {
		return nil, fmt.Errorf("%w: type without constructor", ErrInconsistent)
	}
	ctor, err := td.constructor(t.Constructor)
	if err != nil {
		return nil, err
	}
	out := &descriptor.Type{Constructor: ctor, Nullable: t.Nullable}
	for _, a := range t.Arguments {
		arg := descriptor.TypeProjection{Projection: projection(a.Projection)}
		if a.Projection != metadata.ProjectionStar {
			if arg.Type, err = td.Type(a.Type); err != nil {
				return nil, err
			}
		}
		out.Arguments = append(out.Arguments, arg)
	}
	return out, nil
}

// Types deserializes a list of types.
func (td *TypeDeserializer) Types(ts []*metadata.Type) ([]*descriptor.Type, error) {
	out := make([]*descriptor.Type, 0, len(ts))
	for _, t := range ts {
		dt, err := td.Type(t)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, nil
}

func (td *TypeDeserializer) constructor(c *metadata.TypeConstructor) (*descriptor.TypeConstructor, error) {
	switch c.Kind {
	case metadata.ConstructorTypeParameter:
		p := td.typeParameter(c.ID)
		if p == nil {
			return nil, fmt.Errorf("%w: type parameter id %d", ErrBadIndex, c.ID)
		}
		return &descriptor.TypeConstructor{Param: p}, nil
	default:
		fq, err := td.names.Name(c.ID)
		if err != nil {
			return nil, err
		}
		cls, err := td.classes.ResolveClass(fq)
		if err != nil {
			return nil, fmt.Errorf("deserialize: resolve %s: %w", fq, err)
		}
		if cls == nil {
			return &descriptor.TypeConstructor{Named: fq}, nil
		}
		return cls.TypeConstructor(), nil
	}
}

func (td *TypeDeserializer) typeParameter(id int32) *descriptor.TypeParameter {
	for d := td; d != nil; d = d.parent {
		if p, ok := d.byID[id]; ok {
			return p
		}
	}
	return nil
}

func variance(v metadata.Variance) descriptor.Variance {
	switch v {
	case metadata.VarianceIn:
		return descriptor.In
	case metadata.VarianceOut:
		return descriptor.Out
	}
	return descriptor.Invariant
}

func projection(p metadata.Projection) descriptor.Variance {
	switch p {
	case metadata.ProjectionIn:
		return descriptor.In
	case metadata.ProjectionOut:
		return descriptor.Out
	case metadata.ProjectionStar:
		return descriptor.Star
	}
	return descriptor.Invariant
}
