package deserialize

import (
	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/metadata"
)

// Context is shared by every declaration deserialized from one entry.
type Context struct {
	Names       *NameTable
	Types       *TypeDeserializer
	Annotations AnnotationDeserializer
	Classes     ClassResolver

	// Conflicts receives override conflicts found while building member
	// scopes. Nil drops them.
	Conflicts descriptor.ConflictReporter

	// Container is the declaration that owns what this context
	// deserializes.
	Container descriptor.Descriptor
}

// NewContext returns a root context for one entry. A nil annotation
// deserializer means annotations are unsupported.
func NewContext(names *NameTable, classes ClassResolver, annotations AnnotationDeserializer, container descriptor.Descriptor) *Context {
	if annotations == nil {
		annotations = UnsupportedAnnotations{}
	}
	return &Context{
		Names:       names,
		Types:       &TypeDeserializer{names: names, classes: classes},
		Annotations: annotations,
		Classes:     classes,
		Container:   container,
	}
}

// Child returns a context for a declaration nested in c that declares
// typeParams. The new type parameters are owned by container and see every
// parameter visible in c.
func (c *Context) Child(container descriptor.Descriptor, typeParams []*metadata.TypeParameter) (*Context, error) {
	td, err := NewTypeDeserializer(c.Names, c.Classes, c.Types, container, typeParams)
	if err != nil {
		return nil, err
	}
	child := *c
	child.Types = td
	child.Container = container
	return &child, nil
}
