package deserialize

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/metadata"
)

// AnnotationDeserializer reads annotations at the three places metadata
// carries them.
type AnnotationDeserializer interface {
	ClassAnnotations(class *metadata.Class, names *NameTable) ([]*descriptor.Annotation, error)
	CallableAnnotations(callable *metadata.Callable, names *NameTable) ([]*descriptor.Annotation, error)
	ValueParameterAnnotations(callable *metadata.Callable, param *metadata.ValueParameter, names *NameTable) ([]*descriptor.Annotation, error)
}

// UnsupportedAnnotations fails every request. Contexts that cannot load
// annotation classes use it so that only queries touching annotations fail.
type UnsupportedAnnotations struct{}

func (UnsupportedAnnotations) ClassAnnotations(*metadata.Class, *NameTable) ([]*descriptor.Annotation, error) {
	return nil, fmt.Errorf("%w: class annotations", ErrUnsupported)
}

func (UnsupportedAnnotations) CallableAnnotations(*metadata.Callable, *NameTable) ([]*descriptor.Annotation, error) {
	return nil, fmt.Errorf("%w: callable annotations", ErrUnsupported)
}

func (UnsupportedAnnotations) ValueParameterAnnotations(*metadata.Callable, *metadata.ValueParameter, *NameTable) ([]*descriptor.Annotation, error) {
	return nil, fmt.Errorf("%w: value parameter annotations", ErrUnsupported)
}

// ProtoAnnotations reads annotations from the annotation messages stored
// with each declaration. Classes carry none in the current format.
type ProtoAnnotations struct{}

func (ProtoAnnotations) ClassAnnotations(*metadata.Class, *NameTable) ([]*descriptor.Annotation, error) {
	return nil, nil
}

func (ProtoAnnotations) CallableAnnotations(c *metadata.Callable, names *NameTable) ([]*descriptor.Annotation, error) {
	return decodeAnnotations(c.Annotations, names)
}

func (ProtoAnnotations) ValueParameterAnnotations(_ *metadata.Callable, p *metadata.ValueParameter, names *NameTable) ([]*descriptor.Annotation, error) {
	return decodeAnnotations(p.Annotations, names)
}

func decodeAnnotations(protos []*metadata.Annotation, names *NameTable) ([]*descriptor.Annotation, error) {
	if len(protos) == 0 {
		return nil, nil
	}
	out := make([]*descriptor.Annotation, 0, len(protos))
	for _, a := range protos {
		cls, err := names.Name(a.ID)
		if err != nil {
			return nil, fmt.Errorf("deserialize: annotation: %w", err)
		}
		ann := &descriptor.Annotation{ClassName: cls}
		for _, arg := range a.Arguments {
			name, err := names.Name(arg.NameID)
			if err != nil {
				return nil, fmt.Errorf("deserialize: annotation %s: %w", cls, err)
			}
			ann.Arguments = append(ann.Arguments, descriptor.AnnotationArgument{Name: name, Value: arg.Value})
		}
		out = append(out, ann)
	}
	return out, nil
}
