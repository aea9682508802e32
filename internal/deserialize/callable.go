package deserialize

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/metadata"
)

// unitType is the return type of callables that do not serialize one.
var unitType = &descriptor.Type{Constructor: &descriptor.TypeConstructor{Named: "kotlin.Unit"}}

// Function deserializes a callable of kind FUN owned by ctx.Container.
func (c *Context) Function(proto *metadata.Callable) (*descriptor.Function, error) {
	if proto.Kind() != metadata.CallableFun {
		return nil, fmt.Errorf("%w: callable kind %s is not a function", ErrInconsistent, proto.Kind())
	}
	name, err := c.Names.Name(proto.Name)
	if err != nil {
		return nil, fmt.Errorf("deserialize: function name: %w", err)
	}

	// The function's type parameters are in scope for its own signature,
	// so they are declared before anything else is read.
	fc, err := c.Child(c.Container, proto.TypeParameters)
	if err != nil {
		return nil, fmt.Errorf("deserialize: function %s: %w", name, err)
	}
	fail := func(what string, err error) (*descriptor.Function, error) {
		return nil, fmt.Errorf("deserialize: function %s: %s: %w", name, what, err)
	}

	receiver, err := fc.Types.Type(proto.ReceiverType)
	if err != nil {
		return fail("receiver", err)
	}
	ret, err := fc.Types.Type(proto.ReturnType)
	if err != nil {
		return fail("return type", err)
	}
	if ret == nil {
		ret = unitType
	}

	params := make([]*descriptor.ValueParameter, 0, len(proto.ValueParameters))
	for i, p := range proto.ValueParameters {
		vp, err := fc.valueParameter(proto, p, i)
		if err != nil {
			return fail(fmt.Sprintf("parameter %d", i), err)
		}
		params = append(params, vp)
	}

	var annotations []*descriptor.Annotation
	if proto.HasAnnotations() {
		if annotations, err = c.Annotations.CallableAnnotations(proto, c.Names); err != nil {
			return fail("annotations", err)
		}
	}

	fn := descriptor.NewFunction(descriptor.FunctionSpec{
		Name:        name,
		Owner:       c.Container,
		Visibility:  descriptor.Visibility(proto.Visibility()),
		Modality:    descriptor.Modality(proto.Modality()),
		Receiver:    receiver,
		Params:      params,
		ReturnType:  ret,
		Annotations: annotations,
	})
	typeParams := fc.Types.TypeParameters()
	for _, tp := range typeParams {
		tp.Owner = fn
	}
	fn.SetTypeParameters(typeParams)
	return fn, nil
}

func (c *Context) valueParameter(callable *metadata.Callable, p *metadata.ValueParameter, index int) (*descriptor.ValueParameter, error) {
	name, err := c.Names.Name(p.Name)
	if err != nil {
		return nil, err
	}
	typ, err := c.Types.Type(p.Type)
	if err != nil {
		return nil, err
	}
	vararg, err := c.Types.Type(p.VarargElementType)
	if err != nil {
		return nil, err
	}
	vp := &descriptor.ValueParameter{Name: name, Index: index, Type: typ, VarargOf: vararg}
	if p.HasAnnotations() {
		if vp.Annotations, err = c.Annotations.ValueParameterAnnotations(callable, p, c.Names); err != nil {
			return nil, err
		}
	}
	return vp, nil
}
