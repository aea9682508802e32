package descriptor

// ValueParameter is a function parameter.
type ValueParameter struct {
	Name        string
	Index       int
	Type        *Type
	VarargOf    *Type // element type of a vararg parameter
	Annotations []*Annotation
}

// Function is a resolved function.
type Function struct {
	name        string
	owner       Descriptor
	kind        CallableKind
	visibility  Visibility
	modality    Modality
	typeParams  []*TypeParameter
	receiver    *Type
	params      []*ValueParameter
	returnType  *Type
	annotations []*Annotation

	original   *Function
	overridden []*Function

	// substitutedFrom is the function Substitute was applied to.
	substitutedFrom *Function
}

// FunctionSpec carries the fields of a new function declaration.
type FunctionSpec struct {
	Name        string
	Owner       Descriptor
	Visibility  Visibility
	Modality    Modality
	Receiver    *Type
	Params      []*ValueParameter
	ReturnType  *Type
	Annotations []*Annotation
}

// NewFunction returns a declared function. Type parameters are attached
// with SetTypeParameters, since their owner is the function itself.
func NewFunction(spec FunctionSpec) *Function {
	return &Function{
		name:        spec.Name,
		owner:       spec.Owner,
		kind:        CallableDeclaration,
		visibility:  spec.Visibility,
		modality:    spec.Modality,
		receiver:    spec.Receiver,
		params:      spec.Params,
		returnType:  spec.ReturnType,
		annotations: spec.Annotations,
	}
}

// SetTypeParameters completes construction. It must be called before the
// function is shared.
func (f *Function) SetTypeParameters(params []*TypeParameter) { f.typeParams = params }

func (f *Function) Name() string                       { return f.name }
func (f *Function) ContainingDeclaration() Descriptor  { return f.owner }
func (f *Function) Kind() CallableKind                 { return f.kind }
func (f *Function) Visibility() Visibility             { return f.visibility }
func (f *Function) Modality() Modality                 { return f.modality }
func (f *Function) TypeParameters() []*TypeParameter   { return f.typeParams }
func (f *Function) Receiver() *Type                    { return f.receiver }
func (f *Function) ValueParameters() []*ValueParameter { return f.params }
func (f *Function) ReturnType() *Type                  { return f.returnType }
func (f *Function) Annotations() []*Annotation         { return f.annotations }

// Overridden returns the supertype functions this one overrides.
func (f *Function) Overridden() []*Function { return f.overridden }

// Original returns the declaration this function was copied or substituted
// from, following the chain to its root. A declaration is its own original.
func (f *Function) Original() *Function {
	if f.original == nil {
		return f
	}
	return f.original
}

func (f *Function) clone() *Function {
	cp := *f
	cp.original = f.Original()
	cp.overridden = nil
	cp.substitutedFrom = nil
	return &cp
}

// Unsubstituted returns the function Substitute produced f from, as its
// declaring scope publishes it. Any other function is returned as is.
func (f *Function) Unsubstituted() *Function {
	for f.substitutedFrom != nil {
		f = f.substitutedFrom
	}
	return f
}

// Copy returns f re-parented to owner with the given kind. A fake override
// records the unsubstituted f as the function it overrides.
func (f *Function) Copy(owner Descriptor, kind CallableKind) *Function {
	cp := f.clone()
	cp.owner = owner
	cp.kind = kind
	if kind == CallableFakeOverride {
		cp.overridden = []*Function{f.Unsubstituted()}
	}
	return cp
}

// Substitute returns f with s applied to its signature. An empty
// substitutor returns f itself.
func (f *Function) Substitute(s Substitutor) *Function {
	if len(s) == 0 {
		return f
	}
	cp := f.clone()
	cp.overridden = f.overridden
	cp.substitutedFrom = f
	cp.receiver = s.Substitute(f.receiver)
	cp.returnType = s.Substitute(f.returnType)
	cp.params = make([]*ValueParameter, len(f.params))
	for i, p := range f.params {
		np := *p
		np.Type = s.Substitute(p.Type)
		np.VarargOf = s.Substitute(p.VarargOf)
		cp.params[i] = &np
	}
	return cp
}

// signature is the key used for override matching: receiver and value
// parameter types.
func (f *Function) signature() string {
	key := ""
	if f.receiver != nil {
		key = f.receiver.key() + "."
	}
	key += "("
	for i, p := range f.params {
		if i > 0 {
			key += ","
		}
		key += p.Type.key()
	}
	return key + ")"
}
