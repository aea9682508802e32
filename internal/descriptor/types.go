package descriptor

import (
	"strconv"
	"strings"

	"github.com/jward/stratum/internal/memo"
)

// Variance of a type parameter or type projection.
type Variance int

const (
	Invariant Variance = iota
	In
	Out
	Star
)

func (v Variance) String() string {
	switch v {
	case In:
		return "in"
	case Out:
		return "out"
	case Star:
		return "*"
	}
	return ""
}

// TypeParameter is a declared type parameter of a class or function.
type TypeParameter struct {
	Name     string
	Index    int
	Reified  bool
	Variance Variance

	// Owner is the declaring class or function.
	Owner Descriptor

	bounds *memo.Cell[[]*Type]
}

// SetUpperBounds installs the computation of the declared bounds. Bounds
// may mention the parameter itself, so they are resolved on first use.
func (p *TypeParameter) SetUpperBounds(fn func() ([]*Type, error)) {
	p.bounds = memo.NewCell(fn)
}

// UpperBounds returns the declared bounds.
func (p *TypeParameter) UpperBounds() ([]*Type, error) {
	if p.bounds == nil {
		return nil, nil
	}
	return p.bounds.Get()
}

// TypeConstructor is the head of a type: a class, a type parameter, or a
// named class that could not be resolved.
type TypeConstructor struct {
	Class ClassDescriptor
	Param *TypeParameter
	Named string
}

// Name returns the display name of the constructor.
func (c *TypeConstructor) Name() string {
	switch {
	case c.Class != nil:
		return c.Class.FQName()
	case c.Param != nil:
		return c.Param.Name
	}
	return c.Named
}

// Parameters returns the class type parameters, if any.
func (c *TypeConstructor) Parameters() []*TypeParameter {
	if c.Class != nil {
		return c.Class.TypeParameters()
	}
	return nil
}

// TypeProjection is a type argument.
type TypeProjection struct {
	Projection Variance
	Type       *Type // nil for a star projection
}

// Type is a constructed type.
type Type struct {
	Constructor *TypeConstructor
	Arguments   []TypeProjection
	Nullable    bool
}

// String renders the type as it would appear in source.
func (t *Type) String() string {
	var b strings.Builder
	t.write(&b, nil)
	return b.String()
}

// key renders the type for signature comparison. Function type parameters
// are written by position so that two functions declaring <T> and <U> in the
// same place compare equal.
func (t *Type) key() string {
	var b strings.Builder
	t.write(&b, func(p *TypeParameter) string {
		if _, ok := p.Owner.(*Function); ok {
			return "#" + strconv.Itoa(p.Index)
		}
		return ""
	})
	return b.String()
}

func (t *Type) write(b *strings.Builder, param func(*TypeParameter) string) {
	if t == nil {
		b.WriteString("?")
		return
	}
	name := t.Constructor.Name()
	if p := t.Constructor.Param; p != nil && param != nil {
		if s := param(p); s != "" {
			name = s
		}
	}
	b.WriteString(name)
	if len(t.Arguments) > 0 {
		b.WriteByte('<')
		for i, a := range t.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			if a.Projection == Star || a.Type == nil {
				b.WriteByte('*')
				continue
			}
			if a.Projection != Invariant {
				b.WriteString(a.Projection.String())
				b.WriteByte(' ')
			}
			a.Type.write(b, param)
		}
		b.WriteByte('>')
	}
	if t.Nullable {
		b.WriteByte('?')
	}
}

// Substitutor replaces type parameters with type arguments.
type Substitutor map[*TypeParameter]*Type

// SupertypeSubstitutor maps the type parameters of a supertype's class to
// the arguments the supertype is instantiated with. Star projections are
// left unsubstituted.
func SupertypeSubstitutor(supertype *Type) Substitutor {
	params := supertype.Constructor.Parameters()
	if len(params) == 0 {
		return nil
	}
	s := make(Substitutor, len(params))
	for i, p := range params {
		if i >= len(supertype.Arguments) {
			break
		}
		arg := supertype.Arguments[i]
		if arg.Projection == Star || arg.Type == nil {
			continue
		}
		s[p] = arg.Type
	}
	return s
}

// Substitute returns t with every mapped parameter replaced. Unchanged
// subtrees are shared.
func (s Substitutor) Substitute(t *Type) *Type {
	if len(s) == 0 || t == nil {
		return t
	}
	if p := t.Constructor.Param; p != nil {
		r, ok := s[p]
		if !ok {
			return t
		}
		if t.Nullable && !r.Nullable {
			cp := *r
			cp.Nullable = true
			return &cp
		}
		return r
	}

	var args []TypeProjection
	for i, a := range t.Arguments {
		sub := s.Substitute(a.Type)
		if sub == a.Type {
			continue
		}
		if args == nil {
			args = make([]TypeProjection, len(t.Arguments))
			copy(args, t.Arguments)
		}
		args[i].Type = sub
	}
	if args == nil {
		return t
	}
	return &Type{Constructor: t.Constructor, Arguments: args, Nullable: t.Nullable}
}
