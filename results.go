package stratum

import (
	"strings"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/deserialize"
	"github.com/jward/stratum/internal/members"
	"github.com/jward/stratum/internal/raw"
)

// MemberInfo is one name of a declaration provider.
type MemberInfo struct {
	Name         string         `json:"name"`
	Methods      []MethodInfo   `json:"methods,omitempty"`
	Properties   []PropertyInfo `json:"properties,omitempty"`
	SAMInterface string         `json:"sam_interface,omitempty"`
}

// MethodInfo describes a raw method or constructor.
type MethodInfo struct {
	Owner       string `json:"owner"`
	Signature   string `json:"signature"`
	Static      bool   `json:"static,omitempty"`
	Constructor bool   `json:"constructor,omitempty"`
	Abstract    bool   `json:"abstract,omitempty"`
}

// PropertyInfo is one property assembled from a field and its accessors.
type PropertyInfo struct {
	Type     string `json:"type"`
	Receiver string `json:"receiver,omitempty"`
	Var      bool   `json:"var"`
	Field    string `json:"field,omitempty"`
	Getter   string `json:"getter,omitempty"`
	Setter   string `json:"setter,omitempty"`
}

// DeclarationInfo describes a resolved descriptor.
type DeclarationInfo struct {
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Owner      string   `json:"owner,omitempty"`
	Signature  string   `json:"signature,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Modality   string   `json:"modality,omitempty"`
	Overrides  []string `json:"overrides,omitempty"`
}

// ClassInfo summarizes a deserialized class.
type ClassInfo struct {
	FQName         string   `json:"fq_name"`
	Kind           string   `json:"kind"`
	TypeParameters []string `json:"type_parameters,omitempty"`
	Supertypes     []string `json:"supertypes,omitempty"`
	Nested         []string `json:"nested,omitempty"`
	Members        []string `json:"members,omitempty"`
}

// ConflictInfo is an override conflict met while building a scope.
type ConflictInfo struct {
	Inherited *DeclarationInfo `json:"inherited"`
	Declared  *DeclarationInfo `json:"declared"`
}

func describeMembers(n *members.NamedMembers) (*MemberInfo, error) {
	info := &MemberInfo{Name: n.Name}
	for _, m := range n.Methods {
		info.Methods = append(info.Methods, MethodInfo{
			Owner:       classRef(m.Owner),
			Signature:   methodSignature(m),
			Static:      m.IsStatic(),
			Constructor: m.Constructor,
			Abstract:    m.IsAbstract(),
		})
	}
	groups, err := n.PropertyGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		p := PropertyInfo{Type: g.Type.String(), Var: g.IsVar()}
		if g.Receiver != nil {
			p.Receiver = g.Receiver.String()
		}
		p.Field = accessorRef(g.Field)
		p.Getter = accessorRef(g.Getter)
		p.Setter = accessorRef(g.Setter)
		info.Properties = append(info.Properties, p)
	}
	if n.SAMInterface != nil {
		info.SAMInterface = n.SAMInterface.FQName
	}
	return info, nil
}

func classRef(c *raw.Class) string {
	if c == nil {
		return ""
	}
	return c.FQName
}

func accessorRef(acc *members.PropertyAccessor) string {
	if acc == nil {
		return ""
	}
	return classRef(acc.Member.DeclaringClass()) + "." + acc.Member.MemberName()
}

// methodSignature renders a raw method as name(Params): Return.
func methodSignature(m *raw.Method) string {
	var b strings.Builder
	if len(m.TypeParams) > 0 {
		b.WriteByte('<')
		for i, tp := range m.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tp.Name)
		}
		b.WriteString("> ")
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if !m.Constructor {
		b.WriteString(": ")
		b.WriteString(m.Return.String())
	}
	return b.String()
}

func describeAll(ds []descriptor.Descriptor) []*DeclarationInfo {
	out := make([]*DeclarationInfo, 0, len(ds))
	for _, d := range ds {
		out = append(out, describe(d))
	}
	return out
}

func describeFunctions(fns []*descriptor.Function) []*DeclarationInfo {
	out := make([]*DeclarationInfo, 0, len(fns))
	for _, f := range fns {
		out = append(out, describeFunction(f))
	}
	return out
}

func describe(d descriptor.Descriptor) *DeclarationInfo {
	switch v := d.(type) {
	case *descriptor.Function:
		return describeFunction(v)
	case *descriptor.Property:
		return &DeclarationInfo{
			Kind:       "property",
			Name:       v.Name(),
			Owner:      ownerName(v.ContainingDeclaration()),
			Signature:  propertySignature(v),
			Origin:     v.Kind.String(),
			Visibility: v.Visibility.String(),
			Modality:   v.Modality.String(),
		}
	case descriptor.ClassDescriptor:
		return &DeclarationInfo{
			Kind:       v.Kind().String(),
			Name:       v.FQName(),
			Owner:      ownerName(v.ContainingDeclaration()),
			Visibility: v.Visibility().String(),
			Modality:   v.Modality().String(),
		}
	}
	return &DeclarationInfo{Kind: "unknown", Name: d.Name()}
}

func describeFunction(f *descriptor.Function) *DeclarationInfo {
	if f == nil {
		return nil
	}
	info := &DeclarationInfo{
		Kind:       "function",
		Name:       f.Name(),
		Owner:      ownerName(f.ContainingDeclaration()),
		Signature:  functionSignature(f),
		Origin:     f.Kind().String(),
		Visibility: f.Visibility().String(),
		Modality:   f.Modality().String(),
	}
	for _, o := range f.Overridden() {
		info.Overrides = append(info.Overrides, ownerName(o.ContainingDeclaration())+"."+o.Name())
	}
	return info
}

// ownerName is the qualified name of a class or package descriptor.
func ownerName(d descriptor.Descriptor) string {
	switch v := d.(type) {
	case nil:
		return ""
	case descriptor.ClassDescriptor:
		return v.FQName()
	}
	return d.Name()
}

// functionSignature renders f as fun <T> Receiver.name(p: P): R.
func functionSignature(f *descriptor.Function) string {
	var b strings.Builder
	b.WriteString("fun ")
	if tps := f.TypeParameters(); len(tps) > 0 {
		b.WriteByte('<')
		for i, tp := range tps {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tp.Name)
		}
		b.WriteString("> ")
	}
	if r := f.Receiver(); r != nil {
		b.WriteString(r.String())
		b.WriteByte('.')
	}
	b.WriteString(f.Name())
	b.WriteByte('(')
	for i, p := range f.ValueParameters() {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.VarargOf != nil {
			b.WriteString("vararg ")
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(p.VarargOf.String())
			continue
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if rt := f.ReturnType(); rt != nil {
		b.WriteString(": ")
		b.WriteString(rt.String())
	}
	return b.String()
}

func propertySignature(p *descriptor.Property) string {
	var b strings.Builder
	if p.Var {
		b.WriteString("var ")
	} else {
		b.WriteString("val ")
	}
	if p.Receiver != nil {
		b.WriteString(p.Receiver.String())
		b.WriteByte('.')
	}
	b.WriteString(p.Name())
	if p.Type != nil {
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	return b.String()
}

func describeClass(c *deserialize.Class) (*ClassInfo, error) {
	info := &ClassInfo{FQName: c.FQName(), Kind: c.Kind().String()}
	for _, tp := range c.TypeParameters() {
		bounds, err := tp.UpperBounds()
		if err != nil {
			return nil, err
		}
		s := tp.Name
		for i, bound := range bounds {
			if i == 0 {
				s += " : "
			} else {
				s += ", "
			}
			s += bound.String()
		}
		info.TypeParameters = append(info.TypeParameters, s)
	}
	supers, err := c.Supertypes()
	if err != nil {
		return nil, err
	}
	for _, t := range supers {
		info.Supertypes = append(info.Supertypes, t.String())
	}
	if info.Nested, err = c.NestedClassNames(); err != nil {
		return nil, err
	}
	if scope, ok := c.MemberScope().(interface{ Names() []string }); ok {
		info.Members = scope.Names()
	}
	return info, nil
}
