package raw

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// InstanceFieldName is the static field through which an object
// declaration exposes its single instance.
const InstanceFieldName = "INSTANCE"

// Member is implemented by *Field and *Method.
type Member interface {
	MemberName() string
	IsStatic() bool
	IsPrivate() bool
	IsSynthetic() bool
	DeclaringClass() *Class
}

// Field is a field declaration.
type Field struct {
	Name      string
	Type      TypeRef
	Modifiers Modifiers
	Synthetic bool
	Owner     *Class
}

func (f *Field) MemberName() string     { return f.Name }
func (f *Field) IsStatic() bool         { return f.Modifiers.Static }
func (f *Field) IsPrivate() bool        { return f.Modifiers.IsPrivate() }
func (f *Field) IsSynthetic() bool      { return f.Synthetic }
func (f *Field) DeclaringClass() *Class { return f.Owner }

// Param is a method parameter. Receiver marks the implicit receiver of an
// extension accessor.
type Param struct {
	Name     string
	Type     TypeRef
	Receiver bool
}

// Method is a method or constructor declaration.
type Method struct {
	Name        string
	Params      []Param
	Return      TypeRef
	TypeParams  []TypeParam
	Modifiers   Modifiers
	Synthetic   bool
	Constructor bool
	HasBody     bool

	// PropertyAccessor is set by metadata on compiled getters and setters.
	PropertyAccessor bool

	Owner *Class
}

func (m *Method) MemberName() string     { return m.Name }
func (m *Method) IsStatic() bool         { return m.Modifiers.Static }
func (m *Method) IsPrivate() bool        { return m.Modifiers.IsPrivate() }
func (m *Method) IsSynthetic() bool      { return m.Synthetic }
func (m *Method) DeclaringClass() *Class { return m.Owner }

// IsAbstract reports an abstract method. Interface methods without a static
// modifier or a default body are implicitly abstract.
func (m *Method) IsAbstract() bool {
	if m.Modifiers.Abstract {
		return true
	}
	return m.Owner != nil && m.Owner.IsInterface() && !m.Modifiers.Static && !m.HasBody
}

// AccessorKind classifies a parsed accessor name.
type AccessorKind int

const (
	AccessorNone AccessorKind = iota
	AccessorGetter
	AccessorSetter
)

// ParseAccessorName splits getFoo, isFoo and setFoo into the accessor kind
// and the property name.
func ParseAccessorName(name string) (AccessorKind, string) {
	for _, p := range []struct {
		prefix string
		kind   AccessorKind
	}{
		{"get", AccessorGetter},
		{"is", AccessorGetter},
		{"set", AccessorSetter},
	} {
		rest, ok := strings.CutPrefix(name, p.prefix)
		if !ok || rest == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(r) {
			continue
		}
		if p.prefix == "is" {
			// isFoo keeps its prefix as the property name.
			return p.kind, name
		}
		return p.kind, decapitalize(rest, r, size)
	}
	return AccessorNone, ""
}

// decapitalize follows the bean convention: a name starting with two upper
// case letters is left untouched.
func decapitalize(s string, first rune, size int) string {
	if next, _ := utf8.DecodeRuneInString(s[size:]); unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(first)) + s[size:]
}
