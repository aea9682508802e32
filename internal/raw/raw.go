// Package raw models unresolved declaration containers: classes and packages
// as produced by the syntax reader or decoded from the store. Containers are
// immutable once built and are shared read-only by every provider.
package raw

import "strings"

// Container is either a *Class or a *Package. The set of implementations is
// closed; callers switch on the concrete type.
type Container interface {
	// QualifiedName returns the dotted name of the container.
	QualifiedName() string
	container()
}

// ClassKind distinguishes the shapes of class-like containers.
type ClassKind int

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindEnum
	ClassKindAnnotation
	ClassKindObject
)

func (k ClassKind) String() string {
	switch k {
	case ClassKindClass:
		return "class"
	case ClassKindInterface:
		return "interface"
	case ClassKindEnum:
		return "enum"
	case ClassKindAnnotation:
		return "annotation"
	case ClassKindObject:
		return "object"
	}
	return "unknown"
}

// ParseClassKind is the inverse of ClassKind.String. Unknown values map to
// ClassKindClass.
func ParseClassKind(s string) ClassKind {
	switch s {
	case "interface":
		return ClassKindInterface
	case "enum":
		return ClassKindEnum
	case "annotation":
		return ClassKindAnnotation
	case "object":
		return ClassKindObject
	}
	return ClassKindClass
}

// Origin records whether a container was declared in the primary language
// (and therefore carries language metadata) or in a foreign one.
type Origin int

const (
	OriginForeign Origin = iota
	OriginPrimary
)

func (o Origin) String() string {
	if o == OriginPrimary {
		return "primary"
	}
	return "foreign"
}

// OriginOf inspects the class metadata marker.
func OriginOf(c *Class) Origin {
	if c != nil && c.Primary {
		return OriginPrimary
	}
	return OriginForeign
}

// Modifiers are the declaration flags shared by classes and members.
type Modifiers struct {
	Visibility string // public, protected, private, package
	Static     bool
	Abstract   bool
	Final      bool
}

// IsPrivate reports private visibility.
func (m Modifiers) IsPrivate() bool { return m.Visibility == "private" }

// TypeRef is an unresolved type as written in a declaration.
type TypeRef struct {
	Name string    `json:"name"`           // simple or qualified name, or primitive keyword
	Args []TypeRef `json:"args,omitempty"` // generic arguments
	Dims int       `json:"dims,omitempty"` // array dimensions
}

// String renders the reference in source form.
func (t TypeRef) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	for i := 0; i < t.Dims; i++ {
		b.WriteString("[]")
	}
	return b.String()
}

// TypeParam is a declared type parameter.
type TypeParam struct {
	Name   string    `json:"name"`
	Bounds []TypeRef `json:"bounds,omitempty"`
}

// Class is a class-like container.
type Class struct {
	FQName     string
	Name       string
	Package    string
	Kind       ClassKind
	Modifiers  Modifiers
	Primary    bool
	TypeParams []TypeParam
	Supertypes []TypeRef
	Fields     []*Field
	Methods    []*Method
	Nested     []*Class

	// Outer is a non-owning back-reference to the enclosing class.
	Outer *Class
}

func (c *Class) QualifiedName() string { return c.FQName }
func (*Class) container()              {}

// IsInterface reports interface kind (annotations are interfaces too).
func (c *Class) IsInterface() bool {
	return c.Kind == ClassKindInterface || c.Kind == ClassKindAnnotation
}

// IsEnum reports enum kind.
func (c *Class) IsEnum() bool { return c.Kind == ClassKindEnum }

// Package is a package-like container.
type Package struct {
	FQName  string
	Classes []*Class

	// Holder is the synthetic class carrying top-level functions and
	// properties as static members, if the package has any.
	Holder *Class
}

func (p *Package) QualifiedName() string { return p.FQName }
func (*Package) container()              {}

// Class returns the top-level class with the given simple name.
func (p *Package) Class(name string) *Class {
	for _, c := range p.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Adopt sets Owner back-references on every member and Outer on every nested
// class. Readers call it once after building a class tree.
func (c *Class) Adopt() {
	for _, f := range c.Fields {
		f.Owner = c
	}
	for _, m := range c.Methods {
		m.Owner = c
	}
	for _, n := range c.Nested {
		n.Outer = c
		n.Adopt()
	}
}
