// Package descriptor is the resolved declaration model: classes, functions,
// properties, type parameters and the types that connect them.
//
// Descriptors are immutable once published. Fake overrides and substituted
// copies are new descriptors that keep a link to the declaration they were
// derived from, reachable through Original.
package descriptor

// ClassKind is the shape of a class descriptor.
type ClassKind int

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindEnumClass
	ClassKindEnumEntry
	ClassKindAnnotationClass
	ClassKindObject
	ClassKindCompanionObject
)

var classKindNames = [...]string{
	ClassKindClass:           "class",
	ClassKindInterface:       "interface",
	ClassKindEnumClass:       "enum class",
	ClassKindEnumEntry:       "enum entry",
	ClassKindAnnotationClass: "annotation class",
	ClassKindObject:          "object",
	ClassKindCompanionObject: "companion object",
}

func (k ClassKind) String() string {
	if k >= 0 && int(k) < len(classKindNames) {
		return classKindNames[k]
	}
	return "unknown"
}

// IsObject reports object-like kinds, which are enumerated separately from
// plain classes.
func (k ClassKind) IsObject() bool {
	return k == ClassKindObject || k == ClassKindCompanionObject
}

// Modality describes whether a declaration may be overridden.
type Modality int

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

func (m Modality) String() string {
	switch m {
	case ModalityOpen:
		return "open"
	case ModalityAbstract:
		return "abstract"
	case ModalitySealed:
		return "sealed"
	}
	return "final"
}

// Visibility of a declaration.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityInternal
	VisibilityPrivate
	VisibilityPrivateToThis
	VisibilityLocal
)

func (v Visibility) String() string {
	switch v {
	case VisibilityProtected:
		return "protected"
	case VisibilityInternal:
		return "internal"
	case VisibilityPrivate:
		return "private"
	case VisibilityPrivateToThis:
		return "private_to_this"
	case VisibilityLocal:
		return "local"
	}
	return "public"
}

// CallableKind records how a callable came to exist in its container.
type CallableKind int

const (
	CallableDeclaration CallableKind = iota
	CallableFakeOverride
	CallableDelegation
	CallableSynthesized
)

func (k CallableKind) String() string {
	switch k {
	case CallableFakeOverride:
		return "fake_override"
	case CallableDelegation:
		return "delegation"
	case CallableSynthesized:
		return "synthesized"
	}
	return "declaration"
}

// Descriptor is any resolved declaration.
type Descriptor interface {
	Name() string
	// ContainingDeclaration is nil for packages.
	ContainingDeclaration() Descriptor
}

// ClassDescriptor is a resolved class. Implementations build their
// supertypes and member scope lazily.
type ClassDescriptor interface {
	Descriptor
	FQName() string
	Kind() ClassKind
	Modality() Modality
	Visibility() Visibility
	TypeParameters() []*TypeParameter
	TypeConstructor() *TypeConstructor
	Supertypes() ([]*Type, error)
	MemberScope() MemberScope
}

// MemberScope answers name queries over the members of one container.
type MemberScope interface {
	Functions(name string) ([]*Function, error)
	Properties(name string) ([]*Property, error)
	// Classifier returns nil, nil when no class of that name is visible.
	Classifier(name string) (ClassDescriptor, error)
	AllDescriptors() ([]Descriptor, error)
}

// Package is a package fragment.
type Package struct {
	FQ string
}

func (p *Package) Name() string                      { return p.FQ }
func (p *Package) ContainingDeclaration() Descriptor { return nil }

// Property is a resolved property.
type Property struct {
	name       string
	owner      Descriptor
	Type       *Type
	Receiver   *Type
	Var        bool
	Kind       CallableKind
	Modality   Modality
	Visibility Visibility
}

// NewProperty returns a property declared in owner.
func NewProperty(name string, owner Descriptor, typ *Type) *Property {
	return &Property{name: name, owner: owner, Type: typ}
}

func (p *Property) Name() string                      { return p.name }
func (p *Property) ContainingDeclaration() Descriptor { return p.owner }

// Annotation is a resolved annotation use.
type Annotation struct {
	ClassName string
	Arguments []AnnotationArgument
}

// AnnotationArgument is one name=value pair of an annotation use.
type AnnotationArgument struct {
	Name  string
	Value string
}
