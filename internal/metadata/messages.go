// Package metadata is the serialized form of compiled declarations: the
// message types, their protobuf wire codec, and the schema used to inspect
// raw payloads.
package metadata

// CallableKind is stored in bits 0-1 of callable flags.
type CallableKind int32

const (
	CallableFun CallableKind = iota
	CallableVal
	CallableVar
	CallableConstructor
)

func (k CallableKind) String() string {
	switch k {
	case CallableVal:
		return "val"
	case CallableVar:
		return "var"
	case CallableConstructor:
		return "constructor"
	}
	return "fun"
}

// ClassKind is stored in bits 0-2 of class flags.
type ClassKind int32

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindEnumClass
	ClassKindEnumEntry
	ClassKindAnnotationClass
	ClassKindObject
	ClassKindCompanionObject
)

// Visibility is stored in bits 2-4 of callable flags.
type Visibility int32

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityInternal
	VisibilityPrivate
	VisibilityPrivateToThis
	VisibilityLocal
)

// Modality is stored in bits 5-6 of callable flags.
type Modality int32

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

const hasAnnotationsBit = 1 << 7

// CallableFlags packs the callable flag fields.
func CallableFlags(kind CallableKind, vis Visibility, mod Modality, hasAnnotations bool) int32 {
	f := int32(kind)&0x3 | (int32(vis)&0x7)<<2 | (int32(mod)&0x3)<<5
	if hasAnnotations {
		f |= hasAnnotationsBit
	}
	return f
}

// ClassFlags packs the class flag fields.
func ClassFlags(kind ClassKind) int32 { return int32(kind) & 0x7 }

// ConstructorKind says what a type constructor id refers to.
type ConstructorKind int32

const (
	ConstructorClass ConstructorKind = iota
	ConstructorTypeParameter
)

// Projection of a type argument.
type Projection int32

const (
	ProjectionInv Projection = iota
	ProjectionIn
	ProjectionOut
	ProjectionStar
)

// Variance of a type parameter.
type Variance int32

const (
	VarianceInv Variance = iota
	VarianceIn
	VarianceOut
)

// EntryKind tells what a bundle entry payload decodes to.
type EntryKind int32

const (
	EntryClass EntryKind = iota
	EntryPackage
)

func (k EntryKind) String() string {
	if k == EntryPackage {
		return "package"
	}
	return "class"
}

// ParseEntryKind is the inverse of EntryKind.String.
func ParseEntryKind(s string) (EntryKind, bool) {
	switch s {
	case "class":
		return EntryClass, true
	case "package":
		return EntryPackage, true
	}
	return 0, false
}

// Class is a serialized class.
type Class struct {
	Flags           int32
	FQName          int32
	TypeParameters  []*TypeParameter
	Supertypes      []*Type
	Members         []*Callable
	NestedClassName []int32
}

// Kind decodes the class kind from Flags.
func (m *Class) Kind() ClassKind { return ClassKind(m.Flags & 0x7) }

// Package is a serialized package fragment.
type Package struct {
	Members   []*Callable
	ClassName []int32
}

// Callable is a serialized function, property or constructor.
type Callable struct {
	Flags           int32
	Name            int32
	TypeParameters  []*TypeParameter
	ReceiverType    *Type
	ValueParameters []*ValueParameter
	ReturnType      *Type
	Annotations     []*Annotation
}

func (m *Callable) Kind() CallableKind     { return CallableKind(m.Flags & 0x3) }
func (m *Callable) Visibility() Visibility { return Visibility(m.Flags >> 2 & 0x7) }
func (m *Callable) Modality() Modality     { return Modality(m.Flags >> 5 & 0x3) }
func (m *Callable) HasAnnotations() bool   { return m.Flags&hasAnnotationsBit != 0 }

// ParamHasAnnotations is bit 0 of value parameter flags.
const ParamHasAnnotations int32 = 1

// ValueParameter is a serialized value parameter.
type ValueParameter struct {
	Flags             int32
	Name              int32
	Type              *Type
	VarargElementType *Type
	Annotations       []*Annotation
}

// HasAnnotations reports whether the parameter carries annotations.
func (m *ValueParameter) HasAnnotations() bool { return m.Flags&ParamHasAnnotations != 0 }

// TypeParameter is a serialized type parameter. ID is unique within the
// class or callable that declares it and its nested declarations.
type TypeParameter struct {
	ID          int32
	Name        int32
	Reified     bool
	Variance    Variance
	UpperBounds []*Type
}

// TypeConstructor refers to a class by name index or to a type parameter
// by id.
type TypeConstructor struct {
	Kind ConstructorKind
	ID   int32
}

// TypeArgument is one argument of a serialized type.
type TypeArgument struct {
	Projection Projection
	Type       *Type
}

// Type is a serialized type.
type Type struct {
	Constructor *TypeConstructor
	Arguments   []*TypeArgument
	Nullable    bool
}

// Annotation is a serialized annotation use. ID is the name index of the
// annotation class.
type Annotation struct {
	ID        int32
	Arguments []*AnnotationArgument
}

// AnnotationArgument is one argument of an annotation use.
type AnnotationArgument struct {
	NameID int32
	Value  string
}

// Bundle is a file of serialized entries.
type Bundle struct {
	Entries []*Entry
}

// Entry is one class or package with its name table.
type Entry struct {
	FQName  string
	Kind    EntryKind
	Names   []string
	Payload []byte
}
