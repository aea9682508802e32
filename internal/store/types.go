package store

import "time"

// Source domain types

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LastIndexed time.Time
}

// Class is one class-like declaration read from a source file. Nested
// classes point at their enclosing row through OuterClassID.
type Class struct {
	ID            int64
	FileID        int64
	FQName        string
	Name          string
	Package       string
	Kind          string
	Visibility    string
	Modifiers     []string
	Primary       bool
	Holder        bool
	TypeParams    string // JSON encoded []raw.TypeParam
	Supertypes    string // JSON encoded []raw.TypeRef
	SignatureHash string
	OuterClassID  *int64
}

// Member is a field, method or constructor of a Class.
type Member struct {
	ID               int64
	ClassID          int64
	Name             string
	Kind             string // field, method, constructor
	Ordinal          int
	Visibility       string
	Modifiers        []string
	TypeExpr         string // JSON encoded raw.TypeRef: field type or method return
	TypeParams       string // JSON encoded []raw.TypeParam
	Synthetic        bool
	HasBody          bool
	PropertyAccessor bool
}

const (
	MemberField       = "field"
	MemberMethod      = "method"
	MemberConstructor = "constructor"
)

type Param struct {
	ID         int64
	MemberID   int64
	Name       string
	Ordinal    int
	TypeExpr   string // JSON encoded raw.TypeRef
	IsReceiver bool
}

// Metadata domain types

// MetadataEntry is one serialized class or package imported from a bundle.
type MetadataEntry struct {
	ID         int64
	FQName     string
	Kind       string // class, package
	Names      []string
	Payload    []byte
	Source     string
	ImportedAt time.Time
}
