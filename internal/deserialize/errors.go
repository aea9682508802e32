// Package deserialize rebuilds descriptors from serialized metadata.
//
// A Context carries what every message of one entry shares: its name
// table, the type deserializer for the type parameters in scope, the
// annotation deserializer and the class resolver. Classes and member scopes
// are built in two phases: the class shell first, then the scope that
// points back at it. Everything a scope resolves is memoized.
package deserialize

import "errors"

var (
	// ErrBadIndex is returned when a message refers past the end of the
	// name table or to an undeclared type parameter.
	ErrBadIndex = errors.New("deserialize: index out of range")

	// ErrUnsupported is returned by UnsupportedAnnotations.
	ErrUnsupported = errors.New("deserialize: unsupported")

	// ErrInconsistent reports a broken internal invariant, such as an
	// advertised class that does not resolve.
	ErrInconsistent = errors.New("deserialize: inconsistent metadata")
)
