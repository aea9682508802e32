package deserialize

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/memo"
	"github.com/jward/stratum/internal/metadata"
)

// EntrySource supplies bundle entries by qualified name. Unknown names
// yield nil, nil.
type EntrySource interface {
	Entry(fqName string, kind metadata.EntryKind) (*metadata.Entry, error)
}

// Resolver deserializes classes and packages from an EntrySource and
// caches every descriptor it builds, so each qualified name maps to one
// descriptor for the resolver's lifetime. Classes and the package fragment
// of the same package share one package descriptor.
type Resolver struct {
	src         EntrySource
	annotations AnnotationDeserializer
	conflicts   descriptor.ConflictReporter

	classes  *memo.Map[string, *Class]
	packages *memo.Map[string, *PackageScope]
	pkgDescs *memo.Map[string, *descriptor.Package]
}

var _ ClassResolver = (*Resolver)(nil)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithAnnotations sets the annotation deserializer. The default fails
// every annotation request.
func WithAnnotations(a AnnotationDeserializer) ResolverOption {
	return func(r *Resolver) { r.annotations = a }
}

// WithConflicts routes override conflicts to rep.
func WithConflicts(rep descriptor.ConflictReporter) ResolverOption {
	return func(r *Resolver) { r.conflicts = rep }
}

// NewResolver returns a resolver over src.
func NewResolver(src EntrySource, opts ...ResolverOption) *Resolver {
	r := &Resolver{src: src, annotations: UnsupportedAnnotations{}}
	for _, o := range opts {
		o(r)
	}
	r.classes = memo.NewMap(r.loadClass)
	r.packages = memo.NewMap(r.loadPackage)
	r.pkgDescs = memo.NewMap(func(fq string) (*descriptor.Package, error) {
		return &descriptor.Package{FQ: fq}, nil
	})
	return r
}

// ResolveClass implements ClassResolver.
func (r *Resolver) ResolveClass(fqName string) (descriptor.ClassDescriptor, error) {
	c, err := r.Class(fqName)
	if err != nil || c == nil {
		return nil, err
	}
	return c, nil
}

// Class returns the class named fqName, or nil if no entry has it.
func (r *Resolver) Class(fqName string) (*Class, error) {
	return r.classes.Get(fqName)
}

// Package returns the scope of the package fragment fqName, or nil if no
// entry has it.
func (r *Resolver) Package(fqName string) (*PackageScope, error) {
	return r.packages.Get(fqName)
}

func (r *Resolver) context(e *metadata.Entry, container descriptor.Descriptor) *Context {
	ctx := NewContext(NewNameTable(e.Names), r, r.annotations, container)
	ctx.Conflicts = r.conflicts
	return ctx
}

func (r *Resolver) loadClass(fqName string) (*Class, error) {
	e, err := r.src.Entry(fqName, metadata.EntryClass)
	if err != nil {
		return nil, fmt.Errorf("deserialize: load class %s: %w", fqName, err)
	}
	if e == nil {
		return nil, nil
	}
	var proto metadata.Class
	if err := proto.Unmarshal(e.Payload); err != nil {
		return nil, fmt.Errorf("deserialize: class %s: %w", fqName, err)
	}
	pkg, _ := r.pkgDescs.Get(packageOf(fqName))
	return NewClass(r.context(e, pkg), pkg, &proto)
}

func (r *Resolver) loadPackage(fqName string) (*PackageScope, error) {
	e, err := r.src.Entry(fqName, metadata.EntryPackage)
	if err != nil {
		return nil, fmt.Errorf("deserialize: load package %s: %w", fqName, err)
	}
	if e == nil {
		return nil, nil
	}
	var proto metadata.Package
	if err := proto.Unmarshal(e.Payload); err != nil {
		return nil, fmt.Errorf("deserialize: package %s: %w", fqName, err)
	}
	pkg, _ := r.pkgDescs.Get(fqName)
	return NewPackageScope(r.context(e, pkg), pkg, &proto)
}

// BundleSource serves entries from decoded bundles held in memory.
type BundleSource struct {
	entries map[metadata.EntryKind]map[string]*metadata.Entry
}

// NewBundleSource indexes the entries of bundles. A later entry with the
// same name and kind replaces an earlier one.
func NewBundleSource(bundles ...*metadata.Bundle) *BundleSource {
	s := &BundleSource{entries: map[metadata.EntryKind]map[string]*metadata.Entry{
		metadata.EntryClass:   {},
		metadata.EntryPackage: {},
	}}
	for _, b := range bundles {
		for _, e := range b.Entries {
			if s.entries[e.Kind] == nil {
				s.entries[e.Kind] = make(map[string]*metadata.Entry)
			}
			s.entries[e.Kind][e.FQName] = e
		}
	}
	return s
}

func (s *BundleSource) Entry(fqName string, kind metadata.EntryKind) (*metadata.Entry, error) {
	return s.entries[kind][fqName], nil
}
