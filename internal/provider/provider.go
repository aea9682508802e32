// Package provider wraps raw containers in lazily indexed declaration
// providers. A provider scans its container at most once, on the first
// query, and then answers every lookup from the cached index.
package provider

import (
	"fmt"

	"github.com/jward/stratum/internal/members"
	"github.com/jward/stratum/internal/memo"
	"github.com/jward/stratum/internal/raw"
)

// DeclarationProvider answers member queries for one container.
type DeclarationProvider interface {
	// Lookup returns the entry for name, or nil when the container never
	// declared it. A declared name whose members were all filtered out
	// yields an empty, non-nil entry.
	Lookup(name string) (*members.NamedMembers, error)

	// AllMembers returns every entry sorted by name.
	AllMembers() ([]*members.NamedMembers, error)

	Origin() raw.Origin
	Container() raw.Container
}

// base holds the state shared by every provider flavor.
type base struct {
	container raw.Container
	origin    raw.Origin
	index     *memo.Cell[*members.Index]
}

func (p *base) Lookup(name string) (*members.NamedMembers, error) {
	idx, err := p.index.Get()
	if err != nil {
		return nil, err
	}
	return idx.Lookup(name), nil
}

func (p *base) AllMembers() ([]*members.NamedMembers, error) {
	idx, err := p.index.Get()
	if err != nil {
		return nil, err
	}
	return idx.All(), nil
}

func (p *base) Origin() raw.Origin       { return p.origin }
func (p *base) Container() raw.Container { return p.container }

func buildIndex(c raw.Container, opts members.Options) func() (*members.Index, error) {
	return func() (*members.Index, error) {
		idx, err := members.Build(c, opts)
		if err != nil {
			return nil, fmt.Errorf("provider: index %s: %w", c.QualifiedName(), err)
		}
		return idx, nil
	}
}

// ClassProvider serves one class in a fixed static or instance scope.
type ClassProvider struct {
	base
	static bool
}

// NewClassProvider returns a provider over c. The origin is read from the
// class metadata once, here.
func NewClassProvider(c *raw.Class, static bool) *ClassProvider {
	opts := members.Options{StaticMembers: static, Origin: raw.OriginOf(c)}
	return &ClassProvider{
		base: base{
			container: c,
			origin:    opts.Origin,
			index:     memo.NewCell(buildIndex(c, opts)),
		},
		static: static,
	}
}

// Class returns the wrapped class.
func (p *ClassProvider) Class() *raw.Class { return p.container.(*raw.Class) }

// Static reports whether the provider serves static members.
func (p *ClassProvider) Static() bool { return p.static }

// PackageProvider serves the top-level declarations of one package. Package
// members are always static.
type PackageProvider struct {
	base
}

// NewPackageProvider returns a provider over p with the given origin. The
// holder class, if any, is scanned as part of the package.
func NewPackageProvider(p *raw.Package, origin raw.Origin) *PackageProvider {
	return newPackageProvider(p, p, origin)
}

// newPackageProvider reports p as its container but indexes scan.
func newPackageProvider(p, scan *raw.Package, origin raw.Origin) *PackageProvider {
	opts := members.Options{StaticMembers: true, Origin: origin}
	return &PackageProvider{
		base: base{
			container: p,
			origin:    origin,
			index:     memo.NewCell(buildIndex(scan, opts)),
		},
	}
}

func withoutHolder(p *raw.Package) *raw.Package {
	return &raw.Package{FQName: p.FQName, Classes: p.Classes}
}

// Package returns the wrapped package.
func (p *PackageProvider) Package() *raw.Package { return p.container.(*raw.Package) }

// CompanionProvider serves a package through its holder class: the static
// members of the holder merged with the package's own top-level
// declarations.
type CompanionProvider struct {
	base
	pkg *raw.Package
}

// NewCompanionProvider returns a merged provider for p. The package must
// have a holder class.
func NewCompanionProvider(p *raw.Package) *CompanionProvider {
	holder := p.Holder
	origin := raw.OriginOf(holder)
	return &CompanionProvider{
		base: base{
			container: holder,
			origin:    origin,
			index: memo.NewCell(func() (*members.Index, error) {
				statics, err := buildIndex(holder, members.Options{StaticMembers: true, Origin: origin})()
				if err != nil {
					return nil, err
				}
				// The holder is scanned above; the package pass only adds
				// declarations reachable through its classes.
				top, err := buildIndex(withoutHolder(p), members.Options{StaticMembers: true, Origin: origin})()
				if err != nil {
					return nil, err
				}
				return members.Merge(statics, top), nil
			}),
		},
		pkg: p,
	}
}

// Package returns the package whose declarations are merged in.
func (p *CompanionProvider) Package() *raw.Package { return p.pkg }
