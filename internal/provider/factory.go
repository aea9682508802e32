package provider

import "github.com/jward/stratum/internal/raw"

// Factory picks the provider flavor for a container. It holds no state and
// caches nothing; callers key the providers it returns by container
// identity.
type Factory struct{}

// BinaryClass returns an instance-scope provider for c.
func (Factory) BinaryClass(c *raw.Class) DeclarationProvider {
	return NewClassProvider(c, false)
}

// ClassStatics returns a static-scope provider for c.
func (Factory) ClassStatics(c *raw.Class) DeclarationProvider {
	return NewClassProvider(c, true)
}

// Package returns a provider over the package's top-level declarations
// without merging a holder class.
func (Factory) Package(p *raw.Package) DeclarationProvider {
	return newPackageProvider(p, withoutHolder(p), raw.OriginForeign)
}

// PackageWithCompanion returns a provider that merges the package's holder
// class into its top-level declarations. Packages without a holder get a
// plain package provider.
func (Factory) PackageWithCompanion(p *raw.Package) DeclarationProvider {
	if p.Holder == nil {
		return NewPackageProvider(p, raw.OriginForeign)
	}
	return NewCompanionProvider(p)
}
