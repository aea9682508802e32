package stratum

import (
	"fmt"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/deserialize"
	"github.com/jward/stratum/internal/memo"
	"github.com/jward/stratum/internal/provider"
	"github.com/jward/stratum/internal/raw"
)

type classKey struct {
	fqName string
	static bool
}

type packageKey struct {
	fqName    string
	companion bool
}

// Session answers declaration queries over the Engine's database. Every
// provider and descriptor it builds is cached for the session's lifetime,
// so the same question always gets the same answer. Sessions are safe for
// concurrent use.
type Session struct {
	engine  *Engine
	factory provider.Factory

	rawClasses  *memo.Map[string, *raw.Class]
	rawPackages *memo.Map[string, *raw.Package]
	classes     *memo.Map[classKey, provider.DeclarationProvider]
	packages    *memo.Map[packageKey, provider.DeclarationProvider]

	resolver  *deserialize.Resolver
	conflicts *descriptor.ConflictLog
}

// NewSession starts a query session.
func (e *Engine) NewSession() *Session {
	s := &Session{
		engine:    e,
		conflicts: &descriptor.ConflictLog{},
	}
	s.rawClasses = memo.NewMap(e.store.LoadClass)
	s.rawPackages = memo.NewMap(e.store.LoadPackage)
	s.classes = memo.NewMap(s.loadClassProvider)
	s.packages = memo.NewMap(s.loadPackageProvider)

	opts := []deserialize.ResolverOption{deserialize.WithConflicts(s.conflicts)}
	if e.annotations {
		opts = append(opts, deserialize.WithAnnotations(deserialize.ProtoAnnotations{}))
	}
	s.resolver = deserialize.NewResolver(e.entries, opts...)
	return s
}

func (s *Session) loadClassProvider(k classKey) (provider.DeclarationProvider, error) {
	c, err := s.rawClasses.Get(k.fqName)
	if err != nil || c == nil {
		return nil, err
	}
	if k.static {
		return s.factory.ClassStatics(c), nil
	}
	return s.factory.BinaryClass(c), nil
}

func (s *Session) loadPackageProvider(k packageKey) (provider.DeclarationProvider, error) {
	p, err := s.rawPackages.Get(k.fqName)
	if err != nil || p == nil {
		return nil, err
	}
	if k.companion {
		return s.factory.PackageWithCompanion(p), nil
	}
	return s.factory.Package(p), nil
}

// ClassProvider returns the provider over the static or instance members
// of an indexed class.
func (s *Session) ClassProvider(fqName string, static bool) (provider.DeclarationProvider, error) {
	p, err := s.classes.Get(classKey{fqName: fqName, static: static})
	if err != nil {
		return nil, fmt.Errorf("stratum: class %s: %w", fqName, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, fqName)
	}
	return p, nil
}

// PackageProvider returns the provider over an indexed package. With
// companion set, the members of the package's file facades are included.
func (s *Session) PackageProvider(fqName string, companion bool) (provider.DeclarationProvider, error) {
	p, err := s.packages.Get(packageKey{fqName: fqName, companion: companion})
	if err != nil {
		return nil, fmt.Errorf("stratum: package %s: %w", fqName, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, fqName)
	}
	return p, nil
}

// Lookup returns the members named name in an indexed class, or nil when
// the class never declares the name.
func (s *Session) Lookup(class string, static bool, name string) (*MemberInfo, error) {
	p, err := s.ClassProvider(class, static)
	if err != nil {
		return nil, err
	}
	return lookup(p, name)
}

// Members returns every name declared in an indexed class, sorted.
func (s *Session) Members(class string, static bool) ([]*MemberInfo, error) {
	p, err := s.ClassProvider(class, static)
	if err != nil {
		return nil, err
	}
	return allMembers(p)
}

// PackageLookup returns the members named name in an indexed package,
// including file facade members.
func (s *Session) PackageLookup(pkg, name string) (*MemberInfo, error) {
	p, err := s.PackageProvider(pkg, true)
	if err != nil {
		return nil, err
	}
	return lookup(p, name)
}

// PackageMembers returns every name declared in an indexed package,
// including file facade members, sorted.
func (s *Session) PackageMembers(pkg string) ([]*MemberInfo, error) {
	p, err := s.PackageProvider(pkg, true)
	if err != nil {
		return nil, err
	}
	return allMembers(p)
}

func lookup(p provider.DeclarationProvider, name string) (*MemberInfo, error) {
	n, err := p.Lookup(name)
	if err != nil || n == nil {
		return nil, err
	}
	return describeMembers(n)
}

func allMembers(p provider.DeclarationProvider) ([]*MemberInfo, error) {
	all, err := p.AllMembers()
	if err != nil {
		return nil, err
	}
	infos := make([]*MemberInfo, 0, len(all))
	for _, n := range all {
		info, err := describeMembers(n)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Class returns the descriptor of a class imported from metadata.
func (s *Session) Class(fqName string) (*deserialize.Class, error) {
	c, err := s.resolver.Class(fqName)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: class %s", ErrNotFound, fqName)
	}
	return c, nil
}

// DescribeClass summarizes a class imported from metadata.
func (s *Session) DescribeClass(fqName string) (*ClassInfo, error) {
	c, err := s.Class(fqName)
	if err != nil {
		return nil, err
	}
	return describeClass(c)
}

// Functions returns the functions named name in an imported class,
// inherited fake overrides included.
func (s *Session) Functions(class, name string) ([]*DeclarationInfo, error) {
	c, err := s.Class(class)
	if err != nil {
		return nil, err
	}
	fns, err := c.MemberScope().Functions(name)
	if err != nil {
		return nil, err
	}
	return describeFunctions(fns), nil
}

// ClassDescriptors returns every declaration in the scope of an imported
// class.
func (s *Session) ClassDescriptors(class string) ([]*DeclarationInfo, error) {
	c, err := s.Class(class)
	if err != nil {
		return nil, err
	}
	all, err := c.MemberScope().AllDescriptors()
	if err != nil {
		return nil, err
	}
	return describeAll(all), nil
}

// Package returns the scope of a package fragment imported from metadata.
func (s *Session) Package(fqName string) (*deserialize.PackageScope, error) {
	p, err := s.resolver.Package(fqName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, fqName)
	}
	return p, nil
}

// PackageFunctions returns the top-level functions named name in an
// imported package fragment.
func (s *Session) PackageFunctions(pkg, name string) ([]*DeclarationInfo, error) {
	p, err := s.Package(pkg)
	if err != nil {
		return nil, err
	}
	fns, err := p.Functions(name)
	if err != nil {
		return nil, err
	}
	return describeFunctions(fns), nil
}

// PackageDescriptors returns every declaration of an imported package
// fragment: functions, then classes, then objects.
func (s *Session) PackageDescriptors(pkg string) ([]*DeclarationInfo, error) {
	p, err := s.Package(pkg)
	if err != nil {
		return nil, err
	}
	all, err := p.AllDescriptors()
	if err != nil {
		return nil, err
	}
	return describeAll(all), nil
}

// Conflicts returns the override conflicts met so far in this session.
func (s *Session) Conflicts() []ConflictInfo {
	var out []ConflictInfo
	for _, c := range s.conflicts.Conflicts() {
		out = append(out, ConflictInfo{
			Inherited: describeFunction(c.FromSuper),
			Declared:  describeFunction(c.FromCurrent),
		})
	}
	return out
}
