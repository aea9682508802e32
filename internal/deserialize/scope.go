package deserialize

import (
	"fmt"
	"sort"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/memo"
	"github.com/jward/stratum/internal/metadata"
)

// scopeHooks are the parts of a member scope that depend on the container.
type scopeHooks interface {
	inheritedFunctions(name string) ([]*descriptor.Function, error)
	extraDescriptors() ([]descriptor.Descriptor, error)
}

// memberScope groups serialized callables by name up front and resolves
// each name on demand. Results are cached per name.
type memberScope struct {
	ctx     *Context
	owner   descriptor.Descriptor
	grouped map[string][]*metadata.Callable
	names   []string
	hooks   scopeHooks

	functions  *memo.Map[string, []*descriptor.Function]
	properties *memo.Map[string, []*descriptor.Property]
	all        *memo.Cell[[]descriptor.Descriptor]
}

func newMemberScope(ctx *Context, owner descriptor.Descriptor, callables []*metadata.Callable, hooks scopeHooks) (*memberScope, error) {
	s := &memberScope{
		ctx:     ctx,
		owner:   owner,
		grouped: make(map[string][]*metadata.Callable),
		hooks:   hooks,
	}
	for _, c := range callables {
		name, err := ctx.Names.Name(c.Name)
		if err != nil {
			return nil, fmt.Errorf("deserialize: member name: %w", err)
		}
		if _, ok := s.grouped[name]; !ok {
			s.names = append(s.names, name)
		}
		s.grouped[name] = append(s.grouped[name], c)
	}
	sort.Strings(s.names)

	s.functions = memo.NewMap(s.computeFunctions)
	s.properties = memo.NewMap(func(string) ([]*descriptor.Property, error) {
		// Properties are not deserialized yet.
		return []*descriptor.Property{}, nil
	})
	s.all = memo.NewCell(s.computeAll)
	return s, nil
}

// Functions returns the functions named name: the declared ones plus a fake
// override for every inherited function none of them overrides.
func (s *memberScope) Functions(name string) ([]*descriptor.Function, error) {
	return s.functions.Get(name)
}

// Properties always returns an empty list.
func (s *memberScope) Properties(name string) ([]*descriptor.Property, error) {
	return s.properties.Get(name)
}

// AllDescriptors returns every function and property of every grouped
// name, followed by the container-specific extras.
func (s *memberScope) AllDescriptors() ([]descriptor.Descriptor, error) {
	return s.all.Get()
}

// Names returns the grouped member names in sorted order.
func (s *memberScope) Names() []string { return s.names }

func (s *memberScope) computeFunctions(name string) ([]*descriptor.Function, error) {
	var declared []*descriptor.Function
	for _, c := range s.grouped[name] {
		if c.Kind() != metadata.CallableFun {
			continue
		}
		fn, err := s.ctx.Function(c)
		if err != nil {
			return nil, err
		}
		declared = append(declared, fn)
	}

	inherited, err := s.hooks.inheritedFunctions(name)
	if err != nil {
		return nil, err
	}

	sink := &descriptor.ScopeSink{Reporter: s.ctx.Conflicts}
	descriptor.GenerateOverrides(s.owner, inherited, declared, sink)
	return append(declared, sink.Added...), nil
}

func (s *memberScope) computeAll() ([]descriptor.Descriptor, error) {
	var out []descriptor.Descriptor
	for _, name := range s.names {
		fns, err := s.Functions(name)
		if err != nil {
			return nil, err
		}
		for _, f := range fns {
			out = append(out, f)
		}
		props, err := s.Properties(name)
		if err != nil {
			return nil, err
		}
		for _, p := range props {
			out = append(out, p)
		}
	}
	extra, err := s.hooks.extraDescriptors()
	if err != nil {
		return nil, err
	}
	return append(out, extra...), nil
}

// ClassScope is the member scope of a deserialized class.
type ClassScope struct {
	*memberScope
	class *Class
}

var _ descriptor.MemberScope = (*ClassScope)(nil)

func newClassScope(ctx *Context, class *Class, callables []*metadata.Callable) (*ClassScope, error) {
	cs := &ClassScope{class: class}
	ms, err := newMemberScope(ctx, class, callables, cs)
	if err != nil {
		return nil, err
	}
	cs.memberScope = ms
	return cs, nil
}

// Classifier returns nil: nested classes are not exposed through the scope.
func (s *ClassScope) Classifier(string) (descriptor.ClassDescriptor, error) {
	return nil, nil
}

// inheritedFunctions collects name from every supertype scope, with the
// supertype's type arguments substituted in. A class that inherits from
// itself fails instead.
func (s *ClassScope) inheritedFunctions(name string) ([]*descriptor.Function, error) {
	if _, err := s.class.acyclic.Get(); err != nil {
		return nil, err
	}
	sts, err := s.class.Supertypes()
	if err != nil {
		return nil, err
	}
	var out []*descriptor.Function
	for _, st := range sts {
		super := st.Constructor.Class
		if super == nil || super.MemberScope() == nil {
			continue
		}
		fns, err := super.MemberScope().Functions(name)
		if err != nil {
			return nil, fmt.Errorf("deserialize: %s from %s: %w", name, super.FQName(), err)
		}
		sub := descriptor.SupertypeSubstitutor(st)
		for _, f := range fns {
			out = append(out, f.Substitute(sub))
		}
	}
	return out, nil
}

func (s *ClassScope) extraDescriptors() ([]descriptor.Descriptor, error) { return nil, nil }

// PackageScope is the member scope of a deserialized package fragment.
type PackageScope struct {
	*memberScope
	pkg        *descriptor.Package
	classNames []string
	advertised map[string]bool
}

var _ descriptor.MemberScope = (*PackageScope)(nil)

// NewPackageScope builds the scope of pkg from its serialized form.
func NewPackageScope(ctx *Context, pkg *descriptor.Package, proto *metadata.Package) (*PackageScope, error) {
	ps := &PackageScope{pkg: pkg, advertised: make(map[string]bool, len(proto.ClassName))}
	for _, id := range proto.ClassName {
		n, err := ctx.Names.Name(id)
		if err != nil {
			return nil, fmt.Errorf("deserialize: package %s class name: %w", pkg.FQ, err)
		}
		ps.classNames = append(ps.classNames, n)
		ps.advertised[n] = true
	}
	ms, err := newMemberScope(ctx, pkg, proto.Members, ps)
	if err != nil {
		return nil, fmt.Errorf("deserialize: package %s: %w", pkg.FQ, err)
	}
	ps.memberScope = ms
	return ps, nil
}

// Package returns the package descriptor the scope belongs to.
func (s *PackageScope) Package() *descriptor.Package { return s.pkg }

// ClassNames returns the advertised top-level class names.
func (s *PackageScope) ClassNames() []string { return s.classNames }

// Classifier resolves an advertised top-level class.
func (s *PackageScope) Classifier(name string) (descriptor.ClassDescriptor, error) {
	if !s.advertised[name] {
		return nil, nil
	}
	return s.ctx.Classes.ResolveClass(s.qualify(name))
}

func (s *PackageScope) qualify(name string) string {
	if s.pkg.FQ == "" {
		return name
	}
	return s.pkg.FQ + "." + name
}

func (s *PackageScope) inheritedFunctions(string) ([]*descriptor.Function, error) { return nil, nil }

// extraDescriptors lists the advertised classes, plain classes before
// objects.
func (s *PackageScope) extraDescriptors() ([]descriptor.Descriptor, error) {
	var classes, objects []descriptor.Descriptor
	for _, name := range s.classNames {
		cls, err := s.ctx.Classes.ResolveClass(s.qualify(name))
		if err != nil {
			return nil, err
		}
		if cls == nil {
			return nil, fmt.Errorf("%w: package %s advertises %s but it does not resolve", ErrInconsistent, s.pkg.FQ, name)
		}
		if cls.Kind().IsObject() {
			objects = append(objects, cls)
		} else {
			classes = append(classes, cls)
		}
	}
	return append(classes, objects...), nil
}
