package deserialize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stratum/internal/descriptor"
	"github.com/jward/stratum/internal/metadata"
)

// entryBuilder writes messages against one name table.
type entryBuilder struct {
	names metadata.StringTable
}

func (b *entryBuilder) classType(fq string, args ...*metadata.Type) *metadata.Type {
	t := &metadata.Type{Constructor: &metadata.TypeConstructor{Kind: metadata.ConstructorClass, ID: b.names.ID(fq)}}
	for _, a := range args {
		t.Arguments = append(t.Arguments, &metadata.TypeArgument{Type: a})
	}
	return t
}

func (b *entryBuilder) paramType(id int32) *metadata.Type {
	return &metadata.Type{Constructor: &metadata.TypeConstructor{Kind: metadata.ConstructorTypeParameter, ID: id}}
}

func (b *entryBuilder) typeParam(id int32, name string, bounds ...*metadata.Type) *metadata.TypeParameter {
	return &metadata.TypeParameter{ID: id, Name: b.names.ID(name), UpperBounds: bounds}
}

func (b *entryBuilder) fun(name string, ret *metadata.Type, params ...*metadata.Type) *metadata.Callable {
	c := &metadata.Callable{
		Flags:      metadata.CallableFlags(metadata.CallableFun, metadata.VisibilityPublic, metadata.ModalityOpen, false),
		Name:       b.names.ID(name),
		ReturnType: ret,
	}
	for i, p := range params {
		c.ValueParameters = append(c.ValueParameters, &metadata.ValueParameter{
			Name: b.names.ID(string(rune('a' + i))),
			Type: p,
		})
	}
	return c
}

func classEntry(fq string, build func(b *entryBuilder) *metadata.Class) *metadata.Entry {
	b := &entryBuilder{}
	cls := build(b)
	cls.FQName = b.names.ID(fq)
	return &metadata.Entry{FQName: fq, Kind: metadata.EntryClass, Names: b.names.Names(), Payload: cls.Marshal()}
}

func packageEntry(fq string, build func(b *entryBuilder) *metadata.Package) *metadata.Entry {
	b := &entryBuilder{}
	pkg := build(b)
	return &metadata.Entry{FQName: fq, Kind: metadata.EntryPackage, Names: b.names.Names(), Payload: pkg.Marshal()}
}

func newResolver(t *testing.T, entries []*metadata.Entry, opts ...ResolverOption) *Resolver {
	t.Helper()
	return NewResolver(NewBundleSource(&metadata.Bundle{Entries: entries}), opts...)
}

func mustClass(t *testing.T, r *Resolver, fq string) *Class {
	t.Helper()
	c, err := r.Class(fq)
	require.NoError(t, err)
	require.NotNil(t, c, "class %s", fq)
	return c
}

func functions(t *testing.T, c *Class, name string) []*descriptor.Function {
	t.Helper()
	fns, err := c.MemberScope().Functions(name)
	require.NoError(t, err)
	return fns
}

// baseAndSub declares test.Base with f() and test.Sub : Base, optionally
// redeclaring f with the given return type.
func baseAndSub(subReturn string) []*metadata.Entry {
	base := classEntry("test.Base", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{Members: []*metadata.Callable{b.fun("f", b.classType("kotlin.Int"))}}
	})
	sub := classEntry("test.Sub", func(b *entryBuilder) *metadata.Class {
		cls := &metadata.Class{Supertypes: []*metadata.Type{b.classType("test.Base")}}
		if subReturn != "" {
			cls.Members = []*metadata.Callable{b.fun("f", b.classType(subReturn))}
		}
		return cls
	})
	return []*metadata.Entry{base, sub}
}

// =============================================================================
// Fake overrides
// =============================================================================

func TestFunctions_FakeOverrideForInherited(t *testing.T) {
	t.Parallel()

	r := newResolver(t, baseAndSub(""))
	base := mustClass(t, r, "test.Base")
	sub := mustClass(t, r, "test.Sub")

	inherited := functions(t, base, "f")
	require.Len(t, inherited, 1)

	fns := functions(t, sub, "f")
	require.Len(t, fns, 1)
	fake := fns[0]
	assert.Equal(t, descriptor.CallableFakeOverride, fake.Kind())
	assert.Same(t, sub, fake.ContainingDeclaration())
	assert.NotSame(t, inherited[0], fake)
	assert.Same(t, inherited[0], fake.Original())
}

func TestFunctions_DeclaredOverrideSuppressesFake(t *testing.T) {
	t.Parallel()

	r := newResolver(t, baseAndSub("kotlin.Int"))
	base := mustClass(t, r, "test.Base")
	sub := mustClass(t, r, "test.Sub")

	fns := functions(t, sub, "f")
	require.Len(t, fns, 1)
	assert.Equal(t, descriptor.CallableDeclaration, fns[0].Kind())
	assert.Same(t, sub, fns[0].ContainingDeclaration())
	require.Len(t, fns[0].Overridden(), 1)
	assert.Same(t, functions(t, base, "f")[0], fns[0].Overridden()[0])
}

func TestFunctions_ConflictIsReported(t *testing.T) {
	t.Parallel()

	log := &descriptor.ConflictLog{}
	r := newResolver(t, baseAndSub("kotlin.String"), WithConflicts(log))
	sub := mustClass(t, r, "test.Sub")

	fns := functions(t, sub, "f")
	require.Len(t, fns, 1, "a conflicting declaration still hides the inherited function")
	assert.Equal(t, descriptor.CallableDeclaration, fns[0].Kind())

	conflicts := log.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Same(t, fns[0], conflicts[0].FromCurrent)
}

func TestFunctions_TwoSupertypesSameName(t *testing.T) {
	t.Parallel()

	iface := func(fq string) *metadata.Entry {
		return classEntry(fq, func(b *entryBuilder) *metadata.Class {
			return &metadata.Class{
				Flags:   metadata.ClassFlags(metadata.ClassKindInterface),
				Members: []*metadata.Callable{b.fun("g", b.classType("kotlin.Unit"))},
			}
		})
	}
	impl := classEntry("test.C", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{Supertypes: []*metadata.Type{b.classType("test.A"), b.classType("test.B")}}
	})

	r := newResolver(t, []*metadata.Entry{iface("test.A"), iface("test.B"), impl})
	c := mustClass(t, r, "test.C")

	fns := functions(t, c, "g")
	require.Len(t, fns, 2)
	owners := map[string]bool{}
	for _, f := range fns {
		assert.Equal(t, descriptor.CallableFakeOverride, f.Kind())
		assert.Same(t, c, f.ContainingDeclaration())
		orig, ok := f.Original().ContainingDeclaration().(*Class)
		require.True(t, ok)
		owners[orig.FQName()] = true
	}
	assert.Equal(t, map[string]bool{"test.A": true, "test.B": true}, owners)
}

// subclassOf declares fq with the given supertypes and a function f.
func subclassOf(fq string, supers ...string) *metadata.Entry {
	return classEntry(fq, func(b *entryBuilder) *metadata.Class {
		cls := &metadata.Class{Members: []*metadata.Callable{b.fun("f", b.classType("kotlin.Int"))}}
		for _, s := range supers {
			cls.Supertypes = append(cls.Supertypes, b.classType(s))
		}
		return cls
	})
}

func TestFunctions_SupertypeCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []*metadata.Entry
		query   []string
	}{
		{"two classes", []*metadata.Entry{subclassOf("test.A", "test.B"), subclassOf("test.B", "test.A")}, []string{"test.A", "test.B"}},
		{"self", []*metadata.Entry{subclassOf("test.A", "test.A")}, []string{"test.A"}},
		{"cycle above", []*metadata.Entry{
			subclassOf("test.A", "test.B"),
			subclassOf("test.B", "test.C"),
			subclassOf("test.C", "test.B"),
		}, []string{"test.A", "test.B", "test.C"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newResolver(t, tt.entries)
			for _, fq := range tt.query {
				c := mustClass(t, r, fq)

				done := make(chan error, 1)
				go func() {
					_, err := c.MemberScope().Functions("f")
					done <- err
				}()
				select {
				case err := <-done:
					require.ErrorIs(t, err, ErrInconsistent, fq)
				case <-time.After(5 * time.Second):
					t.Fatalf("Functions on %s did not return", fq)
				}

				_, err := c.MemberScope().AllDescriptors()
				require.ErrorIs(t, err, ErrInconsistent, fq)

				sts, err := c.Supertypes()
				require.NoError(t, err, "supertypes stay readable")
				assert.NotEmpty(t, sts)
			}
		})
	}
}

func TestFunctions_DiamondIsNotACycle(t *testing.T) {
	t.Parallel()

	r := newResolver(t, []*metadata.Entry{
		subclassOf("test.Top"),
		subclassOf("test.Left", "test.Top"),
		subclassOf("test.Right", "test.Top"),
		classEntry("test.Bottom", func(b *entryBuilder) *metadata.Class {
			return &metadata.Class{Supertypes: []*metadata.Type{b.classType("test.Left"), b.classType("test.Right")}}
		}),
	})
	fns := functions(t, mustClass(t, r, "test.Bottom"), "f")
	assert.Len(t, fns, 2)
}

func TestFunctions_Idempotent(t *testing.T) {
	t.Parallel()

	r := newResolver(t, baseAndSub(""))
	sub := mustClass(t, r, "test.Sub")

	first := functions(t, sub, "f")
	second := functions(t, sub, "f")
	require.Len(t, second, len(first))
	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	again := mustClass(t, r, "test.Sub")
	assert.Same(t, sub, again)
}

func TestFunctions_GenericSupertypeSubstitution(t *testing.T) {
	t.Parallel()

	box := classEntry("test.Box", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{
			TypeParameters: []*metadata.TypeParameter{b.typeParam(0, "T")},
			Members:        []*metadata.Callable{b.fun("put", b.classType("kotlin.Unit"), b.paramType(0))},
		}
	})
	intBox := classEntry("test.IntBox", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{
			Supertypes: []*metadata.Type{b.classType("test.Box", b.classType("kotlin.Int"))},
			Members:    []*metadata.Callable{b.fun("put", b.classType("kotlin.Unit"), b.classType("kotlin.Int"))},
		}
	})
	strBox := classEntry("test.StrBox", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{
			Supertypes: []*metadata.Type{b.classType("test.Box", b.classType("kotlin.String"))},
		}
	})

	r := newResolver(t, []*metadata.Entry{box, intBox, strBox})

	ib := functions(t, mustClass(t, r, "test.IntBox"), "put")
	require.Len(t, ib, 1)
	assert.Equal(t, descriptor.CallableDeclaration, ib[0].Kind())
	assert.Len(t, ib[0].Overridden(), 1)

	sb := functions(t, mustClass(t, r, "test.StrBox"), "put")
	require.Len(t, sb, 1)
	assert.Equal(t, descriptor.CallableFakeOverride, sb[0].Kind())
	assert.Equal(t, "kotlin.String", sb[0].ValueParameters()[0].Type.String())

	orig := functions(t, mustClass(t, r, "test.Box"), "put")[0]
	assert.Same(t, orig, sb[0].Original())
	assert.Equal(t, "T", orig.ValueParameters()[0].Type.String())
}

// =============================================================================
// Class descriptor
// =============================================================================

func TestClass_Descriptor(t *testing.T) {
	t.Parallel()

	node := classEntry("test.graph.Node", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{
			Flags: metadata.ClassFlags(metadata.ClassKindObject),
			TypeParameters: []*metadata.TypeParameter{
				b.typeParam(7, "T", b.classType("kotlin.Comparable", b.paramType(7))),
			},
			Supertypes:      []*metadata.Type{b.classType("kotlin.Any")},
			NestedClassName: []int32{b.names.ID("Edge")},
		}
	})
	r := newResolver(t, []*metadata.Entry{node})
	c := mustClass(t, r, "test.graph.Node")

	assert.Equal(t, "Node", c.Name())
	assert.Equal(t, "test.graph.Node", c.FQName())
	assert.Equal(t, descriptor.ClassKindObject, c.Kind())
	assert.Equal(t, descriptor.ModalityFinal, c.Modality())
	assert.Equal(t, descriptor.VisibilityPublic, c.Visibility())
	assert.Equal(t, "test.graph", c.ContainingDeclaration().Name())
	assert.Same(t, c, c.TypeConstructor().Class)

	require.Len(t, c.TypeParameters(), 1)
	tp := c.TypeParameters()[0]
	assert.Equal(t, "T", tp.Name)
	assert.Same(t, c, tp.Owner)
	bounds, err := tp.UpperBounds()
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	assert.Equal(t, "kotlin.Comparable<T>", bounds[0].String())
	assert.Same(t, tp, bounds[0].Arguments[0].Type.Constructor.Param)

	sts, err := c.Supertypes()
	require.NoError(t, err)
	again, err := c.Supertypes()
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Same(t, sts[0], again[0])
	assert.Equal(t, "kotlin.Any", sts[0].Constructor.Named)

	nested, err := c.NestedClassNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Edge"}, nested)

	cl, err := c.MemberScope().Classifier("Edge")
	require.NoError(t, err)
	assert.Nil(t, cl)
}

func TestClass_UnknownIsNil(t *testing.T) {
	t.Parallel()

	r := newResolver(t, nil)
	c, err := r.Class("missing.Type")
	require.NoError(t, err)
	assert.Nil(t, c)

	cd, err := r.ResolveClass("missing.Type")
	require.NoError(t, err)
	assert.Nil(t, cd)
}

func TestFunction_TypeParametersAndOuterScope(t *testing.T) {
	t.Parallel()

	pair := classEntry("test.Holder", func(b *entryBuilder) *metadata.Class {
		fn := b.fun("pick", b.paramType(1), b.paramType(0), b.paramType(1))
		fn.TypeParameters = []*metadata.TypeParameter{b.typeParam(1, "U")}
		fn.ReceiverType = b.classType("kotlin.String")
		return &metadata.Class{
			TypeParameters: []*metadata.TypeParameter{b.typeParam(0, "T")},
			Members:        []*metadata.Callable{fn},
		}
	})
	r := newResolver(t, []*metadata.Entry{pair})
	c := mustClass(t, r, "test.Holder")

	fns := functions(t, c, "pick")
	require.Len(t, fns, 1)
	f := fns[0]
	require.Len(t, f.TypeParameters(), 1)
	assert.Same(t, f, f.TypeParameters()[0].Owner)
	assert.Equal(t, "T", f.ValueParameters()[0].Type.String())
	assert.Same(t, c.TypeParameters()[0], f.ValueParameters()[0].Type.Constructor.Param)
	assert.Equal(t, "U", f.ValueParameters()[1].Type.String())
	assert.Equal(t, "U", f.ReturnType().String())
	assert.Equal(t, "kotlin.String", f.Receiver().String())
	assert.Equal(t, descriptor.ModalityOpen, f.Modality())
}

// =============================================================================
// Properties and descriptors
// =============================================================================

func TestProperties_Stub(t *testing.T) {
	t.Parallel()

	entry := classEntry("test.Sized", func(b *entryBuilder) *metadata.Class {
		size := &metadata.Callable{
			Flags:      metadata.CallableFlags(metadata.CallableVal, metadata.VisibilityPublic, metadata.ModalityFinal, false),
			Name:       b.names.ID("size"),
			ReturnType: b.classType("kotlin.Int"),
		}
		return &metadata.Class{Members: []*metadata.Callable{size, b.fun("clear", nil)}}
	})
	r := newResolver(t, []*metadata.Entry{entry})
	c := mustClass(t, r, "test.Sized")

	props, err := c.MemberScope().Properties("size")
	require.NoError(t, err)
	assert.Empty(t, props)
	assert.Empty(t, functions(t, c, "size"))

	all, err := c.MemberScope().AllDescriptors()
	require.NoError(t, err)
	require.Len(t, all, 1)
	fn, ok := all[0].(*descriptor.Function)
	require.True(t, ok)
	assert.Equal(t, "clear", fn.Name())
	assert.Equal(t, "kotlin.Unit", fn.ReturnType().String())
}

func TestPackageScope(t *testing.T) {
	t.Parallel()

	pkg := packageEntry("test.app", func(b *entryBuilder) *metadata.Package {
		return &metadata.Package{
			Members:   []*metadata.Callable{b.fun("main", nil)},
			ClassName: []int32{b.names.ID("Registry"), b.names.ID("Widget")},
		}
	})
	registry := classEntry("test.app.Registry", func(*entryBuilder) *metadata.Class {
		return &metadata.Class{Flags: metadata.ClassFlags(metadata.ClassKindObject)}
	})
	widget := classEntry("test.app.Widget", func(*entryBuilder) *metadata.Class {
		return &metadata.Class{}
	})

	r := newResolver(t, []*metadata.Entry{pkg, registry, widget})
	scope, err := r.Package("test.app")
	require.NoError(t, err)
	require.NotNil(t, scope)
	assert.Equal(t, []string{"Registry", "Widget"}, scope.ClassNames())

	fns, err := scope.Functions("main")
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.Same(t, scope.Package(), fns[0].ContainingDeclaration())

	cls, err := scope.Classifier("Widget")
	require.NoError(t, err)
	require.NotNil(t, cls)
	assert.Equal(t, "test.app.Widget", cls.FQName())
	assert.Same(t, scope.Package(), cls.ContainingDeclaration())

	cls, err = scope.Classifier("Nope")
	require.NoError(t, err)
	assert.Nil(t, cls)

	all, err := scope.AllDescriptors()
	require.NoError(t, err)
	var names []string
	for _, d := range all {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"main", "Widget", "Registry"}, names, "functions, then classes, then objects")

	again, err := scope.AllDescriptors()
	require.NoError(t, err)
	assert.Same(t, all[0], again[0])
}

func TestResolver_SharesPackageDescriptor(t *testing.T) {
	t.Parallel()

	empty := func(*entryBuilder) *metadata.Class { return &metadata.Class{} }
	r := newResolver(t, []*metadata.Entry{
		classEntry("test.app.A", empty),
		classEntry("test.app.B", empty),
		classEntry("test.other.C", empty),
	})
	a := mustClass(t, r, "test.app.A")
	b := mustClass(t, r, "test.app.B")
	c := mustClass(t, r, "test.other.C")

	assert.Same(t, a.ContainingDeclaration(), b.ContainingDeclaration())
	assert.NotSame(t, a.ContainingDeclaration(), c.ContainingDeclaration())
	assert.Equal(t, "test.other", c.ContainingDeclaration().Name())
}

func TestPackageScope_AdvertisedClassMissing(t *testing.T) {
	t.Parallel()

	pkg := packageEntry("test.broken", func(b *entryBuilder) *metadata.Package {
		return &metadata.Package{ClassName: []int32{b.names.ID("Ghost")}}
	})
	r := newResolver(t, []*metadata.Entry{pkg})
	scope, err := r.Package("test.broken")
	require.NoError(t, err)

	_, err = scope.AllDescriptors()
	require.ErrorIs(t, err, ErrInconsistent)
}

// =============================================================================
// Annotations and faults
// =============================================================================

func annotatedEntry() *metadata.Entry {
	return classEntry("test.Api", func(b *entryBuilder) *metadata.Class {
		old := b.fun("old", nil)
		old.Flags = metadata.CallableFlags(metadata.CallableFun, metadata.VisibilityPublic, metadata.ModalityFinal, true)
		old.Annotations = []*metadata.Annotation{{
			ID:        b.names.ID("kotlin.Deprecated"),
			Arguments: []*metadata.AnnotationArgument{{NameID: b.names.ID("message"), Value: "use current"}},
		}}
		return &metadata.Class{Members: []*metadata.Callable{old, b.fun("current", nil)}}
	})
}

func TestAnnotations_UnsupportedFailsOnlyThatQuery(t *testing.T) {
	t.Parallel()

	r := newResolver(t, []*metadata.Entry{annotatedEntry()})
	c := mustClass(t, r, "test.Api")

	_, err := c.MemberScope().Functions("old")
	require.ErrorIs(t, err, ErrUnsupported)

	assert.Len(t, functions(t, c, "current"), 1)

	_, err = c.Annotations()
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestAnnotations_Proto(t *testing.T) {
	t.Parallel()

	r := newResolver(t, []*metadata.Entry{annotatedEntry()}, WithAnnotations(ProtoAnnotations{}))
	c := mustClass(t, r, "test.Api")

	fns := functions(t, c, "old")
	require.Len(t, fns, 1)
	require.Len(t, fns[0].Annotations(), 1)
	ann := fns[0].Annotations()[0]
	assert.Equal(t, "kotlin.Deprecated", ann.ClassName)
	assert.Equal(t, []descriptor.AnnotationArgument{{Name: "message", Value: "use current"}}, ann.Arguments)

	classAnns, err := c.Annotations()
	require.NoError(t, err)
	assert.Empty(t, classAnns)
}

func TestNameTable(t *testing.T) {
	t.Parallel()

	tbl := NewNameTable([]string{"a", "b"})
	n, err := tbl.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "b", n)
	assert.Equal(t, 2, tbl.Len())

	_, err = tbl.Name(2)
	require.ErrorIs(t, err, ErrBadIndex)
	_, err = tbl.Name(-1)
	require.ErrorIs(t, err, ErrBadIndex)
}

func TestClass_BadMemberNameIndex(t *testing.T) {
	t.Parallel()

	entry := classEntry("test.Bad", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{Members: []*metadata.Callable{{Name: 99}}}
	})
	r := newResolver(t, []*metadata.Entry{entry})

	_, err := r.Class("test.Bad")
	require.ErrorIs(t, err, ErrBadIndex)

	// The fault is cached with the class.
	_, err = r.Class("test.Bad")
	require.ErrorIs(t, err, ErrBadIndex)
}

func TestFunction_UndeclaredTypeParameter(t *testing.T) {
	t.Parallel()

	entry := classEntry("test.Loose", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{Members: []*metadata.Callable{b.fun("get", b.paramType(5))}}
	})
	r := newResolver(t, []*metadata.Entry{entry})
	c := mustClass(t, r, "test.Loose")

	_, err := c.MemberScope().Functions("get")
	require.ErrorIs(t, err, ErrBadIndex)
}

func TestClass_TruncatedPayload(t *testing.T) {
	t.Parallel()

	entry := classEntry("test.Cut", func(b *entryBuilder) *metadata.Class {
		return &metadata.Class{Members: []*metadata.Callable{b.fun("x", nil)}}
	})
	entry.Payload = entry.Payload[:len(entry.Payload)-1]
	r := newResolver(t, []*metadata.Entry{entry})

	_, err := r.Class("test.Cut")
	require.ErrorIs(t, err, metadata.ErrTruncated)
}
