package members

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stratum/internal/raw"
)

func public() raw.Modifiers       { return raw.Modifiers{Visibility: "public"} }
func publicStatic() raw.Modifiers { return raw.Modifiers{Visibility: "public", Static: true} }
func private() raw.Modifiers      { return raw.Modifiers{Visibility: "private"} }

func typeRef(name string) raw.TypeRef { return raw.TypeRef{Name: name} }

func newClass(name string, kind raw.ClassKind) *raw.Class {
	return &raw.Class{FQName: "com.example." + name, Name: name, Package: "com.example", Kind: kind}
}

func build(t *testing.T, c raw.Container, static bool) *Index {
	t.Helper()
	idx, err := Build(c, Options{StaticMembers: static})
	require.NoError(t, err)
	return idx
}

// =============================================================================
// Names
// =============================================================================

func TestBuild_PublicAndPrivateFields(t *testing.T) {
	t.Parallel()

	c := newClass("Point", raw.ClassKindClass)
	c.Fields = []*raw.Field{
		{Name: "x", Type: typeRef("int"), Modifiers: public()},
		{Name: "y", Type: typeRef("int"), Modifiers: private()},
	}
	c.Adopt()

	idx := build(t, c, false)

	x := idx.Lookup("x")
	require.NotNil(t, x)
	require.Len(t, x.PropertyAccessors, 1)
	assert.Equal(t, AccessorField, x.PropertyAccessors[0].Kind)
	assert.Equal(t, "int", x.PropertyAccessors[0].Type.Name)

	y := idx.Lookup("y")
	require.NotNil(t, y, "filtered names still get an entry")
	assert.Empty(t, y.PropertyAccessors)
	assert.True(t, y.Empty())

	assert.Nil(t, idx.Lookup("z"))
}

func TestBuild_EveryMethodNameHasEntry(t *testing.T) {
	t.Parallel()

	c := newClass("Service", raw.ClassKindClass)
	c.Methods = []*raw.Method{
		{Name: "start", Modifiers: public(), HasBody: true},
		{Name: "helper", Modifiers: private(), HasBody: true},
		{Name: "access$000", Modifiers: publicStatic(), Synthetic: true},
		{Name: "getName", Modifiers: private(), Return: typeRef("String"), HasBody: true},
	}
	c.Adopt()

	idx := build(t, c, false)
	for _, name := range []string{"start", "helper", "access$000", "getName", "name"} {
		assert.NotNil(t, idx.Lookup(name), "missing entry for %s", name)
	}
	assert.Len(t, idx.Lookup("start").Methods, 1)
	assert.Empty(t, idx.Lookup("helper").Methods)
	assert.Empty(t, idx.Lookup("access$000").Methods)
	assert.True(t, idx.Lookup("name").Empty())
}

func TestBuild_StaticInstancePartition(t *testing.T) {
	t.Parallel()

	c := newClass("Util", raw.ClassKindClass)
	c.Fields = []*raw.Field{
		{Name: "COUNT", Type: typeRef("int"), Modifiers: publicStatic()},
		{Name: "value", Type: typeRef("int"), Modifiers: public()},
	}
	c.Methods = []*raw.Method{
		{Name: "of", Modifiers: publicStatic(), HasBody: true},
		{Name: "get", Modifiers: public(), HasBody: true},
	}
	c.Adopt()

	statics := build(t, c, true)
	instance := build(t, c, false)

	countIn := func(idx *Index, name string) int {
		n := idx.Lookup(name)
		require.NotNil(t, n)
		return len(n.Methods) + len(n.PropertyAccessors)
	}

	for _, name := range []string{"COUNT", "value", "of", "get"} {
		assert.Equal(t, 1, countIn(statics, name)+countIn(instance, name), "member %s", name)
	}
	assert.Equal(t, 1, countIn(statics, "COUNT"))
	assert.Equal(t, 1, countIn(statics, "of"))
	assert.Equal(t, 1, countIn(instance, "value"))
	assert.Equal(t, 1, countIn(instance, "get"))
}

func TestBuild_EnumStaticScopeTakesAllStatics(t *testing.T) {
	t.Parallel()

	c := newClass("Color", raw.ClassKindEnum)
	c.Fields = []*raw.Field{
		{Name: "RED", Type: typeRef("Color"), Modifiers: publicStatic()},
		{Name: "$VALUES", Type: typeRef("Color"), Modifiers: raw.Modifiers{Visibility: "private", Static: true}, Synthetic: true},
	}
	c.Methods = []*raw.Method{
		{Name: "values", Modifiers: publicStatic(), Synthetic: true},
		{Name: "hex", Modifiers: public(), HasBody: true},
	}
	c.Adopt()

	idx := build(t, c, true)
	assert.Len(t, idx.Lookup("RED").PropertyAccessors, 1)
	assert.Len(t, idx.Lookup("$VALUES").PropertyAccessors, 1)
	assert.Len(t, idx.Lookup("values").Methods, 1)
	assert.Empty(t, idx.Lookup("hex").Methods)

	// Instance scope still applies the regular filters.
	inst := build(t, c, false)
	assert.Empty(t, inst.Lookup("$VALUES").PropertyAccessors)
	assert.Len(t, inst.Lookup("hex").Methods, 1)
}

func TestBuild_ObjectMethodsOnInterfaceAreSkipped(t *testing.T) {
	t.Parallel()

	c := newClass("Shape", raw.ClassKindInterface)
	c.Methods = []*raw.Method{
		{Name: "area", Modifiers: public(), Return: typeRef("double")},
		{Name: "hashCode", Modifiers: public(), Return: typeRef("int")},
		{Name: "equals", Modifiers: public(), Params: []raw.Param{{Name: "o", Type: typeRef("Object")}}},
		{Name: "toString", Modifiers: public(), Return: typeRef("String")},
	}
	c.Adopt()

	idx := build(t, c, false)
	assert.Len(t, idx.Lookup("area").Methods, 1)
	for _, name := range []string{"hashCode", "equals", "toString"} {
		n := idx.Lookup(name)
		require.NotNil(t, n)
		assert.Empty(t, n.Methods, name)
	}

	// On a class they are ordinary members.
	k := newClass("Circle", raw.ClassKindClass)
	k.Methods = []*raw.Method{{Name: "hashCode", Modifiers: public(), HasBody: true}}
	k.Adopt()
	assert.Len(t, build(t, k, false).Lookup("hashCode").Methods, 1)
}

func TestBuild_InheritedMembersAreSkipped(t *testing.T) {
	t.Parallel()

	base := newClass("Base", raw.ClassKindClass)
	inherited := &raw.Method{Name: "run", Modifiers: public(), HasBody: true, Owner: base}

	c := newClass("Derived", raw.ClassKindClass)
	c.Methods = []*raw.Method{inherited}

	idx := build(t, c, false)
	require.NotNil(t, idx.Lookup("run"))
	assert.Empty(t, idx.Lookup("run").Methods)
}

// =============================================================================
// Accessors
// =============================================================================

func TestBuild_PropertyAccessors(t *testing.T) {
	t.Parallel()

	c := newClass("User", raw.ClassKindClass)
	getName := &raw.Method{Name: "getName", Modifiers: public(), Return: typeRef("String"), PropertyAccessor: true}
	setName := &raw.Method{
		Name: "setName", Modifiers: public(), PropertyAccessor: true,
		Params: []raw.Param{{Name: "v", Type: typeRef("String")}},
	}
	isActive := &raw.Method{Name: "isActive", Modifiers: private(), Return: typeRef("boolean"), PropertyAccessor: true}
	getLen := &raw.Method{
		Name: "getLen", Modifiers: publicStatic(), Return: typeRef("int"), PropertyAccessor: true,
		Params: []raw.Param{{Name: "$this", Type: typeRef("String"), Receiver: true}},
	}
	c.Methods = []*raw.Method{getName, setName, isActive, getLen}
	c.Adopt()

	idx := build(t, c, false)

	name := idx.Lookup("name")
	require.NotNil(t, name)
	require.Len(t, name.PropertyAccessors, 2)
	assert.Equal(t, AccessorGetter, name.PropertyAccessors[0].Kind)
	assert.Equal(t, AccessorSetter, name.PropertyAccessors[1].Kind)
	assert.Equal(t, "String", name.PropertyAccessors[1].Type.Name)
	assert.Empty(t, idx.Lookup("getName").Methods, "accessors do not register under the method name")

	active := idx.Lookup("isActive")
	require.Len(t, active.PropertyAccessors, 1, "private accessors are kept")
	assert.Same(t, isActive, active.PropertyAccessors[0].Member)

	statics := build(t, c, true)
	ln := statics.Lookup("len")
	require.Len(t, ln.PropertyAccessors, 1)
	require.NotNil(t, ln.PropertyAccessors[0].Receiver)
	assert.Equal(t, "String", ln.PropertyAccessors[0].Receiver.Name)
}

func TestBuild_MalformedAccessor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method *raw.Method
	}{
		{
			name: "getter with parameter",
			method: &raw.Method{
				Name: "getSize", Modifiers: public(), PropertyAccessor: true,
				Params: []raw.Param{{Name: "i", Type: typeRef("int")}},
			},
		},
		{
			name:   "setter without parameter",
			method: &raw.Method{Name: "setSize", Modifiers: public(), PropertyAccessor: true},
		},
		{
			name: "receiver not first",
			method: &raw.Method{
				Name: "setSize", Modifiers: public(), PropertyAccessor: true,
				Params: []raw.Param{
					{Name: "v", Type: typeRef("int")},
					{Name: "$this", Type: typeRef("String"), Receiver: true},
				},
			},
		},
		{
			name:   "not an accessor name",
			method: &raw.Method{Name: "size", Modifiers: public(), PropertyAccessor: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newClass("Box", raw.ClassKindClass)
			c.Methods = []*raw.Method{tt.method}
			c.Adopt()

			_, err := Build(c, Options{})
			require.ErrorIs(t, err, ErrMalformedAccessor)
			var accErr *AccessorError
			require.True(t, errors.As(err, &accErr))
			assert.Equal(t, "com.example.Box", accErr.Class)
			assert.Equal(t, tt.method.Name, accErr.Method)
		})
	}
}

func TestPropertyGroups(t *testing.T) {
	t.Parallel()

	str := typeRef("String")
	recv := typeRef("List")
	owner := newClass("Holder", raw.ClassKindClass)
	field := &raw.Field{Name: "title", Type: str, Owner: owner}
	getter := &raw.Method{Name: "getTitle", Owner: owner}
	setter := &raw.Method{Name: "setTitle", Owner: owner}
	extGetter := &raw.Method{Name: "getTitle", Owner: owner}

	n := &NamedMembers{
		Name: "title",
		PropertyAccessors: []PropertyAccessor{
			{Kind: AccessorField, Member: field, Type: str},
			{Kind: AccessorGetter, Member: getter, Type: str},
			{Kind: AccessorSetter, Member: setter, Type: str},
			{Kind: AccessorGetter, Member: extGetter, Type: str, Receiver: &recv},
		},
	}

	groups, err := n.PropertyGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.False(t, groups[0].IsExtension())
	assert.True(t, groups[0].IsVar())
	assert.Same(t, field, groups[0].Field.Member)
	assert.Same(t, getter, groups[0].Getter.Member)

	assert.True(t, groups[1].IsExtension())
	assert.False(t, groups[1].IsVar())

	n.PropertyAccessors = append(n.PropertyAccessors, PropertyAccessor{Kind: AccessorGetter, Member: getter, Type: str})
	_, err = n.PropertyGroups()
	require.ErrorIs(t, err, ErrMalformedAccessor)
}

func TestPropertyGroups_FieldOnly(t *testing.T) {
	t.Parallel()

	final := &raw.Field{Name: "ID", Type: typeRef("int"), Modifiers: raw.Modifiers{Final: true}}
	mutable := &raw.Field{Name: "count", Type: typeRef("long")}

	n := &NamedMembers{PropertyAccessors: []PropertyAccessor{
		{Kind: AccessorField, Member: final, Type: final.Type},
		{Kind: AccessorField, Member: mutable, Type: mutable.Type},
	}}
	groups, err := n.PropertyGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.False(t, groups[0].IsVar())
	assert.True(t, groups[1].IsVar())
}

// =============================================================================
// SAM interfaces
// =============================================================================

func TestIsSAMInterface(t *testing.T) {
	t.Parallel()

	run := func() *raw.Method { return &raw.Method{Name: "run", Modifiers: public()} }
	tests := []struct {
		name    string
		kind    raw.ClassKind
		methods []*raw.Method
		want    bool
	}{
		{"single method", raw.ClassKindInterface, []*raw.Method{run()}, true},
		{"two abstract methods", raw.ClassKindInterface, []*raw.Method{run(), {Name: "stop"}}, false},
		{"generic method", raw.ClassKindInterface, []*raw.Method{
			{Name: "apply", TypeParams: []raw.TypeParam{{Name: "T"}}},
		}, false},
		{"object methods ignored", raw.ClassKindInterface, []*raw.Method{
			run(),
			{Name: "equals", Params: []raw.Param{{Name: "o", Type: typeRef("java.lang.Object")}}},
			{Name: "toString"},
		}, true},
		{"default methods ignored", raw.ClassKindInterface, []*raw.Method{
			run(), {Name: "describe", HasBody: true}, {Name: "of", Modifiers: publicStatic(), HasBody: true},
		}, true},
		{"no abstract method", raw.ClassKindInterface, []*raw.Method{{Name: "x", HasBody: true}}, false},
		{"abstract class", raw.ClassKindClass, []*raw.Method{
			{Name: "run", Modifiers: raw.Modifiers{Abstract: true}},
		}, false},
		{"annotation", raw.ClassKindAnnotation, []*raw.Method{run()}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newClass("Fn", tt.kind)
			c.Methods = tt.methods
			c.Adopt()
			assert.Equal(t, tt.want, IsSAMInterface(c))
		})
	}
}

func TestBuild_NestedSAMInterfaces(t *testing.T) {
	t.Parallel()

	listener := newClass("Listener", raw.ClassKindInterface)
	listener.Methods = []*raw.Method{{Name: "onEvent"}}
	callback := newClass("Callback", raw.ClassKindInterface)
	callback.Primary = true
	callback.Methods = []*raw.Method{{Name: "call"}}

	c := newClass("Button", raw.ClassKindClass)
	c.Nested = []*raw.Class{listener, callback}
	c.Adopt()

	statics := build(t, c, true)
	require.NotNil(t, statics.Lookup("Listener"))
	assert.Same(t, listener, statics.Lookup("Listener").SAMInterface)
	assert.Nil(t, statics.Lookup("Callback"), "primary nested types are not registered")

	assert.Nil(t, build(t, c, false).Lookup("Listener"))
}

// =============================================================================
// Packages
// =============================================================================

func TestBuild_Package(t *testing.T) {
	t.Parallel()

	holder := newClass("UtilsKt", raw.ClassKindClass)
	holder.Fields = []*raw.Field{{Name: "VERSION", Type: typeRef("String"), Modifiers: publicStatic()}}
	holder.Methods = []*raw.Method{{Name: "greet", Modifiers: publicStatic(), HasBody: true}}
	holder.Adopt()

	config := newClass("Config", raw.ClassKindObject)
	config.Fields = []*raw.Field{{Name: raw.InstanceFieldName, Type: typeRef("Config"), Modifiers: publicStatic()}}
	config.Adopt()

	runnable := newClass("Task", raw.ClassKindInterface)
	runnable.Methods = []*raw.Method{{Name: "execute"}}
	runnable.Adopt()

	pkg := &raw.Package{FQName: "com.example", Classes: []*raw.Class{config, runnable}, Holder: holder}

	idx := build(t, pkg, true)
	assert.Len(t, idx.Lookup("VERSION").PropertyAccessors, 1)
	assert.Len(t, idx.Lookup("greet").Methods, 1)

	obj := idx.Lookup("Config")
	require.NotNil(t, obj)
	require.Len(t, obj.PropertyAccessors, 1)
	assert.Equal(t, "com.example.Config", obj.PropertyAccessors[0].Type.Name)

	assert.Same(t, runnable, idx.Lookup("Task").SAMInterface)
}

func TestBuild_PackageWithoutHolder(t *testing.T) {
	t.Parallel()

	pkg := &raw.Package{FQName: "empty"}
	idx := build(t, pkg, true)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.All())
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := newClass("A", raw.ClassKindClass)
	a.Methods = []*raw.Method{{Name: "run", Modifiers: publicStatic(), HasBody: true}}
	a.Adopt()
	b := newClass("B", raw.ClassKindClass)
	b.Methods = []*raw.Method{
		{Name: "run", Modifiers: publicStatic(), HasBody: true},
		{Name: "stop", Modifiers: publicStatic(), HasBody: true},
	}
	b.Adopt()

	merged := Merge(build(t, a, true), build(t, b, true))
	assert.Equal(t, 2, merged.Len())
	assert.Len(t, merged.Lookup("run").Methods, 2)
	assert.Len(t, merged.Lookup("stop").Methods, 1)

	names := make([]string, 0)
	for _, n := range merged.All() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"run", "stop"}, names)
}
