package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/risor-io/risor/object"

	"github.com/jward/stratum/internal/raw"
	"github.com/jward/stratum/internal/syntax"
)

// Host answers declaration queries for scripts. Results must be
// JSON-encodable; scripts see them as maps and lists.
type Host interface {
	Lookup(class string, static bool, name string) (any, error)
	Members(class string, static bool) (any, error)
	PackageLookup(pkg, name string) (any, error)
	PackageMembers(pkg string) (any, error)
	Functions(class, name string) (any, error)
	PackageFunctions(pkg, name string) (any, error)
	Descriptors(class string) (any, error)
	PackageDescriptors(pkg string) (any, error)
	Describe(class string) (any, error)
	Conflicts() any
}

// --- Declaration query functions ---

// makeLookupFn creates "lookup".
//
// lookup(class, name, static=false) → map or nil
func makeLookupFn(h Host) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 && len(args) != 3 {
			return object.Errorf("lookup: expected 2 or 3 arguments, got %d", len(args))
		}
		class, name, err := twoStrings(args)
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}
		static, err := optionalBool(args, 2)
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}
		return hostResult("lookup", func() (any, error) { return h.Lookup(class, static, name) })
	})
}

// makeMembersFn creates "members".
//
// members(class, static=false) → list of maps
func makeMembersFn(h Host) *object.Builtin {
	return object.NewBuiltin("members", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 && len(args) != 2 {
			return object.Errorf("members: expected 1 or 2 arguments, got %d", len(args))
		}
		class, err := toString(args[0])
		if err != nil {
			return object.Errorf("members: %v", err)
		}
		static, err := optionalBool(args, 1)
		if err != nil {
			return object.Errorf("members: %v", err)
		}
		return hostResult("members", func() (any, error) { return h.Members(class, static) })
	})
}

func makePackageLookupFn(h Host) *object.Builtin {
	return makeTwoStringFn("package_lookup", h.PackageLookup)
}

func makePackageMembersFn(h Host) *object.Builtin {
	return makeOneStringFn("package_members", h.PackageMembers)
}

func makeFunctionsFn(h Host) *object.Builtin {
	return makeTwoStringFn("functions", h.Functions)
}

func makePackageFunctionsFn(h Host) *object.Builtin {
	return makeTwoStringFn("package_functions", h.PackageFunctions)
}

func makeDescriptorsFn(h Host) *object.Builtin {
	return makeOneStringFn("descriptors", h.Descriptors)
}

func makePackageDescriptorsFn(h Host) *object.Builtin {
	return makeOneStringFn("package_descriptors", h.PackageDescriptors)
}

func makeDescribeFn(h Host) *object.Builtin {
	return makeOneStringFn("describe", h.Describe)
}

// makeConflictsFn creates "conflicts".
//
// conflicts() → list of {inherited, declared} maps
func makeConflictsFn(h Host) *object.Builtin {
	return object.NewBuiltin("conflicts", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("conflicts", 0, len(args))
		}
		return hostResult("conflicts", func() (any, error) { return h.Conflicts(), nil })
	})
}

func makeOneStringFn(name string, fn func(string) (any, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		a, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return hostResult(name, func() (any, error) { return fn(a) })
	})
}

func makeTwoStringFn(name string, fn func(string, string) (any, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError(name, 2, len(args))
		}
		a, b, err := twoStrings(args)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return hostResult(name, func() (any, error) { return fn(a, b) })
	})
}

func hostResult(name string, fn func() (any, error)) object.Object {
	v, err := fn()
	if err != nil {
		return object.Errorf("%s: %v", name, err)
	}
	obj, err := toObject(v)
	if err != nil {
		return object.Errorf("%s: %v", name, err)
	}
	return obj
}

// --- Source reader functions ---

// makeParseFn creates the "parse" host function.
//
// parse(path) → list of class maps
func makeParseFn() *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path %v", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return parseSource(ctx, path, src)
	})
}

// makeParseSrcFn creates "parse_src", which accepts Java source directly.
//
// parse_src(source) → list of class maps
func makeParseSrcFn() *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source %v", err)
		}
		return parseSource(ctx, "<inline>.java", []byte(src))
	})
}

func parseSource(ctx context.Context, path string, src []byte) object.Object {
	f, err := syntax.Parse(ctx, path, src)
	if err != nil {
		return object.Errorf("parse: %v", err)
	}
	classes := make([]object.Object, 0, len(f.Classes))
	for _, c := range f.Classes {
		classes = append(classes, classToObject(c, f.IsHolder(c)))
	}
	return object.NewList(classes)
}

func classToObject(c *raw.Class, holder bool) object.Object {
	var fields, methods, nested []object.Object
	for _, f := range c.Fields {
		fields = append(fields, object.NewMap(map[string]object.Object{
			"name":       object.NewString(f.Name),
			"type":       object.NewString(f.Type.String()),
			"visibility": object.NewString(f.Modifiers.Visibility),
			"static":     object.NewBool(f.Modifiers.Static),
			"final":      object.NewBool(f.Modifiers.Final),
			"synthetic":  object.NewBool(f.Synthetic),
		}))
	}
	for _, m := range c.Methods {
		var params []object.Object
		for _, p := range m.Params {
			params = append(params, object.NewMap(map[string]object.Object{
				"name":     object.NewString(p.Name),
				"type":     object.NewString(p.Type.String()),
				"receiver": object.NewBool(p.Receiver),
			}))
		}
		methods = append(methods, object.NewMap(map[string]object.Object{
			"name":        object.NewString(m.Name),
			"return":      object.NewString(m.Return.String()),
			"params":      listOf(params),
			"visibility":  object.NewString(m.Modifiers.Visibility),
			"static":      object.NewBool(m.Modifiers.Static),
			"abstract":    object.NewBool(m.IsAbstract()),
			"constructor": object.NewBool(m.Constructor),
			"accessor":    object.NewBool(m.PropertyAccessor),
			"synthetic":   object.NewBool(m.Synthetic),
		}))
	}
	for _, n := range c.Nested {
		nested = append(nested, classToObject(n, false))
	}
	var supers, typeParams []object.Object
	for _, s := range c.Supertypes {
		supers = append(supers, object.NewString(s.String()))
	}
	for _, tp := range c.TypeParams {
		typeParams = append(typeParams, object.NewString(tp.Name))
	}
	return object.NewMap(map[string]object.Object{
		"fq_name":     object.NewString(c.FQName),
		"name":        object.NewString(c.Name),
		"package":     object.NewString(c.Package),
		"kind":        object.NewString(c.Kind.String()),
		"visibility":  object.NewString(c.Modifiers.Visibility),
		"static":      object.NewBool(c.Modifiers.Static),
		"abstract":    object.NewBool(c.Modifiers.Abstract),
		"final":       object.NewBool(c.Modifiers.Final),
		"primary":     object.NewBool(c.Primary),
		"holder":      object.NewBool(holder),
		"type_params": listOf(typeParams),
		"supertypes":  listOf(supers),
		"fields":      listOf(fields),
		"methods":     listOf(methods),
		"nested":      listOf(nested),
	})
}

// --- Logging ---

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

// --- Conversion helpers ---

// toObject converts a JSON-encodable Go value to a Risor object by way of
// its JSON form, so struct tags decide the map keys.
func toObject(v any) (object.Object, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return jsonToObject(decoded), nil
}

func jsonToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case bool:
		return object.NewBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return object.NewInt(int64(val))
		}
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case []any:
		items := make([]object.Object, 0, len(val))
		for _, item := range val {
			items = append(items, jsonToObject(item))
		}
		return object.NewList(items)
	case map[string]any:
		m := make(map[string]object.Object, len(val))
		for k, item := range val {
			m[k] = jsonToObject(item)
		}
		return object.NewMap(m)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func listOf(items []object.Object) object.Object {
	if items == nil {
		items = []object.Object{}
	}
	return object.NewList(items)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func twoStrings(args []object.Object) (string, string, error) {
	a, err := toString(args[0])
	if err != nil {
		return "", "", err
	}
	b, err := toString(args[1])
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// optionalBool reads args[i] as a bool, defaulting to false when absent.
func optionalBool(args []object.Object, i int) (bool, error) {
	if i >= len(args) {
		return false, nil
	}
	b, ok := args[i].(*object.Bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %s", args[i].Type())
	}
	return b.Value(), nil
}
