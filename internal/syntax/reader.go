// Package syntax reads Java source files into raw declaration containers.
//
// Classes compiled from the primary language carry a @Metadata annotation.
// For those the reader also recovers what the compiler encoded in the
// bytecode shape: object declarations (a static INSTANCE field of the
// class's own type), property accessors, extension receivers passed as a
// leading $receiver parameter, and file facade classes (FooKt) that hold a
// package's top-level declarations.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stratum/internal/raw"
)

// Version identifies the extraction rules. Stores built by a reader with a
// different version must be rebuilt.
const Version = "1"

// ErrInvalidContent is returned for input that is not UTF-8.
var ErrInvalidContent = errors.New("syntax: invalid content")

const (
	metadataAnnotation = "Metadata"
	facadeSuffix       = "Kt"
)

// File is the result of reading one source file.
type File struct {
	Path    string
	Package string
	Classes []*raw.Class

	// Holders are the file facade classes among Classes.
	Holders []*raw.Class

	// Errors lists recoverable problems. A file with syntax errors still
	// yields whatever declarations could be read.
	Errors []string
}

// IsHolder reports whether c is one of the file's facade classes.
func (f *File) IsHolder(c *raw.Class) bool {
	for _, h := range f.Holders {
		if h == c {
			return true
		}
	}
	return false
}

// Parse reads a Java compilation unit. A fresh tree-sitter parser is used
// per call, so Parse is safe for concurrent use.
func Parse(ctx context.Context, path string, content []byte) (*File, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidContent, path)
	}
	grammar, _ := GrammarForLanguage("java")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse %s: %w", path, err)
	}
	defer tree.Close()

	r := &reader{src: content, file: &File{Path: path}}
	root := tree.RootNode()
	if root.HasError() {
		r.file.Errors = append(r.file.Errors, "source contains syntax errors")
	}
	r.readProgram(root)
	return r.file, nil
}

type reader struct {
	src  []byte
	file *File
}

func (r *reader) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(r.src)
}

func (r *reader) readProgram(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if n := root.NamedChild(i); n.Type() == "package_declaration" {
			for j := 0; j < int(n.NamedChildCount()); j++ {
				c := n.NamedChild(j)
				if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
					r.file.Package = r.text(c)
				}
			}
		}
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := r.readTypeDecl(root.NamedChild(i), nil)
		if c == nil {
			continue
		}
		c.Adopt()
		r.file.Classes = append(r.file.Classes, c)
		if isFacade(c) {
			r.file.Holders = append(r.file.Holders, c)
		}
	}
}

// readTypeDecl returns nil for nodes that do not declare a type.
func (r *reader) readTypeDecl(n *sitter.Node, outer *raw.Class) *raw.Class {
	var kind raw.ClassKind
	switch n.Type() {
	case "class_declaration", "record_declaration":
		kind = raw.ClassKindClass
	case "interface_declaration":
		kind = raw.ClassKindInterface
	case "enum_declaration":
		kind = raw.ClassKindEnum
	case "annotation_type_declaration":
		kind = raw.ClassKindAnnotation
	default:
		return nil
	}

	name := r.text(n.ChildByFieldName("name"))
	c := &raw.Class{
		Name:    name,
		Package: r.file.Package,
		Kind:    kind,
	}
	switch {
	case outer != nil:
		c.FQName = outer.FQName + "." + name
	case r.file.Package != "":
		c.FQName = r.file.Package + "." + name
	default:
		c.FQName = name
	}

	mods, annotations := r.readModifiers(modifiersOf(n))
	if mods.Visibility == "" {
		mods.Visibility = "package"
		if outer != nil && outer.IsInterface() {
			mods.Visibility = "public"
		}
	}
	if outer != nil && (outer.IsInterface() || kind != raw.ClassKindClass) {
		// Member types of interfaces, and nested enums, interfaces and
		// annotations, are implicitly static.
		mods.Static = true
	}
	if n.Type() == "record_declaration" {
		mods.Final = true
	}
	c.Modifiers = mods
	c.Primary = hasAnnotation(annotations, metadataAnnotation)
	c.TypeParams = r.readTypeParams(n.ChildByFieldName("type_parameters"))
	c.Supertypes = r.readSupertypes(n)

	if n.Type() == "record_declaration" {
		r.readRecordComponents(c, n.ChildByFieldName("parameters"))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		r.readBody(c, body)
	}
	if kind == raw.ClassKindEnum {
		addEnumMethods(c)
	}
	if c.Primary && isObject(c) {
		c.Kind = raw.ClassKindObject
	}
	return c
}

func modifiersOf(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "modifiers" {
			return c
		}
	}
	return nil
}

// readModifiers returns the declaration flags and the simple names of the
// annotations on a modifiers node.
func (r *reader) readModifiers(n *sitter.Node) (raw.Modifiers, []string) {
	var m raw.Modifiers
	var annotations []string
	if n == nil {
		return m, nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "public", "protected", "private":
			m.Visibility = c.Type()
		case "static":
			m.Static = true
		case "abstract":
			m.Abstract = true
		case "final":
			m.Final = true
		case "marker_annotation", "annotation":
			name := r.text(c.ChildByFieldName("name"))
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				name = name[i+1:]
			}
			annotations = append(annotations, name)
		}
	}
	return m, annotations
}

func hasAnnotation(annotations []string, name string) bool {
	for _, a := range annotations {
		if a == name {
			return true
		}
	}
	return false
}

func (r *reader) readSupertypes(n *sitter.Node) []raw.TypeRef {
	var out []raw.TypeRef
	if sc := n.ChildByFieldName("superclass"); sc != nil {
		for i := 0; i < int(sc.NamedChildCount()); i++ {
			out = append(out, r.readType(sc.NamedChild(i)))
		}
	}
	var lists []*sitter.Node
	if si := n.ChildByFieldName("interfaces"); si != nil {
		lists = append(lists, si)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "extends_interfaces" {
			lists = append(lists, c)
		}
	}
	for _, l := range lists {
		for i := 0; i < int(l.NamedChildCount()); i++ {
			tl := l.NamedChild(i)
			if tl.Type() != "type_list" {
				continue
			}
			for j := 0; j < int(tl.NamedChildCount()); j++ {
				out = append(out, r.readType(tl.NamedChild(j)))
			}
		}
	}
	return out
}

func (r *reader) readTypeParams(n *sitter.Node) []raw.TypeParam {
	if n == nil {
		return nil
	}
	var out []raw.TypeParam
	for i := 0; i < int(n.NamedChildCount()); i++ {
		tp := n.NamedChild(i)
		if tp.Type() != "type_parameter" {
			continue
		}
		var p raw.TypeParam
		for j := 0; j < int(tp.NamedChildCount()); j++ {
			c := tp.NamedChild(j)
			switch c.Type() {
			case "type_identifier", "identifier":
				p.Name = r.text(c)
			case "type_bound":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					p.Bounds = append(p.Bounds, r.readType(c.NamedChild(k)))
				}
			}
		}
		out = append(out, p)
	}
	return out
}

// readType turns a type node into a TypeRef. Annotations on types are
// dropped; wildcards keep their source text as the name.
func (r *reader) readType(n *sitter.Node) raw.TypeRef {
	if n == nil {
		return raw.TypeRef{Name: "void"}
	}
	switch n.Type() {
	case "generic_type":
		var t raw.TypeRef
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "type_identifier", "scoped_type_identifier":
				t.Name = r.text(c)
			case "type_arguments":
				for j := 0; j < int(c.NamedChildCount()); j++ {
					t.Args = append(t.Args, r.readType(c.NamedChild(j)))
				}
			}
		}
		return t
	case "array_type":
		t := r.readType(n.ChildByFieldName("element"))
		t.Dims += strings.Count(r.text(n.ChildByFieldName("dimensions")), "[")
		return t
	case "annotated_type":
		for i := n.NamedChildCount(); i > 0; i-- {
			if c := n.NamedChild(int(i) - 1); c.Type() != "annotation" && c.Type() != "marker_annotation" {
				return r.readType(c)
			}
		}
	}
	return raw.TypeRef{Name: r.text(n)}
}

func (r *reader) readBody(c *raw.Class, body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		n := body.NamedChild(i)
		switch n.Type() {
		case "enum_constant":
			c.Fields = append(c.Fields, &raw.Field{
				Name: r.text(n.ChildByFieldName("name")),
				Type: raw.TypeRef{Name: c.Name},
				Modifiers: raw.Modifiers{
					Visibility: "public",
					Static:     true,
					Final:      true,
				},
			})
		case "enum_body_declarations":
			r.readBody(c, n)
		case "field_declaration", "constant_declaration":
			r.readField(c, n)
		case "method_declaration", "annotation_type_element_declaration":
			c.Methods = append(c.Methods, r.readMethod(c, n))
		case "constructor_declaration", "compact_constructor_declaration":
			ctor := r.readMethod(c, n)
			ctor.Constructor = true
			ctor.Name = c.Name
			ctor.Return = raw.TypeRef{Name: "void"}
			c.Methods = append(c.Methods, ctor)
		default:
			if nested := r.readTypeDecl(n, c); nested != nil {
				c.Nested = append(c.Nested, nested)
			}
		}
	}
}

func (r *reader) readField(c *raw.Class, n *sitter.Node) {
	mods, _ := r.readModifiers(modifiersOf(n))
	if c.IsInterface() {
		mods.Visibility = "public"
		mods.Static = true
		mods.Final = true
	} else if mods.Visibility == "" {
		mods.Visibility = "package"
	}
	typ := r.readType(n.ChildByFieldName("type"))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		t := typ
		t.Dims += strings.Count(r.text(d.ChildByFieldName("dimensions")), "[")
		c.Fields = append(c.Fields, &raw.Field{
			Name:      r.text(d.ChildByFieldName("name")),
			Type:      t,
			Modifiers: mods,
		})
	}
}

func (r *reader) readMethod(c *raw.Class, n *sitter.Node) *raw.Method {
	mods, _ := r.readModifiers(modifiersOf(n))
	if mods.Visibility == "" {
		mods.Visibility = "package"
		if c.IsInterface() {
			mods.Visibility = "public"
		}
	}
	m := &raw.Method{
		Name:       r.text(n.ChildByFieldName("name")),
		Return:     r.readType(n.ChildByFieldName("type")),
		TypeParams: r.readTypeParams(n.ChildByFieldName("type_parameters")),
		Modifiers:  mods,
		HasBody:    n.ChildByFieldName("body") != nil,
	}
	m.Return.Dims += strings.Count(r.text(n.ChildByFieldName("dimensions")), "[")
	m.Params = r.readParams(n.ChildByFieldName("parameters"))

	if c.Primary {
		markAccessor(m)
	}
	return m
}

func (r *reader) readParams(n *sitter.Node) []raw.Param {
	if n == nil {
		return nil
	}
	var out []raw.Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			t := r.readType(p.ChildByFieldName("type"))
			t.Dims += strings.Count(r.text(p.ChildByFieldName("dimensions")), "[")
			out = append(out, raw.Param{Name: r.text(p.ChildByFieldName("name")), Type: t})
		case "spread_parameter":
			var t raw.TypeRef
			var name string
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				switch c.Type() {
				case "modifiers":
				case "variable_declarator":
					name = r.text(c.ChildByFieldName("name"))
				default:
					t = r.readType(c)
				}
			}
			t.Dims++
			out = append(out, raw.Param{Name: name, Type: t})
		}
	}
	if len(out) > 0 && isReceiverName(out[0].Name) {
		out[0].Receiver = true
	}
	return out
}

func (r *reader) readRecordComponents(c *raw.Class, params *sitter.Node) {
	for _, p := range r.readParams(params) {
		c.Fields = append(c.Fields, &raw.Field{
			Name:      p.Name,
			Type:      p.Type,
			Modifiers: raw.Modifiers{Visibility: "private", Final: true},
		})
		c.Methods = append(c.Methods, &raw.Method{
			Name:      p.Name,
			Return:    p.Type,
			Modifiers: raw.Modifiers{Visibility: "public"},
			HasBody:   true,
			Synthetic: true,
		})
	}
}

func isReceiverName(name string) bool {
	return name == "$receiver" || strings.HasPrefix(name, "$this")
}

// markAccessor flags compiled property accessors: a getter or setter name
// whose value parameter count fits, after an optional receiver.
func markAccessor(m *raw.Method) {
	kind, _ := raw.ParseAccessorName(m.Name)
	n := len(m.Params)
	if n > 0 && m.Params[0].Receiver {
		n--
	}
	switch kind {
	case raw.AccessorGetter:
		m.PropertyAccessor = n == 0 && m.Return.String() != "void"
	case raw.AccessorSetter:
		m.PropertyAccessor = n == 1
	}
}

// addEnumMethods adds the members every enum gets implicitly.
func addEnumMethods(c *raw.Class) {
	static := raw.Modifiers{Visibility: "public", Static: true}
	c.Methods = append(c.Methods,
		&raw.Method{
			Name:      "values",
			Return:    raw.TypeRef{Name: c.Name, Dims: 1},
			Modifiers: static,
			Synthetic: true,
			HasBody:   true,
		},
		&raw.Method{
			Name:      "valueOf",
			Params:    []raw.Param{{Name: "name", Type: raw.TypeRef{Name: "String"}}},
			Return:    raw.TypeRef{Name: c.Name},
			Modifiers: static,
			Synthetic: true,
			HasBody:   true,
		},
	)
}

// isObject recognizes the compiled shape of an object declaration.
func isObject(c *raw.Class) bool {
	if c.Kind != raw.ClassKindClass {
		return false
	}
	for _, f := range c.Fields {
		if f.Name == raw.InstanceFieldName && f.IsStatic() && f.Type.Name == c.Name {
			return true
		}
	}
	return false
}

func isFacadeName(c *raw.Class) bool {
	return c.Primary && strings.HasSuffix(c.Name, facadeSuffix) && len(c.Name) > len(facadeSuffix)
}

// isFacade reports a top-level primary class named FooKt whose members are
// all static.
func isFacade(c *raw.Class) bool {
	if !isFacadeName(c) || c.Kind != raw.ClassKindClass {
		return false
	}
	for _, f := range c.Fields {
		if !f.IsStatic() {
			return false
		}
	}
	for _, m := range c.Methods {
		if !m.Constructor && !m.IsStatic() {
			return false
		}
	}
	return true
}
