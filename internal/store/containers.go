package store

import (
	"fmt"

	"github.com/jward/stratum/internal/raw"
)

// SaveClass writes a class tree through ds: the class row, its members and
// parameters, then every nested class. holder marks the synthetic class
// carrying a package's top-level declarations.
func SaveClass(ds DataStore, fileID int64, c *raw.Class, holder bool) error {
	return saveClass(ds, fileID, c, holder, nil)
}

func saveClass(ds DataStore, fileID int64, c *raw.Class, holder bool, outerID *int64) error {
	row := &Class{
		FileID:        fileID,
		FQName:        c.FQName,
		Name:          c.Name,
		Package:       c.Package,
		Kind:          c.Kind.String(),
		Visibility:    c.Modifiers.Visibility,
		Modifiers:     modifierList(c.Modifiers),
		Primary:       c.Primary,
		Holder:        holder,
		TypeParams:    marshalJSON(c.TypeParams),
		Supertypes:    marshalJSON(c.Supertypes),
		SignatureHash: ComputeSignatureHash(c),
		OuterClassID:  outerID,
	}
	classID, err := ds.InsertClass(row)
	if err != nil {
		return fmt.Errorf("save class %s: %w", c.FQName, err)
	}

	ordinal := 0
	for _, f := range c.Fields {
		m := &Member{
			ClassID:    classID,
			Name:       f.Name,
			Kind:       MemberField,
			Ordinal:    ordinal,
			Visibility: f.Modifiers.Visibility,
			Modifiers:  modifierList(f.Modifiers),
			TypeExpr:   marshalJSON(f.Type),
			Synthetic:  f.Synthetic,
		}
		ordinal++
		if _, err := ds.InsertMember(m); err != nil {
			return fmt.Errorf("save field %s.%s: %w", c.FQName, f.Name, err)
		}
	}
	for _, method := range c.Methods {
		kind := MemberMethod
		if method.Constructor {
			kind = MemberConstructor
		}
		m := &Member{
			ClassID:          classID,
			Name:             method.Name,
			Kind:             kind,
			Ordinal:          ordinal,
			Visibility:       method.Modifiers.Visibility,
			Modifiers:        modifierList(method.Modifiers),
			TypeExpr:         marshalJSON(method.Return),
			TypeParams:       marshalJSON(method.TypeParams),
			Synthetic:        method.Synthetic,
			HasBody:          method.HasBody,
			PropertyAccessor: method.PropertyAccessor,
		}
		ordinal++
		memberID, err := ds.InsertMember(m)
		if err != nil {
			return fmt.Errorf("save method %s.%s: %w", c.FQName, method.Name, err)
		}
		for i, p := range method.Params {
			param := &Param{
				MemberID:   memberID,
				Name:       p.Name,
				Ordinal:    i,
				TypeExpr:   marshalJSON(p.Type),
				IsReceiver: p.Receiver,
			}
			if _, err := ds.InsertParam(param); err != nil {
				return fmt.Errorf("save param %s.%s(%s): %w", c.FQName, method.Name, p.Name, err)
			}
		}
	}

	for _, nested := range c.Nested {
		if err := saveClass(ds, fileID, nested, false, &classID); err != nil {
			return err
		}
	}
	return nil
}

// LoadClass rebuilds the class tree stored under fqName. When several
// files declare the name, the first indexed one wins. Unknown names yield
// nil, nil.
func (s *Store) LoadClass(fqName string) (*raw.Class, error) {
	rows, err := s.ClassesByFQName(fqName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	c, err := s.loadClassTree(rows[0])
	if err != nil {
		return nil, err
	}
	c.Adopt()
	return c, nil
}

// LoadPackage assembles a package from its top-level classes. Holder rows
// from every file of the package merge into one holder class. Unknown
// packages yield nil, nil.
func (s *Store) LoadPackage(fqName string) (*raw.Package, error) {
	rows, err := s.TopLevelClasses(fqName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	p := &raw.Package{FQName: fqName}
	seen := make(map[string]bool)
	for _, row := range rows {
		if !row.Holder && seen[row.FQName] {
			continue
		}
		c, err := s.loadClassTree(row)
		if err != nil {
			return nil, err
		}
		if !row.Holder {
			seen[row.FQName] = true
			c.Adopt()
			p.Classes = append(p.Classes, c)
			continue
		}
		if p.Holder == nil {
			p.Holder = c
			continue
		}
		p.Holder.Fields = append(p.Holder.Fields, c.Fields...)
		p.Holder.Methods = append(p.Holder.Methods, c.Methods...)
	}
	if p.Holder != nil {
		p.Holder.Adopt()
	}
	return p, nil
}

func (s *Store) loadClassTree(row *Class) (*raw.Class, error) {
	c := &raw.Class{
		FQName:    row.FQName,
		Name:      row.Name,
		Package:   row.Package,
		Kind:      raw.ParseClassKind(row.Kind),
		Modifiers: parseModifiers(row.Visibility, row.Modifiers),
		Primary:   row.Primary,
	}
	if err := unmarshalJSON(row.TypeParams, &c.TypeParams); err != nil {
		return nil, fmt.Errorf("load class %s: type params: %w", row.FQName, err)
	}
	if err := unmarshalJSON(row.Supertypes, &c.Supertypes); err != nil {
		return nil, fmt.Errorf("load class %s: supertypes: %w", row.FQName, err)
	}

	members, err := s.Members(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", row.FQName, err)
	}
	params, err := s.ParamsByClass(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", row.FQName, err)
	}
	for _, m := range members {
		mods := parseModifiers(m.Visibility, m.Modifiers)
		var typ raw.TypeRef
		if err := unmarshalJSON(m.TypeExpr, &typ); err != nil {
			return nil, fmt.Errorf("load member %s.%s: %w", row.FQName, m.Name, err)
		}
		if m.Kind == MemberField {
			c.Fields = append(c.Fields, &raw.Field{
				Name:      m.Name,
				Type:      typ,
				Modifiers: mods,
				Synthetic: m.Synthetic,
			})
			continue
		}
		method := &raw.Method{
			Name:             m.Name,
			Return:           typ,
			Modifiers:        mods,
			Synthetic:        m.Synthetic,
			Constructor:      m.Kind == MemberConstructor,
			HasBody:          m.HasBody,
			PropertyAccessor: m.PropertyAccessor,
		}
		if err := unmarshalJSON(m.TypeParams, &method.TypeParams); err != nil {
			return nil, fmt.Errorf("load member %s.%s: %w", row.FQName, m.Name, err)
		}
		for _, p := range params[m.ID] {
			var pt raw.TypeRef
			if err := unmarshalJSON(p.TypeExpr, &pt); err != nil {
				return nil, fmt.Errorf("load param %s.%s(%s): %w", row.FQName, m.Name, p.Name, err)
			}
			method.Params = append(method.Params, raw.Param{Name: p.Name, Type: pt, Receiver: p.IsReceiver})
		}
		c.Methods = append(c.Methods, method)
	}

	nested, err := s.NestedClasses(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", row.FQName, err)
	}
	for _, n := range nested {
		nc, err := s.loadClassTree(n)
		if err != nil {
			return nil, err
		}
		c.Nested = append(c.Nested, nc)
	}
	return c, nil
}
