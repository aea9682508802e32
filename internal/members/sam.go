package members

import "github.com/jward/stratum/internal/raw"

// IsObjectMethod reports hashCode(), equals(Object) and toString().
func IsObjectMethod(m *raw.Method) bool {
	switch m.Name {
	case "hashCode", "toString":
		return len(m.Params) == 0
	case "equals":
		if len(m.Params) != 1 {
			return false
		}
		t := m.Params[0].Type
		return t.Dims == 0 && len(t.Args) == 0 && (t.Name == "Object" || t.Name == "java.lang.Object")
	}
	return false
}

// IsSAMInterface reports whether c is an interface with exactly one
// abstract method, not counting object methods, and that method is not
// generic.
func IsSAMInterface(c *raw.Class) bool {
	if c == nil || c.Kind != raw.ClassKindInterface {
		return false
	}
	var sam *raw.Method
	for _, m := range c.Methods {
		if !m.IsAbstract() || IsObjectMethod(m) {
			continue
		}
		if sam != nil {
			return false
		}
		sam = m
	}
	return sam != nil && len(sam.TypeParams) == 0
}

// RealOwnerStatic reports whether c owns every static member it exposes in
// static scope. Enum entries and their helpers are compiler-generated
// statics, so an enum's static scope takes them all.
func RealOwnerStatic(c *raw.Class) bool {
	return c != nil && c.IsEnum()
}
