package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/stratum/internal/raw"
)

// ComputeSignatureHash computes a deterministic hash from a class's
// declared shape: name, kind, modifiers, type params, supertypes and the
// signatures of its own members. Member order and method bodies do NOT
// affect the hash; nested classes hash separately.
func ComputeSignatureHash(c *raw.Class) string {
	h := sha256.New()

	fmt.Fprintf(h, "name:%s\n", c.FQName)
	fmt.Fprintf(h, "kind:%s\n", c.Kind)
	fmt.Fprintf(h, "primary:%v\n", c.Primary)
	fmt.Fprintf(h, "modifiers:%s\n", strings.Join(modifierList(c.Modifiers), ","))
	for _, tp := range c.TypeParams {
		fmt.Fprintf(h, "typeparam:%s\n", typeParamString(tp))
	}
	for _, st := range c.Supertypes {
		fmt.Fprintf(h, "super:%s\n", st)
	}

	var lines []string
	for _, f := range c.Fields {
		lines = append(lines, fmt.Sprintf("field:%s:%s:%s:%v",
			f.Name, f.Type, strings.Join(modifierList(f.Modifiers), ","), f.Synthetic))
	}
	for _, m := range c.Methods {
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = fmt.Sprintf("%s:%v", p.Type, p.Receiver)
		}
		tps := make([]string, len(m.TypeParams))
		for i, tp := range m.TypeParams {
			tps[i] = typeParamString(tp)
		}
		lines = append(lines, fmt.Sprintf("method:%s:<%s>(%s):%s:%s:%v:%v:%v",
			m.Name, strings.Join(tps, ","), strings.Join(params, ","), m.Return,
			strings.Join(modifierList(m.Modifiers), ","), m.Constructor, m.Synthetic, m.PropertyAccessor))
	}
	// Members sorted for determinism.
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(h, l)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

func typeParamString(tp raw.TypeParam) string {
	bounds := make([]string, len(tp.Bounds))
	for i, b := range tp.Bounds {
		bounds[i] = b.String()
	}
	return tp.Name + ":" + strings.Join(bounds, "&")
}

// modifierList flattens Modifiers into the sorted keyword list stored in
// the modifiers column.
func modifierList(m raw.Modifiers) []string {
	var out []string
	if m.Abstract {
		out = append(out, "abstract")
	}
	if m.Final {
		out = append(out, "final")
	}
	if m.Static {
		out = append(out, "static")
	}
	return out
}

// parseModifiers is the inverse of modifierList.
func parseModifiers(visibility string, mods []string) raw.Modifiers {
	m := raw.Modifiers{Visibility: visibility}
	for _, s := range mods {
		switch s {
		case "abstract":
			m.Abstract = true
		case "final":
			m.Final = true
		case "static":
			m.Static = true
		}
	}
	return m
}
