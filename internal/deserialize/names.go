package deserialize

import (
	"fmt"
	"strings"
)

// NameTable maps name indices of one entry to identifiers.
type NameTable struct {
	names []string
}

// NewNameTable wraps an entry name table.
func NewNameTable(names []string) *NameTable {
	return &NameTable{names: names}
}

// Name returns the identifier at id.
func (t *NameTable) Name(id int32) (string, error) {
	if id < 0 || int(id) >= len(t.names) {
		return "", fmt.Errorf("%w: name %d of %d", ErrBadIndex, id, len(t.names))
	}
	return t.names[id], nil
}

// Len returns the table size.
func (t *NameTable) Len() int { return len(t.names) }

// shortName returns the last segment of a dotted name.
func shortName(fq string) string {
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[i+1:]
	}
	return fq
}

// packageOf returns everything before the last dot.
func packageOf(fq string) string {
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[:i]
	}
	return ""
}
