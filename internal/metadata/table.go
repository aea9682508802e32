package metadata

// StringTable interns identifiers into an entry name table.
type StringTable struct {
	names []string
	index map[string]int32
}

// ID returns the index of s, adding it on first use.
func (t *StringTable) ID(s string) int32 {
	if id, ok := t.index[s]; ok {
		return id
	}
	if t.index == nil {
		t.index = make(map[string]int32)
	}
	id := int32(len(t.names))
	t.names = append(t.names, s)
	t.index[s] = id
	return id
}

// Names returns the table in index order.
func (t *StringTable) Names() []string { return t.names }
