package store

// DataStore receives the rows of one parsed file. Store writes them
// straight to SQLite; BatchedStore buffers them for the single writer of
// parallel indexing.
type DataStore interface {
	// Inserts return the row ID the next insert may reference.
	InsertClass(c *Class) (int64, error)
	InsertMember(m *Member) (int64, error)
	InsertParam(p *Param) (int64, error)

	// ClassesByFQName sees rows already written, including earlier files.
	ClassesByFQName(fqName string) ([]*Class, error)
}

var _ DataStore = (*Store)(nil)
