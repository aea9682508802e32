package store

import "sync"

// BatchedStore holds the containers of one parsed file until the writer
// commits them. Rows get negative placeholder IDs that CommitBatch maps to
// real ones. Reads go to the backing Store.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Classes []Class
	Members []Member
	Params  []Param

	nextFakeID int64
}

var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore returns an empty batch reading through s.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertClass(c *Class) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Classes = append(b.Classes, *c)
	return fakeID, nil
}

func (b *BatchedStore) InsertMember(m *Member) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	m.ID = fakeID
	b.Members = append(b.Members, *m)
	return fakeID, nil
}

func (b *BatchedStore) InsertParam(p *Param) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	p.ID = fakeID
	b.Params = append(b.Params, *p)
	return fakeID, nil
}

// ClassesByFQName returns committed rows for fqName followed by any
// buffered rows with the same name.
func (b *BatchedStore) ClassesByFQName(fqName string) ([]*Class, error) {
	dbClasses, err := b.store.ClassesByFQName(fqName)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Classes {
		if b.Classes[i].FQName == fqName {
			dbClasses = append(dbClasses, &b.Classes[i])
		}
	}
	return dbClasses, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Classes) + len(b.Members) + len(b.Params)
}
