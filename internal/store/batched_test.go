package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_ClassesByFQName_ReturnsBufferedClasses(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	// Insert a real file into the database (simulates phase A of parallel extraction).
	f := insertTestFile(t, s, "/src/Point.java")

	// Create a BatchedStore (simulates what a worker goroutine uses).
	batch := NewBatchedStore(s)
	require.NoError(t, SaveClass(batch, f.ID, pointClass(), false))

	rows, err := batch.ClassesByFQName("geo.Point")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Negative(t, rows[0].ID, "buffered classes should have negative IDs")

	// Nothing reached SQLite yet.
	dbRows, err := s.ClassesByFQName("geo.Point")
	require.NoError(t, err)
	assert.Empty(t, dbRows)
}

func TestBatchedStore_ClassesByFQName_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a/Point.java")
	b := insertTestFile(t, s, "/b/Point.java")

	require.NoError(t, SaveClass(s, a.ID, pointClass(), false))

	batch := NewBatchedStore(s)
	require.NoError(t, SaveClass(batch, b.ID, pointClass(), false))

	rows, err := batch.ClassesByFQName("geo.Point")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Positive(t, rows[0].ID)
	assert.Negative(t, rows[1].ID)
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")

	batch := NewBatchedStore(s)
	require.NoError(t, SaveClass(batch, f.ID, pointClass(), false))
	// 2 classes, 2 fields, 3 methods, 1 nested method, 1 param.
	assert.Equal(t, 9, batch.Len())

	require.NoError(t, s.CommitBatch(batch))

	c, err := s.LoadClass("geo.Point")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Fields, 2)
	assert.Len(t, c.Methods, 3)
	require.Len(t, c.Methods[1].Params, 1)
	assert.Equal(t, "dims", c.Methods[1].Params[0].Name)
	require.Len(t, c.Nested, 1)
	assert.Equal(t, "next", c.Nested[0].Methods[0].Name)
}

func TestCommitBatch_UnknownOuterFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")

	batch := NewBatchedStore(s)
	bogus := int64(-42)
	_, err := batch.InsertClass(&Class{FileID: f.ID, FQName: "geo.Orphan", Name: "Orphan", Package: "geo", Kind: "class", OuterClassID: &bogus})
	require.NoError(t, err)

	err = s.CommitBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geo.Orphan")

	rows, err := s.ClassesByFQName("geo.Orphan")
	require.NoError(t, err)
	assert.Empty(t, rows, "failed batch must roll back")
}
