package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stratum/internal/metadata"
	"github.com/jward/stratum/internal/raw"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path string) *File {
	t.Helper()
	f := &File{Path: path, Language: "java", Hash: "abc123", LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// pointClass builds the class used by most tests:
//
//	public class Point { int x; int y; public int getX(); static Point origin(); class Cursor {} }
func pointClass() *raw.Class {
	c := &raw.Class{
		FQName:     "geo.Point",
		Name:       "Point",
		Package:    "geo",
		Kind:       raw.ClassKindClass,
		Modifiers:  raw.Modifiers{Visibility: "public", Final: true},
		TypeParams: []raw.TypeParam{{Name: "T", Bounds: []raw.TypeRef{{Name: "Number"}}}},
		Supertypes: []raw.TypeRef{{Name: "Comparable", Args: []raw.TypeRef{{Name: "Point"}}}},
		Fields: []*raw.Field{
			{Name: "x", Type: raw.TypeRef{Name: "int"}},
			{Name: "y", Type: raw.TypeRef{Name: "int"}, Modifiers: raw.Modifiers{Visibility: "private"}},
		},
		Methods: []*raw.Method{
			{Name: "getX", Return: raw.TypeRef{Name: "int"}, Modifiers: raw.Modifiers{Visibility: "public"}, HasBody: true, PropertyAccessor: true},
			{
				Name:      "origin",
				Return:    raw.TypeRef{Name: "Point"},
				Params:    []raw.Param{{Name: "dims", Type: raw.TypeRef{Name: "int", Dims: 1}}},
				Modifiers: raw.Modifiers{Visibility: "public", Static: true},
				HasBody:   true,
			},
			{Name: "Point", Constructor: true, HasBody: true},
		},
		Nested: []*raw.Class{{
			FQName:  "geo.Point.Cursor",
			Name:    "Cursor",
			Package: "geo",
			Kind:    raw.ClassKindInterface,
			Methods: []*raw.Method{{Name: "next", Return: raw.TypeRef{Name: "boolean"}}},
		}},
	}
	c.Adopt()
	return c
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "classes", "members", "member_params", "metadata_entries", "settings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestSettings(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.Setting("reader_version")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting("reader_version", "1"))
	require.NoError(t, s.SetSetting("reader_version", "2"))
	v, err = s.Setting("reader_version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// =============================================================================
// File operations
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	f := &File{Path: "/src/Point.java", Language: "java", Hash: "sha256abc", LastIndexed: now}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.FileByPath("/src/Point.java")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "java", got.Language)
	assert.Equal(t, "sha256abc", got.Hash)

	got.Hash = "sha256def"
	require.NoError(t, s.UpdateFileHash(got))
	again, err := s.FileByPath("/src/Point.java")
	require.NoError(t, err)
	assert.Equal(t, "sha256def", again.Hash)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_DeleteRemovesClasses(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))

	require.NoError(t, s.DeleteFile(f.ID))

	got, err := s.LoadClass("geo.Point")
	require.NoError(t, err)
	assert.Nil(t, got)
	nested, err := s.ClassesByFQName("geo.Point.Cursor")
	require.NoError(t, err)
	assert.Empty(t, nested)
	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)

	var params int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM member_params").Scan(&params))
	assert.Zero(t, params)
}

// =============================================================================
// Class round trip
// =============================================================================

func TestLoadClass_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))

	c, err := s.LoadClass("geo.Point")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "Point", c.Name)
	assert.Equal(t, "geo", c.Package)
	assert.Equal(t, raw.ClassKindClass, c.Kind)
	assert.Equal(t, raw.Modifiers{Visibility: "public", Final: true}, c.Modifiers)
	assert.Equal(t, "Comparable<Point>", c.Supertypes[0].String())
	require.Len(t, c.TypeParams, 1)
	assert.Equal(t, "Number", c.TypeParams[0].Bounds[0].Name)

	require.Len(t, c.Fields, 2)
	assert.Equal(t, "x", c.Fields[0].Name)
	assert.True(t, c.Fields[1].IsPrivate())
	assert.Same(t, c, c.Fields[0].Owner)

	require.Len(t, c.Methods, 3)
	assert.True(t, c.Methods[0].PropertyAccessor)
	origin := c.Methods[1]
	assert.True(t, origin.IsStatic())
	require.Len(t, origin.Params, 1)
	assert.Equal(t, "int[]", origin.Params[0].Type.String())
	assert.True(t, c.Methods[2].Constructor)

	require.Len(t, c.Nested, 1)
	assert.Equal(t, raw.ClassKindInterface, c.Nested[0].Kind)
	assert.Same(t, c, c.Nested[0].Outer)
	assert.True(t, c.Nested[0].Methods[0].IsAbstract())
}

func TestLoadClass_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	c, err := s.LoadClass("geo.Missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadClass_NestedByName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))

	c, err := s.LoadClass("geo.Point.Cursor")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Cursor", c.Name)
	assert.Same(t, c, c.Methods[0].Owner)
}

func TestLoadClass_FirstFileWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a/Point.java")
	b := insertTestFile(t, s, "/b/Point.java")

	first := pointClass()
	second := pointClass()
	second.Fields = nil
	require.NoError(t, SaveClass(s, a.ID, first, false))
	require.NoError(t, SaveClass(s, b.ID, second, false))

	c, err := s.LoadClass("geo.Point")
	require.NoError(t, err)
	assert.Len(t, c.Fields, 2)
}

// =============================================================================
// Package assembly
// =============================================================================

func TestLoadPackage_MergesHolders(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	g := insertTestFile(t, s, "/src/GeoKt.java")
	h := insertTestFile(t, s, "/src/MathKt.java")

	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))
	geo := &raw.Class{FQName: "geo.GeoKt", Name: "GeoKt", Package: "geo", Primary: true,
		Methods: []*raw.Method{{Name: "distance", Modifiers: raw.Modifiers{Static: true}, HasBody: true}}}
	math := &raw.Class{FQName: "geo.MathKt", Name: "MathKt", Package: "geo", Primary: true,
		Fields: []*raw.Field{{Name: "PI", Modifiers: raw.Modifiers{Static: true, Final: true}}}}
	require.NoError(t, SaveClass(s, g.ID, geo, true))
	require.NoError(t, SaveClass(s, h.ID, math, true))

	p, err := s.LoadPackage("geo")
	require.NoError(t, err)
	require.NotNil(t, p)

	require.Len(t, p.Classes, 1)
	assert.Equal(t, "Point", p.Classes[0].Name)

	require.NotNil(t, p.Holder)
	assert.Equal(t, "geo.GeoKt", p.Holder.FQName)
	require.Len(t, p.Holder.Methods, 1)
	require.Len(t, p.Holder.Fields, 1)
	assert.Same(t, p.Holder, p.Holder.Fields[0].Owner)
	assert.Same(t, p.Holder, p.Holder.Methods[0].Owner)
}

func TestLoadPackage_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p, err := s.LoadPackage("nowhere")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPackages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))
	require.NoError(t, SaveClass(s, f.ID, &raw.Class{FQName: "app.Main", Name: "Main", Package: "app"}, false))

	pkgs, err := s.Packages()
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "geo"}, pkgs)
}

// =============================================================================
// Signature hashes
// =============================================================================

func TestComputeSignatureHash(t *testing.T) {
	t.Parallel()

	base := ComputeSignatureHash(pointClass())
	assert.Equal(t, base, ComputeSignatureHash(pointClass()), "hash is deterministic")

	reordered := pointClass()
	reordered.Fields[0], reordered.Fields[1] = reordered.Fields[1], reordered.Fields[0]
	assert.Equal(t, base, ComputeSignatureHash(reordered), "member order does not matter")

	body := pointClass()
	body.Methods[1].HasBody = false
	assert.Equal(t, base, ComputeSignatureHash(body), "bodies do not matter")

	changed := pointClass()
	changed.Methods[1].Return = raw.TypeRef{Name: "Object"}
	assert.NotEqual(t, base, ComputeSignatureHash(changed))

	static := pointClass()
	static.Fields[0].Modifiers.Static = true
	assert.NotEqual(t, base, ComputeSignatureHash(static))
}

func TestSaveClass_StoresHash(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/Point.java")
	require.NoError(t, SaveClass(s, f.ID, pointClass(), false))

	rows, err := s.ClassesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ComputeSignatureHash(pointClass()), rows[0].SignatureHash)
	assert.Nil(t, rows[0].OuterClassID)
	require.NotNil(t, rows[1].OuterClassID)
	assert.Equal(t, rows[0].ID, *rows[1].OuterClassID)
}

// =============================================================================
// Metadata entries
// =============================================================================

func TestEntry_PutAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	e := &MetadataEntry{
		FQName:     "lib.Base",
		Kind:       "class",
		Names:      []string{"lib.Base", "run"},
		Payload:    []byte{0x08, 0x01},
		Source:     "lib.bundle",
		ImportedAt: time.Now().Truncate(time.Second),
	}
	id, err := s.PutEntry(e)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.Entry("lib.Base", metadata.EntryClass)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, metadata.EntryClass, got.Kind)
	assert.Equal(t, []string{"lib.Base", "run"}, got.Names)
	assert.Equal(t, []byte{0x08, 0x01}, got.Payload)

	missing, err := s.Entry("lib.Base", metadata.EntryPackage)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEntry_PutReplaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.PutEntry(&MetadataEntry{FQName: "lib", Kind: "package", Names: []string{"a"}, Payload: []byte{1}})
	require.NoError(t, err)
	_, err = s.PutEntry(&MetadataEntry{FQName: "lib", Kind: "package", Names: []string{"b"}, Payload: []byte{2}})
	require.NoError(t, err)

	row, err := s.EntryRow("lib", "package")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, row.Names)
	assert.Equal(t, []byte{2}, row.Payload)

	names, err := s.EntryNames("package")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib"}, names)
}

func TestPutBundle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := &metadata.Bundle{Entries: []*metadata.Entry{
		{FQName: "lib.Base", Kind: metadata.EntryClass, Names: []string{"lib.Base"}, Payload: []byte{1}},
		{FQName: "lib.Sub", Kind: metadata.EntryClass, Names: []string{"lib.Sub"}, Payload: []byte{2}},
		{FQName: "lib", Kind: metadata.EntryPackage, Names: []string{"main"}, Payload: []byte{3}},
	}}
	n, err := s.PutBundle(b, "lib.bundle", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	classes, err := s.EntryNames("class")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib.Base", "lib.Sub"}, classes)

	removed, err := s.DeleteEntries("class", "lib.Sub", "lib.Missing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	row, err := s.EntryRow("lib.Base", "class")
	require.NoError(t, err)
	assert.Equal(t, "lib.bundle", row.Source)
}
