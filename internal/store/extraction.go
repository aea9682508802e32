package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, language, hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// UpdateFileHash records a new content hash after a file was re-extracted.
func (s *Store) UpdateFileHash(f *File) error {
	_, err := s.db.Exec(
		"UPDATE files SET hash = ?, last_indexed = ? WHERE id = ?",
		f.Hash, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file hash: %w", err)
	}
	return nil
}

func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, language, hash, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Class operations ---

func (s *Store) InsertClass(c *Class) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO classes (file_id, fq_name, name, package, kind, visibility, modifiers,
		 is_primary, is_holder, type_params, supertypes, signature_hash, outer_class_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FileID, c.FQName, c.Name, c.Package, c.Kind, c.Visibility, marshalModifiers(c.Modifiers),
		c.Primary, c.Holder, c.TypeParams, c.Supertypes, c.SignatureHash, c.OuterClassID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert class: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

const classColumns = `id, file_id, fq_name, name, package, kind, visibility, modifiers,
	is_primary, is_holder, type_params, supertypes, signature_hash, outer_class_id`

func scanClass(scanner interface{ Scan(...any) error }) (*Class, error) {
	c := &Class{}
	var mods, vis, tps, sups, hash sql.NullString
	err := scanner.Scan(&c.ID, &c.FileID, &c.FQName, &c.Name, &c.Package, &c.Kind, &vis, &mods,
		&c.Primary, &c.Holder, &tps, &sups, &hash, &c.OuterClassID)
	if err != nil {
		return nil, err
	}
	c.Visibility = vis.String
	c.Modifiers = unmarshalModifiers(mods.String)
	c.TypeParams = tps.String
	c.Supertypes = sups.String
	c.SignatureHash = hash.String
	return c, nil
}

func (s *Store) queryClasses(query string, args ...any) ([]*Class, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()
	var classes []*Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// ClassesByFQName returns every row declaring fqName, oldest first. More
// than one row means the name is declared in several files.
func (s *Store) ClassesByFQName(fqName string) ([]*Class, error) {
	return s.queryClasses("SELECT "+classColumns+" FROM classes WHERE fq_name = ? ORDER BY id", fqName)
}

// TopLevelClasses returns the classes declared directly in a package.
func (s *Store) TopLevelClasses(pkg string) ([]*Class, error) {
	return s.queryClasses(
		"SELECT "+classColumns+" FROM classes WHERE package = ? AND outer_class_id IS NULL ORDER BY fq_name, id",
		pkg,
	)
}

func (s *Store) ClassesByFile(fileID int64) ([]*Class, error) {
	return s.queryClasses("SELECT "+classColumns+" FROM classes WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) NestedClasses(outerID int64) ([]*Class, error) {
	return s.queryClasses("SELECT "+classColumns+" FROM classes WHERE outer_class_id = ? ORDER BY id", outerID)
}

// Packages lists every package with at least one class, sorted.
func (s *Store) Packages() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT package FROM classes ORDER BY package")
	if err != nil {
		return nil, fmt.Errorf("packages: %w", err)
	}
	defer rows.Close()
	var pkgs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}

// --- Member operations ---

func (s *Store) InsertMember(m *Member) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO members (class_id, name, kind, ordinal, visibility, modifiers, type_expr,
		 type_params, is_synthetic, has_body, property_accessor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ClassID, m.Name, m.Kind, m.Ordinal, m.Visibility, marshalModifiers(m.Modifiers), m.TypeExpr,
		m.TypeParams, m.Synthetic, m.HasBody, m.PropertyAccessor,
	)
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *Store) Members(classID int64) ([]*Member, error) {
	rows, err := s.db.Query(
		`SELECT id, class_id, name, kind, ordinal, visibility, modifiers, type_expr,
		 type_params, is_synthetic, has_body, property_accessor
		 FROM members WHERE class_id = ? ORDER BY ordinal`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	defer rows.Close()
	var members []*Member
	for rows.Next() {
		m := &Member{}
		var vis, mods, typ, tps sql.NullString
		if err := rows.Scan(&m.ID, &m.ClassID, &m.Name, &m.Kind, &m.Ordinal, &vis, &mods, &typ,
			&tps, &m.Synthetic, &m.HasBody, &m.PropertyAccessor); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Visibility = vis.String
		m.Modifiers = unmarshalModifiers(mods.String)
		m.TypeExpr = typ.String
		m.TypeParams = tps.String
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- Param operations ---

func (s *Store) InsertParam(p *Param) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO member_params (member_id, name, ordinal, type_expr, is_receiver)
		 VALUES (?, ?, ?, ?, ?)`,
		p.MemberID, p.Name, p.Ordinal, p.TypeExpr, p.IsReceiver,
	)
	if err != nil {
		return 0, fmt.Errorf("insert param: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

// ParamsByClass returns the parameters of every member of a class, keyed
// by member ID and ordered by position.
func (s *Store) ParamsByClass(classID int64) (map[int64][]*Param, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.member_id, p.name, p.ordinal, p.type_expr, p.is_receiver
		 FROM member_params p JOIN members m ON p.member_id = m.id
		 WHERE m.class_id = ? ORDER BY p.member_id, p.ordinal`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("params by class: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]*Param)
	for rows.Next() {
		p := &Param{}
		var typ sql.NullString
		if err := rows.Scan(&p.ID, &p.MemberID, &p.Name, &p.Ordinal, &typ, &p.IsReceiver); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		p.TypeExpr = typ.String
		out[p.MemberID] = append(out[p.MemberID], p)
	}
	return out, rows.Err()
}
